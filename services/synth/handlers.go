package synth

import (
	"clocksynth-go/bus"
	"clocksynth-go/drivers/si5351"
	"clocksynth-go/errcode"
	"clocksynth-go/types"
)

type handler func(s *Service, payload any) (types.Reply, error)

var handlers = map[string]handler{
	"set_freq":       (*Service).ctlSetFreq,
	"set_pll":        (*Service).ctlSetPLL,
	"set_correction": (*Service).ctlSetCorrection,
	"set_ref_freq":   (*Service).ctlSetRefFreq,
	"output_enable":  (*Service).ctlOutputEnable,
	"drive_strength": (*Service).ctlDriveStrength,
	"clock_source":   (*Service).ctlClockSource,
	"clock_invert":   (*Service).ctlClockInvert,
	"clock_power":    (*Service).ctlClockPower,
	"clock_disable":  (*Service).ctlClockDisable,
	"clock_fanout":   (*Service).ctlClockFanout,
	"phase":          (*Service).ctlPhase,
	"pll_input":      (*Service).ctlPLLInput,
	"ms_source":      (*Service).ctlMSSource,
	"pll_reset":      (*Service).ctlPLLReset,
	"vcxo":           (*Service).ctlVCXO,
	"status":         (*Service).ctlStatus,
	"reset":          (*Service).ctlReset,
}

// handleControl runs one synth/ctl/<verb> request on the worker.
func (s *Service) handleControl(m *bus.Message) {
	verb, _ := m.Topic.At(2).(string)
	h, ok := handlers[verb]
	if !ok {
		s.replyErr(m, errcode.Unsupported)
		return
	}
	rep, err := h(s, m.Payload)
	if err != nil {
		code := errcode.Of(err)
		if code == errcode.Transport {
			s.markFault("transport_error", err)
		}
		s.replyErr(m, code)
		return
	}
	s.markHealthy()
	s.publishChanged()
	if m.CanReply() {
		s.conn.Reply(m, rep, false)
	}
}

func okReply(v any) (types.Reply, error) { return types.Reply{OK: true, Value: v}, nil }

// decode maps payload errors to InvalidPayload.
func decode[T any](p any) (T, error) {
	v, err := types.Decode[T](p)
	if err != nil {
		return v, &errcode.E{C: errcode.InvalidPayload, Err: err}
	}
	return v, nil
}

// -----------------------------------------------------------------------------
// Frequency plan
// -----------------------------------------------------------------------------

func (s *Service) ctlSetFreq(p any) (types.Reply, error) {
	req, err := decode[types.SetFreq](p)
	if err != nil {
		return types.Reply{}, err
	}
	f, err := freqOf(req.Hz)
	if err != nil {
		return types.Reply{}, err
	}
	clk := si5351.Clock(req.Clock)
	res, err := s.dev.SetFreq(f, clk)
	if err != nil {
		return types.Reply{}, errcode.Wrap("set_freq", err)
	}
	rep := types.Reply{OK: res == si5351.Applied, Result: res.String(), Value: s.clockState(clk)}
	if !rep.OK {
		rep.Error = string(errcode.FromResult(res))
	}
	return rep, nil
}

// ctlSetPLL programs and resets a PLL. Outputs already on it are not
// recomputed.
func (s *Service) ctlSetPLL(p any) (types.Reply, error) {
	req, err := decode[types.SetPLL](p)
	if err != nil {
		return types.Reply{}, err
	}
	pll, err := parsePLL(req.PLL)
	if err != nil {
		return types.Reply{}, err
	}
	f, err := freqOf(req.Hz)
	if err != nil {
		return types.Reply{}, err
	}
	if _, err := s.dev.SetPLL(f, pll); err != nil {
		return types.Reply{}, errcode.Wrap("set_pll", err)
	}
	if err := s.dev.PLLReset(pll); err != nil {
		return types.Reply{}, errcode.Wrap("pll_reset", err)
	}
	return okReply(s.pllState(pll))
}

func (s *Service) ctlSetCorrection(p any) (types.Reply, error) {
	req, err := decode[types.SetCorrection](p)
	if err != nil {
		return types.Reply{}, err
	}
	in, err := parseInput(req.Input)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.SetCorrection(req.PPB, in); err != nil {
		return types.Reply{}, errcode.Wrap("set_correction", err)
	}
	return okReply(nil)
}

func (s *Service) ctlSetRefFreq(p any) (types.Reply, error) {
	req, err := decode[types.SetRefFreq](p)
	if err != nil {
		return types.Reply{}, err
	}
	in, err := parseInput(req.Input)
	if err != nil {
		return types.Reply{}, err
	}
	f, err := freqOf(req.Hz)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.SetRefFreq(f, in); err != nil {
		return types.Reply{}, errcode.Wrap("set_ref_freq", err)
	}
	return okReply(nil)
}

func (s *Service) ctlPLLInput(p any) (types.Reply, error) {
	req, err := decode[types.PLLInput](p)
	if err != nil {
		return types.Reply{}, err
	}
	pll, err := parsePLL(req.PLL)
	if err != nil {
		return types.Reply{}, err
	}
	in, err := parseInput(req.Input)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.SetPLLInput(pll, in); err != nil {
		return types.Reply{}, errcode.Wrap("pll_input", err)
	}
	return okReply(s.pllState(pll))
}

func (s *Service) ctlMSSource(p any) (types.Reply, error) {
	req, err := decode[types.MSSource](p)
	if err != nil {
		return types.Reply{}, err
	}
	pll, err := parsePLL(req.PLL)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.SetMSSource(si5351.Clock(req.Clock), pll); err != nil {
		return types.Reply{}, errcode.Wrap("ms_source", err)
	}
	return okReply(nil)
}

func (s *Service) ctlPLLReset(p any) (types.Reply, error) {
	req, err := decode[types.PLLReset](p)
	if err != nil {
		return types.Reply{}, err
	}
	pll, err := parsePLL(req.PLL)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.PLLReset(pll); err != nil {
		return types.Reply{}, errcode.Wrap("pll_reset", err)
	}
	return okReply(nil)
}

func (s *Service) ctlVCXO(p any) (types.Reply, error) {
	req, err := decode[types.VCXO](p)
	if err != nil {
		return types.Reply{}, err
	}
	f, err := freqOf(req.Hz)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.SetVCXO(f, req.PPM); err != nil {
		return types.Reply{}, errcode.Wrap("vcxo", err)
	}
	return okReply(s.pllState(si5351.PLLB))
}

// -----------------------------------------------------------------------------
// Output controls
// -----------------------------------------------------------------------------

func (s *Service) ctlOutputEnable(p any) (types.Reply, error) {
	req, err := decode[types.OutputEnable](p)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.OutputEnable(si5351.Clock(req.Clock), req.Enable); err != nil {
		return types.Reply{}, errcode.Wrap("output_enable", err)
	}
	return okReply(nil)
}

func (s *Service) ctlDriveStrength(p any) (types.Reply, error) {
	req, err := decode[types.DriveStrength](p)
	if err != nil {
		return types.Reply{}, err
	}
	drive, err := parseDrive(req.MA)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.DriveStrength(si5351.Clock(req.Clock), drive); err != nil {
		return types.Reply{}, errcode.Wrap("drive_strength", err)
	}
	return okReply(nil)
}

func (s *Service) ctlClockSource(p any) (types.Reply, error) {
	req, err := decode[types.ClockSource](p)
	if err != nil {
		return types.Reply{}, err
	}
	src, err := parseSource(req.Source)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.SetClockSource(si5351.Clock(req.Clock), src); err != nil {
		return types.Reply{}, errcode.Wrap("clock_source", err)
	}
	return okReply(nil)
}

func (s *Service) ctlClockInvert(p any) (types.Reply, error) {
	req, err := decode[types.ClockInvert](p)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.SetClockInvert(si5351.Clock(req.Clock), req.Invert); err != nil {
		return types.Reply{}, errcode.Wrap("clock_invert", err)
	}
	return okReply(nil)
}

func (s *Service) ctlClockPower(p any) (types.Reply, error) {
	req, err := decode[types.ClockPower](p)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.SetClockPower(si5351.Clock(req.Clock), req.On); err != nil {
		return types.Reply{}, errcode.Wrap("clock_power", err)
	}
	return okReply(nil)
}

func (s *Service) ctlClockDisable(p any) (types.Reply, error) {
	req, err := decode[types.ClockDisable](p)
	if err != nil {
		return types.Reply{}, err
	}
	state, err := parseDisable(req.State)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.SetClockDisable(si5351.Clock(req.Clock), state); err != nil {
		return types.Reply{}, errcode.Wrap("clock_disable", err)
	}
	return okReply(nil)
}

func (s *Service) ctlClockFanout(p any) (types.Reply, error) {
	req, err := decode[types.ClockFanout](p)
	if err != nil {
		return types.Reply{}, err
	}
	fo, err := parseFanout(req.Fanout)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.SetClockFanout(fo, req.Enable); err != nil {
		return types.Reply{}, errcode.Wrap("clock_fanout", err)
	}
	return okReply(nil)
}

func (s *Service) ctlPhase(p any) (types.Reply, error) {
	req, err := decode[types.Phase](p)
	if err != nil {
		return types.Reply{}, err
	}
	if err := s.dev.SetPhase(si5351.Clock(req.Clock), req.Phase); err != nil {
		return types.Reply{}, errcode.Wrap("phase", err)
	}
	return okReply(nil)
}

// -----------------------------------------------------------------------------
// Device
// -----------------------------------------------------------------------------

func (s *Service) ctlStatus(any) (types.Reply, error) {
	st, ist, err := s.dev.UpdateStatus()
	if err != nil {
		return types.Reply{}, errcode.Wrap("status", err)
	}
	v := statusPayload(st, ist)
	s.conn.Publish(s.conn.NewMessage(topicStatus(), v, true))
	return okReply(v)
}

func (s *Service) ctlReset(any) (types.Reply, error) {
	if err := s.dev.Reset(); err != nil {
		return types.Reply{}, errcode.Wrap("reset", err)
	}
	println("Info: synth reset")
	return okReply(nil)
}
