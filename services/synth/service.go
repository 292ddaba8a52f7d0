// Package synth owns one Si5351 on an I2C bus and exposes it on the bus.
//
// Controls arrive on synth/ctl/<verb> and are queued to a single worker,
// which is the only goroutine touching the driver. Clock, PLL and chip
// status are published retained under synth/.
package synth

import (
	"context"
	"sync/atomic"
	"time"

	"clocksynth-go/bus"
	"clocksynth-go/drivers/si5351"
	"clocksynth-go/errcode"
	"clocksynth-go/types"
	"clocksynth-go/x/timex"

	"tinygo.org/x/drivers"
)

const (
	queueLen           = 8
	defaultInitTimeout = 500 * time.Millisecond
	defaultPoll        = time.Second
)

// job is one unit of worker input. Exactly one field is set.
type job struct {
	cfg  *types.SynthConfig
	msg  *bus.Message
	poll bool
}

type Service struct {
	conn *bus.Connection
	i2c  drivers.I2C

	jobs  chan job
	ready atomic.Bool

	// Worker-owned from here down.
	dev     *si5351.Device
	healthy bool
	locked  bool

	lastClk [si5351.NumClocks]types.ClockState
	pubClk  [si5351.NumClocks]bool
	lastPLL [2]types.PLLState
	pubPLL  [2]bool
}

func New(conn *bus.Connection, i2c drivers.I2C) *Service {
	return &Service{
		conn: conn,
		i2c:  i2c,
		jobs: make(chan job, queueLen),
	}
}

// Run blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig())
	ctrlSub := s.conn.Subscribe(ctrlWildcard())
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.pubState(types.LevelIdle, "awaiting_config", nil)
	go s.work(ctx)

	var (
		tick  *time.Ticker
		tickC <-chan time.Time
	)
	defer func() {
		if tick != nil {
			tick.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.pubState(types.LevelStopped, "context_cancelled", nil)
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			cfg, err := types.Decode[types.SynthConfig](msg.Payload)
			if err != nil {
				println("Warn: synth config decode failed:", err.Error())
				s.pubState(types.LevelError, "config_decode_failed", err)
				continue
			}
			// Config is never dropped; wait for room.
			select {
			case s.jobs <- job{cfg: &cfg}:
			case <-ctx.Done():
				continue
			}
			if tick != nil {
				tick.Stop()
				tick, tickC = nil, nil
			}
			if every := timex.Ms(cfg.PollMS, defaultPoll); every > 0 {
				tick = time.NewTicker(every)
				tickC = tick.C
			}
		case msg, ok := <-ctrlSub.Channel():
			if !ok {
				return
			}
			if !s.ready.Load() {
				s.replyErr(msg, errcode.NotReady)
				continue
			}
			select {
			case s.jobs <- job{msg: msg}:
			default:
				s.replyErr(msg, errcode.Busy)
			}
		case <-tickC:
			if !s.ready.Load() {
				continue
			}
			// Skip the poll rather than queue behind controls.
			select {
			case s.jobs <- job{poll: true}:
			default:
			}
		}
	}
}

func (s *Service) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			switch {
			case j.cfg != nil:
				s.applyConfig(ctx, *j.cfg)
			case j.msg != nil:
				s.handleControl(j.msg)
			case j.poll:
				s.poll()
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

func (s *Service) applyConfig(ctx context.Context, cfg types.SynthConfig) {
	s.ready.Store(false)

	load, err := crystalLoad(cfg.CrystalLoadPF)
	if err != nil {
		s.pubState(types.LevelError, "config_invalid", err)
		return
	}
	dcfg := si5351.Config{
		Address:     cfg.Address,
		CrystalLoad: load,
		XtalFreq:    cfg.XtalHz,
		Correction:  cfg.CorrectionPPB,
		ClkinFreq:   cfg.ClkinHz,
	}
	dev := si5351.New(s.i2c, dcfg)

	ictx, cancel := context.WithTimeout(ctx, timex.Ms(cfg.InitTimeoutMS, defaultInitTimeout))
	err = dev.Configure(ictx, dcfg)
	cancel()
	if err != nil {
		println("Warn: synth init failed:", err.Error())
		s.pubState(types.LevelError, "init_failed", errcode.Wrap("configure", err))
		return
	}

	s.dev = dev
	s.healthy = true
	s.pubClk = [si5351.NumClocks]bool{}
	s.pubPLL = [2]bool{}

	level, status := types.LevelReady, "configured"
	var outErr error
	for _, o := range cfg.Outputs {
		if err := s.applyOutput(o); err != nil {
			println("Warn: synth output", o.Clock, "not applied:", err.Error())
			level, status, outErr = types.LevelDegraded, "output_failed", err
		}
	}
	s.publishChanged()
	s.poll()
	s.ready.Store(true)
	s.pubState(level, status, outErr)
	println("Info: synth configured, xtal", dev.RefFreq(si5351.InputXO).Hz(), "Hz,", len(cfg.Outputs), "outputs")
}

func (s *Service) applyOutput(o types.OutputConfig) error {
	f, err := freqOf(o.Hz)
	if err != nil {
		return err
	}
	clk := si5351.Clock(o.Clock)
	res, err := s.dev.SetFreq(f, clk)
	if err != nil {
		return errcode.Wrap("set_freq", err)
	}
	if res != si5351.Applied {
		return &errcode.E{C: errcode.FromResult(res), Op: "set_freq"}
	}
	if o.DriveMA != 0 {
		drive, err := parseDrive(o.DriveMA)
		if err != nil {
			return err
		}
		if err := s.dev.DriveStrength(clk, drive); err != nil {
			return errcode.Wrap("drive_strength", err)
		}
	}
	if o.Invert {
		if err := s.dev.SetClockInvert(clk, true); err != nil {
			return errcode.Wrap("clock_invert", err)
		}
	}
	if o.Phase != 0 {
		if err := s.dev.SetPhase(clk, o.Phase); err != nil {
			return errcode.Wrap("phase", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Status polling
// -----------------------------------------------------------------------------

func (s *Service) poll() {
	st, ist, err := s.dev.UpdateStatus()
	if err != nil {
		s.markFault("status_read_failed", errcode.Wrap("status", err))
		return
	}
	s.markHealthy()
	if st.Locked() != s.locked {
		s.locked = st.Locked()
		if s.locked {
			println("Info: synth PLLs locked")
		} else {
			println("Warn: synth lost lock, LOL_A", st.LOLA, "LOL_B", st.LOLB)
		}
	}
	s.conn.Publish(s.conn.NewMessage(topicStatus(), statusPayload(st, ist), true))
}

func statusPayload(st si5351.Status, ist si5351.IntStatus) types.SynthStatus {
	return types.SynthStatus{
		SysInit:       st.SysInit,
		LOLA:          st.LOLA,
		LOLB:          st.LOLB,
		LOS:           st.LOS,
		RevID:         st.RevID,
		Locked:        st.Locked(),
		StickySysInit: ist.SysInit,
		StickyLOLA:    ist.LOLA,
		StickyLOLB:    ist.LOLB,
		StickyLOS:     ist.LOS,
		TSms:          timex.NowMs(),
	}
}

// markFault reports a transport failure once per fault episode.
func (s *Service) markFault(status string, err error) {
	if !s.healthy {
		return
	}
	s.healthy = false
	println("Warn: synth", status+":", err.Error())
	s.pubState(types.LevelDegraded, status, err)
}

func (s *Service) markHealthy() {
	if s.healthy {
		return
	}
	s.healthy = true
	println("Info: synth transport recovered")
	s.pubState(types.LevelReady, "recovered", nil)
}

// -----------------------------------------------------------------------------
// Publication
// -----------------------------------------------------------------------------

func (s *Service) clockState(clk si5351.Clock) types.ClockState {
	f := s.dev.ClockFreq(clk)
	return types.ClockState{
		Clock:   uint8(clk),
		Hz:      hzOf(f),
		CentiHz: uint64(f),
		PLL:     pllName(s.dev.PLLAssignment(clk)),
		Enabled: s.dev.Enabled(clk),
	}
}

func (s *Service) pllState(pll si5351.PLL) types.PLLState {
	f := s.dev.PLLFreq(pll)
	return types.PLLState{
		PLL:     pllName(pll),
		Hz:      hzOf(f),
		CentiHz: uint64(f),
		Input:   inputName(s.dev.PLLInputOf(pll)),
	}
}

// publishChanged republishes the retained clock and PLL topics whose
// content differs from what was last sent.
func (s *Service) publishChanged() {
	for clk := si5351.CLK0; clk <= si5351.CLK7; clk++ {
		cs := s.clockState(clk)
		if s.pubClk[clk] && s.lastClk[clk] == cs {
			continue
		}
		s.lastClk[clk], s.pubClk[clk] = cs, true
		s.conn.Publish(s.conn.NewMessage(topicClock(int(clk)), cs, true))
	}
	for pll := si5351.PLLA; pll <= si5351.PLLB; pll++ {
		ps := s.pllState(pll)
		if s.pubPLL[pll] && s.lastPLL[pll] == ps {
			continue
		}
		s.lastPLL[pll], s.pubPLL[pll] = ps, true
		s.conn.Publish(s.conn.NewMessage(topicPLL(ps.PLL), ps, true))
	}
}

func (s *Service) pubState(level, status string, err error) {
	st := types.ServiceState{Level: level, Status: status, TSms: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicState(), st, true))
}

func (s *Service) replyErr(m *bus.Message, code errcode.Code) {
	if !m.CanReply() {
		return
	}
	if code == "" {
		code = errcode.Error
	}
	s.conn.Reply(m, types.Reply{OK: false, Error: string(code)}, false)
}
