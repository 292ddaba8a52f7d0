package si5351

// ---------------- Output control (CLKx_CTRL and friends) ----------------

// OutputEnable drives the OEB bit for clk; the register is active low.
func (d *Device) OutputEnable(clk Clock, enable bool) error {
	if !clk.valid() {
		return ErrInvalidClock
	}
	if err := d.writeField(outputEnableField(clk), boolBit(!enable)); err != nil {
		return err
	}
	d.enabled[clk] = enable
	return nil
}

func (d *Device) DriveStrength(clk Clock, drive Drive) error {
	if !clk.valid() {
		return ErrInvalidClock
	}
	return d.writeField(clkCtrlField(clk, clkCtrlDriveShift, 2), uint8(drive))
}

// SetMSSource selects the PLL feeding clk's multisynth and records the
// assignment used by SetFreq. CLK6 and CLK7 are only ever tuned from PLLB.
func (d *Device) SetMSSource(clk Clock, pll PLL) error {
	if !clk.valid() {
		return ErrInvalidClock
	}
	if !pll.valid() || (clk >= CLK6 && pll != PLLB) {
		return ErrInvalidPLL
	}
	if err := d.writeField(clkCtrlField(clk, clkCtrlPLLSelectShift, 1), uint8(pll)); err != nil {
		return err
	}
	d.pllAssign[clk] = pll
	return nil
}

// SetInt toggles integer mode, which lowers jitter when the divider has no
// fractional part.
func (d *Device) SetInt(clk Clock, enable bool) error {
	if !clk.valid() {
		return ErrInvalidClock
	}
	return d.writeField(clkCtrlField(clk, clkCtrlIntModeShift, 1), boolBit(enable))
}

// SetClockPower powers the output driver up or down (CLK_PDN).
func (d *Device) SetClockPower(clk Clock, on bool) error {
	if !clk.valid() {
		return ErrInvalidClock
	}
	return d.writeField(clkCtrlField(clk, clkCtrlPowerDownShift, 1), boolBit(!on))
}

func (d *Device) SetClockInvert(clk Clock, invert bool) error {
	if !clk.valid() {
		return ErrInvalidClock
	}
	return d.writeField(clkCtrlField(clk, clkCtrlInvertShift, 1), boolBit(invert))
}

// SetClockSource selects the output's input. CLK0 cannot take MS0 as an
// alternate source; that request is ignored.
func (d *Device) SetClockSource(clk Clock, src ClockSource) error {
	if !clk.valid() {
		return ErrInvalidClock
	}
	if src > SourceMS {
		return ErrInvalidInput
	}
	if clk == CLK0 && src == SourceMS0 {
		return nil
	}
	return d.writeField(clkCtrlField(clk, clkCtrlInputShift, 2), uint8(src))
}

func (d *Device) SetClockDisable(clk Clock, state DisableState) error {
	if !clk.valid() {
		return ErrInvalidClock
	}
	return d.writeField(disableStateField(clk), uint8(state))
}

func (d *Device) SetClockFanout(fanout Fanout, enable bool) error {
	f := field{reg: regFanoutEnable, width: 1}
	switch fanout {
	case FanoutCLKIN:
		f.shift = fanoutCLKInShift
	case FanoutXO:
		f.shift = fanoutXtalShift
	case FanoutMS:
		f.shift = fanoutMultiSynShft
	default:
		return ErrInvalidInput
	}
	return d.writeField(f, boolBit(enable))
}

// SetPhase writes the 7-bit phase offset of CLK0..CLK5 in quarter VCO
// periods. The PLL must be reset afterwards for it to take effect.
func (d *Device) SetPhase(clk Clock, phase uint8) error {
	if !clk.valid() || clk > CLK5 {
		return ErrInvalidClock
	}
	return d.writeReg(regCLK0PhaseOffset+byte(clk), phase&phaseMask)
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
