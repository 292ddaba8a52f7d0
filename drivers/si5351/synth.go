package si5351

import "clocksynth-go/x/mathx"

// SetFreq programs clk to freq and reports whether the request was applied.
//
// CLK0..CLK5 normally divide their PLL as it stands. Above 100 MHz the PLL is
// retuned for the new output and every other active output on it is
// recomputed, so only one output per PLL may sit above 100 MHz. CLK6 and
// CLK7 share PLLB with an even integer ratio; once one is set the other must
// divide PLLB exactly.
//
// freq == 0 disables the output. Out-of-range frequencies saturate.
// Rejections leave registers and state untouched.
func (d *Device) SetFreq(freq Freq, clk Clock) (Result, error) {
	switch {
	case !clk.valid():
		return Applied, ErrInvalidClock
	case freq == 0:
		return Applied, d.disableClock(clk)
	case clk <= CLK5:
		return d.setFreqMS(freq, clk)
	}
	return d.setFreqMS67(freq, clk)
}

func (d *Device) setFreqMS(freq Freq, clk Clock) (Result, error) {
	freq = mathx.Clamp(freq, ClkOutMin, MultisynthMax)
	pll := d.pllAssign[clk]

	if freq <= MultisynthShareMax {
		d.clkFreq[clk] = freq
		if err := d.enableOnce(clk); err != nil {
			return Applied, err
		}
		rdiv, msFreq := selectRDiv(freq, ClkOutMin)
		regs, _, _ := multisynthLocked(msFreq, d.pllFreq[pll])
		return Applied, d.setMS(clk, regs, false, rdiv, false)
	}

	for other := CLK0; other <= CLK5; other++ {
		if other != clk && d.pllAssign[other] == pll && d.clkFreq[other] > MultisynthShareMax {
			return RejectedSharedPLL, nil
		}
	}
	if err := d.enableOnce(clk); err != nil {
		return Applied, err
	}
	d.clkFreq[clk] = freq

	_, _, pllFreq := multisynthFree(freq)
	if _, err := d.SetPLL(pllFreq, pll); err != nil {
		return Applied, err
	}
	if err := d.retune(pll); err != nil {
		return Applied, err
	}
	return Applied, d.PLLReset(pll)
}

// retune recomputes every active CLK0..CLK5 divider fed by pll.
func (d *Device) retune(pll PLL) error {
	for clk := CLK0; clk <= CLK5; clk++ {
		if d.clkFreq[clk] == 0 || d.pllAssign[clk] != pll {
			continue
		}
		rdiv, msFreq := selectRDiv(d.clkFreq[clk], ClkOutMin)
		regs, divBy4, _ := multisynthLocked(msFreq, d.pllFreq[pll])
		if err := d.setMS(clk, regs, divBy4, rdiv, divBy4); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) setFreqMS67(freq Freq, clk Clock) (Result, error) {
	// The low clamp lands on the CLK0..5 minimum, below what CLK6/7 can
	// reach; kept to match the reference behaviour.
	if freq < ClkOut67Min {
		freq = ClkOutMin
	}
	if freq >= Multisynth67Max {
		freq = Multisynth67Max - 1
	}

	sibling := CLK7
	if clk == CLK7 {
		sibling = CLK6
	}
	rdiv, msFreq := selectRDiv(freq, ClkOut67Min)

	var (
		a       uint8
		pllFreq Freq
	)
	if d.clkFreq[sibling] != 0 {
		// The sibling divides the requested PLLB frequency exactly; the
		// achieved one may be truncated by the feedback fraction.
		pllb := d.pllTarget[PLLB]
		if pllb%msFreq != 0 || (pllb/msFreq)%2 != 0 {
			return RejectedNonIntegerRatio, nil
		}
		var ok bool
		if a, ok = multisynth67Locked(msFreq, pllb); !ok {
			return RejectedNonIntegerRatio, nil
		}
	} else {
		a, pllFreq = multisynth67Free(msFreq)
	}

	d.clkFreq[clk] = freq
	if err := d.enableOnce(clk); err != nil {
		return Applied, err
	}
	if pllFreq != 0 {
		if _, err := d.SetPLL(pllFreq, PLLB); err != nil {
			return Applied, err
		}
	}
	return Applied, d.setMS67(clk, a, rdiv)
}

// SetFreqManual programs CLK0..CLK5 against an explicit PLL frequency. The
// PLL is set first and the output enabled; no sharing checks are made, so
// the caller keeps the other outputs on that PLL consistent.
func (d *Device) SetFreqManual(freq, pllFreq Freq, clk Clock) error {
	if !clk.valid() || clk > CLK5 {
		return ErrInvalidClock
	}
	freq = mathx.Clamp(freq, ClkOutMin, MultisynthMax)
	d.clkFreq[clk] = freq

	pll := d.pllAssign[clk]
	if _, err := d.SetPLL(pllFreq, pll); err != nil {
		return err
	}
	if err := d.OutputEnable(clk, true); err != nil {
		return err
	}
	d.firstSet[clk] = true

	rdiv, msFreq := selectRDiv(freq, ClkOutMin)
	regs, divBy4, _ := multisynthLocked(msFreq, d.pllFreq[pll])
	return d.setMS(clk, regs, divBy4, rdiv, divBy4)
}

func (d *Device) enableOnce(clk Clock) error {
	if d.firstSet[clk] {
		return nil
	}
	if err := d.OutputEnable(clk, true); err != nil {
		return err
	}
	d.firstSet[clk] = true
	return nil
}

func (d *Device) disableClock(clk Clock) error {
	d.clkFreq[clk] = 0
	d.firstSet[clk] = false
	return d.OutputEnable(clk, false)
}

// SetPLL programs pll to freq against its current reference and correction
// and returns the frequency actually achieved.
func (d *Device) SetPLL(freq Freq, pll PLL) (Freq, error) {
	if !pll.valid() {
		return 0, ErrInvalidPLL
	}
	in := d.pllRef[pll]
	regs, actual := pllCalc(freq, d.refFreq[in], d.refCorr[in])

	var buf [paramsLength]byte
	regs.pack(buf[:], 0)
	if err := d.writeRegs(pll.paramsReg(), buf[:]); err != nil {
		return 0, err
	}
	d.pllTarget[pll] = freq
	d.pllFreq[pll] = actual
	return actual, nil
}

func (d *Device) PLLReset(pll PLL) error {
	switch pll {
	case PLLA:
		return d.writeReg(regPLLReset, pllResetA)
	case PLLB:
		return d.writeReg(regPLLReset, pllResetB)
	}
	return ErrInvalidPLL
}

// setMS writes a CLK0..CLK5 parameter block and its mode bits. The R divider
// and divide-by-4 bits sharing byte 2 are preserved by the block write and
// then set explicitly.
func (d *Device) setMS(clk Clock, regs RegSet, intMode bool, rdiv RDiv, divBy4 bool) error {
	base := regCLK0Params + byte(clk)*paramsLength
	keep, err := d.readReg(base + msParamsDivByteOffs)
	if err != nil {
		return err
	}
	var buf [paramsLength]byte
	regs.pack(buf[:], keep)
	if err := d.writeRegs(base, buf[:]); err != nil {
		return err
	}
	if err := d.SetInt(clk, intMode); err != nil {
		return err
	}
	return d.msDiv(clk, rdiv, divBy4)
}

func (d *Device) setMS67(clk Clock, a uint8, rdiv RDiv) error {
	if err := d.writeReg(regCLK6Params+byte(clk-CLK6), a); err != nil {
		return err
	}
	return d.msDiv(clk, rdiv, false)
}

func (d *Device) msDiv(clk Clock, rdiv RDiv, divBy4 bool) error {
	switch clk {
	case CLK6:
		return d.writeField(field{reg: regCLK6and7OutDiv, shift: ms67RDivCLK6Shift, width: 3}, uint8(rdiv))
	case CLK7:
		return d.writeField(field{reg: regCLK6and7OutDiv, shift: ms67RDivCLK7Shift, width: 3}, uint8(rdiv))
	}
	set := byte(rdiv&0x07) << msRDivShift
	if divBy4 {
		set |= msDivBy4 << msDivBy4Shift
	}
	return d.modifyBitmaskRegister(regCLK0Params+byte(clk)*paramsLength+msParamsDivByteOffs, set, 0x7C)
}

// SetCorrection stores a ppb correction for in and reprograms both PLLs
// towards their last requested frequencies.
func (d *Device) SetCorrection(corr int32, in PLLInput) error {
	if !in.valid() {
		return ErrInvalidInput
	}
	d.refCorr[in] = corr
	return d.reprogramPLLs()
}

func (d *Device) reprogramPLLs() error {
	for pll := PLLA; pll <= PLLB; pll++ {
		if _, err := d.SetPLL(d.pllTarget[pll], pll); err != nil {
			return err
		}
	}
	return nil
}

// SetRefFreq records the raw frequency of a reference input. Up to 30 MHz it
// is used directly; up to 60 MHz and 100 MHz the input prescaler divides it
// by 2 and 4. Faster references are ignored. The PLLs are not reprogrammed.
func (d *Device) SetRefFreq(freq Freq, in PLLInput) error {
	if !in.valid() || freq == 0 {
		return ErrInvalidInput
	}
	var div uint8
	switch {
	case freq <= Hz(30_000_000):
	case freq <= Hz(60_000_000):
		div = 1
	case freq <= refRawMax:
		div = 2
	default:
		return nil
	}
	d.refFreq[in] = freq >> div
	if in == InputCLKIN {
		d.clkinDiv = div
	}
	return nil
}

// SetPLLInput selects the reference for pll. Selecting CLKIN also programs
// the CLKIN prescaler chosen by SetRefFreq. Both PLLs are reprogrammed.
func (d *Device) SetPLLInput(pll PLL, in PLLInput) error {
	if !pll.valid() {
		return ErrInvalidPLL
	}
	if !in.valid() {
		return ErrInvalidInput
	}
	src := field{reg: regPLLInputSource, shift: pllInputPLLAShift, width: 1}
	if pll == PLLB {
		src.shift = pllInputPLLBShift
	}
	div := field{reg: regPLLInputSource, shift: pllInputClkinDivShift, width: 2}

	var err error
	if in == InputCLKIN {
		err = d.modifyBitmaskRegister(regPLLInputSource, src.bits(1)|div.bits(d.clkinDiv), div.mask())
	} else {
		err = d.modifyBitmaskRegister(regPLLInputSource, 0, src.mask())
	}
	if err != nil {
		return err
	}
	d.pllRef[pll] = in
	return d.reprogramPLLs()
}

// SetVCXO programs PLLB for VCXO operation (Si5351B) at pllFreq with a pull
// range of ppm, clamped to [30, 240].
func (d *Device) SetVCXO(pllFreq Freq, ppm uint8) error {
	in := d.pllRef[PLLB]
	regs, param, actual := pllCalcVCXO(pllFreq, d.refFreq[in], d.refCorr[in])

	var buf [paramsLength]byte
	regs.pack(buf[:], 0)
	if err := d.writeRegs(regPLLBParams, buf[:]); err != nil {
		return err
	}
	d.pllTarget[PLLB] = pllFreq
	d.pllFreq[PLLB] = actual

	word := vcxoPullWord(param, ppm)
	return d.writeRegs(regVCXOParams, []byte{
		byte(word),
		byte(word >> 8),
		byte(word>>16) & 0x3F,
	})
}
