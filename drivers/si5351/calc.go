package si5351

import "clocksynth-go/x/mathx"

// Divider maths. Everything here is pure: callers own the register writes and
// the bookkeeping of what was programmed.

// Corrections beyond +/-10% are not meaningful for a crystal and would
// overflow the fixed-point product below.
const correctionLimit = 100_000_000

// correctRef applies a parts-per-billion correction to ref using 31-bit
// fixed point.
func correctRef(ref Freq, corr int32) Freq {
	if corr == 0 {
		return ref
	}
	c := int64(mathx.Clamp(corr, -correctionLimit, correctionLimit))
	scaled := (int64(ref) << 31) / 1_000_000_000
	return Freq(int64(ref) + (scaled*c)>>31)
}

// pllIntegerPart clamps freq to the VCO range and finds the feedback divider
// integer part. If a falls outside the legal range the target is pulled to
// ref*a instead of the divider being moved.
func pllIntegerPart(freq, ref Freq) (uint32, Freq) {
	freq = mathx.Clamp(freq, VCOMin, VCOMax)
	a := freq / ref
	if !mathx.Between(a, pllAMin, pllAMax) {
		a = mathx.Clamp(a, pllAMin, pllAMax)
		freq = ref * a
	}
	return uint32(a), freq
}

// pllCalc computes the feedback divider for freq and returns the frequency
// the PLL will actually run at.
func pllCalc(freq, ref Freq, corr int32) (RegSet, Freq) {
	ref = correctRef(ref, corr)
	if ref == 0 {
		return RegSet{}, 0
	}
	a, freq := pllIntegerPart(freq, ref)
	b := uint32(uint64(freq%ref) * rfracDenom / uint64(ref))
	c := uint32(1)
	if b != 0 {
		c = rfracDenom
	}
	actual := ref*Freq(a) + Freq(uint64(ref)*uint64(b)/uint64(c))
	return encodeRegSet(a, b, c), actual
}

// pllCalcVCXO is pllCalc with a fixed denominator; it also returns the
// feedback ratio in units of 1/(128*rfracDenom), the base of the VCXO pull
// word.
func pllCalcVCXO(freq, ref Freq, corr int32) (RegSet, uint64, Freq) {
	ref = correctRef(ref, corr)
	if ref == 0 {
		return RegSet{}, 0, 0
	}
	a, freq := pllIntegerPart(freq, ref)
	b := uint32(uint64(freq%ref) * rfracDenom / uint64(ref))
	actual := ref*Freq(a) + Freq(uint64(ref)*uint64(b)/rfracDenom)
	param := 128*uint64(a)*rfracDenom + uint64(b)
	return encodeRegSet(a, b, rfracDenom), param, actual
}

// vcxoPullWord scales the VCXO base by the requested pull range in ppm.
func vcxoPullWord(param uint64, ppm uint8) uint32 {
	ppm = mathx.Clamp(ppm, vcxoPullMin, vcxoPullMax)
	return uint32(param * uint64(ppm) * vcxoMargin / 100 / 1_000_000)
}

// multisynthFree picks the largest integer divider for freq that keeps the
// VCO at or below its maximum, and returns the PLL frequency it needs.
func multisynthFree(freq Freq) (RegSet, bool, Freq) {
	freq = mathx.Clamp(freq, MultisynthMin, MultisynthMax)
	if freq >= MultisynthDivBy4 {
		return divBy4Set, true, 4 * freq
	}
	a := VCOMax / freq
	switch a {
	case 5:
		a = 4
	case 7:
		a = 6
	}
	return encodeRegSet(uint32(a), 0, 1), false, Freq(a) * freq
}

// multisynthLocked computes the divider for freq from a fixed pll and returns
// the output frequency it produces.
func multisynthLocked(freq, pll Freq) (RegSet, bool, Freq) {
	freq = mathx.Clamp(freq, MultisynthMin, MultisynthMax)
	if freq >= MultisynthDivBy4 {
		return divBy4Set, true, pll / 4
	}
	if pll == 0 {
		return RegSet{}, false, 0
	}
	a := pll / freq
	if !mathx.Between(a, msAMin, msAMax) {
		a = mathx.Clamp(a, msAMin, msAMax)
		freq = pll / a
	}
	b := uint32(uint64(pll%freq) * rfracDenom / uint64(freq))
	c := uint32(1)
	if b != 0 {
		c = rfracDenom
	}
	den := uint64(a)*uint64(c) + uint64(b)
	actual := Freq(uint64(pll) * uint64(c) / den)
	return encodeRegSet(uint32(a), b, c), false, actual
}

// multisynth67Free chooses an even integer divider for CLK6/CLK7 and returns
// it with the PLLB frequency it implies. 100 MHz of VCO headroom is held back
// for the sibling output.
func multisynth67Free(freq Freq) (uint8, Freq) {
	freq = mathx.Clamp(freq, MultisynthMin, Multisynth67Max)
	a := (VCOMax - MultisynthShareMax) / freq
	if a%2 != 0 {
		a++
	}
	a = mathx.Clamp(a, msAMin, ms67AMax)
	pll := a * freq
	switch {
	case pll > VCOMax && a-2 >= msAMin:
		a -= 2
	case pll < VCOMin && a+2 <= ms67AMax:
		a += 2
	}
	return uint8(a), a * freq
}

// multisynth67Locked reports the divider for freq against a fixed pll. ok is
// false unless the ratio is an integer within the CLK6/CLK7 range.
func multisynth67Locked(freq, pll Freq) (a uint8, ok bool) {
	freq = mathx.Clamp(freq, MultisynthMin, Multisynth67Max)
	if pll%freq != 0 {
		return 0, false
	}
	ratio := pll / freq
	if !mathx.Between(ratio, msAMin, ms67AMax) {
		return 0, false
	}
	return uint8(ratio), true
}
