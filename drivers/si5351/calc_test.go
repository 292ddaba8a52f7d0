package si5351

import "testing"

func TestEncodeRegSet(t *testing.T) {
	tests := []struct {
		name       string
		a, b, c    uint32
		p1, p2, p3 uint32
	}{
		{"integer", 32, 0, 1, 3584, 0, 1},
		{"fraction", 35, 200000, 1000000, 3993, 600000, 1000000},
		{"ms max", 1800, 0, 1, 229888, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encodeRegSet(tt.a, tt.b, tt.c)
			if got.P1 != tt.p1 || got.P2 != tt.p2 || got.P3 != tt.p3 {
				t.Fatalf("got %+v, want {%d %d %d}", got, tt.p1, tt.p2, tt.p3)
			}
			if got.P1 > p1Max || got.P2 > p2Max || got.P3 > p3Max {
				t.Fatalf("field overflow: %+v", got)
			}
			num, den := got.Ratio()
			if num*uint64(tt.c) != den*(uint64(tt.a)*uint64(tt.c)+uint64(tt.b)) {
				t.Fatalf("ratio %d/%d != %d + %d/%d", num, den, tt.a, tt.b, tt.c)
			}
		})
	}
}

func TestSelectRDiv(t *testing.T) {
	tests := []struct {
		in   Freq
		min  Freq
		want RDiv
	}{
		{ClkOutMin, ClkOutMin, RDiv128},
		{2*ClkOutMin - 1, ClkOutMin, RDiv128},
		{2 * ClkOutMin, ClkOutMin, RDiv64},
		{4*ClkOutMin - 1, ClkOutMin, RDiv64},
		{4 * ClkOutMin, ClkOutMin, RDiv32},
		{64 * ClkOutMin, ClkOutMin, RDiv2},
		{128*ClkOutMin - 1, ClkOutMin, RDiv2},
		{128 * ClkOutMin, ClkOutMin, RDiv1},
		{MHz(10), ClkOutMin, RDiv1},
		{ClkOut67Min, ClkOut67Min, RDiv128},
		{KHz(50), ClkOut67Min, RDiv64},
		{ClkOutMin, ClkOut67Min, RDiv1},
	}
	for _, tt := range tests {
		got, f := selectRDiv(tt.in, tt.min)
		if got != tt.want {
			t.Errorf("selectRDiv(%d, %d) = %d, want %d", tt.in, tt.min, got, tt.want)
		}
		if f != tt.in*Freq(got.Divider()) {
			t.Errorf("selectRDiv(%d) scaled to %d", tt.in, f)
		}
	}
}

func TestClkOut67Min(t *testing.T) {
	if ClkOut67Min != Hz(18454) {
		t.Fatalf("ClkOut67Min = %d", ClkOut67Min)
	}
}

func TestCorrectRef(t *testing.T) {
	ref := Hz(XtalFreqDefault)
	if got := correctRef(ref, 0); got != ref {
		t.Fatalf("zero correction moved ref to %d", got)
	}
	if d := correctRef(ref, 1000) - ref; d != 2500 {
		t.Fatalf("+1000 ppb delta = %d, want 2500", d)
	}
	if d := ref - correctRef(ref, -1000); d < 2500 || d > 2501 {
		t.Fatalf("-1000 ppb delta = %d", d)
	}
}

func TestPLLCalc(t *testing.T) {
	ref := Hz(XtalFreqDefault)

	regs, got := pllCalc(PLLFixed, ref, 0)
	if got != PLLFixed || regs != encodeRegSet(32, 0, 1) {
		t.Fatalf("800 MHz: %+v %d", regs, got)
	}

	// VCO clamps.
	if _, got := pllCalc(MHz(100), ref, 0); got != VCOMin {
		t.Fatalf("low clamp: %d", got)
	}
	if _, got := pllCalc(MHz(1000), ref, 0); got != VCOMax {
		t.Fatalf("high clamp: %d", got)
	}

	// a out of range moves the target, not just the divider.
	regs, got = pllCalc(MHz(600), MHz(42), 0)
	if got != MHz(630) || regs != encodeRegSet(15, 0, 1) {
		t.Fatalf("a<15: %+v %d", regs, got)
	}
	regs, got = pllCalc(MHz(900), MHz(5), 0)
	if got != MHz(450) || regs != encodeRegSet(90, 0, 1) {
		t.Fatalf("a>90: %+v %d", regs, got)
	}

	// Truncated fraction: the achievable frequency is what the fields encode.
	regs, got = pllCalc(Hz(790_123_392), ref, 0)
	num, den := regs.Ratio()
	if want := Freq(uint64(ref) * num / den); got != want {
		t.Fatalf("achievable %d, fields give %d", got, want)
	}
}

func TestPLLCalcCorrectionShift(t *testing.T) {
	ref := Hz(XtalFreqDefault)
	_, base := pllCalc(PLLFixed, ref, 0)
	regs, corr := pllCalc(PLLFixed, ref, 1000)

	refC := ref + ref*1000/1_000_000_000
	if corr >= base {
		t.Fatalf("faster reference should pull the PLL down: %d >= %d", corr, base)
	}
	num, den := regs.Ratio()
	// Recompute from fields against the shifted reference.
	full := uint64(refC)*(num/den) + uint64(refC)*(num%den)/den
	if d := int64(full) - int64(corr); d < -1 || d > 1 {
		t.Fatalf("corrected %d, fields give %d", corr, full)
	}
}

func TestPLLCalcVCXO(t *testing.T) {
	regs, param, got := pllCalcVCXO(PLLFixed, Hz(XtalFreqDefault), 0)
	if got != PLLFixed {
		t.Fatalf("freq %d", got)
	}
	if regs.P3 != rfracDenom {
		t.Fatalf("VCXO denominator %d", regs.P3)
	}
	if param != 128*32*rfracDenom {
		t.Fatalf("param %d", param)
	}
	if w := vcxoPullWord(param, 50); w != 210944 {
		t.Fatalf("pull word %d", w)
	}
	if vcxoPullWord(param, 10) != vcxoPullWord(param, vcxoPullMin) {
		t.Fatal("ppm not clamped low")
	}
	if vcxoPullWord(param, 250) != vcxoPullWord(param, vcxoPullMax) {
		t.Fatal("ppm not clamped high")
	}
}

func TestMultisynthFree(t *testing.T) {
	tests := []struct {
		in     Freq
		a      uint32
		divBy4 bool
		pll    Freq
	}{
		{MHz(110), 8, false, MHz(880)},
		{MHz(120), 6, false, MHz(720)}, // 7 -> 6
		{MHz(160), 4, true, MHz(640)},
		{MHz(150), 4, true, MHz(600)},
		{MHz(300), 4, true, MHz(900)}, // clamped to 225
	}
	for _, tt := range tests {
		regs, div4, pll := multisynthFree(tt.in)
		if div4 != tt.divBy4 {
			t.Errorf("%d: divBy4 %v", tt.in, div4)
		}
		if !div4 && regs != encodeRegSet(tt.a, 0, 1) {
			t.Errorf("%d: regs %+v", tt.in, regs)
		}
		if div4 && regs != divBy4Set {
			t.Errorf("%d: divBy4 regs %+v", tt.in, regs)
		}
		if pll != tt.pll {
			t.Errorf("%d: pll %d, want %d", tt.in, pll, tt.pll)
		}
	}
	regs, _, pll := multisynthFree(MHz(140))
	if regs != encodeRegSet(6, 0, 1) || pll != MHz(840) {
		t.Fatalf("140 MHz: %+v %d", regs, pll)
	}
}

func TestMultisynthLockedClampsByMovingFreq(t *testing.T) {
	// 800/140 = 5 < 6: the output becomes 800/6.
	regs, div4, got := multisynthLocked(MHz(140), MHz(800))
	if div4 || regs != encodeRegSet(6, 0, 1) {
		t.Fatalf("regs %+v div4 %v", regs, div4)
	}
	if got != MHz(800)/6 {
		t.Fatalf("got %d, want %d", got, MHz(800)/6)
	}

	// Below the multisynth floor the frequency saturates to 500 kHz.
	regs, _, got = multisynthLocked(KHz(100), MHz(800))
	if regs != encodeRegSet(1600, 0, 1) || got != KHz(500) {
		t.Fatalf("low: %+v %d", regs, got)
	}

	regs, _, got = multisynthLocked(KHz(400), MHz(900))
	if regs != encodeRegSet(1800, 0, 1) || got != KHz(500) {
		t.Fatalf("a=1800: %+v %d", regs, got)
	}

	if regs, _, got := multisynthLocked(MHz(10), 0); got != 0 || regs != (RegSet{}) {
		t.Fatalf("zero pll: %+v %d", regs, got)
	}
}

func TestMultisynthLockedFraction(t *testing.T) {
	pll := MHz(800)
	for _, f := range []Freq{Hz(14_097_000), Hz(3_579_545), Hz(27_123_450), KHz(512), MHz(99)} {
		regs, _, got := multisynthLocked(f, pll)
		num, den := regs.Ratio()
		fromRegs := Freq(uint64(pll) * den / num)
		if d := int64(fromRegs) - int64(got); d < -1 || d > 1 {
			t.Errorf("%d: returned %d, fields give %d", f, got, fromRegs)
		}
		if diff := absDiff(got, f); diff > f/1_000_000+1 {
			t.Errorf("%d: off by %d", f, diff)
		}
	}
}

func TestMultisynth67Free(t *testing.T) {
	tests := []struct {
		in  Freq
		a   uint8
		pll Freq
	}{
		{MHz(10), 80, MHz(800)},
		{MHz(7), 114, MHz(798)},
		{MHz(13), 62, MHz(806)},
		{MHz(3), 254, MHz(762)},
		{MHz(149), 6, MHz(894)},
		{KHz(500), 254, KHz(127_000)}, // no even step keeps a <= 254
	}
	for _, tt := range tests {
		a, pll := multisynth67Free(tt.in)
		if a != tt.a || pll != tt.pll {
			t.Errorf("%d: a=%d pll=%d, want a=%d pll=%d", tt.in, a, pll, tt.a, tt.pll)
		}
		if a%2 != 0 {
			t.Errorf("%d: odd divider %d", tt.in, a)
		}
	}
}

func TestMultisynth67Locked(t *testing.T) {
	if a, ok := multisynth67Locked(MHz(5), MHz(800)); !ok || a != 160 {
		t.Fatalf("5 MHz: a=%d ok=%v", a, ok)
	}
	if _, ok := multisynth67Locked(MHz(7), MHz(800)); ok {
		t.Fatal("7 MHz divides 800 MHz?")
	}
	if _, ok := multisynth67Locked(MHz(1), MHz(800)); ok {
		t.Fatal("ratio 800 accepted")
	}
	if _, ok := multisynth67Locked(MHz(10), 0); ok {
		t.Fatal("zero pll accepted")
	}
}

func absDiff(a, b Freq) Freq {
	if a > b {
		return a - b
	}
	return b - a
}
