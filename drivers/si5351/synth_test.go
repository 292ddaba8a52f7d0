package si5351

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"testing"
	"time"

	"clocksynth-go/x/i2cmem"

	"periph.io/x/periph/conn/i2c/i2ctest"
)

type rig struct {
	dev *Device
	mem *i2cmem.Device
	rec *i2ctest.Record
}

func newRig(t *testing.T) *rig {
	t.Helper()
	mem := i2cmem.New(AddressDefault)
	rec := &i2ctest.Record{Bus: mem}
	dev := New(rec, Config{})
	if err := dev.Configure(context.Background(), Config{CrystalLoad: Load10pF}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	rec.Ops = nil
	return &rig{dev: dev, mem: mem, rec: rec}
}

func (r *rig) ops() []i2ctest.IO {
	out := r.rec.Ops
	r.rec.Ops = nil
	return out
}

// outputFreq rebuilds the frequency on clk's pin from the register file.
func (r *rig) outputFreq(t *testing.T, clk Clock) *big.Rat {
	t.Helper()
	pll := r.dev.PLLAssignment(clk)
	if clk >= CLK6 {
		pll = PLLB
	}
	pp, err := r.dev.ReadPLLParams(pll)
	if err != nil {
		t.Fatal(err)
	}
	ms, err := r.dev.ReadMSParams(clk)
	if err != nil {
		t.Fatal(err)
	}
	ref := new(big.Rat).SetInt64(int64(correctRef(r.dev.RefFreq(InputXO), r.dev.Correction(InputXO))))
	pn, pd := pp.Regs.Ratio()
	vco := new(big.Rat).Mul(ref, ratio(pn, pd))
	mn, md := ms.Ratio()
	return new(big.Rat).Quo(vco, ratio(mn, md))
}

func ratio(num, den uint64) *big.Rat {
	return new(big.Rat).SetFrac(new(big.Int).SetUint64(num), new(big.Int).SetUint64(den))
}

func within(got *big.Rat, want Freq) bool {
	diff := new(big.Rat).Sub(got, new(big.Rat).SetInt64(int64(want)))
	diff.Abs(diff)
	tol := new(big.Rat).SetInt64(int64(want/1_000_000 + 1))
	return diff.Cmp(tol) <= 0
}

func TestConfigureProgramsBaseline(t *testing.T) {
	r := newRig(t)
	if got := r.mem.Reg(regCrystalLoad); got != 0xD2 {
		t.Fatalf("crystal load = %#x", got)
	}
	if got := r.mem.Reg(regOutputEnableCtrl); got != 0xFF {
		t.Fatalf("outputs should start disabled, OE = %#x", got)
	}
	for clk := CLK0; clk <= CLK7; clk++ {
		want := byte(clkCtrlDefault)
		if clk >= CLK6 {
			want |= 1 << clkCtrlPLLSelectShift
		}
		if got := r.mem.Reg(regCLK0Ctrl + byte(clk)); got != want {
			t.Errorf("%v ctrl = %#x, want %#x", clk, got, want)
		}
	}
	want := []byte{0x00, 0x01, 0x00, 0x0E, 0x00, 0x00, 0x00, 0x00}
	if got := r.mem.Regs(regPLLAParams, 8); !reflect.DeepEqual(got, want) {
		t.Fatalf("PLLA params % x", got)
	}
	if r.dev.PLLFreq(PLLA) != PLLFixed || r.dev.PLLFreq(PLLB) != PLLFixed {
		t.Fatalf("PLLs not at 800 MHz")
	}
}

func TestConfigureTimeout(t *testing.T) {
	mem := i2cmem.New(AddressDefault)
	mem.SetReg(regDeviceStatus, statusSysInit)
	dev := New(mem, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := dev.Configure(ctx, Config{})
	if !errors.Is(err, ErrInitTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want init timeout, got %v", err)
	}
}

func TestConfigureWaitsForSysInit(t *testing.T) {
	mem := i2cmem.New(AddressDefault)
	polls := 0
	mem.OnRead(func(reg, v byte) byte {
		if reg == regDeviceStatus {
			polls++
			if polls < 3 {
				return statusSysInit
			}
		}
		return v
	})
	dev := New(mem, Config{})
	if err := dev.Configure(context.Background(), Config{}); err != nil {
		t.Fatal(err)
	}
	if polls != 3 {
		t.Fatalf("polls = %d", polls)
	}
}

func TestSetFreqRoundTrip(t *testing.T) {
	freqs := []Freq{
		ClkOutMin, Hz(5_000), Hz(16_000), KHz(100), KHz(455), MHz(1),
		Hz(3_579_545), Hz(10_000_000), Hz(14_097_100), Hz(27_123_450),
		Hz(50_000_000), Hz(99_990_000), MultisynthShareMax,
		MHz(110), MHz(148), MHz(150), MHz(200), MultisynthMax,
	}
	for _, f := range freqs {
		r := newRig(t)
		res, err := r.dev.SetFreq(f, CLK0)
		if err != nil || res != Applied {
			t.Fatalf("%d: %v %v", f, res, err)
		}
		if got := r.outputFreq(t, CLK0); !within(got, f) {
			t.Errorf("%d: programmed %s", f, got.FloatString(2))
		}
	}
}

func TestSetFreqRoundTrip67(t *testing.T) {
	for _, f := range []Freq{KHz(50), MHz(2), MHz(7), MHz(10), Hz(12_345_678), MHz(100), MHz(149)} {
		for _, clk := range []Clock{CLK6, CLK7} {
			r := newRig(t)
			if res, err := r.dev.SetFreq(f, clk); err != nil || res != Applied {
				t.Fatalf("%v %d: %v %v", clk, f, res, err)
			}
			if got := r.outputFreq(t, clk); !within(got, f) {
				t.Errorf("%v %d: programmed %s", clk, f, got.FloatString(2))
			}
		}
	}
}

func TestSetFreqSaturates(t *testing.T) {
	r := newRig(t)
	if _, err := r.dev.SetFreq(Hz(100), CLK1); err != nil {
		t.Fatal(err)
	}
	if r.dev.ClockFreq(CLK1) != ClkOutMin {
		t.Fatalf("low clamp recorded %d", r.dev.ClockFreq(CLK1))
	}
	if _, err := r.dev.SetFreq(MHz(300), CLK2); err != nil {
		t.Fatal(err)
	}
	if r.dev.ClockFreq(CLK2) != MultisynthMax {
		t.Fatalf("high clamp recorded %d", r.dev.ClockFreq(CLK2))
	}

	// CLK6/7 saturate low to the CLK0..5 floor.
	if _, err := r.dev.SetFreq(Hz(1000), CLK6); err != nil {
		t.Fatal(err)
	}
	if r.dev.ClockFreq(CLK6) != ClkOutMin {
		t.Fatalf("CLK6 low clamp recorded %d", r.dev.ClockFreq(CLK6))
	}
	r2 := newRig(t)
	if _, err := r2.dev.SetFreq(MHz(160), CLK7); err != nil {
		t.Fatal(err)
	}
	if r2.dev.ClockFreq(CLK7) != Multisynth67Max-1 {
		t.Fatalf("CLK7 high clamp recorded %d", r2.dev.ClockFreq(CLK7))
	}
}

func TestSetFreqRDivBoundary(t *testing.T) {
	r := newRig(t)
	if _, err := r.dev.SetFreq(4*ClkOutMin, CLK3); err != nil {
		t.Fatal(err)
	}
	ms, err := r.dev.ReadMSParams(CLK3)
	if err != nil {
		t.Fatal(err)
	}
	if ms.RDiv != RDiv32 || ms.DivBy4 {
		t.Fatalf("R divider %d divBy4 %v", ms.RDiv.Divider(), ms.DivBy4)
	}
}

func TestSetFreqIdempotent(t *testing.T) {
	for _, f := range []Freq{Hz(14_097_100), MHz(120)} {
		r := newRig(t)
		if _, err := r.dev.SetFreq(Hz(7_040_000), CLK1); err != nil {
			t.Fatal(err)
		}
		if _, err := r.dev.SetFreq(f, CLK0); err != nil {
			t.Fatal(err)
		}
		r.ops()
		if _, err := r.dev.SetFreq(f, CLK0); err != nil {
			t.Fatal(err)
		}
		second := r.ops()
		if _, err := r.dev.SetFreq(f, CLK0); err != nil {
			t.Fatal(err)
		}
		third := r.ops()
		if len(second) == 0 || !reflect.DeepEqual(second, third) {
			t.Fatalf("%d: writes differ between repeats\n%v\n%v", f, second, third)
		}
	}
}

func TestSetFreqSharedPLLRejected(t *testing.T) {
	r := newRig(t)
	if res, err := r.dev.SetFreq(MHz(120), CLK0); err != nil || res != Applied {
		t.Fatalf("CLK0: %v %v", res, err)
	}
	before := r.mem.Snapshot()
	r.ops()

	res, err := r.dev.SetFreq(MHz(130), CLK1)
	if err != nil {
		t.Fatal(err)
	}
	if res != RejectedSharedPLL {
		t.Fatalf("result %v", res)
	}
	if ops := r.ops(); len(ops) != 0 {
		t.Fatalf("rejection touched the bus: %v", ops)
	}
	if r.mem.Snapshot() != before {
		t.Fatal("registers changed")
	}
	if r.dev.ClockFreq(CLK1) != 0 || r.dev.ClockFreq(CLK0) != MHz(120) {
		t.Fatal("state changed")
	}

	// On the other PLL it is fine.
	if err := r.dev.SetMSSource(CLK1, PLLB); err != nil {
		t.Fatal(err)
	}
	if res, err := r.dev.SetFreq(MHz(130), CLK1); err != nil || res != Applied {
		t.Fatalf("CLK1 on PLLB: %v %v", res, err)
	}
}

func TestSetFreqHighRetunesSiblings(t *testing.T) {
	r := newRig(t)
	low := Hz(10_000_000)
	if _, err := r.dev.SetFreq(low, CLK2); err != nil {
		t.Fatal(err)
	}
	if _, err := r.dev.SetFreq(MHz(110), CLK0); err != nil {
		t.Fatal(err)
	}
	if r.dev.PLLFreq(PLLA) != MHz(880) {
		t.Fatalf("PLLA = %d", r.dev.PLLFreq(PLLA))
	}
	if got := r.outputFreq(t, CLK2); !within(got, low) {
		t.Fatalf("CLK2 drifted to %s", got.FloatString(2))
	}
	if got := r.mem.Reg(regPLLReset); got != pllResetA {
		t.Fatalf("PLL reset reg %#x", got)
	}
}

func TestSetFreqDivBy4SetsIntegerMode(t *testing.T) {
	r := newRig(t)
	if _, err := r.dev.SetFreq(MHz(200), CLK4); err != nil {
		t.Fatal(err)
	}
	ms, _ := r.dev.ReadMSParams(CLK4)
	if !ms.DivBy4 || ms.Regs != divBy4Set {
		t.Fatalf("not divide-by-4: %+v", ms)
	}
	if r.mem.Reg(regCLK0Ctrl+4)&(1<<clkCtrlIntModeShift) == 0 {
		t.Fatal("integer mode not set")
	}
}

func TestSetFreqCLK67Coupling(t *testing.T) {
	r := newRig(t)
	if res, err := r.dev.SetFreq(MHz(10), CLK6); err != nil || res != Applied {
		t.Fatalf("CLK6: %v %v", res, err)
	}
	if r.dev.PLLFreq(PLLB) != MHz(800) {
		t.Fatalf("PLLB = %d", r.dev.PLLFreq(PLLB))
	}
	if got := r.mem.Reg(regCLK6Params); got != 80 {
		t.Fatalf("MS6 = %d", got)
	}

	before := r.mem.Snapshot()
	res, err := r.dev.SetFreq(MHz(7), CLK7)
	if err != nil || res != RejectedNonIntegerRatio {
		t.Fatalf("7 MHz: %v %v", res, err)
	}
	if r.mem.Snapshot() != before || r.dev.ClockFreq(CLK7) != 0 {
		t.Fatal("rejection changed state")
	}

	// 800/32 = 25, integral but odd.
	if res, _ := r.dev.SetFreq(MHz(32), CLK7); res != RejectedNonIntegerRatio {
		t.Fatalf("odd ratio: %v", res)
	}

	if res, err := r.dev.SetFreq(MHz(5), CLK7); err != nil || res != Applied {
		t.Fatalf("5 MHz: %v %v", res, err)
	}
	if got := r.mem.Reg(regCLK7Params); got != 160 {
		t.Fatalf("MS7 = %d", got)
	}
	pllb := r.dev.PLLFreq(PLLB)
	if pllb != MHz(800) || pllb%r.dev.ClockFreq(CLK6) != 0 || pllb%r.dev.ClockFreq(CLK7) != 0 {
		t.Fatalf("PLLB %d inconsistent with CLK6 %d / CLK7 %d", pllb, r.dev.ClockFreq(CLK6), r.dev.ClockFreq(CLK7))
	}
}

// A PLLB frequency the feedback divider cannot hit exactly must not break
// the sibling's even-ratio check.
func TestSetFreqCLK67CouplingOddHertz(t *testing.T) {
	r := newRig(t)
	clk6 := Freq(700000100) // 7 000 001.00 Hz, divider 114
	if res, err := r.dev.SetFreq(clk6, CLK6); err != nil || res != Applied {
		t.Fatalf("CLK6: %v %v", res, err)
	}
	if got := r.mem.Reg(regCLK6Params); got != 114 {
		t.Fatalf("MS6 = %d", got)
	}

	res, err := r.dev.SetFreq(clk6/2, CLK7)
	if err != nil || res != Applied {
		t.Fatalf("CLK7 at half CLK6: %v %v", res, err)
	}
	if got := r.mem.Reg(regCLK7Params); got != 228 {
		t.Fatalf("MS7 = %d", got)
	}
	if r.dev.ClockFreq(CLK7) != clk6/2 {
		t.Fatalf("CLK7 = %d", r.dev.ClockFreq(CLK7))
	}

	// 114/3 is not an integer.
	if res, _ := r.dev.SetFreq(clk6*2/3, CLK7); res != RejectedNonIntegerRatio {
		t.Fatalf("non-integer ratio: %v", res)
	}
}

func TestSetFreqEnableLatch(t *testing.T) {
	oeWrites := func(ops []i2ctest.IO) int {
		n := 0
		for _, op := range ops {
			if len(op.W) == 2 && op.W[0] == regOutputEnableCtrl {
				n++
			}
		}
		return n
	}
	for _, clk := range []Clock{CLK0, CLK6} {
		r := newRig(t)
		if _, err := r.dev.SetFreq(MHz(10), clk); err != nil {
			t.Fatal(err)
		}
		if n := oeWrites(r.ops()); n != 1 {
			t.Fatalf("%v first set: %d OE writes", clk, n)
		}
		if r.mem.Reg(regOutputEnableCtrl)&(1<<clk) != 0 {
			t.Fatalf("%v not enabled", clk)
		}
		if _, err := r.dev.SetFreq(MHz(20), clk); err != nil {
			t.Fatal(err)
		}
		if n := oeWrites(r.ops()); n != 0 {
			t.Fatalf("%v second set: %d OE writes", clk, n)
		}
	}
}

func TestSetFreqZeroDisables(t *testing.T) {
	r := newRig(t)
	if _, err := r.dev.SetFreq(MHz(10), CLK5); err != nil {
		t.Fatal(err)
	}
	if _, err := r.dev.SetFreq(0, CLK5); err != nil {
		t.Fatal(err)
	}
	if r.dev.ClockFreq(CLK5) != 0 || r.dev.Enabled(CLK5) {
		t.Fatal("CLK5 still active")
	}
	if r.mem.Reg(regOutputEnableCtrl)&(1<<5) == 0 {
		t.Fatal("OE bit not set")
	}
}

func TestSetFreqInvalidClock(t *testing.T) {
	r := newRig(t)
	if _, err := r.dev.SetFreq(MHz(1), Clock(8)); err != ErrInvalidClock {
		t.Fatalf("got %v", err)
	}
}

func TestSetFreqTransportError(t *testing.T) {
	r := newRig(t)
	r.mem.FailNext(1)
	if _, err := r.dev.SetFreq(MHz(10), CLK0); err != i2cmem.ErrFault {
		t.Fatalf("got %v", err)
	}
}

func TestSetFreqManual(t *testing.T) {
	r := newRig(t)
	if err := r.dev.SetFreqManual(MHz(10), MHz(700), CLK1); err != nil {
		t.Fatal(err)
	}
	if r.dev.PLLFreq(PLLA) != MHz(700) {
		t.Fatalf("PLLA = %d", r.dev.PLLFreq(PLLA))
	}
	if got := r.outputFreq(t, CLK1); !within(got, MHz(10)) {
		t.Fatalf("CLK1 = %s", got.FloatString(2))
	}
	if err := r.dev.SetFreqManual(MHz(10), MHz(700), CLK6); err != ErrInvalidClock {
		t.Fatalf("CLK6 manual: %v", err)
	}
}

func TestSetCorrectionReprogramsPLLs(t *testing.T) {
	r := newRig(t)
	if err := r.dev.SetCorrection(1000, InputXO); err != nil {
		t.Fatal(err)
	}
	if r.dev.Correction(InputXO) != 1000 {
		t.Fatal("correction not stored")
	}
	pp, _ := r.dev.ReadPLLParams(PLLA)
	num, den := pp.Regs.Ratio()
	ref := uint64(Hz(XtalFreqDefault)) + 2500
	want := Freq(ref*(num/den) + ref*(num%den)/den)
	if got := r.dev.PLLFreq(PLLA); got != want {
		t.Fatalf("PLLA %d, fields give %d", got, want)
	}

	// Back to zero restores the exact 800 MHz programming.
	if err := r.dev.SetCorrection(0, InputXO); err != nil {
		t.Fatal(err)
	}
	if r.dev.PLLFreq(PLLA) != PLLFixed {
		t.Fatalf("PLLA %d after clearing correction", r.dev.PLLFreq(PLLA))
	}
}

func TestSetRefFreq(t *testing.T) {
	r := newRig(t)
	tests := []struct {
		in   Freq
		want Freq
		div  uint8
	}{
		{MHz(10), MHz(10), 0},
		{MHz(50), MHz(25), 1},
		{MHz(100), MHz(25), 2},
	}
	for _, tt := range tests {
		if err := r.dev.SetRefFreq(tt.in, InputCLKIN); err != nil {
			t.Fatal(err)
		}
		if r.dev.RefFreq(InputCLKIN) != tt.want || r.dev.clkinDiv != tt.div {
			t.Errorf("%d: ref %d div %d", tt.in, r.dev.RefFreq(InputCLKIN), r.dev.clkinDiv)
		}
	}
	if err := r.dev.SetRefFreq(MHz(120), InputCLKIN); err != nil {
		t.Fatal(err)
	}
	if r.dev.RefFreq(InputCLKIN) != MHz(25) {
		t.Fatal("out-of-range reference was applied")
	}
	if err := r.dev.SetRefFreq(0, InputXO); err != ErrInvalidInput {
		t.Fatalf("zero ref: %v", err)
	}
}

func TestSetPLLInput(t *testing.T) {
	r := newRig(t)
	if err := r.dev.SetRefFreq(MHz(40), InputCLKIN); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.SetPLLInput(PLLB, InputCLKIN); err != nil {
		t.Fatal(err)
	}
	if got := r.mem.Reg(regPLLInputSource); got != 0x48 {
		t.Fatalf("reg 15 = %#x", got)
	}
	// 800 MHz from 20 MHz is a = 40.
	pp, _ := r.dev.ReadPLLParams(PLLB)
	if pp.Regs != encodeRegSet(40, 0, 1) {
		t.Fatalf("PLLB regs %+v", pp.Regs)
	}
	if err := r.dev.SetPLLInput(PLLB, InputXO); err != nil {
		t.Fatal(err)
	}
	if got := r.mem.Reg(regPLLInputSource) & (1 << pllInputPLLBShift); got != 0 {
		t.Fatal("PLLB still on CLKIN")
	}
}

func TestSetVCXO(t *testing.T) {
	r := newRig(t)
	if err := r.dev.SetVCXO(PLLFixed, 50); err != nil {
		t.Fatal(err)
	}
	if got := r.mem.Regs(regVCXOParams, 3); !reflect.DeepEqual(got, []byte{0x00, 0x38, 0x03}) {
		t.Fatalf("VCXO params % x", got)
	}
	pp, _ := r.dev.ReadPLLParams(PLLB)
	if pp.Regs.P3 != rfracDenom {
		t.Fatalf("PLLB denominator %d", pp.Regs.P3)
	}
}

func TestResetClearsState(t *testing.T) {
	r := newRig(t)
	if _, err := r.dev.SetFreq(MHz(10), CLK0); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.Reset(); err != nil {
		t.Fatal(err)
	}
	if r.dev.ClockFreq(CLK0) != 0 || r.dev.Enabled(CLK0) {
		t.Fatal("CLK0 survived reset")
	}
	r.ops()
	if _, err := r.dev.SetFreq(MHz(10), CLK0); err != nil {
		t.Fatal(err)
	}
	var oe bool
	for _, op := range r.ops() {
		if op.W[0] == regOutputEnableCtrl && len(op.W) == 2 {
			oe = true
		}
	}
	if !oe {
		t.Fatal("enable latch not cleared by reset")
	}
}
