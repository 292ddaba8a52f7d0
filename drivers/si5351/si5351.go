// Package si5351 provides a TinyGo driver for the Si5351 family of
// I2C-programmable clock generators.
//
// Design notes (datasheet / AN619 references):
// • Two PLLs (A, B) lock to the crystal or CLKIN; eight outputs divide them.
// • CLK0..CLK5 have fractional multisynths; CLK6/CLK7 take an even integer
//   divider from PLLB only.
// • All frequencies are Freq (Hz x 100). Corrections are parts-per-billion.
// • Out-of-range requests saturate. Requests that would disturb another
//   output are refused with a Result, not an error.
// • A Device is not safe for concurrent use.
package si5351

import (
	"context"
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// ---------------- Top level vars ----------------

var (
	ErrInvalidClock = errors.New("si5351: invalid clock")
	ErrInvalidPLL   = errors.New("si5351: invalid pll")
	ErrInvalidInput = errors.New("si5351: invalid input")
	ErrInitTimeout  = errors.New("si5351: device did not leave SYS_INIT")
)

// ---------------- Types and configuration ----------------

type Clock uint8

const (
	CLK0 Clock = iota
	CLK1
	CLK2
	CLK3
	CLK4
	CLK5
	CLK6
	CLK7

	NumClocks = 8
)

func (c Clock) valid() bool { return c < NumClocks }

func (c Clock) String() string {
	if !c.valid() {
		return "CLK?"
	}
	return "CLK" + string('0'+byte(c))
}

type PLL uint8

const (
	PLLA PLL = iota
	PLLB
)

func (p PLL) valid() bool { return p <= PLLB }

func (p PLL) paramsReg() byte {
	if p == PLLB {
		return regPLLBParams
	}
	return regPLLAParams
}

func (p PLL) String() string {
	switch p {
	case PLLA:
		return "PLLA"
	case PLLB:
		return "PLLB"
	}
	return "PLL?"
}

// PLLInput selects the reference a PLL locks to.
type PLLInput uint8

const (
	InputXO PLLInput = iota
	InputCLKIN
)

func (in PLLInput) valid() bool { return in <= InputCLKIN }

type Drive uint8

const (
	Drive2mA Drive = iota
	Drive4mA
	Drive6mA
	Drive8mA
)

// ClockSource selects what feeds an output driver.
type ClockSource uint8

const (
	SourceXtal ClockSource = iota
	SourceCLKIN
	SourceMS0 // MS0 (CLK0..3) or MS4 (CLK4..7)
	SourceMS  // the output's own multisynth
)

// DisableState is the level an output holds while disabled.
type DisableState uint8

const (
	DisableLow DisableState = iota
	DisableHigh
	DisableFloat
	DisableNever
)

type Fanout uint8

const (
	FanoutCLKIN Fanout = iota
	FanoutXO
	FanoutMS
)

// CrystalLoad is the internal load capacitance presented to the crystal.
type CrystalLoad uint8

const (
	Load0pF CrystalLoad = iota
	Load6pF
	Load8pF
	Load10pF
)

// Result reports whether SetFreq took effect.
type Result uint8

const (
	Applied Result = iota
	RejectedSharedPLL
	RejectedNonIntegerRatio
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case RejectedSharedPLL:
		return "rejected_shared_pll"
	case RejectedNonIntegerRatio:
		return "rejected_ratio"
	}
	return "unknown"
}

type Config struct {
	Address     uint16
	CrystalLoad CrystalLoad
	XtalFreq    uint32 // Hz; 0 = 25 MHz
	Correction  int32  // ppb, applied to the crystal
	ClkinFreq   uint32 // Hz; 0 = CLKIN unused

	// SYS_INIT poll period during Configure; 0 = 1ms.
	PollInterval time.Duration
}

type Device struct {
	i2c  drivers.I2C
	addr uint16

	pllFreq   [2]Freq // achieved
	pllTarget [2]Freq // requested
	pllRef    [2]PLLInput
	refFreq   [2]Freq
	refCorr   [2]int32
	clkinDiv  uint8

	clkFreq   [NumClocks]Freq
	pllAssign [NumClocks]PLL
	firstSet  [NumClocks]bool
	enabled   [NumClocks]bool

	// Fixed buffers to avoid per-call heap allocations.
	w [1 + paramsLength]byte
	r [paramsLength]byte
}

func New(i2c drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	d := &Device{
		i2c:  i2c,
		addr: addr,
	}
	d.refFreq[InputXO] = Hz(XtalFreqDefault)
	for clk := CLK6; clk <= CLK7; clk++ {
		d.pllAssign[clk] = PLLB
	}
	return d
}

// Configure waits for the device to finish its power-on calibration, then
// programs the crystal load and reference, and resets every output. ctx
// bounds the wait; on expiry the error wraps both ErrInitTimeout and
// ctx.Err().
func (d *Device) Configure(ctx context.Context, cfg Config) error {
	if err := d.waitReady(ctx, cfg.PollInterval); err != nil {
		return err
	}
	load := byte(cfg.CrystalLoad)<<crystalLoadShift&crystalLoadMask | crystalLoadFixedBits
	if err := d.writeReg(regCrystalLoad, load); err != nil {
		return err
	}
	xtal := cfg.XtalFreq
	if xtal == 0 {
		xtal = XtalFreqDefault
	}
	if err := d.SetRefFreq(Hz(uint64(xtal)), InputXO); err != nil {
		return err
	}
	if cfg.ClkinFreq != 0 {
		if err := d.SetRefFreq(Hz(uint64(cfg.ClkinFreq)), InputCLKIN); err != nil {
			return err
		}
	}
	d.refCorr[InputXO] = cfg.Correction
	return d.Reset()
}

func (d *Device) waitReady(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = time.Millisecond
	}
	for {
		st, err := d.readReg(regDeviceStatus)
		if err != nil {
			return err
		}
		if st&statusSysInit == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Join(ErrInitTimeout, ctx.Err())
		case <-time.After(every):
		}
	}
}

// Reset returns the device to the driver's baseline: outputs powered but
// disabled, both PLLs at 800 MHz, CLK0..5 on PLLA and CLK6/7 on PLLB.
func (d *Device) Reset() error {
	for clk := CLK0; clk <= CLK7; clk++ {
		if err := d.writeReg(regCLK0Ctrl+byte(clk), clkCtrlReset); err != nil {
			return err
		}
	}
	for clk := CLK0; clk <= CLK7; clk++ {
		if err := d.writeReg(regCLK0Ctrl+byte(clk), clkCtrlDefault); err != nil {
			return err
		}
	}
	if _, err := d.SetPLL(PLLFixed, PLLA); err != nil {
		return err
	}
	if _, err := d.SetPLL(PLLFixed, PLLB); err != nil {
		return err
	}
	for clk := CLK0; clk <= CLK7; clk++ {
		pll := PLLA
		if clk >= CLK6 {
			pll = PLLB
		}
		if err := d.SetMSSource(clk, pll); err != nil {
			return err
		}
	}
	if err := d.writeRegs(regVCXOParams, []byte{0, 0, 0}); err != nil {
		return err
	}
	if err := d.PLLReset(PLLA); err != nil {
		return err
	}
	if err := d.PLLReset(PLLB); err != nil {
		return err
	}
	for clk := CLK0; clk <= CLK7; clk++ {
		d.clkFreq[clk] = 0
		d.firstSet[clk] = false
		if err := d.OutputEnable(clk, false); err != nil {
			return err
		}
	}
	return nil
}

// ---------------- State accessors ----------------

// ClockFreq returns the last frequency recorded for clk (0 = unset).
func (d *Device) ClockFreq(clk Clock) Freq {
	if !clk.valid() {
		return 0
	}
	return d.clkFreq[clk]
}

// PLLFreq returns the frequency pll was last programmed to.
func (d *Device) PLLFreq(pll PLL) Freq {
	if !pll.valid() {
		return 0
	}
	return d.pllFreq[pll]
}

func (d *Device) PLLAssignment(clk Clock) PLL {
	if !clk.valid() {
		return PLLA
	}
	return d.pllAssign[clk]
}

func (d *Device) PLLInputOf(pll PLL) PLLInput {
	if !pll.valid() {
		return InputXO
	}
	return d.pllRef[pll]
}

// RefFreq returns the post-prescaler reference frequency for in.
func (d *Device) RefFreq(in PLLInput) Freq {
	if !in.valid() {
		return 0
	}
	return d.refFreq[in]
}

func (d *Device) Correction(in PLLInput) int32 {
	if !in.valid() {
		return 0
	}
	return d.refCorr[in]
}

// Enabled reports the output-enable state last written for clk.
func (d *Device) Enabled(clk Clock) bool {
	return clk.valid() && d.enabled[clk]
}
