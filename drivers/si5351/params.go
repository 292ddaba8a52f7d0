package si5351

// RegSet is the chip encoding of a divider a + b/c.
type RegSet struct {
	P1 uint32 // 18 bits
	P2 uint32 // 20 bits
	P3 uint32 // 20 bits
}

// divBy4Set is the fixed encoding written when a multisynth runs in
// divide-by-4 mode.
var divBy4Set = RegSet{P1: 0, P2: 0, P3: 1}

func encodeRegSet(a, b, c uint32) RegSet {
	if c == 0 {
		c = 1
	}
	f := uint32(uint64(128) * uint64(b) / uint64(c))
	return RegSet{
		P1: 128*a + f - 512,
		P2: 128*b - c*f,
		P3: c,
	}
}

// Ratio returns the divider as an exact fraction num/den.
func (s RegSet) Ratio() (num, den uint64) {
	p3 := uint64(s.P3)
	if p3 == 0 {
		p3 = 1
	}
	return (uint64(s.P1)+512)*p3 + uint64(s.P2), 128 * p3
}

// pack writes the 8-byte parameter block. keep carries the upper six bits of
// byte 2, which hold the R divider and divide-by-4 flags on multisynths.
func (s RegSet) pack(buf []byte, keep byte) {
	buf[0] = byte(s.P3 >> 8)
	buf[1] = byte(s.P3)
	buf[2] = keep&0xFC | byte(s.P1>>16)&0x03
	buf[3] = byte(s.P1 >> 8)
	buf[4] = byte(s.P1)
	buf[5] = byte(s.P3>>12)&0xF0 | byte(s.P2>>16)&0x0F
	buf[6] = byte(s.P2 >> 8)
	buf[7] = byte(s.P2)
}

func unpackRegSet(buf []byte) RegSet {
	return RegSet{
		P1: uint32(buf[2]&0x03)<<16 | uint32(buf[3])<<8 | uint32(buf[4]),
		P2: uint32(buf[5]&0x0F)<<16 | uint32(buf[6])<<8 | uint32(buf[7]),
		P3: uint32(buf[5]&0xF0)<<12 | uint32(buf[0])<<8 | uint32(buf[1]),
	}
}

// RDiv is the power-of-two output divider, stored as its exponent.
type RDiv uint8

const (
	RDiv1 RDiv = iota
	RDiv2
	RDiv4
	RDiv8
	RDiv16
	RDiv32
	RDiv64
	RDiv128
)

func (r RDiv) Divider() uint64 { return 1 << r }

// selectRDiv picks the R divider that lifts freq back above min and returns
// the multisynth frequency to aim for. Each band [min*k, 2*min*k) maps to
// divider 128/k; anything from 128*min upward runs undivided.
func selectRDiv(freq, min Freq) (RDiv, Freq) {
	for r := RDiv128; r > RDiv1; r-- {
		k := Freq(1) << (RDiv128 - r)
		if freq >= min*k && freq < 2*min*k {
			return r, freq * Freq(r.Divider())
		}
	}
	return RDiv1, freq
}

// PLLParams is a decoded PLL feedback block.
type PLLParams struct {
	Regs RegSet
}

// MSParams is a decoded multisynth block for CLK0..CLK5, or the integer
// divider for CLK6/CLK7 (held in Regs.P1 as the plain ratio, P3 = 0).
type MSParams struct {
	Regs   RegSet
	RDiv   RDiv
	DivBy4 bool
}

// ReadPLLParams reads back the feedback divider of pll.
func (d *Device) ReadPLLParams(pll PLL) (PLLParams, error) {
	if !pll.valid() {
		return PLLParams{}, ErrInvalidPLL
	}
	buf, err := d.readRegs(pll.paramsReg(), paramsLength)
	if err != nil {
		return PLLParams{}, err
	}
	return PLLParams{Regs: unpackRegSet(buf)}, nil
}

// ReadMSParams reads back the output divider of clk.
func (d *Device) ReadMSParams(clk Clock) (MSParams, error) {
	switch {
	case !clk.valid():
		return MSParams{}, ErrInvalidClock
	case clk <= CLK5:
		buf, err := d.readRegs(regCLK0Params+byte(clk)*paramsLength, paramsLength)
		if err != nil {
			return MSParams{}, err
		}
		b2 := buf[msParamsDivByteOffs]
		return MSParams{
			Regs:   unpackRegSet(buf),
			RDiv:   RDiv(b2>>msRDivShift) & 0x07,
			DivBy4: (b2>>msDivBy4Shift)&msDivBy4 == msDivBy4,
		}, nil
	}
	a, err := d.readReg(regCLK6Params + byte(clk-CLK6))
	if err != nil {
		return MSParams{}, err
	}
	rd, err := d.readReg(regCLK6and7OutDiv)
	if err != nil {
		return MSParams{}, err
	}
	shift := uint8(ms67RDivCLK6Shift)
	if clk == CLK7 {
		shift = ms67RDivCLK7Shift
	}
	return MSParams{
		Regs: RegSet{P1: uint32(a)},
		RDiv: RDiv(rd>>shift) & 0x07,
	}, nil
}

// Ratio returns the overall PLL-to-pin division as num/den, including the R
// divider and divide-by-4 mode.
func (p MSParams) Ratio() (num, den uint64) {
	switch {
	case p.DivBy4:
		num, den = 4, 1
	case p.Regs.P3 == 0:
		num, den = uint64(p.Regs.P1), 1
	default:
		num, den = p.Regs.Ratio()
	}
	return num * p.RDiv.Divider(), den
}
