package si5351

// Single-byte register access. The Si5351 auto-increments the register
// pointer, so bulk transfers are a single Tx.

func (d *Device) readReg(reg byte) (byte, error) {
	d.w[0] = reg
	if err := d.i2c.Tx(d.addr, d.w[:1], d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

func (d *Device) readRegs(reg byte, n int) ([]byte, error) {
	d.w[0] = reg
	if err := d.i2c.Tx(d.addr, d.w[:1], d.r[:n]); err != nil {
		return nil, err
	}
	return d.r[:n], nil
}

func (d *Device) writeReg(reg, val byte) error {
	d.w[0] = reg
	d.w[1] = val
	return d.i2c.Tx(d.addr, d.w[:2], nil)
}

func (d *Device) writeRegs(reg byte, data []byte) error {
	d.w[0] = reg
	n := copy(d.w[1:], data)
	return d.i2c.Tx(d.addr, d.w[:1+n], nil)
}

// modifyBitmaskRegister is a private helper for the read-modify-write pattern.
// Bits in clear are dropped before set is applied.
func (d *Device) modifyBitmaskRegister(reg, set, clear byte) error {
	current, err := d.readReg(reg)
	if err != nil {
		return err
	}
	return d.writeReg(reg, (current&^clear)|set)
}

// field is a bit-field inside a single register.
type field struct {
	reg   byte
	shift uint8
	width uint8
}

func (f field) mask() byte { return byte((1<<f.width)-1) << f.shift }

func (f field) bits(v uint8) byte { return (v << f.shift) & f.mask() }

func (d *Device) writeField(f field, v uint8) error {
	return d.modifyBitmaskRegister(f.reg, f.bits(v), f.mask())
}

func clkCtrlField(clk Clock, shift, width uint8) field {
	return field{reg: regCLK0Ctrl + byte(clk), shift: shift, width: width}
}

func disableStateField(clk Clock) field {
	reg := byte(regCLK3to0DisableState)
	if clk >= CLK4 {
		reg = regCLK7to4DisableState
	}
	return field{reg: reg, shift: uint8(clk%4) * 2, width: 2}
}

func outputEnableField(clk Clock) field {
	return field{reg: regOutputEnableCtrl, shift: uint8(clk), width: 1}
}
