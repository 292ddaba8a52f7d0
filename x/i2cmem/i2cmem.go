// Package i2cmem emulates a byte-addressed I2C register file with an
// auto-incrementing register pointer. It satisfies both tinygo's
// drivers.I2C and periph's i2c.Bus so driver code can be exercised on the
// host, directly or through i2ctest.Record.
package i2cmem

import (
	"errors"
	"strconv"
	"sync"

	"periph.io/x/periph/conn/physic"
)

var (
	ErrNoDevice = errors.New("i2cmem: no device at address")
	ErrFault    = errors.New("i2cmem: injected fault")
)

// Device is a 256-register target.
type Device struct {
	mu    sync.Mutex
	addr  uint16
	regs  [256]byte
	ptr   byte
	speed physic.Frequency

	// hooks
	onRead  func(reg byte, v byte) byte
	failAt  int // Tx number to fail; 0 = never
	txCount int
}

func New(addr uint16) *Device {
	return &Device{addr: addr}
}

func (d *Device) String() string { return "i2cmem@0x" + strconv.FormatUint(uint64(d.addr), 16) }

func (d *Device) SetSpeed(f physic.Frequency) error {
	d.mu.Lock()
	d.speed = f
	d.mu.Unlock()
	return nil
}

// Tx performs a combined write-then-read. The first written byte sets the
// register pointer; any further bytes are stored from there. Reads continue
// from the pointer.
func (d *Device) Tx(addr uint16, w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txCount++
	if d.failAt != 0 && d.txCount == d.failAt {
		d.failAt = 0
		return ErrFault
	}
	if addr != d.addr {
		return ErrNoDevice
	}
	if len(w) > 0 {
		d.ptr = w[0]
		for _, b := range w[1:] {
			d.regs[d.ptr] = b
			d.ptr++
		}
	}
	for i := range r {
		v := d.regs[d.ptr]
		if d.onRead != nil {
			v = d.onRead(d.ptr, v)
		}
		r[i] = v
		d.ptr++
	}
	return nil
}

// Reg returns the current content of a register.
func (d *Device) Reg(reg byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[reg]
}

// Regs copies n registers starting at reg.
func (d *Device) Regs(reg byte, n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = d.regs[reg]
		reg++
	}
	return out
}

func (d *Device) SetReg(reg, v byte) {
	d.mu.Lock()
	d.regs[reg] = v
	d.mu.Unlock()
}

// Snapshot returns a copy of the whole register file.
func (d *Device) Snapshot() [256]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs
}

// OnRead installs a hook that may rewrite a value as it is read, e.g. to
// model status bits that clear over time. nil removes it.
func (d *Device) OnRead(fn func(reg byte, v byte) byte) {
	d.mu.Lock()
	d.onRead = fn
	d.mu.Unlock()
}

// FailNext makes the n-th transaction from now return ErrFault (n >= 1).
func (d *Device) FailNext(n int) {
	d.mu.Lock()
	d.failAt = d.txCount + n
	d.mu.Unlock()
}

// Transactions returns the number of Tx calls seen.
func (d *Device) Transactions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.txCount
}
