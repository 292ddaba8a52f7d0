// Package i2cx serialises I²C transactions through one worker goroutine per
// bus and bounds how long a caller waits for its turn and its result.
package i2cx

import (
	"time"

	"clocksynth-go/errcode"

	"tinygo.org/x/drivers"
)

// request posted to the per-bus worker
type req struct {
	addr uint16
	w, r []byte
	done chan error // buffered(1); worker replies best-effort
}

// Owner hosts the single worker for one bus.
type Owner struct {
	hw   drivers.I2C
	reqs chan req
	quit chan struct{}
}

func NewOwner(hw drivers.I2C) *Owner {
	o := &Owner{
		hw:   hw,
		reqs: make(chan req, 16),
		quit: make(chan struct{}),
	}
	go o.loop()
	return o
}

func (o *Owner) loop() {
	for {
		select {
		case rq := <-o.reqs:
			err := o.hw.Tx(rq.addr, rq.w, rq.r)
			select {
			case rq.done <- err:
			default:
			}
		case <-o.quit:
			return
		}
	}
}

// Stop ends the worker. Pending and later calls through a Bus block or time
// out.
func (o *Owner) Stop() { close(o.quit) }

// Bus returns a drivers.I2C view of the owner. timeout <= 0 waits forever.
//
// A call that times out on completion leaves its transaction with the worker,
// which may still run it later. It runs on private copies, so the caller is
// free to reuse w and r once Tx returns.
func (o *Owner) Bus(timeout time.Duration) *Bus {
	return &Bus{o: o, timeout: timeout}
}

type Bus struct {
	o       *Owner
	timeout time.Duration
}

var _ drivers.I2C = (*Bus)(nil)

func (b *Bus) Tx(addr uint16, w, r []byte) error {
	rq := req{addr: addr, w: w, r: r, done: make(chan error, 1)}

	if b.timeout <= 0 {
		b.o.reqs <- rq
		return <-rq.done
	}

	// The request may outlive this call.
	rq.w = append([]byte(nil), w...)
	if len(r) != 0 {
		rq.r = make([]byte, len(r))
	}

	t := time.NewTimer(b.timeout)
	defer t.Stop()
	select {
	case b.o.reqs <- rq:
	case <-t.C:
		return errcode.Busy
	}
	t.Reset(b.timeout)
	select {
	case err := <-rq.done:
		copy(r, rq.r)
		return err
	case <-t.C:
		return errcode.Timeout
	}
}
