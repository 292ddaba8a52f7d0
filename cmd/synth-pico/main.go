//go:build rp2040 || rp2350

// synth-pico drives a Si5351 on I2C0 and bridges the bus to a host over UART0.
package main

import (
	"context"
	"errors"
	"io"
	"machine"
	"time"

	"clocksynth-go/bus"
	"clocksynth-go/services/bridge"
	"clocksynth-go/services/config"
	"clocksynth-go/services/heartbeat"
	"clocksynth-go/services/synth"
	"clocksynth-go/types"
	"clocksynth-go/x/i2cx"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

const (
	pinSDA     = machine.GPIO4
	pinSCL     = machine.GPIO5
	i2cHz      = 400_000
	busTimeout = 50 * time.Millisecond
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot")

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, "pico")

	pinSDA.Configure(machine.PinConfig{Mode: machine.PinI2C})
	pinSCL.Configure(machine.PinConfig{Mode: machine.PinI2C})
	if err := machine.I2C0.Configure(machine.I2CConfig{
		SCL:       pinSCL,
		SDA:       pinSDA,
		Frequency: i2cHz,
	}); err != nil {
		println("[main] i2c0 configure failed:", err.Error())
	}
	owner := i2cx.NewOwner(machine.I2C0)

	bridge.UARTDial = dialUART

	b := bus.NewBus(8)
	go synth.New(b.NewConnection("synth"), owner.Bus(busTimeout)).Run(ctx)
	go bridge.Start(ctx, b.NewConnection("bridge"))
	_ = (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat"))
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	mainConn := b.NewConnection("main")
	states := mainConn.Subscribe(bus.T("+", "state"))
	beats := mainConn.Subscribe(bus.T("sys", "heartbeat"))
	for {
		select {
		case m := <-states.Channel():
			if st, ok := m.Payload.(types.ServiceState); ok {
				println("[main]", m.Topic.String(), st.Level, st.Status, st.Error)
			}
		case m := <-beats.Channel():
			if hb, ok := m.Payload.(types.Heartbeat); ok {
				println("[mem]", "uptime_ms:", hb.UptimeMs, "alloc:", uint32(hb.Alloc), "heapInuse:", uint32(hb.HeapInuse))
			}
		}
	}
}

// dialUART configures the UART named by its pins and returns a stream over it.
func dialUART(ctx context.Context, u bridge.UARTConfig) (io.ReadWriteCloser, error) {
	var hw *uartx.UART
	switch {
	case u.TxPin == 0 && u.RxPin == 1:
		hw = uartx.UART0
	case u.TxPin == 4 && u.RxPin == 5:
		hw = uartx.UART1
	default:
		return nil, errors.New("no UART on those pins")
	}
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: uint32(u.Baud),
		TX:       machine.Pin(u.TxPin),
		RX:       machine.Pin(u.RxPin),
	}); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	return &uartStream{u: hw, ctx: ctx, cancel: cancel, readTimeout: time.Duration(u.ReadTimeoutMS) * time.Millisecond}, nil
}

// uartStream adapts uartx to io.ReadWriteCloser. Close unblocks readers; the
// UART itself stays configured for the next dial.
type uartStream struct {
	u           *uartx.UART
	ctx         context.Context
	cancel      context.CancelFunc
	readTimeout time.Duration
}

func (s *uartStream) Read(p []byte) (int, error) {
	ctx := s.ctx
	if s.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.readTimeout)
		defer cancel()
	}
	n, err := s.u.RecvSomeContext(ctx, p)
	if err != nil && s.ctx.Err() != nil {
		return n, io.EOF
	}
	return n, err
}

func (s *uartStream) Write(p []byte) (int, error) {
	if s.ctx.Err() != nil {
		return 0, io.ErrClosedPipe
	}
	return s.u.Write(p)
}

func (s *uartStream) Close() error {
	s.cancel()
	return nil
}
