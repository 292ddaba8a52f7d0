//go:build linux

// synthd runs the Si5351 service on a Linux host and exposes the bus over
// WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"clocksynth-go/bus"
	"clocksynth-go/services/bridge"
	"clocksynth-go/services/config"
	"clocksynth-go/services/heartbeat"
	"clocksynth-go/services/synth"
	"clocksynth-go/types"
	"clocksynth-go/x/fmtx"
	"clocksynth-go/x/i2cmem"
	"clocksynth-go/x/i2cx"

	"golang.org/x/sys/unix"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
)

const busTimeout = 100 * time.Millisecond

func main() {
	busName := flag.String("i2c", "", "I²C bus to use (default: first available)")
	speed := flag.Int("khz", 400, "I²C clock in kHz")
	device := flag.String("device", "host", "Embedded config to publish")
	cfgFile := flag.String("config", "", "JSON config file replacing the embedded one")
	isSim := flag.Bool("sim", false, "Use an in-memory register file instead of hardware")
	verbose := flag.Bool("v", false, "Log synth state and status changes")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "  Hardware: synthd -i2c 1")
		fmt.Fprintln(os.Stderr, "  Sim:      synthd -sim -v")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *cfgFile != "" {
		raw, err := os.ReadFile(*cfgFile)
		if err != nil {
			fatal("read config:", err)
		}
		config.EmbeddedConfigLookup = func(string) ([]byte, bool) { return raw, true }
	}

	var dev i2c.Bus
	if *isSim {
		dev = i2cmem.New(0x60)
		println("Info: synthd using simulated device")
	} else {
		if _, err := host.Init(); err != nil {
			fatal("host init:", err)
		}
		bc, err := i2creg.Open(*busName)
		if err != nil {
			fatal("open i2c:", err)
		}
		defer bc.Close()
		if err := bc.SetSpeed(physic.Frequency(*speed) * physic.KiloHertz); err != nil {
			println("Warn: synthd cannot set bus speed:", err.Error())
		}
		dev = bc
		println("Info: synthd on", bc.String())
	}

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), config.CtxDeviceKey, *device))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, unix.SIGINT, unix.SIGTERM)
	go func() {
		<-sigChan
		println("Info: synthd shutting down")
		cancel()
	}()

	b := bus.NewBus(16)

	if *verbose {
		go monitor(ctx, b.NewConnection("monitor"))
	}

	owner := i2cx.NewOwner(dev)
	defer owner.Stop()
	svc := synth.New(b.NewConnection("synth"), owner.Bus(busTimeout))
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	go bridge.Start(ctx, b.NewConnection("bridge"))
	_ = (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat"))

	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	<-done
}

func monitor(ctx context.Context, conn *bus.Connection) {
	states := conn.Subscribe(bus.T("+", "state"))
	status := conn.Subscribe(synth.StatusTopic())
	defer conn.Disconnect()

	var locked *bool
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-states.Channel():
			if st, ok := m.Payload.(types.ServiceState); ok {
				fmtx.Printf("%s: %s %s %s\n", m.Topic.String(), st.Level, st.Status, st.Error)
			}
		case m := <-status.Channel():
			st, ok := m.Payload.(types.SynthStatus)
			if !ok || (locked != nil && *locked == st.Locked) {
				continue
			}
			locked = &st.Locked
			fmtx.Printf("synth/status: locked=%v lola=%v lolb=%v los=%v rev=%d\n",
				st.Locked, st.LOLA, st.LOLB, st.LOS, st.RevID)
		}
	}
}

func fatal(msg string, err error) {
	fmt.Fprintln(os.Stderr, "Error:", msg, err)
	os.Exit(1)
}
