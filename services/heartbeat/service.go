// Package heartbeat publishes uptime and heap figures so a bridged peer can
// tell the device is alive.
package heartbeat

import (
	"context"
	"runtime"
	"time"

	"clocksynth-go/bus"
	"clocksynth-go/types"
	"clocksynth-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicHeartbeat       = bus.T("sys", "heartbeat")
)

const defaultInterval = 5 * time.Second

type Service struct {
	start time.Time
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case <-tick.C:
			conn.Publish(conn.NewMessage(topicHeartbeat, s.beat(), false))
		case msg := <-cfgSub.Channel():
			cfg, err := types.Decode[types.HeartbeatConfig](msg.Payload)
			if err != nil {
				println("Warn: heartbeat config:", err.Error())
				continue
			}
			if cfg.IntervalS > 0 {
				tick.Reset(time.Duration(cfg.IntervalS * float64(time.Second)))
				println("Info: heartbeat interval set to", cfg.IntervalS, "seconds")
			}
		}
	}
}

func (s *Service) beat() types.Heartbeat {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return types.Heartbeat{
		UptimeMs:  time.Since(s.start).Milliseconds(),
		Alloc:     ms.Alloc,
		HeapInuse: ms.HeapInuse,
		TSms:      timex.NowMs(),
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.start = time.Now()
	go s.serviceLoop(ctx, conn)
	return nil
}
