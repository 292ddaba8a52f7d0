package types

import (
	"encoding/json"
	"errors"
)

// ---- Common service state (retained) ----

// Level values reported in ServiceState.
const (
	LevelIdle     = "idle"
	LevelReady    = "ready"
	LevelDegraded = "degraded"
	LevelError    = "error"
	LevelStopped  = "stopped"
)

type ServiceState struct {
	Level  string `json:"level"`  // one of the Level* constants
	Status string `json:"status"` // short machine string
	Error  string `json:"error,omitempty"`
	TSms   int64  `json:"ts_ms"`
}

// ---- Replies ----

// Reply answers every synth/ctl request. Result carries the SetFreq outcome
// ("applied", "rejected_shared_pll", "rejected_ratio") when there is one.
type Reply struct {
	OK     bool   `json:"ok"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Value  any    `json:"value,omitempty"`
}

// ---- Payload decoding ----

var ErrPayloadType = errors.New("types: unsupported payload type")

// Decode converts a bus payload into T. Typed values pass through; JSON text
// and generic JSON values (from the config service or a bridged peer) are
// decoded. A nil payload yields the zero value.
func Decode[T any](p any) (T, error) {
	var out T
	switch v := p.(type) {
	case nil:
		return out, nil
	case T:
		return v, nil
	case *T:
		if v != nil {
			out = *v
		}
		return out, nil
	case []byte:
		err := json.Unmarshal(v, &out)
		return out, err
	case string:
		err := json.Unmarshal([]byte(v), &out)
		return out, err
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return out, err
		}
		err = json.Unmarshal(b, &out)
		return out, err
	}
	return out, ErrPayloadType
}

// ---- Heartbeat ----

// Heartbeat is published on sys/heartbeat at the configured interval.
type Heartbeat struct {
	UptimeMs  int64  `json:"uptime_ms"`
	Alloc     uint64 `json:"alloc"`
	HeapInuse uint64 `json:"heap_inuse"`
	TSms      int64  `json:"ts_ms"`
}

// HeartbeatConfig arrives on config/heartbeat. IntervalS 0 keeps the current
// period.
type HeartbeatConfig struct {
	IntervalS float64 `json:"interval"`
}
