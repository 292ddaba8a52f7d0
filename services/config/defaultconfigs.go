package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

// Pico on the clock board: Si5351A on I2C0, bridge on UART0 (GP0/GP1).
const cfgPico = `{
  "synth": {
    "xtal_hz": 25000000,
    "crystal_load_pf": 10,
    "init_timeout_ms": 500,
    "poll_ms": 1000,
    "outputs": [
      {"clock": 0, "hz": 10000000, "drive_ma": 8}
    ]
  },
  "heartbeat": {"interval": 10},
  "bridge": {
    "transport": {"type": "uart", "uart": {"baud": 115200, "rx_pin": 1, "tx_pin": 0}},
    "export": ["synth/state", "synth/status", "synth/clk/+", "synth/pll/+", "sys/heartbeat"]
  }
}`

// Linux host with the chip on a bus opened through periph.
const cfgHost = `{
  "synth": {
    "xtal_hz": 25000000,
    "poll_ms": 2000
  },
  "heartbeat": {"interval": 5},
  "bridge": {
    "transport": {"type": "ws_listen", "ws": {"addr": ":8351", "path": "/bus"}},
    "export": ["synth/state", "synth/status", "synth/clk/+", "synth/pll/+", "sys/heartbeat"],
    "ping_s": 10
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"host": []byte(cfgHost),
}
