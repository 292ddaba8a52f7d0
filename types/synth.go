package types

// ---- Retained synth telemetry ----

// ClockState is published on synth/clk/<n>.
type ClockState struct {
	Clock   uint8   `json:"clock"`
	Hz      float64 `json:"hz"`
	CentiHz uint64  `json:"centi_hz"` // exact recorded value
	PLL     string  `json:"pll"`      // "a" or "b"
	Enabled bool    `json:"enabled"`
}

// PLLState is published on synth/pll/<a|b>.
type PLLState struct {
	PLL     string  `json:"pll"`
	Hz      float64 `json:"hz"`
	CentiHz uint64  `json:"centi_hz"`
	Input   string  `json:"input"` // "xo" or "clkin"
}

// SynthStatus is published on synth/status every poll.
type SynthStatus struct {
	SysInit bool  `json:"sys_init"`
	LOLA    bool  `json:"lol_a"`
	LOLB    bool  `json:"lol_b"`
	LOS     bool  `json:"los"`
	RevID   uint8 `json:"rev_id"`
	Locked  bool  `json:"locked"`

	// Sticky interrupt flags.
	StickySysInit bool `json:"sticky_sys_init"`
	StickyLOLA    bool `json:"sticky_lol_a"`
	StickyLOLB    bool `json:"sticky_lol_b"`
	StickyLOS     bool `json:"sticky_los"`

	TSms int64 `json:"ts_ms"`
}

// ---- Controls (synth/ctl/<verb>) ----

// SetFreq: Hz == 0 disables the output.
type SetFreq struct {
	Clock uint8   `json:"clock"`
	Hz    float64 `json:"hz"`
}

type SetPLL struct {
	PLL string  `json:"pll"`
	Hz  float64 `json:"hz"`
}

// SetCorrection: Input is "xo" or "clkin".
type SetCorrection struct {
	Input string `json:"input"`
	PPB   int32  `json:"ppb"`
}

type SetRefFreq struct {
	Input string  `json:"input"`
	Hz    float64 `json:"hz"`
}

type OutputEnable struct {
	Clock  uint8 `json:"clock"`
	Enable bool  `json:"enable"`
}

type DriveStrength struct {
	Clock uint8 `json:"clock"`
	MA    uint8 `json:"ma"`
}

// ClockSource: Source is "xtal", "clkin", "ms0" or "ms".
type ClockSource struct {
	Clock  uint8  `json:"clock"`
	Source string `json:"source"`
}

type ClockInvert struct {
	Clock  uint8 `json:"clock"`
	Invert bool  `json:"invert"`
}

type ClockPower struct {
	Clock uint8 `json:"clock"`
	On    bool  `json:"on"`
}

// ClockDisable: State is "low", "high", "float" or "never".
type ClockDisable struct {
	Clock uint8  `json:"clock"`
	State string `json:"state"`
}

// ClockFanout: Fanout is "clkin", "xo" or "ms".
type ClockFanout struct {
	Fanout string `json:"fanout"`
	Enable bool   `json:"enable"`
}

type Phase struct {
	Clock uint8 `json:"clock"`
	Phase uint8 `json:"phase"`
}

type PLLInput struct {
	PLL   string `json:"pll"`
	Input string `json:"input"`
}

type MSSource struct {
	Clock uint8  `json:"clock"`
	PLL   string `json:"pll"`
}

type PLLReset struct {
	PLL string `json:"pll"`
}

type VCXO struct {
	Hz  float64 `json:"hz"` // PLLB frequency
	PPM uint8   `json:"ppm"`
}
