package types

// Synth configuration supplied on topic "config/synth".

type SynthConfig struct {
	Address       uint16 `json:"address,omitempty"` // 7-bit; 0 = 0x60
	XtalHz        uint32 `json:"xtal_hz,omitempty"` // 0 = 25 MHz
	ClkinHz       uint32 `json:"clkin_hz,omitempty"`
	CorrectionPPB int32  `json:"correction_ppb,omitempty"`

	// Crystal load in pF: 0, 6, 8 or 10. Omitted = 10.
	CrystalLoadPF *uint8 `json:"crystal_load_pf,omitempty"`

	InitTimeoutMS int `json:"init_timeout_ms,omitempty"` // 0 = 500
	PollMS        int `json:"poll_ms,omitempty"`         // 0 = 1000, <0 disables

	Outputs []OutputConfig `json:"outputs,omitempty"`
}

// OutputConfig is applied in order once the device is configured.
type OutputConfig struct {
	Clock   uint8   `json:"clock"`
	Hz      float64 `json:"hz"`
	DriveMA uint8   `json:"drive_ma,omitempty"` // 2, 4, 6 or 8
	Invert  bool    `json:"invert,omitempty"`
	Phase   uint8   `json:"phase,omitempty"`
}
