package synth

import (
	"math"

	"clocksynth-go/drivers/si5351"
	"clocksynth-go/errcode"
)

// Highest frequency accepted from a payload, in Hz. The driver saturates
// anything in range; this only rejects nonsense.
const maxPayloadHz = 1e9

func freqOf(hz float64) (si5351.Freq, error) {
	if math.IsNaN(hz) || hz < 0 || hz > maxPayloadHz {
		return 0, errcode.InvalidParams
	}
	return si5351.Freq(math.Round(hz * si5351.FreqMult)), nil
}

func hzOf(f si5351.Freq) float64 { return float64(f) / si5351.FreqMult }

func parsePLL(s string) (si5351.PLL, error) {
	switch s {
	case "a", "A":
		return si5351.PLLA, nil
	case "b", "B":
		return si5351.PLLB, nil
	}
	return 0, errcode.InvalidParams
}

func pllName(p si5351.PLL) string {
	if p == si5351.PLLB {
		return "b"
	}
	return "a"
}

// parseInput accepts "" as the crystal.
func parseInput(s string) (si5351.PLLInput, error) {
	switch s {
	case "", "xo":
		return si5351.InputXO, nil
	case "clkin":
		return si5351.InputCLKIN, nil
	}
	return 0, errcode.InvalidParams
}

func inputName(in si5351.PLLInput) string {
	if in == si5351.InputCLKIN {
		return "clkin"
	}
	return "xo"
}

func parseDrive(ma uint8) (si5351.Drive, error) {
	switch ma {
	case 2:
		return si5351.Drive2mA, nil
	case 4:
		return si5351.Drive4mA, nil
	case 6:
		return si5351.Drive6mA, nil
	case 8:
		return si5351.Drive8mA, nil
	}
	return 0, errcode.InvalidParams
}

func parseSource(s string) (si5351.ClockSource, error) {
	switch s {
	case "xtal":
		return si5351.SourceXtal, nil
	case "clkin":
		return si5351.SourceCLKIN, nil
	case "ms0":
		return si5351.SourceMS0, nil
	case "ms":
		return si5351.SourceMS, nil
	}
	return 0, errcode.InvalidParams
}

func parseDisable(s string) (si5351.DisableState, error) {
	switch s {
	case "low":
		return si5351.DisableLow, nil
	case "high":
		return si5351.DisableHigh, nil
	case "float":
		return si5351.DisableFloat, nil
	case "never":
		return si5351.DisableNever, nil
	}
	return 0, errcode.InvalidParams
}

func parseFanout(s string) (si5351.Fanout, error) {
	switch s {
	case "clkin":
		return si5351.FanoutCLKIN, nil
	case "xo":
		return si5351.FanoutXO, nil
	case "ms":
		return si5351.FanoutMS, nil
	}
	return 0, errcode.InvalidParams
}

// crystalLoad maps the configured pF value; nil selects 10 pF.
func crystalLoad(pf *uint8) (si5351.CrystalLoad, error) {
	if pf == nil {
		return si5351.Load10pF, nil
	}
	switch *pf {
	case 0:
		return si5351.Load0pF, nil
	case 6:
		return si5351.Load6pF, nil
	case 8:
		return si5351.Load8pF, nil
	case 10:
		return si5351.Load10pF, nil
	}
	return 0, errcode.InvalidParams
}
