package si5351

// Freq is a frequency in hundredths of a hertz. Every frequency crossing the
// driver API uses this scale so that sub-hertz steps survive integer maths.
type Freq uint64

// FreqMult is the number of Freq units in one hertz.
const FreqMult = 100

func Hz(v uint64) Freq  { return Freq(v * FreqMult) }
func KHz(v uint64) Freq { return Freq(v * 1_000 * FreqMult) }
func MHz(v uint64) Freq { return Freq(v * 1_000_000 * FreqMult) }

// Hz returns the whole-hertz part of f.
func (f Freq) Hz() uint64 { return uint64(f) / FreqMult }

// Operating limits.
const (
	PLLFixed Freq = 800_000_000 * FreqMult

	VCOMin Freq = 600_000_000 * FreqMult
	VCOMax Freq = 900_000_000 * FreqMult

	MultisynthMin      Freq = 500_000 * FreqMult
	MultisynthDivBy4   Freq = 150_000_000 * FreqMult
	MultisynthMax      Freq = 225_000_000 * FreqMult
	MultisynthShareMax Freq = 100_000_000 * FreqMult
	Multisynth67Max         = MultisynthDivBy4

	// Lowest outputs reachable through the 128x R divider.
	ClkOutMin   Freq = 4_000 * FreqMult
	ClkOut67Min Freq = 600_000_000 / ms67AMax / 128 * FreqMult

	// Highest raw reference accepted before the input prescaler runs out.
	refRawMax Freq = 100_000_000 * FreqMult
)
