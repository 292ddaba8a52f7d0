//go:build !(rp2040 || rp2350)

// regdump computes a Si5351 frequency plan offline and prints the register
// writes it produces.
//
//	regdump -xtal 27000000 0=10000000 1=14097100.5 6=50000000
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"clocksynth-go/drivers/si5351"
	"clocksynth-go/x/fmtx"
	"clocksynth-go/x/i2cmem"
	"clocksynth-go/x/strconvx"

	"periph.io/x/periph/conn/i2c/i2ctest"
)

type request struct {
	clk si5351.Clock
	hz  si5351.Freq
}

func main() {
	xtal := flag.Uint("xtal", si5351.XtalFreqDefault, "Crystal frequency in Hz")
	corr := flag.Int("corr", 0, "Crystal correction in ppb")
	showOps := flag.Bool("ops", false, "Print every I²C transaction, not just the final map")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s: [options] clk=hz ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	reqs, err := parseArgs(flag.Args())
	if err != nil || len(reqs) == 0 {
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		flag.Usage()
		os.Exit(2)
	}

	mem := i2cmem.New(si5351.AddressDefault)
	rec := &i2ctest.Record{Bus: mem}
	cfg := si5351.Config{XtalFreq: uint32(*xtal), Correction: int32(*corr)}
	dev := si5351.New(rec, cfg)
	if err := dev.Configure(context.Background(), cfg); err != nil {
		fmt.Fprintln(os.Stderr, "Error: configure:", err)
		os.Exit(1)
	}
	rec.Ops = nil

	for _, r := range reqs {
		res, err := dev.SetFreq(r.hz, r.clk)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", r.clk, err)
			os.Exit(1)
		}
		fmtx.Printf("%-5s want %s Hz: %s", r.clk, centi(r.hz), res)
		if res == si5351.Applied {
			ms, _ := dev.ReadMSParams(r.clk)
			num, den := ms.Ratio()
			fmtx.Printf(", got %s Hz from %s/%s", centi(dev.ClockFreq(r.clk)),
				dev.PLLAssignment(r.clk), ratio(num, den))
		}
		fmtx.Printf("\n")
	}
	for _, pll := range []si5351.PLL{si5351.PLLA, si5351.PLLB} {
		p, _ := dev.ReadPLLParams(pll)
		num, den := p.Regs.Ratio()
		fmtx.Printf("%-5s %s Hz = ref x %s\n", pll, centi(dev.PLLFreq(pll)), ratio(num, den))
	}

	if *showOps {
		fmtx.Printf("\nI²C transactions (addr 0x%02X)\n", si5351.AddressDefault)
		for _, op := range rec.Ops {
			fmtx.Printf("  W: %s", hexBytes(op.W))
			if len(op.R) != 0 {
				fmtx.Printf("  R: %s", hexBytes(op.R))
			}
			fmtx.Printf("\n")
		}
	}

	fmtx.Printf("\nRegister map (non-zero)\n")
	regs := mem.Snapshot()
	for i, v := range regs {
		if v != 0 {
			fmtx.Printf("  %3d 0x%02X\n", i, v)
		}
	}
}

// parseArgs reads "clk=hz" pairs. hz may carry up to two decimals.
func parseArgs(args []string) ([]request, error) {
	out := make([]request, 0, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmtx.Errorf("bad argument %q, want clk=hz", a)
		}
		n, err := strconvx.Atoi(k)
		if err != nil || n < 0 || n >= si5351.NumClocks {
			return nil, fmtx.Errorf("bad clock %q", k)
		}
		f, err := parseCenti(v)
		if err != nil {
			return nil, fmtx.Errorf("bad frequency %q: %v", v, err)
		}
		out = append(out, request{clk: si5351.Clock(n), hz: f})
	}
	return out, nil
}

func parseCenti(s string) (si5351.Freq, error) {
	whole, frac, _ := strings.Cut(s, ".")
	w, err := strconvx.ParseUint(whole, 10, 32)
	if err != nil {
		return 0, err
	}
	if len(frac) > 2 {
		return 0, fmtx.Errorf("more than two decimals")
	}
	var c uint64
	if frac != "" {
		if c, err = strconvx.ParseUint(frac, 10, 8); err != nil {
			return 0, err
		}
		if len(frac) == 1 {
			c *= 10
		}
	}
	return si5351.Freq(w*si5351.FreqMult + c), nil
}

func centi(f si5351.Freq) string {
	return fmtx.Sprintf("%d.%02d", uint64(f)/si5351.FreqMult, uint64(f)%si5351.FreqMult)
}

func ratio(num, den uint64) string {
	if den == 1 {
		return strconvx.FormatUint(num, 10)
	}
	return strconvx.FormatUint(num, 10) + "/" + strconvx.FormatUint(den, 10)
}

func hexBytes(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i != 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmtx.Sprintf("0x%02X", v))
	}
	return sb.String()
}
