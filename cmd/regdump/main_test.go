//go:build !(rp2040 || rp2350)

package main

import (
	"testing"

	"clocksynth-go/drivers/si5351"
)

func TestParseCenti(t *testing.T) {
	cases := []struct {
		in   string
		want si5351.Freq
		ok   bool
	}{
		{"10000000", si5351.MHz(10), true},
		{"14097100.5", 1409710050, true},
		{"14097100.05", 1409710005, true},
		{"1.234", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, err := parseCenti(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("parseCenti(%q) = %d, %v", tc.in, got, err)
		}
	}
}

func TestParseArgs(t *testing.T) {
	reqs, err := parseArgs([]string{"0=10000000", "7=1000000.5"})
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 2 || reqs[1].clk != si5351.CLK7 || reqs[1].hz != 100000050 {
		t.Fatalf("reqs = %+v", reqs)
	}
	for _, bad := range []string{"8=1000", "x=1", "0:1000"} {
		if _, err := parseArgs([]string{bad}); err == nil {
			t.Fatalf("%q accepted", bad)
		}
	}
}
