package errcode

import (
	"context"
	"errors"
	"testing"

	"clocksynth-go/drivers/si5351"
)

func TestOf(t *testing.T) {
	wrapped := &E{C: Busy, Op: "set_freq"}
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, OK},
		{"code", InvalidParams, InvalidParams},
		{"wrapper", wrapped, Busy},
		{"joined", errors.Join(errors.New("x"), wrapped), Busy},
		{"plain", errors.New("boom"), Error},
		// Bus timeouts surfacing through a driver call are transport faults.
		{"wrapped bus timeout", Wrap("set_freq", Timeout), Transport},
		{"wrapped bus busy", Wrap("set_pll", Busy), Transport},
		{"outer wrapper", &E{C: InvalidParams, Err: &E{C: Busy}}, InvalidParams},
	}
	for _, tc := range cases {
		if got := Of(tc.err); got != tc.want {
			t.Errorf("%s: Of = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestMapDriverErr(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{si5351.ErrInvalidClock, InvalidParams},
		{si5351.ErrInvalidPLL, InvalidParams},
		{si5351.ErrInvalidInput, InvalidParams},
		{errors.Join(si5351.ErrInitTimeout, context.DeadlineExceeded), Timeout},
		{errors.New("i2c nack"), Transport},
	}
	for _, tc := range cases {
		if got := MapDriverErr(tc.err); got != tc.want {
			t.Errorf("MapDriverErr(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("i2c nack")
	err := Wrap("set_pll", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("Wrap lost cause: %v", err)
	}
	if Of(err) != Transport {
		t.Fatalf("Of(Wrap) = %q, want %q", Of(err), Transport)
	}
	if got, want := err.Error(), "set_pll: transport: i2c nack"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if Wrap("x", nil) != nil {
		t.Fatal("Wrap(nil) != nil")
	}
}

func TestFromResult(t *testing.T) {
	if FromResult(si5351.Applied) != OK ||
		FromResult(si5351.RejectedSharedPLL) != RejectedSharedPLL ||
		FromResult(si5351.RejectedNonIntegerRatio) != RejectedRatio {
		t.Fatal("FromResult mapping wrong")
	}
}
