package timex

import (
	"testing"
	"time"
)

func TestMs(t *testing.T) {
	def := 500 * time.Millisecond
	cases := []struct {
		in   int
		want time.Duration
	}{
		{0, def},
		{-1, 0},
		{250, 250 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := Ms(tc.in, def); got != tc.want {
			t.Errorf("Ms(%d) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNowMsMonotonicEnough(t *testing.T) {
	a := NowMs()
	b := NowMs()
	if b < a {
		t.Fatalf("NowMs went backwards: %d then %d", a, b)
	}
}
