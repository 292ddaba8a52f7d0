//go:build rp2040 || rp2350

// Package strconvx holds the integer conversions used by bus topics and the
// command-line tools. MCU builds get a decimal/hex-only version that keeps
// strconv's float tables out of the image.
package strconvx

type numError string

func (e numError) Error() string { return "strconvx: " + string(e) }

const (
	errSyntax numError = "invalid syntax"
	errRange  numError = "value out of range"
)

const intSize = 32 << (^uint(0) >> 63)

const digits = "0123456789abcdef"

// FormatUint renders u in base 16, or base 10 for any other base.
func FormatUint(u uint64, base int) string {
	b := uint64(10)
	if base == 16 {
		b = 16
	}
	var buf [20]byte
	i := len(buf)
	for {
		i--
		buf[i] = digits[u%b]
		u /= b
		if u == 0 {
			return string(buf[i:])
		}
	}
}

func Itoa(i int) string {
	if i < 0 {
		return "-" + FormatUint(uint64(-int64(i)), 10)
	}
	return FormatUint(uint64(i), 10)
}

// ParseUint accepts base 10, base 16, or base 0 with an optional 0x prefix.
// Values that do not fit bitSize bits are a range error.
func ParseUint(s string, base, bitSize int) (uint64, error) {
	if base == 0 {
		base = 10
		if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
			base, s = 16, s[2:]
		}
	}
	if (base != 10 && base != 16) || s == "" {
		return 0, errSyntax
	}
	if bitSize <= 0 || bitSize > 64 {
		bitSize = 64
	}
	max := ^uint64(0) >> (64 - bitSize)

	var v uint64
	for i := 0; i < len(s); i++ {
		d, ok := digit(s[i])
		if !ok || d >= uint64(base) {
			return 0, errSyntax
		}
		if v > (max-d)/uint64(base) {
			return 0, errRange
		}
		v = v*uint64(base) + d
	}
	return v, nil
}

func digit(c byte) (uint64, bool) {
	switch {
	case '0' <= c && c <= '9':
		return uint64(c - '0'), true
	case 'a' <= c && c <= 'f':
		return uint64(c-'a') + 10, true
	case 'A' <= c && c <= 'F':
		return uint64(c-'A') + 10, true
	}
	return 0, false
}

func Atoi(s string) (int, error) {
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg, s = s[0] == '-', s[1:]
	}
	u, err := ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	lim := uint64(1) << (intSize - 1)
	switch {
	case neg && u > lim, !neg && u >= lim:
		return 0, errRange
	case neg:
		return int(-int64(u)), nil
	}
	return int(u), nil
}
