//go:build rp2040 || rp2350

// Package fmtx is the formatting used in log lines, CLI output and error
// text. Host builds delegate to fmt. MCU builds use a small printer that
// understands %s %v %q %d %x %X and %%, with an optional '-' or '0' flag and
// a width.
package fmtx

import (
	"io"
	"unicode/utf8"

	"clocksynth-go/x/strconvx"
)

// DefaultOutput receives Printf. Nothing is printed unless the board wires a
// console here.
var DefaultOutput io.Writer = discard{}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func Sprintf(format string, a ...any) string {
	var p printer
	p.printf(format, a)
	return string(p.buf)
}

func Printf(format string, a ...any) (int, error) {
	return io.WriteString(DefaultOutput, Sprintf(format, a...))
}

func Errorf(format string, a ...any) error {
	return &formatError{Sprintf(format, a...)}
}

type formatError struct{ s string }

func (e *formatError) Error() string { return e.s }

type printer struct{ buf []byte }

func (p *printer) printf(format string, args []any) {
	next := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			p.buf = append(p.buf, format[i])
			continue
		}
		i++

		var left, zero bool
		for i < len(format) && (format[i] == '-' || format[i] == '0') {
			left = left || format[i] == '-'
			zero = zero || format[i] == '0'
			i++
		}
		width := 0
		for i < len(format) && '0' <= format[i] && format[i] <= '9' {
			width = width*10 + int(format[i]-'0')
			i++
		}
		if i == len(format) {
			p.buf = append(p.buf, "%!(NOVERB)"...)
			return
		}

		verb := format[i]
		switch {
		case verb == '%':
			p.buf = append(p.buf, '%')
		case next == len(args):
			p.buf = append(p.buf, '%', '!', verb)
			p.buf = append(p.buf, "(MISSING)"...)
		default:
			p.pad(render(verb, args[next]), width, left, zero && !left)
			next++
		}
	}
}

// pad right-aligns s in width columns, or left-aligns it when left is set.
// Zero fill goes after a leading minus sign.
func (p *printer) pad(s string, width int, left, zero bool) {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		p.buf = append(p.buf, s...)
		return
	}
	if left {
		p.buf = append(p.buf, s...)
		p.fill(' ', n)
		return
	}
	if zero {
		if s != "" && s[0] == '-' {
			p.buf = append(p.buf, '-')
			s = s[1:]
		}
		p.fill('0', n)
	} else {
		p.fill(' ', n)
	}
	p.buf = append(p.buf, s...)
}

func (p *printer) fill(c byte, n int) {
	for ; n > 0; n-- {
		p.buf = append(p.buf, c)
	}
}

func render(verb byte, arg any) string {
	switch verb {
	case 's', 'v':
		return value(arg)
	case 'q':
		return quote(value(arg))
	case 'd':
		if v, ok := signed(arg); ok {
			return itoa64(v)
		}
		if u, ok := unsigned(arg); ok {
			return strconvx.FormatUint(u, 10)
		}
	case 'x', 'X':
		u, ok := unsigned(arg)
		if v, isSigned := signed(arg); isSigned && v >= 0 {
			u, ok = uint64(v), true
		}
		if ok {
			h := strconvx.FormatUint(u, 16)
			if verb == 'X' {
				h = upperHex(h)
			}
			return h
		}
	}
	return "%!" + string(verb) + "(" + value(arg) + ")"
}

func value(arg any) string {
	switch x := arg.(type) {
	case nil:
		return "<nil>"
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case error:
		return x.Error()
	case interface{ String() string }:
		return x.String()
	}
	if v, ok := signed(arg); ok {
		return itoa64(v)
	}
	if u, ok := unsigned(arg); ok {
		return strconvx.FormatUint(u, 10)
	}
	return "?"
}

func signed(arg any) (int64, bool) {
	switch x := arg.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func unsigned(arg any) (uint64, bool) {
	switch x := arg.(type) {
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	case uintptr:
		return uint64(x), true
	}
	return 0, false
}

func itoa64(v int64) string {
	if v < 0 {
		return "-" + strconvx.FormatUint(uint64(-v), 10)
	}
	return strconvx.FormatUint(uint64(v), 10)
}

func upperHex(h string) string {
	b := []byte(h)
	for i, c := range b {
		if 'a' <= c && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func quote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			out = append(out, '\\', c)
		case '\n':
			out = append(out, '\\', 'n')
		case '\t':
			out = append(out, '\\', 't')
		default:
			out = append(out, c)
		}
	}
	return string(append(out, '"'))
}
