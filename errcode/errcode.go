package errcode

import (
	"context"
	"errors"

	"clocksynth-go/drivers/si5351"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	Unsupported    Code = "unsupported"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	InvalidTopic   Code = "invalid_topic"
	NotReady       Code = "not_ready"
	Unavailable    Code = "unavailable"
	Timeout        Code = "timeout"

	// Register transport failed.
	Transport Code = "transport"

	// SetFreq refusals.
	RejectedSharedPLL Code = "rejected_shared_pll"
	RejectedRatio     Code = "rejected_ratio"

	Error Code = "error" // generic fallback
)

// E wraps a Code with the failing operation and its cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		return s + ": " + e.Msg
	}
	if e.Err != nil {
		return s + ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error. The outermost *E
// wins over any Code it wraps.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}

// FromResult maps a SetFreq outcome to a Code.
func FromResult(r si5351.Result) Code {
	switch r {
	case si5351.Applied:
		return OK
	case si5351.RejectedSharedPLL:
		return RejectedSharedPLL
	case si5351.RejectedNonIntegerRatio:
		return RejectedRatio
	}
	return Error
}

// MapDriverErr maps low-level driver errors to a Code. Argument errors
// become InvalidParams, context expiry Timeout, anything else from the
// register transport Transport.
func MapDriverErr(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, si5351.ErrInvalidClock),
		errors.Is(err, si5351.ErrInvalidPLL),
		errors.Is(err, si5351.ErrInvalidInput):
		return InvalidParams
	case errors.Is(err, si5351.ErrInitTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return Timeout
	}
	return Transport
}

// Wrap attaches op and the mapped Code to a driver error.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: MapDriverErr(err), Op: op, Err: err}
}
