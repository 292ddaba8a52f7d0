//go:build !(rp2040 || rp2350)

package fmtx

import (
	"fmt"
	"io"
	"os"
)

// DefaultOutput receives Printf.
var DefaultOutput io.Writer = os.Stdout

func Sprintf(format string, a ...any) string      { return fmt.Sprintf(format, a...) }
func Printf(format string, a ...any) (int, error) { return fmt.Fprintf(DefaultOutput, format, a...) }
func Errorf(format string, a ...any) error        { return fmt.Errorf(format, a...) }
