package bridge

import (
	"errors"
	"io"
)

// Frame types. Pub, sub and unsub carry a JSON wireMsg.
const (
	framePing  byte = 0x01
	framePong  byte = 0x02
	framePub   byte = 0x10
	frameSub   byte = 0x11
	frameUnsub byte = 0x12
	frameClose byte = 0x7f
)

const maxFramePayload = 0xFFFF

var errFrameTooLarge = errors.New("bridge: frame too large")

// Frame is a 3-byte header (type, length MSB, length LSB) and payload.
type Frame struct {
	Type    byte
	Payload []byte
}

type framedReader struct{ r io.Reader }
type framedWriter struct {
	w   io.Writer
	buf []byte
}

func newFramedReader(r io.Reader) *framedReader { return &framedReader{r: r} }
func newFramedWriter(w io.Writer) *framedWriter { return &framedWriter{w: w} }

func (fr *framedReader) ReadFrame() (Frame, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return Frame{}, err
	}
	n := int(hdr[1])<<8 | int(hdr[2])
	var buf []byte
	if n > 0 {
		buf = make([]byte, n)
		if _, err := io.ReadFull(fr.r, buf); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Type: hdr[0], Payload: buf}, nil
}

// WriteFrame emits header and payload in one Write so message-oriented
// links (WebSocket) carry whole frames.
func (fw *framedWriter) WriteFrame(f Frame) error {
	if len(f.Payload) > maxFramePayload {
		return errFrameTooLarge
	}
	fw.buf = append(fw.buf[:0], f.Type, byte(len(f.Payload)>>8), byte(len(f.Payload)))
	fw.buf = append(fw.buf, f.Payload...)
	_, err := fw.w.Write(fw.buf)
	return err
}
