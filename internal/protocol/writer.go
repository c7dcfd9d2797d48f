package protocol

import (
	"encoding/binary"
	"fmt"
)

// Writer appends frames to a caller-owned byte slice.
//
// Each frame's start offset is captured when the frame is begun, so any
// number of frames can share one buffer and each gets its own length.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer that appends after the existing contents of buf.
// Pass buf[:0] to reuse a buffer's capacity.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Bytes returns the buffer including every frame written so far.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the total number of bytes in the buffer.
func (w *Writer) Len() int { return len(w.buf) }

// Reset discards written frames but keeps the capacity.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// WriteFrame writes one frame of the given kind. payload appends the
// kind-specific bytes and may be nil for an empty payload. The length field
// is written as a placeholder and patched once the payload is in place.
// On error nothing is left in the buffer and 0 is returned.
func (w *Writer) WriteFrame(kind Kind, payload func(e *Encoder) error) (int, error) {
	start := len(w.buf)

	e := Encoder{buf: w.buf}
	e.buf = binary.BigEndian.AppendUint16(e.buf, 0) // length placeholder
	e.buf = append(e.buf, Verifier)
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(kind))

	if payload != nil {
		if err := payload(&e); err != nil {
			w.buf = e.buf[:start]
			return 0, fmt.Errorf("encode %s payload: %w", kind, err)
		}
	}

	n := len(e.buf) - start
	if n > maxFrameLength {
		w.buf = e.buf[:start]
		return 0, fmt.Errorf("%s frame of %d bytes: %w", kind, n, ErrFrameTooLarge)
	}
	binary.BigEndian.PutUint16(e.buf[start:], uint16(n))

	w.buf = e.buf
	return n, nil
}

// WritePacket writes p as one frame.
func (w *Writer) WritePacket(p Packet) (int, error) {
	return w.WriteFrame(p.Kind(), p.Encode)
}

// EncodePacket returns p as a standalone frame.
func EncodePacket(p Packet) ([]byte, error) {
	w := NewWriter(nil)
	if _, err := w.WritePacket(p); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
