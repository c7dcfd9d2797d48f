package protocol

import (
	"encoding/binary"
	"fmt"
)

// Frame layout constants
const (
	HeaderSize          = 7    // length(2) + verifier(1) + kind(4)
	Verifier       byte = 0xF0 // Sentinel used to detect misaligned scanning
	maxFrameLength      = 0xFFFF
)

// Header is the fixed 7-byte prefix of every frame.
type Header struct {
	Length   uint16 // Total frame bytes, header included
	Verifier byte
	Kind     Kind
}

// Valid reports whether the verifier byte matches the protocol sentinel.
func (h Header) Valid() bool { return h.Verifier == Verifier }

// PayloadLen returns the claimed payload size, or 0 for a degenerate length.
func (h Header) PayloadLen() int {
	if int(h.Length) < HeaderSize {
		return 0
	}
	return int(h.Length) - HeaderSize
}

func (h Header) String() string {
	return fmt.Sprintf("Header{length=%d, verifier=0x%02x, kind=%s}", h.Length, h.Verifier, h.Kind)
}

// DecodeHeader reads a frame header from the start of b.
func DecodeHeader(b []byte) (Header, bool) {
	if len(b) < HeaderSize {
		return Header{}, false
	}
	return Header{
		Length:   binary.BigEndian.Uint16(b[0:2]),
		Verifier: b[2],
		Kind:     Kind(int32(binary.BigEndian.Uint32(b[3:7]))),
	}, true
}

// walkResult summarises one pass of walk over a buffer.
type walkResult struct {
	headers   int  // frame headers read
	consumed  int  // offset the scan reached
	truncated bool // last frame claimed more bytes than remained
	err       *FrameError
}

// walk visits every frame whose claimed length fits inside buf, in order.
//
// The cursor always advances to frame start + claimed length. A length that
// cannot hold the header stops the walk with ErrDegenerateLength; a length
// that runs past the end of buf stops it as truncated. The cursor therefore
// only ever moves forward and never leaves buf.
func walk(buf []byte, visit func(h Header, offset int, payload []byte)) walkResult {
	var res walkResult
	pos := 0
	for len(buf)-pos >= HeaderSize {
		start := pos
		available := len(buf) - start
		h, _ := DecodeHeader(buf[start:])
		res.headers++
		res.consumed = start + HeaderSize

		length := int(h.Length)
		if length < HeaderSize {
			res.err = &FrameError{Offset: start, Length: length, Kind: h.Kind, Err: ErrDegenerateLength}
			return res
		}
		if available < length {
			res.truncated = true
			res.err = &FrameError{Offset: start, Length: length, Kind: h.Kind, Err: ErrTruncatedFrame}
			res.consumed = len(buf)
			return res
		}

		end := start + length
		visit(h, start, buf[start+HeaderSize:end])
		pos = end
		res.consumed = end
	}
	return res
}

// ScanHeaders returns the header of every frame in buf whose claimed length
// fits, valid verifier or not. The error is non-nil when the scan stopped at
// a degenerate or truncated frame; headers read before it are still returned.
func ScanHeaders(buf []byte) ([]Header, error) {
	var headers []Header
	res := walk(buf, func(h Header, _ int, _ []byte) {
		headers = append(headers, h)
	})
	if res.err != nil {
		return headers, res.err
	}
	return headers, nil
}
