package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateLength is returned when a frame claims a length that cannot
	// hold its own header. Scanning stops because no next boundary exists.
	ErrDegenerateLength = errors.New("protocol: degenerate frame length")
	// ErrTruncatedFrame is returned when a frame claims more bytes than remain.
	ErrTruncatedFrame = errors.New("protocol: truncated frame")
	// ErrCodecOverrun is returned when a codec reads past its frame payload.
	ErrCodecOverrun = errors.New("protocol: codec read past frame payload")
	// ErrFrameTooLarge is returned when an encoded frame does not fit a u16 length.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
	// ErrDuplicateKind is returned when a catalog registers a kind twice.
	ErrDuplicateKind = errors.New("protocol: duplicate kind registration")
	// ErrInvalidString is returned for negative or oversized string lengths.
	ErrInvalidString = errors.New("protocol: invalid string length")
)

// FrameError ties a frame-scoped failure to where it happened in the buffer.
type FrameError struct {
	Offset int  // Byte offset of the frame start
	Length int  // Claimed frame length
	Kind   Kind // Claimed packet kind
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame at offset %d (kind=%s, length=%d): %v", e.Offset, e.Kind, e.Length, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }
