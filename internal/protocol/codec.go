package protocol

import (
	"encoding/binary"
	"math"
)

// Decoder is a read cursor bounded to one frame payload.
//
// Reads past the bound return zero values and latch ErrCodecOverrun, so a
// codec can read its whole layout and check Err once at the end.
type Decoder struct {
	buf []byte
	pos int
	err error
}

// NewDecoder returns a Decoder over payload.
func NewDecoder(payload []byte) *Decoder {
	return &Decoder{buf: payload}
}

// Remaining returns the unread byte count.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

// Consumed returns the number of bytes read so far.
func (d *Decoder) Consumed() int { return d.pos }

// Err returns the first read error, if any.
func (d *Decoder) Err() error { return d.err }

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > d.Remaining() {
		d.err = ErrCodecOverrun
		return nil
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *Decoder) Uint8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) Int8() int8 { return int8(d.Uint8()) }

func (d *Decoder) Int32() int32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (d *Decoder) Float32() float32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

// Bytes returns a copy of the next n bytes.
func (d *Decoder) Bytes(n int) []byte {
	b := d.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Quaternion reads four floats in x, y, z, w order.
func (d *Decoder) Quaternion() Quaternion {
	return Quaternion{X: d.Float32(), Y: d.Float32(), Z: d.Float32(), W: d.Float32()}
}

// Encoder appends payload fields to a frame under construction.
type Encoder struct {
	buf []byte
}

// Len returns the number of bytes in the underlying buffer.
func (e *Encoder) Len() int { return len(e.buf) }

func (e *Encoder) PutUint8(v uint8) { e.buf = append(e.buf, v) }

func (e *Encoder) PutInt8(v int8) { e.buf = append(e.buf, byte(v)) }

func (e *Encoder) PutInt32(v int32) { e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v)) }

func (e *Encoder) PutFloat32(v float32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, math.Float32bits(v))
}

func (e *Encoder) PutBytes(b []byte) { e.buf = append(e.buf, b...) }

// PutQuaternion writes four floats in x, y, z, w order.
func (e *Encoder) PutQuaternion(q Quaternion) {
	e.PutFloat32(q.X)
	e.PutFloat32(q.Y)
	e.PutFloat32(q.Z)
	e.PutFloat32(q.W)
}
