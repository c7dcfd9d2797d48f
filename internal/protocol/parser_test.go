package protocol

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// rawFrame builds a frame by hand, independent of Writer. length < 0 means
// use the real size.
func rawFrame(length int, verifier byte, kind Kind, payload []byte) []byte {
	if length < 0 {
		length = HeaderSize + len(payload)
	}
	b := make([]byte, HeaderSize, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(b[0:2], uint16(length))
	b[2] = verifier
	binary.BigEndian.PutUint32(b[3:7], uint32(kind))
	return append(b, payload...)
}

func concat(frames ...[]byte) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

func int32Payload(v int32) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(v))
}

// aliveRecorder counts MarkAlive calls.
type aliveRecorder struct {
	calls int
	last  time.Time
}

func (r *aliveRecorder) MarkAlive(at time.Time) {
	r.calls++
	r.last = at
}

func TestParser_TwoConsecutiveFrames(t *testing.T) {
	buf := concat(
		rawFrame(-1, Verifier, KindHeartbeat, nil),
		rawFrame(-1, Verifier, KindPingPong, int32Payload(42)),
	)

	var live aliveRecorder
	res := NewParser().Parse(buf, &live)

	if res.Err != nil {
		t.Fatalf("Parse() error = %v", res.Err)
	}
	want := []Packet{&Heartbeat{}, &PingPong{ID: 42}}
	if diff := cmp.Diff(want, res.Packets); diff != "" {
		t.Errorf("packets mismatch (-want +got):\n%s", diff)
	}
	if res.Frames != 2 {
		t.Errorf("Frames = %d, want 2", res.Frames)
	}
	if res.Consumed != len(buf) {
		t.Errorf("Consumed = %d, want %d", res.Consumed, len(buf))
	}
	if !res.Alive || live.calls != 1 {
		t.Errorf("Alive = %v, MarkAlive calls = %d, want true and 1", res.Alive, live.calls)
	}
}

func TestParser_ShortBuffer(t *testing.T) {
	for n := 0; n < HeaderSize; n++ {
		var live aliveRecorder
		res := NewParser().Parse(make([]byte, n), &live)

		if len(res.Packets) != 0 {
			t.Errorf("len=%d: got %d packets, want 0", n, len(res.Packets))
		}
		if res.Alive || live.calls != 0 {
			t.Errorf("len=%d: liveness reported for a buffer with no header", n)
		}
		if res.Err != nil {
			t.Errorf("len=%d: unexpected error %v", n, res.Err)
		}
	}
}

func TestParser_BadVerifierResynchronizes(t *testing.T) {
	buf := concat(
		rawFrame(-1, 0x00, KindPingPong, int32Payload(1)),
		rawFrame(-1, Verifier, KindPingPong, int32Payload(2)),
	)

	res := NewParser().Parse(buf, nil)

	if len(res.Packets) != 1 {
		t.Fatalf("got %d packets, want 1", len(res.Packets))
	}
	if p, ok := res.Packets[0].(*PingPong); !ok || p.ID != 2 {
		t.Errorf("packet = %v, want PingPong{id=2}", res.Packets[0])
	}
	if res.BadVerifier != 1 {
		t.Errorf("BadVerifier = %d, want 1", res.BadVerifier)
	}
}

func TestParser_ZeroLengthAborts(t *testing.T) {
	buf := concat(
		rawFrame(-1, Verifier, KindHeartbeat, nil),
		rawFrame(0, Verifier, KindPingPong, int32Payload(9)),
		rawFrame(-1, Verifier, KindHeartbeat, nil),
	)

	done := make(chan Result, 1)
	go func() { done <- NewParser().Parse(buf, nil) }()

	var res Result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Parse() did not return on a zero-length frame")
	}

	if !errors.Is(res.Err, ErrDegenerateLength) {
		t.Fatalf("Err = %v, want ErrDegenerateLength", res.Err)
	}
	var ferr *FrameError
	if !errors.As(res.Err, &ferr) || ferr.Offset != HeaderSize {
		t.Errorf("Err = %#v, want FrameError at offset %d", res.Err, HeaderSize)
	}
	if len(res.Packets) != 1 {
		t.Errorf("got %d packets, want the 1 decoded before the abort", len(res.Packets))
	}
}

func TestParser_LengthSmallerThanHeaderAborts(t *testing.T) {
	for length := 1; length < HeaderSize; length++ {
		res := NewParser().Parse(rawFrame(length, Verifier, KindHeartbeat, nil), nil)
		if !errors.Is(res.Err, ErrDegenerateLength) {
			t.Errorf("length=%d: Err = %v, want ErrDegenerateLength", length, res.Err)
		}
	}
}

func TestParser_TruncatedFrame(t *testing.T) {
	good := rawFrame(-1, Verifier, KindPingPong, int32Payload(5))
	truncated := rawFrame(HeaderSize+4, Verifier, KindPingPong, []byte{0, 0})
	buf := concat(good, truncated)

	res := NewParser().Parse(buf, nil)
	if !errors.Is(res.Err, ErrTruncatedFrame) {
		t.Errorf("Err = %v, want ErrTruncatedFrame", res.Err)
	}
	var ferr *FrameError
	if !errors.As(res.Err, &ferr) || ferr.Offset != len(good) || ferr.Length != HeaderSize+4 {
		t.Errorf("Err = %#v, want a FrameError at offset %d", res.Err, len(good))
	}
	if res.Truncated != 1 {
		t.Errorf("Truncated = %d, want 1", res.Truncated)
	}
	if len(res.Packets) != 1 {
		t.Errorf("got %d packets, want 1", len(res.Packets))
	}
	if res.Consumed != len(buf) {
		t.Errorf("Consumed = %d, want %d", res.Consumed, len(buf))
	}
}

func TestParser_MaximumLengthPastBuffer(t *testing.T) {
	buf := rawFrame(0xFFFF, Verifier, KindHeartbeat, nil)

	res := NewParser().Parse(buf, nil)
	if !errors.Is(res.Err, ErrTruncatedFrame) {
		t.Errorf("Err = %v, want ErrTruncatedFrame", res.Err)
	}
	if res.Truncated != 1 || len(res.Packets) != 0 {
		t.Errorf("Truncated = %d, packets = %d; want 1 and 0", res.Truncated, len(res.Packets))
	}
	if !res.Alive {
		t.Error("Alive = false, want true once a header was read")
	}
}

func TestParser_UnknownAndReservedKindsSkipped(t *testing.T) {
	buf := concat(
		rawFrame(-1, Verifier, KindAccel, make([]byte, 12)),
		rawFrame(-1, Verifier, Kind(77), []byte{1, 2, 3}),
		rawFrame(-1, Verifier, Kind(-1), nil),
		rawFrame(-1, Verifier, KindTap, []byte{0, 1}),
	)

	res := NewParser().Parse(buf, nil)
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if res.Unknown != 3 {
		t.Errorf("Unknown = %d, want 3", res.Unknown)
	}
	want := []Packet{&Tap{Sensor: 0, Tap: 1}}
	if diff := cmp.Diff(want, res.Packets); diff != "" {
		t.Errorf("packets mismatch (-want +got):\n%s", diff)
	}
}

func TestParser_CodecOverrunDropsFrameOnly(t *testing.T) {
	buf := concat(
		rawFrame(-1, Verifier, KindPingPong, []byte{0, 1}),
		rawFrame(-1, Verifier, KindSignalStrength, []byte{0, 0xC0}),
	)

	res := NewParser().Parse(buf, nil)
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if len(res.DecodeErrors) != 1 {
		t.Fatalf("DecodeErrors = %v, want 1 entry", res.DecodeErrors)
	}
	ferr := res.DecodeErrors[0]
	if !errors.Is(ferr, ErrCodecOverrun) || ferr.Offset != 0 || ferr.Kind != KindPingPong {
		t.Errorf("DecodeErrors[0] = %v", ferr)
	}
	want := []Packet{&SignalStrength{Sensor: 0, Strength: -64}}
	if diff := cmp.Diff(want, res.Packets); diff != "" {
		t.Errorf("packets mismatch (-want +got):\n%s", diff)
	}
}

func TestParser_LengthBoundsCodec(t *testing.T) {
	// The ping id bytes sit outside the claimed frame; the codec must not
	// read into the next frame to find them.
	buf := concat(
		rawFrame(HeaderSize, Verifier, KindPingPong, nil),
		rawFrame(-1, Verifier, KindHeartbeat, nil),
	)

	res := NewParser().Parse(buf, nil)
	if len(res.DecodeErrors) != 1 {
		t.Errorf("DecodeErrors = %d, want 1", len(res.DecodeErrors))
	}
	if len(res.Packets) != 1 || res.Packets[0].Kind() != KindHeartbeat {
		t.Errorf("packets = %v, want one heartbeat", res.Packets)
	}
}

func TestParser_ExtraPayloadIgnored(t *testing.T) {
	// A frame longer than its codec needs still advances by its length.
	payload := append(int32Payload(3), 0xAA, 0xBB)
	buf := concat(
		rawFrame(-1, Verifier, KindPingPong, payload),
		rawFrame(-1, Verifier, KindPingPong, int32Payload(4)),
	)

	res := NewParser().Parse(buf, nil)
	want := []Packet{&PingPong{ID: 3}, &PingPong{ID: 4}}
	if diff := cmp.Diff(want, res.Packets); diff != "" {
		t.Errorf("packets mismatch (-want +got):\n%s", diff)
	}
}

func TestParser_TrailingGarbageIgnored(t *testing.T) {
	buf := concat(rawFrame(-1, Verifier, KindHeartbeat, nil), []byte{0xF0, 0x01, 0x02})

	res := NewParser().Parse(buf, nil)
	if res.Err != nil || len(res.Packets) != 1 {
		t.Errorf("Err = %v, packets = %d; want nil and 1", res.Err, len(res.Packets))
	}
	if res.Consumed != HeaderSize {
		t.Errorf("Consumed = %d, want %d", res.Consumed, HeaderSize)
	}
}

func TestParser_DecodedPacketsOwnTheirData(t *testing.T) {
	frame, err := EncodePacket(&Serial{Text: "hello"})
	if err != nil {
		t.Fatalf("EncodePacket() error = %v", err)
	}

	res := NewParser().Parse(frame, nil)
	for i := range frame {
		frame[i] = 0
	}

	if s := res.Packets[0].(*Serial); s.Text != "hello" {
		t.Errorf("Serial.Text = %q after buffer reuse, want %q", s.Text, "hello")
	}
}

func TestParser_ClockAndCatalogOptions(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	catalog := MustNewCatalog(Registration{KindHeartbeat, func() Packet { return &Heartbeat{} }})

	p := NewParser(WithClock(func() time.Time { return fixed }), WithCatalog(catalog))
	if p.Catalog() != catalog {
		t.Error("Catalog() did not return the configured catalog")
	}

	buf := concat(
		rawFrame(-1, Verifier, KindHeartbeat, nil),
		rawFrame(-1, Verifier, KindPingPong, int32Payload(1)),
	)

	var live aliveRecorder
	res := p.Parse(buf, &live)
	if !live.last.Equal(fixed) {
		t.Errorf("MarkAlive time = %v, want %v", live.last, fixed)
	}
	if len(res.Packets) != 1 || res.Unknown != 1 {
		t.Errorf("packets = %d, unknown = %d; want 1 and 1", len(res.Packets), res.Unknown)
	}
}

func TestParser_LivenessOnDroppedFrames(t *testing.T) {
	// A frame counts as arrival even if it is not decoded.
	var called bool
	res := NewParser().Parse(rawFrame(-1, 0x00, KindHeartbeat, nil), LivenessFunc(func(time.Time) {
		called = true
	}))
	if !res.Alive || !called {
		t.Errorf("Alive = %v, called = %v; want both true", res.Alive, called)
	}
}

func TestResult_Dropped(t *testing.T) {
	r := Result{Unknown: 1, BadVerifier: 2, Truncated: 1, DecodeErrors: []*FrameError{{}}}
	if got := r.Dropped(); got != 5 {
		t.Errorf("Dropped() = %d, want 5", got)
	}
}
