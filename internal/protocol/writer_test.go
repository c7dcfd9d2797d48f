package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriter_HandshakeResponse(t *testing.T) {
	w := NewWriter(nil)
	n, err := w.WriteHandshakeResponse()
	if err != nil {
		t.Fatalf("WriteHandshakeResponse() error = %v", err)
	}
	if n != HeaderSize || w.Len() != HeaderSize {
		t.Errorf("wrote %d bytes (buffer %d), want %d", n, w.Len(), HeaderSize)
	}

	headers, err := ScanHeaders(w.Bytes())
	if err != nil {
		t.Fatalf("ScanHeaders() error = %v", err)
	}
	want := []Header{{Length: HeaderSize, Verifier: Verifier, Kind: KindHandshakeResponse}}
	if diff := cmp.Diff(want, headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
}

func TestWriter_ControlResponses(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer) (int, error)
		want  []byte
	}{
		{
			name:  "handshake",
			write: (*Writer).WriteHandshakeResponse,
			want:  []byte{0, 7, 0xF0, 0, 0, 0, 2},
		},
		{
			name:  "heartbeat",
			write: (*Writer).WriteHeartbeatResponse,
			want:  []byte{0, 7, 0xF0, 0, 0, 0, 1},
		},
		{
			name:  "ping pong",
			write: func(w *Writer) (int, error) { return w.WritePingPong(0x01020304) },
			want:  []byte{0, 11, 0xF0, 0, 0, 0, 10, 1, 2, 3, 4},
		},
		{
			name:  "sensor info ack",
			write: func(w *Writer) (int, error) { return w.WriteSensorInfoResponse(1, SensorStatusOK) },
			want:  []byte{0, 9, 0xF0, 0, 0, 0, 15, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(nil)
			n, err := tt.write(w)
			if err != nil {
				t.Fatalf("write error = %v", err)
			}
			if n != len(tt.want) {
				t.Errorf("n = %d, want %d", n, len(tt.want))
			}
			if !bytes.Equal(w.Bytes(), tt.want) {
				t.Errorf("bytes = % x, want % x", w.Bytes(), tt.want)
			}
		})
	}
}

func TestWriter_MultipleFramesAfterPrefix(t *testing.T) {
	prefix := []byte{0xAA, 0xBB, 0xCC}
	w := NewWriter(append([]byte(nil), prefix...))

	sizes := make([]int, 0, 3)
	for _, write := range []func() (int, error){
		w.WriteHeartbeatResponse,
		func() (int, error) { return w.WritePingPong(-7) },
		func() (int, error) { return w.WritePacket(&Serial{Text: "ok"}) },
	} {
		n, err := write()
		if err != nil {
			t.Fatalf("write error = %v", err)
		}
		sizes = append(sizes, n)
	}

	out := w.Bytes()
	if !bytes.Equal(out[:len(prefix)], prefix) {
		t.Fatalf("prefix overwritten: % x", out[:len(prefix)])
	}

	headers, err := ScanHeaders(out[len(prefix):])
	if err != nil {
		t.Fatalf("ScanHeaders() error = %v", err)
	}
	if len(headers) != len(sizes) {
		t.Fatalf("got %d headers, want %d", len(headers), len(sizes))
	}
	for i, h := range headers {
		if int(h.Length) != sizes[i] {
			t.Errorf("frame %d length = %d, want %d", i, h.Length, sizes[i])
		}
		if !h.Valid() {
			t.Errorf("frame %d verifier = 0x%02x", i, h.Verifier)
		}
	}

	res := NewParser().Parse(out[len(prefix):], nil)
	want := []Packet{&PingPong{ID: -7}, &Serial{Text: "ok"}}
	// The heartbeat response shares kind 1 with legacy rotation and is too
	// short to decode as one.
	if diff := cmp.Diff(want, res.Packets); diff != "" {
		t.Errorf("packets mismatch (-want +got):\n%s", diff)
	}
}

func TestWriter_PayloadErrorRollsBack(t *testing.T) {
	w := NewWriter(nil)
	if _, err := w.WriteHeartbeatResponse(); err != nil {
		t.Fatal(err)
	}
	before := append([]byte(nil), w.Bytes()...)

	boom := errors.New("boom")
	n, err := w.WriteFrame(KindSerial, func(e *Encoder) error {
		e.PutBytes([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("WriteFrame() error = %v, want wrapped boom", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
	if !bytes.Equal(w.Bytes(), before) {
		t.Errorf("buffer = % x after failed write, want % x", w.Bytes(), before)
	}
}

func TestWriter_FrameTooLarge(t *testing.T) {
	w := NewWriter(nil)
	_, err := w.WriteFrame(KindSerial, func(e *Encoder) error {
		e.PutBytes(make([]byte, maxFrameLength-HeaderSize+1))
		return nil
	})
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("WriteFrame() error = %v, want ErrFrameTooLarge", err)
	}
	if w.Len() != 0 {
		t.Errorf("Len() = %d after oversized frame, want 0", w.Len())
	}
}

func TestWriter_LargestFrame(t *testing.T) {
	w := NewWriter(nil)
	n, err := w.WriteFrame(KindSerial, func(e *Encoder) error {
		e.PutBytes(make([]byte, maxFrameLength-HeaderSize))
		return nil
	})
	if err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	if got := binary.BigEndian.Uint16(w.Bytes()); int(got) != n || n != maxFrameLength {
		t.Errorf("length field = %d, n = %d, want %d", got, n, maxFrameLength)
	}
}

func TestWriter_Reset(t *testing.T) {
	buf := make([]byte, 0, 64)
	w := NewWriter(buf)
	w.WritePingPong(1)
	w.Reset()
	if w.Len() != 0 || cap(w.Bytes()) != 64 {
		t.Errorf("after Reset: len = %d, cap = %d", w.Len(), cap(w.Bytes()))
	}
}

func TestLegacyHandshakeGreeting(t *testing.T) {
	g := LegacyHandshakeGreeting()
	if len(g) != LegacyGreetingSize {
		t.Fatalf("len = %d, want %d", len(g), LegacyGreetingSize)
	}
	if g[0] != 3 {
		t.Errorf("lead byte = %d, want 3", g[0])
	}
	text := "Hey OVR =D 5"
	if got := string(g[1 : 1+len(text)]); got != text {
		t.Errorf("text = %q, want %q", got, text)
	}
	for i, b := range g[1+len(text):] {
		if b != 0 {
			t.Fatalf("padding byte %d = 0x%02x, want 0", i, b)
		}
	}
}
