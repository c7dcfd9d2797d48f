package protocol

import (
	"fmt"
	"net"
)

// Packet is one decoded or to-be-encoded frame payload.
//
// Decode must copy out everything it keeps: the Decoder's backing buffer is
// reused for the next datagram.
type Packet interface {
	Kind() Kind
	Decode(d *Decoder) error
	Encode(e *Encoder) error
	String() string
}

// SensorPacket is implemented by packets scoped to one sensor on a tracker.
type SensorPacket interface {
	Packet
	SensorIndex() uint8
}

// Quaternion is a rotation as sent by tracker firmware.
type Quaternion struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

func (q Quaternion) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f, %.4f)", q.X, q.Y, q.Z, q.W)
}

// HardwareAddr is the 6-byte MAC a tracker reports in its handshake.
type HardwareAddr [6]byte

func (a HardwareAddr) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// MarshalText renders the address in colon notation for JSON and YAML.
func (a HardwareAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// IsZero reports whether the address was never set.
func (a HardwareAddr) IsZero() bool {
	return a == HardwareAddr{}
}

// UnmarshalText parses colon notation as produced by MarshalText.
func (a *HardwareAddr) UnmarshalText(text []byte) error {
	mac, err := ParseHardwareAddr(string(text))
	if err != nil {
		return err
	}
	*a = mac
	return nil
}

// ParseHardwareAddr parses a 6-byte MAC address in any notation net.ParseMAC
// accepts.
func ParseHardwareAddr(s string) (HardwareAddr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return HardwareAddr{}, fmt.Errorf("invalid MAC address %q: %w", s, err)
	}
	if len(hw) != 6 {
		return HardwareAddr{}, fmt.Errorf("invalid MAC address %q: want 6 bytes, got %d", s, len(hw))
	}
	var a HardwareAddr
	copy(a[:], hw)
	return a, nil
}
