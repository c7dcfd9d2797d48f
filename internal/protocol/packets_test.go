package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// roundTrip encodes p as a frame, parses it back and returns the single packet.
func roundTrip(t *testing.T, p Packet) Packet {
	t.Helper()

	frame, err := EncodePacket(p)
	if err != nil {
		t.Fatalf("EncodePacket(%s) error = %v", p, err)
	}

	res := NewParser().Parse(frame, nil)
	if res.Err != nil {
		t.Fatalf("Parse() error = %v", res.Err)
	}
	if len(res.Packets) != 1 {
		t.Fatalf("Parse() returned %d packets, want 1 (dropped=%d, decode errors=%v)",
			len(res.Packets), res.Dropped(), res.DecodeErrors)
	}
	return res.Packets[0]
}

func TestPackets_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
	}{
		{"heartbeat", &Heartbeat{}},
		{"rotation", &Rotation{Rotation: Quaternion{X: 0.5, Y: -0.5, Z: 0.25, W: 1}}},
		{"rotation zero", &Rotation{}},
		{"rotation2", &Rotation2{Rotation{Rotation: Quaternion{X: -1, W: 0.001}}}},
		{"handshake", &Handshake{
			BoardType:     4,
			IMUType:       5,
			MCUType:       2,
			IMUInfo:       [3]int32{1, -2, 3},
			FirmwareBuild: 17,
			Firmware:      "0.4.0",
			MAC:           HardwareAddr{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01},
		}},
		{"handshake empty firmware", &Handshake{BoardType: 1, MAC: HardwareAddr{1, 2, 3, 4, 5, 6}}},
		{"handshake negative fields", &Handshake{BoardType: -1, IMUType: -2, MCUType: -3, FirmwareBuild: -4}},
		{"handshake max firmware", &Handshake{Firmware: strings.Repeat("f", 255)}},
		{"ping pong", &PingPong{ID: 42}},
		{"ping pong negative", &PingPong{ID: -2147483648}},
		{"serial", &Serial{Text: "[INFO] Sensor 0 calibrated\n"}},
		{"serial empty", &Serial{Text: ""}},
		{"serial utf8", &Serial{Text: "température ✓"}},
		{"serial max length", &Serial{Text: strings.Repeat("s", maxFrameLength-HeaderSize-4)}},
		{"battery", &BatteryLevel{Voltage: 3.7, Level: 0.82}},
		{"battery zero", &BatteryLevel{}},
		{"battery negative", &BatteryLevel{Voltage: -1, Level: -0.5}},
		{"tap", &Tap{Sensor: 1, Tap: 0x42}},
		{"error", &Error{Sensor: 0, Code: 255}},
		{"sensor info", &SensorInfo{Sensor: 2, Status: SensorStatusOK, IMUType: 8}},
		{"rotation data", &RotationData{
			Sensor:      1,
			DataType:    DataTypeCorrection,
			Rotation:    Quaternion{X: 0.1, Y: 0.2, Z: 0.3, W: 0.9},
			Calibration: 3,
		}},
		{"magnetometer accuracy", &MagnetometerAccuracy{Sensor: 0, Accuracy: -12.5}},
		{"signal strength", &SignalStrength{Sensor: 0, Strength: -67}},
		{"signal strength positive", &SignalStrength{Sensor: 255, Strength: 127}},
		{"temperature", &Temperature{Sensor: 0, Celsius: 31.25}},
		{"temperature negative", &Temperature{Sensor: 3, Celsius: -10}},
		{"protocol change", &ProtocolChange{TargetProtocol: 2, TargetVersion: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.packet)
			if diff := cmp.Diff(tt.packet, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPackets_EncodeRejectsOversizedStrings(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
	}{
		{"firmware over 255 bytes", &Handshake{Firmware: strings.Repeat("f", 256)}},
		{"serial over frame limit", &Serial{Text: strings.Repeat("s", maxFrameLength)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodePacket(tt.packet)
			if !errors.Is(err, ErrInvalidString) {
				t.Errorf("EncodePacket() error = %v, want ErrInvalidString", err)
			}
		})
	}
}

func TestHandshake_DecodeLegacyLayouts(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    Handshake
		wantErr error
	}{
		{
			name:    "empty payload",
			payload: nil,
			want:    Handshake{},
		},
		{
			name:    "board type only",
			payload: []byte{0, 0, 0, 4},
			want:    Handshake{BoardType: 4},
		},
		{
			name:    "board imu mcu without imu info",
			payload: []byte{0, 0, 0, 4, 0, 0, 0, 5, 0, 0, 0, 2},
			want:    Handshake{BoardType: 4, IMUType: 5, MCUType: 2},
		},
		{
			name: "firmware without mac",
			payload: append([]byte{
				0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3,
				0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
				0, 0, 0, 9,
				3,
			}, "abc"...),
			want: Handshake{BoardType: 1, IMUType: 2, MCUType: 3, FirmwareBuild: 9, Firmware: "abc"},
		},
		{
			name: "firmware length past payload",
			payload: append([]byte{
				0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3,
				0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
				0, 0, 0, 9,
				10,
			}, "abc"...),
			wantErr: ErrCodecOverrun,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Handshake
			err := got.Decode(NewDecoder(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSerial_DecodeInvalidLength(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		wantErr error
	}{
		{"negative length", []byte{0xFF, 0xFF, 0xFF, 0xFF}, ErrInvalidString},
		{"length past payload", []byte{0, 0, 0, 5, 'a', 'b'}, ErrCodecOverrun},
		{"missing length", []byte{0, 0}, ErrCodecOverrun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Serial
			if err := s.Decode(NewDecoder(tt.payload)); !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPackets_LegacyOptionalFields(t *testing.T) {
	var b BatteryLevel
	if err := b.Decode(NewDecoder([]byte{0x40, 0x6C, 0xCC, 0xCD})); err != nil {
		t.Fatalf("BatteryLevel.Decode() error = %v", err)
	}
	if b.Voltage < 3.69 || b.Voltage > 3.71 || b.Level != 0 {
		t.Errorf("BatteryLevel = %+v, want voltage 3.7 and no level", b)
	}

	var s SensorInfo
	if err := s.Decode(NewDecoder([]byte{1, SensorStatusError})); err != nil {
		t.Fatalf("SensorInfo.Decode() error = %v", err)
	}
	if s.Sensor != 1 || s.Status != SensorStatusError || s.IMUType != 0 {
		t.Errorf("SensorInfo = %+v, want sensor 1 status error", s)
	}
}

func TestPackets_DecodeShortPayloadOverruns(t *testing.T) {
	tests := []struct {
		name    string
		packet  Packet
		payload []byte
	}{
		{"ping pong", &PingPong{}, []byte{0, 0, 1}},
		{"rotation", &Rotation{}, make([]byte, 15)},
		{"rotation data", &RotationData{}, make([]byte, 18)},
		{"tap", &Tap{}, []byte{1}},
		{"temperature", &Temperature{}, []byte{0, 1, 2, 3}},
		{"protocol change", &ProtocolChange{}, []byte{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.packet.Decode(NewDecoder(tt.payload)); !errors.Is(err, ErrCodecOverrun) {
				t.Errorf("Decode() error = %v, want ErrCodecOverrun", err)
			}
		})
	}
}

func TestSensorIndex(t *testing.T) {
	tests := []struct {
		packet SensorPacket
		want   uint8
	}{
		{&Rotation{}, 0},
		{&Rotation2{}, 1},
		{&RotationData{Sensor: 3}, 3},
		{&SensorInfo{Sensor: 2}, 2},
		{&Temperature{Sensor: 4}, 4},
	}
	for _, tt := range tests {
		if got := tt.packet.SensorIndex(); got != tt.want {
			t.Errorf("%s.SensorIndex() = %d, want %d", tt.packet.Kind(), got, tt.want)
		}
	}
}

func TestHardwareAddr_String(t *testing.T) {
	addr := HardwareAddr{0x0a, 0x1b, 0x2c, 0x3d, 0x4e, 0x5f}
	if got := addr.String(); got != "0A:1B:2C:3D:4E:5F" {
		t.Errorf("String() = %q", got)
	}
	if addr.IsZero() {
		t.Error("IsZero() = true for a set address")
	}
	if !(HardwareAddr{}).IsZero() {
		t.Error("IsZero() = false for the zero address")
	}
}

func TestParseHardwareAddr(t *testing.T) {
	tests := []struct {
		in      string
		want    HardwareAddr
		wantErr bool
	}{
		{"DE:AD:BE:EF:00:01", HardwareAddr{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01}, false},
		{"de-ad-be-ef-00-01", HardwareAddr{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01}, false},
		{"00:00:5e:00:53:00:00:01", HardwareAddr{}, true},
		{"not a mac", HardwareAddr{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHardwareAddr(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHardwareAddr(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHardwareAddr(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
