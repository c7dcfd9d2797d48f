package protocol

import "fmt"

// Rotation data types carried by RotationData
const (
	DataTypeNormal     uint8 = 1
	DataTypeCorrection uint8 = 2
)

// Sensor status values carried by SensorInfo
const (
	SensorStatusDisconnected uint8 = 0
	SensorStatusOK           uint8 = 1
	SensorStatusError        uint8 = 2
)

// Heartbeat (kind 0) keeps a tracker's connection alive. No payload.
type Heartbeat struct{}

func (p *Heartbeat) Kind() Kind              { return KindHeartbeat }
func (p *Heartbeat) Decode(d *Decoder) error { return d.Err() }
func (p *Heartbeat) Encode(e *Encoder) error { return nil }
func (p *Heartbeat) String() string          { return "Heartbeat{}" }

// Rotation (kind 1) is the legacy single-sensor orientation packet.
type Rotation struct {
	Rotation Quaternion `json:"rotation"`
}

func (p *Rotation) Kind() Kind         { return KindRotation }
func (p *Rotation) SensorIndex() uint8 { return 0 }

func (p *Rotation) Decode(d *Decoder) error {
	p.Rotation = d.Quaternion()
	return d.Err()
}

func (p *Rotation) Encode(e *Encoder) error {
	e.PutQuaternion(p.Rotation)
	return nil
}

func (p *Rotation) String() string {
	return fmt.Sprintf("Rotation{rotation=%s}", p.Rotation)
}

// Rotation2 (kind 16) is the legacy orientation packet for the second sensor.
type Rotation2 struct {
	Rotation
}

func (p *Rotation2) Kind() Kind         { return KindRotation2 }
func (p *Rotation2) SensorIndex() uint8 { return 1 }

func (p *Rotation2) String() string {
	return fmt.Sprintf("Rotation2{rotation=%s}", p.Rotation.Rotation)
}

// Handshake (kind 3) introduces a tracker to the server.
//
// Older firmware sends a shortened payload, so every field after the first is
// read only when enough bytes remain for it. Encode always writes the full
// layout.
type Handshake struct {
	BoardType     int32        `json:"board_type"`
	IMUType       int32        `json:"imu_type"`
	MCUType       int32        `json:"mcu_type"`
	IMUInfo       [3]int32     `json:"imu_info"`
	FirmwareBuild int32        `json:"firmware_build"`
	Firmware      string       `json:"firmware"`
	MAC           HardwareAddr `json:"mac"`
}

func (p *Handshake) Kind() Kind { return KindHandshake }

func (p *Handshake) Decode(d *Decoder) error {
	if d.Remaining() >= 4 {
		p.BoardType = d.Int32()
	}
	if d.Remaining() >= 4 {
		p.IMUType = d.Int32()
	}
	if d.Remaining() >= 4 {
		p.MCUType = d.Int32()
	}
	if d.Remaining() >= 12 {
		for i := range p.IMUInfo {
			p.IMUInfo[i] = d.Int32()
		}
	}
	if d.Remaining() >= 4 {
		p.FirmwareBuild = d.Int32()
	}
	if d.Remaining() > 0 {
		n := int(d.Uint8())
		p.Firmware = string(d.Bytes(n))
	}
	if d.Remaining() >= len(p.MAC) {
		copy(p.MAC[:], d.Bytes(len(p.MAC)))
	}
	return d.Err()
}

func (p *Handshake) Encode(e *Encoder) error {
	if len(p.Firmware) > 0xFF {
		return fmt.Errorf("firmware name of %d bytes: %w", len(p.Firmware), ErrInvalidString)
	}
	e.PutInt32(p.BoardType)
	e.PutInt32(p.IMUType)
	e.PutInt32(p.MCUType)
	for _, v := range p.IMUInfo {
		e.PutInt32(v)
	}
	e.PutInt32(p.FirmwareBuild)
	e.PutUint8(uint8(len(p.Firmware)))
	e.PutBytes([]byte(p.Firmware))
	e.PutBytes(p.MAC[:])
	return nil
}

func (p *Handshake) String() string {
	return fmt.Sprintf("Handshake{board=%d, imu=%d, mcu=%d, build=%d, firmware=%q, mac=%s}",
		p.BoardType, p.IMUType, p.MCUType, p.FirmwareBuild, p.Firmware, p.MAC)
}

// PingPong (kind 10) carries an id the other side echoes back.
type PingPong struct {
	ID int32 `json:"id"`
}

func (p *PingPong) Kind() Kind { return KindPingPong }

func (p *PingPong) Decode(d *Decoder) error {
	p.ID = d.Int32()
	return d.Err()
}

func (p *PingPong) Encode(e *Encoder) error {
	e.PutInt32(p.ID)
	return nil
}

func (p *PingPong) String() string { return fmt.Sprintf("PingPong{id=%d}", p.ID) }

// Serial (kind 11) is a line of text from the tracker's serial console.
type Serial struct {
	Text string `json:"text"`
}

func (p *Serial) Kind() Kind { return KindSerial }

func (p *Serial) Decode(d *Decoder) error {
	n := d.Int32()
	if d.Err() != nil {
		return d.Err()
	}
	if n < 0 {
		return fmt.Errorf("serial text length %d: %w", n, ErrInvalidString)
	}
	p.Text = string(d.Bytes(int(n)))
	return d.Err()
}

func (p *Serial) Encode(e *Encoder) error {
	if len(p.Text) > maxFrameLength-HeaderSize-4 {
		return fmt.Errorf("serial text of %d bytes: %w", len(p.Text), ErrInvalidString)
	}
	e.PutInt32(int32(len(p.Text)))
	e.PutBytes([]byte(p.Text))
	return nil
}

func (p *Serial) String() string { return fmt.Sprintf("Serial{text=%q}", p.Text) }

// BatteryLevel (kind 12) reports battery voltage and charge fraction.
// Legacy firmware sends the voltage only.
type BatteryLevel struct {
	Voltage float32 `json:"voltage"`
	Level   float32 `json:"level"`
}

func (p *BatteryLevel) Kind() Kind { return KindBatteryLevel }

func (p *BatteryLevel) Decode(d *Decoder) error {
	p.Voltage = d.Float32()
	if d.Remaining() >= 4 {
		p.Level = d.Float32()
	}
	return d.Err()
}

func (p *BatteryLevel) Encode(e *Encoder) error {
	e.PutFloat32(p.Voltage)
	e.PutFloat32(p.Level)
	return nil
}

func (p *BatteryLevel) String() string {
	return fmt.Sprintf("BatteryLevel{voltage=%.2f, level=%.2f}", p.Voltage, p.Level)
}

// Tap (kind 13) reports a tap gesture detected by a sensor.
type Tap struct {
	Sensor uint8 `json:"sensor"`
	Tap    uint8 `json:"tap"`
}

func (p *Tap) Kind() Kind         { return KindTap }
func (p *Tap) SensorIndex() uint8 { return p.Sensor }

func (p *Tap) Decode(d *Decoder) error {
	p.Sensor = d.Uint8()
	p.Tap = d.Uint8()
	return d.Err()
}

func (p *Tap) Encode(e *Encoder) error {
	e.PutUint8(p.Sensor)
	e.PutUint8(p.Tap)
	return nil
}

func (p *Tap) String() string { return fmt.Sprintf("Tap{sensor=%d, tap=0x%02x}", p.Sensor, p.Tap) }

// Error (kind 14) reports a sensor fault code.
type Error struct {
	Sensor uint8 `json:"sensor"`
	Code   uint8 `json:"code"`
}

func (p *Error) Kind() Kind         { return KindError }
func (p *Error) SensorIndex() uint8 { return p.Sensor }

func (p *Error) Decode(d *Decoder) error {
	p.Sensor = d.Uint8()
	p.Code = d.Uint8()
	return d.Err()
}

func (p *Error) Encode(e *Encoder) error {
	e.PutUint8(p.Sensor)
	e.PutUint8(p.Code)
	return nil
}

func (p *Error) String() string { return fmt.Sprintf("Error{sensor=%d, code=%d}", p.Sensor, p.Code) }

// SensorInfo (kind 15) announces a sensor and its status. The IMU type byte
// is absent on legacy firmware.
type SensorInfo struct {
	Sensor  uint8 `json:"sensor"`
	Status  uint8 `json:"status"`
	IMUType uint8 `json:"imu_type"`
}

func (p *SensorInfo) Kind() Kind         { return KindSensorInfo }
func (p *SensorInfo) SensorIndex() uint8 { return p.Sensor }

func (p *SensorInfo) Decode(d *Decoder) error {
	p.Sensor = d.Uint8()
	p.Status = d.Uint8()
	if d.Remaining() >= 1 {
		p.IMUType = d.Uint8()
	}
	return d.Err()
}

func (p *SensorInfo) Encode(e *Encoder) error {
	e.PutUint8(p.Sensor)
	e.PutUint8(p.Status)
	e.PutUint8(p.IMUType)
	return nil
}

func (p *SensorInfo) String() string {
	return fmt.Sprintf("SensorInfo{sensor=%d, status=%d, imu=%d}", p.Sensor, p.Status, p.IMUType)
}

// RotationData (kind 17) is the current per-sensor orientation packet.
type RotationData struct {
	Sensor      uint8      `json:"sensor"`
	DataType    uint8      `json:"data_type"`
	Rotation    Quaternion `json:"rotation"`
	Calibration uint8      `json:"calibration"`
}

func (p *RotationData) Kind() Kind         { return KindRotationData }
func (p *RotationData) SensorIndex() uint8 { return p.Sensor }

func (p *RotationData) Decode(d *Decoder) error {
	p.Sensor = d.Uint8()
	p.DataType = d.Uint8()
	p.Rotation = d.Quaternion()
	p.Calibration = d.Uint8()
	return d.Err()
}

func (p *RotationData) Encode(e *Encoder) error {
	e.PutUint8(p.Sensor)
	e.PutUint8(p.DataType)
	e.PutQuaternion(p.Rotation)
	e.PutUint8(p.Calibration)
	return nil
}

func (p *RotationData) String() string {
	return fmt.Sprintf("RotationData{sensor=%d, type=%d, rotation=%s, calibration=%d}",
		p.Sensor, p.DataType, p.Rotation, p.Calibration)
}

// MagnetometerAccuracy (kind 18) reports magnetometer accuracy for a sensor.
type MagnetometerAccuracy struct {
	Sensor   uint8   `json:"sensor"`
	Accuracy float32 `json:"accuracy"`
}

func (p *MagnetometerAccuracy) Kind() Kind         { return KindMagnetometerAccuracy }
func (p *MagnetometerAccuracy) SensorIndex() uint8 { return p.Sensor }

func (p *MagnetometerAccuracy) Decode(d *Decoder) error {
	p.Sensor = d.Uint8()
	p.Accuracy = d.Float32()
	return d.Err()
}

func (p *MagnetometerAccuracy) Encode(e *Encoder) error {
	e.PutUint8(p.Sensor)
	e.PutFloat32(p.Accuracy)
	return nil
}

func (p *MagnetometerAccuracy) String() string {
	return fmt.Sprintf("MagnetometerAccuracy{sensor=%d, accuracy=%.3f}", p.Sensor, p.Accuracy)
}

// SignalStrength (kind 19) reports WiFi RSSI in dBm.
type SignalStrength struct {
	Sensor   uint8 `json:"sensor"`
	Strength int8  `json:"strength"`
}

func (p *SignalStrength) Kind() Kind         { return KindSignalStrength }
func (p *SignalStrength) SensorIndex() uint8 { return p.Sensor }

func (p *SignalStrength) Decode(d *Decoder) error {
	p.Sensor = d.Uint8()
	p.Strength = d.Int8()
	return d.Err()
}

func (p *SignalStrength) Encode(e *Encoder) error {
	e.PutUint8(p.Sensor)
	e.PutInt8(p.Strength)
	return nil
}

func (p *SignalStrength) String() string {
	return fmt.Sprintf("SignalStrength{sensor=%d, rssi=%d}", p.Sensor, p.Strength)
}

// Temperature (kind 20) reports IMU temperature in degrees Celsius.
type Temperature struct {
	Sensor  uint8   `json:"sensor"`
	Celsius float32 `json:"celsius"`
}

func (p *Temperature) Kind() Kind         { return KindTemperature }
func (p *Temperature) SensorIndex() uint8 { return p.Sensor }

func (p *Temperature) Decode(d *Decoder) error {
	p.Sensor = d.Uint8()
	p.Celsius = d.Float32()
	return d.Err()
}

func (p *Temperature) Encode(e *Encoder) error {
	e.PutUint8(p.Sensor)
	e.PutFloat32(p.Celsius)
	return nil
}

func (p *Temperature) String() string {
	return fmt.Sprintf("Temperature{sensor=%d, celsius=%.2f}", p.Sensor, p.Celsius)
}

// ProtocolChange (kind 200) asks the server to switch protocol.
type ProtocolChange struct {
	TargetProtocol uint8 `json:"target_protocol"`
	TargetVersion  uint8 `json:"target_version"`
}

func (p *ProtocolChange) Kind() Kind { return KindProtocolChange }

func (p *ProtocolChange) Decode(d *Decoder) error {
	p.TargetProtocol = d.Uint8()
	p.TargetVersion = d.Uint8()
	return d.Err()
}

func (p *ProtocolChange) Encode(e *Encoder) error {
	e.PutUint8(p.TargetProtocol)
	e.PutUint8(p.TargetVersion)
	return nil
}

func (p *ProtocolChange) String() string {
	return fmt.Sprintf("ProtocolChange{protocol=%d, version=%d}", p.TargetProtocol, p.TargetVersion)
}
