package protocol

import "fmt"

// Kind identifies the packet type carried by a frame. The space is sparse:
// retired and server-ignored values sit between the active ones.
type Kind int32

// Inbound packet kinds sent by trackers.
const (
	KindHeartbeat            Kind = 0
	KindRotation             Kind = 1 // legacy
	KindHandshake            Kind = 3
	KindPingPong             Kind = 10
	KindSerial               Kind = 11
	KindBatteryLevel         Kind = 12
	KindTap                  Kind = 13
	KindError                Kind = 14
	KindSensorInfo           Kind = 15
	KindRotation2            Kind = 16 // legacy
	KindRotationData         Kind = 17
	KindMagnetometerAccuracy Kind = 18
	KindSignalStrength       Kind = 19
	KindTemperature          Kind = 20
	KindProtocolChange       Kind = 200
)

// Reserved kinds. Trackers may still send some of these, but the server never
// parses them.
const (
	KindGyro                Kind = 2 // retired
	KindAccel               Kind = 4
	KindMag                 Kind = 5 // retired
	KindRawCalibrationData  Kind = 6
	KindCalibrationFinished Kind = 7
	KindConfig              Kind = 8
	KindRawMagnetometer     Kind = 9 // retired
)

// Outbound control kinds written by the server. Some share numbers with
// inbound kinds; direction decides the meaning.
const (
	KindHeartbeatResponse Kind = 1
	KindHandshakeResponse Kind = 2
)

// String returns a human-readable name for an inbound kind
func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "Heartbeat"
	case KindRotation:
		return "Rotation"
	case KindGyro:
		return "Gyro"
	case KindHandshake:
		return "Handshake"
	case KindAccel:
		return "Accel"
	case KindMag:
		return "Mag"
	case KindRawCalibrationData:
		return "RawCalibrationData"
	case KindCalibrationFinished:
		return "CalibrationFinished"
	case KindConfig:
		return "Config"
	case KindRawMagnetometer:
		return "RawMagnetometer"
	case KindPingPong:
		return "PingPong"
	case KindSerial:
		return "Serial"
	case KindBatteryLevel:
		return "BatteryLevel"
	case KindTap:
		return "Tap"
	case KindError:
		return "Error"
	case KindSensorInfo:
		return "SensorInfo"
	case KindRotation2:
		return "Rotation2"
	case KindRotationData:
		return "RotationData"
	case KindMagnetometerAccuracy:
		return "MagnetometerAccuracy"
	case KindSignalStrength:
		return "SignalStrength"
	case KindTemperature:
		return "Temperature"
	case KindProtocolChange:
		return "ProtocolChange"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(k))
	}
}

// IsReserved reports whether k is one of the retired or server-ignored kinds.
func (k Kind) IsReserved() bool {
	return k == KindGyro || (k >= KindAccel && k <= KindRawMagnetometer)
}
