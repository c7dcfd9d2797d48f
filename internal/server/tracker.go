package server

import (
	"net"
	"sort"
	"time"

	"github.com/muurk/trackd/internal/protocol"
)

// Tracker is the server's view of one tracker, keyed by its UDP address.
// It is owned by the Server and only touched with Server.mu held.
type Tracker struct {
	Addr *net.UDPAddr
	MAC  protocol.HardwareAddr
	Name string

	BoardType     int32
	IMUType       int32
	MCUType       int32
	Firmware      string
	FirmwareBuild int32

	ConnectedAt time.Time
	LastPacket  time.Time
	LastKind    protocol.Kind
	Packets     uint64

	BatteryVoltage float32
	BatteryLevel   float32
	SignalStrength int8
	Serial         string // last serial console line

	Sensors map[uint8]*Sensor

	pingID   int32
	pingSent time.Time
	RTT      time.Duration
}

// Sensor is the state of one IMU on a tracker.
type Sensor struct {
	Status      uint8
	IMUType     uint8
	Rotation    protocol.Quaternion
	DataType    uint8
	Calibration uint8
	MagAccuracy float32
	Temperature float32
	Taps        uint64
	LastTap     uint8
	LastError   uint8
}

func newTracker(addr *net.UDPAddr, hs *protocol.Handshake, now time.Time) *Tracker {
	t := &Tracker{
		Addr:        addr,
		ConnectedAt: now,
		LastPacket:  now,
		Sensors:     make(map[uint8]*Sensor),
	}
	t.applyHandshake(hs)
	return t
}

// MarkAlive records frame arrival for the liveness sweep.
func (t *Tracker) MarkAlive(at time.Time) {
	t.LastPacket = at
}

func (t *Tracker) applyHandshake(hs *protocol.Handshake) {
	t.MAC = hs.MAC
	t.BoardType = hs.BoardType
	t.IMUType = hs.IMUType
	t.MCUType = hs.MCUType
	t.Firmware = hs.Firmware
	t.FirmwareBuild = hs.FirmwareBuild
	if t.Name == "" {
		t.Name = t.ID()
	}
}

// ID returns the tracker's MAC, or its address for firmware that sends none.
func (t *Tracker) ID() string {
	if t.MAC.IsZero() {
		return t.Addr.String()
	}
	return t.MAC.String()
}

func (t *Tracker) sensor(index uint8) *Sensor {
	s, ok := t.Sensors[index]
	if !ok {
		s = &Sensor{}
		t.Sensors[index] = s
	}
	return s
}

// apply folds a decoded packet into the tracker state.
func (t *Tracker) apply(pkt protocol.Packet) {
	t.Packets++
	t.LastKind = pkt.Kind()

	switch p := pkt.(type) {
	case *protocol.Rotation:
		t.sensor(p.SensorIndex()).Rotation = p.Rotation
	case *protocol.Rotation2:
		t.sensor(p.SensorIndex()).Rotation = p.Rotation.Rotation
	case *protocol.RotationData:
		s := t.sensor(p.Sensor)
		s.Rotation = p.Rotation
		s.DataType = p.DataType
		s.Calibration = p.Calibration
	case *protocol.SensorInfo:
		s := t.sensor(p.Sensor)
		s.Status = p.Status
		s.IMUType = p.IMUType
	case *protocol.BatteryLevel:
		t.BatteryVoltage = p.Voltage
		t.BatteryLevel = p.Level
	case *protocol.SignalStrength:
		t.SignalStrength = p.Strength
	case *protocol.Temperature:
		t.sensor(p.Sensor).Temperature = p.Celsius
	case *protocol.MagnetometerAccuracy:
		t.sensor(p.Sensor).MagAccuracy = p.Accuracy
	case *protocol.Tap:
		s := t.sensor(p.Sensor)
		s.Taps++
		s.LastTap = p.Tap
	case *protocol.Error:
		t.sensor(p.Sensor).LastError = p.Code
	case *protocol.Serial:
		t.Serial = p.Text
	}
}

// TrackerStatus is the JSON view of a tracker served on /trackers.
type TrackerStatus struct {
	Addr           string         `json:"addr"`
	MAC            string         `json:"mac,omitempty"`
	Name           string         `json:"name"`
	BoardType      int32          `json:"board_type"`
	MCUType        int32          `json:"mcu_type"`
	Firmware       string         `json:"firmware,omitempty"`
	FirmwareBuild  int32          `json:"firmware_build"`
	ConnectedAt    time.Time      `json:"connected_at"`
	LastPacket     time.Time      `json:"last_packet"`
	LastKind       string         `json:"last_kind"`
	Packets        uint64         `json:"packets"`
	BatteryVoltage float32        `json:"battery_voltage"`
	BatteryLevel   float32        `json:"battery_level"`
	SignalStrength int8           `json:"signal_strength"`
	RTTMillis      float64        `json:"rtt_ms"`
	Sensors        []SensorStatus `json:"sensors"`
}

// SensorStatus is the JSON view of one sensor.
type SensorStatus struct {
	Index       uint8               `json:"index"`
	Status      uint8               `json:"status"`
	IMUType     uint8               `json:"imu_type"`
	Rotation    protocol.Quaternion `json:"rotation"`
	Calibration uint8               `json:"calibration"`
	Temperature float32             `json:"temperature"`
	Taps        uint64              `json:"taps"`
	LastError   uint8               `json:"last_error"`
}

// Status returns a copy of the tracker state safe to use without the lock.
func (t *Tracker) Status() TrackerStatus {
	st := TrackerStatus{
		Addr:           t.Addr.String(),
		Name:           t.Name,
		BoardType:      t.BoardType,
		MCUType:        t.MCUType,
		Firmware:       t.Firmware,
		FirmwareBuild:  t.FirmwareBuild,
		ConnectedAt:    t.ConnectedAt,
		LastPacket:     t.LastPacket,
		LastKind:       t.LastKind.String(),
		Packets:        t.Packets,
		BatteryVoltage: t.BatteryVoltage,
		BatteryLevel:   t.BatteryLevel,
		SignalStrength: t.SignalStrength,
		RTTMillis:      float64(t.RTT) / float64(time.Millisecond),
		Sensors:        make([]SensorStatus, 0, len(t.Sensors)),
	}
	if !t.MAC.IsZero() {
		st.MAC = t.MAC.String()
	}
	for idx, s := range t.Sensors {
		st.Sensors = append(st.Sensors, SensorStatus{
			Index:       idx,
			Status:      s.Status,
			IMUType:     s.IMUType,
			Rotation:    s.Rotation,
			Calibration: s.Calibration,
			Temperature: s.Temperature,
			Taps:        s.Taps,
			LastError:   s.LastError,
		})
	}
	sort.Slice(st.Sensors, func(i, j int) bool { return st.Sensors[i].Index < st.Sensors[j].Index })
	return st
}
