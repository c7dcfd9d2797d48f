package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/muurk/trackd/internal/feed"
	"github.com/muurk/trackd/internal/protocol"
)

// trackerRow is what the monitor knows about one tracker, built purely
// from feed events.
type trackerRow struct {
	Addr     string
	MAC      string
	Name     string
	TimedOut bool
	LastSeen time.Time

	Battery     float32 // level 0..1
	Voltage     float32
	Signal      int8
	Temperature float32
	RTT         time.Duration
	Rotation    protocol.Quaternion
	LastKind    string
	Packets     uint64
}

// board folds feed events into tracker rows.
type board struct {
	rows map[string]*trackerRow
}

func newBoard() *board {
	return &board{rows: make(map[string]*trackerRow)}
}

func (b *board) row(e feed.Event) *trackerRow {
	r, ok := b.rows[e.Tracker]
	if !ok {
		r = &trackerRow{Addr: e.Tracker}
		b.rows[e.Tracker] = r
	}
	if e.MAC != "" {
		r.MAC = e.MAC
	}
	if e.Name != "" {
		r.Name = e.Name
	}
	return r
}

// apply updates the board with e and returns a one-line log entry.
func (b *board) apply(e feed.Event) string {
	// A tracker that moved address shows up under its new address.
	if e.Type == feed.EventConnected && e.MAC != "" {
		for addr, r := range b.rows {
			if r.MAC == e.MAC && addr != e.Tracker {
				delete(b.rows, addr)
			}
		}
	}

	r := b.row(e)
	r.LastSeen = e.Time

	switch e.Type {
	case feed.EventConnected, feed.EventHandshake:
		r.TimedOut = false
	case feed.EventTimedOut:
		r.TimedOut = true
	case feed.EventPing:
		r.RTT = e.RTT
	case feed.EventPacket:
		r.Packets++
		r.LastKind = e.KindName
		pkt, err := e.DecodePacket()
		if err != nil {
			return formatLine(e, "undecodable: "+err.Error())
		}
		r.applyPacket(pkt)
		return formatLine(e, describe(pkt))
	}
	return formatLine(e, "")
}

func (r *trackerRow) applyPacket(pkt protocol.Packet) {
	switch p := pkt.(type) {
	case *protocol.BatteryLevel:
		r.Voltage = p.Voltage
		r.Battery = p.Level
	case *protocol.SignalStrength:
		r.Signal = p.Strength
	case *protocol.Temperature:
		r.Temperature = p.Celsius
	case *protocol.RotationData:
		if p.Sensor == 0 {
			r.Rotation = p.Rotation
		}
	case *protocol.Rotation:
		r.Rotation = p.Rotation
	}
}

// clearTimedOut removes rows for trackers the server has dropped.
func (b *board) clearTimedOut() {
	for addr, r := range b.rows {
		if r.TimedOut {
			delete(b.rows, addr)
		}
	}
}

// sorted returns rows ordered by name then address.
func (b *board) sorted() []*trackerRow {
	rows := make([]*trackerRow, 0, len(b.rows))
	for _, r := range b.rows {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Addr < rows[j].Addr
	})
	return rows
}

// describe summarises a packet for the event log.
func describe(pkt protocol.Packet) string {
	switch p := pkt.(type) {
	case *protocol.BatteryLevel:
		return fmt.Sprintf("battery %.2fV %.0f%%", p.Voltage, p.Level*100)
	case *protocol.SignalStrength:
		return fmt.Sprintf("signal %d dBm", p.Strength)
	case *protocol.Temperature:
		return fmt.Sprintf("sensor %d at %.1f°C", p.Sensor, p.Celsius)
	case *protocol.Tap:
		return fmt.Sprintf("sensor %d tap 0x%02x", p.Sensor, p.Tap)
	case *protocol.Error:
		return fmt.Sprintf("sensor %d error %d", p.Sensor, p.Code)
	case *protocol.SensorInfo:
		return fmt.Sprintf("sensor %d status %d imu %d", p.Sensor, p.Status, p.IMUType)
	case *protocol.Serial:
		return strings.TrimSpace(p.Text)
	case *protocol.RotationData:
		return fmt.Sprintf("sensor %d %s", p.Sensor, formatQuat(p.Rotation))
	case *protocol.ProtocolChange:
		return fmt.Sprintf("protocol change to %d v%d", p.TargetProtocol, p.TargetVersion)
	}
	return ""
}

// formatLine renders e as "15:04:05.000 name type detail".
func formatLine(e feed.Event, detail string) string {
	who := e.Name
	if who == "" {
		who = e.Tracker
	}
	what := string(e.Type)
	switch e.Type {
	case feed.EventPacket:
		what = e.KindName
	case feed.EventPing:
		detail = fmt.Sprintf("rtt %s", e.RTT.Round(100*time.Microsecond))
	}

	line := fmt.Sprintf("%s  %-20s %-14s", e.Time.Format("15:04:05.000"), who, what)
	if detail != "" {
		line += " " + detail
	}
	return strings.TrimRight(line, " ")
}

func formatQuat(q protocol.Quaternion) string {
	return fmt.Sprintf("(%.2f %.2f %.2f %.2f)", q.W, q.X, q.Y, q.Z)
}
