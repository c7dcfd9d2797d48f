package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/muurk/trackd/internal/protocol"
)

// EventType classifies feed events.
type EventType string

const (
	EventConnected EventType = "connected" // first handshake from an address
	EventHandshake EventType = "handshake" // repeat handshake, tracker rebooted
	EventPacket    EventType = "packet"    // decoded tracker packet
	EventPing      EventType = "ping"      // server ping round trip measured
	EventTimedOut  EventType = "timed_out" // tracker went silent and was dropped
)

// Event is one message on the feed, sent as a JSON text frame.
type Event struct {
	Time     time.Time       `json:"time"`
	Tracker  string          `json:"tracker"` // remote UDP address
	MAC      string          `json:"mac,omitempty"`
	Name     string          `json:"name,omitempty"` // nickname or MAC
	Type     EventType       `json:"type"`
	Kind     protocol.Kind   `json:"kind"`
	KindName string          `json:"kind_name,omitempty"`
	RTT      time.Duration   `json:"rtt,omitempty"`
	Packet   json.RawMessage `json:"packet,omitempty"`
}

// NewPacketEvent builds an EventPacket carrying p.
func NewPacketEvent(at time.Time, tracker string, p protocol.Packet) (Event, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s packet: %w", p.Kind(), err)
	}
	return Event{
		Time:     at,
		Tracker:  tracker,
		Type:     EventPacket,
		Kind:     p.Kind(),
		KindName: p.Kind().String(),
		Packet:   data,
	}, nil
}

// DecodePacket rebuilds the typed packet carried by an EventPacket using
// the default catalog.
func (e Event) DecodePacket() (protocol.Packet, error) {
	if e.Type != EventPacket || len(e.Packet) == 0 {
		return nil, fmt.Errorf("event %s carries no packet", e.Type)
	}
	p := protocol.DefaultCatalog().New(e.Kind)
	if p == nil {
		return nil, fmt.Errorf("event carries unregistered kind %d", int32(e.Kind))
	}
	if err := json.Unmarshal(e.Packet, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s packet: %w", e.Kind, err)
	}
	return p, nil
}
