package protocol

import (
	"fmt"
	"sort"
)

// Factory returns a new, empty packet of one kind.
type Factory func() Packet

// Registration binds a kind to its factory.
type Registration struct {
	Kind    Kind
	Factory Factory
}

// Catalog maps packet kinds to factories. It is immutable once built and safe
// for concurrent lookups.
type Catalog struct {
	factories map[Kind]Factory
}

// NewCatalog builds a catalog from regs. Registering the same kind twice is a
// configuration error.
func NewCatalog(regs ...Registration) (*Catalog, error) {
	c := &Catalog{factories: make(map[Kind]Factory, len(regs))}
	for _, r := range regs {
		if r.Factory == nil {
			return nil, fmt.Errorf("nil factory for kind %s", r.Kind)
		}
		if _, dup := c.factories[r.Kind]; dup {
			return nil, fmt.Errorf("kind %s: %w", r.Kind, ErrDuplicateKind)
		}
		c.factories[r.Kind] = r.Factory
	}
	return c, nil
}

// MustNewCatalog is like NewCatalog but panics on a configuration error.
func MustNewCatalog(regs ...Registration) *Catalog {
	c, err := NewCatalog(regs...)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultRegistrations lists every inbound kind the server parses.
func DefaultRegistrations() []Registration {
	return []Registration{
		{KindHeartbeat, func() Packet { return &Heartbeat{} }},
		{KindRotation, func() Packet { return &Rotation{} }},
		{KindHandshake, func() Packet { return &Handshake{} }},
		{KindPingPong, func() Packet { return &PingPong{} }},
		{KindSerial, func() Packet { return &Serial{} }},
		{KindBatteryLevel, func() Packet { return &BatteryLevel{} }},
		{KindTap, func() Packet { return &Tap{} }},
		{KindError, func() Packet { return &Error{} }},
		{KindSensorInfo, func() Packet { return &SensorInfo{} }},
		{KindRotation2, func() Packet { return &Rotation2{} }},
		{KindRotationData, func() Packet { return &RotationData{} }},
		{KindMagnetometerAccuracy, func() Packet { return &MagnetometerAccuracy{} }},
		{KindSignalStrength, func() Packet { return &SignalStrength{} }},
		{KindTemperature, func() Packet { return &Temperature{} }},
		{KindProtocolChange, func() Packet { return &ProtocolChange{} }},
	}
}

var defaultCatalog = MustNewCatalog(DefaultRegistrations()...)

// DefaultCatalog returns the shared catalog of inbound kinds.
func DefaultCatalog() *Catalog { return defaultCatalog }

// Lookup returns the factory for kind, or false when kind is not registered.
func (c *Catalog) Lookup(kind Kind) (Factory, bool) {
	f, ok := c.factories[kind]
	return f, ok
}

// New returns a fresh packet for kind, or nil when kind is not registered.
func (c *Catalog) New(kind Kind) Packet {
	f, ok := c.factories[kind]
	if !ok {
		return nil
	}
	return f()
}

// Kinds returns the registered kinds in ascending order.
func (c *Catalog) Kinds() []Kind {
	kinds := make([]Kind, 0, len(c.factories))
	for k := range c.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Len returns the number of registered kinds.
func (c *Catalog) Len() int { return len(c.factories) }
