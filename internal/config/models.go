package config

import (
	"sort"
	"sync"
	"time"
)

// Registry represents the entire user configuration file.
// It stores server preferences and user metadata for trackers seen so far.
type Registry struct {
	Version  int                 `yaml:"version"`
	Server   *ServerPrefs        `yaml:"server,omitempty"`
	Trackers map[string]*Tracker `yaml:"trackers,omitempty"` // Keyed by tracker MAC address

	mu sync.Mutex
}

// Tracker represents what the server remembers about one tracker between runs.
type Tracker struct {
	Nickname      string    `yaml:"nickname,omitempty"`  // User-friendly name
	LastIP        string    `yaml:"last_ip,omitempty"`   // Last address a handshake came from
	LastSeen      time.Time `yaml:"last_seen,omitempty"` // Last handshake time
	BoardType     int32     `yaml:"board_type"`
	MCUType       int32     `yaml:"mcu_type"`
	Firmware      string    `yaml:"firmware,omitempty"`
	FirmwareBuild int32     `yaml:"firmware_build"`
}

// TrackerInfo is the hardware description a tracker reports in its handshake.
type TrackerInfo struct {
	BoardType     int32
	MCUType       int32
	Firmware      string
	FirmwareBuild int32
}

// ServerPrefs holds the defaults used by the server command.
// Command-line flags override these values.
type ServerPrefs struct {
	UDPPort            int    `yaml:"udp_port"`               // Tracker protocol port
	HTTPPort           int    `yaml:"http_port"`              // Metrics and feed port, 0 disables
	TimeoutSeconds     int    `yaml:"timeout_seconds"`        // Silence before a tracker is dropped
	PingIntervalMillis int    `yaml:"ping_interval_millis"`   // Server ping period
	AnalysisDir        string `yaml:"analysis_dir,omitempty"` // Datagram capture directory, empty disables
	Advertise          bool   `yaml:"advertise"`              // Advertise the server over mDNS
	LegacyGreeting     bool   `yaml:"legacy_greeting"`        // Send the 64-byte greeting before handshake acks
}

// Default server preference values.
const (
	DefaultUDPPort            = 6969
	DefaultHTTPPort           = 8266
	DefaultTimeoutSeconds     = 5
	DefaultPingIntervalMillis = 1000
)

// DefaultServerPrefs returns the preferences used when the file has none.
func DefaultServerPrefs() *ServerPrefs {
	return &ServerPrefs{
		UDPPort:            DefaultUDPPort,
		HTTPPort:           DefaultHTTPPort,
		TimeoutSeconds:     DefaultTimeoutSeconds,
		PingIntervalMillis: DefaultPingIntervalMillis,
		Advertise:          true,
	}
}

// Timeout returns TimeoutSeconds as a duration.
func (p *ServerPrefs) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// PingInterval returns PingIntervalMillis as a duration.
func (p *ServerPrefs) PingInterval() time.Duration {
	return time.Duration(p.PingIntervalMillis) * time.Millisecond
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:  1,
		Server:   DefaultServerPrefs(),
		Trackers: make(map[string]*Tracker),
	}
}

// GetTracker retrieves tracker metadata by MAC address.
// Returns nil if the tracker doesn't exist in the registry.
func (r *Registry) GetTracker(mac string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Trackers[mac]
}

// EnsureTracker returns the entry for mac, creating an empty one if needed.
func (r *Registry) EnsureTracker(mac string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureTracker(mac)
}

func (r *Registry) ensureTracker(mac string) *Tracker {
	if r.Trackers == nil {
		r.Trackers = make(map[string]*Tracker)
	}
	if tracker, exists := r.Trackers[mac]; exists {
		return tracker
	}
	tracker := &Tracker{}
	r.Trackers[mac] = tracker
	return tracker
}

// RecordHandshake stores the hardware info and address a tracker reported.
func (r *Registry) RecordHandshake(mac, ip string, info TrackerInfo, when time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tracker := r.ensureTracker(mac)
	tracker.LastIP = ip
	tracker.LastSeen = when
	tracker.BoardType = info.BoardType
	tracker.MCUType = info.MCUType
	tracker.Firmware = info.Firmware
	tracker.FirmwareBuild = info.FirmwareBuild
}

// SetNickname sets a user-friendly nickname for a tracker.
func (r *Registry) SetNickname(mac, nickname string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureTracker(mac).Nickname = nickname
}

// RemoveTracker forgets mac. It reports whether the tracker was known.
func (r *Registry) RemoveTracker(mac string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Trackers[mac]; !ok {
		return false
	}
	delete(r.Trackers, mac)
	return true
}

// GetDisplayName returns the nickname for mac, or mac itself.
func (r *Registry) GetDisplayName(mac string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tracker, ok := r.Trackers[mac]; ok && tracker.Nickname != "" {
		return tracker.Nickname
	}
	return mac
}

// TrackerEntry pairs a tracker with its MAC address for listing.
type TrackerEntry struct {
	MAC string
	*Tracker
}

// ListTrackers returns every known tracker sorted by MAC address.
func (r *Registry) ListTrackers() []TrackerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]TrackerEntry, 0, len(r.Trackers))
	for mac, tracker := range r.Trackers {
		entries = append(entries, TrackerEntry{MAC: mac, Tracker: tracker})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].MAC < entries[j].MAC })
	return entries
}
