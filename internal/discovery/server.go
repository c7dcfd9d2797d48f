package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// TXT record keys published by Advertise.
const (
	TxtVersion  = "version"  // trackd build version
	TxtHTTPPort = "http"     // HTTP port serving /feed and /metrics, absent when disabled
	TxtProtocol = "protocol" // tracker protocol name
)

// Server represents a trackd server discovered on the network
type Server struct {
	// Instance is the mDNS instance name (e.g., "trackd on studio-pc")
	Instance string

	// Hostname is the mDNS hostname (e.g., "studio-pc.local.")
	Hostname string

	// IP is the server address, IPv4 preferred
	IP string

	// Port is the tracker UDP port
	Port int

	// Metadata contains the TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the server was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the server
func (s *Server) String() string {
	return fmt.Sprintf("trackd %q (%s) at %s", s.Instance, s.Hostname, s.Addr())
}

// Addr returns the tracker UDP address in host:port form.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// HTTPPort returns the advertised HTTP port, or 0 if the server has none.
func (s *Server) HTTPPort() int {
	port, err := strconv.Atoi(s.GetMetadata(TxtHTTPPort))
	if err != nil || port <= 0 || port > 65535 {
		return 0
	}
	return port
}

// FeedURL returns the websocket URL of the server's packet feed, or "" when
// the server does not serve HTTP.
func (s *Server) FeedURL() string {
	port := s.HTTPPort()
	if port == 0 {
		return ""
	}
	return "ws://" + net.JoinHostPort(s.IP, strconv.Itoa(port)) + "/feed"
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Server) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
