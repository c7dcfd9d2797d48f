// Package server implements the UDP server that body-motion trackers talk to.
//
// The server owns a single UDP socket. Every datagram is parsed with the
// protocol package, and the resulting packets drive per-tracker state keyed by
// the sender's address.
//
// # Session Lifecycle
//
// A tracker becomes known when it sends a Handshake. Until then its other
// packets are counted and ignored. The server answers:
//   - Handshake: handshake response (kind 2), preceded by the 64-byte legacy
//     greeting when LegacyGreeting is set
//   - Heartbeat: heartbeat response (kind 1)
//   - PingPong: echoed with the same id, unless the id matches the server's
//     outstanding ping, in which case the round trip time is recorded
//   - SensorInfo: sensor info ack (kind 15) with the reported status
//
// Each response is its own datagram. Every PingInterval the server pings each
// tracker and drops those that have sent no frame for longer than Timeout.
// A frame of any kind counts as a sign of life, even one that fails to decode.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{
//	    Port:         6969,
//	    HTTPPort:     8266,
//	    Timeout:      5 * time.Second,
//	    PingInterval: time.Second,
//	    LogLevel:     "info",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until shutdown signal or error
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # HTTP Endpoints
//
// When HTTPPort is set the server also serves:
//   - /metrics: Prometheus metrics (datagrams, frames by outcome, packets by kind, RTT)
//   - /feed: websocket stream of feed.Event JSON messages
//   - /trackers: JSON snapshot of connected trackers
//
// # Logging
//
// The server provides structured logging with different levels:
//   - debug: Hex dumps of every datagram, serial console output, decode failures
//   - info: Connections, timeouts, protocol change requests
//   - warn: Aborted scans, sensor errors, send failures
//   - error: Capture write failures, unexpected failures
//
// # Capture
//
// AnalysisDir writes every datagram in both directions to a JSON Lines file
// for offline analysis. CaptureFile writes the same traffic as a pcap file
// that `trackd-server replay` and Wireshark can read.
//
// # Thread Safety
//
// Datagrams are handled one at a time on the receive goroutine. Tracker state
// is guarded by a single mutex shared with the maintenance ticker and the
// HTTP handlers.
package server
