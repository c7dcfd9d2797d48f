// Package logging provides structured logging for the trackd server.
//
// This package wraps zap logger with convenience functions for the logging
// patterns used throughout the server and tools.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Datagram hex dumps, dropped frames, ping round trips
//   - Info: Tracker connections, handshakes, state changes
//   - Warn: Timeouts, send failures, undecodable datagrams
//   - Error: Startup failures, listener errors
//
// # Structured Logging
//
//	logging.Info("Tracker handshake",
//	    zap.String("remote_addr", "192.168.1.100:4210"),
//	    zap.String("mac", "DE:AD:BE:EF:00:01"),
//	    zap.String("firmware", "0.4.0"),
//	)
//
// # Specialized Logging
//
//	logging.LogConnection(remoteAddr, "handshake")
//	logging.LogConnection(remoteAddr, "timed_out")
//	logging.LogDatagram(remoteAddr, "received", datagram)
//
// # Configuration
//
// Initialize logging at startup. An empty level falls back to TRACKD_LOG_LEVEL,
// and with neither set the logger is silent:
//
//	if err := logging.Initialize(logLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and SetLogger
// are meant to be called once at startup.
package logging
