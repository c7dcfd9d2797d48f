// Package sim implements a simulated tracker for exercising a server without
// hardware.
//
// A simulated Tracker speaks the same UDP protocol as tracker firmware. It
// repeats its handshake until the server acknowledges it, announces its
// sensors, then streams rotation data at a fixed rate with periodic battery
// and heartbeat packets. Pings from the server are echoed so the server can
// measure round trip time.
//
// # Usage Example
//
//	t, err := sim.New(sim.Config{
//	    Server:  "127.0.0.1:6969",
//	    MAC:     protocol.HardwareAddr{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01},
//	    Sensors: 2,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = t.Run(ctx) // blocks until ctx is done
package sim
