// Package feed streams decoded tracker activity to websocket clients.
//
// The server publishes an Event for every decoded packet, handshake, ping
// round trip and timeout. A Hub serializes each event to JSON once and fans
// it out to every client connected to its HTTP handler. Dial is the matching
// client used by the terminal monitor.
//
// # Wire Format
//
// Each websocket text frame is one JSON event:
//
//	{"time":"2024-05-01T10:00:00Z","tracker":"192.168.1.42:4210",
//	 "type":"packet","kind":12,"kind_name":"BatteryLevel",
//	 "packet":{"voltage":3.7,"level":0.82}}
//
// Event.DecodePacket turns the packet field back into a protocol.Packet.
//
// # Back Pressure
//
// Publish never blocks the receive loop. Events are dropped when the hub is
// backed up, and a client whose queue fills is disconnected.
package feed
