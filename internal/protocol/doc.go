// Package protocol implements the tracker UDP binary protocol.
//
// This package handles framing, dispatch, decoding and encoding of the packets
// exchanged between body-motion trackers and the server. A single datagram
// carries one or more frames back to back.
//
// # Frame Format
//
// Every frame has a 7-byte header followed by a kind-specific payload. All
// multi-byte integers are big-endian:
//   - Length: 2 bytes, total frame size including the header
//   - Verifier: 1 byte, always 0xF0
//   - Kind: 4 bytes, signed packet kind
//   - Payload: Length-7 bytes
//
// # Packet Kinds
//
// Kinds form a sparse space. The Catalog maps each kind the server parses to
// a factory; kinds 2 and 4-9 are reserved and resolve to nothing, so their
// frames are skipped rather than rejected:
//   - 0 Heartbeat, 3 Handshake, 10 PingPong
//   - 1 Rotation and 16 Rotation2 (legacy), 17 RotationData
//   - 11 Serial, 12 BatteryLevel, 13 Tap, 14 Error, 15 SensorInfo
//   - 18 MagnetometerAccuracy, 19 SignalStrength, 20 Temperature
//   - 200 ProtocolChange
//
// # Usage Example - Parsing
//
//	parser := protocol.NewParser()
//	res := parser.Parse(datagram, protocol.LivenessFunc(func(at time.Time) {
//	    conn.LastPacket = at
//	}))
//	for _, pkt := range res.Packets {
//	    switch p := pkt.(type) {
//	    case *protocol.Handshake:
//	        fmt.Printf("tracker %s says hello\n", p.MAC)
//	    }
//	}
//
// # Usage Example - Construction
//
//	w := protocol.NewWriter(buf[:0])
//	if _, err := w.WriteHandshakeResponse(); err != nil {
//	    return err
//	}
//	conn.WriteToUDP(w.Bytes(), addr)
//
// # Error Handling
//
// The parser distinguishes between:
//   - Skipped frames: bad verifier, unknown kind (counted in Result)
//   - Frame errors: a codec read past its payload (Result.DecodeErrors, that frame only)
//   - Scan errors: a length too small to hold a header, or a frame that runs
//     past the end of the buffer (Result.Err, scan aborted; the latter is
//     also counted in Result.Truncated)
//
// # Thread Safety
//
// Catalog is immutable after construction. Parser holds no per-buffer state
// and is safe for concurrent use. A Writer is not safe for concurrent use.
package protocol
