package protocol

// Canned control responses sent by the server. They all go through
// WriteFrame, so their length fields are patched like any other frame.

// legacyGreetingText followed the 0x03 lead byte in the greeting very old
// firmware expected before the handshake response.
const legacyGreetingText = "Hey OVR =D 5"

// LegacyGreetingSize is the fixed size of the legacy greeting buffer.
const LegacyGreetingSize = 64

// WriteHandshakeResponse acknowledges a tracker handshake (kind 2, empty).
func (w *Writer) WriteHandshakeResponse() (int, error) {
	return w.WriteFrame(KindHandshakeResponse, nil)
}

// WriteHeartbeatResponse answers a tracker heartbeat (kind 1, empty).
func (w *Writer) WriteHeartbeatResponse() (int, error) {
	return w.WriteFrame(KindHeartbeatResponse, nil)
}

// WritePingPong writes a ping-pong frame carrying id.
func (w *Writer) WritePingPong(id int32) (int, error) {
	return w.WriteFrame(KindPingPong, func(e *Encoder) error {
		e.PutInt32(id)
		return nil
	})
}

// WriteSensorInfoResponse acknowledges a sensor info packet with the sensor
// index and status the tracker reported.
func (w *Writer) WriteSensorInfoResponse(sensor, status uint8) (int, error) {
	return w.WriteFrame(KindSensorInfo, func(e *Encoder) error {
		e.PutUint8(sensor)
		e.PutUint8(status)
		return nil
	})
}

// LegacyHandshakeGreeting returns the unframed 64-byte greeting that early
// firmware was sent on connect: 0x03, the ASCII greeting text, zero padding.
// Current firmware does not need it; it is only sent when explicitly enabled.
func LegacyHandshakeGreeting() []byte {
	b := make([]byte, LegacyGreetingSize)
	b[0] = byte(KindHandshake)
	copy(b[1:], legacyGreetingText)
	return b
}
