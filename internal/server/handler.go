package server

import (
	"net"
	"sort"
	"time"

	"github.com/muurk/trackd/internal/config"
	"github.com/muurk/trackd/internal/feed"
	"github.com/muurk/trackd/internal/logging"
	"github.com/muurk/trackd/internal/protocol"
	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"
)

// Labels for responses_sent_total. Kind names are not used because the
// outbound and inbound kind spaces overlap.
const (
	responseHeartbeat      = "heartbeat"
	responseHandshake      = "handshake"
	responsePing           = "ping"
	responseSensorInfo     = "sensor_info"
	responseLegacyGreeting = "legacy_greeting"
)

// handleDatagram parses one datagram and reacts to its packets.
func (s *Server) handleDatagram(addr *net.UDPAddr, data []byte, now time.Time) {
	s.metrics.datagramsReceived.Inc()
	s.metrics.bytesReceived.Add(float64(len(data)))
	logging.LogDatagram(addr.String(), DirectionInbound, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.trackers[addr.String()]

	// A nil *Tracker must not reach the parser as a non-nil interface.
	var live protocol.Liveness
	if t != nil {
		live = t
	}

	res := s.parser.Parse(data, live)
	s.metrics.observeParse(&res)
	s.capture.record(DirectionInbound, addr, data, &res, now)

	if res.Err != nil {
		logging.Warn("Datagram scan aborted",
			zap.String("remote_addr", addr.String()),
			zap.Int("offset", res.Consumed),
			zap.Error(res.Err),
		)
	}
	for _, fe := range res.DecodeErrors {
		logging.Debug("Frame decode failed",
			zap.String("remote_addr", addr.String()),
			zap.Error(fe),
		)
	}
	if res.Err != nil || len(res.DecodeErrors) > 0 {
		logging.LogRawBytes("Malformed datagram", data)
	}

	for _, pkt := range res.Packets {
		if hs, ok := pkt.(*protocol.Handshake); ok {
			t = s.handleHandshake(addr, hs, now)
			continue
		}
		if t == nil {
			s.metrics.unknownSenders.Inc()
			logging.Debug("Ignoring packet from unknown sender",
				zap.String("remote_addr", addr.String()),
				zap.String("kind", pkt.Kind().String()),
			)
			continue
		}
		s.handlePacket(t, pkt, now)
	}
}

// handleHandshake registers or refreshes the tracker at addr and acks it.
// Caller holds s.mu.
func (s *Server) handleHandshake(addr *net.UDPAddr, hs *protocol.Handshake, now time.Time) *Tracker {
	s.metrics.handshakes.Inc()
	key := addr.String()

	t, known := s.trackers[key]
	if known {
		t.applyHandshake(hs)
		t.MarkAlive(now)
		s.publish(t, feed.Event{Time: now, Type: feed.EventHandshake})
	} else {
		if !hs.MAC.IsZero() {
			// Same hardware reconnecting from a new address.
			for oldKey, old := range s.trackers {
				if old.MAC == hs.MAC {
					logging.Info("Tracker moved address",
						zap.String("mac", hs.MAC.String()),
						zap.String("old_addr", oldKey),
						zap.String("new_addr", key),
					)
					delete(s.trackers, oldKey)
				}
			}
		}
		t = newTracker(addr, hs, now)
		s.trackers[key] = t
		s.metrics.trackersConnected.Set(float64(len(s.trackers)))
		logging.LogConnection(key, "handshake")
	}

	if reg := s.config.Registry; reg != nil && !hs.MAC.IsZero() {
		mac := hs.MAC.String()
		reg.RecordHandshake(mac, addr.IP.String(), config.TrackerInfo{
			BoardType:     hs.BoardType,
			MCUType:       hs.MCUType,
			Firmware:      hs.Firmware,
			FirmwareBuild: hs.FirmwareBuild,
		}, now)
		t.Name = reg.GetDisplayName(mac)
		s.registryGen++
	}

	if !known {
		logging.Info("Tracker connected",
			zap.String("remote_addr", key),
			zap.String("name", t.Name),
			zap.Int32("board_type", hs.BoardType),
			zap.Int32("mcu_type", hs.MCUType),
			zap.String("firmware", hs.Firmware),
		)
		s.publish(t, feed.Event{Time: now, Type: feed.EventConnected})
	}

	if s.config.LegacyGreeting {
		s.send(addr, protocol.LegacyHandshakeGreeting(), responseLegacyGreeting, now)
	}
	s.reply(addr, responseHandshake, now, (*protocol.Writer).WriteHandshakeResponse)

	return t
}

// handlePacket answers control packets and folds state into t.
// Caller holds s.mu.
func (s *Server) handlePacket(t *Tracker, pkt protocol.Packet, now time.Time) {
	switch p := pkt.(type) {
	case *protocol.Heartbeat:
		s.reply(t.Addr, responseHeartbeat, now, (*protocol.Writer).WriteHeartbeatResponse)

	case *protocol.PingPong:
		switch {
		case p.ID == t.pingID && !t.pingSent.IsZero():
			t.RTT = now.Sub(t.pingSent)
			t.pingSent = time.Time{}
			s.metrics.pingRTT.Observe(t.RTT.Seconds())
			s.publish(t, feed.Event{Time: now, Type: feed.EventPing, RTT: t.RTT})
		case s.issuedPing(p.ID):
			// A late or duplicated reply to one of our pings. Echoing it
			// would bounce between us and the tracker forever.
			logging.Debug("Dropped stale ping reply",
				zap.String("name", t.Name),
				zap.Int32("id", p.ID),
				zap.Int32("current_id", t.pingID),
			)
		default:
			s.reply(t.Addr, responsePing, now, func(w *protocol.Writer) (int, error) {
				return w.WritePingPong(p.ID)
			})
		}

	case *protocol.SensorInfo:
		s.reply(t.Addr, responseSensorInfo, now, func(w *protocol.Writer) (int, error) {
			return w.WriteSensorInfoResponse(p.Sensor, p.Status)
		})

	case *protocol.ProtocolChange:
		logging.Info("Tracker requested protocol change",
			zap.String("name", t.Name),
			zap.Uint8("target_protocol", p.TargetProtocol),
			zap.Uint8("target_version", p.TargetVersion),
		)

	case *protocol.Error:
		logging.Warn("Tracker reported sensor error",
			zap.String("name", t.Name),
			zap.Uint8("sensor", p.Sensor),
			zap.Uint8("code", p.Code),
		)

	case *protocol.Serial:
		logging.Debug("Tracker serial output",
			zap.String("name", t.Name),
			zap.String("text", p.Text),
		)
	}

	t.apply(pkt)

	switch pkt.(type) {
	case *protocol.Heartbeat, *protocol.PingPong:
		return
	}
	ev, err := feed.NewPacketEvent(now, t.Addr.String(), pkt)
	if err != nil {
		logging.Warn("Failed to build feed event", zap.Error(err))
		return
	}
	s.publish(t, ev)
}

// publish fills in the tracker identity and hands ev to the hub.
func (s *Server) publish(t *Tracker, ev feed.Event) {
	ev.Tracker = t.Addr.String()
	ev.Name = t.Name
	if !t.MAC.IsZero() {
		ev.MAC = t.MAC.String()
	}
	s.hub.Publish(ev)
}

// reply builds one control frame with write and sends it as its own datagram.
func (s *Server) reply(addr *net.UDPAddr, label string, now time.Time, write func(*protocol.Writer) (int, error)) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	w := protocol.NewWriter(buf.B[:0])
	if _, err := write(w); err != nil {
		logging.Error("Failed to build response",
			zap.String("response", label),
			zap.Error(err),
		)
		return
	}
	buf.B = w.Bytes()
	s.send(addr, buf.B, label, now)
}

// send writes data to addr and records it.
func (s *Server) send(addr *net.UDPAddr, data []byte, label string, now time.Time) {
	if s.out == nil {
		return
	}
	if _, err := s.out.WriteToUDP(data, addr); err != nil {
		s.metrics.sendErrors.Inc()
		logging.Warn("UDP write failed",
			zap.String("remote_addr", addr.String()),
			zap.String("response", label),
			zap.Error(err),
		)
		return
	}
	s.metrics.responsesSent.WithLabelValues(label).Inc()
	logging.LogDatagram(addr.String(), DirectionOutbound, data)
	s.capture.record(DirectionOutbound, addr, data, nil, now)
}

// tick drops trackers silent for longer than the timeout and pings the
// rest. It reports whether the registry has unsaved changes.
func (s *Server) tick(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, t := range s.trackers {
		if now.Sub(t.LastPacket) <= s.config.Timeout {
			continue
		}
		delete(s.trackers, key)
		s.metrics.timeouts.Inc()
		logging.LogConnection(key, "timed_out")
		s.publish(t, feed.Event{Time: now, Type: feed.EventTimedOut})
	}

	for _, t := range s.trackers {
		s.nextPingID++
		id := s.nextPingID
		t.pingID = id
		t.pingSent = now
		s.reply(t.Addr, responsePing, now, func(w *protocol.Writer) (int, error) {
			return w.WritePingPong(id)
		})
	}

	s.metrics.trackersConnected.Set(float64(len(s.trackers)))
	return s.registryGen != s.savedGen
}

// issuedPing reports whether id is one the server has sent. Ids count up
// from 1, so every id in 1..nextPingID came from us.
func (s *Server) issuedPing(id int32) bool {
	return id > 0 && id <= s.nextPingID
}

func sortStatuses(statuses []TrackerStatus) {
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Addr < statuses[j].Addr })
}
