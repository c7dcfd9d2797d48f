package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"

	"github.com/muurk/trackd/internal/logging"
	"github.com/muurk/trackd/internal/protocol"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultRate              = 10 * time.Millisecond
	DefaultHeartbeatInterval = time.Second
	DefaultBatteryInterval   = 5 * time.Second
	DefaultHandshakeRetry    = 500 * time.Millisecond
	DefaultFirmware          = "trackd-sim"
	maxSensors               = 8
)

// ErrNoServer is returned when Config.Server is empty.
var ErrNoServer = errors.New("no server address")

// Config describes one simulated tracker.
type Config struct {
	Server            string                // host:port of the tracker server
	MAC               protocol.HardwareAddr // Reported in the handshake
	Sensors           int                   // Number of IMUs, 1 to 8
	Rate              time.Duration         // Interval between rotation updates
	HeartbeatInterval time.Duration
	BatteryInterval   time.Duration
	HandshakeRetry    time.Duration
	BoardType         int32
	Firmware          string
}

// Stats counts a tracker's traffic.
type Stats struct {
	Sent        uint64
	Received    uint64
	PingsEchoed uint64
	SensorAcks  uint64
}

// Tracker is a simulated tracker. Create it with New.
type Tracker struct {
	cfg    Config
	parser *protocol.Parser

	conn  *net.UDPConn
	mu    sync.Mutex // serializes writes
	acked chan struct{}
	once  sync.Once

	// Last ping id echoed, touched only by the receive goroutine.
	lastEcho int32
	echoed   bool

	sent        atomic.Uint64
	received    atomic.Uint64
	pingsEchoed atomic.Uint64
	sensorAcks  atomic.Uint64
}

// serverCatalog holds the frames a server sends that carry a payload. The
// payload-less acks (kinds 1 and 2) are recognized from their headers.
var serverCatalog = protocol.MustNewCatalog(
	protocol.Registration{Kind: protocol.KindPingPong, Factory: func() protocol.Packet { return &protocol.PingPong{} }},
	protocol.Registration{Kind: protocol.KindSensorInfo, Factory: func() protocol.Packet { return &protocol.SensorInfo{} }},
)

// New validates cfg and fills in defaults.
func New(cfg Config) (*Tracker, error) {
	if cfg.Server == "" {
		return nil, ErrNoServer
	}
	if cfg.Sensors == 0 {
		cfg.Sensors = 1
	}
	if cfg.Sensors < 1 || cfg.Sensors > maxSensors {
		return nil, fmt.Errorf("sensor count %d out of range 1-%d", cfg.Sensors, maxSensors)
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.BatteryInterval <= 0 {
		cfg.BatteryInterval = DefaultBatteryInterval
	}
	if cfg.HandshakeRetry <= 0 {
		cfg.HandshakeRetry = DefaultHandshakeRetry
	}
	if cfg.Firmware == "" {
		cfg.Firmware = DefaultFirmware
	}

	return &Tracker{
		cfg:    cfg,
		parser: protocol.NewParser(protocol.WithCatalog(serverCatalog)),
		acked:  make(chan struct{}),
	}, nil
}

// Stats returns a snapshot of the traffic counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Sent:        t.sent.Load(),
		Received:    t.received.Load(),
		PingsEchoed: t.pingsEchoed.Load(),
		SensorAcks:  t.sensorAcks.Load(),
	}
}

// Acked is closed once the server has acknowledged the handshake.
func (t *Tracker) Acked() <-chan struct{} { return t.acked }

// Run connects to the server and streams packets until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	raddr, err := net.ResolveUDPAddr("udp", t.cfg.Server)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", t.cfg.Server, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.cfg.Server, err)
	}
	t.conn = conn
	defer conn.Close()

	logging.Info("Simulated tracker started",
		zap.String("server", raddr.String()),
		zap.String("local_addr", conn.LocalAddr().String()),
		zap.String("mac", t.cfg.MAC.String()),
		zap.Int("sensors", t.cfg.Sensors),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.receive(ctx)
	}()
	defer wg.Wait()

	t.handshake(ctx)
	if ctx.Err() != nil {
		return nil
	}
	for i := 0; i < t.cfg.Sensors; i++ {
		t.send(&protocol.SensorInfo{Sensor: uint8(i), Status: protocol.SensorStatusOK, IMUType: 8})
	}
	t.stream(ctx)
	return nil
}

// handshake repeats the handshake until it is acknowledged or ctx is done.
func (t *Tracker) handshake(ctx context.Context) {
	hs := &protocol.Handshake{
		BoardType:     t.cfg.BoardType,
		IMUType:       8,
		MCUType:       2,
		FirmwareBuild: 1,
		Firmware:      t.cfg.Firmware,
		MAC:           t.cfg.MAC,
	}

	retry := time.NewTicker(t.cfg.HandshakeRetry)
	defer retry.Stop()
	for {
		t.send(hs)
		select {
		case <-ctx.Done():
			return
		case <-t.acked:
			logging.Info("Handshake acknowledged", zap.String("mac", t.cfg.MAC.String()))
			return
		case <-retry.C:
			logging.Debug("Retrying handshake", zap.String("mac", t.cfg.MAC.String()))
		}
	}
}

func (t *Tracker) stream(ctx context.Context) {
	rotation := time.NewTicker(t.cfg.Rate)
	defer rotation.Stop()
	heartbeat := time.NewTicker(t.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	battery := time.NewTicker(t.cfg.BatteryInterval)
	defer battery.Stop()

	start := time.Now()
	charge := float32(1)
	t.send(&protocol.BatteryLevel{Voltage: batteryVoltage(charge), Level: charge})

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-rotation.C:
			elapsed := now.Sub(start).Seconds()
			for i := 0; i < t.cfg.Sensors; i++ {
				t.send(&protocol.RotationData{
					Sensor:      uint8(i),
					DataType:    protocol.DataTypeNormal,
					Rotation:    spin(elapsed, i),
					Calibration: 3,
				})
			}
		case <-heartbeat.C:
			t.send(&protocol.Heartbeat{})
		case <-battery.C:
			if charge > 0.05 {
				charge -= 0.01
			}
			t.send(&protocol.BatteryLevel{Voltage: batteryVoltage(charge), Level: charge})
			t.send(&protocol.SignalStrength{Sensor: 0, Strength: -60})
		}
	}
}

// spin rotates sensor i about the vertical axis, one turn every four seconds,
// each sensor offset by a quarter turn.
func spin(seconds float64, i int) protocol.Quaternion {
	angle := 2*math.Pi*seconds/4 + float64(i)*math.Pi/2
	half := angle / 2
	return protocol.Quaternion{Y: float32(math.Sin(half)), W: float32(math.Cos(half))}
}

// batteryVoltage maps charge onto a single-cell lithium discharge range.
func batteryVoltage(charge float32) float32 {
	return 3.3 + 0.9*charge
}

func (t *Tracker) receive(ctx context.Context) {
	buf := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := t.conn.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			// A connected UDP socket reports ICMP port unreachable as a
			// read error while the server is down.
			logging.Debug("UDP read failed", zap.Error(err))
			time.Sleep(t.cfg.HandshakeRetry)
			continue
		}
		t.received.Add(1)
		t.handle(buf[:n])
	}
}

// handle acts on one datagram from the server.
func (t *Tracker) handle(data []byte) {
	logging.LogDatagram(t.conn.RemoteAddr().String(), "inbound", data)

	if len(data) == protocol.LegacyGreetingSize && data[0] == byte(protocol.KindHandshake) {
		logging.Debug("Legacy greeting received")
		return
	}

	headers, _ := protocol.ScanHeaders(data)
	for _, h := range headers {
		if h.Valid() && h.Kind == protocol.KindHandshakeResponse {
			t.once.Do(func() { close(t.acked) })
		}
	}

	res := t.parser.Parse(data, nil)
	for _, p := range res.Packets {
		switch p := p.(type) {
		case *protocol.PingPong:
			if t.echoed && p.ID == t.lastEcho {
				logging.Debug("Dropped duplicate ping", zap.Int32("id", p.ID))
				continue
			}
			t.lastEcho, t.echoed = p.ID, true
			t.send(&protocol.PingPong{ID: p.ID})
			t.pingsEchoed.Add(1)
		case *protocol.SensorInfo:
			t.sensorAcks.Add(1)
			logging.Debug("Sensor acknowledged",
				zap.Uint8("sensor", p.Sensor),
				zap.Uint8("status", p.Status),
			)
		}
	}
}

// send writes p as its own datagram.
func (t *Tracker) send(p protocol.Packet) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	w := protocol.NewWriter(buf.B[:0])
	if _, err := w.WritePacket(p); err != nil {
		logging.Error("Failed to encode packet", zap.String("kind", p.Kind().String()), zap.Error(err))
		return
	}
	buf.B = w.Bytes()

	t.mu.Lock()
	_, err := t.conn.Write(buf.B)
	t.mu.Unlock()
	if err != nil {
		logging.Warn("UDP write failed", zap.String("kind", p.Kind().String()), zap.Error(err))
		return
	}
	t.sent.Add(1)
}
