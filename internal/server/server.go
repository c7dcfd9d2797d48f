package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/muurk/trackd/internal/config"
	"github.com/muurk/trackd/internal/discovery"
	"github.com/muurk/trackd/internal/feed"
	"github.com/muurk/trackd/internal/logging"
	"github.com/muurk/trackd/internal/protocol"
	"github.com/muurk/trackd/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// readPollInterval bounds each UDP read so the loop notices cancellation
	readPollInterval = 100 * time.Millisecond

	// maxDatagramSize is the largest UDP payload
	maxDatagramSize = 65535

	shutdownTimeout = 10 * time.Second
)

// Config holds the server configuration
type Config struct {
	Host           string
	Port           int
	HTTPPort       int           // Metrics, feed and status port (0 = disabled)
	Timeout        time.Duration // Silence before a tracker is dropped
	PingInterval   time.Duration // Server ping and timeout sweep period
	LogLevel       string
	AnalysisDir    string // Directory to write datagram analysis logs (empty = disabled)
	CaptureFile    string // pcap file recording all traffic (empty = disabled)
	Advertise      bool   // Advertise over mDNS
	Instance       string // mDNS instance name (default "trackd on <hostname>")
	LegacyGreeting bool   // Send the 64-byte greeting before each handshake response

	// Registry, when set, records every handshake. It is saved to
	// RegistryPath, or the default config path when RegistryPath is empty.
	Registry     *config.Registry
	RegistryPath string
}

// packetWriter is the send half of the UDP socket.
type packetWriter interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
}

// Server receives tracker datagrams, answers control packets and keeps
// per-tracker state.
type Server struct {
	config  *Config
	parser  *protocol.Parser
	hub     *feed.Hub
	metrics *Metrics
	promReg *prometheus.Registry
	now     func() time.Time

	conn     *net.UDPConn
	out      packetWriter
	capture  *capture
	httpSrv  *http.Server
	httpAddr net.Addr
	advert   *discovery.Advertisement

	mu            sync.Mutex
	trackers      map[string]*Tracker // keyed by remote UDP address
	nextPingID    int32
	registryGen   uint64 // bumped on every registry change
	savedGen      uint64 // registryGen as of the last successful save

	wg     sync.WaitGroup
	cancel context.CancelFunc
	ready  chan struct{}
	done   chan struct{}
}

// New creates a new Server instance
func New(cfg *Config) (*Server, error) {
	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid UDP port: %d", cfg.Port)
	}
	if cfg.HTTPPort < 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultTimeoutSeconds * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = config.DefaultPingIntervalMillis * time.Millisecond
	}

	s := &Server{
		config:   cfg,
		hub:      feed.NewHub(),
		now:      time.Now,
		trackers: make(map[string]*Tracker),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.parser = protocol.NewParser(protocol.WithClock(func() time.Time { return s.now() }))
	s.promReg, s.metrics = newRegistry()
	registerFeedMetrics(s.promReg, s.hub)

	return s, nil
}

// Start starts the server and blocks until SIGINT/SIGTERM or a fatal error.
func (s *Server) Start() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Run(context.Background())
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Run listens for trackers until ctx is cancelled or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	defer close(s.done)

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	s.conn = conn
	s.out = conn
	defer func() { _ = conn.Close() }()

	local := conn.LocalAddr().(*net.UDPAddr)
	s.capture, err = openCapture(s.config.AnalysisDir, s.config.CaptureFile, local.AddrPort(), s.now())
	if err != nil {
		return err
	}
	defer s.capture.Close()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	logging.Info("Starting trackd server",
		zap.String("addr", local.String()),
		zap.Duration("timeout", s.config.Timeout),
		zap.Duration("ping_interval", s.config.PingInterval),
		zap.Bool("legacy_greeting", s.config.LegacyGreeting),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(ctx)
	}()

	if s.config.HTTPPort > 0 {
		if err := s.startHTTP(); err != nil {
			return err
		}
	}

	if s.config.Advertise {
		s.startAdvertising(local.Port)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.maintain(ctx)
	}()

	close(s.ready)
	s.receive(ctx)

	s.stop()
	return nil
}

// receive reads datagrams until ctx is cancelled.
func (s *Server) receive(ctx context.Context) {
	buffer := make([]byte, maxDatagramSize)

	for {
		if ctx.Err() != nil {
			return
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(readPollInterval))
		n, addr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Warn("UDP read error", zap.Error(err))
			continue
		}

		s.handleDatagram(addr, buffer[:n], s.now())
	}
}

// maintain pings trackers and drops silent ones every PingInterval.
func (s *Server) maintain(ctx context.Context) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.tick(s.now()) {
				s.saveRegistry()
			}
		}
	}
}

func (s *Server) startHTTP() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.HTTPPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on HTTP address: %w", err)
	}
	s.httpAddr = ln.Addr()
	s.httpSrv = &http.Server{
		Handler:           s.httpHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logging.Info("HTTP listening",
		zap.String("addr", ln.Addr().String()),
		zap.Strings("paths", []string{"/metrics", "/feed", "/trackers"}),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) startAdvertising(port int) {
	instance := s.config.Instance
	if instance == "" {
		host, _ := os.Hostname()
		instance = "trackd on " + host
	}

	txt := []string{
		discovery.TxtVersion + "=" + version.Version,
		discovery.TxtProtocol + "=udp",
	}
	if s.config.HTTPPort > 0 {
		txt = append(txt, discovery.TxtHTTPPort+"="+strconv.Itoa(s.config.HTTPPort))
	}

	adv, err := discovery.Advertise(instance, port, txt)
	if err != nil {
		logging.Warn("mDNS advertisement failed, continuing without it", zap.Error(err))
		return
	}
	s.advert = adv
	logging.Info("Advertising over mDNS",
		zap.String("instance", instance),
		zap.String("service", discovery.ServiceType),
	)
}

// stop releases everything Run started and waits for its goroutines.
func (s *Server) stop() {
	s.advert.Shutdown()

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			logging.Warn("HTTP shutdown error", zap.Error(err))
		}
		cancel()
	}

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	dirty := s.registryGen != s.savedGen
	s.mu.Unlock()
	if dirty {
		s.saveRegistry()
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	select {
	case <-s.ready:
		s.cancel()
	default:
		return nil
	}

	select {
	case <-s.done:
		logging.Info("Server stopped gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	case <-time.After(shutdownTimeout):
		logging.Warn("Shutdown timeout after 10 seconds, forcing close")
	}

	logging.Sync()

	return nil
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the UDP listen address. Valid after Ready.
func (s *Server) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// HTTPAddr returns the HTTP listen address, or nil when HTTP is disabled.
// Valid after Ready.
func (s *Server) HTTPAddr() net.Addr {
	return s.httpAddr
}

// Hub returns the feed hub events are published to.
func (s *Server) Hub() *feed.Hub {
	return s.hub
}

// Trackers returns the status of every connected tracker ordered by address.
func (s *Server) Trackers() []TrackerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]TrackerStatus, 0, len(s.trackers))
	for _, t := range s.trackers {
		statuses = append(statuses, t.Status())
	}
	sortStatuses(statuses)
	return statuses
}

// GetActiveConnections returns the number of connected trackers
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trackers)
}

func (s *Server) saveRegistry() {
	reg := s.config.Registry
	if reg == nil {
		return
	}

	s.mu.Lock()
	gen := s.registryGen
	s.mu.Unlock()

	var err error
	if s.config.RegistryPath != "" {
		err = reg.SaveTo(s.config.RegistryPath)
	} else {
		err = reg.Save()
	}
	if err != nil {
		logging.Warn("Failed to save tracker registry", zap.Error(err))
		return
	}
	s.registrySaved(gen)
}

// registrySaved records that the registry as of gen is on disk. Changes made
// while the save was running keep the registry dirty for the next tick.
func (s *Server) registrySaved(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen > s.savedGen {
		s.savedGen = gen
	}
}
