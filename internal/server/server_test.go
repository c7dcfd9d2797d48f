package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/trackd/internal/feed"
	"github.com/muurk/trackd/internal/protocol"
	"github.com/muurk/trackd/internal/replay"
)

func startServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	cfg.Host = "127.0.0.1"
	cfg.LogLevel = "error"

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	select {
	case <-s.Ready():
	case err := <-errCh:
		t.Fatalf("Run() error = %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server not ready")
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func dialTracker(t *testing.T, s *Server) *net.UDPConn {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, s.Addr())
	if err != nil {
		t.Fatalf("DialUDP() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readDatagram(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()
	buf := make([]byte, 2048)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	return buf[:n]
}

func TestServer_UDPSession(t *testing.T) {
	s := startServer(t, &Config{PingInterval: time.Hour})
	conn := dialTracker(t, s)

	if _, err := conn.Write(datagram(t, handshake())); err != nil {
		t.Fatal(err)
	}
	if got := readDatagram(t, conn); !bytes.Equal(got, handshakeAck) {
		t.Errorf("handshake reply = % x, want % x", got, handshakeAck)
	}

	if _, err := conn.Write(datagram(t, &protocol.Heartbeat{})); err != nil {
		t.Fatal(err)
	}
	if got := readDatagram(t, conn); !bytes.Equal(got, heartbeatAck) {
		t.Errorf("heartbeat reply = % x, want % x", got, heartbeatAck)
	}

	if n := s.GetActiveConnections(); n != 1 {
		t.Errorf("GetActiveConnections() = %d, want 1", n)
	}
}

func TestServer_PingsAndTimesOut(t *testing.T) {
	s := startServer(t, &Config{PingInterval: 50 * time.Millisecond, Timeout: 200 * time.Millisecond})
	conn := dialTracker(t, s)

	if _, err := conn.Write(datagram(t, handshake())); err != nil {
		t.Fatal(err)
	}
	readDatagram(t, conn)

	ping := readDatagram(t, conn)
	res := protocol.NewParser().Parse(ping, nil)
	if len(res.Packets) != 1 || res.Packets[0].Kind() != protocol.KindPingPong {
		t.Fatalf("expected a server ping, got % x", ping)
	}

	deadline := time.Now().Add(3 * time.Second)
	for s.GetActiveConnections() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("silent tracker was not dropped")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestServer_CaptureFiles(t *testing.T) {
	dir := t.TempDir()
	pcapPath := filepath.Join(dir, "session.pcap")
	s := startServer(t, &Config{PingInterval: time.Hour, AnalysisDir: dir, CaptureFile: pcapPath})
	conn := dialTracker(t, s)

	if _, err := conn.Write(datagram(t, handshake())); err != nil {
		t.Fatal(err)
	}
	readDatagram(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	// Without a port filter both directions are read back.
	var kinds []protocol.Kind
	stats, err := replay.ReadFile(ctx, pcapPath, 0, func(dg replay.Datagram) error {
		for _, p := range protocol.NewParser().Parse(dg.Payload, nil).Packets {
			kinds = append(kinds, p.Kind())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if stats.Datagrams != 2 {
		t.Errorf("pcap datagrams = %d, want 2", stats.Datagrams)
	}
	if len(kinds) != 1 || kinds[0] != protocol.KindHandshake {
		// The ack is kind 2, which the inbound catalog does not know.
		t.Errorf("decoded kinds = %v, want only the handshake", kinds)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "capture-*.jsonl"))
	if len(matches) != 1 {
		t.Fatalf("found %d analysis files, want 1", len(matches))
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []DatagramAnalysis
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var a DatagramAnalysis
		if err := json.Unmarshal(sc.Bytes(), &a); err != nil {
			t.Fatalf("bad analysis line %q: %v", sc.Text(), err)
		}
		lines = append(lines, a)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d analysis lines, want 2", len(lines))
	}
	if lines[0].Direction != DirectionInbound || len(lines[0].Kinds) != 1 || lines[0].Kinds[0] != "Handshake" {
		t.Errorf("inbound line = %+v", lines[0])
	}
	if lines[1].Direction != DirectionOutbound || lines[1].PayloadHex != "0007f000000002" {
		t.Errorf("outbound line = %+v", lines[1])
	}
}

func TestServer_Feed(t *testing.T) {
	s := startServer(t, &Config{PingInterval: time.Hour, HTTPPort: 0})
	srv := httptest.NewServer(s.httpHandler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := feed.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/feed")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("feed client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn := dialTracker(t, s)
	if _, err := conn.Write(datagram(t, handshake())); err != nil {
		t.Fatal(err)
	}
	readDatagram(t, conn)
	if _, err := conn.Write(datagram(t, &protocol.Temperature{Sensor: 0, Celsius: 28.5})); err != nil {
		t.Fatal(err)
	}

	want := []feed.EventType{feed.EventConnected, feed.EventPacket}
	for _, typ := range want {
		select {
		case e := <-events:
			if e.Type != typ || e.MAC != trackerMAC.String() {
				t.Errorf("event = %+v, want %s from %s", e, typ, trackerMAC)
			}
			if typ == feed.EventPacket {
				p, err := e.DecodePacket()
				if err != nil {
					t.Fatalf("DecodePacket() error = %v", err)
				}
				if temp, ok := p.(*protocol.Temperature); !ok || temp.Celsius != 28.5 {
					t.Errorf("packet = %#v", p)
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s event", typ)
		}
	}
}

func TestHTTP_Endpoints(t *testing.T) {
	s, _ := newTestServer(t, nil)
	deliver(s, udpAddr(4210), datagram(t, handshake()), t0)

	srv := httptest.NewServer(s.httpHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/trackers")
	if err != nil {
		t.Fatal(err)
	}
	var trackers []TrackerStatus
	err = json.NewDecoder(resp.Body).Decode(&trackers)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode /trackers: %v", err)
	}
	if len(trackers) != 1 || trackers[0].MAC != trackerMAC.String() {
		t.Errorf("/trackers = %+v", trackers)
	}

	resp, err = http.Post(srv.URL+"/trackers", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /trackers status = %d, want 405", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, name := range []string{
		"trackd_udp_datagrams_received_total 1",
		"trackd_trackers_handshakes_total 1",
		`trackd_protocol_responses_sent_total{kind="handshake"} 1`,
		"trackd_feed_clients",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("/metrics missing %q", name)
		}
	}
}
