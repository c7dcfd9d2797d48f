package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/muurk/trackd/internal/logging"
	"github.com/muurk/trackd/internal/protocol"
	"github.com/muurk/trackd/internal/replay"
	"go.uber.org/zap"
)

// Capture directions.
const (
	DirectionInbound  = "tracker->server"
	DirectionOutbound = "server->tracker"
)

// DatagramAnalysis is one line of an analysis capture file.
type DatagramAnalysis struct {
	Timestamp    time.Time `json:"timestamp"`
	Seq          int       `json:"seq"`
	RemoteAddr   string    `json:"remote_addr"`
	Direction    string    `json:"direction"`
	Length       int       `json:"length"`
	PayloadHex   string    `json:"payload_hex"`
	PayloadASCII string    `json:"payload_ascii"`
	Kinds        []string  `json:"kinds,omitempty"`
	Frames       int       `json:"frames"`
	Dropped      int       `json:"dropped"`
	Error        string    `json:"error,omitempty"`
}

// capture writes every datagram to a JSON Lines file and/or a pcap file.
// A nil *capture records nothing.
type capture struct {
	mu    sync.Mutex
	seq   int
	local netip.AddrPort

	jsonFile *os.File
	enc      *json.Encoder

	pcapFile *os.File
	pcap     *replay.Recorder
}

// openCapture creates capture-<timestamp>.jsonl in analysisDir and/or the
// pcap file at pcapPath. It returns nil when both are empty.
func openCapture(analysisDir, pcapPath string, local netip.AddrPort, start time.Time) (*capture, error) {
	if analysisDir == "" && pcapPath == "" {
		return nil, nil
	}

	c := &capture{local: unmap(local)}

	if analysisDir != "" {
		if err := os.MkdirAll(analysisDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create analysis directory: %w", err)
		}
		filename := filepath.Join(analysisDir, fmt.Sprintf("capture-%s.jsonl", start.Format("20060102-150405")))
		f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open analysis file: %w", err)
		}
		c.jsonFile = f
		c.enc = json.NewEncoder(f)
		logging.Info("Writing datagram analysis", zap.String("filename", filename))
	}

	if pcapPath != "" {
		f, err := os.Create(pcapPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create pcap file: %w", err)
		}
		rec, err := replay.NewRecorder(f)
		if err != nil {
			_ = f.Close()
			c.Close()
			return nil, err
		}
		c.pcapFile = f
		c.pcap = rec
		logging.Info("Writing pcap capture", zap.String("filename", pcapPath))
	}

	return c, nil
}

// record appends one datagram. res is nil for outbound datagrams.
func (c *capture) record(direction string, addr *net.UDPAddr, data []byte, res *protocol.Result, at time.Time) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++

	if c.enc != nil {
		a := DatagramAnalysis{
			Timestamp:    at,
			Seq:          c.seq,
			RemoteAddr:   addr.String(),
			Direction:    direction,
			Length:       len(data),
			PayloadHex:   hex.EncodeToString(data),
			PayloadASCII: toASCII(data),
		}
		if res != nil {
			a.Frames = res.Frames
			a.Dropped = res.Dropped()
			for _, p := range res.Packets {
				a.Kinds = append(a.Kinds, p.Kind().String())
			}
			if res.Err != nil {
				a.Error = res.Err.Error()
			}
		}
		if err := c.enc.Encode(a); err != nil {
			logging.Error("Failed to write to analysis file", zap.Error(err))
		}
	}

	if c.pcap != nil {
		remote := unmap(addr.AddrPort())
		dg := replay.Datagram{Time: at, Src: remote, Dst: c.local, Payload: data}
		if direction == DirectionOutbound {
			dg.Src, dg.Dst = c.local, remote
		}
		if err := c.pcap.Record(dg); err != nil {
			logging.Error("Failed to write pcap record", zap.Error(err))
		}
	}
}

// Close flushes and closes the capture files.
func (c *capture) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jsonFile != nil {
		_ = c.jsonFile.Close()
	}
	if c.pcapFile != nil {
		_ = c.pcapFile.Close()
	}
}

// unmap strips the IPv4-in-IPv6 form dual-stack sockets report.
func unmap(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}
