package replay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/muurk/trackd/internal/logging"
	"go.uber.org/zap"
)

// pcapngMagic is the section header block type that starts a pcapng file.
var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// Datagram is one UDP payload recovered from a capture.
type Datagram struct {
	Time    time.Time
	Src     netip.AddrPort
	Dst     netip.AddrPort
	Payload []byte
}

// Handler receives each datagram in capture order. Returning an error stops
// the replay.
type Handler func(Datagram) error

// Stats summarises one replay.
type Stats struct {
	Packets   int // Capture records read
	Datagrams int // UDP datagrams passed to the handler
	Skipped   int // Non-UDP, filtered or empty records
}

// ReadFile replays the UDP datagrams in a pcap or pcapng file. When port is
// non-zero only datagrams with that source or destination port are passed on.
func ReadFile(ctx context.Context, path string, port int, handler Handler) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return Read(ctx, f, port, handler)
}

// Read replays datagrams from a capture stream. See ReadFile.
func Read(ctx context.Context, r io.Reader, port int, handler Handler) (Stats, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read capture header: %w", err)
	}

	var source *gopacket.PacketSource
	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to open pcapng stream: %w", err)
		}
		source = gopacket.NewPacketSource(ng, ng.LinkType())
	} else {
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to open pcap stream: %w", err)
		}
		source = gopacket.NewPacketSource(pr, pr.LinkType())
	}
	source.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	var stats Stats
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		packet, err := source.NextPacket()
		if err == io.EOF {
			logging.Debug("Capture replay complete",
				zap.Int("packets", stats.Packets),
				zap.Int("datagrams", stats.Datagrams),
				zap.Duration("elapsed", time.Since(start)),
			)
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read capture record %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		dg, ok := extractDatagram(packet)
		if !ok || len(dg.Payload) == 0 {
			stats.Skipped++
			continue
		}
		if port != 0 && int(dg.Src.Port()) != port && int(dg.Dst.Port()) != port {
			stats.Skipped++
			continue
		}

		stats.Datagrams++
		if err := handler(dg); err != nil {
			return stats, err
		}
	}
}

func extractDatagram(packet gopacket.Packet) (Datagram, bool) {
	udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok {
		return Datagram{}, false
	}

	var src, dst netip.Addr
	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		src, _ = netip.AddrFromSlice(ip.SrcIP.To4())
		dst, _ = netip.AddrFromSlice(ip.DstIP.To4())
	case *layers.IPv6:
		src, _ = netip.AddrFromSlice(ip.SrcIP)
		dst, _ = netip.AddrFromSlice(ip.DstIP)
	default:
		return Datagram{}, false
	}

	return Datagram{
		Time:    packet.Metadata().Timestamp,
		Src:     netip.AddrPortFrom(src, uint16(udp.SrcPort)),
		Dst:     netip.AddrPortFrom(dst, uint16(udp.DstPort)),
		Payload: append([]byte(nil), udp.Payload...),
	}, true
}
