package replay

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/muurk/trackd/internal/protocol"
)

// Summary accumulates parser outcomes over a capture.
type Summary struct {
	Stats

	Inbound  int // Datagrams sent to the server port and parsed
	Outbound int // Datagrams sent by the server, counted only

	Frames       int
	Packets      int
	ByKind       map[protocol.Kind]int
	Unknown      int
	BadVerifier  int
	Truncated    int
	DecodeErrors int
	Aborted      int // Datagrams whose scan stopped at a degenerate or truncated frame

	Senders map[string]int // Inbound datagrams per source address

	First time.Time
	Last  time.Time
}

// KindCount is one row of Summary.Kinds.
type KindCount struct {
	Kind  protocol.Kind
	Count int
}

// Kinds returns the decoded packet counts ordered by kind.
func (s *Summary) Kinds() []KindCount {
	counts := make([]KindCount, 0, len(s.ByKind))
	for k, n := range s.ByKind {
		counts = append(counts, KindCount{Kind: k, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Kind < counts[j].Kind })
	return counts
}

// Dropped returns the number of frames read but not decoded.
func (s *Summary) Dropped() int {
	return s.Unknown + s.BadVerifier + s.Truncated + s.DecodeErrors
}

// PacketFunc observes each decoded packet with the datagram it came from.
type PacketFunc func(dg Datagram, p protocol.Packet)

// Analyzer runs captured tracker traffic through a protocol.Parser.
type Analyzer struct {
	// Port is the server's UDP port. Datagrams sent to it are parsed and
	// datagrams sent from it are counted as outbound. Zero parses every
	// datagram as inbound.
	Port int

	Parser   *protocol.Parser
	OnPacket PacketFunc
}

// Analyze reads the capture from r and returns the accumulated summary.
// The summary is valid up to the point of failure when an error is returned.
func (a *Analyzer) Analyze(ctx context.Context, r io.Reader) (*Summary, error) {
	parser := a.Parser
	if parser == nil {
		parser = protocol.NewParser()
	}

	sum := &Summary{
		ByKind:  make(map[protocol.Kind]int),
		Senders: make(map[string]int),
	}

	stats, err := Read(ctx, r, a.Port, func(dg Datagram) error {
		if sum.First.IsZero() {
			sum.First = dg.Time
		}
		sum.Last = dg.Time

		if a.Port != 0 && int(dg.Dst.Port()) != a.Port {
			sum.Outbound++
			return nil
		}
		sum.Inbound++
		sum.Senders[dg.Src.String()]++

		res := parser.Parse(dg.Payload, nil)
		sum.Frames += res.Frames
		sum.Unknown += res.Unknown
		sum.BadVerifier += res.BadVerifier
		sum.Truncated += res.Truncated
		sum.DecodeErrors += len(res.DecodeErrors)
		if res.Err != nil {
			sum.Aborted++
		}
		for _, p := range res.Packets {
			sum.Packets++
			sum.ByKind[p.Kind()]++
			if a.OnPacket != nil {
				a.OnPacket(dg, p)
			}
		}
		return nil
	})
	sum.Stats = stats
	return sum, err
}
