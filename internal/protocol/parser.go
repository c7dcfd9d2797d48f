package protocol

import (
	"errors"
	"time"

	"github.com/muurk/trackd/internal/logging"
	"go.uber.org/zap"
)

// Liveness receives the time a frame arrived on a connection.
type Liveness interface {
	MarkAlive(at time.Time)
}

// LivenessFunc adapts a function to Liveness.
type LivenessFunc func(at time.Time)

func (f LivenessFunc) MarkAlive(at time.Time) { f(at) }

// Result is the outcome of parsing one receive buffer.
type Result struct {
	Packets []Packet // Successfully decoded packets, in buffer order

	Frames      int // Frame headers read
	Unknown     int // Frames with a kind the catalog does not know
	BadVerifier int // Frames whose verifier byte was wrong
	Truncated   int // Frames that claimed more bytes than the buffer held
	Consumed    int // Buffer offset the scan reached

	// DecodeErrors holds frames whose codec failed. Each failure drops that
	// frame only.
	DecodeErrors []*FrameError

	// Alive is true when at least one frame header was consumed.
	Alive bool

	// Err is set when the scan was aborted by a degenerate length or by a
	// frame that runs past the end of the buffer.
	Err error
}

// Dropped returns the number of frames that were read but not decoded.
func (r *Result) Dropped() int {
	return r.Unknown + r.BadVerifier + r.Truncated + len(r.DecodeErrors)
}

// Parser scans receive buffers into packets using a Catalog.
//
// A Parser holds no per-buffer state and may be shared between connections;
// callers must not parse the same connection's buffers concurrently if they
// care about packet order.
type Parser struct {
	catalog *Catalog
	now     func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithCatalog replaces the default catalog.
func WithCatalog(c *Catalog) Option {
	return func(p *Parser) { p.catalog = c }
}

// WithClock replaces time.Now as the liveness time source.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// NewParser returns a Parser using the default catalog and wall clock.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		catalog: DefaultCatalog(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Catalog returns the catalog the parser dispatches through.
func (p *Parser) Catalog() *Catalog { return p.catalog }

// Parse scans buf for consecutive frames and decodes every frame it can.
//
// Frames with a bad verifier, an unknown kind, or a failing codec are
// skipped and scanning resumes at the next claimed boundary. A degenerate
// length aborts the scan. Packets decoded before an abort are returned.
// When live is non-nil and any frame header was consumed, live.MarkAlive is
// called once with the parser clock.
func (p *Parser) Parse(buf []byte, live Liveness) Result {
	var res Result

	w := walk(buf, func(h Header, offset int, payload []byte) {
		if !h.Valid() {
			res.BadVerifier++
			return
		}
		factory, ok := p.catalog.Lookup(h.Kind)
		if !ok {
			res.Unknown++
			return
		}
		pkt := factory()
		if err := pkt.Decode(NewDecoder(payload)); err != nil {
			ferr := &FrameError{Offset: offset, Length: int(h.Length), Kind: h.Kind, Err: err}
			res.DecodeErrors = append(res.DecodeErrors, ferr)
			logging.Debug("Dropped frame with undecodable payload",
				zap.Int("offset", offset),
				zap.String("kind", h.Kind.String()),
				zap.Int("payload_len", len(payload)),
				zap.Error(err),
			)
			return
		}
		res.Packets = append(res.Packets, pkt)
	})

	res.Frames = w.headers
	res.Consumed = w.consumed
	res.Alive = w.headers > 0

	if w.err != nil {
		switch {
		case errors.Is(w.err, ErrDegenerateLength):
			res.Err = w.err
			logging.Debug("Aborted scan on degenerate frame length",
				zap.Int("offset", w.err.Offset),
				zap.Int("length", w.err.Length),
				zap.Int("buffer_len", len(buf)),
			)
		case w.truncated:
			res.Truncated++
			res.Err = w.err
			logging.Debug("Aborted scan on truncated frame",
				zap.Int("offset", w.err.Offset),
				zap.Int("length", w.err.Length),
				zap.Int("buffer_len", len(buf)),
			)
		}
	}

	if res.Alive && live != nil {
		live.MarkAlive(p.now())
	}

	return res
}
