package server

import (
	"github.com/muurk/trackd/internal/feed"
	"github.com/muurk/trackd/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "trackd"

// Frame outcomes used as the "result" label of frames_total.
const (
	frameDecoded     = "decoded"
	frameUnknownKind = "unknown_kind"
	frameBadVerifier = "bad_verifier"
	frameTruncated   = "truncated"
	frameDecodeError = "decode_error"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	datagramsReceived prometheus.Counter
	bytesReceived     prometheus.Counter
	frames            *prometheus.CounterVec
	packets           *prometheus.CounterVec
	parseAborts       prometheus.Counter
	unknownSenders    prometheus.Counter

	responsesSent *prometheus.CounterVec
	sendErrors    prometheus.Counter

	trackersConnected prometheus.Gauge
	handshakes        prometheus.Counter
	timeouts          prometheus.Counter
	pingRTT           prometheus.Histogram
}

// NewMetrics creates the server collectors and registers them with
// registerer when it is non-nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		datagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "udp",
			Name:      "datagrams_received_total",
			Help:      "Total number of UDP datagrams received",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "udp",
			Name:      "bytes_received_total",
			Help:      "Total UDP payload bytes received",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "protocol",
			Name:      "frames_total",
			Help:      "Frames read from datagrams by outcome",
		}, []string{"result"}),
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "protocol",
			Name:      "packets_total",
			Help:      "Decoded packets by kind",
		}, []string{"kind"}),
		parseAborts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "protocol",
			Name:      "parse_aborts_total",
			Help:      "Datagrams whose scan stopped at a degenerate or truncated frame",
		}),
		unknownSenders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "udp",
			Name:      "unknown_sender_datagrams_total",
			Help:      "Datagrams ignored because the sender never sent a handshake",
		}),
		responsesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "protocol",
			Name:      "responses_sent_total",
			Help:      "Control frames sent to trackers by kind",
		}, []string{"kind"}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "udp",
			Name:      "send_errors_total",
			Help:      "Failed UDP writes",
		}),
		trackersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "trackers",
			Name:      "connected",
			Help:      "Number of trackers currently connected",
		}),
		handshakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "trackers",
			Name:      "handshakes_total",
			Help:      "Total tracker handshakes",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "trackers",
			Name:      "timeouts_total",
			Help:      "Trackers dropped after going silent",
		}),
		pingRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "trackers",
			Name:      "ping_rtt_seconds",
			Help:      "Round trip time of server pings",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.datagramsReceived,
			m.bytesReceived,
			m.frames,
			m.packets,
			m.parseAborts,
			m.unknownSenders,
			m.responsesSent,
			m.sendErrors,
			m.trackersConnected,
			m.handshakes,
			m.timeouts,
			m.pingRTT,
		)
	}

	return m
}

// newRegistry returns a registry with the Go and process collectors and
// the server metrics.
func newRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, NewMetrics(reg)
}

// observeParse records the frame counters of one parse result.
func (m *Metrics) observeParse(res *protocol.Result) {
	m.frames.WithLabelValues(frameDecoded).Add(float64(len(res.Packets)))
	m.frames.WithLabelValues(frameUnknownKind).Add(float64(res.Unknown))
	m.frames.WithLabelValues(frameBadVerifier).Add(float64(res.BadVerifier))
	m.frames.WithLabelValues(frameTruncated).Add(float64(res.Truncated))
	m.frames.WithLabelValues(frameDecodeError).Add(float64(len(res.DecodeErrors)))
	if res.Err != nil {
		m.parseAborts.Inc()
	}
	for _, p := range res.Packets {
		m.packets.WithLabelValues(p.Kind().String()).Inc()
	}
}

// registerFeedMetrics exposes the feed hub's client count and drop counter.
func registerFeedMetrics(reg prometheus.Registerer, hub *feed.Hub) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Connected feed clients",
		}, func() float64 { return float64(hub.Clients()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "feed",
			Name:      "events_dropped_total",
			Help:      "Feed events dropped because the hub was backed up",
		}, func() float64 { return float64(hub.Dropped()) }),
	)
}
