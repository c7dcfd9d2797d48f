package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/muurk/trackd/internal/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// httpHandler routes the status endpoints:
//
//	/metrics   Prometheus exposition
//	/feed      websocket event feed
//	/trackers  JSON list of connected trackers
func (s *Server) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.Handle("/feed", s.hub)
	mux.HandleFunc("/trackers", s.handleTrackers)
	return logRequests(mux)
}

func (s *Server) handleTrackers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Trackers()); err != nil {
		logging.Warn("Failed to write tracker list", zap.Error(err))
	}
}

// logRequests logs each request at debug level. Scrapes are frequent.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.Debug("HTTP request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("user_agent", r.Header.Get("User-Agent")),
			zap.Bool("upgrade", strings.EqualFold(r.Header.Get("Upgrade"), "websocket")),
		)
		next.ServeHTTP(w, r)
	})
}
