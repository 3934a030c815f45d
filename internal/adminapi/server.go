// Package adminapi serves the read-only operations surface: JSON
// status, health check and Prometheus metrics.  It never mutates the
// record store; the device protocol (internal/gate) is the only
// management surface.
package adminapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/mfields-dev/cardgate/internal/cardgate/store"
	"github.com/mfields-dev/cardgate/internal/metrics"
)

// LastScanFunc reports the time and card id of the most recent scan.
type LastScanFunc func() (time.Time, string)

type Dependencies struct {
	Logger   *log.Logger
	Addr     string
	Records  *store.RecordStore
	LastScan LastScanFunc
	Metrics  *metrics.Metrics
}

type StatusResponse struct {
	OK            bool   `json:"ok"`
	Records       int    `json:"records"`
	Capacity      int    `json:"capacity"`
	LastScanAt    string `json:"last_scan_at,omitempty"`
	LastCardID    string `json:"last_card_id,omitempty"`
	UptimeSeconds int64  `json:"uptime_s"`
	ServerTime    string `json:"server_time"`
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	records    *store.RecordStore
	lastScan   LastScanFunc
	startedAt  time.Time
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:    d.Logger,
		records:   d.Records,
		lastScan:  d.LastScan,
		startedAt: time.Now().UTC(),
	}

	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		OK:            true,
		Records:       s.records.Count(),
		Capacity:      s.records.Capacity(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		ServerTime:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	if s.lastScan != nil {
		if at, card := s.lastScan(); !at.IsZero() {
			resp.LastScanAt = at.Format(time.RFC3339Nano)
			resp.LastCardID = card
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
