// Package collector implements the development-time ingest server that
// receives metric reports from instrumented sessions. It validates inbound
// payloads, folds them into per-session state and re-exposes them in
// Prometheus format.
//
// The reporting side delivers at-least-once, so the collector must tolerate
// duplicates: all per-session values are cumulative snapshots applied with
// last-write-wins, never increments.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aurawell/pulse/config/adaptive"
	"github.com/aurawell/pulse/monitoring"
)

const maxReportBody = 1 << 20 // 1 MiB

// SessionState is the collector's view of one reporting session.
type SessionState struct {
	SessionID    string                         `json:"session_id"`
	Device       monitoring.DeviceInfo          `json:"device"`
	LastSeen     time.Time                      `json:"last_seen"`
	Reports      int64                          `json:"reports"`
	Components   []monitoring.ComponentMetric   `json:"components"`
	Interactions []monitoring.InteractionMetric `json:"interactions,omitempty"`
}

// Server is the ingest HTTP server.
type Server struct {
	logger    *slog.Logger
	validator *monitoring.Validator

	mu       sync.RWMutex
	sessions map[string]*SessionState

	registry        *prometheus.Registry
	reportsReceived prometheus.Counter
	reportsRejected prometheus.Counter
	renderCount     *prometheus.GaugeVec
	slowRenders     *prometheus.GaugeVec
	avgRenderMs     *prometheus.GaugeVec

	httpServer *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger used by the server.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a collector. The config controls whether schema
// validation of inbound payloads is active.
func NewServer(cfg *adaptive.Config, options ...ServerOption) *Server {
	registry := prometheus.NewRegistry()

	s := &Server{
		logger:   slog.Default(),
		sessions: make(map[string]*SessionState),
		registry: registry,
	}

	for _, option := range options {
		option(s)
	}

	s.validator = monitoring.NewValidator(cfg, s.logger)
	s.validator.Register(monitoring.MetricPayloadSchema())

	s.reportsReceived = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "pulse_collector",
		Name:      "reports_received_total",
		Help:      "Reports accepted by the collector",
	})
	s.reportsRejected = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "pulse_collector",
		Name:      "reports_rejected_total",
		Help:      "Reports rejected as malformed",
	})
	s.renderCount = promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pulse_collector",
		Name:      "component_render_count",
		Help:      "Cumulative render count per session and component",
	}, []string{"session", "component"})
	s.slowRenders = promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pulse_collector",
		Name:      "component_slow_renders",
		Help:      "Cumulative slow render count per session and component",
	}, []string{"session", "component"})
	s.avgRenderMs = promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pulse_collector",
		Name:      "component_avg_render_ms",
		Help:      "Average render time per session and component in milliseconds",
	}, []string{"session", "component"})

	return s
}

// Handler returns the server's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/reports", s.handleReport)
	mux.HandleFunc("GET /v1/sessions", s.handleSessions)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportBody))
	if err != nil {
		s.reject(w, http.StatusBadRequest, "read body: %v", err)
		return
	}

	if s.validator.Enabled() {
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			s.reject(w, http.StatusBadRequest, "decode payload: %v", err)
			return
		}
		if err := s.validator.ValidateStrict("metric_report", payload); err != nil {
			s.reject(w, http.StatusUnprocessableEntity, "%v", err)
			return
		}
	}

	var report monitoring.Report
	if err := json.Unmarshal(body, &report); err != nil {
		s.reject(w, http.StatusBadRequest, "decode report: %v", err)
		return
	}
	if report.SessionID == "" {
		s.reject(w, http.StatusUnprocessableEntity, "report missing session_id")
		return
	}

	s.apply(&report)
	s.reportsReceived.Inc()

	s.logger.Debug("report accepted",
		slog.String("session", report.SessionID),
		slog.Int("components", len(report.Metrics)),
	)

	w.WriteHeader(http.StatusAccepted)
}

// apply folds a report into session state. Metrics are cumulative snapshots,
// so replaying the same report is harmless.
func (s *Server) apply(report *monitoring.Report) {
	s.mu.Lock()
	state, ok := s.sessions[report.SessionID]
	if !ok {
		state = &SessionState{SessionID: report.SessionID}
		s.sessions[report.SessionID] = state
	}
	state.Device = report.Device
	state.LastSeen = time.Now().UTC()
	state.Reports++
	state.Components = report.Metrics
	state.Interactions = report.Interactions
	s.mu.Unlock()

	for _, m := range report.Metrics {
		s.renderCount.WithLabelValues(report.SessionID, m.Name).Set(float64(m.RenderCount))
		s.slowRenders.WithLabelValues(report.SessionID, m.Name).Set(float64(m.SlowRenderCount))
		s.avgRenderMs.WithLabelValues(report.SessionID, m.Name).Set(
			float64(m.AverageRenderTime) / float64(time.Millisecond))
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := make([]*SessionState, 0, len(s.sessions))
	for _, state := range s.sessions {
		out = append(out, state)
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Error("encode sessions response", slog.String("error", err.Error()))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.SessionCount())
}

// SessionCount returns how many distinct sessions have reported.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Session returns the state for one session ID.
func (s *Server) Session(id string) (SessionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[id]
	if !ok {
		return SessionState{}, false
	}
	return *state, true
}

func (s *Server) reject(w http.ResponseWriter, code int, format string, args ...any) {
	s.reportsRejected.Inc()
	msg := fmt.Sprintf(format, args...)
	s.logger.Warn("report rejected", slog.String("reason", msg))
	http.Error(w, msg, code)
}

// ListenAndServe runs the server on addr until the context is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info("collector listening", slog.String("addr", addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("collector server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("collector shutdown: %w", err)
	}
	return nil
}
