package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aurawell/pulse/config/adaptive"
)

// Report is the payload POSTed to the collector endpoint.
type Report struct {
	SessionID    string              `json:"session_id"`
	GeneratedAt  time.Time           `json:"generated_at"`
	Device       DeviceInfo          `json:"device"`
	Metrics      []ComponentMetric   `json:"metrics"`
	Interactions []InteractionMetric `json:"interactions,omitempty"`
}

// Reporter periodically packages the recorder's metrics and delivers them to
// the collector. Delivery is at-least-once: a failed report is retained and
// retried on the next attempt, and the collector is expected to tolerate
// duplicates. Background failures are logged and swallowed, never surfaced
// to the host.
type Reporter struct {
	cfg     adaptive.ReportingConfig
	rec     *Recorder
	session Session
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger

	mu      sync.Mutex
	pending []Report

	samples int64 // accepted samples since the last flush, atomic
	flushCh chan struct{}

	running   bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithReporterLogger sets the logger used for delivery diagnostics.
func WithReporterLogger(logger *slog.Logger) ReporterOption {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client used for delivery.
func WithHTTPClient(client *http.Client) ReporterOption {
	return func(r *Reporter) {
		r.client = client
	}
}

// NewReporter creates a reporting sink for the given recorder and session.
func NewReporter(rec *Recorder, session Session, cfg *adaptive.Config, options ...ReporterOption) (*Reporter, error) {
	if cfg == nil || cfg.Reporting == nil {
		cfg = adaptive.DefaultConfig()
	}
	rcfg := *cfg.Reporting
	if rcfg.Enabled && rcfg.Endpoint == "" {
		return nil, fmt.Errorf("reporting enabled without an endpoint")
	}

	r := &Reporter{
		cfg:     rcfg,
		rec:     rec,
		session: session,
		client:  &http.Client{Timeout: rcfg.RequestTimeout},
		logger:  slog.Default(),
		flushCh: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	for _, option := range options {
		option(r)
	}

	failures := rcfg.BreakerFailureThreshold
	if failures == 0 {
		failures = 5
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "pulse-reporter",
		Timeout: rcfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("reporter breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return r, nil
}

// NotifySample informs the reporter that one sample was accepted. Once the
// configured threshold accumulates, an early background flush is triggered.
// Wire this as the recorder's sample hook.
func (r *Reporter) NotifySample() {
	if r.cfg.FlushThreshold <= 0 {
		return
	}
	if atomic.AddInt64(&r.samples, 1) >= int64(r.cfg.FlushThreshold) {
		atomic.StoreInt64(&r.samples, 0)
		select {
		case r.flushCh <- struct{}{}:
		default:
		}
	}
}

// Start launches the background flush loop. It returns immediately; the
// loop runs until the context is cancelled or Close is called.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.Enabled {
		return nil
	}
	if r.running {
		return fmt.Errorf("reporter already running")
	}
	r.running = true

	go r.flushLoop(ctx)
	return nil
}

func (r *Reporter) flushLoop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.backgroundFlush(ctx)
		case <-r.flushCh:
			r.backgroundFlush(ctx)
		}
	}
}

func (r *Reporter) backgroundFlush(ctx context.Context) {
	if err := r.Flush(ctx); err != nil {
		// Background reporting is best-effort; failures stay internal.
		r.logger.Debug("metric flush failed, will retry",
			slog.String("error", err.Error()),
		)
	}
}

// Flush packages the current metrics plus any previously failed reports and
// delivers them. On failure every undelivered report is retained for the
// next attempt. Returns nil when there was nothing to deliver.
func (r *Reporter) Flush(ctx context.Context) error {
	if !r.cfg.Enabled {
		return nil
	}

	metrics := r.rec.AllComponentMetrics()
	interactions := r.rec.AllInteractionMetrics()

	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(metrics) > 0 || len(interactions) > 0 {
		batch = append(batch, Report{
			SessionID:    r.session.ID,
			GeneratedAt:  time.Now().UTC(),
			Device:       r.session.Device,
			Metrics:      metrics,
			Interactions: interactions,
		})
	}
	if len(batch) == 0 {
		return nil
	}

	atomic.StoreInt64(&r.samples, 0)

	for i, report := range batch {
		if err := r.send(ctx, report); err != nil {
			r.retain(batch[i:])
			return fmt.Errorf("deliver report: %w", err)
		}
	}
	return nil
}

// Pending returns how many failed reports are retained for retry.
func (r *Reporter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Reporter) retain(reports []Report) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = append(r.pending, reports...)
	if max := r.cfg.MaxPendingReports; max > 0 && len(r.pending) > max {
		r.pending = r.pending[len(r.pending)-max:]
	}
}

func (r *Reporter) send(ctx context.Context, report Report) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.post(ctx, report)
	})
	return err
}

func (r *Reporter) post(ctx context.Context, report Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pulse-reporter/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("report request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}
	return nil
}

// Close stops the flush loop and makes one best-effort final delivery,
// bounded by the configured shutdown timeout so teardown can never hang.
func (r *Reporter) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		wasRunning := r.running
		r.running = false
		r.mu.Unlock()

		if wasRunning {
			close(r.stop)
			<-r.done
		}

		if !r.cfg.Enabled {
			return
		}

		timeout := r.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := r.Flush(ctx); err != nil {
			r.logger.Debug("final metric flush failed",
				slog.String("error", err.Error()),
			)
		}
	})
}
