package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aurawell/pulse/config/adaptive"
)

// Monitor assembles the instrumentation pipeline for one host session:
// capability detection, the metric recorder, the frame-rate sampler feeding
// the adaptive resolver, and the reporting sink. Hosts that want finer
// control can wire the pieces themselves; Monitor is the batteries-included
// path.
type Monitor struct {
	cfg      *adaptive.Config
	logger   *slog.Logger
	session  Session
	recorder *Recorder
	resolver *adaptive.Resolver
	sampler  *FrameRateSampler
	reporter *Reporter

	mu       sync.Mutex
	trackers map[string]*Tracker
	cancel   context.CancelFunc
	done     chan struct{}
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithMonitorLogger sets the logger shared by all subsystems.
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// NewMonitor builds the pipeline from a config and the host's device hints.
// A nil config uses the defaults.
func NewMonitor(cfg *adaptive.Config, hints DeviceHints, options ...MonitorOption) (*Monitor, error) {
	if cfg == nil {
		cfg = adaptive.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	m := &Monitor{
		cfg:      cfg,
		logger:   slog.Default(),
		trackers: make(map[string]*Tracker),
	}
	for _, option := range options {
		option(m)
	}

	tier := ResolveTier(cfg.TierOverride, hints)
	m.session = NewSession(tier, hints)
	m.resolver = adaptive.NewResolver(tier, cfg, m.logger)
	m.sampler = NewFrameRateSampler(cfg)
	m.sampler.OnSample(func(fps float64) { m.resolver.Observe(fps) })

	// The hook closes over notify so the recorder can be built before the
	// reporter that consumes its samples.
	var notify func()
	m.recorder = NewRecorder(cfg,
		WithRecorderLogger(m.logger),
		WithSampleHook(func() {
			if notify != nil {
				notify()
			}
		}),
	)

	rep, err := NewReporter(m.recorder, m.session, cfg, WithReporterLogger(m.logger))
	if err != nil {
		return nil, err
	}
	m.reporter = rep
	notify = rep.NotifySample

	m.logger.Info("monitor assembled",
		slog.String("session", m.session.ID),
		slog.String("tier", tier.String()),
	)

	return m, nil
}

// Session returns the session metadata attached to outgoing reports.
func (m *Monitor) Session() Session {
	return m.session
}

// Recorder returns the underlying metric recorder.
func (m *Monitor) Recorder() *Recorder {
	return m.recorder
}

// Flags returns the feature-flag set currently in effect.
func (m *Monitor) Flags() adaptive.FeatureFlags {
	return m.resolver.Current()
}

// FlagChanges returns a channel notified whenever the flag set changes.
func (m *Monitor) FlagChanges() <-chan adaptive.FeatureFlags {
	return m.resolver.Subscribe()
}

// Frame records one completed frame for FPS derivation.
func (m *Monitor) Frame() {
	m.sampler.Tick()
}

// Tracker returns the tracker for a named unit, creating it on first use.
// Repeated calls with the same name share one tracker, so the per-instance
// sampling decision is made once per unit.
func (m *Monitor) Tracker(name string) *Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.trackers[name]
	if !ok {
		tr = NewTracker(m.recorder, name, m.cfg, WithTrackerLogger(m.logger))
		m.trackers[name] = tr
	}
	return tr
}

// Start launches the frame-rate sampler and the reporting loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return fmt.Errorf("monitor already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		m.sampler.Run(ctx)
	}()

	return m.reporter.Start(ctx)
}

// Close tears the pipeline down: trackers are drained, the sampler loop
// stops, and the reporter makes its final best-effort flush.
func (m *Monitor) Close() {
	m.mu.Lock()
	trackers := make([]*Tracker, 0, len(m.trackers))
	for _, tr := range m.trackers {
		trackers = append(trackers, tr)
	}
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	for _, tr := range trackers {
		tr.Close()
	}
	if cancel != nil {
		cancel()
		<-done
	}
	m.reporter.Close()
}
