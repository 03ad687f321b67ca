package monitoring

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aurawell/pulse/config/adaptive"
)

// ComponentMetric accumulates render timings for one named UI unit. A metric
// is created on the first observed render and lives for the session unless
// explicitly reset.
type ComponentMetric struct {
	Name              string        `json:"name"`
	RenderCount       int64         `json:"render_count"`
	TotalRenderTime   time.Duration `json:"total_render_time"`
	AverageRenderTime time.Duration `json:"average_render_time"`
	LastRenderTime    time.Duration `json:"last_render_time"`
	SlowRenderCount   int64         `json:"slow_render_count"`
}

// InteractionMetric accumulates response timings for one (component,
// interaction) pair.
type InteractionMetric struct {
	Component           string        `json:"component"`
	Interaction         string        `json:"interaction"`
	Count               int64         `json:"count"`
	TotalResponseTime   time.Duration `json:"total_response_time"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	LastResponseTime    time.Duration `json:"last_response_time"`
}

type interactionKey struct {
	component   string
	interaction string
}

// Recorder is the session-wide metric store. It is an explicitly owned,
// injected instance rather than an ambient singleton, so tests and hosts can
// run isolated recorders side by side.
type Recorder struct {
	mu           sync.RWMutex
	components   map[string]*ComponentMetric
	interactions map[interactionKey]*InteractionMetric

	slowThreshold time.Duration
	logger        *slog.Logger
	sampleHook    func()

	registry            *prometheus.Registry
	renderDuration      *prometheus.HistogramVec
	interactionDuration *prometheus.HistogramVec
	slowRenders         *prometheus.CounterVec
	droppedSamples      prometheus.Counter
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger used for diagnostics.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithSampleHook registers a callback invoked after every accepted sample.
// The reporting sink uses it to implement threshold-triggered flushes. The
// hook runs outside the recorder's lock and must not block.
func WithSampleHook(hook func()) RecorderOption {
	return func(r *Recorder) {
		r.sampleHook = hook
	}
}

// NewRecorder creates a metric recorder. A nil config falls back to
// defaults.
func NewRecorder(cfg *adaptive.Config, options ...RecorderOption) *Recorder {
	threshold := adaptive.DefaultSlowRenderThreshold
	if cfg != nil && cfg.Thresholds != nil && cfg.Thresholds.SlowRender > 0 {
		threshold = cfg.Thresholds.SlowRender
	}

	registry := prometheus.NewRegistry()

	r := &Recorder{
		components:    make(map[string]*ComponentMetric),
		interactions:  make(map[interactionKey]*InteractionMetric),
		slowThreshold: threshold,
		logger:        slog.Default(),
		registry:      registry,
	}

	for _, option := range options {
		option(r)
	}

	r.renderDuration = promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pulse",
		Subsystem: "render",
		Name:      "duration_seconds",
		Help:      "Render duration of tracked components in seconds",
		Buckets:   []float64{0.001, 0.004, 0.008, 0.016, 0.033, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"component"})

	r.interactionDuration = promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pulse",
		Subsystem: "interaction",
		Name:      "duration_seconds",
		Help:      "Response time of tracked interactions in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"component", "interaction"})

	r.slowRenders = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "render",
		Name:      "slow_total",
		Help:      "Renders exceeding the slow-render threshold",
	}, []string{"component"})

	r.droppedSamples = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Name:      "samples_dropped_total",
		Help:      "Samples rejected as malformed",
	})

	return r
}

// Registry returns the recorder's Prometheus registry for external exposure.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// SlowRenderThreshold returns the configured slow-render cutoff.
func (r *Recorder) SlowRenderThreshold() time.Duration {
	return r.slowThreshold
}

// RecordRender records one completed render of the named component.
// Negative durations are dropped silently so a bad sample can never poison
// the running average.
func (r *Recorder) RecordRender(name string, d time.Duration) {
	if d < 0 {
		r.droppedSamples.Inc()
		return
	}

	r.mu.Lock()
	m, ok := r.components[name]
	if !ok {
		m = &ComponentMetric{Name: name}
		r.components[name] = m
	}

	m.RenderCount++
	m.TotalRenderTime += d
	// Re-derived every call; the average never drifts from total/count.
	m.AverageRenderTime = m.TotalRenderTime / time.Duration(m.RenderCount)
	m.LastRenderTime = d
	slow := d > r.slowThreshold
	if slow {
		m.SlowRenderCount++
	}
	r.mu.Unlock()

	r.renderDuration.WithLabelValues(name).Observe(d.Seconds())
	if slow {
		r.slowRenders.WithLabelValues(name).Inc()
	}

	if r.sampleHook != nil {
		r.sampleHook()
	}
}

// RecordRenderMillis records a render duration expressed in fractional
// milliseconds, the unit browser-side timers report. NaN, infinite and
// negative values are dropped silently.
func (r *Recorder) RecordRenderMillis(name string, ms float64) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		r.droppedSamples.Inc()
		return
	}
	r.RecordRender(name, time.Duration(ms*float64(time.Millisecond)))
}

// RecordInteraction records one completed interaction on a component.
func (r *Recorder) RecordInteraction(component, interaction string, d time.Duration) {
	if d < 0 {
		r.droppedSamples.Inc()
		return
	}

	key := interactionKey{component, interaction}

	r.mu.Lock()
	m, ok := r.interactions[key]
	if !ok {
		m = &InteractionMetric{Component: component, Interaction: interaction}
		r.interactions[key] = m
	}

	m.Count++
	m.TotalResponseTime += d
	m.AverageResponseTime = m.TotalResponseTime / time.Duration(m.Count)
	m.LastResponseTime = d
	r.mu.Unlock()

	r.interactionDuration.WithLabelValues(component, interaction).Observe(d.Seconds())

	if r.sampleHook != nil {
		r.sampleHook()
	}
}

// ComponentMetrics returns a copy of the metric for one component, or false
// if the component has never rendered.
func (r *Recorder) ComponentMetrics(name string) (ComponentMetric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.components[name]
	if !ok {
		return ComponentMetric{}, false
	}
	return *m, true
}

// AllComponentMetrics returns copies of every component metric, sorted by
// name for stable output.
func (r *Recorder) AllComponentMetrics() []ComponentMetric {
	r.mu.RLock()
	out := make([]ComponentMetric, 0, len(r.components))
	for _, m := range r.components {
		out = append(out, *m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// InteractionMetrics returns a copy of the metric for one (component,
// interaction) pair.
func (r *Recorder) InteractionMetrics(component, interaction string) (InteractionMetric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.interactions[interactionKey{component, interaction}]
	if !ok {
		return InteractionMetric{}, false
	}
	return *m, true
}

// AllInteractionMetrics returns copies of every interaction metric.
func (r *Recorder) AllInteractionMetrics() []InteractionMetric {
	r.mu.RLock()
	out := make([]InteractionMetric, 0, len(r.interactions))
	for _, m := range r.interactions {
		out = append(out, *m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Component != out[j].Component {
			return out[i].Component < out[j].Component
		}
		return out[i].Interaction < out[j].Interaction
	})
	return out
}

// Reset clears the metric for one component, including its interactions.
func (r *Recorder) Reset(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.components, name)
	for key := range r.interactions {
		if key.component == name {
			delete(r.interactions, key)
		}
	}
}

// ResetAll clears every metric.
func (r *Recorder) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.components = make(map[string]*ComponentMetric)
	r.interactions = make(map[interactionKey]*InteractionMetric)
}
