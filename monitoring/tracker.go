package monitoring

import (
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aurawell/pulse/config/adaptive"
)

// Tracker instruments one named UI unit. Whether the instance participates
// in collection at all is decided once, at construction, by the sampling
// rate; the decision is fixed for the tracker's lifetime. Participating
// trackers time renders and interactions and forward the durations to the
// Recorder, subject to the configured throttle and batching.
//
// A tracker never lets an instrumentation failure reach the host: panics in
// the forwarding path are recovered and dropped.
type Tracker struct {
	name    string
	rec     *Recorder
	sampled bool
	logger  *slog.Logger

	throttle time.Duration
	mu       sync.Mutex
	lastSent time.Time

	// Internal bookkeeping: every completed render is counted here even
	// when throttling suppresses the forwarded sample.
	renders int64

	// Batching. Nil queue means samples are forwarded directly.
	maxBatch     int
	batchTimeout time.Duration
	queue        []sample
	kick         chan struct{}
	stop         chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
}

type sample struct {
	interaction string // empty for renders
	d           time.Duration
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the logger used for diagnostics.
func WithTrackerLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker creates a tracker for the named unit. A nil config falls back
// to defaults (always sampled, no throttle, unbatched).
func NewTracker(rec *Recorder, name string, cfg *adaptive.Config, options ...TrackerOption) *Tracker {
	rate := adaptive.DefaultSamplingRate
	var throttle time.Duration
	maxBatch := 0
	batchTimeout := time.Second
	if cfg != nil && cfg.Tracking != nil {
		rate = cfg.Tracking.SamplingRate
		throttle = cfg.Tracking.ThrottleInterval
		maxBatch = cfg.Tracking.MaxBatchSize
		if cfg.Tracking.BatchTimeout > 0 {
			batchTimeout = cfg.Tracking.BatchTimeout
		}
	}

	t := &Tracker{
		name:         name,
		rec:          rec,
		sampled:      rand.Float64() < rate,
		logger:       slog.Default(),
		throttle:     throttle,
		maxBatch:     maxBatch,
		batchTimeout: batchTimeout,
	}

	for _, option := range options {
		option(t)
	}

	if t.sampled && t.maxBatch > 1 {
		t.queue = make([]sample, 0, t.maxBatch)
		t.kick = make(chan struct{}, 1)
		t.stop = make(chan struct{})
		t.done = make(chan struct{})
		go t.batchLoop()
	}

	return t
}

// Sampled reports whether this instance participates in collection.
func (t *Tracker) Sampled() bool {
	return t.sampled
}

// Renders returns the number of completed renders observed by this tracker,
// including renders whose samples were suppressed by throttling.
func (t *Tracker) Renders() int64 {
	return atomic.LoadInt64(&t.renders)
}

// RenderSpan times one render of the tracked unit.
type RenderSpan struct {
	t     *Tracker
	start time.Time
	ended bool
}

// StartRender begins timing a render. Call End on the returned span when the
// render has been committed.
func (t *Tracker) StartRender() *RenderSpan {
	return &RenderSpan{t: t, start: time.Now()}
}

// End completes the span and forwards the measured duration.
func (s *RenderSpan) End() {
	if s.ended {
		return
	}
	s.ended = true
	s.t.finishRender(time.Since(s.start))
}

// InteractionSpan times one user interaction on the tracked unit.
type InteractionSpan struct {
	t           *Tracker
	interaction string
	start       time.Time
	ended       bool
}

// StartInteraction begins timing a named interaction.
func (t *Tracker) StartInteraction(interaction string) *InteractionSpan {
	return &InteractionSpan{t: t, interaction: interaction, start: time.Now()}
}

// End completes the span and forwards the measured response time.
func (s *InteractionSpan) End() {
	if s.ended {
		return
	}
	s.ended = true
	s.t.finishInteraction(s.interaction, time.Since(s.start))
}

func (t *Tracker) finishRender(d time.Duration) {
	defer t.recovered()

	atomic.AddInt64(&t.renders, 1)
	if !t.sampled {
		return
	}
	if !t.passThrottle() {
		return
	}
	t.deliver(sample{d: d})
}

func (t *Tracker) finishInteraction(interaction string, d time.Duration) {
	defer t.recovered()

	if !t.sampled {
		return
	}
	t.deliver(sample{interaction: interaction, d: d})
}

// passThrottle reports whether enough time has passed since the last
// forwarded render sample. Throttling drops the reporting side effect only;
// the render itself is still counted in the tracker's bookkeeping.
func (t *Tracker) passThrottle() bool {
	if t.throttle <= 0 {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if !t.lastSent.IsZero() && now.Sub(t.lastSent) < t.throttle {
		return false
	}
	t.lastSent = now
	return true
}

func (t *Tracker) deliver(s sample) {
	if t.queue == nil {
		t.forward(s)
		return
	}

	t.mu.Lock()
	t.queue = append(t.queue, s)
	full := len(t.queue) >= t.maxBatch
	t.mu.Unlock()

	if full {
		select {
		case t.kick <- struct{}{}:
		default:
		}
	}
}

func (t *Tracker) forward(s sample) {
	if s.interaction == "" {
		t.rec.RecordRender(t.name, s.d)
	} else {
		t.rec.RecordInteraction(t.name, s.interaction, s.d)
	}
}

// batchLoop drains the local queue when it fills or when the batch timeout
// elapses, whichever comes first.
func (t *Tracker) batchLoop() {
	defer close(t.done)

	ticker := time.NewTicker(t.batchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			t.flushQueue()
			return
		case <-t.kick:
			t.flushQueue()
		case <-ticker.C:
			t.flushQueue()
		}
	}
}

func (t *Tracker) flushQueue() {
	defer t.recovered()

	t.mu.Lock()
	batch := t.queue
	t.queue = make([]sample, 0, t.maxBatch)
	t.mu.Unlock()

	for _, s := range batch {
		t.forward(s)
	}
}

// Close drains any queued samples and stops the batch goroutine. Trackers
// owning a batch queue must be closed when their unit unmounts so no timer
// callback outlives the unit.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		if t.stop != nil {
			close(t.stop)
			<-t.done
		}
	})
}

func (t *Tracker) recovered() {
	if r := recover(); r != nil {
		t.logger.Error("tracking hook panic suppressed",
			slog.String("component", t.name),
			slog.Any("panic", r),
		)
	}
}
