package monitoring

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aurawell/pulse/config/adaptive"
)

// FrameRateSampler derives a live frames-per-second figure from frame ticks
// supplied by the host render loop. Subscribed callbacks receive one sample
// per interval; the usual consumer feeds each sample into
// adaptive.Resolver.Observe.
type FrameRateSampler struct {
	interval time.Duration
	frames   int64 // atomic

	mu        sync.RWMutex
	lastFPS   float64
	callbacks []func(float64)
}

// NewFrameRateSampler creates a sampler publishing at the configured
// interval. A nil config falls back to one sample per second.
func NewFrameRateSampler(cfg *adaptive.Config) *FrameRateSampler {
	interval := time.Second
	if cfg != nil && cfg.Thresholds != nil && cfg.Thresholds.FPSSampleInterval > 0 {
		interval = cfg.Thresholds.FPSSampleInterval
	}
	return &FrameRateSampler{interval: interval}
}

// Tick records one completed frame. Safe to call from any goroutine.
func (fs *FrameRateSampler) Tick() {
	atomic.AddInt64(&fs.frames, 1)
}

// FPS returns the most recently published frame rate, zero before the first
// interval completes.
func (fs *FrameRateSampler) FPS() float64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.lastFPS
}

// OnSample registers a callback receiving each published FPS figure.
// Callbacks run on the sampler goroutine and must return promptly.
func (fs *FrameRateSampler) OnSample(fn func(float64)) {
	fs.mu.Lock()
	fs.callbacks = append(fs.callbacks, fn)
	fs.mu.Unlock()
}

// Run publishes samples until the context is cancelled. The loop owns no
// other resources; cancelling the context is the complete teardown.
func (fs *FrameRateSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(fs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fs.publish()
		}
	}
}

func (fs *FrameRateSampler) publish() {
	frames := atomic.SwapInt64(&fs.frames, 0)
	fps := float64(frames) / fs.interval.Seconds()
	if math.IsNaN(fps) || math.IsInf(fps, 0) {
		return
	}

	fs.mu.Lock()
	fs.lastFPS = fps
	callbacks := fs.callbacks
	fs.mu.Unlock()

	for _, fn := range callbacks {
		fn(fps)
	}
}
