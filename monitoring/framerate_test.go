package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/aurawell/pulse/config/adaptive"
)

func TestFrameRateSamplerPublishes(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := adaptive.DefaultConfig()
	cfg.Thresholds.FPSSampleInterval = 100 * time.Millisecond
	fs := NewFrameRateSampler(cfg)

	samples := make(chan float64, 16)
	fs.OnSample(func(fps float64) {
		select {
		case samples <- fps:
		default:
		}
	})

	for i := 0; i < 6; i++ {
		fs.Tick()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		fs.Run(ctx)
	}()

	// six frames over a 100ms interval
	select {
	case fps := <-samples:
		assert.InDelta(t, 60.0, fps, 0.01)
	case <-time.After(time.Second):
		t.Fatal("no FPS sample published")
	}

	cancel()
	<-done
}

func TestFrameRateSamplerNotifiesCallbacks(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := adaptive.DefaultConfig()
	cfg.Thresholds.FPSSampleInterval = 100 * time.Millisecond
	fs := NewFrameRateSampler(cfg)

	samples := make(chan float64, 16)
	fs.OnSample(func(fps float64) {
		select {
		case samples <- fps:
		default:
		}
	})

	fs.Tick()
	fs.Tick()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		fs.Run(ctx)
	}()

	select {
	case fps := <-samples:
		assert.InDelta(t, 20.0, fps, 0.01)
	case <-time.After(time.Second):
		t.Fatal("no FPS sample published")
	}

	cancel()
	<-done
}

func TestFrameRateSamplerFeedsResolver(t *testing.T) {
	r := adaptive.NewResolver(adaptive.TierHigh, nil, nil)

	fs := NewFrameRateSampler(nil)
	fs.OnSample(func(fps float64) { r.Observe(fps) })

	r.Observe(10)
	assert.Equal(t, adaptive.TierMedium, r.EffectiveTier())
	assert.Zero(t, fs.FPS())
}

func TestFrameRateSamplerZeroBeforeFirstInterval(t *testing.T) {
	fs := NewFrameRateSampler(nil)
	fs.Tick()
	assert.Zero(t, fs.FPS())
}
