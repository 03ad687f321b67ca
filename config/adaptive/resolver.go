package adaptive

import (
	"log/slog"
	"math"
	"sync"
)

// Resolver derives the live feature-flag set from a static capability tier
// and a stream of frame-rate samples. A sample below the configured floor
// steps the effective tier down immediately; stepping back up requires a
// streak of consecutive good samples so the flags do not flap around the
// threshold.
type Resolver struct {
	mu sync.RWMutex

	baseTier Tier
	floor    float64
	streak   int

	degraded   bool
	goodStreak int
	current    FeatureFlags

	subscribers []chan FeatureFlags
	logger      *slog.Logger
}

// NewResolver creates a resolver for the given static tier. A nil config
// falls back to defaults; a nil logger falls back to slog.Default().
func NewResolver(tier Tier, cfg *Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	floor := DefaultFPSFloor
	streak := DefaultRecoveryStreak
	if cfg != nil && cfg.Thresholds != nil {
		// Non-positive values would disable downgrade or hysteresis
		// entirely, so they fall back to the defaults.
		if cfg.Thresholds.FPSFloor > 0 {
			floor = cfg.Thresholds.FPSFloor
		}
		if cfg.Thresholds.RecoveryStreak > 0 {
			streak = cfg.Thresholds.RecoveryStreak
		}
	}

	return &Resolver{
		baseTier: tier,
		floor:    floor,
		streak:   streak,
		current:  FlagsForTier(tier),
		logger:   logger,
	}
}

// Observe feeds a live FPS sample into the resolver. Malformed samples
// (non-positive, NaN, infinite) are ignored. The returned flag set is the
// one in effect after the sample is applied.
func (r *Resolver) Observe(fps float64) FeatureFlags {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return r.Current()
	}

	r.mu.Lock()

	changed := false
	switch {
	case fps < r.floor:
		r.goodStreak = 0
		if !r.degraded {
			r.degraded = true
			changed = true
		}
	default:
		r.goodStreak++
		if r.degraded && r.goodStreak >= r.streak {
			r.degraded = false
			changed = true
		}
	}

	if changed {
		r.current = FlagsForTier(r.effectiveTierLocked())
		r.logger.Info("adaptive flags changed",
			slog.String("base_tier", r.baseTier.String()),
			slog.String("effective_tier", r.effectiveTierLocked().String()),
			slog.Float64("fps", fps),
			slog.Bool("degraded", r.degraded),
		)
	}
	flags := r.current
	subs := r.subscribers
	r.mu.Unlock()

	if changed {
		for _, ch := range subs {
			select {
			case ch <- flags:
			default:
				// subscriber not keeping up, skip
			}
		}
	}

	return flags
}

// Current returns the flag set currently in effect.
func (r *Resolver) Current() FeatureFlags {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// EffectiveTier returns the tier the current flags are derived from.
func (r *Resolver) EffectiveTier() Tier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.effectiveTierLocked()
}

func (r *Resolver) effectiveTierLocked() Tier {
	if r.degraded {
		return r.baseTier.Downgraded()
	}
	return r.baseTier
}

// Subscribe returns a channel that receives the new flag set whenever it
// changes. The channel is buffered; slow consumers miss intermediate sets,
// never block the resolver.
func (r *Resolver) Subscribe() <-chan FeatureFlags {
	ch := make(chan FeatureFlags, 4)
	r.mu.Lock()
	r.subscribers = append(r.subscribers, ch)
	r.mu.Unlock()
	return ch
}
