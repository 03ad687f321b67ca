package adaptive

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Config is the top-level configuration for the instrumentation layer.
type Config struct {
	mu sync.RWMutex

	// Tracking controls the render/interaction tracking hooks
	Tracking *TrackingConfig `json:"tracking" yaml:"tracking"`

	// Thresholds controls slow-render classification and FPS-based downgrade
	Thresholds *ThresholdConfig `json:"thresholds" yaml:"thresholds"`

	// Reporting controls the metric reporting sink
	Reporting *ReportingConfig `json:"reporting" yaml:"reporting"`

	// TierOverride forces a capability tier instead of auto-detection.
	// One of "auto", "low", "medium", "high".
	TierOverride string `json:"tier_override" yaml:"tier_override"`

	// Development enables the validation layer and verbose diagnostics.
	// Everything it gates is compiled out of the hot path in production.
	Development bool `json:"development" yaml:"development"`
}

// TrackingConfig contains settings for the tracking hooks.
type TrackingConfig struct {
	// SamplingRate is the probability that a tracker instance participates
	// in collection for its lifetime. In [0,1].
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate"`

	// ThrottleInterval is the minimum time between forwarded samples for a
	// single tracked unit. Zero disables throttling.
	ThrottleInterval time.Duration `json:"throttle_interval" yaml:"throttle_interval"`

	// Batch settings. When MaxBatchSize > 1 a tracker queues samples locally
	// and forwards them when the queue fills or BatchTimeout elapses,
	// whichever comes first.
	MaxBatchSize int           `json:"max_batch_size" yaml:"max_batch_size"`
	BatchTimeout time.Duration `json:"batch_timeout" yaml:"batch_timeout"`
}

// ThresholdConfig contains classification thresholds.
type ThresholdConfig struct {
	// SlowRender is the duration above which a render counts as slow.
	SlowRender time.Duration `json:"slow_render" yaml:"slow_render"`

	// FPSFloor is the frame rate below which the effective tier is stepped
	// down regardless of the static tier.
	FPSFloor float64 `json:"fps_floor" yaml:"fps_floor"`

	// RecoveryStreak is the number of consecutive good FPS samples required
	// before stepping back up after a downgrade.
	RecoveryStreak int `json:"recovery_streak" yaml:"recovery_streak"`

	// FPSSampleInterval is how often the frame-rate sampler publishes.
	FPSSampleInterval time.Duration `json:"fps_sample_interval" yaml:"fps_sample_interval"`
}

// ReportingConfig contains settings for the reporting sink.
type ReportingConfig struct {
	// Enabled turns the sink on. When false nothing is ever sent.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Endpoint is the collector URL reports are POSTed to.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// FlushInterval is the period of the background flush ticker.
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`

	// FlushThreshold triggers an early flush once this many samples have
	// been recorded since the last flush. Zero disables the trigger.
	FlushThreshold int `json:"flush_threshold" yaml:"flush_threshold"`

	// RequestTimeout bounds a single delivery attempt.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// ShutdownTimeout bounds the best-effort final flush on Close.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	// MaxPendingReports caps how many failed reports are retained for
	// retry before the oldest is dropped.
	MaxPendingReports int `json:"max_pending_reports" yaml:"max_pending_reports"`

	// Circuit breaker settings for the delivery path.
	BreakerFailureThreshold uint32        `json:"breaker_failure_threshold" yaml:"breaker_failure_threshold"`
	BreakerOpenTimeout      time.Duration `json:"breaker_open_timeout" yaml:"breaker_open_timeout"`
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error

	if c.Tracking != nil {
		if err := c.Tracking.validate(); err != nil {
			errs = append(errs, fmt.Errorf("tracking config: %w", err))
		}
	}
	if c.Thresholds != nil {
		if err := c.Thresholds.validate(); err != nil {
			errs = append(errs, fmt.Errorf("threshold config: %w", err))
		}
	}
	if c.Reporting != nil {
		if err := c.Reporting.validate(); err != nil {
			errs = append(errs, fmt.Errorf("reporting config: %w", err))
		}
	}

	switch c.TierOverride {
	case "", OverrideAuto, OverrideLow, OverrideMedium, OverrideHigh:
	default:
		errs = append(errs, fmt.Errorf("tier override must be one of auto, low, medium, high; got %q", c.TierOverride))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

func (tc *TrackingConfig) validate() error {
	if tc.SamplingRate < 0 || tc.SamplingRate > 1 {
		return errors.New("sampling rate must be between 0 and 1")
	}
	if tc.ThrottleInterval < 0 {
		return errors.New("throttle interval cannot be negative")
	}
	if tc.MaxBatchSize < 0 || tc.MaxBatchSize > 10000 {
		return errors.New("max batch size must be between 0 and 10000")
	}
	if tc.MaxBatchSize > 1 && tc.BatchTimeout <= 0 {
		return errors.New("batch timeout must be positive when batching is enabled")
	}
	return nil
}

func (tc *ThresholdConfig) validate() error {
	if tc.SlowRender <= 0 {
		return errors.New("slow render threshold must be positive")
	}
	if tc.FPSFloor < 0 || tc.FPSFloor > 240 {
		return errors.New("fps floor must be between 0 and 240")
	}
	if tc.RecoveryStreak < 1 {
		return errors.New("recovery streak must be at least 1")
	}
	if tc.FPSSampleInterval < 100*time.Millisecond {
		return errors.New("fps sample interval must be at least 100ms")
	}
	return nil
}

func (rc *ReportingConfig) validate() error {
	if !rc.Enabled {
		return nil
	}
	if rc.Endpoint == "" {
		return errors.New("endpoint cannot be empty when reporting is enabled")
	}
	if rc.FlushInterval < time.Second {
		return errors.New("flush interval must be at least 1s")
	}
	if rc.FlushThreshold < 0 {
		return errors.New("flush threshold cannot be negative")
	}
	if rc.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if rc.MaxPendingReports < 1 {
		return errors.New("max pending reports must be at least 1")
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		TierOverride: c.TierOverride,
		Development:  c.Development,
	}

	if c.Tracking != nil {
		tracking := *c.Tracking
		clone.Tracking = &tracking
	}
	if c.Thresholds != nil {
		thresholds := *c.Thresholds
		clone.Thresholds = &thresholds
	}
	if c.Reporting != nil {
		reporting := *c.Reporting
		clone.Reporting = &reporting
	}

	return clone
}

// Update safely replaces sections of the configuration with the non-nil
// sections of newConfig.
func (c *Config) Update(newConfig *Config) error {
	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if newConfig.Tracking != nil {
		c.Tracking = newConfig.Tracking
	}
	if newConfig.Thresholds != nil {
		c.Thresholds = newConfig.Thresholds
	}
	if newConfig.Reporting != nil {
		c.Reporting = newConfig.Reporting
	}
	if newConfig.TierOverride != "" {
		c.TierOverride = newConfig.TierOverride
	}
	c.Development = newConfig.Development

	return nil
}
