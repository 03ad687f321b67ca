package adaptive

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Canonical defaults. The source application carried several competing
// values for the slow-render threshold; 16ms (one frame at 60fps) is the
// canonical choice here.
const (
	DefaultSlowRenderThreshold = 16 * time.Millisecond
	DefaultFPSFloor            = 30.0
	DefaultRecoveryStreak      = 3
	DefaultFlushInterval       = 30 * time.Second
	DefaultSamplingRate        = 1.0
)

// DefaultConfig returns a configuration with sensible defaults for a
// development session against a local collector.
func DefaultConfig() *Config {
	return &Config{
		Tracking: &TrackingConfig{
			SamplingRate:     DefaultSamplingRate,
			ThrottleInterval: 0,
			MaxBatchSize:     0, // unbatched
			BatchTimeout:     time.Second,
		},
		Thresholds: &ThresholdConfig{
			SlowRender:        DefaultSlowRenderThreshold,
			FPSFloor:          DefaultFPSFloor,
			RecoveryStreak:    DefaultRecoveryStreak,
			FPSSampleInterval: time.Second,
		},
		Reporting: &ReportingConfig{
			Enabled:                 true,
			Endpoint:                "http://localhost:9464/v1/reports",
			FlushInterval:           DefaultFlushInterval,
			FlushThreshold:          500,
			RequestTimeout:          10 * time.Second,
			ShutdownTimeout:         2 * time.Second,
			MaxPendingReports:       16,
			BreakerFailureThreshold: 5,
			BreakerOpenTimeout:      time.Minute,
		},
		TierOverride: OverrideAuto,
		Development:  false,
	}
}

// LoadFile reads a YAML configuration file, layering it over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveFile writes the configuration as YAML.
func (c *Config) SaveFile(path string) error {
	c.mu.RLock()
	data, err := yaml.Marshal(c)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
