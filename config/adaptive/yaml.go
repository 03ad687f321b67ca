package adaptive

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// YAML handling for the config sections. Durations are written and read as
// strings in time.ParseDuration form ("16ms", "30s"). Fields absent from the
// document keep whatever value the target already holds, so a file can be
// layered over the defaults.

func setDuration(dst *time.Duration, src *string, field string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	*dst = d
	return nil
}

type rawTracking struct {
	SamplingRate     *float64 `yaml:"sampling_rate"`
	ThrottleInterval *string  `yaml:"throttle_interval"`
	MaxBatchSize     *int     `yaml:"max_batch_size"`
	BatchTimeout     *string  `yaml:"batch_timeout"`
}

func (tc *TrackingConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw rawTracking
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.SamplingRate != nil {
		tc.SamplingRate = *raw.SamplingRate
	}
	if raw.MaxBatchSize != nil {
		tc.MaxBatchSize = *raw.MaxBatchSize
	}
	if err := setDuration(&tc.ThrottleInterval, raw.ThrottleInterval, "throttle_interval"); err != nil {
		return err
	}
	return setDuration(&tc.BatchTimeout, raw.BatchTimeout, "batch_timeout")
}

func (tc TrackingConfig) MarshalYAML() (interface{}, error) {
	return map[string]interface{}{
		"sampling_rate":     tc.SamplingRate,
		"throttle_interval": tc.ThrottleInterval.String(),
		"max_batch_size":    tc.MaxBatchSize,
		"batch_timeout":     tc.BatchTimeout.String(),
	}, nil
}

type rawThresholds struct {
	SlowRender        *string  `yaml:"slow_render"`
	FPSFloor          *float64 `yaml:"fps_floor"`
	RecoveryStreak    *int     `yaml:"recovery_streak"`
	FPSSampleInterval *string  `yaml:"fps_sample_interval"`
}

func (tc *ThresholdConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw rawThresholds
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.FPSFloor != nil {
		tc.FPSFloor = *raw.FPSFloor
	}
	if raw.RecoveryStreak != nil {
		tc.RecoveryStreak = *raw.RecoveryStreak
	}
	if err := setDuration(&tc.SlowRender, raw.SlowRender, "slow_render"); err != nil {
		return err
	}
	return setDuration(&tc.FPSSampleInterval, raw.FPSSampleInterval, "fps_sample_interval")
}

func (tc ThresholdConfig) MarshalYAML() (interface{}, error) {
	return map[string]interface{}{
		"slow_render":         tc.SlowRender.String(),
		"fps_floor":           tc.FPSFloor,
		"recovery_streak":     tc.RecoveryStreak,
		"fps_sample_interval": tc.FPSSampleInterval.String(),
	}, nil
}

type rawReporting struct {
	Enabled                 *bool   `yaml:"enabled"`
	Endpoint                *string `yaml:"endpoint"`
	FlushInterval           *string `yaml:"flush_interval"`
	FlushThreshold          *int    `yaml:"flush_threshold"`
	RequestTimeout          *string `yaml:"request_timeout"`
	ShutdownTimeout         *string `yaml:"shutdown_timeout"`
	MaxPendingReports       *int    `yaml:"max_pending_reports"`
	BreakerFailureThreshold *uint32 `yaml:"breaker_failure_threshold"`
	BreakerOpenTimeout      *string `yaml:"breaker_open_timeout"`
}

func (rc *ReportingConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw rawReporting
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Enabled != nil {
		rc.Enabled = *raw.Enabled
	}
	if raw.Endpoint != nil {
		rc.Endpoint = *raw.Endpoint
	}
	if raw.FlushThreshold != nil {
		rc.FlushThreshold = *raw.FlushThreshold
	}
	if raw.MaxPendingReports != nil {
		rc.MaxPendingReports = *raw.MaxPendingReports
	}
	if raw.BreakerFailureThreshold != nil {
		rc.BreakerFailureThreshold = *raw.BreakerFailureThreshold
	}
	if err := setDuration(&rc.FlushInterval, raw.FlushInterval, "flush_interval"); err != nil {
		return err
	}
	if err := setDuration(&rc.RequestTimeout, raw.RequestTimeout, "request_timeout"); err != nil {
		return err
	}
	if err := setDuration(&rc.ShutdownTimeout, raw.ShutdownTimeout, "shutdown_timeout"); err != nil {
		return err
	}
	return setDuration(&rc.BreakerOpenTimeout, raw.BreakerOpenTimeout, "breaker_open_timeout")
}

func (rc ReportingConfig) MarshalYAML() (interface{}, error) {
	return map[string]interface{}{
		"enabled":                   rc.Enabled,
		"endpoint":                  rc.Endpoint,
		"flush_interval":            rc.FlushInterval.String(),
		"flush_threshold":           rc.FlushThreshold,
		"request_timeout":           rc.RequestTimeout.String(),
		"shutdown_timeout":          rc.ShutdownTimeout.String(),
		"max_pending_reports":       rc.MaxPendingReports,
		"breaker_failure_threshold": rc.BreakerFailureThreshold,
		"breaker_open_timeout":      rc.BreakerOpenTimeout.String(),
	}, nil
}
