// Package adaptive provides configuration management and adaptive quality
// resolution for the Pulse instrumentation layer.
//
// The package has two responsibilities. First, it owns the instrumentation
// configuration: sampling rates, slow-render thresholds, batching and
// reporting parameters, all with validation, cloning and hot updates through
// a Manager that notifies subscribers of changes. Second, it derives the
// adaptive feature flags (particles, animations, blur, shadows, complexity)
// that the host UI consumes to scale visual quality to the device.
//
// # Capability tiers
//
// Devices are classified into three tiers (low, medium, high). The static
// tier comes from hardware hints at startup, or from a manual override in
// the configuration. Each tier maps to a fixed feature-flag set:
//
//	low:    everything off, complexity 0.3
//	medium: animations and shadows on, complexity 0.7
//	high:   everything on, complexity 1.0
//
// # Live downgrade with hysteresis
//
// A Resolver combines the static tier with live frame-rate samples. When the
// observed FPS drops below the configured floor the effective tier is
// immediately stepped down by one; stepping back up requires a configurable
// streak of consecutive good samples, so the flag set does not flap around
// the threshold.
//
// # Usage
//
//	cfg := adaptive.DefaultConfig()
//	r := adaptive.NewResolver(adaptive.TierHigh, cfg, nil)
//	r.Observe(22) // below floor: flags drop to the medium set
//	flags := r.Current()
//
// All types in this package are safe for concurrent use.
package adaptive
