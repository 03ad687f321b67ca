// Package monitoring implements the Pulse instrumentation core: device
// capability detection, render/interaction metric recording, tracking hooks,
// frame-rate sampling, the reporting sink, and the development-time
// validation layer.
package monitoring

import (
	"runtime"

	"github.com/aurawell/pulse/config/adaptive"
)

// DeviceHints carries the optional hardware hints used to classify a device.
// Zero values mean the hint is unavailable; negative values are treated the
// same way. Detection never fails: missing or malformed hints degrade to the
// default tier.
type DeviceHints struct {
	LogicalCores int     `json:"logical_cores,omitempty"`
	MemoryGB     float64 `json:"memory_gb,omitempty"`
	Connection   string  `json:"connection,omitempty"` // effective type, e.g. "4g"
}

// SystemHints returns whatever hints the Go runtime can provide about the
// local machine. Memory and connection type are left for the host to fill
// in, since the runtime has no portable view of either.
func SystemHints() DeviceHints {
	return DeviceHints{
		LogicalCores: runtime.NumCPU(),
	}
}

// DetectTier classifies the environment into a capability tier.
//
// Policy: with no usable hints the tier is medium. Fewer than 4 cores or
// less than 4GB of memory is low. At least 8 cores and 8GB is high.
// Everything else is medium. Deterministic and side-effect free.
func DetectTier(h DeviceHints) adaptive.Tier {
	cores := h.LogicalCores
	mem := h.MemoryGB
	if cores < 0 {
		cores = 0
	}
	if mem < 0 || mem != mem { // NaN guard
		mem = 0
	}

	if cores == 0 && mem == 0 {
		return adaptive.TierMedium
	}
	if (cores > 0 && cores < 4) || (mem > 0 && mem < 4) {
		return adaptive.TierLow
	}
	if cores >= 8 && mem >= 8 {
		return adaptive.TierHigh
	}
	return adaptive.TierMedium
}

// ResolveTier applies the configured manual override, falling back to
// detection when the override is "auto", empty, or unparseable.
func ResolveTier(override string, h DeviceHints) adaptive.Tier {
	if override != "" && override != adaptive.OverrideAuto {
		if tier, err := adaptive.ParseTier(override); err == nil {
			return tier
		}
	}
	return DetectTier(h)
}
