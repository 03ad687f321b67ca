package monitoring

import (
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/aurawell/pulse/config/adaptive"
)

// DeviceInfo is the minimal device description attached to every report.
type DeviceInfo struct {
	Tier         string  `json:"tier"`
	LogicalCores int     `json:"logical_cores,omitempty"`
	MemoryGB     float64 `json:"memory_gb,omitempty"`
	Connection   string  `json:"connection,omitempty"`
	OS           string  `json:"os"`
	Arch         string  `json:"arch"`
	GoVersion    string  `json:"go_version"`
}

// Session identifies one instrumentation session. The ID is minted once per
// process and stays stable across flushes, so the collector can correlate
// at-least-once deliveries.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	Device    DeviceInfo `json:"device"`
}

// NewSession mints a session for the given tier and hints.
func NewSession(tier adaptive.Tier, hints DeviceHints) Session {
	return Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Device: DeviceInfo{
			Tier:         tier.String(),
			LogicalCores: hints.LogicalCores,
			MemoryGB:     hints.MemoryGB,
			Connection:   hints.Connection,
			OS:           runtime.GOOS,
			Arch:         runtime.GOARCH,
			GoVersion:    runtime.Version(),
		},
	}
}
