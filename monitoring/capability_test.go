package monitoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aurawell/pulse/config/adaptive"
)

func TestDetectTier(t *testing.T) {
	tests := []struct {
		name  string
		hints DeviceHints
		want  adaptive.Tier
	}{
		{"no hints", DeviceHints{}, adaptive.TierMedium},
		{"weak device", DeviceHints{LogicalCores: 2, MemoryGB: 2}, adaptive.TierLow},
		{"strong device", DeviceHints{LogicalCores: 8, MemoryGB: 8}, adaptive.TierHigh},
		{"mid device", DeviceHints{LogicalCores: 4, MemoryGB: 4}, adaptive.TierMedium},
		{"few cores alone", DeviceHints{LogicalCores: 2}, adaptive.TierLow},
		{"low memory alone", DeviceHints{MemoryGB: 2}, adaptive.TierLow},
		{"many cores but unknown memory", DeviceHints{LogicalCores: 16}, adaptive.TierMedium},
		{"strong cores weak memory", DeviceHints{LogicalCores: 12, MemoryGB: 2}, adaptive.TierLow},
		{"negative cores", DeviceHints{LogicalCores: -1}, adaptive.TierMedium},
		{"nan memory", DeviceHints{MemoryGB: math.NaN()}, adaptive.TierMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTier(tt.hints))
		})
	}
}

func TestDetectTierIsDeterministic(t *testing.T) {
	hints := DeviceHints{LogicalCores: 6, MemoryGB: 6}
	first := DetectTier(hints)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DetectTier(hints))
	}
}

func TestResolveTier(t *testing.T) {
	strong := DeviceHints{LogicalCores: 8, MemoryGB: 8}

	assert.Equal(t, adaptive.TierLow, ResolveTier("low", strong))
	assert.Equal(t, adaptive.TierHigh, ResolveTier("auto", strong))
	assert.Equal(t, adaptive.TierHigh, ResolveTier("", strong))
	// unparseable overrides fall back to detection
	assert.Equal(t, adaptive.TierHigh, ResolveTier("turbo", strong))
}

func TestSystemHints(t *testing.T) {
	hints := SystemHints()
	assert.Greater(t, hints.LogicalCores, 0)
	assert.Zero(t, hints.MemoryGB)
}
