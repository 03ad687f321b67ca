package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aurawell/pulse/config/adaptive"
)

func monitorConfig() *adaptive.Config {
	cfg := adaptive.DefaultConfig()
	cfg.Reporting.Enabled = false
	return cfg
}

func TestMonitorAssemblesPipeline(t *testing.T) {
	m, err := NewMonitor(monitorConfig(), DeviceHints{LogicalCores: 8, MemoryGB: 8})
	require.NoError(t, err)
	defer m.Close()

	assert.NotEmpty(t, m.Session().ID)
	assert.Equal(t, "high", m.Session().Device.Tier)
	assert.Equal(t, adaptive.FlagsForTier(adaptive.TierHigh), m.Flags())
}

func TestMonitorHonorsTierOverride(t *testing.T) {
	cfg := monitorConfig()
	cfg.TierOverride = adaptive.OverrideLow

	m, err := NewMonitor(cfg, DeviceHints{LogicalCores: 16, MemoryGB: 32})
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, "low", m.Session().Device.Tier)
	assert.Equal(t, adaptive.FlagsForTier(adaptive.TierLow), m.Flags())
}

func TestMonitorRejectsInvalidConfig(t *testing.T) {
	cfg := monitorConfig()
	cfg.Tracking.SamplingRate = 7

	_, err := NewMonitor(cfg, DeviceHints{})
	require.Error(t, err)
}

func TestMonitorSharesTrackersByName(t *testing.T) {
	m, err := NewMonitor(monitorConfig(), DeviceHints{})
	require.NoError(t, err)
	defer m.Close()

	a := m.Tracker("Widget")
	b := m.Tracker("Widget")
	assert.Same(t, a, b)

	a.StartRender().End()
	metric, ok := m.Recorder().ComponentMetrics("Widget")
	require.True(t, ok)
	assert.Equal(t, int64(1), metric.RenderCount)
}

func TestMonitorStartAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := monitorConfig()
	cfg.Thresholds.FPSSampleInterval = 100 * time.Millisecond

	m, err := NewMonitor(cfg, DeviceHints{LogicalCores: 8, MemoryGB: 8})
	require.NoError(t, err)

	require.NoError(t, m.Start(context.Background()))
	require.Error(t, m.Start(context.Background()))

	flagCh := m.FlagChanges()
	for i := 0; i < 2; i++ {
		m.Frame() // ~20fps, below the floor
	}

	select {
	case flags := <-flagCh:
		assert.Equal(t, adaptive.FlagsForTier(adaptive.TierMedium), flags)
	case <-time.After(2 * time.Second):
		t.Fatal("no flag downgrade observed")
	}

	m.Close()
}
