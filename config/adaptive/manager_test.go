package adaptive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerDefaults(t *testing.T) {
	m, err := NewManager(nil, nil)
	require.NoError(t, err)
	defer m.Close()

	cfg := m.Get()
	assert.Equal(t, DefaultSlowRenderThreshold, cfg.Thresholds.SlowRender)
}

func TestManagerRejectsInvalidInitialConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracking.SamplingRate = -1

	_, err := NewManager(cfg, nil)
	require.Error(t, err)
}

func TestManagerGetReturnsCopy(t *testing.T) {
	m, err := NewManager(nil, nil)
	require.NoError(t, err)
	defer m.Close()

	got := m.Get()
	got.Thresholds.SlowRender = time.Hour

	assert.Equal(t, DefaultSlowRenderThreshold, m.Get().Thresholds.SlowRender)
}

func TestManagerUpdateNotifiesSubscribers(t *testing.T) {
	m, err := NewManager(nil, nil)
	require.NoError(t, err)
	defer m.Close()

	events := m.Subscribe()

	next := DefaultConfig()
	next.TierOverride = OverrideLow
	require.NoError(t, m.Update(next, "manual"))

	select {
	case ev := <-events:
		assert.True(t, ev.Success)
		assert.Equal(t, "update", ev.Type)
		assert.Equal(t, "manual", ev.Source)
	case <-time.After(time.Second):
		t.Fatal("no config change event received")
	}

	assert.Equal(t, OverrideLow, m.Get().TierOverride)
}

func TestManagerUpdateKeepsCurrentOnFailure(t *testing.T) {
	m, err := NewManager(nil, nil)
	require.NoError(t, err)
	defer m.Close()

	events := m.Subscribe()

	bad := DefaultConfig()
	bad.Thresholds.RecoveryStreak = 0
	require.Error(t, m.Update(bad, "manual"))

	select {
	case ev := <-events:
		assert.False(t, ev.Success)
		assert.Equal(t, "validate", ev.Type)
		assert.NotEmpty(t, ev.Error)
	case <-time.After(time.Second):
		t.Fatal("no validation failure event received")
	}

	assert.Equal(t, DefaultRecoveryStreak, m.Get().Thresholds.RecoveryStreak)
}
