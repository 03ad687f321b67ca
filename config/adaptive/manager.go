package adaptive

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ConfigChangeEvent describes a configuration update delivered to
// subscribers.
type ConfigChangeEvent struct {
	Type      string    `json:"type"`   // "update" or "validate"
	Source    string    `json:"source"` // "manual", "file", ...
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Manager holds the live configuration and coordinates validated hot
// updates. Components read through Get; updates are atomic and announced to
// subscribers.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	logger *slog.Logger

	subMu       sync.RWMutex
	subscribers []chan *ConfigChangeEvent
}

// NewManager creates a configuration manager. A nil config starts from
// DefaultConfig.
func NewManager(config *Config, logger *slog.Logger) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		config: config,
		logger: logger,
	}, nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Clone()
}

// Update validates and applies a new configuration, then notifies
// subscribers. On validation failure the current configuration is kept and
// a failure event is published.
func (m *Manager) Update(newConfig *Config, source string) error {
	if err := newConfig.Validate(); err != nil {
		m.notify(&ConfigChangeEvent{
			Type:      "validate",
			Source:    source,
			Timestamp: time.Now(),
			Success:   false,
			Error:     err.Error(),
		})
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	m.mu.Lock()
	m.config = newConfig.Clone()
	m.mu.Unlock()

	m.notify(&ConfigChangeEvent{
		Type:      "update",
		Source:    source,
		Timestamp: time.Now(),
		Success:   true,
	})

	m.logger.Info("configuration updated", slog.String("source", source))
	return nil
}

// Subscribe returns a channel receiving configuration change events. The
// channel is buffered; events are dropped for subscribers that fall behind.
func (m *Manager) Subscribe() <-chan *ConfigChangeEvent {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	ch := make(chan *ConfigChangeEvent, 10)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// Close closes all subscriber channels. The manager must not be updated
// after Close.
func (m *Manager) Close() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
}

func (m *Manager) notify(event *ConfigChangeEvent) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for _, ch := range m.subscribers {
		select {
		case ch <- event:
		default:
			// subscriber channel full, skip
		}
	}
}
