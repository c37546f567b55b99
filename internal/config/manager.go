package config

import (
	"sync/atomic"
)

// Manager serves the current configuration snapshot to the watcher loops.
// The loops call Get on every tick, so configuration changes become
// effective without a restart once Reload has been called (e.g. on SIGHUP).
type Manager struct {
	// path is the settings file the manager re-reads on Reload.
	path string
	// current holds the latest validated configuration snapshot.
	current atomic.Pointer[Config]
}

// NewManager loads the settings file and returns a manager serving it.
func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	m := &Manager{path: path}
	m.current.Store(cfg)

	return m, nil
}

// NewStaticManager wraps an already-built configuration, mostly for tests.
// Reload is a no-op for a static manager.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	m.current.Store(cfg)

	return m
}

// Get returns the current configuration snapshot.
// The returned value must be treated as read-only.
func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Timeouts returns the current notification timeouts.
func (m *Manager) Timeouts() Timeouts {
	return m.Get().Timeouts.Durations()
}

// Reload re-reads the settings file and swaps the snapshot on success.
// On failure the previous snapshot stays in effect.
func (m *Manager) Reload() error {
	if m.path == "" {
		return nil
	}

	cfg, err := Load(m.path)
	if err != nil {
		return err
	}

	m.current.Store(cfg)

	return nil
}

// Path returns the settings file location backing this manager.
func (m *Manager) Path() string {
	return m.path
}
