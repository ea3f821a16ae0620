// control/store.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with snapshot reads and reload listeners.

package control

import "sync"

// ConfigStore holds the active configuration and notifies listeners when it
// is replaced.
type ConfigStore struct {
	mu        sync.RWMutex
	config    Config
	listeners []func(old, updated Config)
}

// NewConfigStore initializes a store with cfg.
func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{config: cfg}
}

// GetSnapshot returns a copy of the active configuration.
func (cs *ConfigStore) GetSnapshot() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.config
}

// SetConfig replaces the configuration and runs every listener in
// registration order on the caller's goroutine.
func (cs *ConfigStore) SetConfig(cfg Config) {
	cs.mu.Lock()
	old := cs.config
	cs.config = cfg
	listeners := append([]func(Config, Config){}, cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn(old, cfg)
	}
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func(old, updated Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
