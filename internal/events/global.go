package events

import "sync"

var (
	defaultBusMu sync.RWMutex
	defaultBus   EventBus
)

// SetDefaultBus installs the process-wide event bus. Modules that are
// wired after server startup read it through DefaultBus.
func SetDefaultBus(bus EventBus) {
	defaultBusMu.Lock()
	defaultBus = bus
	defaultBusMu.Unlock()
}

// DefaultBus returns the process-wide event bus, or nil when none has
// been installed yet.
func DefaultBus() EventBus {
	defaultBusMu.RLock()
	defer defaultBusMu.RUnlock()
	return defaultBus
}
