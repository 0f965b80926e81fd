// Package base provides common functionality shared by all modules.
package base

import (
	"sync"

	"gorm.io/gorm"

	"github.com/pulpitworks/sermonscribe/internal/events"
)

// BaseModule provides the common module bookkeeping so concrete modules
// only implement their domain behavior.
type BaseModule struct {
	id          string
	name        string
	version     string
	core        bool
	initialized bool
	db          *gorm.DB
	eventBus    events.EventBus
	mu          sync.RWMutex
}

// NewBaseModule creates a new base module with common properties
func NewBaseModule(id, name, version string, core bool) *BaseModule {
	return &BaseModule{
		id:      id,
		name:    name,
		version: version,
		core:    core,
	}
}

func (m *BaseModule) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

func (m *BaseModule) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

func (m *BaseModule) Version() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

func (m *BaseModule) Core() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.core
}

func (m *BaseModule) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// SetInitialized marks the module as initialized
func (m *BaseModule) SetInitialized(initialized bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = initialized
}

// SetDB sets the database connection
func (m *BaseModule) SetDB(db *gorm.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db = db
}

// DB returns the database connection
func (m *BaseModule) DB() *gorm.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// SetEventBus sets the event bus
func (m *BaseModule) SetEventBus(bus events.EventBus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventBus = bus
}

// EventBus returns the event bus
func (m *BaseModule) EventBus() events.EventBus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventBus
}

// PublishEvent publishes an event when a bus is configured
func (m *BaseModule) PublishEvent(event events.Event) {
	bus := m.EventBus()
	if bus == nil {
		return
	}
	if err := bus.PublishAsync(event); err != nil {
		// Dropped events are logged by the bus itself
		return
	}
}
