// Package modulemanager provides registration and lifecycle management for
// application modules.
package modulemanager

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pulpitworks/sermonscribe/internal/events"
	"github.com/pulpitworks/sermonscribe/internal/logger"
)

// Module defines the interface that all modules must implement
type Module interface {
	ID() string                // Unique identifier for the module
	Name() string              // Display name for the module
	Core() bool                // Whether this is a core module (cannot be disabled)
	Migrate(db *gorm.DB) error // Run database migrations
	Init() error               // Initialize the module
}

// RouteRegistrar is an optional interface for modules that register routes
type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// DBReceiver is implemented by modules that need the shared database handle
type DBReceiver interface {
	SetDB(db *gorm.DB)
}

// EventBusReceiver is implemented by modules that publish or subscribe to events
type EventBusReceiver interface {
	SetEventBus(bus events.EventBus)
}

// ModuleRegistry manages module registration and initialization
type ModuleRegistry struct {
	modules         map[string]Module
	disabledModules map[string]bool
	mu              sync.RWMutex
	initialized     bool
}

// Registry is the global module registry
var Registry = &ModuleRegistry{
	modules:         make(map[string]Module),
	disabledModules: make(map[string]bool),
}

// Register adds a module to the global registry
func Register(module Module) {
	Registry.Register(module)
}

// Register adds a module to the registry
func (r *ModuleRegistry) Register(module Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := module.ID()
	if _, exists := r.modules[id]; exists {
		logger.Warn("module already registered", "module", id)
		return
	}

	r.modules[id] = module
	logger.Info("module registered", "module", id, "name", module.Name())
}

// DisableModule marks a module as disabled
func DisableModule(id string) {
	Registry.DisableModule(id)
}

// DisableModule marks a module as disabled
func (r *ModuleRegistry) DisableModule(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	module, exists := r.modules[id]
	if !exists {
		logger.Warn("attempted to disable non-existent module", "module", id)
		return
	}
	if module.Core() {
		logger.Error("cannot disable core module", "module", id)
		return
	}

	r.disabledModules[id] = true
	logger.Info("module disabled", "module", id)
}

// GetModule returns a module by ID
func GetModule(id string) (Module, bool) {
	return Registry.GetModule(id)
}

// GetModule returns a module by ID
func (r *ModuleRegistry) GetModule(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	module, exists := r.modules[id]
	return module, exists
}

// ListModules returns all registered modules
func ListModules() []Module {
	return Registry.ListModules()
}

// ListModules returns all registered modules
func (r *ModuleRegistry) ListModules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	modules := make([]Module, 0, len(r.modules))
	for _, module := range r.modules {
		modules = append(modules, module)
	}
	return modules
}

// Initialize migrates and initializes all enabled modules
func Initialize(db *gorm.DB) error {
	return Registry.Initialize(db)
}

// Initialize migrates and initializes all enabled modules
func (r *ModuleRegistry) Initialize(db *gorm.DB) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	for id, module := range r.modules {
		if r.disabledModules[id] {
			logger.Info("skipping disabled module", "module", id)
			continue
		}
		if err := module.Migrate(db); err != nil {
			return fmt.Errorf("module %s migration failed: %w", id, err)
		}
	}

	bus := events.DefaultBus()
	for id, module := range r.modules {
		if r.disabledModules[id] {
			continue
		}
		if receiver, ok := module.(DBReceiver); ok {
			receiver.SetDB(db)
		}
		if receiver, ok := module.(EventBusReceiver); ok && bus != nil {
			receiver.SetEventBus(bus)
		}
		if err := module.Init(); err != nil {
			return fmt.Errorf("module %s initialization failed: %w", id, err)
		}
		logger.Info("module initialized", "module", id)
	}

	r.initialized = true
	return nil
}

// RegisterRoutes registers routes for all modules that implement RouteRegistrar
func RegisterRoutes(router *gin.Engine) {
	Registry.RegisterRoutes(router)
}

// RegisterRoutes registers routes for all modules that implement RouteRegistrar
func (r *ModuleRegistry) RegisterRoutes(router *gin.Engine) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, module := range r.modules {
		if r.disabledModules[id] {
			continue
		}
		if registrar, ok := module.(RouteRegistrar); ok {
			logger.Info("registering module routes", "module", id)
			registrar.RegisterRoutes(router)
		}
	}
}
