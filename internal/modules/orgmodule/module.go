// Package orgmodule manages tenants: organizations, their members,
// invitations and subscription plans.
package orgmodule

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/pulpitworks/sermonscribe/internal/base"
	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/modules/modulemanager"
)

// Register registers the organization module with the module system
func Register() {
	modulemanager.Register(NewModule())
}

// Module provides the organization management surface
type Module struct {
	*base.BaseModule
	logger hclog.Logger

	store    *OrgStore
	handlers *Handlers
}

// NewModule creates the organization module
func NewModule() *Module {
	return &Module{
		BaseModule: base.NewBaseModule("system.organizations", "Organizations", "1.0.0", true),
		logger:     hclog.Default().Named("orgmodule"),
	}
}

// Migrate creates the tenant tables
func (m *Module) Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&database.Organization{},
		&database.User{},
		&database.Subscription{},
		&database.Invitation{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate organization tables: %w", err)
	}
	return nil
}

// Init builds the store and handlers
func (m *Module) Init() error {
	db := m.DB()
	if db == nil {
		return fmt.Errorf("database not available")
	}

	m.store = NewOrgStore(db, m.logger)
	m.handlers = NewHandlers(m.store, m.logger)
	m.SetInitialized(true)
	return nil
}

// Store exposes the org store for other modules
func (m *Module) Store() *OrgStore {
	return m.store
}

// RegisterRoutes mounts the organization API
func (m *Module) RegisterRoutes(router *gin.Engine) {
	orgs := router.Group("/api/organizations")
	{
		orgs.POST("", m.handlers.CreateOrganization)
		orgs.GET("/:id", m.handlers.GetOrganization)
		orgs.GET("/:id/users", m.handlers.ListUsers)
		orgs.POST("/:id/invitations", m.handlers.CreateInvitation)
		orgs.GET("/:id/subscription", m.handlers.GetSubscription)
		orgs.PUT("/:id/subscription", m.handlers.ChangePlan)
	}
	router.POST("/api/invitations/accept", m.handlers.AcceptInvitation)
}
