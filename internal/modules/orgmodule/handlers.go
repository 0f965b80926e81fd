package orgmodule

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/pulpitworks/sermonscribe/internal/api"
)

// Handlers exposes organization management over HTTP
type Handlers struct {
	store  *OrgStore
	logger hclog.Logger
}

// NewHandlers creates the handler set
func NewHandlers(store *OrgStore, logger hclog.Logger) *Handlers {
	return &Handlers{
		store:  store,
		logger: logger.Named("org-api"),
	}
}

type createOrgRequest struct {
	Name       string `json:"name" binding:"required"`
	OwnerEmail string `json:"owner_email" binding:"required,email"`
	OwnerName  string `json:"owner_name"`
}

// CreateOrganization handles POST /api/organizations
func (h *Handlers) CreateOrganization(c *gin.Context) {
	var req createOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithValidationError(c, "invalid request body", err.Error())
		return
	}

	org, err := h.store.CreateOrganization(c.Request.Context(), req.Name, req.OwnerEmail, req.OwnerName)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, org)
}

// GetOrganization handles GET /api/organizations/:id
func (h *Handlers) GetOrganization(c *gin.Context) {
	org, err := h.store.GetOrganization(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

// ListUsers handles GET /api/organizations/:id/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

type createInviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,oneof=admin member"`
}

// CreateInvitation handles POST /api/organizations/:id/invitations
func (h *Handlers) CreateInvitation(c *gin.Context) {
	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithValidationError(c, "invalid request body", err.Error())
		return
	}

	invite, err := h.store.CreateInvitation(c.Request.Context(), c.Param("id"), req.Email, req.Role)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}

	// The token is returned once here and never listed again
	c.JSON(http.StatusCreated, gin.H{
		"invitation": invite,
		"token":      invite.Token,
	})
}

type acceptInviteRequest struct {
	Token       string `json:"token" binding:"required"`
	DisplayName string `json:"display_name"`
}

// AcceptInvitation handles POST /api/invitations/accept
func (h *Handlers) AcceptInvitation(c *gin.Context) {
	var req acceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithValidationError(c, "invalid request body", err.Error())
		return
	}

	user, err := h.store.AcceptInvitation(c.Request.Context(), req.Token, req.DisplayName)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// GetSubscription handles GET /api/organizations/:id/subscription
func (h *Handlers) GetSubscription(c *gin.Context) {
	sub, err := h.store.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

type changePlanRequest struct {
	Plan string `json:"plan" binding:"required,oneof=trial basic pro"`
}

// ChangePlan handles PUT /api/organizations/:id/subscription
func (h *Handlers) ChangePlan(c *gin.Context) {
	var req changePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithValidationError(c, "invalid request body", err.Error())
		return
	}

	sub, err := h.store.ChangePlan(c.Request.Context(), c.Param("id"), req.Plan)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}
