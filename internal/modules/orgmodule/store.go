package orgmodule

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/types"
)

// InvitationTTL is how long an invite token stays redeemable
const InvitationTTL = 7 * 24 * time.Hour

// OrgStore persists organizations, users, subscriptions and invitations
type OrgStore struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewOrgStore creates a store backed by the given database
func NewOrgStore(db *gorm.DB, logger hclog.Logger) *OrgStore {
	return &OrgStore{
		db:     db,
		logger: logger.Named("org-store"),
	}
}

// CreateOrganization creates a tenant together with its owner user and a
// trial subscription, in one transaction.
func (s *OrgStore) CreateOrganization(ctx context.Context, name, ownerEmail, ownerName string) (*database.Organization, error) {
	org := &database.Organization{
		ID:   uuid.New().String(),
		Name: name,
		Plan: "trial",
	}
	owner := &database.User{
		ID:             uuid.New().String(),
		OrganizationID: org.ID,
		Email:          ownerEmail,
		DisplayName:    ownerName,
		Role:           "owner",
	}
	sub := &database.Subscription{
		ID:             uuid.New().String(),
		OrganizationID: org.ID,
		Plan:           "trial",
		Status:         "active",
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		if err := tx.Create(owner).Error; err != nil {
			if isUniqueViolation(err) {
				return types.NewConflictError(types.ErrorCodeDuplicateEmail,
					"a user with this email already exists").
					WithContext("email", ownerEmail)
			}
			return err
		}
		return tx.Create(sub).Error
	})
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, types.NewInternalError("failed to create organization", err)
	}

	s.logger.Info("organization created", "organization_id", org.ID, "name", name)
	return org, nil
}

// GetOrganization looks up a tenant by id
func (s *OrgStore) GetOrganization(ctx context.Context, id string) (*database.Organization, error) {
	var org database.Organization
	err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewNotFoundError("organization", id)
	}
	if err != nil {
		return nil, types.NewInternalError("failed to load organization", err)
	}
	return &org, nil
}

// ListUsers returns the organization's members
func (s *OrgStore) ListUsers(ctx context.Context, orgID string) ([]*database.User, error) {
	var users []*database.User
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, types.NewInternalError("failed to list users", err)
	}
	return users, nil
}

// CreateInvitation issues an invite token for an email address
func (s *OrgStore) CreateInvitation(ctx context.Context, orgID, email, role string) (*database.Invitation, error) {
	if _, err := s.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	invite := &database.Invitation{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		Token:          generateToken(),
		ExpiresAt:      time.Now().Add(InvitationTTL),
	}
	if err := s.db.WithContext(ctx).Create(invite).Error; err != nil {
		return nil, types.NewInternalError("failed to create invitation", err)
	}
	return invite, nil
}

// AcceptInvitation redeems a token, creating the member user. Expired and
// already-accepted tokens are rejected.
func (s *OrgStore) AcceptInvitation(ctx context.Context, token, displayName string) (*database.User, error) {
	var invite database.Invitation
	err := s.db.WithContext(ctx).First(&invite, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewNotFoundError("invitation", token)
	}
	if err != nil {
		return nil, types.NewInternalError("failed to load invitation", err)
	}

	if invite.AcceptedAt != nil {
		return nil, types.NewConflictError(types.ErrorCodeInviteExpired,
			"invitation has already been accepted")
	}
	if time.Now().After(invite.ExpiresAt) {
		return nil, types.NewConflictError(types.ErrorCodeInviteExpired,
			"invitation has expired")
	}

	user := &database.User{
		ID:             uuid.New().String(),
		OrganizationID: invite.OrganizationID,
		Email:          invite.Email,
		DisplayName:    displayName,
		Role:           invite.Role,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if isUniqueViolation(err) {
				return types.NewConflictError(types.ErrorCodeDuplicateEmail,
					"a user with this email already exists").
					WithContext("email", invite.Email)
			}
			return err
		}
		now := time.Now()
		invite.AcceptedAt = &now
		return tx.Save(&invite).Error
	})
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, types.NewInternalError("failed to accept invitation", err)
	}

	return user, nil
}

// GetSubscription returns the organization's current subscription
func (s *OrgStore) GetSubscription(ctx context.Context, orgID string) (*database.Subscription, error) {
	var sub database.Subscription
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewNotFoundError("subscription", orgID)
	}
	if err != nil {
		return nil, types.NewInternalError("failed to load subscription", err)
	}
	return &sub, nil
}

// ChangePlan moves the organization to a new plan. Cancelled
// subscriptions cannot change plans.
func (s *OrgStore) ChangePlan(ctx context.Context, orgID, plan string) (*database.Subscription, error) {
	sub, err := s.GetSubscription(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if sub.Status == "cancelled" {
		return nil, types.NewConflictError(types.ErrorCodeSubscriptionState,
			"cancelled subscriptions cannot change plans").
			WithContext("organization_id", orgID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub.Plan = plan
		if err := tx.Save(sub).Error; err != nil {
			return err
		}
		return tx.Model(&database.Organization{}).
			Where("id = ?", orgID).
			Update("plan", plan).Error
	})
	if err != nil {
		return nil, types.NewInternalError("failed to change plan", err)
	}
	return sub, nil
}

func generateToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// isUniqueViolation spot-checks driver errors for unique index conflicts.
// gorm.ErrDuplicatedKey only surfaces when the dialector translates
// errors, which the pure-Go sqlite driver does not.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
