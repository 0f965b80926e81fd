package orgmodule

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pulpitworks/sermonscribe/internal/database"
	"github.com/pulpitworks/sermonscribe/internal/types"
)

func setupOrgStore(t *testing.T) *OrgStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&database.Organization{},
		&database.User{},
		&database.Subscription{},
		&database.Invitation{},
	))
	return NewOrgStore(db, hclog.NewNullLogger())
}

func TestCreateOrganizationProvisioning(t *testing.T) {
	store := setupOrgStore(t)
	ctx := context.Background()

	org, err := store.CreateOrganization(ctx, "Grace Chapel", "pastor@grace.example", "Pat")
	require.NoError(t, err)
	assert.Equal(t, "trial", org.Plan)

	users, err := store.ListUsers(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "owner", users[0].Role)
	assert.Equal(t, "pastor@grace.example", users[0].Email)

	sub, err := store.GetSubscription(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "trial", sub.Plan)
}

func TestCreateOrganizationDuplicateOwnerEmail(t *testing.T) {
	store := setupOrgStore(t)
	ctx := context.Background()

	_, err := store.CreateOrganization(ctx, "First Church", "shared@example.com", "A")
	require.NoError(t, err)

	_, err = store.CreateOrganization(ctx, "Second Church", "shared@example.com", "B")
	require.Error(t, err)
	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorCodeDuplicateEmail, appErr.Code)
}

func TestInvitationFlow(t *testing.T) {
	store := setupOrgStore(t)
	ctx := context.Background()

	org, err := store.CreateOrganization(ctx, "Grace Chapel", "pastor@grace.example", "Pat")
	require.NoError(t, err)

	invite, err := store.CreateInvitation(ctx, org.ID, "volunteer@grace.example", "member")
	require.NoError(t, err)
	assert.NotEmpty(t, invite.Token)
	assert.True(t, invite.ExpiresAt.After(time.Now()))

	user, err := store.AcceptInvitation(ctx, invite.Token, "Vol")
	require.NoError(t, err)
	assert.Equal(t, org.ID, user.OrganizationID)
	assert.Equal(t, "member", user.Role)

	// A token redeems exactly once
	_, err = store.AcceptInvitation(ctx, invite.Token, "Vol again")
	require.Error(t, err)
	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorCodeInviteExpired, appErr.Code)
}

func TestAcceptInvitationExpired(t *testing.T) {
	store := setupOrgStore(t)
	ctx := context.Background()

	org, err := store.CreateOrganization(ctx, "Grace Chapel", "pastor@grace.example", "Pat")
	require.NoError(t, err)

	invite, err := store.CreateInvitation(ctx, org.ID, "late@grace.example", "member")
	require.NoError(t, err)

	// Backdate the expiry
	invite.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.db.Save(invite).Error)

	_, err = store.AcceptInvitation(ctx, invite.Token, "Late")
	require.Error(t, err)
	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorCodeInviteExpired, appErr.Code)
}

func TestCreateInvitationUnknownOrganization(t *testing.T) {
	store := setupOrgStore(t)

	_, err := store.CreateInvitation(context.Background(), "no-such-org", "x@example.com", "member")
	require.Error(t, err)
	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorCodeNotFound, appErr.Code)
}

func TestChangePlan(t *testing.T) {
	store := setupOrgStore(t)
	ctx := context.Background()

	org, err := store.CreateOrganization(ctx, "Grace Chapel", "pastor@grace.example", "Pat")
	require.NoError(t, err)

	sub, err := store.ChangePlan(ctx, org.ID, "pro")
	require.NoError(t, err)
	assert.Equal(t, "pro", sub.Plan)

	reloaded, err := store.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "pro", reloaded.Plan)
}

func TestChangePlanCancelledSubscription(t *testing.T) {
	store := setupOrgStore(t)
	ctx := context.Background()

	org, err := store.CreateOrganization(ctx, "Grace Chapel", "pastor@grace.example", "Pat")
	require.NoError(t, err)

	sub, err := store.GetSubscription(ctx, org.ID)
	require.NoError(t, err)
	sub.Status = "cancelled"
	require.NoError(t, store.db.Save(sub).Error)

	_, err = store.ChangePlan(ctx, org.ID, "basic")
	require.Error(t, err)
	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorCodeSubscriptionState, appErr.Code)
}

// setupMockStore backs the store with sqlmock so driver-level failures can
// be simulated.
func setupMockStore(t *testing.T) (*OrgStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return NewOrgStore(db, hclog.NewNullLogger()), mock
}

func TestGetOrganizationQueryFailure(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "organizations"`).
		WillReturnError(assert.AnError)

	_, err := store.GetOrganization(context.Background(), "org-1")
	require.Error(t, err)
	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorCodeInternal, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrganizationNotFoundFromEmptyResult(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "organizations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "plan", "created_at", "updated_at"}))

	_, err := store.GetOrganization(context.Background(), "org-1")
	require.Error(t, err)
	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorCodeNotFound, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
