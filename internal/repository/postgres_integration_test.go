//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/finbooks/finbooks-auth/internal/domain"
	"github.com/finbooks/finbooks-auth/internal/repository"
)

// Requires a database with db/schema.sql applied:
//
//	DATABASE_URL=postgres://... go test -tags integration ./internal/repository/
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@integration.test", prefix, time.Now().UnixNano())
}

func TestUserLifecycle(t *testing.T) {
	pool := testPool(t)
	users := repository.NewPostgresUserRepo(pool)
	ctx := context.Background()

	email := uniqueEmail("user")
	created, err := users.Create(ctx, domain.User{
		Email:        email,
		PasswordHash: "x",
		Status:       domain.UserStatusActive,
		GlobalRole:   domain.GlobalRoleUser,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	// Lookups are case-insensitive on email.
	found, err := users.GetByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = users.Create(ctx, domain.User{Email: email, PasswordHash: "x", Status: domain.UserStatusActive, GlobalRole: domain.GlobalRoleUser})
	require.ErrorIs(t, err, repository.ErrDuplicate)

	_, err = users.GetByEmail(ctx, uniqueEmail("missing"))
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestRecordFailedAttemptIsAtomic(t *testing.T) {
	pool := testPool(t)
	users := repository.NewPostgresUserRepo(pool)
	ctx := context.Background()

	created, err := users.Create(ctx, domain.User{
		Email:        uniqueEmail("lockout"),
		PasswordHash: "x",
		Status:       domain.UserStatusActive,
		GlobalRole:   domain.GlobalRoleUser,
	})
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		updated, err := users.RecordFailedAttempt(ctx, created.ID, 5, 2*time.Hour)
		require.NoError(t, err)
		require.Equal(t, i, updated.FailedAttempts)
		require.Nil(t, updated.LockedUntil)
	}

	locked, err := users.RecordFailedAttempt(ctx, created.ID, 5, 2*time.Hour)
	require.NoError(t, err)
	require.Zero(t, locked.FailedAttempts)
	require.NotNil(t, locked.LockedUntil)
	require.True(t, locked.IsLocked(time.Now()))

	require.NoError(t, users.RecordSuccessfulLogin(ctx, created.ID, time.Now()))
	fresh, err := users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Zero(t, fresh.FailedAttempts)
	require.Nil(t, fresh.LockedUntil)
}

func TestMembershipUniqueness(t *testing.T) {
	pool := testPool(t)
	users := repository.NewPostgresUserRepo(pool)
	companies := repository.NewPostgresCompanyRepo(pool)
	memberships := repository.NewPostgresMembershipRepo(pool)
	ctx := context.Background()

	user, err := users.Create(ctx, domain.User{
		Email:        uniqueEmail("member"),
		PasswordHash: "x",
		Status:       domain.UserStatusActive,
		GlobalRole:   domain.GlobalRoleUser,
	})
	require.NoError(t, err)

	limits, _ := domain.LimitsForPlan(domain.PlanFree)
	now := time.Now()
	company, err := companies.Create(ctx, domain.Company{
		Name:   "Integration Co",
		Email:  uniqueEmail("company"),
		Status: domain.CompanyStatusActive,
		Subscription: domain.Subscription{
			Plan:         domain.PlanFree,
			Status:       domain.SubscriptionActive,
			StartedAt:    now,
			ExpiresAt:    now.AddDate(1, 0, 0),
			MaxUsers:     limits.MaxUsers,
			MaxStorageMB: limits.MaxStorageMB,
		},
		CreatedBy: user.ID,
	})
	require.NoError(t, err)

	joined := now
	created, err := memberships.Create(ctx, domain.Membership{
		UserID:      user.ID,
		CompanyID:   company.ID,
		Role:        domain.RoleOwner,
		Permissions: domain.PermissionsForRole(domain.RoleOwner),
		Status:      domain.MembershipActive,
		JoinedAt:    &joined,
	})
	require.NoError(t, err)

	_, err = memberships.Create(ctx, domain.Membership{
		UserID:      user.ID,
		CompanyID:   company.ID,
		Role:        domain.RoleViewer,
		Permissions: domain.PermissionsForRole(domain.RoleViewer),
		Status:      domain.MembershipPending,
	})
	require.ErrorIs(t, err, repository.ErrDuplicate)

	active, err := memberships.GetActive(ctx, user.ID, company.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, active.ID)
	require.ElementsMatch(t, domain.AllPermissions, active.Permissions)

	require.NoError(t, memberships.UpdateStatus(ctx, created.ID, domain.MembershipSuspended, nil))
	_, err = memberships.GetActive(ctx, user.ID, company.ID)
	require.ErrorIs(t, err, pgx.ErrNoRows)
}
