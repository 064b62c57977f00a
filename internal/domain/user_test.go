package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finbooks/finbooks-auth/internal/domain"
)

func TestApplyFailedAttemptLocksAtThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := domain.User{}

	for i := 0; i < 4; i++ {
		domain.ApplyFailedAttempt(&u, 5, 2*time.Hour, now)
		require.False(t, u.IsLocked(now), "attempt %d must not lock", i+1)
	}
	require.Equal(t, 4, u.FailedAttempts)

	domain.ApplyFailedAttempt(&u, 5, 2*time.Hour, now)
	require.True(t, u.IsLocked(now))
	require.Equal(t, 0, u.FailedAttempts)
	require.Equal(t, now.Add(2*time.Hour), *u.LockedUntil)
}

func TestApplyFailedAttemptAfterExpiredLockResetsToOne(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)
	u := domain.User{FailedAttempts: 0, LockedUntil: &expired}

	domain.ApplyFailedAttempt(&u, 5, 2*time.Hour, now)
	require.Equal(t, 1, u.FailedAttempts)
	require.Nil(t, u.LockedUntil)
	require.False(t, u.IsLocked(now))
}

func TestIsLockedBoundary(t *testing.T) {
	now := time.Now()
	until := now.Add(time.Second)
	u := domain.User{LockedUntil: &until}
	require.True(t, u.IsLocked(now))
	require.False(t, u.IsLocked(until))
	require.False(t, domain.User{}.IsLocked(now))
}

func TestApplySuccessfulLoginClearsLockout(t *testing.T) {
	now := time.Now()
	until := now.Add(time.Hour)
	u := domain.User{FailedAttempts: 3, LockedUntil: &until}

	domain.ApplySuccessfulLogin(&u, now)
	require.Zero(t, u.FailedAttempts)
	require.Nil(t, u.LockedUntil)
	require.Equal(t, now, *u.LastLoginAt)
	require.Equal(t, now, *u.LastActivityAt)
}

func TestSubscriptionIsActive(t *testing.T) {
	now := time.Now()
	active := domain.Subscription{Status: domain.SubscriptionActive, ExpiresAt: now.Add(time.Hour)}
	require.True(t, active.IsActive(now))

	expired := domain.Subscription{Status: domain.SubscriptionActive, ExpiresAt: now.Add(-time.Hour)}
	require.False(t, expired.IsActive(now))

	canceled := domain.Subscription{Status: domain.SubscriptionCanceled, ExpiresAt: now.Add(time.Hour)}
	require.False(t, canceled.IsActive(now))
}

func TestLimitsForPlan(t *testing.T) {
	tests := []struct {
		plan      string
		maxUsers  int
		storageMB int64
	}{
		{domain.PlanFree, 3, 1024},
		{domain.PlanStartup, 10, 5120},
		{domain.PlanProfessional, 50, 51200},
		{domain.PlanEnterprise, 200, 204800},
	}
	for _, tt := range tests {
		limits, ok := domain.LimitsForPlan(tt.plan)
		require.True(t, ok, tt.plan)
		require.Equal(t, tt.maxUsers, limits.MaxUsers)
		require.Equal(t, tt.storageMB, limits.MaxStorageMB)
	}

	_, ok := domain.LimitsForPlan("platinum")
	require.False(t, ok)
}
