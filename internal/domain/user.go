package domain

import "time"

// Account status values.
const (
	UserStatusPending     = "pending"
	UserStatusActive      = "active"
	UserStatusSuspended   = "suspended"
	UserStatusDeactivated = "deactivated"
)

// Global (platform-level) roles, distinct from any company role.
const (
	GlobalRoleSuperAdmin = "super_admin"
	GlobalRoleSupport    = "support"
	GlobalRoleUser       = "user"
)

// User represents an account that can authenticate and belong to companies.
type User struct {
	ID                int64
	Email             string
	Username          string
	PasswordHash      string
	FirstName         string
	LastName          string
	Status            string
	GlobalRole        string
	FailedAttempts    int
	LockedUntil       *time.Time
	LastLoginAt       *time.Time
	LastActivityAt    *time.Time
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsLocked reports whether the account is under a login lockout at now.
func (u User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// ApplyFailedAttempt advances the lockout state machine after a wrong
// password. Reaching threshold sets a lock and resets the counter; a
// failed attempt after an expired lock restarts the counter at 1.
func ApplyFailedAttempt(u *User, threshold int, lockFor time.Duration, now time.Time) {
	if u.LockedUntil != nil && !u.LockedUntil.After(now) {
		u.LockedUntil = nil
		u.FailedAttempts = 1
		return
	}
	u.FailedAttempts++
	if u.FailedAttempts >= threshold {
		until := now.Add(lockFor)
		u.LockedUntil = &until
		u.FailedAttempts = 0
	}
}

// ApplySuccessfulLogin clears lockout state and stamps login times.
func ApplySuccessfulLogin(u *User, now time.Time) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	u.LastActivityAt = &now
}
