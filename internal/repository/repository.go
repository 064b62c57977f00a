package repository

import (
	"context"
	"errors"
	"time"

	"github.com/finbooks/finbooks-auth/internal/domain"
)

// ErrDuplicate indicates a uniqueness violation (email, username, company
// email, or the (user, company) membership pair).
var ErrDuplicate = errors.New("duplicate identity")

// UserRepository persists accounts and their lockout state.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	// RecordFailedAttempt advances counter and lock in a single statement
	// so concurrent failed logins cannot lose increments.
	RecordFailedAttempt(ctx context.Context, userID int64, threshold int, lockFor time.Duration) (domain.User, error)
	RecordSuccessfulLogin(ctx context.Context, userID int64, at time.Time) error
	UpdatePassword(ctx context.Context, userID int64, hash string, changedAt time.Time) error
	UpdateStatus(ctx context.Context, userID int64, status string) error
}

// CompanyRepository persists tenant records and subscription bookkeeping.
type CompanyRepository interface {
	Create(ctx context.Context, company domain.Company) (domain.Company, error)
	GetByID(ctx context.Context, companyID int64) (domain.Company, error)
	GetByEmail(ctx context.Context, email string) (domain.Company, error)
	UpdateSubscription(ctx context.Context, companyID int64, sub domain.Subscription) error
	UpdateStatus(ctx context.Context, companyID int64, status, subscriptionStatus string) error
}

// MembershipRepository persists the user/company relation and answers
// authorization queries.
type MembershipRepository interface {
	Create(ctx context.Context, m domain.Membership) (domain.Membership, error)
	GetByUserAndCompany(ctx context.Context, userID, companyID int64) (domain.Membership, error)
	// GetActive returns the membership only when its status is active.
	GetActive(ctx context.Context, userID, companyID int64) (domain.Membership, error)
	// ListForUser orders by last access desc, then creation desc. An empty
	// status lists all.
	ListForUser(ctx context.Context, userID int64, status string) ([]domain.Membership, error)
	// ListForCompany orders by role rank desc, then join time.
	ListForCompany(ctx context.Context, companyID int64, status string) ([]domain.Membership, error)
	UpdateRole(ctx context.Context, membershipID int64, role string, permissions []string) error
	UpdateStatus(ctx context.Context, membershipID int64, status string, joinedAt *time.Time) error
	TouchLastAccess(ctx context.Context, membershipID int64, at time.Time) error
}
