package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/finbooks/finbooks-auth/internal/domain"
	"github.com/finbooks/finbooks-auth/internal/repository"
)

// In-memory repository fakes mirroring the Postgres semantics, including
// uniqueness violations and the single-statement lockout update.

type memUserRepo struct {
	mu    sync.Mutex
	seq   int64
	users map[int64]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return domain.User{}, repository.ErrDuplicate
		}
		if user.Username != "" && strings.EqualFold(existing.Username, user.Username) {
			return domain.User{}, repository.ErrDuplicate
		}
	}
	r.seq++
	user.ID = r.seq
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) GetByID(_ context.Context, userID int64) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r *memUserRepo) RecordFailedAttempt(_ context.Context, userID int64, threshold int, lockFor time.Duration) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	domain.ApplyFailedAttempt(&user, threshold, lockFor, time.Now())
	r.users[userID] = user
	return user, nil
}

func (r *memUserRepo) RecordSuccessfulLogin(_ context.Context, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	domain.ApplySuccessfulLogin(&user, at)
	r.users[userID] = user
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, userID int64, hash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt
	r.users[userID] = user
	return nil
}

func (r *memUserRepo) UpdateStatus(_ context.Context, userID int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Status = status
	r.users[userID] = user
	return nil
}

type memCompanyRepo struct {
	mu        sync.Mutex
	seq       int64
	companies map[int64]domain.Company
}

func newMemCompanyRepo() *memCompanyRepo {
	return &memCompanyRepo{companies: make(map[int64]domain.Company)}
}

func (r *memCompanyRepo) Create(_ context.Context, company domain.Company) (domain.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.companies {
		if strings.EqualFold(existing.Email, company.Email) {
			return domain.Company{}, repository.ErrDuplicate
		}
	}
	r.seq++
	company.ID = r.seq
	company.CreatedAt = time.Now()
	company.UpdatedAt = company.CreatedAt
	r.companies[company.ID] = company
	return company, nil
}

func (r *memCompanyRepo) GetByID(_ context.Context, companyID int64) (domain.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	company, ok := r.companies[companyID]
	if !ok {
		return domain.Company{}, pgx.ErrNoRows
	}
	return company, nil
}

func (r *memCompanyRepo) GetByEmail(_ context.Context, email string) (domain.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, company := range r.companies {
		if strings.EqualFold(company.Email, email) {
			return company, nil
		}
	}
	return domain.Company{}, pgx.ErrNoRows
}

func (r *memCompanyRepo) UpdateSubscription(_ context.Context, companyID int64, sub domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	company, ok := r.companies[companyID]
	if !ok {
		return pgx.ErrNoRows
	}
	company.Subscription = sub
	r.companies[companyID] = company
	return nil
}

func (r *memCompanyRepo) UpdateStatus(_ context.Context, companyID int64, status, subscriptionStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	company, ok := r.companies[companyID]
	if !ok {
		return pgx.ErrNoRows
	}
	company.Status = status
	company.Subscription.Status = subscriptionStatus
	r.companies[companyID] = company
	return nil
}

type memMembershipRepo struct {
	mu          sync.Mutex
	seq         int64
	memberships map[int64]domain.Membership
}

func newMemMembershipRepo() *memMembershipRepo {
	return &memMembershipRepo{memberships: make(map[int64]domain.Membership)}
}

func (r *memMembershipRepo) Create(_ context.Context, m domain.Membership) (domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.memberships {
		if existing.UserID == m.UserID && existing.CompanyID == m.CompanyID {
			return domain.Membership{}, repository.ErrDuplicate
		}
	}
	r.seq++
	m.ID = r.seq
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	r.memberships[m.ID] = m
	return m, nil
}

func (r *memMembershipRepo) GetByUserAndCompany(_ context.Context, userID, companyID int64) (domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.memberships {
		if m.UserID == userID && m.CompanyID == companyID {
			return m, nil
		}
	}
	return domain.Membership{}, pgx.ErrNoRows
}

func (r *memMembershipRepo) GetActive(_ context.Context, userID, companyID int64) (domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.memberships {
		if m.UserID == userID && m.CompanyID == companyID && m.Status == domain.MembershipActive {
			return m, nil
		}
	}
	return domain.Membership{}, pgx.ErrNoRows
}

func (r *memMembershipRepo) ListForUser(_ context.Context, userID int64, status string) ([]domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Membership
	for _, m := range r.memberships {
		if m.UserID == userID && (status == "" || m.Status == status) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := out[i].LastAccessAt, out[j].LastAccessAt
		switch {
		case li != nil && lj != nil && !li.Equal(*lj):
			return li.After(*lj)
		case li != nil && lj == nil:
			return true
		case li == nil && lj != nil:
			return false
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memMembershipRepo) ListForCompany(_ context.Context, companyID int64, status string) ([]domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Membership
	for _, m := range r.memberships {
		if m.CompanyID == companyID && (status == "" || m.Status == status) {
			out = append(out, m)
		}
	}
	rank := map[string]int{
		domain.RoleOwner: 0, domain.RoleAdmin: 1, domain.RoleManager: 2,
		domain.RoleAccountant: 3, domain.RoleUser: 4, domain.RoleViewer: 5,
	}
	sort.Slice(out, func(i, j int) bool {
		if rank[out[i].Role] != rank[out[j].Role] {
			return rank[out[i].Role] < rank[out[j].Role]
		}
		ji, jj := out[i].JoinedAt, out[j].JoinedAt
		if ji != nil && jj != nil {
			return ji.Before(*jj)
		}
		return ji != nil
	})
	return out, nil
}

func (r *memMembershipRepo) UpdateRole(_ context.Context, membershipID int64, role string, permissions []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[membershipID]
	if !ok {
		return pgx.ErrNoRows
	}
	m.Role = role
	m.Permissions = permissions
	r.memberships[membershipID] = m
	return nil
}

func (r *memMembershipRepo) UpdateStatus(_ context.Context, membershipID int64, status string, joinedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[membershipID]
	if !ok {
		return pgx.ErrNoRows
	}
	m.Status = status
	if joinedAt != nil {
		m.JoinedAt = joinedAt
	}
	r.memberships[membershipID] = m
	return nil
}

func (r *memMembershipRepo) TouchLastAccess(_ context.Context, membershipID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[membershipID]
	if !ok {
		return pgx.ErrNoRows
	}
	m.LastAccessAt = &at
	r.memberships[membershipID] = m
	return nil
}

// Interface assertions keep the fakes honest.
var (
	_ repository.UserRepository       = (*memUserRepo)(nil)
	_ repository.CompanyRepository    = (*memCompanyRepo)(nil)
	_ repository.MembershipRepository = (*memMembershipRepo)(nil)
)
