package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/finbooks/finbooks-auth/internal/config"
	"github.com/finbooks/finbooks-auth/internal/domain"
	"github.com/finbooks/finbooks-auth/internal/metrics"
	"github.com/finbooks/finbooks-auth/internal/repository"
	"github.com/finbooks/finbooks-auth/internal/token"
)

const minPasswordLength = 8

// AuthService implements the authentication and tenant-selection flows.
type AuthService struct {
	users       repository.UserRepository
	companies   repository.CompanyRepository
	memberships repository.MembershipRepository
	tokens      *token.Service
	cfg         config.Config
	logger      *zap.Logger
	metrics     metrics.Recorder
	now         func() time.Time
}

// NewAuthService wires the service over its stores.
func NewAuthService(
	users repository.UserRepository,
	companies repository.CompanyRepository,
	memberships repository.MembershipRepository,
	tokens *token.Service,
	cfg config.Config,
	logger *zap.Logger,
	recorder metrics.Recorder,
) *AuthService {
	return &AuthService{
		users:       users,
		companies:   companies,
		memberships: memberships,
		tokens:      tokens,
		cfg:         cfg,
		logger:      logger,
		metrics:     recorder,
		now:         time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("finbooks-auth/service").Start(ctx, name)
}

func (s *AuthService) audit(event string, kv ...any) {
	if s.logger != nil {
		s.logger.Sugar().Infow(event, kv...)
	}
}

// UserViewModel is the account payload returned by auth endpoints.
type UserViewModel struct {
	ID         int64               `json:"id"`
	Email      string              `json:"email"`
	Username   string              `json:"username,omitempty"`
	FirstName  string              `json:"first_name,omitempty"`
	LastName   string              `json:"last_name,omitempty"`
	Status     string              `json:"status"`
	GlobalRole string              `json:"global_role"`
	Companies  []MembershipSummary `json:"companies"`
}

// MembershipSummary lists one company relation for the caller.
type MembershipSummary struct {
	CompanyID   int64    `json:"company_id"`
	CompanyName string   `json:"company_name"`
	Plan        string   `json:"plan"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	Status      string   `json:"status"`
}

// CompanyViewModel is the tenant payload returned by tenant endpoints.
type CompanyViewModel struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	DisplayName  string `json:"display_name,omitempty"`
	Email        string `json:"email"`
	Industry     string `json:"industry,omitempty"`
	Status       string `json:"status"`
	Plan         string `json:"plan"`
	PlanStatus   string `json:"plan_status"`
	PlanExpires  string `json:"plan_expires_at"`
	MaxUsers     int    `json:"max_users"`
	MaxStorageMB int64  `json:"max_storage_mb"`
}

// TokenWithUser pairs a session token with the account profile.
type TokenWithUser struct {
	Token string        `json:"token"`
	User  UserViewModel `json:"user"`
}

// TokenWithCompany pairs a tenant-scoped token with the selected company.
type TokenWithCompany struct {
	Token   string           `json:"token"`
	Company CompanyViewModel `json:"company"`
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// Register creates an account and returns an account-only token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (TokenWithUser, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	email := normalizeIdentifier(input.Email)
	if _, err := mail.ParseAddress(email); email == "" || err != nil {
		return TokenWithUser{}, errInvalidRequest("A valid email is required.")
	}
	if len(input.Password) < minPasswordLength {
		return TokenWithUser{}, errInvalidRequest(fmt.Sprintf("Password must be at least %d characters.", minPasswordLength))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		span.RecordError(err)
		return TokenWithUser{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, domain.User{
		Email:        email,
		Username:     strings.TrimSpace(input.Username),
		PasswordHash: string(hashed),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Status:       domain.UserStatusActive,
		GlobalRole:   domain.GlobalRoleUser,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return TokenWithUser{}, errDuplicateIdentity("Email or username already registered.")
		}
		span.RecordError(err)
		return TokenWithUser{}, fmt.Errorf("create user: %w", err)
	}

	raw, err := s.tokens.IssueAccountToken(created)
	if err != nil {
		span.RecordError(err)
		return TokenWithUser{}, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.RecordRegistration()
	s.audit("auth.register.success", "user_id", created.ID)
	return TokenWithUser{Token: raw, User: s.userView(ctx, created, nil)}, nil
}

// Login authenticates by email and password and returns an account-only
// token plus the caller's company memberships.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenWithUser, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeIdentifier(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.RecordLoginFailure("unknown_user")
			return TokenWithUser{}, errInvalidCredentials()
		}
		span.RecordError(err)
		return TokenWithUser{}, fmt.Errorf("load user: %w", err)
	}

	now := s.now()
	if user.IsLocked(now) {
		s.metrics.RecordLoginFailure("locked")
		s.audit("auth.login.locked", "user_id", user.ID)
		return TokenWithUser{}, errAccountLocked()
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		updated, recErr := s.users.RecordFailedAttempt(ctx, user.ID, s.cfg.LockoutThreshold, s.cfg.LockoutDuration)
		if recErr != nil {
			span.RecordError(recErr)
		} else if updated.IsLocked(s.now()) {
			s.metrics.RecordLockout()
			s.audit("auth.login.lockout_triggered", "user_id", user.ID)
		}
		s.metrics.RecordLoginFailure("bad_password")
		return TokenWithUser{}, errInvalidCredentials()
	}

	if user.Status != domain.UserStatusActive {
		s.metrics.RecordLoginFailure("inactive")
		return TokenWithUser{}, errAccountInactive()
	}

	if err := s.users.RecordSuccessfulLogin(ctx, user.ID, now); err != nil {
		span.RecordError(err)
		return TokenWithUser{}, fmt.Errorf("record login: %w", err)
	}
	domain.ApplySuccessfulLogin(&user, now)

	memberships, err := s.memberships.ListForUser(ctx, user.ID, domain.MembershipActive)
	if err != nil {
		span.RecordError(err)
		return TokenWithUser{}, fmt.Errorf("list memberships: %w", err)
	}

	raw, err := s.tokens.IssueAccountToken(user)
	if err != nil {
		span.RecordError(err)
		return TokenWithUser{}, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.RecordLoginSuccess()
	s.audit("auth.login.success", "user_id", user.ID)
	return TokenWithUser{Token: raw, User: s.userView(ctx, user, memberships)}, nil
}

// SelectTenant exchanges an account session for a tenant-scoped token.
// Only an active membership grants access; anything else is a 403.
func (s *AuthService) SelectTenant(ctx context.Context, userID, companyID int64) (TokenWithCompany, error) {
	ctx, span := s.startSpan(ctx, "AuthService.SelectTenant")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return TokenWithCompany{}, fmt.Errorf("load user: %w", err)
	}

	membership, err := s.memberships.GetActive(ctx, userID, companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenWithCompany{}, errForbidden("No active membership for this company.")
		}
		span.RecordError(err)
		return TokenWithCompany{}, fmt.Errorf("load membership: %w", err)
	}

	if err := s.memberships.TouchLastAccess(ctx, membership.ID, s.now()); err != nil {
		span.RecordError(err)
	}

	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		span.RecordError(err)
		return TokenWithCompany{}, fmt.Errorf("load company: %w", err)
	}

	raw, err := s.tokens.IssueTenantToken(user, membership)
	if err != nil {
		span.RecordError(err)
		return TokenWithCompany{}, fmt.Errorf("issue token: %w", err)
	}

	s.audit("auth.select_tenant.success", "user_id", userID, "company_id", companyID)
	return TokenWithCompany{Token: raw, Company: companyView(company)}, nil
}

// CreateTenantInput carries the company creation form.
type CreateTenantInput struct {
	Name        string
	DisplayName string
	Email       string
	Industry    string
}

// CreateTenant creates a company, makes the caller its owner with an
// active membership, and issues a tenant-scoped token immediately.
func (s *AuthService) CreateTenant(ctx context.Context, userID int64, input CreateTenantInput) (TokenWithCompany, error) {
	ctx, span := s.startSpan(ctx, "AuthService.CreateTenant")
	defer span.End()

	name := strings.TrimSpace(input.Name)
	email := normalizeIdentifier(input.Email)
	if name == "" {
		return TokenWithCompany{}, errInvalidRequest("Company name is required.")
	}
	if _, err := mail.ParseAddress(email); email == "" || err != nil {
		return TokenWithCompany{}, errInvalidRequest("A valid company email is required.")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return TokenWithCompany{}, fmt.Errorf("load user: %w", err)
	}

	now := s.now()
	limits, _ := domain.LimitsForPlan(domain.PlanFree)
	company, err := s.companies.Create(ctx, domain.Company{
		Name:        name,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Email:       email,
		Industry:    strings.TrimSpace(input.Industry),
		Status:      domain.CompanyStatusActive,
		Subscription: domain.Subscription{
			Plan:         domain.PlanFree,
			Status:       domain.SubscriptionActive,
			StartedAt:    now,
			ExpiresAt:    now.AddDate(1, 0, 0),
			MaxUsers:     limits.MaxUsers,
			MaxStorageMB: limits.MaxStorageMB,
		},
		CreatedBy: userID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return TokenWithCompany{}, errDuplicateIdentity("Company email already registered.")
		}
		span.RecordError(err)
		return TokenWithCompany{}, fmt.Errorf("create company: %w", err)
	}

	joined := now
	membership, err := s.memberships.Create(ctx, domain.Membership{
		UserID:      userID,
		CompanyID:   company.ID,
		Role:        domain.RoleOwner,
		Permissions: domain.PermissionsForRole(domain.RoleOwner),
		Status:      domain.MembershipActive,
		JoinedAt:    &joined,
	})
	if err != nil {
		span.RecordError(err)
		return TokenWithCompany{}, fmt.Errorf("create owner membership: %w", err)
	}

	raw, err := s.tokens.IssueTenantToken(user, membership)
	if err != nil {
		span.RecordError(err)
		return TokenWithCompany{}, fmt.Errorf("issue token: %w", err)
	}

	s.audit("auth.create_tenant.success", "user_id", userID, "company_id", company.ID)
	return TokenWithCompany{Token: raw, Company: companyView(company)}, nil
}

// MyTenants lists the caller's active company memberships.
func (s *AuthService) MyTenants(ctx context.Context, userID int64) ([]MembershipSummary, error) {
	ctx, span := s.startSpan(ctx, "AuthService.MyTenants")
	defer span.End()

	memberships, err := s.memberships.ListForUser(ctx, userID, domain.MembershipActive)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return s.membershipSummaries(ctx, memberships), nil
}

// Me returns the caller's account profile with active memberships.
func (s *AuthService) Me(ctx context.Context, userID int64) (UserViewModel, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Me")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return UserViewModel{}, fmt.Errorf("load user: %w", err)
	}
	memberships, err := s.memberships.ListForUser(ctx, userID, domain.MembershipActive)
	if err != nil {
		span.RecordError(err)
		return UserViewModel{}, fmt.Errorf("list memberships: %w", err)
	}
	return s.userView(ctx, user, memberships), nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ChangePassword")
	defer span.End()

	if len(next) < minPasswordLength {
		return errInvalidRequest(fmt.Sprintf("Password must be at least %d characters.", minPasswordLength))
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return errInvalidCredentials()
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), s.cfg.BcryptCost)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hashed), s.now()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("update password: %w", err)
	}

	s.audit("auth.change_password.success", "user_id", userID)
	return nil
}

func (s *AuthService) userView(ctx context.Context, user domain.User, memberships []domain.Membership) UserViewModel {
	return UserViewModel{
		ID:         user.ID,
		Email:      user.Email,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Status:     user.Status,
		GlobalRole: user.GlobalRole,
		Companies:  s.membershipSummaries(ctx, memberships),
	}
}

func (s *AuthService) membershipSummaries(ctx context.Context, memberships []domain.Membership) []MembershipSummary {
	summaries := make([]MembershipSummary, 0, len(memberships))
	for _, m := range memberships {
		summary := MembershipSummary{
			CompanyID:   m.CompanyID,
			Role:        m.Role,
			Permissions: m.Permissions,
			Status:      m.Status,
		}
		if company, err := s.companies.GetByID(ctx, m.CompanyID); err == nil {
			summary.CompanyName = company.Name
			summary.Plan = company.Subscription.Plan
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

func companyView(c domain.Company) CompanyViewModel {
	return CompanyViewModel{
		ID:           c.ID,
		Name:         c.Name,
		DisplayName:  c.DisplayName,
		Email:        c.Email,
		Industry:     c.Industry,
		Status:       c.Status,
		Plan:         c.Subscription.Plan,
		PlanStatus:   c.Subscription.Status,
		PlanExpires:  c.Subscription.ExpiresAt.UTC().Format(time.RFC3339),
		MaxUsers:     c.Subscription.MaxUsers,
		MaxStorageMB: c.Subscription.MaxStorageMB,
	}
}

func normalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
