package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/finbooks/finbooks-auth/internal/domain"
	"github.com/finbooks/finbooks-auth/internal/repository"
)

// CompanyService implements tenant administration and membership
// management.
type CompanyService struct {
	users       repository.UserRepository
	companies   repository.CompanyRepository
	memberships repository.MembershipRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewCompanyService wires the service over its stores.
func NewCompanyService(
	users repository.UserRepository,
	companies repository.CompanyRepository,
	memberships repository.MembershipRepository,
	logger *zap.Logger,
) *CompanyService {
	return &CompanyService{
		users:       users,
		companies:   companies,
		memberships: memberships,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *CompanyService) WithClock(now func() time.Time) *CompanyService {
	s.now = now
	return s
}

func (s *CompanyService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("finbooks-auth/service").Start(ctx, name)
}

func (s *CompanyService) audit(event string, kv ...any) {
	if s.logger != nil {
		s.logger.Sugar().Infow(event, kv...)
	}
}

// ChangePlan atomically moves a company to a new subscription plan. Plan
// name and both limits always change together; the subscription becomes
// active and the end date extends one year from now.
func (s *CompanyService) ChangePlan(ctx context.Context, companyID int64, plan string) (CompanyViewModel, error) {
	ctx, span := s.startSpan(ctx, "CompanyService.ChangePlan")
	defer span.End()

	limits, ok := domain.LimitsForPlan(plan)
	if !ok {
		return CompanyViewModel{}, errInvalidRequest("Unknown subscription plan.")
	}

	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CompanyViewModel{}, errNotFound("Company not found.")
		}
		span.RecordError(err)
		return CompanyViewModel{}, fmt.Errorf("load company: %w", err)
	}

	now := s.now()
	sub := company.Subscription
	sub.Plan = plan
	sub.Status = domain.SubscriptionActive
	sub.MaxUsers = limits.MaxUsers
	sub.MaxStorageMB = limits.MaxStorageMB
	sub.ExpiresAt = now.AddDate(1, 0, 0)
	if sub.StartedAt.IsZero() {
		sub.StartedAt = now
	}

	if err := s.companies.UpdateSubscription(ctx, companyID, sub); err != nil {
		span.RecordError(err)
		return CompanyViewModel{}, fmt.Errorf("update subscription: %w", err)
	}
	company.Subscription = sub

	s.audit("company.plan.changed", "company_id", companyID, "plan", plan)
	return companyView(company), nil
}

// Suspend disables a company.
func (s *CompanyService) Suspend(ctx context.Context, companyID int64) error {
	ctx, span := s.startSpan(ctx, "CompanyService.Suspend")
	defer span.End()

	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errNotFound("Company not found.")
		}
		span.RecordError(err)
		return fmt.Errorf("load company: %w", err)
	}

	if err := s.companies.UpdateStatus(ctx, companyID, domain.CompanyStatusSuspended, company.Subscription.Status); err != nil {
		span.RecordError(err)
		return fmt.Errorf("suspend company: %w", err)
	}

	s.audit("company.suspended", "company_id", companyID)
	return nil
}

// Activate re-enables a company. The subscription only returns to active
// if its end date is still in the future.
func (s *CompanyService) Activate(ctx context.Context, companyID int64) error {
	ctx, span := s.startSpan(ctx, "CompanyService.Activate")
	defer span.End()

	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errNotFound("Company not found.")
		}
		span.RecordError(err)
		return fmt.Errorf("load company: %w", err)
	}

	subStatus := domain.SubscriptionExpired
	if company.Subscription.ExpiresAt.After(s.now()) {
		subStatus = domain.SubscriptionActive
	}
	if err := s.companies.UpdateStatus(ctx, companyID, domain.CompanyStatusActive, subStatus); err != nil {
		span.RecordError(err)
		return fmt.Errorf("activate company: %w", err)
	}

	s.audit("company.activated", "company_id", companyID, "plan_status", subStatus)
	return nil
}

// MemberViewModel lists one member of a company.
type MemberViewModel struct {
	UserID       int64    `json:"user_id"`
	Email        string   `json:"email"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions"`
	Status       string   `json:"status"`
	JoinedAt     *string  `json:"joined_at,omitempty"`
	LastAccessAt *string  `json:"last_access_at,omitempty"`
}

// ListMembers returns company memberships ordered by role then join time.
func (s *CompanyService) ListMembers(ctx context.Context, companyID int64, status string) ([]MemberViewModel, error) {
	ctx, span := s.startSpan(ctx, "CompanyService.ListMembers")
	defer span.End()

	memberships, err := s.memberships.ListForCompany(ctx, companyID, status)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list members: %w", err)
	}

	members := make([]MemberViewModel, 0, len(memberships))
	for _, m := range memberships {
		member := MemberViewModel{
			UserID:       m.UserID,
			Role:         m.Role,
			Permissions:  m.Permissions,
			Status:       m.Status,
			JoinedAt:     formatTimePtr(m.JoinedAt),
			LastAccessAt: formatTimePtr(m.LastAccessAt),
		}
		if user, err := s.users.GetByID(ctx, m.UserID); err == nil {
			member.Email = user.Email
		}
		members = append(members, member)
	}
	return members, nil
}

// InviteMember creates a pending membership for an existing account. The
// owner role cannot be granted through an invitation.
func (s *CompanyService) InviteMember(ctx context.Context, companyID, inviterID int64, email, role string) (MemberViewModel, error) {
	ctx, span := s.startSpan(ctx, "CompanyService.InviteMember")
	defer span.End()

	if !domain.ValidRole(role) || role == domain.RoleOwner {
		return MemberViewModel{}, errInvalidRequest("Invalid role for invitation.")
	}

	user, err := s.users.GetByEmail(ctx, normalizeIdentifier(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MemberViewModel{}, errNotFound("No account with that email.")
		}
		span.RecordError(err)
		return MemberViewModel{}, fmt.Errorf("load user: %w", err)
	}

	now := s.now()
	created, err := s.memberships.Create(ctx, domain.Membership{
		UserID:      user.ID,
		CompanyID:   companyID,
		Role:        role,
		Permissions: domain.PermissionsForRole(role),
		Status:      domain.MembershipPending,
		InvitedBy:   &inviterID,
		InvitedAt:   &now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return MemberViewModel{}, errDuplicateIdentity("User already has a membership in this company.")
		}
		span.RecordError(err)
		return MemberViewModel{}, fmt.Errorf("create membership: %w", err)
	}

	s.audit("company.member.invited", "company_id", companyID, "user_id", user.ID, "role", role)
	return MemberViewModel{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        created.Role,
		Permissions: created.Permissions,
		Status:      created.Status,
	}, nil
}

// AcceptInvitation moves the caller's pending membership to active.
func (s *CompanyService) AcceptInvitation(ctx context.Context, userID, companyID int64) error {
	return s.resolveInvitation(ctx, userID, companyID, domain.MembershipActive, "company.member.accepted")
}

// RejectInvitation moves the caller's pending membership to rejected.
// There is no way back out of rejected.
func (s *CompanyService) RejectInvitation(ctx context.Context, userID, companyID int64) error {
	return s.resolveInvitation(ctx, userID, companyID, domain.MembershipRejected, "company.member.rejected")
}

func (s *CompanyService) resolveInvitation(ctx context.Context, userID, companyID int64, next, event string) error {
	ctx, span := s.startSpan(ctx, "CompanyService.ResolveInvitation")
	defer span.End()

	membership, err := s.memberships.GetByUserAndCompany(ctx, userID, companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errNotFound("No invitation for this company.")
		}
		span.RecordError(err)
		return fmt.Errorf("load membership: %w", err)
	}
	if membership.Status != domain.MembershipPending {
		return errInvalidRequest("Invitation is no longer pending.")
	}

	var joinedAt *time.Time
	if next == domain.MembershipActive {
		now := s.now()
		joinedAt = &now
	}
	if err := s.memberships.UpdateStatus(ctx, membership.ID, next, joinedAt); err != nil {
		span.RecordError(err)
		return fmt.Errorf("update membership: %w", err)
	}

	s.audit(event, "company_id", companyID, "user_id", userID)
	return nil
}

// ChangeMemberRole assigns a new role and regenerates the permission set
// from the role table. Granting owner requires the actor to be the owner.
func (s *CompanyService) ChangeMemberRole(ctx context.Context, companyID, targetUserID int64, role, actorRole string) error {
	ctx, span := s.startSpan(ctx, "CompanyService.ChangeMemberRole")
	defer span.End()

	if !domain.ValidRole(role) {
		return errInvalidRequest("Unknown role.")
	}
	if role == domain.RoleOwner && actorRole != domain.RoleOwner {
		return errForbidden("Only the owner can transfer ownership.")
	}

	membership, err := s.memberships.GetActive(ctx, targetUserID, companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errNotFound("No active membership for that user.")
		}
		span.RecordError(err)
		return fmt.Errorf("load membership: %w", err)
	}

	if err := s.memberships.UpdateRole(ctx, membership.ID, role, domain.PermissionsForRole(role)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("update role: %w", err)
	}

	s.audit("company.member.role_changed", "company_id", companyID, "user_id", targetUserID, "role", role)
	return nil
}

// SuspendMember moves an active membership to suspended. No transition
// out of suspended exists.
func (s *CompanyService) SuspendMember(ctx context.Context, companyID, targetUserID int64) error {
	ctx, span := s.startSpan(ctx, "CompanyService.SuspendMember")
	defer span.End()

	membership, err := s.memberships.GetActive(ctx, targetUserID, companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errNotFound("No active membership for that user.")
		}
		span.RecordError(err)
		return fmt.Errorf("load membership: %w", err)
	}
	if membership.Role == domain.RoleOwner {
		return errForbidden("The owner membership cannot be suspended.")
	}

	if err := s.memberships.UpdateStatus(ctx, membership.ID, domain.MembershipSuspended, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("suspend membership: %w", err)
	}

	s.audit("company.member.suspended", "company_id", companyID, "user_id", targetUserID)
	return nil
}

// HasPermission answers an authorization query against the live
// membership for (user, company). Missing or non-active memberships
// always answer false; owners always answer true.
func (s *CompanyService) HasPermission(ctx context.Context, userID, companyID int64, permission string) (bool, error) {
	membership, err := s.memberships.GetActive(ctx, userID, companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("load membership: %w", err)
	}
	return membership.HasPermission(permission), nil
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}
