package domain

import "time"

// Company status values.
const (
	CompanyStatusActive      = "active"
	CompanyStatusSuspended   = "suspended"
	CompanyStatusDeactivated = "deactivated"
)

// Subscription plan names.
const (
	PlanFree         = "free"
	PlanStartup      = "startup"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// Subscription status values.
const (
	SubscriptionActive   = "active"
	SubscriptionExpired  = "expired"
	SubscriptionCanceled = "canceled"
)

// PlanLimits holds the per-plan quota pair. Plan changes always update
// both limits together with the plan name.
type PlanLimits struct {
	MaxUsers     int
	MaxStorageMB int64
}

var planLimits = map[string]PlanLimits{
	PlanFree:         {MaxUsers: 3, MaxStorageMB: 1 << 10},
	PlanStartup:      {MaxUsers: 10, MaxStorageMB: 5 << 10},
	PlanProfessional: {MaxUsers: 50, MaxStorageMB: 50 << 10},
	PlanEnterprise:   {MaxUsers: 200, MaxStorageMB: 200 << 10},
}

// LimitsForPlan returns the quota pair for a plan name.
func LimitsForPlan(plan string) (PlanLimits, bool) {
	limits, ok := planLimits[plan]
	return limits, ok
}

// Subscription is the plan bookkeeping embedded in a company.
type Subscription struct {
	Plan         string
	Status       string
	StartedAt    time.Time
	ExpiresAt    time.Time
	MaxUsers     int
	MaxStorageMB int64
}

// IsActive reports whether the subscription is usable at now. Status and
// expiry jointly decide; an active status past its end date is not active.
func (s Subscription) IsActive(now time.Time) bool {
	return s.Status == SubscriptionActive && s.ExpiresAt.After(now)
}

// Company is the tenant entity scoping all business data.
type Company struct {
	ID           int64
	Name         string
	DisplayName  string
	Email        string
	Industry     string
	Status       string
	Subscription Subscription
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
