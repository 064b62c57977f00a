package domain

import "time"

// Company-scoped roles, ordered owner highest.
const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleAccountant = "accountant"
	RoleUser       = "user"
	RoleViewer     = "viewer"
)

// Membership status values. No transition out of rejected or suspended is
// defined; a re-invitation is not modeled here.
const (
	MembershipPending   = "pending"
	MembershipActive    = "active"
	MembershipSuspended = "suspended"
	MembershipRejected  = "rejected"
)

// roleRank orders company roles for hierarchy comparisons.
var roleRank = map[string]int{
	RoleViewer:     1,
	RoleUser:       2,
	RoleAccountant: 3,
	RoleManager:    4,
	RoleAdmin:      5,
	RoleOwner:      6,
}

// ValidRole reports whether name is a defined company role.
func ValidRole(name string) bool {
	_, ok := roleRank[name]
	return ok
}

// RoleAtLeast reports whether role ranks at or above min in the hierarchy.
func RoleAtLeast(role, min string) bool {
	return roleRank[role] >= roleRank[min]
}

// Membership binds one user to one company with a role, the permission
// set derived from that role, and a lifecycle status. Exactly one
// membership exists per (user, company) pair.
type Membership struct {
	ID           int64
	UserID       int64
	CompanyID    int64
	Role         string
	Permissions  []string
	Status       string
	InvitedBy    *int64
	InvitedAt    *time.Time
	JoinedAt     *time.Time
	LastAccessAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPermission answers a permission check against this membership.
// Owners pass every check regardless of the stored set.
func (m Membership) HasPermission(permission string) bool {
	if m.Role == RoleOwner {
		return true
	}
	for _, p := range m.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}
