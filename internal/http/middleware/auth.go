package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/finbooks/finbooks-auth/internal/domain"
	"github.com/finbooks/finbooks-auth/internal/metrics"
	"github.com/finbooks/finbooks-auth/internal/repository"
	"github.com/finbooks/finbooks-auth/internal/token"
)

const ginRequestContextKey = "authRequestContext"

// timeNow is swapped in lockout tests.
var timeNow = time.Now

type requestContextKey struct{}

// RequestContext is the typed per-request authorization state populated
// by Authenticate and consumed read-only downstream. The membership is
// always the live store record, never the token snapshot, so permission
// changes take effect on the next request.
type RequestContext struct {
	User       domain.User
	Claims     token.Claims
	TenantID   int64
	Membership *domain.Membership
}

// HasTenant reports whether a company context is selected.
func (rc *RequestContext) HasTenant() bool {
	return rc.TenantID != 0 && rc.Membership != nil
}

// Auth is the per-request access-control pipeline.
type Auth struct {
	Tokens      *token.Service
	Users       repository.UserRepository
	Memberships repository.MembershipRepository
	Metrics     metrics.Recorder
}

// NewAuth builds the middleware set.
func NewAuth(tokens *token.Service, users repository.UserRepository, memberships repository.MembershipRepository, recorder metrics.Recorder) *Auth {
	return &Auth{Tokens: tokens, Users: users, Memberships: memberships, Metrics: recorder}
}

// Authenticate runs the ordered pipeline: bearer extraction, token
// verification, account load, status checks, and, when the token carries
// tenant context, a live membership reload. It short-circuits on the
// first failure.
func (m *Auth) Authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		m.reject(c, "missing", http.StatusUnauthorized, "invalid_token", "Authorization header required.")
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		m.reject(c, "malformed", http.StatusUnauthorized, "invalid_token", "Bearer token required.")
		return
	}

	claims, err := m.Tokens.Verify(strings.TrimSpace(parts[1]))
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		m.reject(c, "expired", http.StatusUnauthorized, "token_expired", "Token has expired.")
		return
	case err != nil:
		m.reject(c, "invalid", http.StatusUnauthorized, "invalid_token", "Invalid access token.")
		return
	}

	userID, err := claims.UserID()
	if err != nil {
		m.reject(c, "invalid", http.StatusUnauthorized, "invalid_token", "Invalid access token.")
		return
	}

	user, err := m.Users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			m.reject(c, "unknown_user", http.StatusUnauthorized, "invalid_token", "Account no longer exists.")
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
		return
	}

	if user.Status != domain.UserStatusActive {
		m.reject(c, "inactive", http.StatusUnauthorized, "account_inactive", "Account is not active.")
		return
	}
	if user.IsLocked(timeNow()) {
		m.reject(c, "locked", http.StatusLocked, "account_locked", "Account is locked.")
		return
	}

	rc := &RequestContext{User: user, Claims: claims}

	if claims.HasTenant() {
		membership, err := m.Memberships.GetActive(c.Request.Context(), user.ID, claims.TenantID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "error_description": "No active membership for the selected company."})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
			return
		}
		rc.TenantID = claims.TenantID
		rc.Membership = &membership
	}

	ctx := context.WithValue(c.Request.Context(), requestContextKey{}, rc)
	c.Request = c.Request.WithContext(ctx)
	c.Set(ginRequestContextKey, rc)

	c.Next()
}

// RequireRoles passes when the caller's global role or company role is in
// the allow-list. super_admin always passes.
func (m *Auth) RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := GetRequestContext(c)
		if !ok {
			abortUnauthenticated(c)
			return
		}
		if rc.User.GlobalRole == domain.GlobalRoleSuperAdmin {
			c.Next()
			return
		}
		for _, role := range roles {
			if rc.User.GlobalRole == role {
				c.Next()
				return
			}
			if rc.Membership != nil && rc.Membership.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "error_description": "Insufficient role."})
	}
}

// RequirePermission passes when the live membership grants the named
// capability. super_admin bypasses; without a selected company the
// request is a 400, not a 403.
func (m *Auth) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := GetRequestContext(c)
		if !ok {
			abortUnauthenticated(c)
			return
		}
		if rc.User.GlobalRole == domain.GlobalRoleSuperAdmin {
			c.Next()
			return
		}
		if !rc.HasTenant() {
			abortTenantRequired(c)
			return
		}
		if !rc.Membership.HasPermission(permission) {
			if m.Metrics != nil {
				m.Metrics.RecordPermissionDenied(permission)
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "error_description": "Missing permission: " + permission + "."})
			return
		}
		c.Next()
	}
}

// RequireTenant fails with 400 when no company context is selected. This
// is "select a company first", distinct from a 403.
func (m *Auth) RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := GetRequestContext(c)
		if !ok {
			abortUnauthenticated(c)
			return
		}
		if !rc.HasTenant() {
			abortTenantRequired(c)
			return
		}
		c.Next()
	}
}

// RequireTenantParam verifies the selected company matches the :name
// path parameter, so a token scoped to one company cannot administer
// another. super_admin bypasses the scope check.
func (m *Auth) RequireTenantParam(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := GetRequestContext(c)
		if !ok {
			abortUnauthenticated(c)
			return
		}
		if rc.User.GlobalRole == domain.GlobalRoleSuperAdmin {
			c.Next()
			return
		}
		id, err := strconv.ParseInt(c.Param(name), 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "A valid " + name + " is required."})
			return
		}
		if !rc.HasTenant() {
			abortTenantRequired(c)
			return
		}
		if rc.TenantID != id {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "error_description": "Token is not scoped to this company."})
			return
		}
		c.Next()
	}
}

// RequireOwnershipOrAdmin passes for super_admin, for company owner or
// admin, or when the resource's owning user is the caller.
func (m *Auth) RequireOwnershipOrAdmin(ownerID func(c *gin.Context) (int64, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := GetRequestContext(c)
		if !ok {
			abortUnauthenticated(c)
			return
		}
		if rc.User.GlobalRole == domain.GlobalRoleSuperAdmin {
			c.Next()
			return
		}
		if rc.Membership != nil && (rc.Membership.Role == domain.RoleOwner || rc.Membership.Role == domain.RoleAdmin) {
			c.Next()
			return
		}
		if id, resolved := ownerID(c); resolved && id == rc.User.ID {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "error_description": "Not the resource owner."})
	}
}

func (m *Auth) reject(c *gin.Context, reason string, status int, code, desc string) {
	if m.Metrics != nil {
		m.Metrics.RecordTokenRejected(reason)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code, "error_description": desc})
}

func abortUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
}

func abortTenantRequired(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenant_required", "error_description": "Select a company first."})
}

// GetRequestContext extracts the authorization state from gin.
func GetRequestContext(c *gin.Context) (*RequestContext, bool) {
	value, ok := c.Get(ginRequestContextKey)
	if !ok {
		return nil, false
	}
	rc, ok := value.(*RequestContext)
	return rc, ok
}

// RequestContextFromContext extracts the authorization state from a
// standard context.
func RequestContextFromContext(ctx context.Context) (*RequestContext, bool) {
	value := ctx.Value(requestContextKey{})
	if value == nil {
		return nil, false
	}
	rc, ok := value.(*RequestContext)
	return rc, ok
}
