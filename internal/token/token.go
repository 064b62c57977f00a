// Package token issues and verifies the signed session tokens used by the
// HTTP layer. Tokens are self-contained HS256 JWTs signed with a single
// shared secret; verification never touches the stores.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/finbooks/finbooks-auth/internal/domain"
)

var (
	// ErrTokenInvalid covers malformed tokens and bad signatures.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned when the expiry has elapsed.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the decoded token payload. Tenant fields are zero for
// account-only tokens.
type Claims struct {
	jwt.Claims
	Email       string   `json:"email,omitempty"`
	GlobalRole  string   `json:"global_role,omitempty"`
	TenantID    int64    `json:"tenant_id,omitempty"`
	TenantRole  string   `json:"tenant_role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// UserID parses the subject claim back into a user id.
func (c Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrTokenInvalid
	}
	return id, nil
}

// HasTenant reports whether the token carries company context.
func (c Claims) HasTenant() bool {
	return c.TenantID != 0
}

// Service signs and verifies session tokens.
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewService builds a token service around a shared HMAC secret.
func NewService(secret []byte, issuer string, ttl time.Duration) *Service {
	return &Service{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IssueAccountToken signs a token carrying account identity only.
func (s *Service) IssueAccountToken(user domain.User) (string, error) {
	return s.sign(s.baseClaims(user))
}

// IssueTenantToken signs a token additionally carrying the company, role,
// and a snapshot of the permission set at issuance. The snapshot is a
// hint for clients; the middleware re-loads the live membership on every
// request.
func (s *Service) IssueTenantToken(user domain.User, m domain.Membership) (string, error) {
	claims := s.baseClaims(user)
	claims.TenantID = m.CompanyID
	claims.TenantRole = m.Role
	claims.Permissions = m.Permissions
	return s.sign(claims)
}

func (s *Service) baseClaims(user domain.User) Claims {
	now := s.now()
	return Claims{
		Claims: jwt.Claims{
			Issuer:   s.issuer,
			Subject:  strconv.FormatInt(user.ID, 10),
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email:      user.Email,
		GlobalRole: user.GlobalRole,
	}
}

func (s *Service) sign(claims Claims) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: s.secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("create signer: %w", err)
	}
	raw, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return raw, nil
}

// Verify checks signature and expiry and returns the decoded claims.
func (s *Service) Verify(raw string) (Claims, error) {
	parsed, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}
	var claims Claims
	if err := parsed.Claims(s.secret, &claims); err != nil {
		return Claims{}, ErrTokenInvalid
	}
	err = claims.Validate(jwt.Expected{Time: s.now()})
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return Claims{}, ErrTokenExpired
	case err != nil:
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}
