package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finbooks/finbooks-auth/internal/http/middleware"
	"github.com/finbooks/finbooks-auth/internal/service"
)

// AuthHandler exposes the authentication and tenant-selection endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Register creates an account and returns an account-only token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email     string `json:"email" binding:"required"`
		Username  string `json:"username"`
		Password  string `json:"password" binding:"required"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, "Email and password are required.")
		return
	}

	result, err := h.Auth.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Login authenticates by email and password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, "Email and password are required.")
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SelectTenant exchanges the session for a tenant-scoped token.
func (h *AuthHandler) SelectTenant(c *gin.Context) {
	rc, ok := middleware.GetRequestContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	var req struct {
		CompanyID int64 `json:"company_id" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, "A valid company_id is required.")
		return
	}

	result, err := h.Auth.SelectTenant(c.Request.Context(), rc.User.ID, req.CompanyID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateTenant creates a company owned by the caller.
func (h *AuthHandler) CreateTenant(c *gin.Context) {
	rc, ok := middleware.GetRequestContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		DisplayName string `json:"display_name"`
		Email       string `json:"email" binding:"required"`
		Industry    string `json:"industry"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, "Company name and email are required.")
		return
	}

	result, err := h.Auth.CreateTenant(c.Request.Context(), rc.User.ID, service.CreateTenantInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Industry:    req.Industry,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// MyTenants lists the caller's active memberships.
func (h *AuthHandler) MyTenants(c *gin.Context) {
	rc, ok := middleware.GetRequestContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	tenants, err := h.Auth.MyTenants(c.Request.Context(), rc.User.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": tenants})
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	rc, ok := middleware.GetRequestContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	profile, err := h.Auth.Me(c.Request.Context(), rc.User.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ChangePassword verifies the current password and stores a new one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	rc, ok := middleware.GetRequestContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, "Current and new password are required.")
		return
	}

	if err := h.Auth.ChangePassword(c.Request.Context(), rc.User.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_changed"})
}

// Logout acknowledges session termination. Tokens are self-contained and
// not stored server-side, so there is nothing to revoke; clients drop the
// token.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}
