package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/finbooks/finbooks-auth/internal/http/middleware"
	"github.com/finbooks/finbooks-auth/internal/service"
)

// CompanyHandler exposes tenant administration and membership management.
type CompanyHandler struct {
	Companies *service.CompanyService
}

// NewCompanyHandler creates the handler set.
func NewCompanyHandler(companies *service.CompanyService) *CompanyHandler {
	return &CompanyHandler{Companies: companies}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondInvalidRequest(c, "A valid "+name+" is required.")
		return 0, false
	}
	return id, true
}

// ChangePlan moves a company to a new subscription plan.
func (h *CompanyHandler) ChangePlan(c *gin.Context) {
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Plan string `json:"plan" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, "A plan name is required.")
		return
	}

	company, err := h.Companies.ChangePlan(c.Request.Context(), companyID, req.Plan)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": company})
}

// Suspend disables a company.
func (h *CompanyHandler) Suspend(c *gin.Context) {
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Companies.Suspend(c.Request.Context(), companyID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "suspended"})
}

// Activate re-enables a company.
func (h *CompanyHandler) Activate(c *gin.Context) {
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Companies.Activate(c.Request.Context(), companyID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "active"})
}

// ListMembers returns the company's memberships.
func (h *CompanyHandler) ListMembers(c *gin.Context) {
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	members, err := h.Companies.ListMembers(c.Request.Context(), companyID, c.Query("status"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// InviteMember creates a pending membership for an existing account.
func (h *CompanyHandler) InviteMember(c *gin.Context) {
	rc, _ := middleware.GetRequestContext(c)
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email" binding:"required"`
		Role  string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, "Email and role are required.")
		return
	}

	member, err := h.Companies.InviteMember(c.Request.Context(), companyID, rc.User.ID, req.Email, req.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": member})
}

// ChangeMemberRole assigns a new role, regenerating permissions.
func (h *CompanyHandler) ChangeMemberRole(c *gin.Context) {
	rc, _ := middleware.GetRequestContext(c)
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "userID")
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, "A role is required.")
		return
	}

	actorRole := ""
	if rc.Membership != nil {
		actorRole = rc.Membership.Role
	}
	if err := h.Companies.ChangeMemberRole(c.Request.Context(), companyID, targetID, req.Role, actorRole); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "role_changed"})
}

// SuspendMember moves an active membership to suspended.
func (h *CompanyHandler) SuspendMember(c *gin.Context) {
	companyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "userID")
	if !ok {
		return
	}
	if err := h.Companies.SuspendMember(c.Request.Context(), companyID, targetID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "suspended"})
}

// AcceptInvitation activates the caller's pending membership.
func (h *CompanyHandler) AcceptInvitation(c *gin.Context) {
	h.resolveInvitation(c, true)
}

// RejectInvitation declines the caller's pending membership.
func (h *CompanyHandler) RejectInvitation(c *gin.Context) {
	h.resolveInvitation(c, false)
}

func (h *CompanyHandler) resolveInvitation(c *gin.Context, accept bool) {
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

	var err error
	status := "rejected"
	if accept {
		err = h.Companies.AcceptInvitation(c.Request.Context(), rc.User.ID, req.CompanyID)
		status = "active"
	} else {
		err = h.Companies.RejectInvitation(c.Request.Context(), rc.User.ID, req.CompanyID)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}
