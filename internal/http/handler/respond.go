package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finbooks/finbooks-auth/internal/service"
)

// respondServiceError maps expected auth failures to their stable status
// and code, and hides everything else behind a generic 500.
func respondServiceError(c *gin.Context, err error) {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		c.JSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Description})
		return
	}
	zap.L().Error("service failure", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
}

func respondInvalidRequest(c *gin.Context, desc string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": desc})
}
