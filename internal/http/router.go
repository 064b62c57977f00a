package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/finbooks/finbooks-auth/internal/config"
	"github.com/finbooks/finbooks-auth/internal/domain"
	"github.com/finbooks/finbooks-auth/internal/http/handler"
	httpmiddleware "github.com/finbooks/finbooks-auth/internal/http/middleware"
	"github.com/finbooks/finbooks-auth/internal/metrics"
	"github.com/finbooks/finbooks-auth/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	authHandler *handler.AuthHandler,
	companyHandler *handler.CompanyHandler,
	authMiddleware *httpmiddleware.Auth,
	rateLimiter *middleware.RateLimiter,
	gatherer prometheus.Gatherer,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)

		authGroup.POST("/select-tenant", authMiddleware.Authenticate, authHandler.SelectTenant)
		authGroup.POST("/create-tenant", authMiddleware.Authenticate, authHandler.CreateTenant)
		authGroup.GET("/my-tenants", authMiddleware.Authenticate, authHandler.MyTenants)
		authGroup.GET("/me", authMiddleware.Authenticate, authHandler.Me)
		authGroup.POST("/change-password", authMiddleware.Authenticate, authHandler.ChangePassword)
		authGroup.POST("/logout", authMiddleware.Authenticate, authHandler.Logout)
	}

	membershipGroup := r.Group("/memberships", authMiddleware.Authenticate)
	{
		membershipGroup.POST("/accept", companyHandler.AcceptInvitation)
		membershipGroup.POST("/reject", companyHandler.RejectInvitation)
	}

	companyGroup := r.Group("/companies", authMiddleware.Authenticate)
	{
		companyGroup.POST("/:id/plan",
			authMiddleware.RequireTenantParam("id"),
			authMiddleware.RequirePermission(domain.PermCompanyManage),
			companyHandler.ChangePlan)
		companyGroup.POST("/:id/suspend",
			authMiddleware.RequireRoles(domain.GlobalRoleSuperAdmin),
			companyHandler.Suspend)
		companyGroup.POST("/:id/activate",
			authMiddleware.RequireRoles(domain.GlobalRoleSuperAdmin),
			companyHandler.Activate)
		companyGroup.GET("/:id/members",
			authMiddleware.RequireTenantParam("id"),
			authMiddleware.RequirePermission(domain.PermUsersView),
			companyHandler.ListMembers)
		companyGroup.POST("/:id/members/invite",
			authMiddleware.RequireTenantParam("id"),
			authMiddleware.RequirePermission(domain.PermUsersInvite),
			companyHandler.InviteMember)
		companyGroup.POST("/:id/members/:userID/role",
			authMiddleware.RequireTenantParam("id"),
			authMiddleware.RequirePermission(domain.PermUsersManage),
			companyHandler.ChangeMemberRole)
		companyGroup.POST("/:id/members/:userID/suspend",
			authMiddleware.RequireTenantParam("id"),
			authMiddleware.RequirePermission(domain.PermUsersManage),
			companyHandler.SuspendMember)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))

	return r
}
