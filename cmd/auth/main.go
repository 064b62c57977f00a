package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/finbooks/finbooks-auth/internal/config"
	httptransport "github.com/finbooks/finbooks-auth/internal/http"
	"github.com/finbooks/finbooks-auth/internal/http/handler"
	httpmiddleware "github.com/finbooks/finbooks-auth/internal/http/middleware"
	"github.com/finbooks/finbooks-auth/internal/metrics"
	basemiddleware "github.com/finbooks/finbooks-auth/internal/middleware"
	"github.com/finbooks/finbooks-auth/internal/repository"
	"github.com/finbooks/finbooks-auth/internal/server"
	"github.com/finbooks/finbooks-auth/internal/service"
	"github.com/finbooks/finbooks-auth/internal/telemetry"
	"github.com/finbooks/finbooks-auth/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newPGXPool,
			newUserRepository,
			newCompanyRepository,
			newMembershipRepository,
			newMetrics,
			newTokenService,
			newRateLimiter,
			newAuthService,
			newCompanyService,
			handler.NewAuthHandler,
			handler.NewCompanyHandler,
			newAuthMiddleware,
			newRouter,
			newHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	_ = godotenv.Load()
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newCompanyRepository(pool *pgxpool.Pool) repository.CompanyRepository {
	return repository.NewPostgresCompanyRepo(pool)
}

func newMembershipRepository(pool *pgxpool.Pool) repository.MembershipRepository {
	return repository.NewPostgresMembershipRepo(pool)
}

func newMetrics() (*prometheus.Registry, metrics.Recorder) {
	registry := prometheus.NewRegistry()
	return registry, metrics.NewCollector(registry)
}

func newTokenService(cfg config.Config) *token.Service {
	return token.NewService([]byte(cfg.SigningSecret), cfg.ServiceName, cfg.TokenTTL)
}

func newRateLimiter(cfg config.Config) *basemiddleware.RateLimiter {
	return basemiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newAuthService(
	users repository.UserRepository,
	companies repository.CompanyRepository,
	memberships repository.MembershipRepository,
	tokens *token.Service,
	cfg config.Config,
	logger *zap.Logger,
	recorder metrics.Recorder,
) *service.AuthService {
	return service.NewAuthService(users, companies, memberships, tokens, cfg, logger, recorder)
}

func newCompanyService(
	users repository.UserRepository,
	companies repository.CompanyRepository,
	memberships repository.MembershipRepository,
	logger *zap.Logger,
) *service.CompanyService {
	return service.NewCompanyService(users, companies, memberships, logger)
}

func newAuthMiddleware(
	tokens *token.Service,
	users repository.UserRepository,
	memberships repository.MembershipRepository,
	recorder metrics.Recorder,
) *httpmiddleware.Auth {
	return httpmiddleware.NewAuth(tokens, users, memberships, recorder)
}

func newRouter(
	cfg config.Config,
	authHandler *handler.AuthHandler,
	companyHandler *handler.CompanyHandler,
	authMiddleware *httpmiddleware.Auth,
	rateLimiter *basemiddleware.RateLimiter,
	registry *prometheus.Registry,
) *gin.Engine {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	return httptransport.NewRouter(cfg, authHandler, companyHandler, authMiddleware, rateLimiter, registry)
}

func newHTTPServer(cfg config.Config, router *gin.Engine, logger *zap.Logger) *server.HTTPServer {
	return server.NewHTTPServer(cfg, router, logger)
}

func useTelemetry(_ *telemetry.Provider) {}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, rateLimiter *basemiddleware.RateLimiter) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go srv.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if rateLimiter != nil {
				rateLimiter.Stop()
			}
			return srv.Shutdown(ctx)
		},
	})
}
