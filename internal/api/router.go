// Package api provides the HTTP API for hexfog.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hexfog/hexfog/internal/api/handler"
	"github.com/hexfog/hexfog/internal/api/middleware"
	"github.com/hexfog/hexfog/internal/auth"
	"github.com/hexfog/hexfog/internal/coverage"
	"github.com/hexfog/hexfog/internal/fogzone"
	"github.com/hexfog/hexfog/internal/provider/resilience"
	"github.com/hexfog/hexfog/internal/routing"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	JWTService      *auth.JWTService
	CoverageService *coverage.Service
	FogZoneService  *fogzone.Service
	RoutingService  *routing.Service

	// Database is pinged by readiness and status checks (optional).
	Database handler.Pinger
	// Registry reports routing provider health (optional).
	Registry *resilience.Registry
	// RegionPublisher enables asynchronous region imports (optional).
	RegionPublisher handler.RegionPublisher
	// EnableDevAuth mounts POST /v1/auth/dev-token. Never enable in production.
	EnableDevAuth bool
	// RequireTLS rejects plain HTTP reported by the load balancer.
	RequireTLS bool
	// RateLimits overrides the default request budgets when non-zero.
	RateLimits middleware.RateLimits
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "hexfog-api"
	}

	// Request ID first so every later layer can log and echo it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Database, cfg.Registry)
	authHandler := handler.NewAuthHandler(cfg.JWTService)
	coverageHandler := handler.NewCoverageHandler(cfg.CoverageService)
	fogZoneHandler := handler.NewFogZoneHandler(cfg.FogZoneService)
	routeHandler := handler.NewRouteHandler(cfg.RoutingService)
	adminHandler := handler.NewAdminHandler(cfg.CoverageService, cfg.RegionPublisher)

	authMiddleware := middleware.Auth(cfg.JWTService)

	limits := cfg.RateLimits
	if limits == (middleware.RateLimits{}) {
		limits = middleware.DefaultRateLimits()
	}
	authRateLimit := middleware.RateLimitByIP(limits.Auth)
	expensiveRateLimit := middleware.RateLimitByUser(limits.Expensive)
	standardRateLimit := middleware.RateLimitByIP(limits.Standard)
	userRateLimit := middleware.RateLimitByUser(limits.Standard)
	ingestRateLimit := middleware.RateLimitByUser(limits.Ingest)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireJSON)

		if cfg.EnableDevAuth {
			r.With(authRateLimit).Post("/auth/dev-token", authHandler.DevToken)
		}

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Me endpoints (authenticated), limited per user. Track uploads get
		// their own budget since clients flush them in bursts.
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)

			r.With(ingestRateLimit).Post("/tracks", coverageHandler.RecordTrack)
			r.Route("/regions/{regionId}", func(r chi.Router) {
				r.Use(userRateLimit)
				r.Get("/coverage", coverageHandler.GetCoverage)
				r.With(expensiveRateLimit).Post("/fog-zones:search", fogZoneHandler.SearchFogZones)
			})
		})

		// Flow scoring is pure computation and public.
		r.With(standardRateLimit).Post("/routes:score", routeHandler.ScoreRoute)

		// Route compute calls the external provider.
		r.With(authMiddleware, expensiveRateLimit).Post("/routes:compute", routeHandler.ComputeRoutes)

		// Admin endpoints (admin token required)
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireAdmin)
			r.Use(standardRateLimit)

			r.Post("/regions/{regionId}:import", adminHandler.ImportRegion)
		})
	})

	return r
}
