// Package main provides the entrypoint for the hexfog API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hexfog/hexfog/internal/api"
	"github.com/hexfog/hexfog/internal/api/handler"
	"github.com/hexfog/hexfog/internal/api/middleware"
	"github.com/hexfog/hexfog/internal/auth"
	"github.com/hexfog/hexfog/internal/config"
	"github.com/hexfog/hexfog/internal/coverage"
	"github.com/hexfog/hexfog/internal/database"
	"github.com/hexfog/hexfog/internal/fogzone"
	"github.com/hexfog/hexfog/internal/grid"
	"github.com/hexfog/hexfog/internal/provider/resilience"
	"github.com/hexfog/hexfog/internal/routing"
	"github.com/hexfog/hexfog/internal/routing/osrm"
	"github.com/hexfog/hexfog/internal/telemetry"
	"github.com/hexfog/hexfog/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	serviceName     = "hexfog-api"
	shutdownTimeout = 30 * time.Second
	devSigningKey   = "local-dev-signing-key-change-in-production"
)

func main() {
	log := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error().Err(err).Msg("api exited")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, log zerolog.Logger) error {
	log.Info().Str("build_time", BuildTime).Msg("starting hexfog API")
	env := config.String("APP_ENV", "development")

	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version)
	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			log.Error().Err(err).Msg("failed to shut down telemetry")
		}
	}()
	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Float64("sample_ratio", telemetryCfg.SampleRatio).
			Msg("exporting telemetry")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("creating http metrics: %w", err)
	}
	providerMetrics, err := middleware.NewProviderMetrics(osrm.ProviderName)
	if err != nil {
		return fmt.Errorf("creating provider metrics: %w", err)
	}

	pool, err := openDatabase(ctx, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	mapper := grid.NewMapper(grid.ConfigFromEnv())
	coverageService := coverage.NewService(coverage.ServiceConfig{
		Store:  coverage.NewPostgresRepository(pool),
		Mapper: mapper,
		Logger: log,
	})
	fogZoneService := fogzone.NewService(coverageService, mapper, fogzone.ConfigFromEnv(log))
	log.Info().
		Int("resolution", mapper.Resolution()).
		Float64("gap_threshold_m", mapper.GapThreshold()).
		Msg("coverage grid ready")

	registry := resilience.NewRegistry()
	routingService := routing.NewService(routing.ServiceConfig{
		Provider: osrm.NewClient(osrm.ClientConfig{
			BaseURL:        config.String("OSRM_BASE_URL", osrm.DefaultBaseURL),
			DefaultProfile: routing.RouteProfile(config.String("OSRM_PROFILE", string(routing.ProfileWalk))),
			Resilience:     resilience.ClientConfigFromEnv(osrm.ProviderName, "OSRM"),
			Registry:       registry,
			Logger:         log,
		}),
		Cells:    coverageService,
		Flow:     routing.FlowConfigFromEnv(),
		Logger:   log,
		Metrics:  providerMetrics,
		CacheTTL: config.Duration("ROUTE_CACHE_TTL", 5*time.Minute),
	})

	signingKey := config.String("JWT_SIGNING_KEY", "")
	if signingKey == "" {
		if env != "development" {
			return errors.New("JWT_SIGNING_KEY is required outside development")
		}
		signingKey = devSigningKey
		log.Warn().Msg("using the development JWT signing key")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: signingKey,
		Issuer:     config.String("JWT_ISSUER", ""),
		Audience:   config.String("JWT_AUDIENCE", ""),
		Expiry:     config.Duration("JWT_EXPIRY", auth.AccessTokenExpiry),
	})

	devAuth := config.Bool("DEV_AUTH_ENABLED", env == "development")
	if devAuth {
		log.Warn().Msg("development token endpoint enabled")
	}

	var regionPublisher handler.RegionPublisher
	if projectID := config.String("PUBSUB_PROJECT_ID", ""); projectID != "" {
		publisher, err := worker.NewPublisher(ctx, projectID, config.String("PUBSUB_TOPIC", "hexfog-ingest"))
		if err != nil {
			return fmt.Errorf("creating pubsub publisher: %w", err)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub publisher")
			}
		}()
		regionPublisher = publisher
		log.Info().Str("project_id", projectID).Msg("async region imports enabled")
	}

	server := &http.Server{
		Addr: ":" + config.String("APP_PORT", "8080"),
		Handler: api.NewRouter(api.RouterConfig{
			Version:         Version,
			BuildTime:       BuildTime,
			Logger:          log,
			ServiceName:     serviceName,
			Metrics:         httpMetrics,
			JWTService:      jwtService,
			CoverageService: coverageService,
			FogZoneService:  fogZoneService,
			RoutingService:  routingService,
			Database:        pool,
			Registry:        registry,
			RegionPublisher: regionPublisher,
			EnableDevAuth:   devAuth,
			RequireTLS:      config.Bool("REQUIRE_TLS", false),
			RateLimits:      middleware.RateLimitsFromEnv(),
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, server, log)
}

func openDatabase(ctx context.Context, log zerolog.Logger) (*pgxpool.Pool, error) {
	pool, err := database.Connect(ctx, database.ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if config.Bool("DB_MIGRATE", true) {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}

	cc := pool.Config().ConnConfig
	log.Info().
		Str("host", cc.Host).
		Uint16("port", cc.Port).
		Str("database", cc.Database).
		Msg("database connected")
	return pool, nil
}

// serve runs server until ctx is canceled, then drains in-flight requests.
func serve(ctx context.Context, server *http.Server, log zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(drainCtx)
	})
	return g.Wait()
}
