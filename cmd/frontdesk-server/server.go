package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/frontdesk/internal/config"
	"github.com/ehr/frontdesk/internal/domain/catalog"
	"github.com/ehr/frontdesk/internal/domain/consent"
	"github.com/ehr/frontdesk/internal/domain/encounter"
	"github.com/ehr/frontdesk/internal/domain/enrichment"
	"github.com/ehr/frontdesk/internal/domain/identity"
	"github.com/ehr/frontdesk/internal/domain/investigation"
	"github.com/ehr/frontdesk/internal/domain/triage"
	"github.com/ehr/frontdesk/internal/platform/auth"
	"github.com/ehr/frontdesk/internal/platform/db"
	"github.com/ehr/frontdesk/internal/platform/middleware"
	"github.com/ehr/frontdesk/internal/platform/notification"
	"github.com/ehr/frontdesk/internal/platform/otp"
	"github.com/ehr/frontdesk/internal/platform/telemetry"
)

const version = "0.1.0"

func otpConfig(cfg *config.Config) otp.Config {
	c := otp.DefaultConfig()
	c.TTL = cfg.OTPTTL()
	c.Cooldown = cfg.OTPCooldown()
	c.MaxAttempts = cfg.OTPMaxAttempts
	return c
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// OTP state lives in Redis; development without REDIS_URL falls back to
	// process memory.
	var (
		otpStore     otp.Store
		healthChecks []db.Check
	)
	if cfg.RedisURL != "" {
		rdb, err := otp.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to redis")
			return err
		}
		defer rdb.Close()
		otpStore = otp.NewRedisStore(rdb, otpConfig(cfg))
		healthChecks = append(healthChecks, db.Check{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		logger.Info().Msg("connected to redis")
	} else {
		otpStore = otp.NewMemoryStore(otpConfig(cfg))
		logger.Warn().Msg("REDIS_URL not set, OTP state kept in memory")
	}

	sender, err := notification.NewFromConfig(notification.SMSConfig{
		Enabled:    cfg.SMSEnabled,
		APIKey:     cfg.SMSIRAPIKey,
		SecretKey:  cfg.SMSIRSecretKey,
		TemplateID: cfg.SMSIROTPTemplateID,
	}, logger)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())

	// Metrics wrap the request logger so the logger still sees handler errors.
	registry := investigation.NewRegistry()
	if cfg.MetricsEnabled {
		if err := setupMetrics(e, pool, registry); err != nil {
			return err
		}
	}
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Retry-After", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool, healthChecks...))

	var authMW echo.MiddlewareFunc
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		logger.Warn().Str("staff_id", cfg.DevStaffID).Msg("development auth enabled, requests run as admin")
		authMW = auth.DevAuthMiddleware(cfg.DevStaffID)
	} else {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}
	rl := middleware.RateLimit(rateLimitConfig(cfg))
	audit := middleware.Audit(logger)

	// Rate limiting runs after auth so limits are keyed per user.
	apiV1 := e.Group("/api/v1", authMW, audit, rl)
	fhirGroup := e.Group("/fhir", authMW, audit, rl)

	registerDomains(apiV1, fhirGroup, pool, registry, otpStore, sender, cfg, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func setupMetrics(e *echo.Echo, pool *pgxpool.Pool, registry *investigation.Registry) error {
	tp := telemetry.NewProvider()
	if err := tp.ObservePool(telemetry.PgxPoolStats(pool)); err != nil {
		return err
	}
	if err := tp.RegisterGauge("investigation_provisional_requests",
		"Investigation requests held under a temporary id.",
		func() float64 { return float64(registry.HeldCount()) }); err != nil {
		return err
	}
	e.Use(tp.MetricsMiddleware())
	e.GET("/metrics", tp.PrometheusHandler())
	return nil
}

// registerDomains builds every repository, service and handler and mounts
// the routes.
func registerDomains(apiV1, fhirGroup *echo.Group, pool *pgxpool.Pool, registry *investigation.Registry, otpStore otp.Store, sender notification.OTPSender, cfg *config.Config, logger zerolog.Logger) {
	tx := db.NewTransactor(pool)

	identitySvc := identity.NewService(identity.NewPatientRepo(pool), identity.NewStaffRepo(pool))
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)

	catalogSvc := catalog.NewService(catalog.NewRepo(pool), tx, logger)
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)

	investigationSvc := investigation.NewService(
		investigation.NewRepo(pool), catalogSvc, registry, tx, logger)
	investigation.NewHandler(investigationSvc).RegisterRoutes(apiV1, fhirGroup)

	triageSvc := triage.NewService(triage.NewRepo(pool), logger)
	triage.NewHandler(triageSvc).RegisterRoutes(apiV1)

	consentSvc := consent.NewService(consent.NewRepo(pool), tx, otpStore, sender, identitySvc,
		consent.Config{OTPLength: cfg.OTPLength, DefaultRegion: cfg.PhoneDefaultRegion}, logger)
	consent.NewHandler(consentSvc).RegisterRoutes(apiV1)

	encounterSvc := encounter.NewService(encounter.NewRepo(pool), investigationSvc, logger)
	encounter.NewHandler(encounterSvc).RegisterRoutes(apiV1, fhirGroup)

	enrichmentSvc := enrichment.NewService(encounterSvc, identitySvc, logger)
	enrichment.NewHandler(enrichmentSvc).RegisterRoutes(apiV1)
}
