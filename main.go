package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/traceway-io/traceway-engine/pkg/auth"
	"github.com/traceway-io/traceway-engine/pkg/config"
	"github.com/traceway-io/traceway-engine/pkg/database"
	"github.com/traceway-io/traceway-engine/pkg/engine"
	"github.com/traceway-io/traceway-engine/pkg/handlers"
	"github.com/traceway-io/traceway-engine/pkg/logging"
	"github.com/traceway-io/traceway-engine/pkg/middleware"
	"github.com/traceway-io/traceway-engine/pkg/repositories"
)

// Version is set at build time via ldflags
var Version = "dev"

// shutdownGrace bounds how long in-flight requests may run after a
// termination signal.
const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Float64("gap_threshold", cfg.Propagation.GapThreshold))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations",
			zap.String("error", logging.SanitizeError(err)))
	}

	// Repositories and engine services
	levels := repositories.NewProcessLevelRepository()
	steps := repositories.NewProcessStepRepository()
	requirements := repositories.NewRequirementRepository()
	buildItems := repositories.NewBuildItemRepository()
	configItems := repositories.NewConfigItemRepository()
	testCases := repositories.NewTestCaseRepository()
	executions := repositories.NewTestExecutionRepository()
	defects := repositories.NewDefectRepository()
	links := repositories.NewTraceLinkRepository()

	resolver := engine.NewLinkResolver(levels, steps, requirements, buildItems, configItems, testCases)
	tracer := engine.NewTraceService(levels, steps, requirements, buildItems, configItems,
		testCases, executions, defects, links, resolver, logger)
	propagator := engine.NewPropagationService(levels, steps, cfg.Propagation.GapThreshold, logger)
	coverage := engine.NewCoverageService(requirements, tracer, logger)
	impact := engine.NewImpactService(levels, tracer, logger)

	// Auth stack
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	tenantMiddleware := handlers.TenantMiddleware(database.WithTenantContext(db, logger))

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewTraceHandler(tracer, cfg, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewFitHandler(propagator, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewCoverageHandler(coverage, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewImpactHandler(impact, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: handler}

	// Drain in-flight requests on SIGINT/SIGTERM so inline propagation
	// writes are not cut off mid-request.
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down", zap.Duration("grace", shutdownGrace))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown did not complete cleanly", zap.Error(err))
		}
	}()

	logger.Info("Starting traceway-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}
