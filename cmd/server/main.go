package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vulnwatch/api/internal/app/ingest"
	"github.com/vulnwatch/api/internal/config"
	httpinfra "github.com/vulnwatch/api/internal/infra/http"
	"github.com/vulnwatch/api/internal/infra/http/handler"
	"github.com/vulnwatch/api/internal/infra/http/middleware"
	"github.com/vulnwatch/api/internal/infra/postgres"
	"github.com/vulnwatch/api/internal/infra/redis"
	"github.com/vulnwatch/api/pkg/domain/policy"
	"github.com/vulnwatch/api/pkg/domain/workflow"
	"github.com/vulnwatch/api/pkg/logger"
	"github.com/vulnwatch/api/pkg/migrations"
	"github.com/vulnwatch/api/pkg/parsers/trivy"
	"github.com/vulnwatch/api/pkg/validator"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	ctx := context.Background()
	if err := migrations.NewRunner(db.DB).Up(ctx); err != nil {
		log.Error("failed to run migrations", "error", err)
		return 1
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(&cfg.Redis, log)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			return 1
		}
		defer closeWithLog(redisClient, "redis", log)
	}

	// ==========================================================================
	// Repositories
	// ==========================================================================
	projectRepo := postgres.NewProjectRepository(db)
	scanRepo := postgres.NewScanRepository(db)
	catalogRepo := postgres.NewCatalogRepository(db)
	findingRepo := postgres.NewFindingRepository(db)
	licenseRepo := postgres.NewLicenseRepository(db)
	policyRepo := postgres.NewPolicyRepository(db)

	// ==========================================================================
	// Domain Services
	// ==========================================================================
	workflowCfg, err := loadWorkflowConfig(cfg, log)
	if err != nil {
		log.Error("failed to load workflow config", "error", err)
		return 1
	}
	workflowService := workflow.NewService(workflow.NewEngine(workflowCfg), findingRepo, log)

	parser := trivy.NewParser(&trivy.Options{
		MinSeverity:    cfg.Ingest.MinSeverity,
		MaxFindings:    cfg.Ingest.MaxFindings,
		IncludeUnfixed: cfg.Ingest.IncludeUnfixed,
	})

	ingestService := ingest.NewService(
		parser,
		projectRepo,
		scanRepo,
		ingest.NewCatalogProcessor(catalogRepo, findingRepo, log),
		ingest.NewSyncProcessor(findingRepo, workflowService, log),
		ingest.NewLicenseProcessor(licenseRepo, log),
		log,
	)

	policyService := policy.NewService(policyRepo, licenseRepo, scanRepo, projectRepo, log)

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	v := validator.New()
	server := httpinfra.NewServer(cfg, log)

	handlers := httpinfra.Handlers{
		Health:  healthHandler(db, redisClient),
		Scan:    handler.NewScanHandler(ingestService, scanRepo, findingRepo, v, log),
		Finding: handler.NewFindingHandler(workflowService, findingRepo, v, log),
		Policy:  handler.NewPolicyHandler(policyService, policyRepo, v, log),
	}

	if redisClient != nil && cfg.RateLimit.Enabled {
		limiter, err := redis.NewRateLimiter(redisClient, "ratelimit:upload",
			cfg.RateLimit.Burst, cfg.RateLimit.Window, log)
		if err != nil {
			log.Error("failed to create upload rate limiter", "error", err)
			return 1
		}
		handlers.UploadRateLimit = middleware.DistributedRateLimit(middleware.DistributedRateLimitConfig{
			Limiter: limiter,
			Logger:  log,
		})
	}

	httpinfra.RegisterRoutes(server.Router(), handlers)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
			return 1
		}
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server", "error", err)
		return 1
	}

	log.Info("server stopped")
	return 0
}

// loadWorkflowConfig loads the transition edge list from the configured
// YAML file, falling back to the compiled-in default set.
func loadWorkflowConfig(cfg *config.Config, log *logger.Logger) (*workflow.Config, error) {
	if cfg.Workflow.ConfigPath == "" {
		return workflow.DefaultConfig(), nil
	}

	wcfg, err := workflow.LoadConfig(cfg.Workflow.ConfigPath)
	if err != nil {
		return nil, err
	}

	log.Info("workflow config loaded", "path", cfg.Workflow.ConfigPath)
	return wcfg, nil
}

func healthHandler(db *postgres.DB, redisClient *redis.Client) *handler.HealthHandler {
	opts := []handler.HealthHandlerOption{handler.WithDatabase(db)}
	if redisClient != nil {
		opts = append(opts, handler.WithRedis(redisClient))
	}
	return handler.NewHealthHandler(opts...)
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
