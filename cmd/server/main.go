package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/capscanio/capscan/internal/app/infer"
	"github.com/capscanio/capscan/internal/app/scan"
	"github.com/capscanio/capscan/internal/config"
	"github.com/capscanio/capscan/internal/infra/http"
	"github.com/capscanio/capscan/internal/infra/http/handler"
	"github.com/capscanio/capscan/internal/infra/inspect"
	"github.com/capscanio/capscan/internal/infra/jobs"
	"github.com/capscanio/capscan/internal/infra/llm"
	"github.com/capscanio/capscan/internal/infra/postgres"
	"github.com/capscanio/capscan/internal/infra/redis"
	"github.com/capscanio/capscan/pkg/logger"
	"github.com/capscanio/capscan/pkg/validator"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log := logger.NewDefault()
		log.Error("invalid configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
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

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)

	sessionRepo := postgres.NewScanSessionRepository(db)
	guard := redis.NewExecutorGuard(redisClient, cfg.Scan.ExecutorLockTTL)
	index := redis.NewCapabilityIndex(redisClient)

	inspector, err := inspect.NewCommandInspector(cfg.Inspect, log)
	if err != nil {
		log.Error("failed to initialize inspector", "error", err)
		return 1
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		log.Error("failed to initialize LLM provider", "error", err)
		return 1
	}
	log.Info("LLM provider initialized", "provider", provider.Name(), "model", provider.Model())

	// ==========================================================================
	// Job Queue
	// ==========================================================================
	jobClient := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, log)
	defer closeWithLog(jobClient, "job client", log)

	// ==========================================================================
	// Services
	// ==========================================================================
	inferrer := infer.NewService(inspector, provider, cfg.LLM.RequestsPerMinute, log)
	scanService := scan.NewService(sessionRepo, guard, jobClient, log)
	executor := scan.NewExecutor(sessionRepo, guard, inspector, inferrer, index, log)

	sweeper := scan.NewSweeper(sessionRepo, scan.SweeperConfig{
		Interval:        cfg.Scan.SweepInterval,
		CompletionGrace: cfg.Scan.CompletionGrace,
		IdleTTL:         cfg.Scan.IdleTTL,
	}, log)
	if err := sweeper.Start(); err != nil {
		log.Error("failed to start session sweeper", "error", err)
		return 1
	}
	defer sweeper.Stop()

	// ==========================================================================
	// Workers
	// ==========================================================================
	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Worker.Concurrency,
	}, executor, log)
	if err := worker.Start(); err != nil {
		log.Error("failed to start job worker", "error", err)
		return 1
	}
	defer worker.Stop()

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	v := validator.New()
	server := http.NewServer(cfg, log)
	server.RegisterRoutes(
		handler.NewScanHandler(scanService, v, log),
		handler.NewCapabilityHandler(index, log),
		handler.NewHealthHandler(
			handler.WithDatabase(db),
			handler.WithRedis(redisClient),
		),
	)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

func initLogger(cfg *config.Config) *logger.Logger {
	if cfg.App.Env == "production" {
		return logger.New(logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: os.Stdout,
		})
	}
	return logger.NewDevelopment()
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
