package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/tabula/pkg/config"
	"github.com/ekaya-inc/tabula/pkg/database"
	"github.com/ekaya-inc/tabula/pkg/handlers"
	"github.com/ekaya-inc/tabula/pkg/logging"
	"github.com/ekaya-inc/tabula/pkg/metrics"
	"github.com/ekaya-inc/tabula/pkg/middleware"
	"github.com/ekaya-inc/tabula/pkg/plotting"
	"github.com/ekaya-inc/tabula/pkg/repositories"
	"github.com/ekaya-inc/tabula/pkg/retry"
	"github.com/ekaya-inc/tabula/pkg/services"
	"github.com/ekaya-inc/tabula/pkg/services/workqueue"
	"github.com/ekaya-inc/tabula/pkg/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load(config.DefaultPath, Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.IsLocal() {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	connStr := cfg.Database.ConnectionString()
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            connStr,
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %s", logging.SanitizeError(err))
	}
	defer db.Close()

	if err := database.RunMigrations(connStr, logger); err != nil {
		return errors.New(logging.SanitizeError(err))
	}

	store, err := storage.NewStore(cfg.Storage.UploadDir, logger)
	if err != nil {
		return err
	}
	logger.Info("Upload storage ready", zap.String("dir", store.Dir()))

	m := metrics.New()

	fileRepo := repositories.NewDataFileRepository()
	analysisRepo := repositories.NewAnalysisRepository()
	plotRepo := repositories.NewPlotRepository()

	queue := workqueue.New(logger,
		workqueue.WithStrategy(workqueue.NewLimitedStrategy(cfg.Tasks.MaxConcurrent)),
		workqueue.WithRetryPolicy(retry.Policy{MaxAttempts: cfg.Tasks.MaxAttempts, Delay: cfg.Tasks.RetryDelay}),
		workqueue.WithRetention(cfg.Tasks.Retention),
		workqueue.WithOnUpdate(func(s workqueue.TaskSnapshot) {
			m.TaskTransition(s.Name, string(s.Status))
		}),
	)
	m.Registry().MustRegister(workqueue.NewCollector(queue, metrics.Namespace))

	fileService := services.NewFileService(fileRepo, store, db, m, logger)
	statsService := services.NewStatsService(fileService, analysisRepo, db, m, logger)
	cleaningService := services.NewCleaningService(fileService, fileRepo, analysisRepo, store, db, m, logger)
	plotService := services.NewPlotService(fileService, plotRepo, db,
		plotting.NewRenderer(cfg.Plot.Width, cfg.Plot.Height, cfg.Plot.HistogramBins), m, logger)

	mux := http.NewServeMux()
	scope := handlers.ScopeMiddleware(database.WithScope(db, logger))

	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewDataHandler(fileService, statsService, cleaningService, plotService,
		queue, database.NewScopeProvider(db), cfg.Storage.MaxUploadBytes, logger).RegisterRoutes(mux, scope)
	handlers.NewTaskHandler(queue, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", m.Handler())

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.Chain(mux, middleware.RequestMetrics(m), middleware.RequestLogger(logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting tabula", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Error("Work queue shutdown failed", zap.Error(err))
	}
	return nil
}
