// cmd/analyzer-service/main.go
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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"usability-workers/internal/analysis/orchestrator"
	"usability-workers/internal/analysis/report"
	"usability-workers/internal/api"
	"usability-workers/internal/common/camunda"
	"usability-workers/internal/common/config"
	"usability-workers/internal/common/database"
	"usability-workers/internal/common/logger"
	"usability-workers/internal/common/observability"
	ua "usability-workers/internal/workers/usability/usability-analysis"
	"usability-workers/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console", "stdout")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting usability analyzer...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.Bool("mockedServices", cfg.Analysis.UseMockedServices),
	)

	obs := observability.New(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		TracingEnabled: cfg.Observability.TracingEnabled,
	}, log)
	defer func() {
		if err := obs.Shutdown(); err != nil {
			zapLog.Warn("observability shutdown", zap.Error(err))
		}
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	checks := map[string]api.ReadinessCheck{}

	// --- Init Redis (image cache) with retry ---
	var imageCache *database.RedisClient
	if cfg.Database.Redis.Enabled {
		redisClient := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		imageCache = redisClient
		checks["redis"] = redisClient.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- Init PostgreSQL (report history) with retry ---
	var store *report.Store
	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		store = report.NewStore(pg.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("report schema setup failed", zap.Error(err))
		}
		checks["postgres"] = pg.Ping
		zapLog.Info("PostgreSQL connected successfully")
	}

	models, err := registry.LoadOrDefault(cfg.Analysis.RegistryPath)
	if err != nil {
		zapLog.Fatal("model registry load failed", zap.Error(err))
	}
	if !models.Has(cfg.Analysis.DefaultModelID) {
		zapLog.Fatal("default model is not in the model registry", zap.String("model", cfg.Analysis.DefaultModelID))
	}

	// --- Analysis pipeline ---
	deps := orchestrator.BuildDependencies(cfg, imageCache, log)
	opts := orchestrator.OptionsFromConfig(cfg)
	runOpts := []orchestrator.Option{orchestrator.WithObservability(obs)}

	recorderDone := make(chan struct{})
	if store != nil {
		recorder := report.NewRecorder(store, log)
		go func() {
			defer close(recorderDone)
			recorder.Run(ctx)
		}()
		runOpts = append(runOpts, orchestrator.WithSettleHook(recorder.Enqueue))
	} else {
		close(recorderDone)
	}

	analyzer := orchestrator.New(deps, opts, log, runOpts...)

	// --- Zeebe worker ---
	var workers []*camunda.Worker
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(camunda.ConfigFrom(cfg.Camunda))
			if err != nil && !camunda.IsRetryable(err) {
				zapLog.Error("zeebe error is not transient", zap.Error(err))
			}
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe client connected successfully")

		if w := startWorker(zeebe, cfg, deps, opts, runOpts, log, zapLog); w != nil {
			workers = append(workers, w)
		}
	}

	// --- HTTP API ---
	gin.SetMode(cfg.Server.GinMode)
	handlers := api.NewHandlers(analyzer, reportReader(store), models, checks, log)
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewRouter(handlers, log),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}
	stop()

	select {
	case <-recorderDone:
	case <-shutdownCtx.Done():
		zapLog.Warn("report recorder did not flush before shutdown deadline")
	}

	zapLog.Info("Usability analyzer stopped gracefully")
}

func startWorker(
	zeebe *camunda.Client,
	cfg *config.Config,
	deps orchestrator.Dependencies,
	opts orchestrator.Options,
	runOpts []orchestrator.Option,
	log logger.Logger,
	zapLog *zap.Logger,
) *camunda.Worker {
	wcfg := config.GetWorkerConfig(cfg, ua.TaskType)
	if !wcfg.Enabled {
		zapLog.Info("worker disabled", zap.String("taskType", ua.TaskType))
		return nil
	}

	handlerCfg := ua.DefaultConfig()
	handlerCfg.MaxJobsActive = wcfg.MaxJobsActive
	if wcfg.Timeout > 0 {
		handlerCfg.Timeout = config.GetDuration(wcfg.Timeout)
	}
	if err := handlerCfg.Validate(); err != nil {
		zapLog.Fatal("invalid worker config", zap.String("taskType", ua.TaskType), zap.Error(err))
	}

	handler := ua.NewHandler(handlerCfg, func() ua.Runner {
		return orchestrator.New(deps, opts, log, runOpts...)
	}, log)

	return camunda.StartWorker(zeebe.GetClient(), camunda.WorkerOptions{
		TaskType:      ua.TaskType,
		MaxJobsActive: handlerCfg.MaxJobsActive,
		Timeout:       handlerCfg.Timeout,
	}, handler.Handle, log)
}

// reportReader avoids handing the API a typed nil store.
func reportReader(store *report.Store) api.ReportReader {
	if store == nil {
		return nil
	}
	return store
}
