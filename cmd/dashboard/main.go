// cmd/dashboard/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"passos-predictor/internal/batch"
	"passos-predictor/internal/common/camunda"
	"passos-predictor/internal/common/config"
	commonhttp "passos-predictor/internal/common/http"
	"passos-predictor/internal/common/logger"
	"passos-predictor/internal/common/metrics"
	"passos-predictor/internal/common/observability"
	"passos-predictor/internal/inference"
	"passos-predictor/internal/predictor"
	"passos-predictor/internal/web"
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

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dashboard...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()
	if cfg.Tracing.Enabled {
		if err := obs.EnableTracing(cfg.App.Name, cfg.Tracing.CollectorEndpoint, cfg.Tracing.SampleRatio); err != nil {
			zapLog.Error("tracing disabled", zap.Error(err))
		} else {
			zapLog.Info("Tracing enabled", zap.String("collector", cfg.Tracing.CollectorEndpoint))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := initDependencies(ctx, cfg, zapLog, log)
	defer deps.Close()

	// --- Pipeline, loaded once for the whole process ---
	loader := inference.NewLoader(
		cfg.Model.Path,
		cfg.Model.MetadataPath,
		commonhttp.NewClient(millis(cfg.Model.FetchTimeout)),
		log,
	)
	if snap := loader.Load(ctx); snap.Loaded() {
		metrics.ModelLoaded.Set(1)
	} else {
		metrics.ModelLoaded.Set(0)
		zapLog.Warn("Serving without a model; predictions are disabled", zap.String("path", cfg.Model.Path))
	}

	pred := predictor.NewService(loader, log,
		predictor.WithCache(deps.cache),
		predictor.WithStore(deps.store),
		predictor.WithObservability(obs),
	)
	batchSvc := batch.NewService(loader, log,
		batch.WithStore(deps.store),
		batch.WithIndexer(deps.indexer),
		batch.WithNotifier(deps.notifier),
		batch.WithObservability(obs),
	)

	// --- Zeebe job worker ---
	if cfg.Camunda.Enabled {
		if stopWorker := startPredictionWorker(cfg.Camunda, camunda.NewClient, pred, deps.checks, zapLog, log); stopWorker != nil {
			defer stopWorker()
		}
	}

	// --- Dashboard ---
	srv, err := web.NewServer(pred, batchSvc, deps.store, web.Options{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		PreviewRows:    cfg.Upload.PreviewRows,
		UploadTTL:      time.Duration(cfg.Upload.Retention) * time.Second,
		ReadyChecks:    deps.checks,
	}, obs, log)
	if err != nil {
		zapLog.Fatal("dashboard init failed", zap.Error(err))
	}
	go srv.Uploads().Run(ctx, time.Minute)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srv.Handler(),
		ReadTimeout:  millis(cfg.Server.ReadTimeout),
		WriteTimeout: millis(cfg.Server.WriteTimeout),
	}

	zapLog.Info("Dashboard listening", zap.String("address", cfg.Server.Address))
	if err := web.ListenAndServe(ctx, httpServer, millis(cfg.Server.ShutdownTimeout)); err != nil {
		zapLog.Error("Dashboard server failed", zap.Error(err))
	}

	zapLog.Info("Dashboard stopped gracefully")
}
