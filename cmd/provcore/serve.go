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
	"github.com/spf13/cobra"

	"provcore/internal/archive"
	"provcore/internal/core"
	"provcore/internal/httpapi"
	"provcore/internal/infra/metrics"
	"provcore/internal/infra/tracing"
	"provcore/internal/logging"
	"provcore/internal/ratelimit"
	"provcore/internal/seed"
)

var auditLogPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry HTTP daemon",
	Long: `Run the registry as an HTTP daemon. Products, participants,
custody transfers, verification, live event streams, and provenance
archiving are all exposed under /v1.

Example:
  provcore serve
  provcore serve --config /etc/provcore/provcore.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&auditLogPath, "audit-log", "", "append registry audit records to this file as JSON lines")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := tracing.NewProvider(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		FilePath:    cfg.Tracing.FilePath,
		SampleRate:  cfg.Tracing.SampleRate,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder()
	}

	dispatcher := core.NewDispatcher()
	serviceOpts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithDispatcher(dispatcher),
	}
	if recorder != nil {
		serviceOpts = append(serviceOpts, core.WithMetricsRecorder(recorder))
	}
	if provider.Enabled() {
		serviceOpts = append(serviceOpts, core.WithTracer(tracing.NewAdapter(provider.Tracer())))
	}
	if auditLogPath != "" {
		auditFile, err := os.OpenFile(auditLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer auditFile.Close()
		serviceOpts = append(serviceOpts, core.WithAuditRecorder(core.NewJSONAuditRecorder(auditFile)))
	}

	store, releaseStore, err := openStore(cfg, core.WithEventSink(dispatcher))
	if err != nil {
		return err
	}
	defer releaseStore()
	service := core.NewService(store, serviceOpts...)

	if cfg.Seed.Path != "" {
		file, err := seed.Load(cfg.Seed.Path)
		if err != nil {
			return err
		}
		summary, err := seed.Apply(ctx, service, cfg.Admin, file)
		if err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		logger.Info("participant seed applied",
			"path", cfg.Seed.Path, "authorized", summary.Authorized, "skipped", summary.Skipped)
	}

	blobs, err := openBlob(ctx, cfg)
	if err != nil {
		return err
	}
	worker := archive.NewWorker(service, blobs, nil, logger)
	worker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := worker.Stop(stopCtx); err != nil {
			logger.Warn("archive worker stop", "error", err)
		}
	}()

	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case "redis":
		redisLimiter, err := ratelimit.NewRedisLimiter(
			cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisPassword, cfg.RateLimit.RedisDB, nil)
		if err != nil {
			return fmt.Errorf("init rate limiter: %w", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
	default:
		limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
	}

	var metricsHandler http.Handler
	if recorder != nil {
		metricsHandler = recorder.Handler()
	}
	api := httpapi.NewServer(httpapi.Config{
		RateLimitRequests:   cfg.RateLimit.Requests,
		RateLimitWindow:     cfg.RateLimit.Window,
		RateLimitFailClosed: cfg.RateLimit.FailClosed,
	}, httpapi.ServerDeps{
		Service:  service,
		Archiver: worker,
		Limiter:  limiter,
		Metrics:  metricsHandler,
		Logger:   logger,
	})
	defer api.Close()

	srv := &http.Server{
		Addr:        cfg.HTTP.Addr,
		Handler:     api.Handler(),
		ReadTimeout: cfg.HTTP.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("registry listening",
			"addr", cfg.HTTP.Addr, "store", cfg.Store.Driver, "blob", cfg.Blob.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	// Close live event streams first so Shutdown can drain them.
	api.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("registry stopped")
	return nil
}
