// Command server runs the upload service as a single long-running HTTP
// process: load config, init the logger, construct stores, start
// serving, and wait for an interrupt or a startup/serve error.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/ditto-upload/internal/catalog/postgres"
	"github.com/marmos91/ditto-upload/internal/config"
	"github.com/marmos91/ditto-upload/internal/httpapi"
	"github.com/marmos91/ditto-upload/internal/indexstore/redis"
	"github.com/marmos91/ditto-upload/internal/logger"
	"github.com/marmos91/ditto-upload/internal/metrics"
	"github.com/marmos91/ditto-upload/internal/objectstore/s3"
	"github.com/marmos91/ditto-upload/internal/scanner"
	"github.com/marmos91/ditto-upload/internal/scheduler"
	"github.com/marmos91/ditto-upload/internal/telemetry"
	"github.com/marmos91/ditto-upload/internal/upload"
)

func main() {
	if err := run(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("configuration loaded", "port", cfg.Port, "log_level", cfg.Logging.Level)

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "ditto-upload",
		ServiceVersion: "dev",
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Profiling.Enabled,
		ServiceName:    "ditto-upload",
		ServiceVersion: "dev",
		Endpoint:       cfg.Profiling.Endpoint,
		ProfileTypes:   cfg.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("init profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	objects, err := s3.New(ctx, s3.Config{
		Endpoint:       cfg.S3.URL,
		Region:         cfg.S3.Region,
		AccessKeyID:    cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		Bucket:         cfg.S3.BucketName,
		ForcePathStyle: true,
	})
	if err != nil {
		return fmt.Errorf("build object store: %w", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	cat, err := postgres.New(ctx, postgres.Config{
		URI:         cfg.PostgresURI,
		AutoMigrate: true,
	})
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	defer cat.Close()

	index, err := redis.New(ctx, redis.Config{URL: cfg.RedisURL})
	if err != nil {
		return fmt.Errorf("build index store: %w", err)
	}
	defer func() { _ = index.Close() }()

	m := metrics.New(true)

	engine := upload.New(objects, cat, upload.Config{
		MaxParallelParts: cfg.Upload.MaxParallelParts,
		MaxPartSize:      cfg.Upload.MaxPartSize,
		Metrics:          m,
	})

	sc := scanner.New(objects, index, scanner.Config{
		Concurrency:    cfg.Scan.Concurrency,
		MaxGenerations: cfg.Scan.MaxGenerations,
		Metrics:        m,
	})

	sched := scheduler.New()
	scheduler.RegisterDefaults(sched, objects, cat, index, sc, cfg.Scan.Interval)
	sched.Start(ctx)
	defer sched.Stop()

	srv := httpapi.NewServer(cfg.Port, engine, cat, objects, m)

	logger.Info("server is running")
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("serve http: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
