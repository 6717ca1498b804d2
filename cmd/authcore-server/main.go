// Command authcore-server runs the authcore HTTP API.
//
// Configuration comes from AUTHCORE_* environment variables; only
// AUTHCORE_JWT_SECRET is required. Without AUTHCORE_DATABASE_URL the server
// keeps subjects in memory, which is only suitable for development.
//
//	AUTHCORE_JWT_SECRET=$(openssl rand -hex 32) \
//	AUTHCORE_REVEAL_CODES=true \
//	go run ./cmd/authcore-server
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

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/httpapi"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/internal/telemetry"
	otelexport "github.com/MrEthical07/authcore/metrics/export/otel"
	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/storage"
	"github.com/MrEthical07/authcore/storage/memory"
	"github.com/MrEthical07/authcore/storage/postgres"
)

const serviceName = "authcore"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "authcore-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, logging.Format(cfg.LogFormat))
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tp, shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	mp, shutdownMetrics, err := telemetry.SetupMetrics(ctx, serviceName, cfg.OTelEndpoint, cfg.OTelMetricsInterval)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			logger.Warn("metrics shutdown", zap.Error(err))
		}
	}()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	store, closeStore, err := openStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := authcore.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithStore(store).
		WithSender(notify.LogSender{Logger: logger.Named("notify"), RevealCodes: cfg.RevealCodes}).
		WithLogger(logger).
		WithTracerProvider(tp).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if cfg.OTelEndpoint != "" {
		stopExport, err := exportMetrics(mp, engine)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		defer stopExport()
	}

	if err := engine.Ping(ctx); err != nil {
		logger.Warn("redis unreachable at startup, rate limiting will run in-process", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.New(engine, httpapi.Options{TrustProxy: cfg.TrustProxy, Logger: logger.Named("http")}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// exportMetrics registers the engine counters and histograms with mp. The
// returned func drops the registration.
func exportMetrics(mp metric.MeterProvider, engine *authcore.Engine) (func(), error) {
	exporter, err := otelexport.NewOTelExporter(mp.Meter(serviceName), engine)
	if err != nil {
		return nil, err
	}
	return func() { _ = exporter.Close() }, nil
}

func openStore(ctx context.Context, url string, logger *zap.Logger) (storage.Store, func(), error) {
	if url == "" {
		logger.Warn("AUTHCORE_DATABASE_URL not set, using in-memory store")
		return memory.New(), func() {}, nil
	}

	pg, err := postgres.Open(ctx, url, postgres.DefaultPoolConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	return pg, func() { _ = pg.Close() }, nil
}
