// Package main is the entry point of the fxdesk pricing and deal service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fd1az/fxdesk/business/deal"
	dealDI "github.com/fd1az/fxdesk/business/deal/di"
	"github.com/fd1az/fxdesk/business/notify"
	notifyDI "github.com/fd1az/fxdesk/business/notify/di"
	"github.com/fd1az/fxdesk/business/pricing"
	pricingDI "github.com/fd1az/fxdesk/business/pricing/di"
	"github.com/fd1az/fxdesk/internal/api"
	"github.com/fd1az/fxdesk/internal/apm"
	"github.com/fd1az/fxdesk/internal/config"
	"github.com/fd1az/fxdesk/internal/health"
	"github.com/fd1az/fxdesk/internal/logger"
	"github.com/fd1az/fxdesk/internal/metrics"
	"github.com/fd1az/fxdesk/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fxdesk %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting fxdesk",
		"version", version,
		"environment", cfg.App.Environment,
		"database", cfg.Database.Driver)

	traceProvider, meterProvider, err := setupTelemetry(cfg.Telemetry, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := traceProvider.Stop(); err != nil {
			log.Warn(ctx, "trace provider shutdown failed", "error", err)
		}
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Warn(ctx, "meter provider shutdown failed", "error", err)
		}
	}()

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Define modules in dependency order
	modules := []monolith.Module{
		&pricing.Module{},
		&notify.Module{},
		&deal.Module{}, // Depends on pricing and notify
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	healthServer := health.NewServer(cfg.Health.Port, version, log)
	healthServer.RegisterCheck("database", health.DBCheck(mono.DB()))
	healthServer.Start(ctx)

	sr := mono.Services()
	deps := api.Dependencies{
		Pricer:     pricingDI.GetEngine(sr),
		Volatility: pricingDI.GetVolatilityAnalyzer(sr),
		Configs:    pricingDI.GetConfigStore(sr),
		Deals:      dealDI.GetOrchestrator(sr),
		Metrics:    meterProvider.Handler(),
	}
	if hub := notifyDI.GetHub(sr); hub != nil {
		deps.DealStream = hub
	}

	server := api.NewServer(deps, api.Config{
		Port:            cfg.HTTP.Port,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
	}, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down")
	case err = <-errCh:
		if err != nil {
			log.Error(ctx, "http server failed", "error", err)
		}
	}

	return shutdown(cfg, mono, server, healthServer, log, err)
}

// shutdown stops intake first, then lets in-flight deals finish and drains
// notifications before the database closes.
func shutdown(
	cfg *config.Config,
	mono monolith.Monolith,
	server *api.Server,
	healthServer *health.Server,
	log logger.LoggerInterface,
	runErr error,
) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn(ctx, "http server shutdown failed", "error", err)
	}

	done := make(chan struct{})
	go func() {
		dealDI.GetOrchestrator(mono.Services()).Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn(ctx, "deal executions still running at shutdown")
	}

	if err := notify.Shutdown(ctx, mono.Services()); err != nil {
		log.Warn(ctx, "notification shutdown incomplete", "error", err)
	}
	if err := healthServer.Stop(ctx); err != nil {
		log.Warn(ctx, "health server shutdown failed", "error", err)
	}
	pricingDI.GetConfigStore(mono.Services()).Close()

	log.Info(ctx, "shutdown complete")
	return runErr
}

// setupTelemetry always installs a Prometheus-backed meter provider so
// /metrics works; tracing and OTLP metric push follow telemetry.enabled.
func setupTelemetry(cfg config.TelemetryConfig, log logger.LoggerInterface) (apm.TraceProvider, metrics.MetricProvider, error) {
	metricOpts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.ServiceName),
		metrics.WithPrometheus(),
	}

	provider := apm.EmptyProvider
	if cfg.Enabled {
		provider = apm.Provider(cfg.Provider)
		if provider == apm.OTLPGRPCProvider && cfg.OTLPEndpoint != "" {
			metricOpts = append(metricOpts,
				metrics.WithOTLP(cfg.OTLPEndpoint, apm.ParseHeaders(cfg.OTLPHeaders), false))
		}
	}

	meterProvider, err := metrics.NewMetricProvider(metricOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	traceProvider, err := apm.NewTraceProvider(apm.Config{
		Provider:    provider,
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Headers:     cfg.OTLPHeaders,
	}, log)
	if err != nil {
		_ = meterProvider.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	return traceProvider, meterProvider, nil
}
