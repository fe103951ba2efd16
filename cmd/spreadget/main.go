// Package main is the entry point for the spreadget orderbook aggregator.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/spreadget/business/aggregator"
	aggregatorDI "github.com/fd1az/spreadget/business/aggregator/di"
	"github.com/fd1az/spreadget/business/marketdata"
	marketdataApp "github.com/fd1az/spreadget/business/marketdata/app"
	marketdataDI "github.com/fd1az/spreadget/business/marketdata/di"
	"github.com/fd1az/spreadget/business/stream"
	streamDI "github.com/fd1az/spreadget/business/stream/di"
	"github.com/fd1az/spreadget/internal/apm"
	"github.com/fd1az/spreadget/internal/config"
	"github.com/fd1az/spreadget/internal/health"
	"github.com/fd1az/spreadget/internal/logger"
	"github.com/fd1az/spreadget/internal/metrics"
	"github.com/fd1az/spreadget/internal/monolith"
	"github.com/fd1az/spreadget/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Parse flags; the market symbol is the sole positional argument.
	configPath := flag.String("config", "", "Path to configuration file")
	address := flag.String("address", "", "Address to serve summary streams on (default 0.0.0.0:54321)")
	tuiMode := flag.Bool("tui", false, "Run the terminal dashboard alongside the aggregator")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("spreadget %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !*tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, flag.Arg(0), *address, *tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, symbol, address string, tuiMode bool) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// CLI overrides
	if symbol != "" {
		cfg.Market.Symbol = symbol
	}
	if address != "" {
		cfg.Stream.Address = address
	}
	cfg.Stream.TUIMode = tuiMode

	// Setup logger (suppressed in TUI mode so log lines don't fight the view)
	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var log *logger.Logger
	if tuiMode {
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting spreadget",
			"version", version,
			"environment", cfg.App.Environment,
			"symbol", cfg.Market.Symbol,
		)
	}

	// Initialize observability if enabled
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "provider", "zipkin", "endpoint", cfg.Telemetry.OTLPEndpoint)

		if _, err := metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		); err != nil {
			log.Warn(ctx, "metrics provider init failed", "error", err)
		} else {
			port := cfg.Telemetry.PrometheusPort
			if port == 0 {
				port = 9090
			}
			go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
			log.Info(ctx, "prometheus metrics server started", "port", port)
		}
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Create monolith (application container)
	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}

	// Define modules in dependency order
	modules := []monolith.Module{
		&marketdata.Module{}, // Must be first - owns the feed supervisor
		&aggregator.Module{}, // Consumes the feed update channel
		&stream.Module{},     // Serves the merged summaries
	}

	// Register all module services
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	// Health checks reflect the feed supervisor and the stream facade.
	sup := marketdataDI.GetSupervisor(mono.Services())
	svc := aggregatorDI.GetService(mono.Services())

	healthServer := health.NewServer(cfg.Health.Port, version)
	healthServer.RegisterCheck("feeds", func(context.Context) (bool, string) {
		if sup.Healthy() {
			return true, ""
		}
		return false, "one or more feeds have stopped"
	})
	healthServer.RegisterCheck("stream", func(context.Context) (bool, string) {
		if svc.Closed() {
			return false, "summary stream closed"
		}
		return true, ""
	})
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else if !tuiMode {
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		healthServer.Stop(shutdownCtx)
		streamDI.GetServer(mono.Services()).Stop(shutdownCtx)
	}()

	if tuiMode {
		return runTUI(ctx, cfg.Market.Symbol, streamDI.GetServer(mono.Services()).Addr(), sup)
	}

	return runHeadless(ctx, sup, log)
}

// runHeadless blocks until every feed has stopped. A terminal feed failure
// becomes a non-zero exit so an external orchestrator restarts the whole
// process; a signal-driven shutdown exits cleanly.
func runHeadless(ctx context.Context, sup *marketdataApp.Supervisor, log logger.LoggerInterface) error {
	err := sup.Wait(ctx)
	if err != nil {
		return fmt.Errorf("feed supervisor: %w", err)
	}

	log.Info(ctx, "all feeds stopped, shutting down")
	return nil
}

// runTUI shows the dashboard while the aggregator runs in the same
// process; the dashboard is a plain stream subscriber over loopback.
func runTUI(ctx context.Context, symbol, streamAddr string, sup *marketdataApp.Supervisor) error {
	p := tea.NewProgram(ui.New(symbol), tea.WithAltScreen())
	ui.Program = p

	clientCtx, clientCancel := context.WithCancel(ctx)
	defer clientCancel()

	go ui.NewClient(streamAddr).Run(clientCtx)

	// Surface terminal feed failures after the dashboard exits.
	errCh := make(chan error, 1)
	go func() {
		errCh <- sup.Wait(ctx)
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	clientCancel()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("feed supervisor: %w", err)
		}
		return nil
	default:
		return nil
	}
}
