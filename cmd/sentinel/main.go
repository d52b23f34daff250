// Package main is the entry point for the swap sentinel.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/swap-sentinel/business/blockchain"
	blockchainDI "github.com/fd1az/swap-sentinel/business/blockchain/di"
	blockchainDomain "github.com/fd1az/swap-sentinel/business/blockchain/domain"
	"github.com/fd1az/swap-sentinel/business/monitor"
	monitorDI "github.com/fd1az/swap-sentinel/business/monitor/di"
	"github.com/fd1az/swap-sentinel/business/notify"
	"github.com/fd1az/swap-sentinel/business/pricing"
	"github.com/fd1az/swap-sentinel/business/swap"
	swapDI "github.com/fd1az/swap-sentinel/business/swap/di"
	swapDomain "github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apm"
	"github.com/fd1az/swap-sentinel/internal/config"
	"github.com/fd1az/swap-sentinel/internal/health"
	"github.com/fd1az/swap-sentinel/internal/logger"
	"github.com/fd1az/swap-sentinel/internal/metrics"
	"github.com/fd1az/swap-sentinel/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// moduleStopTimeout must stay under shutdownTimeout.
const moduleStopTimeout = 10 * time.Second

// namedModule pairs a module with the startup step the dashboard shows.
type namedModule struct {
	step   string
	module monolith.Module
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	swapFlag := flag.String("swap", "", "One-off swap: in,out,amount[,slippage] (assets are 0x addresses or \"eth\")")
	dryRun := flag.Bool("dry-run", true, "Simulate the -swap request without broadcasting")
	flag.Parse()

	if *showVersion {
		fmt.Printf("swap-sentinel %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	var oneOff *swapDomain.SwapParams
	if *swapFlag != "" {
		p, err := parseSwapFlag(*swapFlag, *dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: -swap: %v\n", err)
			os.Exit(2)
		}
		oneOff = &p
	}

	// TUI is the default, CLI is for debugging and scripting
	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, cancel, *configPath, tuiMode, oneOff); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, configPath string, tuiMode bool, oneOff *swapDomain.SwapParams) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set TUI mode in config so modules pick their reporters
	cfg.TUIMode = tuiMode

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
		// In TUI mode, suppress logs (discard output)
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting swap sentinel",
			"version", version,
			"environment", cfg.App.Environment,
			"chain_id", cfg.Ethereum.ChainID,
		)
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := setupTelemetry(ctx, cfg.Telemetry, log)
		if err != nil {
			return fmt.Errorf("failed to set up telemetry: %w", err)
		}
		defer shutdown()
	}

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Modules in dependency order
	modules := []namedModule{
		{"ethereum", &blockchain.Module{}},
		{"pricing", &pricing.Module{}},
		{"swap", &swap.Module{}},
		{"notify", &notify.Module{}},
		{"monitor", &monitor.Module{}},
	}
	for _, m := range modules {
		if err := mono.RegisterModules(m.module); err != nil {
			return fmt.Errorf("failed to register modules: %w", err)
		}
	}

	healthServer := health.NewServer(cfg.Health.Port, version)
	if err := healthServer.Start(func(err error) {
		log.Error(context.Background(), "health server stopped", "error", err)
	}); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Health.Port, "admin", cfg.Health.AdminEnabled)
	}
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		healthServer.Stop(stopCtx)
	}()

	app := &application{
		cfg:    cfg,
		mono:   mono,
		log:    log,
		health: healthServer,
		oneOff: oneOff,
	}

	if tuiMode {
		return runTUI(ctx, cancel, app, modules)
	}
	return runCLI(ctx, cancel, app, modules)
}

// application holds what the run modes share once modules are registered.
type application struct {
	cfg    *config.Config
	mono   *monolith.App
	log    logger.LoggerInterface
	health *health.Server
	oneOff *swapDomain.SwapParams
}

// start runs every module's Startup, then wires health checks and admin
// endpoints and starts the monitor. step is told about each module.
func (a *application) start(ctx context.Context, modules []namedModule, step func(name string, err error)) error {
	for _, m := range modules {
		err := a.mono.StartModules(ctx, m.module)
		if step != nil {
			step(m.step, err)
		}
		if err != nil {
			return fmt.Errorf("failed to start %s: %w", m.step, err)
		}
	}

	a.registerChecks()

	if a.cfg.Monitor.Enabled {
		if err := monitorDI.GetMonitor(a.mono.Services()).Start(ctx); err != nil {
			return fmt.Errorf("failed to start monitor: %w", err)
		}
	}
	return nil
}

// stop shuts modules down in reverse start order: the monitor stops
// producing requests before the notification queue drains.
func (a *application) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), moduleStopTimeout)
	defer cancel()
	if err := a.mono.StopModules(ctx); err != nil {
		a.log.Warn(ctx, "unclean shutdown", "error", err)
	}
}

func (a *application) registerChecks() {
	sr := a.mono.Services()
	svc := swapDI.GetService(sr)
	chain := blockchainDI.GetBlockchainService(sr)

	a.health.RegisterCheck("ethereum", func(context.Context) (bool, string) {
		state := chain.ConnectionState()
		return state == blockchainDomain.StateConnected, string(state)
	})
	a.health.RegisterCheck("governor", func(context.Context) (bool, string) {
		g := svc.Governor()
		if g.State() == swapDomain.GovernorEmergencyStopped {
			return false, "emergency stopped: " + g.StopReason()
		}
		return true, g.State().String()
	})
	a.health.RegisterCheck("signer", func(context.Context) (bool, string) {
		if err := svc.Configured(); err != nil {
			return false, err.Error()
		}
		return true, svc.SignerAddress().Hex()
	})

	if a.cfg.Health.AdminEnabled {
		a.health.EnableAdmin(svc.Governor(), func() any { return svc.Stats() })
	}
}

// executeOneOff submits the -swap request. The result reaches the
// registered sinks like any other.
func (a *application) executeOneOff(ctx context.Context) swapDomain.ExecutionResult {
	svc := swapDI.GetService(a.mono.Services())
	return svc.ExecuteParams(ctx, *a.oneOff)
}

func runCLI(ctx context.Context, cancel context.CancelFunc, a *application, modules []namedModule) error {
	if err := a.start(ctx, modules, nil); err != nil {
		return err
	}
	defer a.stop()

	a.log.Info(ctx, "all modules started")

	if a.oneOff != nil {
		res := a.executeOneOff(ctx)
		if !a.cfg.Monitor.Enabled {
			cancel()
			if !res.Success {
				return fmt.Errorf("swap %s: %w", res.Stage, res.Err)
			}
			return nil
		}
	}

	<-ctx.Done()
	a.log.Info(ctx, "shutting down")
	return nil
}

// setupTelemetry installs the trace and meter providers and starts the
// Prometheus endpoint. The returned func flushes and stops them.
func setupTelemetry(ctx context.Context, cfg config.TelemetryConfig, log logger.LoggerInterface) (func(), error) {
	headers, err := apm.ParseHeaders(cfg.OTLPHeaders)
	if err != nil {
		return nil, err
	}

	tp, err := apm.NewTraceProvider(ctx, apm.Config{
		ServiceName: cfg.ServiceName,
		Version:     version,
		Exporter:    apm.Exporter(cfg.TraceExporter),
		Endpoint:    cfg.OTLPEndpoint,
		Headers:     headers,
		Insecure:    cfg.OTLPInsecure,
		SampleRatio: cfg.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "tracing initialized", "exporter", cfg.TraceExporter, "endpoint", cfg.OTLPEndpoint)

	mcfg := metrics.Config{
		ServiceName:  cfg.ServiceName,
		Prometheus:   cfg.PrometheusPort > 0,
		OTLPHeaders:  headers,
		OTLPInsecure: cfg.OTLPInsecure,
	}
	if cfg.OTLPMetrics {
		mcfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	mp, err := metrics.NewMeterProvider(ctx, mcfg)
	if err != nil {
		tp.Shutdown(context.Background())
		return nil, err
	}

	var promServer *metrics.Server
	if mcfg.Prometheus {
		promServer, err = metrics.Serve(cfg.PrometheusPort, func(err error) {
			log.Error(context.Background(), "metrics server stopped", "error", err)
		})
		if err != nil {
			log.Warn(ctx, "failed to start metrics server", "error", err)
		} else {
			log.Info(ctx, "prometheus metrics server started", "port", cfg.PrometheusPort)
		}
	}

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		promServer.Shutdown(stopCtx)
		mp.Shutdown(stopCtx)
		tp.Shutdown(stopCtx)
	}, nil
}
