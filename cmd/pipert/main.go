// Package main implements the entry point for the PipeRT pipeline runtime.
// It loads configuration, registers the built-in routine and component types,
// optionally builds and runs a topology, and serves the management API until
// it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ItamarWilf/PipeRT/component"
	"github.com/ItamarWilf/PipeRT/componentregistry"
	"github.com/ItamarWilf/PipeRT/config"
	"github.com/ItamarWilf/PipeRT/message"
	"github.com/ItamarWilf/PipeRT/metric"
	"github.com/ItamarWilf/PipeRT/natsclient"
	"github.com/ItamarWilf/PipeRT/routine"
	"github.com/ItamarWilf/PipeRT/service"
	"github.com/ItamarWilf/PipeRT/types"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "pipert"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		stop()
		os.Exit(1)
	}
}

// app is everything run builds before it blocks.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metric.MetricsRegistry
	manager *service.PipelineManager
	server  *service.Server
}

// run blocks until ctx is cancelled, then shuts the pipeline and the API down.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cliCfg, err := parseFlags(fs, args)
	if err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		fs.SetOutput(stdout)
		printDetailedHelp(fs)
		return nil
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	logger.Info("Starting PipeRT",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	if err := a.start(); err != nil {
		_ = a.shutdown()
		return err
	}

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	if err := a.shutdown(); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("PipeRT shutdown complete")
	return nil
}

// loadConfig layers the config file, the environment and the command line.
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
	if cliCfg.AutoRun {
		cfg.Pipeline.AutoRun = true
	}
	if cliCfg.ShutdownTimeout > 0 {
		cfg.Pipeline.StopTimeout = cliCfg.ShutdownTimeout
	}
	if cliCfg.TopologyPath != "" {
		topo, err := config.LoadTopologyFile(cliCfg.TopologyPath)
		if err != nil {
			return nil, fmt.Errorf("load topology: %w", err)
		}
		cfg.Topology = topo
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func natsClientConfig(c config.NATSConfig) natsclient.Config {
	return natsclient.Config{
		MaxReconnects:    c.MaxReconnects,
		ReconnectWait:    c.ReconnectWait,
		PingInterval:     c.PingInterval,
		Timeout:          c.Timeout,
		DrainTimeout:     c.DrainTimeout,
		CircuitThreshold: c.CircuitThreshold,
		MaxBackoff:       c.MaxBackoff,
		ConnectAttempts:  c.ConnectAttempts,
	}
}

// buildApp creates the registries, the manager and the API server.
func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.Metrics.Enabled {
		a.metrics = metric.NewMetricsRegistry()
	}

	components := component.NewRegistry()
	routines := routine.NewRegistry()
	err := componentregistry.Register(components, routines, componentregistry.Options{
		NATSURL:    cfg.NATS.URL,
		NATSDialer: natsclient.NewDialer(natsClientConfig(cfg.NATS)),
		RedisURL:   cfg.Redis.URL,
		OutputDir:  cfg.Pipeline.OutputDir,
	})
	if err != nil {
		return nil, fmt.Errorf("register types: %w", err)
	}
	logger.Info("Built-in types registered",
		"components", components.Types(),
		"routines", routines.Types())

	deps := component.Dependencies{
		Routines:        routines,
		MetricsRegistry: a.metrics,
		Collector:       metric.CollectorFor(a.metrics),
		Generator:       message.NewGenerator(message.WithTerminals(cfg.Pipeline.Terminals...)),
		Logger:          logger,
		QueueCapacity:   cfg.Pipeline.QueueCapacity,
	}
	a.manager = service.NewPipelineManager(components, deps,
		service.WithLogger(logger),
		service.WithStopTimeout(cfg.Pipeline.StopTimeout))

	if cfg.HTTP.Enabled {
		serverCfg := service.DefaultServerConfig()
		serverCfg.Addr = cfg.HTTP.Addr
		serverCfg.APIPrefix = cfg.HTTP.APIPrefix
		serverCfg.MetricsPath = cfg.Metrics.Path
		serverCfg.Info.Version = Version
		a.server = service.NewServer(serverCfg, a.manager, a.metrics, logger)
	}
	return a, nil
}

// start builds the configured topology, runs it when asked to, and starts the
// API server.
func (a *app) start() error {
	if a.cfg.Topology != nil {
		resp := a.manager.SetupComponents(a.cfg.Topology)
		if !resp.Succeeded() {
			return fmt.Errorf("setup topology: %s", describeFailures(resp))
		}
		a.logger.Info("Topology set up", "components", a.manager.ComponentNames())
	}

	if a.cfg.Pipeline.AutoRun {
		if err := a.manager.RunAll(); err != nil {
			return fmt.Errorf("run components: %w", err)
		}
		a.logger.Info("Pipeline running", "components", len(a.manager.ComponentNames()))
	}

	if a.server != nil {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("start HTTP server: %w", err)
		}
	}
	return nil
}

// shutdown stops the API first so no new commands arrive, then the pipeline.
func (a *app) shutdown() error {
	var serverErr error
	if a.server != nil {
		serverErr = a.server.Stop(orDefault(a.cfg.HTTP.ShutdownTimeout, 5*time.Second))
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		orDefault(a.cfg.Pipeline.StopTimeout, service.DefaultStopTimeout))
	defer cancel()
	start := time.Now()
	if err := a.manager.Shutdown(ctx); err != nil {
		a.logger.Error("Error stopping components", "error", err)
		return err
	}
	a.logger.Debug("Components stopped", "duration_ms", time.Since(start).Milliseconds())
	return serverErr
}

func describeFailures(resp types.SetupResponse) string {
	if r, ok := resp.Single(); ok {
		return r.Message
	}
	var msgs []string
	for _, r := range resp.List() {
		if !r.Succeeded {
			msgs = append(msgs, r.Message)
		}
	}
	if len(msgs) == 0 {
		return "unknown failure"
	}
	return strings.Join(msgs, "; ")
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
