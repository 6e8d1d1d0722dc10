package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	TopologyPath    string
	LogLevel        string
	LogFormat       string
	Debug           bool
	AutoRun         bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}

	// Flags fall back to environment variables, then to built-in defaults.
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("PIPERT_CONFIG", ""),
		"Path to a YAML configuration file (env: PIPERT_CONFIG)")

	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("PIPERT_CONFIG", ""),
		"Path to a YAML configuration file (env: PIPERT_CONFIG)")

	fs.StringVar(&cfg.TopologyPath, "topology",
		getEnv("PIPERT_TOPOLOGY", ""),
		"Path to a topology file set up at startup (env: PIPERT_TOPOLOGY)")

	fs.StringVar(&cfg.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides the config file)")

	fs.StringVar(&cfg.LogFormat, "log-format", "",
		"Log format: json, text (overrides the config file)")

	fs.BoolVar(&cfg.Debug, "debug",
		getEnvBool("PIPERT_DEBUG", false),
		"Enable debug logging (env: PIPERT_DEBUG)")

	fs.BoolVar(&cfg.AutoRun, "run", false,
		"Run every component once the topology is set up")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("PIPERT_SHUTDOWN_TIMEOUT", 0),
		"Graceful shutdown timeout, 0 uses the config file (env: PIPERT_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() {
		printDetailedHelp(fs)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if cfg.TopologyPath != "" {
		if _, err := os.Stat(cfg.TopologyPath); err != nil {
			return fmt.Errorf("topology file not found: %s", cfg.TopologyPath)
		}
	}

	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	out := fs.Output()
	_, _ = fmt.Fprintf(out, `%s - pipeline runtime for real-time video processing

Usage: %s [options]

Options:
`, appName, fs.Name())
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(out, `
Examples:
  # Start the management API with an empty pipeline
  %s

  # Build a pipeline from a topology file and run it
  %s --topology=pipelines/display.yaml --run

  # Run with environment variables
  export PIPERT_CONFIG=/etc/pipert/config.yaml
  export PIPERT_REDIS_URL=redis://redis:6379/0
  %s

  # Validate configuration only
  %s --config=config.yaml --validate

Version: %s
Build: %s
`, fs.Name(), fs.Name(), fs.Name(), fs.Name(), Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
