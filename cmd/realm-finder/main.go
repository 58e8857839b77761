// Package main is the entry point for the realm-finder binary: the A2A
// realm finder agent behind its front door.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/polisai/realm-finder/pkg/agent"
	"github.com/polisai/realm-finder/pkg/config"
	"github.com/polisai/realm-finder/pkg/frontdoor"
	"github.com/polisai/realm-finder/pkg/logging"
	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for realm-finder
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "realm-finder",
		Short: "OCI realm finder A2A agent",
		Long: `Serves the OCI realm finder agent over the A2A protocol.

Requests under the routing prefix (default /a2a) are forwarded to the agent
with the prefix removed; the health path (default /health) is answered
locally.

The built-in realm table is a sample; list the real realms under "realms" in
a configuration file.

Example:
  A2A_BASE_URL=https://realms.example.com/a2a/ realm-finder --port 9998`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	rootCmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML or TOML)")
	rootCmd.Flags().String("host", config.DefaultHost, "Host to bind")
	rootCmd.Flags().IntP("port", "p", config.DefaultPort, "Port to listen on")
	rootCmd.Flags().StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("pretty", false, "Enable pretty console logging")
	rootCmd.Flags().Bool("metrics", false, "Serve Prometheus metrics on the admin listener")

	return rootCmd
}

// buildConfig loads the configuration file and applies explicitly set flags
// on top of it.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	path, err := flags.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("host") {
		if cfg.Server.Host, err = flags.GetString("host"); err != nil {
			return nil, fmt.Errorf("failed to get host flag: %w", err)
		}
	}
	if flags.Changed("port") {
		if cfg.Server.Port, err = flags.GetInt("port"); err != nil {
			return nil, fmt.Errorf("failed to get port flag: %w", err)
		}
	}
	if flags.Changed("log-level") {
		if cfg.Logging.Level, err = flags.GetString("log-level"); err != nil {
			return nil, fmt.Errorf("failed to get log-level flag: %w", err)
		}
	}
	if flags.Changed("pretty") {
		if cfg.Logging.Pretty, err = flags.GetBool("pretty"); err != nil {
			return nil, fmt.Errorf("failed to get pretty flag: %w", err)
		}
	}
	if flags.Changed("metrics") {
		if cfg.Metrics.Enabled, err = flags.GetBool("metrics"); err != nil {
			return nil, fmt.Errorf("failed to get metrics flag: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// newServer assembles the agent application and the front door around it.
func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*frontdoor.Server, error) {
	var metrics *frontdoor.Metrics
	if cfg.Metrics.Enabled {
		metrics = frontdoor.NewMetrics()
	}

	tracing, err := frontdoor.NewTracingManager(ctx, &cfg.Tracing, version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	app := agent.NewApplication(agent.AppConfig{
		Card:     agent.NewCard(&cfg.Agent),
		Executor: agent.NewRealmExecutor(cfg.Realms),
		Logger:   logger.With("component", "agent"),
	})

	return frontdoor.NewServer(frontdoor.ServerConfig{
		Config:   cfg,
		Delegate: app,
		Metrics:  metrics,
		Tracing:  tracing,
		Logger:   logger.With("component", "frontdoor"),
	}), nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})
	slog.SetDefault(logger)

	logger.Info("Starting realm-finder",
		"version", version,
		"addr", cfg.Server.Address(),
		"base_url", cfg.Agent.BaseURL,
		"realms", len(cfg.Realms),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := newServer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := server.Start(ctx); err != nil {
		logger.Error("Server error", "error", err)
		return err
	}

	logger.Info("Shutdown complete")
	return nil
}
