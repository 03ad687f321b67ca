package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aurawell/pulse/collector"
	"github.com/aurawell/pulse/config/adaptive"
)

var (
	listenAddr string
	configPath string
	logLevel   string
	devMode    bool
)

func main() {
	root := &cobra.Command{
		Use:   "pulse-collector",
		Short: "Ingest server for pulse metric reports",
		Long: `pulse-collector receives metric reports from instrumented sessions,
aggregates them per session and exposes the result in Prometheus format
on /metrics.`,
		RunE:         run,
		SilenceUsage: true,
	}

	root.Flags().StringVar(&listenAddr, "listen", ":9464", "address to listen on")
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&devMode, "dev", false, "enable development mode payload validation")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}

	cfg := adaptive.DefaultConfig()
	if configPath != "" {
		cfg, err = adaptive.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if devMode {
		cfg.Development = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := collector.NewServer(cfg, collector.WithServerLogger(logger))
	return server.ListenAndServe(ctx, listenAddr)
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
