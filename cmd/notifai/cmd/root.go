package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/summerlabs/notifai/internal/classify"
	"github.com/summerlabs/notifai/internal/config"
	"github.com/summerlabs/notifai/internal/device"
	"github.com/summerlabs/notifai/internal/identity"
	"github.com/summerlabs/notifai/internal/notify"
	"github.com/summerlabs/notifai/internal/pipeline"
	"github.com/summerlabs/notifai/internal/store"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "notifai",
	Short: "SMS archive and notification triage tool",
	Long: `notifai ingests messages from an exported device store, resolves each
sender to a stable identity, classifies importance, and routes
notifications by importance tier.

Message data lives in a local SQLite database with paged queries for
conversation views, unread counts, and run history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:   level,
			NoColor: os.Getenv("NO_COLOR") != "",
		}))
		slog.SetDefault(logger)

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create data directory %s: %w", cfg.Data.DataDir, err)
		}

		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// openStore opens the configured database and ensures the schema exists.
func openStore() (*store.Store, error) {
	s, err := store.Open(cfg.Data.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := s.InitSchema(); err != nil {
		s.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// buildManager wires the ingestion stack: device source, resolver,
// classifier, pipeline, and run manager, with notifications routed into the
// given sink.
func buildManager(s *store.Store, sink notify.Sink) (*pipeline.Manager, *notify.Router, error) {
	if cfg.Device.SourcePath == "" {
		return nil, nil, fmt.Errorf("no device source configured\n\nAdd to config.toml:\n\n  [device]\n  source_path = \"/path/to/sms-export.db\"")
	}

	source, err := device.OpenSQLite(cfg.Device.SourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open device source: %w", err)
	}

	resolver := identity.NewResolver(s, cfg.Device.Region).WithLogger(logger)
	classifier := classify.New().WithLogger(logger)
	router := notify.NewRouter(sink).WithLogger(logger)

	opts := pipeline.DefaultOptions()
	if cfg.Ingest.BatchSize > 0 {
		opts.BatchSize = cfg.Ingest.BatchSize
	}
	if cfg.Ingest.MaxRetries >= 0 {
		opts.MaxRetries = cfg.Ingest.MaxRetries
	}

	p := pipeline.New(s, source, resolver, classifier, opts).
		WithLogger(logger).
		WithNotifier(router)

	return pipeline.NewManager(s, p).WithLogger(logger), router, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.notifai/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
