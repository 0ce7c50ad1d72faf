package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/summerlabs/notifai/internal/api"
	"github.com/summerlabs/notifai/internal/contacts"
	"github.com/summerlabs/notifai/internal/notify"
	"github.com/summerlabs/notifai/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run notifai as a daemon with scheduled ingestion",
	Long: `Run notifai as a long-running daemon.

The daemon runs in the foreground and performs:
  - HTTP API server on configured port (default: 8080)
  - Scheduled ingestion runs based on job config
  - Contact store watching with debounced resync

Configure schedules in config.toml:
  [[jobs]]
  name = "sms-ingest"
  schedule = "*/15 * * * *"   # every 15 minutes (cron format)
  enabled = true

Cron format: minute hour day-of-month month day-of-week
  Examples:
    0 2 * * *     = 2:00 AM daily
    */15 * * * *  = Every 15 minutes
    0 8,18 * * *  = 8 AM and 6 PM daily

Use Ctrl+C to stop the daemon gracefully.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	mgr, router, err := buildManager(s, &notify.LogSink{Logger: logger})
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	// Scheduler fires triggers; the manager's replace semantics make a
	// trigger landing on an in-flight run safe.
	sched := scheduler.New(func(jobName string) error {
		_, err := mgr.Trigger(jobName)
		return err
	}).WithLogger(logger)

	count, errs := sched.AddJobsFromConfig(cfg)
	for _, err := range errs {
		logger.Error("failed to schedule job", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Contacts watcher keeps display names in sync with the vCard export.
	if cfg.Contacts.VCardPath != "" {
		syncer := contacts.NewSyncer(s, cfg.Device.Region).WithLogger(logger)
		watcher := contacts.NewWatcher(cfg.Contacts.VCardPath, cfg.Contacts.Duration(), func(ctx context.Context) {
			if _, err := syncer.ResyncFile(ctx, cfg.Contacts.VCardPath); err != nil {
				logger.Warn("contacts resync failed", "error", err)
			}
		}).WithLogger(logger)

		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("contacts watcher stopped", "error", err)
			}
		}()
	}

	apiServer := api.NewServer(cfg.Server.APIPort, s, mgr, router, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil {
			serverErr <- err
		}
	}()

	fmt.Printf("notifai daemon started\n")
	fmt.Printf("  API server: http://%s\n", net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Server.APIPort)))
	fmt.Printf("  Scheduled jobs: %d\n", count)
	fmt.Printf("  Data directory: %s\n", cfg.Data.DataDir)
	fmt.Println()
	for _, status := range sched.Status() {
		fmt.Printf("  %s: next run at %s\n", status.Name, status.NextRun.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
		fmt.Println("\nShutting down...")
	case err := <-serverErr:
		logger.Error("api server error", "error", err)
		return fmt.Errorf("api server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("api server shutdown error", "error", err)
	}

	mgr.Shutdown()
	fmt.Println("Shutdown complete.")
	return nil
}
