package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/summerlabs/notifai/internal/notify"
	"github.com/summerlabs/notifai/internal/pipeline"
	"github.com/summerlabs/notifai/internal/store"
)

var (
	ingestJobName string
	ingestQuiet   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run message ingestion to completion",
	Long: `Run one ingestion pass over the configured device source.

Each message is resolved to a sender identity, classified by importance,
and stored. Progress is checkpointed per batch, so an interrupted run
resumes where it left off. Re-running after success only processes
messages newer than the last stored one.

Examples:
  notifai ingest
  notifai ingest --job nightly
  notifai ingest --quiet`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestJobName, "job", "", "job name (default: from config)")
	ingestCmd.Flags().BoolVarP(&ingestQuiet, "quiet", "q", false, "suppress progress output")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	mgr, _, err := buildManager(s, &notify.LogSink{Logger: logger})
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	jobName := ingestJobName
	if jobName == "" {
		jobName = cfg.Ingest.JobName
	}

	var stopProgress func()
	if !ingestQuiet {
		stopProgress = watchProgress(mgr.Progress())
	}

	run, err := mgr.Run(cmd.Context(), jobName)
	if stopProgress != nil {
		stopProgress()
	}
	if err != nil {
		return fmt.Errorf("run ingestion: %w", err)
	}
	if run == nil {
		return fmt.Errorf("no run recorded for job %q", jobName)
	}

	switch run.Status {
	case store.RunSucceeded:
		fmt.Printf("Ingestion complete: %d messages processed.\n", run.Total)
	case store.RunCancelled:
		fmt.Printf("Ingestion cancelled at %d/%d messages.\n", run.Processed, run.Total)
		return cmd.Context().Err()
	default:
		msg := "unknown error"
		if run.ErrorMessage.Valid {
			msg = run.ErrorMessage.String
		}
		return fmt.Errorf("ingestion failed at %d/%d: %s", run.Processed, run.Total, msg)
	}
	return nil
}

// watchProgress prints progress snapshots to stderr, rewriting a single line
// when attached to a terminal. Returns a func that stops the watcher.
func watchProgress(b *pipeline.Broadcaster) func() {
	ch, cancel := b.Subscribe()
	done := make(chan struct{})
	isTTY := term.IsTerminal(int(os.Stderr.Fd()))

	go func() {
		defer close(done)
		for snap := range ch {
			switch {
			case isTTY && snap.Status == pipeline.StatusLoading:
				fmt.Fprintf(os.Stderr, "\rProcessing %d/%d messages...", snap.Processed, snap.Total)
			case isTTY:
				fmt.Fprintf(os.Stderr, "\rProcessing %d/%d messages... %s\n", snap.Processed, snap.Total, snap.Status)
			default:
				fmt.Fprintf(os.Stderr, "progress %d/%d %s\n", snap.Processed, snap.Total, snap.Status)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
