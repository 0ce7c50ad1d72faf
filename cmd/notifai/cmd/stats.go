package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics and last run state",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.GetStats()
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		fmt.Printf("Database: %s\n", cfg.Data.Database)
		fmt.Printf("  Senders:  %d\n", stats.SenderCount)
		fmt.Printf("  Messages: %d\n", stats.MessageCount)
		fmt.Printf("  Unread:   %d\n", stats.UnreadCount)
		fmt.Printf("  Runs:     %d\n", stats.RunCount)
		fmt.Printf("  Size:     %.2f MB\n", float64(stats.DatabaseSize)/(1024*1024))

		run, err := s.LatestRun(cfg.Ingest.JobName)
		if err != nil {
			return fmt.Errorf("get latest run: %w", err)
		}
		if run == nil {
			fmt.Printf("\nJob %q has never run.\n", cfg.Ingest.JobName)
			return nil
		}

		fmt.Printf("\nLast run of %q (generation %d):\n", run.JobName, run.Generation)
		fmt.Printf("  Status:    %s\n", run.Status)
		fmt.Printf("  Progress:  %d/%d\n", run.Processed, run.Total)
		if run.ErrorMessage.Valid && run.ErrorMessage.String != "" {
			fmt.Printf("  Error:     %s\n", run.ErrorMessage.String)
		}

		done, err := s.ProcessingCompleted()
		if err == nil && done {
			fmt.Println("  Initial processing: complete")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
