package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the database schema",
	Long: `Initialize the notifai database with the required schema.

This command creates the tables for senders, messages, ingestion runs, and
flags. It is safe to run multiple times - tables are only created if they
don't already exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Info("initializing database", "path", cfg.Data.Database)

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		logger.Info("database initialized successfully")

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

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}
