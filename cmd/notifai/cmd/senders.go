package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/summerlabs/notifai/internal/store"
)

var (
	sendersImportant bool
	sendersLimit     int
	sendersOffset    int
	sendersJSON      bool
)

var listSendersCmd = &cobra.Command{
	Use:   "list-senders",
	Short: "List senders ordered by most recent message",
	Long: `List senders with their latest message, importance tier, and unread count.

Examples:
  notifai list-senders --limit 20
  notifai list-senders --important
  notifai list-senders --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		filter := store.SenderFilterAll
		if sendersImportant {
			filter = store.SenderFilterImportant
		}

		summaries, err := s.ListSenders(filter, sendersLimit, sendersOffset)
		if err != nil {
			return fmt.Errorf("list senders: %w", err)
		}

		if len(summaries) == 0 {
			fmt.Println("No senders found.")
			return nil
		}

		if sendersJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tTIER\tUNREAD\tLAST MESSAGE")
		for _, sum := range summaries {
			name := sum.RawAddress
			if sum.DisplayName.Valid && sum.DisplayName.String != "" {
				name = sum.DisplayName.String
			}
			last := time.UnixMilli(sum.LastMessageMs).Format("2006-01-02 15:04")
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s %s\n",
				sum.ID, name, sum.SenderType, sum.LastTier, sum.UnreadCount, last, truncate(sum.LastMessageBody, 40))
		}
		return w.Flush()
	},
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func init() {
	listSendersCmd.Flags().BoolVar(&sendersImportant, "important", false, "only senders with an important latest message")
	listSendersCmd.Flags().IntVar(&sendersLimit, "limit", 50, "maximum senders to list")
	listSendersCmd.Flags().IntVar(&sendersOffset, "offset", 0, "pagination offset")
	listSendersCmd.Flags().BoolVar(&sendersJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(listSendersCmd)
}
