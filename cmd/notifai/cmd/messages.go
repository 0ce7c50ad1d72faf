package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	messagesLimit  int
	messagesOffset int
	messagesJSON   bool
)

var showMessagesCmd = &cobra.Command{
	Use:   "show-messages <sender-id>",
	Short: "Show the conversation for a sender, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		senderID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid sender id %q", args[0])
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		sender, err := s.GetSender(senderID)
		if err != nil {
			return fmt.Errorf("get sender: %w", err)
		}
		if sender == nil {
			return fmt.Errorf("no sender with id %d", senderID)
		}

		messages, err := s.ListMessagesForSender(senderID, messagesLimit, messagesOffset)
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}

		if messagesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(messages)
		}

		name := sender.RawAddress
		if sender.DisplayName.Valid && sender.DisplayName.String != "" {
			name = sender.DisplayName.String
		}
		fmt.Printf("Conversation with %s (%s)\n\n", name, sender.SenderType)

		if len(messages) == 0 {
			fmt.Println("No messages.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tDIR\tTIER\tREAD\tBODY")
		for _, m := range messages {
			read := " "
			if !m.IsRead {
				read = "*"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
				m.ID,
				time.UnixMilli(m.DateMs).Format("2006-01-02 15:04"),
				m.Direction, m.ImportanceTier, read, truncate(m.Body, 60))
		}
		return w.Flush()
	},
}

var markReadCmd = &cobra.Command{
	Use:   "mark-read <sender-id>",
	Short: "Mark all messages from a sender as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		senderID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid sender id %q", args[0])
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.MarkSenderRead(senderID); err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
		fmt.Printf("Marked sender %d as read.\n", senderID)
		return nil
	},
}

func init() {
	showMessagesCmd.Flags().IntVar(&messagesLimit, "limit", 50, "maximum messages to show")
	showMessagesCmd.Flags().IntVar(&messagesOffset, "offset", 0, "pagination offset")
	showMessagesCmd.Flags().BoolVar(&messagesJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(showMessagesCmd)
	rootCmd.AddCommand(markReadCmd)
}
