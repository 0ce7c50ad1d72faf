package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/summerlabs/notifai/internal/contacts"
)

var resyncContactsCmd = &cobra.Command{
	Use:   "resync-contacts [vcard-file]",
	Short: "Apply contact display names from a vCard export",
	Long: `Parse a vCard export and apply display names to known senders.

Sender records are matched by canonical phone number. Senders are never
created by a resync; they appear when their first message is ingested.
With no argument, the configured contacts.vcard_path is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Contacts.VCardPath
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no vCard file given and contacts.vcard_path not configured")
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		syncer := contacts.NewSyncer(s, cfg.Device.Region).WithLogger(logger)
		updated, err := syncer.ResyncFile(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("resync contacts: %w", err)
		}

		fmt.Printf("Updated %d sender display names from %s\n", updated, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resyncContactsCmd)
}
