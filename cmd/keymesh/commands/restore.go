package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"keymesh/internal/domain"
)

func restoreCmd() *cobra.Command {
	var in string
	var password string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore key state from a backup onto this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if password == "" {
				return fmt.Errorf("backup password required (--backup-password)")
			}
			raw, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			var blob domain.BackupBlob
			if err := json.Unmarshal(raw, &blob); err != nil {
				return fmt.Errorf("not a backup file: %w", err)
			}

			state, err := wire.Backup.Restore(blob, password)
			if err != nil {
				return err
			}
			if err := wire.Backup.Install(cmd.Context(), passphrase, state); err != nil {
				return err
			}
			fmt.Printf("Restored device %s: %d pairwise, %d group sessions.\n",
				state.Identity.DeviceID, len(state.Pairwise), len(state.Groups))
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "keymesh-backup.json", "backup file")
	cmd.Flags().StringVar(&password, "backup-password", "", "password decrypting the backup")
	return cmd
}
