package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"keymesh/internal/services/backup"
)

func backupCmd() *cobra.Command {
	var out string
	var password string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a password-encrypted backup of all key state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return fmt.Errorf("backup password required (--backup-password)")
			}
			if score, advice := backup.CheckPasswordStrength(password); score < backup.StrengthFair {
				fmt.Fprintln(os.Stderr, "warning: weak backup password")
				for _, a := range advice {
					fmt.Fprintf(os.Stderr, "  - %s\n", a)
				}
			}

			blob, err := wire.Backup.Create(cmd.Context(), passphrase, password)
			if err != nil {
				return err
			}
			raw, err := json.Marshal(blob)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, raw, 0o600); err != nil {
				return err
			}
			fmt.Printf("Backup written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "keymesh-backup.json", "output file")
	cmd.Flags().StringVar(&password, "backup-password", "", "password encrypting the backup")
	return cmd
}
