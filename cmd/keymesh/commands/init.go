package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"keymesh/internal/crypto"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate the device identity and initial pre-keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			id, err := wire.Identity.Generate(cmd.Context(), passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Identity created.\nDevice:      %s\nFingerprint: %s\n",
				id.DeviceID, crypto.Fingerprint(id.XPub.Slice()))
			return nil
		},
	}
}
