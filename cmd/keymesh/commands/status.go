package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"keymesh/internal/domain"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show identity, pre-key and session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ok, err := wire.Identities.HasIdentity()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("No identity. Run `keymesh init` first.")
				return nil
			}
			id, err := wire.Identity.Load(passphrase)
			if err != nil {
				return err
			}

			opks, err := wire.Store.ListOneTimePreKeyPublics(ctx)
			if err != nil {
				return err
			}
			sessions, err := wire.Store.ListPairwise(ctx)
			if err != nil {
				return err
			}
			groups, err := wire.Store.ListGroups(ctx)
			if err != nil {
				return err
			}

			active := 0
			for _, s := range sessions {
				if s.State == domain.SessionActive {
					active++
				}
			}
			outbound := 0
			for _, g := range groups {
				if g.Role == domain.RoleOutbound {
					outbound++
				}
			}

			fmt.Printf("Device:            %s\n", id.DeviceID)
			fmt.Printf("One-time pre-keys: %d\n", len(opks))
			fmt.Printf("Pairwise sessions: %d (%d active)\n", len(sessions), active)
			fmt.Printf("Group sessions:    %d (%d outbound)\n", len(groups), outbound)
			return nil
		},
	}
}
