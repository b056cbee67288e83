package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"keymesh/internal/domain"
)

func rotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate <conversation>",
		Short: "Replace a conversation's outbound group session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			export, err := wire.Groups.Rotate(cmd.Context(), domain.ConversationID(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("Rotated. New session: %s\n", export.SessionID)
			fmt.Println("warning: no fan-out was performed; participants cannot decrypt new")
			fmt.Println("messages until the host shares the new session key with them.")
			return nil
		},
	}
}
