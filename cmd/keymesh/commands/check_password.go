package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"keymesh/internal/services/backup"
)

var strengthLabels = [...]string{"very weak", "weak", "fair", "good", "strong"}

func checkPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-password <password>",
		Short: "Score a candidate backup password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, advice := backup.CheckPasswordStrength(args[0])
			fmt.Printf("Strength: %d/4 (%s)\n", score, strengthLabels[score])
			for _, a := range advice {
				fmt.Printf("  - %s\n", a)
			}
			return nil
		},
	}
}
