package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"keymesh/internal/app"
)

var (
	home       string
	passphrase string
	dbPath     string
	wire       *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:          "keymesh",
		Short:        "End-to-end encryption key lifecycle manager",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".keymesh")
			}
			cfg := app.DefaultConfig(home)
			cfg.Passphrase = passphrase
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			w, err := app.NewWire(cfg, nil, nil)
			if err != nil {
				return err
			}
			wire = w
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return nil
			}
			return wire.Close()
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.keymesh)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the identity")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default <home>/keymesh.db)")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		statusCmd(),
		rotateCmd(),
		backupCmd(),
		restoreCmd(),
		checkPasswordCmd(),
	)
	return root.Execute()
}
