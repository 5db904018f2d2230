package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/musicmind/academy/go/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:           "presenter",
		Short:         "Classroom presentation session sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			loaded, err := loadConfig()
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	root.AddCommand(newServeCmd(&cfg))
	root.AddCommand(newWatchCmd(&cfg))
	root.AddCommand(newControlCmd(&cfg))
	root.AddCommand(newMigrateCmd(&cfg))
	return root
}
