package main

import (
	"github.com/spf13/cobra"

	"github.com/musicmind/academy/go/internal/config"
	"github.com/musicmind/academy/go/internal/presentation/store/postgres"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres session table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := postgres.Migrate(cmd.Context(), cfg.DB.DSN()); err != nil {
				return err
			}
			_, _ = cmd.OutOrStdout().Write([]byte("migration completed\n"))
			return nil
		},
	}
}
