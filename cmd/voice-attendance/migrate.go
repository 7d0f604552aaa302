package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/voice-attendance-api/pkg/config"
	"github.com/noah-isme/voice-attendance-api/pkg/database"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logr, err := bootstrap()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			db, err := database.NewPostgres(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close() //nolint:errcheck

			opts := database.MigrateOptions{Vector: cfg.Voice.MatchBackend == config.MatchBackendPGVector}
			if err := database.Migrate(cmd.Context(), db, opts); err != nil {
				return err
			}
			logr.Sugar().Infow("schema migrated", "vector", opts.Vector)
			return nil
		},
	}
}
