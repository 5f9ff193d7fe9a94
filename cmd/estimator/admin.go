package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/estimator/internal/migrations"
	"github.com/Simplici0/estimator/internal/seed"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, database, logger, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()
			defer func() { _ = logger.Sync() }()

			if err := migrations.Up(ctx, database.DB, cfg.DBDriver, logger); err != nil {
				return err
			}
			version, err := migrations.Version(ctx, database.DB, cfg.DBDriver)
			if err != nil {
				return err
			}
			logger.Info("migrations applied", zap.Int64("version", version))
			fmt.Fprintf(cmd.OutOrStdout(), "database at version %d\n", version)
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin user and default settings",
		Long: `seed inserts the admin user from ADMIN_EMAIL and ADMIN_PASSWORD, the default
markup settings and the regional tax table. Existing rows are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, database, logger, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()
			defer func() { _ = logger.Sync() }()

			stats, err := seed.Run(ctx, database, seed.Config{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword})
			if err != nil {
				return err
			}
			logger.Info("seed complete", zap.Int("inserts", stats.Inserts))
			fmt.Fprintf(cmd.OutOrStdout(), "seed complete: %d inserts\n", stats.Inserts)
			return nil
		},
	}
}
