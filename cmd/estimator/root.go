package main

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/estimator/internal/config"
	"github.com/Simplici0/estimator/internal/db"
	"github.com/Simplici0/estimator/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "estimator",
		Short: "Price contractor jobs and manage the estimator database",
		Long: `estimator prices a job from the static rate table and administers the
database used by the estimator server.

Examples:
  estimator estimate --trade plumbing --size medium --state OH --tax 0.0875
  estimator estimate --trade hvac --size large --margin 30 --format json
  estimator trades
  estimator migrate`,
		SilenceUsage: true,
	}

	root.AddCommand(newEstimateCmd(), newTradesCmd(), newMigrateCmd(), newSeedCmd())
	return root
}

// openDatabase loads the environment configuration and connects to the configured database.
func openDatabase(ctx context.Context) (config.Config, *sqlx.DB, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	database, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN, logger, db.Options{})
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, database, logger, nil
}
