package cmd

import (
	"fmt"

	"github.com/chrismeller/mj/internal/app"
	"github.com/chrismeller/mj/internal/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateClickHouse bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the record store tables (and optionally the ClickHouse projection)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := app.Bootstrap(cfgPath)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		sqlDB, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		n, err := db.Migrate(cmd.Context(), sqlDB, cfg.Database.Driver)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", cfg.Database.Driver, err)
		}
		log.Info("migration complete", zap.String("dialect", cfg.Database.Driver), zap.Int("statements", n))

		if !migrateClickHouse {
			return nil
		}

		chDB, err := app.OpenClickHouse(cfg)
		if err != nil {
			return err
		}
		defer chDB.Close()

		n, err = db.Migrate(cmd.Context(), chDB, "clickhouse")
		if err != nil {
			return fmt.Errorf("migrate clickhouse: %w", err)
		}
		log.Info("migration complete", zap.String("dialect", "clickhouse"), zap.Int("statements", n))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateClickHouse, "clickhouse", false, "also create the client_events table in ClickHouse")
}
