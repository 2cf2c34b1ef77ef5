package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"walletcore.com/internal/infrastructure/logger"
	"walletcore.com/internal/infrastructure/repository"
)

var migrateCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "migrate",
	Short: "Apply the embedded schema to the configured database.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		appLogger := logger.NewLogger(cfg.Log.Level)
		if cfg.Database.DSN == "" {
			return errors.New("migrate needs database.dsn")
		}

		ctx := cmd.Context()
		pool, err := openPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer pool.Close()

		if err := repository.Migrate(ctx, pool); err != nil {
			appLogger.LogError(ctx, "Migration failed", err)
			return err
		}
		appLogger.LogInfo(ctx, "Schema migrated")
		return nil
	},
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(migrateCmd)
}
