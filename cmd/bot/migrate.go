package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Proton-105/budget-bot/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, _, log, err := loadConfig()
	if err != nil {
		return err
	}

	driver := database.Driver(cfg.Database.Driver)
	if !driver.IsSQL() {
		log.Info("database driver keeps no schema, nothing to migrate", slog.String("driver", string(driver)))
		return nil
	}

	db, err := database.Open(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("error closing database", slog.Any("error", cerr))
		}
	}()

	applied, err := database.NewMigrator(db, driver, log).Up(cmd.Context())
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	log.Info("database migrations applied", slog.Int("applied", applied))
	return nil
}
