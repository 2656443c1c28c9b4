package main

import (
	"fmt"

	"github.com/bookstore/services/reviews/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, database, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()
		defer database.Close()

		log.Info("Running database migrations...")
		if err := db.RunMigrations(database); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("Migrations complete")
		return nil
	},
}
