package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookstore/services/reviews/internal/config"
	"github.com/bookstore/services/reviews/internal/db"
	"github.com/bookstore/services/reviews/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "bookreviewd",
	Short: "Book review catalog service",
	Long: `bookreviewd serves the book review HTTP API and the gRPC health service,
and provides maintenance commands for the database.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, reconcileCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, builds the logger and opens the database.
func bootstrap() (*config.Config, *zap.Logger, *db.DB, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)

	log.Info("Connecting to database...", zap.String("driver", cfg.DBDriver))
	database, err := db.Connect(cfg.DBDriver, cfg.DatabaseDSN, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	return cfg, log, database, nil
}
