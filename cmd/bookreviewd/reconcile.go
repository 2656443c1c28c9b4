package main

import (
	"fmt"
	"time"

	"github.com/bookstore/services/reviews/internal/rating"
	"github.com/bookstore/services/reviews/internal/repo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile-ratings",
	Short: "Recompute every book's average rating and review count",
	Long: `Rescans the reviews of every book and rewrites its averageRating and
reviewCount. Use it to repair ratings left stale when a recomputation failed
after a review change had already been committed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, database, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()
		defer database.Close()

		books := repo.NewBookRepository(database, log)
		reviews := repo.NewReviewRepository(database, log)
		aggregator := rating.NewAggregator(database, books, reviews, log)

		start := time.Now()
		processed, err := aggregator.RecomputeAll(cmd.Context())
		if err != nil {
			return fmt.Errorf("reconcile ratings after %d books: %w", processed, err)
		}

		log.Info("Ratings reconciled",
			zap.Int("books", processed),
			zap.Duration("took", time.Since(start)),
		)
		return nil
	},
}
