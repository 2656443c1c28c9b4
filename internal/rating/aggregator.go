// Package rating keeps a book's averageRating and reviewCount equal to the
// mean and count of the reviews currently stored for it.
//
// Every recomputation rescans the book's full review set; nothing is adjusted
// incrementally, so a lost or reordered recomputation can never leave drift
// behind. Callers invoke Recompute after the review mutation has committed.
package rating

import (
	"context"
	"errors"
	"time"

	"github.com/bookstore/services/reviews/internal/db"
	"github.com/bookstore/services/reviews/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reconcileBatchSize = 200

// Summary is the derived rating state of one book.
type Summary struct {
	BookID        string  `json:"bookId"`
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int64   `json:"reviewCount"`
}

// Observer receives the outcome of each recomputation.
type Observer interface {
	ObserveRecompute(outcome string, took time.Duration)
}

// Notifier is told about every persisted summary.
type Notifier interface {
	RatingRecomputed(ctx context.Context, summary Summary)
}

// Aggregator recomputes and persists book rating summaries.
type Aggregator struct {
	db       *gorm.DB
	books    *repo.BookRepository
	reviews  *repo.ReviewRepository
	observer Observer
	notifier Notifier
	log      *zap.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithObserver records recompute outcomes and latency.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// WithNotifier publishes each persisted summary.
func WithNotifier(n Notifier) Option {
	return func(a *Aggregator) { a.notifier = n }
}

// NewAggregator creates a rating aggregator over the given database.
func NewAggregator(database *db.DB, books *repo.BookRepository, reviews *repo.ReviewRepository, log *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		db:      database.DB,
		books:   books,
		reviews: reviews,
		log:     log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recompute scans all reviews of bookID and writes the rounded mean and
// count onto the book. A book that no longer exists is a no-op: the zero
// Summary is returned with a nil error.
//
// On PostgreSQL the book row is locked before the scan, so concurrent
// recomputations of one book serialize and the last to finish has seen every
// committed review.
func (a *Aggregator) Recompute(ctx context.Context, bookID string) (Summary, error) {
	start := time.Now()
	summary := Summary{BookID: bookID}
	found := true

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		books := a.books.WithTx(tx)

		if _, err := books.LockBook(ctx, bookID); err != nil {
			if errors.Is(err, repo.ErrBookNotFound) {
				found = false
				return nil
			}
			return err
		}

		count, sum, err := a.reviews.WithTx(tx).RatingStats(ctx, bookID)
		if err != nil {
			return err
		}
		summary.ReviewCount = count
		summary.AverageRating = RoundedMean(sum, count)

		ok, err := books.SetRating(ctx, bookID, summary.AverageRating, summary.ReviewCount)
		if err != nil {
			return err
		}
		found = ok
		return nil
	})

	switch {
	case err != nil:
		a.observe("error", start)
		a.log.Error("Failed to recompute rating", zap.String("book_id", bookID), zap.Error(err))
		return Summary{}, err
	case !found:
		a.observe("book_missing", start)
		a.log.Debug("Skipped rating recompute for missing book", zap.String("book_id", bookID))
		return Summary{BookID: bookID}, nil
	}

	a.observe("ok", start)
	a.log.Debug("Rating recomputed",
		zap.String("book_id", bookID),
		zap.Float64("average_rating", summary.AverageRating),
		zap.Int64("review_count", summary.ReviewCount),
	)
	if a.notifier != nil {
		a.notifier.RatingRecomputed(ctx, summary)
	}
	return summary, nil
}

// RecomputeAll recomputes every book, in id order, and returns how many were
// processed. It stops at the first failure or when ctx is done.
func (a *Aggregator) RecomputeAll(ctx context.Context) (int, error) {
	processed := 0
	after := ""
	for {
		ids, err := a.books.BookIDsAfter(ctx, after, reconcileBatchSize)
		if err != nil {
			return processed, err
		}
		if len(ids) == 0 {
			return processed, nil
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return processed, err
			}
			if _, err := a.Recompute(ctx, id); err != nil {
				return processed, err
			}
			processed++
		}
		after = ids[len(ids)-1]
	}
}

func (a *Aggregator) observe(outcome string, start time.Time) {
	if a.observer != nil {
		a.observer.ObserveRecompute(outcome, time.Since(start))
	}
}

// RoundedMean returns sum/count rounded half-up to one decimal place, or 0
// when count is 0. Integer arithmetic keeps x.x5 boundaries exact.
func RoundedMean(sum, count int64) float64 {
	if count <= 0 {
		return 0
	}
	// round(10*sum/count) == floor((20*sum + count) / (2*count)) for sum >= 0
	tenths := (20*sum + count) / (2 * count)
	return float64(tenths) / 10
}
