package rating

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bookstore/services/reviews/internal/db"
	"github.com/bookstore/services/reviews/internal/db/dbtest"
	"github.com/bookstore/services/reviews/internal/repo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu        sync.Mutex
	outcomes  []string
	summaries []Summary
}

func (r *recorder) ObserveRecompute(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recorder) RatingRecomputed(_ context.Context, s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
}

type fixture struct {
	database *db.DB
	agg      *Aggregator
	books    *repo.BookRepository
	reviews  *repo.ReviewRepository
	rec      *recorder
	owner    string
}

func setup(t *testing.T) *fixture {
	database := dbtest.Open(t)
	log := zap.NewNop()
	f := &fixture{
		database: database,
		books:    repo.NewBookRepository(database, log),
		reviews:  repo.NewReviewRepository(database, log),
		rec:      &recorder{},
		owner:    dbtest.SeedUser(t, database, "owner"),
	}
	f.agg = NewAggregator(database, f.books, f.reviews, log, WithObserver(f.rec), WithNotifier(f.rec))
	return f
}

func (f *fixture) book(t *testing.T) *db.Book {
	book := &db.Book{Title: "T", Author: "A", Genre: "g", Description: "d", CreatedBy: f.owner}
	require.NoError(t, f.books.CreateBook(context.Background(), book))
	return book
}

func (f *fixture) review(t *testing.T, bookID string, rating int) *db.Review {
	userID := dbtest.SeedUser(t, f.database, "u-"+uuid.NewString()[:8])
	review := &db.Review{BookID: bookID, UserID: userID, Rating: rating, Comment: "c"}
	require.NoError(t, f.reviews.CreateReview(context.Background(), review))
	return review
}

func TestRoundedMean(t *testing.T) {
	tests := []struct {
		sum, count int64
		want       float64
	}{
		{0, 0, 0},
		{4, 1, 4.0},
		{6, 2, 3.0},
		{5, 2, 2.5},
		{7, 3, 2.3},
		{8, 3, 2.7},
		{9, 4, 2.3},  // 2.25 rounds up
		{11, 4, 2.8}, // 2.75 rounds up
		{13, 3, 4.3},
		{49, 10, 4.9},
		{5, 1, 5.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundedMean(tt.sum, tt.count), "sum=%d count=%d", tt.sum, tt.count)
	}
}

func TestRecomputeFromFullReviewSet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t)

	f.review(t, book.ID, 4)
	f.review(t, book.ID, 2)
	f.review(t, book.ID, 5)

	summary, err := f.agg.Recompute(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.7, summary.AverageRating)
	assert.Equal(t, int64(3), summary.ReviewCount)

	stored, err := f.books.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.7, stored.AverageRating)
	assert.Equal(t, int64(3), stored.ReviewCount)

	assert.Equal(t, []string{"ok"}, f.rec.outcomes)
	require.Len(t, f.rec.summaries, 1)
	assert.Equal(t, book.ID, f.rec.summaries[0].BookID)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t)
	f.review(t, book.ID, 3)
	f.review(t, book.ID, 4)

	first, err := f.agg.Recompute(ctx, book.ID)
	require.NoError(t, err)
	second, err := f.agg.Recompute(ctx, book.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 3.5, second.AverageRating)
}

func TestRecomputeWithNoReviewsZeroes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t)

	_, err := f.books.SetRating(ctx, book.ID, 4.2, 7)
	require.NoError(t, err)

	summary, err := f.agg.Recompute(ctx, book.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.AverageRating)
	assert.Zero(t, summary.ReviewCount)

	stored, err := f.books.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.AverageRating)
	assert.Zero(t, stored.ReviewCount)
}

func TestRecomputeMissingBookIsNoop(t *testing.T) {
	f := setup(t)

	summary, err := f.agg.Recompute(context.Background(), "gone")
	require.NoError(t, err)
	assert.Equal(t, Summary{BookID: "gone"}, summary)
	assert.Equal(t, []string{"book_missing"}, f.rec.outcomes)
	assert.Empty(t, f.rec.summaries)
}

func TestRecomputeAllRepairsStaleAggregates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rated := f.book(t)
	f.review(t, rated.ID, 5)
	f.review(t, rated.ID, 4)
	empty := f.book(t)

	// Simulate aggregates left behind by failed recomputations.
	_, err := f.books.SetRating(ctx, rated.ID, 1.0, 1)
	require.NoError(t, err)
	_, err = f.books.SetRating(ctx, empty.ID, 3.0, 9)
	require.NoError(t, err)

	processed, err := f.agg.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	got, err := f.books.GetBook(ctx, rated.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.5, got.AverageRating)
	assert.Equal(t, int64(2), got.ReviewCount)

	got, err = f.books.GetBook(ctx, empty.ID)
	require.NoError(t, err)
	assert.Zero(t, got.AverageRating)
	assert.Zero(t, got.ReviewCount)
}

func TestRecomputeAllHonoursCancellation(t *testing.T) {
	f := setup(t)
	f.book(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processed, err := f.agg.RecomputeAll(ctx)
	assert.Error(t, err)
	assert.Zero(t, processed)
}
