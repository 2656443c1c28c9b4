package service

import (
	"context"
	"strings"
	"testing"

	"github.com/bookstore/services/reviews/internal/db"
	domainerrors "github.com/bookstore/services/reviews/internal/errors"
	"github.com/bookstore/services/reviews/internal/events"
	"github.com/bookstore/services/reviews/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func TestReviewRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, f.user(t))

	first := f.review(t, book.ID, f.user(t), 4)
	second, err := f.reviews.AddReview(ctx, book.ID, f.user(t), AddReviewRequest{Rating: 2, Comment: "Slow."})
	require.NoError(t, err)
	assert.Equal(t, 3.0, second.Rating.AverageRating)
	assert.Equal(t, int64(2), second.Rating.ReviewCount)

	stored := f.reload(t, book.ID)
	assert.Equal(t, 3.0, stored.AverageRating)
	assert.Equal(t, int64(2), stored.ReviewCount)

	summary, err := f.reviews.DeleteReview(ctx, first.ID, first.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, summary.AverageRating)
	assert.Equal(t, int64(1), summary.ReviewCount)

	stored = f.reload(t, book.ID)
	assert.Equal(t, 2.0, stored.AverageRating)
	assert.Equal(t, int64(1), stored.ReviewCount)
}

func TestNewBookHasZeroRating(t *testing.T) {
	f := setup(t)
	book := f.book(t, f.user(t))

	assert.Equal(t, 0.0, book.AverageRating)
	assert.Equal(t, int64(0), book.ReviewCount)

	stored := f.reload(t, book.ID)
	assert.Equal(t, 0.0, stored.AverageRating)
	assert.Equal(t, int64(0), stored.ReviewCount)
}

func TestAddReviewRoundsHalfUp(t *testing.T) {
	f := setup(t)
	book := f.book(t, f.user(t))

	f.review(t, book.ID, f.user(t), 5)
	f.review(t, book.ID, f.user(t), 4)
	f.review(t, book.ID, f.user(t), 4)
	f.review(t, book.ID, f.user(t), 4)

	// 17 / 4 = 4.25
	stored := f.reload(t, book.ID)
	assert.Equal(t, 4.3, stored.AverageRating)
	assert.Equal(t, int64(4), stored.ReviewCount)
}

func TestAddReviewDuplicateIsConflict(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, f.user(t))
	reviewer := f.user(t)
	f.review(t, book.ID, reviewer, 5)

	_, err := f.reviews.AddReview(ctx, book.ID, reviewer, AddReviewRequest{Rating: 1, Comment: "Changed my mind."})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrConflict))

	var count int64
	require.NoError(t, f.database.Model(&db.Review{}).Where("book_id = ?", book.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stored := f.reload(t, book.ID)
	assert.Equal(t, 5.0, stored.AverageRating)
	assert.Equal(t, 1, f.counter.get("create/conflict"))
}

func TestAddReviewMissingBook(t *testing.T) {
	f := setup(t)
	other := f.book(t, f.user(t))
	f.review(t, other.ID, f.user(t), 3)

	_, err := f.reviews.AddReview(context.Background(), "missing", f.user(t), AddReviewRequest{Rating: 5, Comment: "?"})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	stored := f.reload(t, other.ID)
	assert.Equal(t, 3.0, stored.AverageRating)
	assert.Equal(t, int64(1), stored.ReviewCount)
}

func TestAddReviewValidation(t *testing.T) {
	f := setup(t)
	book := f.book(t, f.user(t))

	tests := []struct {
		name  string
		req   AddReviewRequest
		field string
	}{
		{"rating too low", AddReviewRequest{Rating: 0, Comment: "c"}, "rating"},
		{"rating too high", AddReviewRequest{Rating: 6, Comment: "c"}, "rating"},
		{"blank comment", AddReviewRequest{Rating: 3, Comment: "   "}, "comment"},
		{"long title", AddReviewRequest{Rating: 3, Comment: "c", Title: strPtr(strings.Repeat("x", 101))}, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reviews.AddReview(context.Background(), book.ID, f.user(t), tt.req)
			require.Error(t, err)
			assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
			assert.Contains(t, domainerrors.FieldErrors(err), tt.field)
		})
	}

	assert.Equal(t, int64(0), f.reload(t, book.ID).ReviewCount)
}

func TestUpdateReview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, f.user(t))
	f.review(t, book.ID, f.user(t), 2)
	mine := f.review(t, book.ID, f.user(t), 2)

	result, err := f.reviews.UpdateReview(ctx, mine.ID, mine.UserID, UpdateReviewRequest{
		Rating: intPtr(5),
		Title:  strPtr("Grew on me"),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Review.Rating)
	assert.Equal(t, "Grew on me", result.Review.Title)
	assert.Equal(t, "Worth reading.", result.Review.Comment)
	assert.Equal(t, book.ID, result.Review.BookID)
	assert.Equal(t, 3.5, result.Rating.AverageRating)

	stored := f.reload(t, book.ID)
	assert.Equal(t, 3.5, stored.AverageRating)
	assert.Equal(t, int64(2), stored.ReviewCount)
}

func TestUpdateReviewRejects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, f.user(t))
	mine := f.review(t, book.ID, f.user(t), 4)

	t.Run("not found", func(t *testing.T) {
		_, err := f.reviews.UpdateReview(ctx, "missing", mine.UserID, UpdateReviewRequest{Rating: intPtr(1)})
		assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
	})

	t.Run("not owner", func(t *testing.T) {
		_, err := f.reviews.UpdateReview(ctx, mine.ID, f.user(t), UpdateReviewRequest{Rating: intPtr(1)})
		assert.True(t, domainerrors.Is(err, domainerrors.ErrForbidden))
	})

	t.Run("rating out of range", func(t *testing.T) {
		_, err := f.reviews.UpdateReview(ctx, mine.ID, mine.UserID, UpdateReviewRequest{Rating: intPtr(9)})
		assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
	})

	for name, comment := range map[string]string{"empty comment": "", "blank comment": " "} {
		t.Run(name, func(t *testing.T) {
			_, err := f.reviews.UpdateReview(ctx, mine.ID, mine.UserID, UpdateReviewRequest{Comment: strPtr(comment)})
			require.True(t, domainerrors.Is(err, domainerrors.ErrValidation), "unexpected error: %v", err)
			assert.Equal(t, "is required", domainerrors.FieldErrors(err)["comment"])
		})
	}

	var kept db.Review
	require.NoError(t, f.database.First(&kept, "id = ?", mine.ID).Error)
	assert.Equal(t, "Worth reading.", kept.Comment)

	stored := f.reload(t, book.ID)
	assert.Equal(t, 4.0, stored.AverageRating)
	assert.Equal(t, 1, f.counter.get("update/forbidden"))
	assert.Equal(t, 1, f.counter.get("update/not_found"))
}

func TestDeleteReviewRejects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, f.user(t))
	mine := f.review(t, book.ID, f.user(t), 4)

	_, err := f.reviews.DeleteReview(ctx, mine.ID, f.user(t))
	assert.True(t, domainerrors.Is(err, domainerrors.ErrForbidden))

	_, err = f.reviews.DeleteReview(ctx, "missing", mine.UserID)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	assert.Equal(t, int64(1), f.reload(t, book.ID).ReviewCount)
}

func TestDeletingLastReviewZeroesRating(t *testing.T) {
	f := setup(t)
	book := f.book(t, f.user(t))
	only := f.review(t, book.ID, f.user(t), 5)

	summary, err := f.reviews.DeleteReview(context.Background(), only.ID, only.UserID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.AverageRating)
	assert.Equal(t, int64(0), summary.ReviewCount)

	stored := f.reload(t, book.ID)
	assert.Equal(t, 0.0, stored.AverageRating)
	assert.Equal(t, int64(0), stored.ReviewCount)
}

func TestRecomputeFailureKeepsReview(t *testing.T) {
	f := setup(t)
	log := zap.NewNop()
	svc := NewReviewService(f.database, f.bookRepo, repo.NewReviewRepository(f.database, log), failingRecomputer{}, log,
		WithEvents(f.emitter),
		WithMutationRecorder(f.counter),
	)
	book := f.book(t, f.user(t))

	_, err := svc.AddReview(context.Background(), book.ID, f.user(t), AddReviewRequest{Rating: 4, Comment: "c"})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrInternal))
	assert.Equal(t, 1, f.counter.get("create/internal"))
	assert.NotContains(t, f.emitter.types(), events.EventTypeReviewCreated)

	var count int64
	require.NoError(t, f.database.Model(&db.Review{}).Where("book_id = ?", book.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "the committed review stays; only the aggregate is stale")
}

func TestReviewEvents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	book := f.book(t, f.user(t))
	r := f.review(t, book.ID, f.user(t), 3)

	_, err := f.reviews.UpdateReview(ctx, r.ID, r.UserID, UpdateReviewRequest{Rating: intPtr(4)})
	require.NoError(t, err)
	_, err = f.reviews.DeleteReview(ctx, r.ID, r.UserID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		events.EventTypeBookCreated,
		events.EventTypeReviewCreated,
		events.EventTypeReviewUpdated,
		events.EventTypeReviewDeleted,
	}, f.emitter.types())
}

func TestConcurrentDuplicateReviewsAdmitOne(t *testing.T) {
	f := setup(t)
	book := f.book(t, f.user(t))
	reviewer := f.user(t)

	const attempts = 8
	results := make([]error, attempts)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			_, results[i] = f.reviews.AddReview(context.Background(), book.ID, reviewer, AddReviewRequest{Rating: 5, Comment: "Again"})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, domainerrors.Is(err, domainerrors.ErrConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	stored := f.reload(t, book.ID)
	assert.Equal(t, int64(1), stored.ReviewCount)
	assert.Equal(t, 5.0, stored.AverageRating)
}

func TestConcurrentReviewsConverge(t *testing.T) {
	f := setup(t)
	book := f.book(t, f.user(t))

	ratings := []int{1, 2, 3, 4, 5, 5, 4, 2, 1, 3}
	reviewers := make([]string, len(ratings))
	for i := range reviewers {
		reviewers[i] = f.user(t)
	}

	var g errgroup.Group
	for i, stars := range ratings {
		i, stars := i, stars
		g.Go(func() error {
			_, err := f.reviews.AddReview(context.Background(), book.ID, reviewers[i], AddReviewRequest{Rating: stars, Comment: "c"})
			return err
		})
	}
	require.NoError(t, g.Wait())

	stored := f.reload(t, book.ID)
	assert.Equal(t, int64(len(ratings)), stored.ReviewCount)
	assert.Equal(t, 3.0, stored.AverageRating)
}
