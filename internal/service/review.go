package service

import (
	"context"
	"strings"

	"github.com/bookstore/services/reviews/internal/db"
	domainerrors "github.com/bookstore/services/reviews/internal/errors"
	"github.com/bookstore/services/reviews/internal/events"
	"github.com/bookstore/services/reviews/internal/rating"
	"github.com/bookstore/services/reviews/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AddReviewRequest contains a new review.
type AddReviewRequest struct {
	Rating  int     `json:"rating" validate:"required,gte=1,lte=5"`
	Title   *string `json:"title" validate:"omitnil,max=100"`
	Comment string  `json:"comment" validate:"required,max=1000"`
}

// UpdateReviewRequest patches a review. The book and author of a review
// never change.
type UpdateReviewRequest struct {
	Rating  *int    `json:"rating" validate:"omitnil,gte=1,lte=5"`
	Title   *string `json:"title" validate:"omitnil,max=100"`
	Comment *string `json:"comment" validate:"omitnil,min=1,max=1000"`
}

// ReviewResult is a stored review with the book rating computed after the
// change.
type ReviewResult struct {
	Review *db.Review
	Rating rating.Summary
}

// ReviewService manages the review lifecycle. Each mutation commits on its
// own and is then followed by a full rating recomputation of the book.
type ReviewService struct {
	db         *gorm.DB
	books      *repo.BookRepository
	reviews    *repo.ReviewRepository
	aggregator Recomputer
	events     EventEmitter
	metrics    MutationRecorder
	log        *zap.Logger
}

// ReviewOption configures a ReviewService.
type ReviewOption func(*ReviewService)

// WithEvents publishes review events.
func WithEvents(e EventEmitter) ReviewOption {
	return func(s *ReviewService) { s.events = e }
}

// WithMutationRecorder counts mutations by outcome.
func WithMutationRecorder(m MutationRecorder) ReviewOption {
	return func(s *ReviewService) { s.metrics = m }
}

// NewReviewService creates a review service.
func NewReviewService(database *db.DB, books *repo.BookRepository, reviews *repo.ReviewRepository, aggregator Recomputer, log *zap.Logger, opts ...ReviewOption) *ReviewService {
	s := &ReviewService{
		db:         database.DB,
		books:      books,
		reviews:    reviews,
		aggregator: aggregator,
		events:     nopEmitter{},
		metrics:    nopRecorder{},
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddReview stores userID's review of bookID. The book must exist and the
// user must not have reviewed it yet; the (book, user) unique index decides
// when two requests race past the pre-check.
func (s *ReviewService) AddReview(ctx context.Context, bookID, userID string, req AddReviewRequest) (result *ReviewResult, err error) {
	defer func() { s.metrics.ReviewMutation("create", outcome(err)) }()

	req.Title = trimPtr(req.Title)
	req.Comment = strings.TrimSpace(req.Comment)
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	review := &db.Review{
		Rating:  req.Rating,
		Comment: req.Comment,
		BookID:  bookID,
		UserID:  userID,
	}
	if req.Title != nil {
		review.Title = *req.Title
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.books.WithTx(tx).GetBook(ctx, bookID); err != nil {
			return err
		}

		reviews := s.reviews.WithTx(tx)
		exists, err := reviews.ExistsForUser(ctx, bookID, userID)
		if err != nil {
			return err
		}
		if exists {
			return repo.ErrDuplicateReview
		}
		return reviews.CreateReview(ctx, review)
	})
	if err != nil {
		return nil, translate(err)
	}

	summary, err := s.recompute(ctx, bookID)
	if err != nil {
		return nil, err
	}

	s.log.Info("Review created",
		zap.String("review_id", review.ID),
		zap.String("book_id", bookID),
		zap.String("user_id", userID),
	)
	s.events.Emit(ctx, events.EventTypeReviewCreated, reviewPayload(review))
	return &ReviewResult{Review: review, Rating: summary}, nil
}

// UpdateReview applies req to a review owned by userID.
func (s *ReviewService) UpdateReview(ctx context.Context, reviewID, userID string, req UpdateReviewRequest) (result *ReviewResult, err error) {
	defer func() { s.metrics.ReviewMutation("update", outcome(err)) }()

	req.Title = trimPtr(req.Title)
	req.Comment = trimPtr(req.Comment)
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Rating != nil {
		updates["rating"] = *req.Rating
	}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Comment != nil {
		updates["comment"] = *req.Comment
	}

	var updated *db.Review
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reviews := s.reviews.WithTx(tx)

		review, err := reviews.GetReview(ctx, reviewID)
		if err != nil {
			return err
		}
		if review.UserID != userID {
			return domainerrors.Forbidden("not authorized to update this review")
		}

		if len(updates) > 0 {
			if err := reviews.UpdateReview(ctx, reviewID, updates); err != nil {
				return err
			}
		}

		updated, err = reviews.GetReview(ctx, reviewID)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	summary, err := s.recompute(ctx, updated.BookID)
	if err != nil {
		return nil, err
	}

	s.log.Info("Review updated", zap.String("review_id", reviewID), zap.String("book_id", updated.BookID))
	s.events.Emit(ctx, events.EventTypeReviewUpdated, reviewPayload(updated))
	return &ReviewResult{Review: updated, Rating: summary}, nil
}

// DeleteReview removes a review owned by userID and returns the book's
// rating afterwards.
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID, userID string) (summary rating.Summary, err error) {
	defer func() { s.metrics.ReviewMutation("delete", outcome(err)) }()

	var bookID string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reviews := s.reviews.WithTx(tx)

		review, err := reviews.GetReview(ctx, reviewID)
		if err != nil {
			return err
		}
		if review.UserID != userID {
			return domainerrors.Forbidden("not authorized to delete this review")
		}
		bookID = review.BookID
		return reviews.DeleteReview(ctx, reviewID)
	})
	if err != nil {
		return rating.Summary{}, translate(err)
	}

	summary, err = s.recompute(ctx, bookID)
	if err != nil {
		return rating.Summary{}, err
	}

	s.log.Info("Review deleted", zap.String("review_id", reviewID), zap.String("book_id", bookID))
	s.events.Emit(ctx, events.EventTypeReviewDeleted, map[string]interface{}{
		"review_id": reviewID,
		"book_id":   bookID,
		"user_id":   userID,
	})
	return summary, nil
}

// recompute runs after the mutation has committed. On failure the review
// change stands and the book keeps its previous rating until the next
// recomputation or a reconcile run.
func (s *ReviewService) recompute(ctx context.Context, bookID string) (rating.Summary, error) {
	summary, err := s.aggregator.Recompute(ctx, bookID)
	if err != nil {
		return rating.Summary{}, domainerrors.Internal("review saved but rating update failed", err)
	}
	return summary, nil
}

func reviewPayload(review *db.Review) map[string]interface{} {
	return map[string]interface{}{
		"review_id": review.ID,
		"book_id":   review.BookID,
		"user_id":   review.UserID,
		"rating":    review.Rating,
	}
}
