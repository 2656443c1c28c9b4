package repo

import (
	"context"
	"errors"

	"github.com/bookstore/services/reviews/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReviewRepository handles review persistence
type ReviewRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(database *db.DB, logger *zap.Logger) *ReviewRepository {
	return &ReviewRepository{db: database.DB, log: logger}
}

// WithTx returns a repository bound to the given transaction.
func (r *ReviewRepository) WithTx(tx *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: tx, log: r.log}
}

// CreateReview inserts a review. A violation of the (book_id, user_id)
// unique index is reported as ErrDuplicateReview, a missing book as
// ErrBookNotFound and a missing author as ErrUserNotFound. The insert runs in
// a savepoint so an enclosing transaction stays usable after a violation.
func (r *ReviewRepository) CreateReview(ctx context.Context, review *db.Review) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Book", "User").Create(review).Error
	})
	if err == nil {
		return nil
	}

	if isDuplicateKey(err) {
		return ErrDuplicateReview
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return r.missingParent(ctx, review)
	}
	r.log.Error("Failed to create review",
		zap.String("book_id", review.BookID),
		zap.String("user_id", review.UserID),
		zap.Error(err),
	)
	return err
}

// missingParent reports which row referenced by review does not exist.
func (r *ReviewRepository) missingParent(ctx context.Context, review *db.Review) error {
	var books int64
	if err := r.db.WithContext(ctx).Model(&db.Book{}).Where("id = ?", review.BookID).Count(&books).Error; err != nil {
		r.log.Error("Failed to check review book", zap.String("book_id", review.BookID), zap.Error(err))
		return err
	}
	if books == 0 {
		return ErrBookNotFound
	}
	return ErrUserNotFound
}

// GetReview retrieves a review by id
func (r *ReviewRepository) GetReview(ctx context.Context, id string) (*db.Review, error) {
	var review db.Review
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		r.log.Error("Failed to get review", zap.String("review_id", id), zap.Error(err))
		return nil, err
	}
	return &review, nil
}

// ExistsForUser reports whether the user already reviewed the book
func (r *ReviewRepository) ExistsForUser(ctx context.Context, bookID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Review{}).
		Where("book_id = ? AND user_id = ?", bookID, userID).
		Count(&count).Error
	if err != nil {
		r.log.Error("Failed to check existing review", zap.String("book_id", bookID), zap.Error(err))
		return false, err
	}
	return count > 0, nil
}

// UpdateReview applies column updates to a review
func (r *ReviewRepository) UpdateReview(ctx context.Context, id string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&db.Review{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		r.log.Error("Failed to update review", zap.String("review_id", id), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// DeleteReview removes a review by id
func (r *ReviewRepository) DeleteReview(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Review{})
	if result.Error != nil {
		r.log.Error("Failed to delete review", zap.String("review_id", id), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// DeleteByBook removes every review of a book and returns how many went
func (r *ReviewRepository) DeleteByBook(ctx context.Context, bookID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("book_id = ?", bookID).Delete(&db.Review{})
	if result.Error != nil {
		r.log.Error("Failed to delete book reviews", zap.String("book_id", bookID), zap.Error(result.Error))
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListByBook returns a page of a book's reviews, newest first, with the
// reviewer's id and name populated.
func (r *ReviewRepository) ListByBook(ctx context.Context, bookID string, page, limit int) ([]*db.Review, int64, error) {
	query := r.db.WithContext(ctx).Model(&db.Review{}).Where("book_id = ?", bookID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		r.log.Error("Failed to count reviews", zap.String("book_id", bookID), zap.Error(err))
		return nil, 0, err
	}

	var reviews []*db.Review
	err := query.
		Preload("User", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "name") }).
		Offset(offset(page, limit)).
		Limit(limit).
		Order("created_at DESC").
		Order("id DESC").
		Find(&reviews).Error
	if err != nil {
		r.log.Error("Failed to list reviews", zap.String("book_id", bookID), zap.Error(err))
		return nil, 0, err
	}

	return reviews, total, nil
}

// RatingStats scans every review of a book and returns the count and the
// sum of ratings.
func (r *ReviewRepository) RatingStats(ctx context.Context, bookID string) (count, sum int64, err error) {
	var row struct {
		ReviewCount int64
		RatingSum   int64
	}
	err = r.db.WithContext(ctx).Model(&db.Review{}).
		Select("COUNT(*) AS review_count, COALESCE(SUM(rating), 0) AS rating_sum").
		Where("book_id = ?", bookID).
		Scan(&row).Error
	if err != nil {
		r.log.Error("Failed to scan ratings", zap.String("book_id", bookID), zap.Error(err))
		return 0, 0, err
	}
	return row.ReviewCount, row.RatingSum, nil
}
