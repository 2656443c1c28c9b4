package repo

import (
	"context"
	"errors"

	"github.com/bookstore/services/reviews/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookFilter narrows ListBooks. Author and Genre are case-insensitive
// substring matches; Query matches title OR author.
type BookFilter struct {
	Author string
	Genre  string
	Query  string
}

// BookRepository handles book catalog operations
type BookRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewBookRepository creates a new book repository
func NewBookRepository(database *db.DB, logger *zap.Logger) *BookRepository {
	return &BookRepository{db: database.DB, log: logger}
}

// WithTx returns a repository bound to the given transaction.
func (r *BookRepository) WithTx(tx *gorm.DB) *BookRepository {
	return &BookRepository{db: tx, log: r.log}
}

// ListBooks returns a page of books, newest first, and the filtered total
func (r *BookRepository) ListBooks(ctx context.Context, filter BookFilter, page, limit int) ([]*db.Book, int64, error) {
	query := r.db.WithContext(ctx).Model(&db.Book{})

	if filter.Author != "" {
		query = query.Where(`LOWER(author) LIKE ? ESCAPE '\'`, containsPattern(filter.Author))
	}
	if filter.Genre != "" {
		query = query.Where(`LOWER(genre) LIKE ? ESCAPE '\'`, containsPattern(filter.Genre))
	}
	if filter.Query != "" {
		pattern := containsPattern(filter.Query)
		query = query.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(author) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		r.log.Error("Failed to count books", zap.Error(err))
		return nil, 0, err
	}

	var books []*db.Book
	if err := query.Offset(offset(page, limit)).Limit(limit).Order("created_at DESC").Order("id DESC").Find(&books).Error; err != nil {
		r.log.Error("Failed to list books", zap.Error(err))
		return nil, 0, err
	}

	return books, total, nil
}

// GetBook retrieves a book by id
func (r *BookRepository) GetBook(ctx context.Context, id string) (*db.Book, error) {
	var book db.Book
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		r.log.Error("Failed to get book", zap.String("book_id", id), zap.Error(err))
		return nil, err
	}

	return &book, nil
}

// LockBook loads a book and, on PostgreSQL, holds a row lock on it until the
// surrounding transaction ends.
func (r *BookRepository) LockBook(ctx context.Context, id string) (*db.Book, error) {
	query := r.db.WithContext(ctx)
	if db.IsPostgres(query) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var book db.Book
	if err := query.Where("id = ?", id).First(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		r.log.Error("Failed to lock book", zap.String("book_id", id), zap.Error(err))
		return nil, err
	}
	return &book, nil
}

// CreateBook inserts a book. The isbn unique index is authoritative.
func (r *BookRepository) CreateBook(ctx context.Context, book *db.Book) error {
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateISBN
		}
		r.log.Error("Failed to create book", zap.String("title", book.Title), zap.Error(err))
		return err
	}

	r.log.Info("Book created", zap.String("book_id", book.ID), zap.String("title", book.Title))
	return nil
}

// ISBNTaken reports whether a book other than exceptID uses the isbn
func (r *BookRepository) ISBNTaken(ctx context.Context, isbn, exceptID string) (bool, error) {
	query := r.db.WithContext(ctx).Model(&db.Book{}).Where("isbn = ?", isbn)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		r.log.Error("Failed to check isbn", zap.String("isbn", isbn), zap.Error(err))
		return false, err
	}
	return count > 0, nil
}

// UpdateBook applies column updates to a book. Callers own the field list;
// derived rating columns are never passed here.
func (r *BookRepository) UpdateBook(ctx context.Context, id string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&db.Book{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return ErrDuplicateISBN
		}
		r.log.Error("Failed to update book", zap.String("book_id", id), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// SetRating writes the derived rating columns. It reports false when the
// book no longer exists.
func (r *BookRepository) SetRating(ctx context.Context, id string, average float64, count int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&db.Book{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		"average_rating": average,
		"review_count":   count,
	})
	if result.Error != nil {
		r.log.Error("Failed to set rating", zap.String("book_id", id), zap.Error(result.Error))
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteBook removes a book row. Reviews must already be gone.
func (r *BookRepository) DeleteBook(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Book{})
	if result.Error != nil {
		r.log.Error("Failed to delete book", zap.String("book_id", id), zap.Error(result.Error))
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}

	r.log.Info("Book deleted", zap.String("book_id", id))
	return nil
}

// BookIDsAfter returns up to limit book ids greater than afterID, ascending.
func (r *BookRepository) BookIDsAfter(ctx context.Context, afterID string, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&db.Book{}).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		r.log.Error("Failed to page book ids", zap.Error(err))
		return nil, err
	}
	return ids, nil
}

// GetStats returns catalog statistics for metrics
func (r *BookRepository) GetStats(ctx context.Context) (books, reviews int64, err error) {
	if err := r.db.WithContext(ctx).Model(&db.Book{}).Count(&books).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&db.Review{}).Count(&reviews).Error; err != nil {
		return 0, 0, err
	}
	return books, reviews, nil
}
