package service

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/bookstore/services/reviews/internal/db"
	domainerrors "github.com/bookstore/services/reviews/internal/errors"
	"github.com/bookstore/services/reviews/internal/events"
	"github.com/bookstore/services/reviews/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minPublishedYear = 1000

// CreateBookRequest contains the fields of a new book.
type CreateBookRequest struct {
	Title         string  `json:"title" validate:"required,max=200"`
	Author        string  `json:"author" validate:"required,max=100"`
	Genre         string  `json:"genre" validate:"required,max=100"`
	Description   string  `json:"description" validate:"required,max=5000"`
	ISBN          *string `json:"isbn" validate:"omitnil,max=20"`
	PublishedYear *int    `json:"publishedYear"`
	Publisher     *string `json:"publisher" validate:"omitnil,max=255"`
}

// UpdateBookRequest patches a book. Nil fields are left unchanged; an empty
// isbn clears it.
type UpdateBookRequest struct {
	Title         *string `json:"title" validate:"omitnil,min=1,max=200"`
	Author        *string `json:"author" validate:"omitnil,min=1,max=100"`
	Genre         *string `json:"genre" validate:"omitnil,min=1,max=100"`
	Description   *string `json:"description" validate:"omitnil,min=1,max=5000"`
	ISBN          *string `json:"isbn" validate:"omitnil,max=20"`
	PublishedYear *int    `json:"publishedYear"`
	Publisher     *string `json:"publisher" validate:"omitnil,max=255"`
}

// BookDetail is a book with one page of its reviews.
type BookDetail struct {
	Book    *db.Book
	Reviews Page[*db.Review]
}

// BookService manages the book lifecycle: creation, owner-only updates and
// the delete that removes a book's reviews together with the book.
type BookService struct {
	db      *gorm.DB
	books   *repo.BookRepository
	reviews *repo.ReviewRepository
	events  EventEmitter
	log     *zap.Logger
	now     func() time.Time
}

// NewBookService creates a book service. A nil emitter disables events.
func NewBookService(database *db.DB, books *repo.BookRepository, reviews *repo.ReviewRepository, emitter EventEmitter, log *zap.Logger) *BookService {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &BookService{
		db:      database.DB,
		books:   books,
		reviews: reviews,
		events:  emitter,
		log:     log,
		now:     time.Now,
	}
}

// CreateBook validates req and stores a book owned by userID with a zero
// rating.
func (s *BookService) CreateBook(ctx context.Context, userID string, req CreateBookRequest) (*db.Book, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	req.Genre = strings.TrimSpace(req.Genre)
	req.Description = strings.TrimSpace(req.Description)
	req.ISBN = trimPtr(req.ISBN)
	req.Publisher = trimPtr(req.Publisher)

	if err := s.validate(req, req.PublishedYear); err != nil {
		return nil, err
	}

	book := &db.Book{
		Title:         req.Title,
		Author:        req.Author,
		Genre:         req.Genre,
		Description:   req.Description,
		PublishedYear: req.PublishedYear,
		CreatedBy:     userID,
	}
	if req.ISBN != nil && *req.ISBN != "" {
		book.ISBN = req.ISBN
	}
	if req.Publisher != nil {
		book.Publisher = *req.Publisher
	}

	if book.ISBN != nil {
		taken, err := s.books.ISBNTaken(ctx, *book.ISBN, "")
		if err != nil {
			return nil, translate(err)
		}
		if taken {
			return nil, translate(repo.ErrDuplicateISBN)
		}
	}

	if err := s.books.CreateBook(ctx, book); err != nil {
		return nil, translate(err)
	}

	s.events.Emit(ctx, events.EventTypeBookCreated, bookPayload(book))
	return book, nil
}

// GetBook returns a book with its current rating and one page of reviews,
// newest first.
func (s *BookService) GetBook(ctx context.Context, bookID string, page, limit int) (*BookDetail, error) {
	page, limit = normalizePage(page, limit)

	book, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		return nil, translate(err)
	}

	reviews, total, err := s.reviews.ListByBook(ctx, bookID, page, limit)
	if err != nil {
		return nil, translate(err)
	}

	return &BookDetail{
		Book:    book,
		Reviews: Page[*db.Review]{Items: reviews, Total: total, Page: page, Limit: limit},
	}, nil
}

// ListBooks returns a page of books matching filter, newest first.
func (s *BookService) ListBooks(ctx context.Context, filter repo.BookFilter, page, limit int) (Page[*db.Book], error) {
	page, limit = normalizePage(page, limit)
	filter.Author = strings.TrimSpace(filter.Author)
	filter.Genre = strings.TrimSpace(filter.Genre)
	filter.Query = strings.TrimSpace(filter.Query)

	books, total, err := s.books.ListBooks(ctx, filter, page, limit)
	if err != nil {
		return Page[*db.Book]{}, translate(err)
	}
	return Page[*db.Book]{Items: books, Total: total, Page: page, Limit: limit}, nil
}

// SearchBooks matches query against title or author.
func (s *BookService) SearchBooks(ctx context.Context, query string, page, limit int) (Page[*db.Book], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Page[*db.Book]{}, domainerrors.ValidationWithDetails("please provide a search query", map[string]string{
			"q": "is required",
		})
	}
	return s.ListBooks(ctx, repo.BookFilter{Query: query}, page, limit)
}

// UpdateBook applies req to a book owned by userID. The owner and the
// derived rating fields cannot be changed here.
func (s *BookService) UpdateBook(ctx context.Context, bookID, userID string, req UpdateBookRequest) (*db.Book, error) {
	req.Title = trimPtr(req.Title)
	req.Author = trimPtr(req.Author)
	req.Genre = trimPtr(req.Genre)
	req.Description = trimPtr(req.Description)
	req.ISBN = trimPtr(req.ISBN)
	req.Publisher = trimPtr(req.Publisher)

	if err := s.validate(req, req.PublishedYear); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Author != nil {
		updates["author"] = *req.Author
	}
	if req.Genre != nil {
		updates["genre"] = *req.Genre
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.PublishedYear != nil {
		updates["published_year"] = *req.PublishedYear
	}
	if req.Publisher != nil {
		updates["publisher"] = *req.Publisher
	}
	if req.ISBN != nil {
		if *req.ISBN == "" {
			updates["isbn"] = nil
		} else {
			updates["isbn"] = *req.ISBN
		}
	}

	var updated *db.Book
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		books := s.books.WithTx(tx)

		book, err := books.LockBook(ctx, bookID)
		if err != nil {
			return err
		}
		if book.CreatedBy != userID {
			return domainerrors.Forbidden("not authorized to update this book")
		}

		if req.ISBN != nil && *req.ISBN != "" {
			taken, err := books.ISBNTaken(ctx, *req.ISBN, bookID)
			if err != nil {
				return err
			}
			if taken {
				return repo.ErrDuplicateISBN
			}
		}

		if len(updates) > 0 {
			updates["updated_at"] = s.now().UTC()
			if err := books.UpdateBook(ctx, bookID, updates); err != nil {
				return err
			}
		}

		updated, err = books.GetBook(ctx, bookID)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	s.log.Info("Book updated", zap.String("book_id", bookID), zap.Int("fields", len(updates)))
	s.events.Emit(ctx, events.EventTypeBookUpdated, bookPayload(updated))
	return updated, nil
}

// DeleteBook removes a book owned by userID. Its reviews are deleted first,
// in the same transaction, so no review outlives its book. No rating
// recomputation follows since the book is gone.
func (s *BookService) DeleteBook(ctx context.Context, bookID, userID string) error {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		books := s.books.WithTx(tx)

		book, err := books.LockBook(ctx, bookID)
		if err != nil {
			return err
		}
		if book.CreatedBy != userID {
			return domainerrors.Forbidden("not authorized to delete this book")
		}

		removed, err = s.reviews.WithTx(tx).DeleteByBook(ctx, bookID)
		if err != nil {
			return err
		}
		return books.DeleteBook(ctx, bookID)
	})
	if err != nil {
		return translate(err)
	}

	s.log.Info("Book reviews removed with book", zap.String("book_id", bookID), zap.Int64("reviews", removed))
	s.events.Emit(ctx, events.EventTypeBookDeleted, map[string]interface{}{
		"book_id":         bookID,
		"deleted_by":      userID,
		"reviews_deleted": removed,
	})
	return nil
}

// validate runs the struct rules plus the published-year range, which
// depends on the current year, and reports all field failures together.
func (s *BookService) validate(req any, publishedYear *int) error {
	fields := map[string]string{}
	if err := validate.Validate(req); err != nil {
		details := domainerrors.FieldErrors(err)
		if details == nil {
			return err
		}
		maps.Copy(fields, details)
	}

	if publishedYear != nil {
		maxYear := s.now().Year()
		if *publishedYear < minPublishedYear || *publishedYear > maxYear {
			fields["publishedYear"] = fmt.Sprintf("must be between %d and %d", minPublishedYear, maxYear)
		}
	}

	if len(fields) > 0 {
		return domainerrors.ValidationWithDetails("validation failed", fields)
	}
	return nil
}

func bookPayload(book *db.Book) map[string]interface{} {
	payload := map[string]interface{}{
		"book_id":    book.ID,
		"title":      book.Title,
		"author":     book.Author,
		"genre":      book.Genre,
		"created_by": book.CreatedBy,
	}
	if book.ISBN != nil {
		payload["isbn"] = *book.ISBN
	}
	return payload
}
