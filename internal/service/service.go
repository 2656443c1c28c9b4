// Package service implements the book, review and account operations on top
// of the repositories. Services return domain errors from internal/errors;
// storage sentinels never leak past this package.
package service

import (
	"context"
	"errors"
	"strings"

	domainerrors "github.com/bookstore/services/reviews/internal/errors"
	"github.com/bookstore/services/reviews/internal/rating"
	"github.com/bookstore/services/reviews/internal/repo"
	"github.com/bookstore/services/reviews/internal/validation"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	MaxPage      = 1_000_000
)

// validate is a shared validator instance for request validation.
var validate = validation.New()

// Recomputer refreshes a book's derived rating from its stored reviews.
type Recomputer interface {
	Recompute(ctx context.Context, bookID string) (rating.Summary, error)
}

// EventEmitter publishes domain events without blocking the caller.
type EventEmitter interface {
	Emit(ctx context.Context, eventType string, payload map[string]interface{})
}

// MutationRecorder counts review mutations by outcome.
type MutationRecorder interface {
	ReviewMutation(operation, outcome string)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, map[string]interface{}) {}

type nopRecorder struct{}

func (nopRecorder) ReviewMutation(string, string) {}

// Page is one slice of a larger result set.
type Page[T any] struct {
	Items []T
	Total int64
	Page  int
	Limit int
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// translate maps storage sentinels to domain errors. Errors that are already
// domain errors pass through; anything else becomes INTERNAL.
func translate(err error) error {
	var domainErr *domainerrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, repo.ErrBookNotFound):
		return domainerrors.NotFound("book not found").WithCause(err)
	case errors.Is(err, repo.ErrReviewNotFound):
		return domainerrors.NotFound("review not found").WithCause(err)
	case errors.Is(err, repo.ErrUserNotFound):
		return domainerrors.NotFound("user not found").WithCause(err)
	case errors.Is(err, repo.ErrDuplicateReview):
		return domainerrors.Conflict("you have already reviewed this book").WithCause(err)
	case errors.Is(err, repo.ErrDuplicateISBN):
		return domainerrors.Conflict("a book with this isbn already exists").WithCause(err)
	case errors.Is(err, repo.ErrDuplicateEmail):
		return domainerrors.Conflict("email already registered").WithCause(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return domainerrors.Internal("internal error", err)
	}
}

// outcome labels a mutation result for metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(string(domainerrors.CodeOf(err)))
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
