package repo

import (
	"errors"
	"math"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrBookNotFound is returned when a book is not found
	ErrBookNotFound = errors.New("book not found")

	// ErrReviewNotFound is returned when a review is not found
	ErrReviewNotFound = errors.New("review not found")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateReview is returned when the user already reviewed the book
	ErrDuplicateReview = errors.New("review already exists for this book and user")

	// ErrDuplicateISBN is returned when another book already uses the isbn
	ErrDuplicateISBN = errors.New("isbn already exists")

	// ErrDuplicateEmail is returned when the email is already registered
	ErrDuplicateEmail = errors.New("email already registered")
)

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-insensitive LIKE pattern matching s literally
// anywhere in the column. Use with "LOWER(col) LIKE ? ESCAPE '\'".
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// offset returns the row offset of page. Offsets that would overflow are
// clamped to a value past any real table, which yields an empty page.
func offset(page, limit int) int {
	if page < 1 || limit < 1 {
		return 0
	}
	if page-1 > math.MaxInt32/limit {
		return math.MaxInt32
	}
	return (page - 1) * limit
}
