package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := NotFound("book not found")
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrForbidden))

	wrapped := fmt.Errorf("get book: %w", err)
	assert.True(t, Is(wrapped, ErrNotFound))
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeNotFound:     http.StatusNotFound,
		CodeForbidden:    http.StatusForbidden,
		CodeConflict:     http.StatusConflict,
		CodeValidation:   http.StatusBadRequest,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeRateLimited:  http.StatusTooManyRequests,
		CodeInternal:     http.StatusInternalServerError,
		Code("other"):    http.StatusInternalServerError,
	}
	for code, status := range tests {
		assert.Equal(t, status, code.HTTPStatus(), code)
	}
}

func TestInternalKeepsCause(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := Internal("failed to add review", cause)

	assert.True(t, Is(err, cause))
	assert.Equal(t, "failed to add review: disk on fire", err.Error())
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("boom")))
	assert.Equal(t, CodeConflict, CodeOf(fmt.Errorf("x: %w", Conflict("dup"))))
}

func TestFieldErrors(t *testing.T) {
	err := ValidationWithDetails("validation failed", map[string]string{"rating": "must be between 1 and 5"})
	assert.Equal(t, "must be between 1 and 5", FieldErrors(err)["rating"])
	assert.Nil(t, FieldErrors(NotFound("x")))
}
