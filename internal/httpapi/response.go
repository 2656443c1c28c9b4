package httpapi

import (
	"errors"
	"net/http"
	"sort"

	domainerrors "github.com/bookstore/services/reviews/internal/errors"
	"github.com/bookstore/services/reviews/internal/validation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message,omitempty"`
	Token      string       `json:"token,omitempty"`
	Count      *int         `json:"count,omitempty"`
	Pagination *Pagination  `json:"pagination,omitempty"`
	Data       any          `json:"data,omitempty"`
	Errors     []FieldError `json:"errors,omitempty"`
}

// FieldError is one failed field of a validation error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

func okPage(c *gin.Context, data any, count int, pagination Pagination) {
	c.JSON(http.StatusOK, Response{
		Success:    true,
		Count:      &count,
		Pagination: &pagination,
		Data:       data,
	})
}

// fail writes err as an error envelope. Domain errors keep their status and
// message; anything else is a 500 with a generic message and is logged here,
// once.
func fail(c *gin.Context, log *zap.Logger, err error) {
	var domainErr *domainerrors.Error
	if !errors.As(err, &domainErr) {
		domainErr = domainerrors.Internal("server error", err)
	}

	status := domainErr.HTTPStatus()
	resp := Response{Success: false, Message: domainErr.Message}
	if status >= http.StatusInternalServerError {
		log.Error("Request failed",
			zap.String("request_id", requestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		resp.Message = "Server error"
	}
	resp.Errors = fieldErrors(domainerrors.FieldErrors(err))

	c.AbortWithStatusJSON(status, resp)
}

func fieldErrors(fields map[string]string) []FieldError {
	if len(fields) == 0 {
		return nil
	}
	out := make([]FieldError, 0, len(fields))
	for field, msg := range fields {
		out = append(out, FieldError{Field: field, Message: msg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// bindJSON decodes the request body into dst. Malformed bodies are reported
// as validation errors.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		converted := validation.Convert(err)
		if domainerrors.Is(converted, domainerrors.ErrValidation) {
			return converted
		}
		return domainerrors.Validation("invalid request body").WithCause(err)
	}
	return nil
}
