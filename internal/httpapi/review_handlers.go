package httpapi

import (
	"net/http"

	"github.com/bookstore/services/reviews/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type reviewMutationResponse struct {
	reviewResponse
	BookRating ratingResponse `json:"bookRating"`
}

// ReviewHandler serves review creation under a book and /api/reviews.
type ReviewHandler struct {
	reviews *service.ReviewService
	log     *zap.Logger
}

// NewReviewHandler creates a ReviewHandler.
func NewReviewHandler(reviews *service.ReviewService, log *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, log: log}
}

// Add handles POST /api/books/:id/reviews
func (h *ReviewHandler) Add(c *gin.Context) {
	var req service.AddReviewRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.log, err)
		return
	}

	user := currentUser(c)
	result, err := h.reviews.AddReview(c.Request.Context(), c.Param("id"), user.ID, req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	resp := reviewMutationResponse{
		reviewResponse: newReviewResponse(result.Review),
		BookRating:     ratingResponse{AverageRating: result.Rating.AverageRating, ReviewCount: result.Rating.ReviewCount},
	}
	resp.User.Name = user.Name
	ok(c, http.StatusCreated, resp)
}

// Update handles PUT /api/reviews/:id
func (h *ReviewHandler) Update(c *gin.Context) {
	var req service.UpdateReviewRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.log, err)
		return
	}

	user := currentUser(c)
	result, err := h.reviews.UpdateReview(c.Request.Context(), c.Param("id"), user.ID, req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	resp := reviewMutationResponse{
		reviewResponse: newReviewResponse(result.Review),
		BookRating:     ratingResponse{AverageRating: result.Rating.AverageRating, ReviewCount: result.Rating.ReviewCount},
	}
	resp.User.Name = user.Name
	ok(c, http.StatusOK, resp)
}

// Delete handles DELETE /api/reviews/:id
func (h *ReviewHandler) Delete(c *gin.Context) {
	summary, err := h.reviews.DeleteReview(c.Request.Context(), c.Param("id"), currentUser(c).ID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Review deleted successfully",
		Data: gin.H{
			"bookRating": ratingResponse{AverageRating: summary.AverageRating, ReviewCount: summary.ReviewCount},
		},
	})
}
