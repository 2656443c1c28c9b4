package httpapi

import (
	"net/http"
	"time"

	"github.com/bookstore/services/reviews/internal/db"
	"github.com/bookstore/services/reviews/internal/repo"
	"github.com/bookstore/services/reviews/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ratingResponse struct {
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int64   `json:"reviewCount"`
}

type reviewerResponse struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type reviewResponse struct {
	ID        string           `json:"id"`
	Rating    int              `json:"rating"`
	Title     string           `json:"title,omitempty"`
	Comment   string           `json:"comment"`
	Book      string           `json:"book"`
	User      reviewerResponse `json:"user"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type reviewPageResponse struct {
	Pagination Pagination       `json:"pagination"`
	Count      int              `json:"count"`
	Data       []reviewResponse `json:"data"`
}

type bookDetailResponse struct {
	*db.Book
	Rating  ratingResponse     `json:"rating"`
	Reviews reviewPageResponse `json:"reviews"`
}

func newReviewResponse(r *db.Review) reviewResponse {
	resp := reviewResponse{
		ID:        r.ID,
		Rating:    r.Rating,
		Title:     r.Title,
		Comment:   r.Comment,
		Book:      r.BookID,
		User:      reviewerResponse{ID: r.UserID},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.User != nil {
		resp.User.Name = r.User.Name
	}
	return resp
}

// BookHandler serves /api/books.
type BookHandler struct {
	books *service.BookService
	log   *zap.Logger
}

// NewBookHandler creates a BookHandler.
func NewBookHandler(books *service.BookService, log *zap.Logger) *BookHandler {
	return &BookHandler{books: books, log: log}
}

// List handles GET /api/books
func (h *BookHandler) List(c *gin.Context) {
	page, limit, err := pageParams(c)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	filter := repo.BookFilter{Author: c.Query("author"), Genre: c.Query("genre")}
	result, err := h.books.ListBooks(c.Request.Context(), filter, page, limit)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	okPage(c, result.Items, len(result.Items), BuildPagination(c.Request, result.Total, result.Page, result.Limit, "/api/books"))
}

// Search handles GET /api/books/search
func (h *BookHandler) Search(c *gin.Context) {
	page, limit, err := pageParams(c)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	result, err := h.books.SearchBooks(c.Request.Context(), c.Query("q"), page, limit)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	okPage(c, result.Items, len(result.Items), BuildPagination(c.Request, result.Total, result.Page, result.Limit, "/api/books/search"))
}

// Get handles GET /api/books/:id
func (h *BookHandler) Get(c *gin.Context) {
	page, limit, err := pageParams(c)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	detail, err := h.books.GetBook(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	reviews := make([]reviewResponse, 0, len(detail.Reviews.Items))
	for _, r := range detail.Reviews.Items {
		reviews = append(reviews, newReviewResponse(r))
	}

	ok(c, http.StatusOK, bookDetailResponse{
		Book: detail.Book,
		Rating: ratingResponse{
			AverageRating: detail.Book.AverageRating,
			ReviewCount:   detail.Book.ReviewCount,
		},
		Reviews: reviewPageResponse{
			Pagination: BuildPagination(c.Request, detail.Reviews.Total, detail.Reviews.Page, detail.Reviews.Limit, routeURL("api", "books", detail.Book.ID)),
			Count:      len(reviews),
			Data:       reviews,
		},
	})
}

// Create handles POST /api/books
func (h *BookHandler) Create(c *gin.Context) {
	var req service.CreateBookRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.log, err)
		return
	}

	book, err := h.books.CreateBook(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusCreated, book)
}

// Update handles PUT /api/books/:id
func (h *BookHandler) Update(c *gin.Context) {
	var req service.UpdateBookRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.log, err)
		return
	}

	book, err := h.books.UpdateBook(c.Request.Context(), c.Param("id"), currentUser(c).ID, req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, http.StatusOK, book)
}

// Delete handles DELETE /api/books/:id
func (h *BookHandler) Delete(c *gin.Context) {
	if err := h.books.DeleteBook(c.Request.Context(), c.Param("id"), currentUser(c).ID); err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "Book deleted successfully"})
}
