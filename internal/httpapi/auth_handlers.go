package httpapi

import (
	"net/http"

	"github.com/bookstore/services/reviews/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler serves /api/auth.
type AuthHandler struct {
	users *service.UserService
	log   *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(users *service.UserService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, log: log}
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req service.SignupRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.log, err)
		return
	}

	result, err := h.users.Signup(c.Request.Context(), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Message: "User registered successfully",
		Token:   result.Token,
		Data:    result.User,
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, h.log, err)
		return
	}

	result, err := h.users.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Login successful",
		Token:   result.Token,
		Data:    result.User,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	ok(c, http.StatusOK, currentUser(c))
}
