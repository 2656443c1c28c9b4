package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bookstore/services/reviews/internal/auth"
	"github.com/bookstore/services/reviews/internal/db"
	domainerrors "github.com/bookstore/services/reviews/internal/errors"
	"github.com/bookstore/services/reviews/internal/repo"
	"go.uber.org/zap"
)

// TokenIssuer signs and verifies user tokens.
type TokenIssuer interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

// SignupRequest contains new account data.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is a user with a freshly issued token.
type AuthResult struct {
	User  *db.User
	Token string
}

// UserService handles signup, login and token resolution.
type UserService struct {
	users  *repo.UserRepository
	tokens TokenIssuer
	log    *zap.Logger
}

// NewUserService creates a user service.
func NewUserService(users *repo.UserRepository, tokens TokenIssuer, log *zap.Logger) *UserService {
	return &UserService{users: users, tokens: tokens, log: log}
}

// Signup registers a user. Emails are compared case-insensitively.
func (s *UserService) Signup(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	exists, err := s.users.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, translate(err)
	}
	if exists {
		return nil, translate(repo.ErrDuplicateEmail)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, domainerrors.Internal("failed to hash password", err)
	}

	user := &db.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, translate(err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, domainerrors.Internal("failed to issue token", err)
	}

	s.log.Info("User registered", zap.String("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Login checks credentials. Unknown email and wrong password are reported
// identically.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, domainerrors.Unauthorized("invalid credentials")
		}
		return nil, translate(err)
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, domainerrors.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, domainerrors.Internal("failed to issue token", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Me returns the user with the given id.
func (s *UserService) Me(ctx context.Context, userID string) (*db.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return user, nil
}

// Authenticate resolves a bearer token to its user. A bad token or a token
// for a user that no longer exists is Unauthorized.
func (s *UserService) Authenticate(ctx context.Context, token string) (*db.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, domainerrors.Unauthorized("not authorized to access this route")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return nil, domainerrors.Unauthorized("user no longer exists")
		}
		return nil, translate(err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
