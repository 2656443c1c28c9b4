package repo

import (
	"context"
	"errors"

	"github.com/bookstore/services/reviews/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserRepository handles account persistence
type UserRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(database *db.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: database.DB, log: logger}
}

// WithTx returns a repository bound to the given transaction.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx, log: r.log}
}

// Create inserts a user. The email unique index is authoritative.
func (r *UserRepository) Create(ctx context.Context, user *db.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEmail
		}
		r.log.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return err
	}
	return nil
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*db.User, error) {
	var user db.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		r.log.Error("Failed to get user", zap.String("user_id", id), zap.Error(err))
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by normalized email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	var user db.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		r.log.Error("Failed to get user by email", zap.Error(err))
		return nil, err
	}
	return &user, nil
}

// EmailExists reports whether an account already uses the email
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&db.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		r.log.Error("Failed to check email", zap.Error(err))
		return false, err
	}
	return count > 0, nil
}
