package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account that owns books and reviews.
type User struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name         string    `gorm:"type:varchar(50);not null" json:"name"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_users_email" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns the id and creation time when missing.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Book is a catalog entry. AverageRating and ReviewCount are derived from the
// book's reviews and are only written by the rating aggregator.
type Book struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title         string    `gorm:"type:varchar(200);not null;index:idx_books_title" json:"title"`
	Author        string    `gorm:"type:varchar(100);not null;index:idx_books_author" json:"author"`
	Genre         string    `gorm:"type:varchar(100);not null;index:idx_books_genre" json:"genre"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ISBN          *string   `gorm:"column:isbn;type:varchar(20);uniqueIndex:idx_books_isbn" json:"isbn,omitempty"`
	PublishedYear *int      `json:"publishedYear,omitempty"`
	Publisher     string    `gorm:"type:varchar(255)" json:"publisher,omitempty"`
	CreatedBy     string    `gorm:"type:varchar(36);not null;index:idx_books_created_by" json:"createdBy"`
	CreatedAt     time.Time `gorm:"not null;index:idx_books_created_at" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"not null" json:"updatedAt"`
	AverageRating float64   `gorm:"not null;default:0" json:"averageRating"`
	ReviewCount   int64     `gorm:"not null;default:0" json:"reviewCount"`

	Creator *User `gorm:"foreignKey:CreatedBy;constraint:OnDelete:RESTRICT" json:"-"`
}

// TableName specifies the table name for Book model
func (Book) TableName() string {
	return "books"
}

// BeforeCreate hook to set id and timestamps
func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	return nil
}

// Review is one user's rating of one book. The (book_id, user_id) pair is
// unique; reviews must be removed before the book they reference.
type Review struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Rating    int       `gorm:"not null;check:chk_reviews_rating,rating >= 1 AND rating <= 5" json:"rating"`
	Title     string    `gorm:"type:varchar(100)" json:"title,omitempty"`
	Comment   string    `gorm:"type:varchar(1000);not null" json:"comment"`
	BookID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_reviews_book_user,priority:1;index:idx_reviews_book_created,priority:1" json:"book"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_reviews_book_user,priority:2" json:"userId"`
	CreatedAt time.Time `gorm:"not null;index:idx_reviews_book_created,priority:2" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`

	Book *Book `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	User *User `gorm:"constraint:OnDelete:RESTRICT" json:"user,omitempty"`
}

// TableName specifies the table name for Review model
func (Review) TableName() string {
	return "reviews"
}

// BeforeCreate hook to set id and timestamps
func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	return nil
}
