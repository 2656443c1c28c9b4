package db

import (
	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations(db *DB) error {
	// Order matters: reviews reference books, books reference users.
	if err := db.AutoMigrate(&User{}, &Book{}, &Review{}); err != nil {
		return err
	}

	if err := createIndexes(db.DB); err != nil {
		return err
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	// Case-insensitive lookups used by the author/genre filters and search.
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_books_author_lower ON books (LOWER(author))`,
		`CREATE INDEX IF NOT EXISTS idx_books_genre_lower ON books (LOWER(genre))`,
		`CREATE INDEX IF NOT EXISTS idx_books_title_lower ON books (LOWER(title))`,
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return err
		}
	}

	return nil
}
