package db_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/bookstore/services/reviews/internal/db"
	"github.com/bookstore/services/reviews/internal/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestConnectUnsupportedDriver(t *testing.T) {
	_, err := db.Connect("mysql", "dsn", zap.NewNop())
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{":memory:", ":memory:?_foreign_keys=1"},
		{"file:reviews.db?cache=shared", "file:reviews.db?cache=shared&_foreign_keys=1"},
		{"reviews.db?_foreign_keys=0", "reviews.db?_foreign_keys=0"},
		{"reviews.db?_fk=1", "reviews.db?_fk=1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, db.SQLiteDSN(tt.in), tt.in)
	}
}

func TestForeignKeysOnEveryConnection(t *testing.T) {
	database, err := db.Connect(db.DriverSQLite, filepath.Join(t.TempDir(), "reviews.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	// Closing idle connections makes every query below run on a new one.
	sqlDB.SetMaxIdleConns(0)

	for i := 0; i < 3; i++ {
		var enabled int
		require.NoError(t, database.Raw("PRAGMA foreign_keys").Scan(&enabled).Error)
		assert.Equal(t, 1, enabled)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	database := dbtest.Open(t)
	require.NoError(t, db.RunMigrations(database))
	require.NoError(t, database.Ping())
	assert.False(t, db.IsPostgres(database.DB))
}

func TestReviewPairIsUnique(t *testing.T) {
	database := dbtest.Open(t)
	userID := dbtest.SeedUser(t, database, "alice")

	book := &db.Book{Title: "T", Author: "A", Genre: "G", Description: "D", CreatedBy: userID}
	require.NoError(t, database.Create(book).Error)
	assert.NotEmpty(t, book.ID)

	first := &db.Review{BookID: book.ID, UserID: userID, Rating: 4, Comment: "ok"}
	require.NoError(t, database.Create(first).Error)

	second := &db.Review{BookID: book.ID, UserID: userID, Rating: 2, Comment: "again"}
	err := database.Create(second).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
}

func TestRatingCheckConstraint(t *testing.T) {
	database := dbtest.Open(t)
	userID := dbtest.SeedUser(t, database, "bob")

	book := &db.Book{Title: "T", Author: "A", Genre: "G", Description: "D", CreatedBy: userID}
	require.NoError(t, database.Create(book).Error)

	err := database.Create(&db.Review{BookID: book.ID, UserID: userID, Rating: 6, Comment: "x"}).Error
	assert.Error(t, err)
}

func TestBookWithReviewsCannotBeDeletedDirectly(t *testing.T) {
	database := dbtest.Open(t)
	userID := dbtest.SeedUser(t, database, "carol")

	book := &db.Book{Title: "T", Author: "A", Genre: "G", Description: "D", CreatedBy: userID}
	require.NoError(t, database.Create(book).Error)
	require.NoError(t, database.Create(&db.Review{BookID: book.ID, UserID: userID, Rating: 3, Comment: "x"}).Error)

	err := database.Delete(&db.Book{}, "id = ?", book.ID).Error
	assert.Error(t, err)
}
