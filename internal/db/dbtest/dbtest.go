// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"testing"

	"github.com/bookstore/services/reviews/internal/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Open returns a fresh, migrated database that is closed when the test ends.
func Open(t testing.TB) *db.DB {
	t.Helper()

	database, err := db.Connect(db.DriverSQLite, ":memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(database))

	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}

// SeedUser inserts a user with the given name and returns its id.
func SeedUser(t testing.TB, database *db.DB, name string) string {
	t.Helper()

	user := &db.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, database.Create(user).Error)
	return user.ID
}
