// Package testutil provides an in-memory store for package tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/anonto42/rehab-social/backend/internal/repositories"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:social-test-%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repositories.AutoMigrate(db))
	return db
}

// SeedUsers creates one user per name and returns them in order.
func SeedUsers(t testing.TB, db *gorm.DB, names ...string) []models.User {
	t.Helper()

	repo := repositories.NewPostgresUserRepository(db)
	users := make([]models.User, 0, len(names))
	for _, name := range names {
		u := models.User{Name: name, Email: fmt.Sprintf("%s-%d@example.com", name, dbSeq.Add(1))}
		require.NoError(t, repo.CreateUser(context.Background(), &u))
		users = append(users, u)
	}
	return users
}
