// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"user-api/internal/core/database"
	"user-api/pkg/utils"
)

// OpenTestDB returns a migrated in-memory sqlite database private to t.
// One connection only: every new sqlite :memory: connection is a fresh database.
func OpenTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// FastHasher is bcrypt at the minimum cost.
func FastHasher() *utils.Bcrypt { return &utils.Bcrypt{Cost: bcrypt.MinCost} }
