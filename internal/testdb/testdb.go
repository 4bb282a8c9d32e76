// Package testdb opens throwaway in-memory databases for tests.
package testdb

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/Skotchmaster/galenos/internal/config"
)

// Open returns a migrated, private sqlite database that is closed when t ends.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := config.OpenDB(context.Background(), "sqlite::memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = config.CloseDB(db) })
	return db
}
