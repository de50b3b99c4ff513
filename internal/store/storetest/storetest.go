// Package storetest opens throwaway in-memory databases for tests.
package storetest

import (
	"testing"

	"storefront/internal/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// New returns a migrated in-memory sqlite database private to the test.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := store.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
