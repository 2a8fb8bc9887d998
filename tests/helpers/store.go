// Package helpers provides shared fixtures for integration-style tests.
package helpers

import (
	"path/filepath"
	"testing"

	store "github.com/uirun/uirun/internal/repository"
)

// NewTestSQLiteStore opens a migrated store backed by a throwaway database
// file. File-backed so multiple connections observe one database, the same
// shape the service runs against.
func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "engine.db") + "?mode=rwc"
	s, err := store.NewSQLiteStore(dsn)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
