// Package testing provides shared fixtures, mocks and database helpers for tests.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/database"
)

// NewTestDB creates a file-backed SQLite database in a temporary directory
// and applies the schema registered for name (unknown names get an empty
// database). The returned cleanup func closes the connection and is safe to
// call more than once.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	return db, func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
}
