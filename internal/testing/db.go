// Package testing provides test helpers shared across the creditrisk packages.
package testing

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aristath/creditrisk/internal/database"
)

// NewTestDB creates a file-backed SQLite database in a per-test temporary
// directory and applies the embedded schema registered for name.
// Returns the database and a cleanup function that closes it; the directory
// itself is removed by the testing framework.
//
// Supported schema names:
//   - "runs" - applies runs_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db := openTestDB(t, name)
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, closer(t, db)
}

// NewTestDBWithSchema creates a test database and executes schema on it
// instead of the embedded one.
func NewTestDBWithSchema(t *testing.T, name string, schema string) (*database.DB, func()) {
	t.Helper()

	db := openTestDB(t, name)
	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			_ = db.Close()
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}

	return db, closer(t, db)
}

func openTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name))
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	return db
}

func closer(t *testing.T, db *database.DB) func() {
	closed := false
	return func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", db.Name(), err)
		}
	}
}
