package store

import (
	"database/sql"
	"testing"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	tempDir := t.TempDir()
	testDBPath := tempDir + "/test.db"

	db, err := InitDBWithPath(testDBPath)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return db, cleanup
}

// mustCreate is a shorthand for tests that just need a task row.
func mustCreate(t *testing.T, db *sql.DB, p CreateTaskParams) string {
	t.Helper()
	task, err := CreateTask(db, p)
	if err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	return task.ID
}
