package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	dep := mustCreate(t, db, CreateTaskParams{Title: "dep"})
	child := mustCreate(t, db, CreateTaskParams{Title: "child", DependsOn: []string{dep}})

	doc, err := Export(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.TaskCount)
	require.Len(t, doc.Tasks, 2)
	assert.False(t, doc.ExportedAt.IsZero())

	byID := make(map[string][]string)
	for _, task := range doc.Tasks {
		byID[task.ID] = task.DependsOn
	}
	assert.Empty(t, byID[dep])
	assert.Equal(t, []string{dep}, byID[child])
}

func TestExportDeterministicOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	for i := 0; i < 5; i++ {
		mustCreate(t, db, CreateTaskParams{Title: "task"})
	}

	first, err := Export(context.Background(), db)
	require.NoError(t, err)
	second, err := Export(context.Background(), db)
	require.NoError(t, err)

	require.Len(t, second.Tasks, len(first.Tasks))
	for i := range first.Tasks {
		assert.Equal(t, first.Tasks[i].ID, second.Tasks[i].ID)
	}
}

func TestExportEmpty(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	doc, err := Export(context.Background(), db)
	require.NoError(t, err)
	assert.Zero(t, doc.TaskCount)
	assert.Empty(t, doc.Tasks)
}
