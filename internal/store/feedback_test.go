package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/tm/internal/models"
)

func intPtr(i int) *int { return &i }

func completedTask(t *testing.T, db *sql.DB) string {
	t.Helper()
	id := mustCreate(t, db, CreateTaskParams{Title: "done"})
	_, err := CompleteTask(db, CompleteTaskParams{TaskID: id, AgentID: "a1"})
	require.NoError(t, err)
	return id
}

func TestSetFeedback(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := completedTask(t, db)
	task, err := SetFeedback(db, id, FeedbackParams{
		Quality:    intPtr(5),
		Timeliness: intPtr(4),
		Note:       "solid work",
	})
	require.NoError(t, err)
	require.NotNil(t, task.FeedbackQuality)
	assert.Equal(t, 5, *task.FeedbackQuality)
	require.NotNil(t, task.FeedbackTimeliness)
	assert.Equal(t, 4, *task.FeedbackTimeliness)
	assert.Equal(t, "solid work", task.FeedbackNotes)
}

func TestSetFeedbackValidation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := completedTask(t, db)

	_, err := SetFeedback(db, id, FeedbackParams{})
	assert.True(t, models.IsKind(err, models.KindInvalidInput))

	_, err = SetFeedback(db, id, FeedbackParams{Quality: intPtr(0)})
	assert.True(t, models.IsKind(err, models.KindInvalidInput))

	_, err = SetFeedback(db, id, FeedbackParams{Quality: intPtr(6)})
	assert.True(t, models.IsKind(err, models.KindInvalidInput))
}

func TestSetFeedbackRequiresCompleted(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "open"})
	_, err := SetFeedback(db, id, FeedbackParams{Quality: intPtr(3)})
	assert.True(t, models.IsKind(err, models.KindIllegalTransition))
}

func TestSetFeedbackSingleShot(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := completedTask(t, db)
	_, err := SetFeedback(db, id, FeedbackParams{Quality: intPtr(4)})
	require.NoError(t, err)

	_, err = SetFeedback(db, id, FeedbackParams{Quality: intPtr(5)})
	assert.True(t, models.IsKind(err, models.KindIllegalTransition))
}
