package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/tm/internal/models"
)

func TestJoinTaskIdempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "task"})
	require.NoError(t, JoinTask(db, id, "agent_1"))
	require.NoError(t, JoinTask(db, id, "agent_1"))
	require.NoError(t, JoinTask(db, id, "agent_2"))

	participants, err := ListParticipants(db, id)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "agent_1", participants[0].AgentID)
	assert.Equal(t, "agent_2", participants[1].AgentID)
}

func TestJoinTerminalTaskFails(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "done"})
	_, err := CompleteTask(db, CompleteTaskParams{TaskID: id, AgentID: "a1"})
	require.NoError(t, err)

	err = JoinTask(db, id, "agent_1")
	assert.True(t, models.IsKind(err, models.KindIllegalTransition))
}

func TestAddProgress(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "task"})
	require.NoError(t, AddProgress(db, id, "agent_1", "started"))
	require.NoError(t, AddProgress(db, id, "agent_1", "halfway"))

	entries, err := ListProgress(db, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "started", entries[0].Message)
	assert.Equal(t, "halfway", entries[1].Message)
}

func TestAddProgressValidation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "task"})
	err := AddProgress(db, id, "agent_1", "  ")
	assert.True(t, models.IsKind(err, models.KindInvalidInput))

	_, err = CompleteTask(db, CompleteTaskParams{TaskID: id, AgentID: "a1"})
	require.NoError(t, err)
	err = AddProgress(db, id, "agent_1", "late note")
	assert.True(t, models.IsKind(err, models.KindIllegalTransition))
}
