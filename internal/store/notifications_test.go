package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/tm/internal/models"
)

func TestWatchConsumesExactlyOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "task"})
	require.NoError(t, Broadcast(db, id, models.NotificationDiscovery, "found a thing"))

	first, err := Watch(db, "agent_1", 0)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "found a thing", first[0].Message)

	second, err := Watch(db, "agent_1", 0)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestWatchTargetedVsBroadcast(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "task"})
	require.NoError(t, JoinTask(db, id, "agent_1"))
	require.NoError(t, JoinTask(db, id, "agent_2"))
	require.NoError(t, NotifyParticipants(db, id, "agent_1", models.NotificationSync, "checkpoint"))

	// agent_1 was the actor and gets nothing
	mine, err := Watch(db, "agent_1", 0)
	require.NoError(t, err)
	assert.Empty(t, mine)

	theirs, err := Watch(db, "agent_2", 0)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, models.NotificationSync, theirs[0].Kind)
}

func TestWatchFIFOOrderAndLimit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "task"})
	for _, msg := range []string{"first", "second", "third"} {
		require.NoError(t, Broadcast(db, id, models.NotificationDiscovery, msg))
	}

	got, err := Watch(db, "agent_1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Message)
	assert.Equal(t, "second", got[1].Message)

	rest, err := Watch(db, "agent_1", 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "third", rest[0].Message)
}

func TestWatchRequiresAgent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := Watch(db, "", 0)
	assert.True(t, models.IsKind(err, models.KindInvalidInput))
}

func TestBroadcastRequiresMessage(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "task"})
	err := Broadcast(db, id, models.NotificationDiscovery, "  ")
	assert.True(t, models.IsKind(err, models.KindInvalidInput))
}

func TestUnreadCount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "task"})
	require.NoError(t, Broadcast(db, id, models.NotificationDiscovery, "one"))
	require.NoError(t, Broadcast(db, id, models.NotificationDiscovery, "two"))

	count, err := UnreadCount(db, "agent_1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = Watch(db, "agent_1", 0)
	require.NoError(t, err)

	count, err = UnreadCount(db, "agent_1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
