package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/tm/internal/models"
)

func TestAddDependencyBlocksTask(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	dep := mustCreate(t, db, CreateTaskParams{Title: "dep"})
	task := mustCreate(t, db, CreateTaskParams{Title: "task"})

	require.NoError(t, AddTaskDependency(db, task, dep))

	got, err := GetTask(db, task)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusBlocked, got.Status)
	assert.Equal(t, models.BlockedReasonDependency, got.BlockedReason)
}

func TestAddDependencyOnCompletedDoesNotBlock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	dep := mustCreate(t, db, CreateTaskParams{Title: "dep"})
	_, err := CompleteTask(db, CompleteTaskParams{TaskID: dep, AgentID: "a1"})
	require.NoError(t, err)

	task := mustCreate(t, db, CreateTaskParams{Title: "task"})
	require.NoError(t, AddTaskDependency(db, task, dep))

	got, err := GetTask(db, task)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, got.Status)
}

func TestSelfDependencyRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	task := mustCreate(t, db, CreateTaskParams{Title: "task"})
	err := AddTaskDependency(db, task, task)
	assert.True(t, models.IsKind(err, models.KindCycleDetected))
}

func TestCycleDetection(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	a := mustCreate(t, db, CreateTaskParams{Title: "a"})
	b := mustCreate(t, db, CreateTaskParams{Title: "b"})
	c := mustCreate(t, db, CreateTaskParams{Title: "c"})

	require.NoError(t, AddTaskDependency(db, b, a)) // b -> a
	require.NoError(t, AddTaskDependency(db, c, b)) // c -> b

	// a -> c would close the loop
	err := AddTaskDependency(db, a, c)
	assert.True(t, models.IsKind(err, models.KindCycleDetected))
}

func TestRemoveDependencyUnblocks(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	dep := mustCreate(t, db, CreateTaskParams{Title: "dep"})
	task := mustCreate(t, db, CreateTaskParams{Title: "task", DependsOn: []string{dep}})

	require.NoError(t, RemoveTaskDependency(db, task, dep))

	got, err := GetTask(db, task)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, got.Status)
	assert.Empty(t, got.BlockedReason)
}

func TestRemoveDependencyKeepsBlockWhenOthersRemain(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	dep1 := mustCreate(t, db, CreateTaskParams{Title: "dep1"})
	dep2 := mustCreate(t, db, CreateTaskParams{Title: "dep2"})
	task := mustCreate(t, db, CreateTaskParams{Title: "task", DependsOn: []string{dep1, dep2}})

	require.NoError(t, RemoveTaskDependency(db, task, dep1))

	got, err := GetTask(db, task)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusBlocked, got.Status)
}

func TestCompleteUnblocksDependents(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	dep := mustCreate(t, db, CreateTaskParams{Title: "dep"})
	child1 := mustCreate(t, db, CreateTaskParams{Title: "child1", DependsOn: []string{dep}, Assignee: "agent_1"})
	child2 := mustCreate(t, db, CreateTaskParams{Title: "child2", DependsOn: []string{dep}})

	result, err := CompleteTask(db, CompleteTaskParams{TaskID: dep, AgentID: "a1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{child1, child2}, result.UnblockedIDs)

	for _, id := range []string{child1, child2} {
		got, getErr := GetTask(db, id)
		require.NoError(t, getErr)
		assert.Equal(t, models.TaskStatusPending, got.Status)
	}

	// child1's assignee got a targeted unblocked notification
	notifications, err := Watch(db, "agent_1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, notifications)
	assert.Equal(t, models.NotificationUnblocked, notifications[0].Kind)
	assert.Equal(t, child1, notifications[0].TaskID)
}

func TestCompleteDoesNotUnblockWhileOtherDepsOpen(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	dep1 := mustCreate(t, db, CreateTaskParams{Title: "dep1"})
	dep2 := mustCreate(t, db, CreateTaskParams{Title: "dep2"})
	child := mustCreate(t, db, CreateTaskParams{Title: "child", DependsOn: []string{dep1, dep2}})

	result, err := CompleteTask(db, CompleteTaskParams{TaskID: dep1, AgentID: "a1"})
	require.NoError(t, err)
	assert.Empty(t, result.UnblockedIDs)

	got, err := GetTask(db, child)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusBlocked, got.Status)
}

func TestCancelledDependencyCountsAsSatisfied(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	dep := mustCreate(t, db, CreateTaskParams{Title: "dep"})
	child := mustCreate(t, db, CreateTaskParams{Title: "child", DependsOn: []string{dep}})

	status := models.TaskStatusCancelled
	_, err := UpdateTask(db, dep, UpdateTaskParams{Status: &status})
	require.NoError(t, err)

	got, err := GetTask(db, child)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, got.Status)
}

func TestAddDependencyToTerminalTaskRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	dep := mustCreate(t, db, CreateTaskParams{Title: "dep"})

	cancelled := mustCreate(t, db, CreateTaskParams{Title: "cancelled"})
	status := models.TaskStatusCancelled
	_, err := UpdateTask(db, cancelled, UpdateTaskParams{Status: &status})
	require.NoError(t, err)

	err = AddTaskDependency(db, cancelled, dep)
	assert.True(t, models.IsKind(err, models.KindIllegalTransition))

	// the cancelled task stays terminal instead of coming back as blocked
	got, err := GetTask(db, cancelled)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, got.Status)
	assert.Empty(t, got.BlockedReason)

	completed := mustCreate(t, db, CreateTaskParams{Title: "done"})
	_, err = CompleteTask(db, CompleteTaskParams{TaskID: completed, AgentID: "a1"})
	require.NoError(t, err)

	err = AddTaskDependency(db, completed, dep)
	assert.True(t, models.IsKind(err, models.KindIllegalTransition))
}

func TestGetDependentsAndDependencies(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	dep := mustCreate(t, db, CreateTaskParams{Title: "dep"})
	child := mustCreate(t, db, CreateTaskParams{Title: "child", DependsOn: []string{dep}})

	deps, err := GetTaskDependencies(db, child)
	require.NoError(t, err)
	assert.Equal(t, []string{dep}, deps)

	dependents, err := GetDependents(db, dep)
	require.NoError(t, err)
	assert.Equal(t, []string{child}, dependents)
}
