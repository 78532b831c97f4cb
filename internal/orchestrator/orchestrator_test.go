package orchestrator

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/tm/internal/models"
	"github.com/taskorch/tm/internal/store"
)

func setupOrchestrator(t *testing.T) (*Orchestrator, *sql.DB) {
	t.Helper()
	t.Setenv("TM_TEST_MODE", "1")

	db, err := store.InitDBWithPath(t.TempDir() + "/tasks.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(db, "orchestrator", nil), db
}

func TestBreakdown(t *testing.T) {
	o, _ := setupOrchestrator(t)

	tasks, err := o.Breakdown([]BreakdownItem{
		{CreateTaskParams: store.CreateTaskParams{Title: "design schema"}},
		{CreateTaskParams: store.CreateTaskParams{Title: "write migrations"}, DependsOnIndex: []int{0}},
		{CreateTaskParams: store.CreateTaskParams{Title: "wire queries"}, DependsOnIndex: []int{1}},
	})
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, models.TaskStatusPending, tasks[0].Status)
	assert.Equal(t, models.TaskStatusBlocked, tasks[1].Status)
	assert.Equal(t, []string{tasks[0].ID}, tasks[1].DependsOn)
	assert.Equal(t, []string{tasks[1].ID}, tasks[2].DependsOn)
	assert.Equal(t, "orchestrator", tasks[0].CreatedBy)
}

func TestBreakdownRejectsForwardIndex(t *testing.T) {
	o, db := setupOrchestrator(t)

	_, err := o.Breakdown([]BreakdownItem{
		{CreateTaskParams: store.CreateTaskParams{Title: "first"}, DependsOnIndex: []int{1}},
		{CreateTaskParams: store.CreateTaskParams{Title: "second"}},
	})
	assert.True(t, models.IsKind(err, models.KindInvalidInput))

	// nothing committed
	tasks, listErr := store.ListTasks(db, store.TaskFilter{})
	require.NoError(t, listErr)
	assert.Empty(t, tasks)
}

func TestBreakdownAtomicOnFailure(t *testing.T) {
	o, db := setupOrchestrator(t)

	_, err := o.Breakdown([]BreakdownItem{
		{CreateTaskParams: store.CreateTaskParams{Title: "ok"}},
		{CreateTaskParams: store.CreateTaskParams{Title: "   "}},
	})
	require.Error(t, err)

	tasks, listErr := store.ListTasks(db, store.TaskFilter{})
	require.NoError(t, listErr)
	assert.Empty(t, tasks)
}

func TestCancelUnblocksDependents(t *testing.T) {
	o, db := setupOrchestrator(t)

	dep, err := o.Add(store.CreateTaskParams{Title: "dep"})
	require.NoError(t, err)
	child, err := o.Add(store.CreateTaskParams{Title: "child", DependsOn: []string{dep.ID}})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusBlocked, child.Status)

	cancelled, err := o.Cancel(dep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, cancelled.Status)

	got, err := store.GetTask(db, child.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, got.Status)
}

func TestLinkUnlink(t *testing.T) {
	o, db := setupOrchestrator(t)

	a, err := o.Add(store.CreateTaskParams{Title: "a"})
	require.NoError(t, err)
	b, err := o.Add(store.CreateTaskParams{Title: "b"})
	require.NoError(t, err)

	require.NoError(t, o.Link(b.ID, a.ID))
	got, err := store.GetTask(db, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusBlocked, got.Status)

	require.NoError(t, o.Unlink(b.ID, a.ID))
	got, err = store.GetTask(db, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, got.Status)
}

func TestReport(t *testing.T) {
	o, db := setupOrchestrator(t)

	open, err := o.Add(store.CreateTaskParams{Title: "open"})
	require.NoError(t, err)
	_ = open

	past := time.Now().UTC().Add(-time.Hour)
	overdue, err := o.Add(store.CreateTaskParams{Title: "overdue", Deadline: &past})
	require.NoError(t, err)

	stuck, err := o.Add(store.CreateTaskParams{Title: "stuck"})
	require.NoError(t, err)
	_, err = store.EscalateTask(db, stuck.ID, "waiting on access")
	require.NoError(t, err)

	done, err := o.Add(store.CreateTaskParams{Title: "done"})
	require.NoError(t, err)
	_, err = o.Complete(done.ID, store.CompleteTaskParams{})
	require.NoError(t, err)

	report, err := o.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.CountByStatus[models.TaskStatusPending])
	assert.Equal(t, 1, report.CountByStatus[models.TaskStatusBlocked])
	assert.Equal(t, 1, report.CountByStatus[models.TaskStatusCompleted])

	require.Len(t, report.Escalated, 1)
	assert.Equal(t, stuck.ID, report.Escalated[0].ID)
	require.Len(t, report.Overdue, 1)
	assert.Equal(t, overdue.ID, report.Overdue[0].ID)
	assert.NotEmpty(t, report.CriticalPath)
}

func TestReactivate(t *testing.T) {
	o, db := setupOrchestrator(t)

	task, err := o.Add(store.CreateTaskParams{Title: "stuck"})
	require.NoError(t, err)
	_, err = store.EscalateTask(db, task.ID, "blocked on review")
	require.NoError(t, err)

	reactivated, err := o.Reactivate(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, reactivated.Status)
}
