package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/tm/internal/models"
)

func TestCompleteTask(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	hours := 3.5
	id := mustCreate(t, db, CreateTaskParams{Title: "work"})

	result, err := CompleteTask(db, CompleteTaskParams{
		TaskID:      id,
		AgentID:     "agent_1",
		ActualHours: &hours,
		Summary:     "implemented, tested, and documented the feature",
	})
	require.NoError(t, err)

	task := result.Task
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	require.NotNil(t, task.ActualHours)
	assert.Equal(t, hours, *task.ActualHours)
	assert.Equal(t, "implemented, tested, and documented the feature", task.CompletionSummary)
}

func TestCompleteTaskTwiceFails(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "once"})
	_, err := CompleteTask(db, CompleteTaskParams{TaskID: id, AgentID: "a1"})
	require.NoError(t, err)

	_, err = CompleteTask(db, CompleteTaskParams{TaskID: id, AgentID: "a1"})
	assert.True(t, models.IsKind(err, models.KindIllegalTransition))
	assert.Contains(t, err.Error(), "already completed")
}

func TestCompleteBlockedTaskFails(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	dep := mustCreate(t, db, CreateTaskParams{Title: "dep"})
	blocked := mustCreate(t, db, CreateTaskParams{Title: "blocked", DependsOn: []string{dep}})

	_, err := CompleteTask(db, CompleteTaskParams{TaskID: blocked, AgentID: "a1"})
	assert.True(t, models.IsKind(err, models.KindIllegalTransition))
}

func TestCompleteWithValidationPasses(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{
		Title: "validated",
		Criteria: []models.Criterion{
			{Criterion: "tests pass", Measurable: "tests_pass"},
			{Criterion: "coverage", Measurable: "coverage >= 80"},
		},
	})

	result, err := CompleteTask(db, CompleteTaskParams{
		TaskID:   id,
		AgentID:  "a1",
		Validate: true,
		Context:  map[string]any{"tests_pass": true, "coverage": 85.0},
	})
	require.NoError(t, err)
	assert.Len(t, result.CriteriaResults, 2)
	assert.Equal(t, models.TaskStatusCompleted, result.Task.Status)
}

func TestCompleteWithValidationFails(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{
		Title: "validated",
		Criteria: []models.Criterion{
			{Criterion: "coverage", Measurable: "coverage >= 80"},
		},
	})

	_, err := CompleteTask(db, CompleteTaskParams{
		TaskID:   id,
		AgentID:  "a1",
		Validate: true,
		Context:  map[string]any{"coverage": 60.0},
	})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindValidationFailed))

	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Failures, 1)
	assert.Equal(t, "coverage", ve.Failures[0].Criterion)

	// the failed completion rolled back
	task, getErr := GetTask(db, id)
	require.NoError(t, getErr)
	assert.Equal(t, models.TaskStatusPending, task.Status)
}

func TestCompleteRequireSummary(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "needs summary"})

	_, err := CompleteTask(db, CompleteTaskParams{
		TaskID:         id,
		AgentID:        "a1",
		RequireSummary: true,
		Summary:        "too short",
	})
	assert.True(t, models.IsKind(err, models.KindInvalidInput))
}

func TestCompleteImpactReview(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	done := mustCreate(t, db, CreateTaskParams{
		Title:    "refactor auth",
		FileRefs: []models.FileRef{{Path: "internal/auth/session.go"}},
	})
	affected := mustCreate(t, db, CreateTaskParams{
		Title:    "extend auth",
		Assignee: "agent_2",
		FileRefs: []models.FileRef{{Path: "internal/auth/session.go", LineStart: 10, LineEnd: 40}},
	})
	mustCreate(t, db, CreateTaskParams{
		Title:    "unrelated",
		FileRefs: []models.FileRef{{Path: "cmd/tm/main.go"}},
	})

	result, err := CompleteTask(db, CompleteTaskParams{TaskID: done, AgentID: "a1", ImpactReview: true})
	require.NoError(t, err)
	assert.Equal(t, []string{affected}, result.ImpactedIDs)

	notifications, err := Watch(db, "agent_2", 0)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationImpact, notifications[0].Kind)
	assert.Equal(t, affected, notifications[0].TaskID)
}

func TestConcurrentCompleteOneWinner(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := mustCreate(t, db, CreateTaskParams{Title: "contested"})

	const agents = 8
	errs := make([]error, agents)
	var wg sync.WaitGroup
	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = CompleteTask(db, CompleteTaskParams{
				TaskID:  id,
				AgentID: fmt.Sprintf("agent_%d", n),
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, models.IsKind(err, models.KindIllegalTransition),
			"loser should see illegal_transition, got %v", err)
	}
	assert.Equal(t, 1, winners)

	got, err := GetTask(db, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	assert.Equal(t, 2, got.Version)
}
