package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/tm/internal/models"
)

func floatPtr(f float64) *float64 { return &f }

func completeWithHours(t *testing.T, db *sql.DB, assignee string, estimated, actual float64) string {
	t.Helper()
	id := mustCreate(t, db, CreateTaskParams{
		Title:          "timed",
		Assignee:       assignee,
		EstimatedHours: floatPtr(estimated),
	})
	_, err := CompleteTask(db, CompleteTaskParams{
		TaskID:      id,
		AgentID:     "a1",
		ActualHours: floatPtr(actual),
	})
	require.NoError(t, err)
	return id
}

func TestEstimationAccuracy(t *testing.T) {
	assert.InDelta(t, 1.0, EstimationAccuracy(4, 4), 1e-9)
	assert.InDelta(t, 0.5, EstimationAccuracy(4, 6), 1e-9)
	assert.InDelta(t, 0.5, EstimationAccuracy(4, 2), 1e-9)
	// massively over budget clamps to zero instead of going negative
	assert.Zero(t, EstimationAccuracy(1, 10))
	// zero estimates use the epsilon divisor rather than dividing by zero
	assert.Zero(t, EstimationAccuracy(0, 10))
	assert.InDelta(t, 1.0, EstimationAccuracy(0, 0), 1e-9)
}

func TestPeriodFromName(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	p, err := PeriodFromName("week", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), p.From)
	assert.Equal(t, now, p.To)

	p, err = PeriodFromName("month", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, -1, 0), p.From)

	p, err = PeriodFromName("", now)
	require.NoError(t, err)
	assert.True(t, p.From.IsZero())
	assert.True(t, p.To.IsZero())

	_, err = PeriodFromName("fortnight", now)
	assert.True(t, models.IsKind(err, models.KindInvalidInput))
}

func TestGetTimeMetrics(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	completeWithHours(t, db, "agent_1", 4, 4)
	completeWithHours(t, db, "agent_1", 4, 6)
	completeWithHours(t, db, "", 2, 2)

	m, err := GetTimeMetrics(context.Background(), db, MetricsPeriod{})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Count)
	assert.InDelta(t, 10.0, m.TotalEstimated, 1e-9)
	assert.InDelta(t, 12.0, m.TotalActual, 1e-9)
	assert.InDelta(t, (1.0+0.5+1.0)/3, m.AverageAccuracy, 1e-9)
	assert.InDelta(t, 0.75, m.AccuracyByAssignee["agent_1"], 1e-9)
	assert.InDelta(t, 1.0, m.AccuracyByAssignee["(unassigned)"], 1e-9)
}

func TestGetFeedbackMetrics(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	first := completedTask(t, db)
	_, err := SetFeedback(db, first, FeedbackParams{Quality: intPtr(5), Timeliness: intPtr(4)})
	require.NoError(t, err)

	second := mustCreate(t, db, CreateTaskParams{Title: "done too", Assignee: "agent_1"})
	_, err = CompleteTask(db, CompleteTaskParams{TaskID: second, AgentID: "a1"})
	require.NoError(t, err)
	_, err = SetFeedback(db, second, FeedbackParams{Quality: intPtr(3)})
	require.NoError(t, err)

	// completed but never rated, excluded from the aggregation
	completedTask(t, db)

	m, err := GetFeedbackMetrics(context.Background(), db, MetricsPeriod{})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Count)
	assert.InDelta(t, 4.0, m.AverageQuality, 1e-9)
	assert.InDelta(t, 4.0, m.AverageTimeliness, 1e-9)
	assert.Equal(t, 1, m.QualityDist[5])
	assert.Equal(t, 1, m.QualityDist[3])
	assert.Equal(t, 1, m.ByAssignee["agent_1"])
	assert.Equal(t, 1, m.ByAssignee["(unassigned)"])
	require.Len(t, m.MonthlyTrend, 1)
	assert.Equal(t, 2, m.MonthlyTrend[0].Count)
}

func TestGetAdoptionMetrics(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	withCriteria := mustCreate(t, db, CreateTaskParams{
		Title:    "rigorous",
		Criteria: []models.Criterion{{Criterion: "done", Measurable: "true"}},
	})
	_, err := CompleteTask(db, CompleteTaskParams{
		TaskID:  withCriteria,
		AgentID: "a1",
		Summary: "finished with criteria attached for the record",
	})
	require.NoError(t, err)

	completedTask(t, db)
	mustCreate(t, db, CreateTaskParams{Title: "still open"})

	m, err := GetAdoptionMetrics(context.Background(), db, MetricsPeriod{})
	require.NoError(t, err)
	assert.Equal(t, 2, m.CompletedCount)
	assert.InDelta(t, 0.5, m.WithCriteria, 1e-9)
	assert.InDelta(t, 0.5, m.WithSummary, 1e-9)
	assert.Zero(t, m.WithFeedback)
	assert.Zero(t, m.WithTimeTracking)
}

func TestMetricsEmptyDatabase(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	fm, err := GetFeedbackMetrics(context.Background(), db, MetricsPeriod{})
	require.NoError(t, err)
	assert.Zero(t, fm.Count)

	tm, err := GetTimeMetrics(context.Background(), db, MetricsPeriod{})
	require.NoError(t, err)
	assert.Zero(t, tm.Count)

	am, err := GetAdoptionMetrics(context.Background(), db, MetricsPeriod{})
	require.NoError(t, err)
	assert.Zero(t, am.CompletedCount)
}
