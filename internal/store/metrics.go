package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/taskorch/tm/internal/models"
)

// estimationEpsilon guards the accuracy divisor for zero estimates.
const estimationEpsilon = 0.1

// MetricsPeriod filters metrics to tasks completed within a window.
// Zero values mean unbounded.
type MetricsPeriod struct {
	From time.Time
	To   time.Time
}

// PeriodFromName maps the CLI period names onto a window ending now.
func PeriodFromName(name string, now time.Time) (MetricsPeriod, error) {
	switch name {
	case "":
		return MetricsPeriod{}, nil
	case "week":
		return MetricsPeriod{From: now.AddDate(0, 0, -7), To: now}, nil
	case "month":
		return MetricsPeriod{From: now.AddDate(0, -1, 0), To: now}, nil
	}
	return MetricsPeriod{}, models.E(models.KindInvalidInput, "unknown period %q (want week or month)", name)
}

func (p MetricsPeriod) whereClause() (string, []any) {
	clause := ""
	var args []any
	if !p.From.IsZero() {
		clause += " AND completed_at >= ?"
		args = append(args, p.From.UTC())
	}
	if !p.To.IsZero() {
		clause += " AND completed_at <= ?"
		args = append(args, p.To.UTC())
	}
	return clause, args
}

// FeedbackMetrics aggregates feedback scores over completed tasks.
type FeedbackMetrics struct {
	Count             int             `json:"count"`
	AverageQuality    float64         `json:"average_quality"`
	AverageTimeliness float64         `json:"average_timeliness"`
	QualityDist       map[int]int     `json:"quality_distribution"`
	TimelinessDist    map[int]int     `json:"timeliness_distribution"`
	ByAssignee        map[string]int  `json:"by_assignee"`
	MonthlyTrend      []MonthlyBucket `json:"monthly_trend"`
}

// MonthlyBucket is one year-month aggregation point.
type MonthlyBucket struct {
	Month          string  `json:"month"`
	Count          int     `json:"count"`
	AverageQuality float64 `json:"average_quality"`
}

// GetFeedbackMetrics computes the feedback aggregations for the period.
func GetFeedbackMetrics(ctx context.Context, db *sql.DB, period MetricsPeriod) (*FeedbackMetrics, error) {
	where, args := period.whereClause()
	rows, err := db.QueryContext(ctx, `
		SELECT assignee, feedback_quality, feedback_timeliness, strftime('%Y-%m', completed_at)
		FROM tasks
		WHERE status = 'completed'
		  AND (feedback_quality IS NOT NULL OR feedback_timeliness IS NOT NULL)`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback metrics: %w", err)
	}
	defer rows.Close()

	m := &FeedbackMetrics{
		QualityDist:    make(map[int]int),
		TimelinessDist: make(map[int]int),
		ByAssignee:     make(map[string]int),
	}
	var qualitySum, timelinessSum int
	var qualityN, timelinessN int
	monthly := make(map[string]*MonthlyBucket)
	monthlyQuality := make(map[string]int)

	for rows.Next() {
		var assignee, month sql.NullString
		var quality, timeliness sql.NullInt64
		if err := rows.Scan(&assignee, &quality, &timeliness, &month); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		m.Count++
		if quality.Valid {
			q := int(quality.Int64)
			qualitySum += q
			qualityN++
			m.QualityDist[q]++
		}
		if timeliness.Valid {
			t := int(timeliness.Int64)
			timelinessSum += t
			timelinessN++
			m.TimelinessDist[t]++
		}
		key := assignee.String
		if key == "" {
			key = "(unassigned)"
		}
		m.ByAssignee[key]++
		if month.Valid {
			bucket, ok := monthly[month.String]
			if !ok {
				bucket = &MonthlyBucket{Month: month.String}
				monthly[month.String] = bucket
			}
			bucket.Count++
			if quality.Valid {
				monthlyQuality[month.String] += int(quality.Int64)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}

	if qualityN > 0 {
		m.AverageQuality = float64(qualitySum) / float64(qualityN)
	}
	if timelinessN > 0 {
		m.AverageTimeliness = float64(timelinessSum) / float64(timelinessN)
	}
	months := make([]string, 0, len(monthly))
	for month := range monthly {
		months = append(months, month)
	}
	sort.Strings(months)
	for _, month := range months {
		bucket := monthly[month]
		if bucket.Count > 0 {
			bucket.AverageQuality = float64(monthlyQuality[month]) / float64(bucket.Count)
		}
		m.MonthlyTrend = append(m.MonthlyTrend, *bucket)
	}
	return m, nil
}

// TimeMetrics aggregates estimation accuracy over completed tasks that carry
// both estimated and actual hours.
type TimeMetrics struct {
	Count              int                `json:"count"`
	TotalEstimated     float64            `json:"total_estimated_hours"`
	TotalActual        float64            `json:"total_actual_hours"`
	AverageAccuracy    float64            `json:"average_accuracy"`
	AccuracyByAssignee map[string]float64 `json:"accuracy_by_assignee"`
}

// EstimationAccuracy computes 1 - |actual-estimated| / max(estimated, eps),
// clamped to [0, 1].
func EstimationAccuracy(estimated, actual float64) float64 {
	denom := math.Max(estimated, estimationEpsilon)
	acc := 1 - math.Abs(actual-estimated)/denom
	return math.Max(0, math.Min(1, acc))
}

// GetTimeMetrics computes the time-tracking aggregations for the period.
func GetTimeMetrics(ctx context.Context, db *sql.DB, period MetricsPeriod) (*TimeMetrics, error) {
	where, args := period.whereClause()
	rows, err := db.QueryContext(ctx, `
		SELECT assignee, estimated_hours, actual_hours
		FROM tasks
		WHERE status = 'completed'
		  AND estimated_hours IS NOT NULL
		  AND actual_hours IS NOT NULL`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time metrics: %w", err)
	}
	defer rows.Close()

	m := &TimeMetrics{AccuracyByAssignee: make(map[string]float64)}
	var accuracySum float64
	perAssigneeSum := make(map[string]float64)
	perAssigneeN := make(map[string]int)

	for rows.Next() {
		var assignee sql.NullString
		var estimated, actual float64
		if err := rows.Scan(&assignee, &estimated, &actual); err != nil {
			return nil, fmt.Errorf("failed to scan time row: %w", err)
		}
		m.Count++
		m.TotalEstimated += estimated
		m.TotalActual += actual
		acc := EstimationAccuracy(estimated, actual)
		accuracySum += acc
		key := assignee.String
		if key == "" {
			key = "(unassigned)"
		}
		perAssigneeSum[key] += acc
		perAssigneeN[key]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate time rows: %w", err)
	}

	if m.Count > 0 {
		m.AverageAccuracy = accuracySum / float64(m.Count)
	}
	for key, sum := range perAssigneeSum {
		m.AccuracyByAssignee[key] = sum / float64(perAssigneeN[key])
	}
	return m, nil
}

// AdoptionMetrics reports what fraction of completed tasks carry criteria,
// summaries, and feedback.
type AdoptionMetrics struct {
	CompletedCount   int     `json:"completed_count"`
	WithCriteria     float64 `json:"with_criteria"`
	WithSummary      float64 `json:"with_summary"`
	WithFeedback     float64 `json:"with_feedback"`
	WithTimeTracking float64 `json:"with_time_tracking"`
}

// GetAdoptionMetrics computes the adoption fractions for the period.
func GetAdoptionMetrics(ctx context.Context, db *sql.DB, period MetricsPeriod) (*AdoptionMetrics, error) {
	where, args := period.whereClause()
	var m AdoptionMetrics
	row := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			SUM(CASE WHEN success_criteria IS NOT NULL THEN 1 ELSE 0 END),
			SUM(CASE WHEN completion_summary IS NOT NULL THEN 1 ELSE 0 END),
			SUM(CASE WHEN feedback_quality IS NOT NULL OR feedback_timeliness IS NOT NULL THEN 1 ELSE 0 END),
			SUM(CASE WHEN estimated_hours IS NOT NULL AND actual_hours IS NOT NULL THEN 1 ELSE 0 END)
		FROM tasks
		WHERE status = 'completed'`+where, args...)
	var cCriteria, cSummary, cFeedback, cTimed sql.NullInt64
	if err := row.Scan(&m.CompletedCount, &cCriteria, &cSummary, &cFeedback, &cTimed); err != nil {
		return nil, fmt.Errorf("failed to query adoption metrics: %w", err)
	}

	if m.CompletedCount > 0 {
		n := float64(m.CompletedCount)
		m.WithCriteria = float64(cCriteria.Int64) / n
		m.WithSummary = float64(cSummary.Int64) / n
		m.WithFeedback = float64(cFeedback.Int64) / n
		m.WithTimeTracking = float64(cTimed.Int64) / n
	}
	return &m, nil
}
