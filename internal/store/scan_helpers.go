package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/taskorch/tm/internal/models"
)

// taskColumns is the canonical SELECT column list for task rows. Keep in
// sync with taskRowScanner.scan.
const taskColumns = `id, title, description, status, priority, assignee, created_by, blocked_reason,
	success_criteria, file_refs, completion_summary,
	feedback_quality, feedback_timeliness, feedback_notes,
	deadline, estimated_hours, actual_hours,
	version, created_at, updated_at, completed_at`

// scanNullString converts sql.NullString to string (empty if NULL)
func scanNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// scanNullTime converts sql.NullTime to *time.Time (nil if NULL)
func scanNullTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

func scanNullInt(ni sql.NullInt64) *int {
	if ni.Valid {
		v := int(ni.Int64)
		return &v
	}
	return nil
}

func scanNullFloat(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		v := nf.Float64
		return &v
	}
	return nil
}

// taskRowScanner encapsulates the common task row scanning logic.
type taskRowScanner struct {
	task models.Task

	assignee      sql.NullString
	blockedReason sql.NullString
	criteria      sql.NullString
	fileRefs      sql.NullString
	summary       sql.NullString
	quality       sql.NullInt64
	timeliness    sql.NullInt64
	notes         sql.NullString
	deadline      sql.NullTime
	estimated     sql.NullFloat64
	actual        sql.NullFloat64
	completedAt   sql.NullTime
}

func (s *taskRowScanner) scan(row interface {
	Scan(dest ...any) error
}) error {
	return row.Scan(
		&s.task.ID,
		&s.task.Title,
		&s.task.Description,
		&s.task.Status,
		&s.task.Priority,
		&s.assignee,
		&s.task.CreatedBy,
		&s.blockedReason,
		&s.criteria,
		&s.fileRefs,
		&s.summary,
		&s.quality,
		&s.timeliness,
		&s.notes,
		&s.deadline,
		&s.estimated,
		&s.actual,
		&s.task.Version,
		&s.task.CreatedAt,
		&s.task.UpdatedAt,
		&s.completedAt,
	)
}

// hydrate converts the nullable columns into Task fields. JSON columns are
// validated at write time; a row that fails to decode here is surfaced with
// the field left empty rather than failing the read.
func (s *taskRowScanner) hydrate() {
	s.task.Assignee = scanNullString(s.assignee)
	if s.blockedReason.Valid {
		s.task.BlockedReason = models.BlockedReason(s.blockedReason.String)
	}
	if s.criteria.Valid && s.criteria.String != "" {
		var criteria []models.Criterion
		if err := json.Unmarshal([]byte(s.criteria.String), &criteria); err == nil {
			s.task.SuccessCriteria = criteria
		}
	}
	if s.fileRefs.Valid && s.fileRefs.String != "" {
		var refs []models.FileRef
		if err := json.Unmarshal([]byte(s.fileRefs.String), &refs); err == nil {
			s.task.FileRefs = refs
		}
	}
	s.task.CompletionSummary = scanNullString(s.summary)
	s.task.FeedbackQuality = scanNullInt(s.quality)
	s.task.FeedbackTimeliness = scanNullInt(s.timeliness)
	s.task.FeedbackNotes = scanNullString(s.notes)
	s.task.Deadline = scanNullTime(s.deadline)
	s.task.EstimatedHours = scanNullFloat(s.estimated)
	s.task.ActualHours = scanNullFloat(s.actual)
	s.task.CompletedAt = scanNullTime(s.completedAt)
}

func (s *taskRowScanner) getTask() *models.Task {
	return &s.task
}

// scanTaskRow is a helper that scans and hydrates a task from a single row.
func scanTaskRow(row interface {
	Scan(dest ...any) error
}) (*models.Task, error) {
	scanner := &taskRowScanner{}
	if err := scanner.scan(row); err != nil {
		return nil, err
	}
	scanner.hydrate()
	return scanner.getTask(), nil
}
