package models

import (
	"time"
)

// ID Strategy:
// - Tasks use 8-hex-char string IDs (distributed generation, collision-checked on insert)
// - Notifications and progress entries use int64 (monotonic ordering, auto-increment)
//
// Append-only logs benefit from sequential IDs; task creation from multiple
// processes benefits from collision-free random IDs.

// TaskStatus represents the current state of a task.
type TaskStatus string

// Task status constants.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal returns true if the status counts as resolved for dependency
// purposes (completed or cancelled).
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusBlocked, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskPriority represents task priority.
type TaskPriority string

// Task priority constants, lowest to highest.
const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// Rank returns a numeric weight for ordering (critical highest).
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 0
	}
	return 1
}

// Valid reports whether p is one of the known priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Field limits enforced at write time.
const (
	MaxTitleLength            = 500
	MaxCriteriaItems          = 10
	MaxCriterionLength        = 500
	MaxFeedbackNotesLength    = 500
	MinCompletionSummaryChars = 20
	MaxCompletionSummaryChars = 2000
)

// Criterion is a single success criterion: a human description plus a
// machine-evaluable measurable expression.
type Criterion struct {
	Criterion  string `json:"criterion"`
	Measurable string `json:"measurable"`
}

// FileRef points at a file (optionally a line range) touched by a task.
type FileRef struct {
	Path      string `json:"path"`
	LineStart int    `json:"line_start,omitempty"`
	LineEnd   int    `json:"line_end,omitempty"`
}

// BlockedReason records why a task is blocked.
type BlockedReason string

// BlockedReasonDependency is set when a task is blocked because an
// unresolved dependency exists. Escalations carry a freeform reason with
// the "escalated:" prefix instead.
const BlockedReasonDependency BlockedReason = "dependency"

// BlockedReasonEscalatedPrefix is prepended to a freeform reason when a
// worker escalates a task (e.g. "escalated:missing credentials").
const BlockedReasonEscalatedPrefix = "escalated:"

// Task represents a task in the system.
type Task struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Description        string        `json:"description,omitempty"`
	Status             TaskStatus    `json:"status"`
	Priority           TaskPriority  `json:"priority"`
	Assignee           string        `json:"assignee,omitempty"`
	CreatedBy          string        `json:"created_by"`
	BlockedReason      BlockedReason `json:"blocked_reason,omitempty"`
	DependsOn          []string      `json:"depends_on,omitempty"`
	SuccessCriteria    []Criterion   `json:"success_criteria,omitempty"`
	FileRefs           []FileRef     `json:"file_refs,omitempty"`
	CompletionSummary  string        `json:"completion_summary,omitempty"`
	FeedbackQuality    *int          `json:"feedback_quality,omitempty"`
	FeedbackTimeliness *int          `json:"feedback_timeliness,omitempty"`
	FeedbackNotes      string        `json:"feedback_notes,omitempty"`
	Deadline           *time.Time    `json:"deadline,omitempty"`
	EstimatedHours     *float64      `json:"estimated_hours,omitempty"`
	ActualHours        *float64      `json:"actual_hours,omitempty"`
	Version            int           `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
}

// IsBlocked returns true if the task status is blocked.
func (t *Task) IsBlocked() bool {
	return t.Status == TaskStatusBlocked
}

// IsBlockedByDependency returns true if the task is blocked due to an
// unresolved dependency (as opposed to a worker escalation).
func (t *Task) IsBlockedByDependency() bool {
	return t.BlockedReason == BlockedReasonDependency
}

// HasFeedback returns true if feedback scores have been recorded.
func (t *Task) HasFeedback() bool {
	return t.FeedbackQuality != nil || t.FeedbackTimeliness != nil
}

// Participant is a (task, agent) collaboration membership row.
type Participant struct {
	TaskID   string    `json:"task_id"`
	AgentID  string    `json:"agent_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// ProgressEntry is one append-only progress message on a task.
type ProgressEntry struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	AgentID   string    `json:"agent_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
