package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/taskorch/tm/internal/criteria"
	"github.com/taskorch/tm/internal/models"
)

// CompleteTaskParams describes a completion request.
type CompleteTaskParams struct {
	TaskID  string
	AgentID string

	// Validate runs the success-criteria engine against Context before
	// committing. RequireSummary additionally enforces the summary bounds
	// (set from config by the caller).
	Validate       bool
	Context        map[string]any
	RequireSummary bool

	Summary     string
	ActualHours *float64

	// ImpactReview notifies assignees of non-terminal tasks that share a
	// file reference with the completed task.
	ImpactReview bool
}

// CompleteResult reports what a completion did.
type CompleteResult struct {
	Task            *models.Task             `json:"task"`
	UnblockedIDs    []string                 `json:"unblocked,omitempty"`
	CriteriaResults []models.CriterionResult `json:"criteria_results,omitempty"`
	ImpactedIDs     []string                 `json:"impacted,omitempty"`
}

// CompleteTask transitions a task to completed. In one transaction it
// validates criteria, writes the terminal state, unblocks dependents whose
// last unresolved dependency this was, and queues notifications. Completing
// an already-completed task fails with an illegal-transition error.
func CompleteTask(db *sql.DB, p CompleteTaskParams) (*CompleteResult, error) {
	var result *CompleteResult
	err := Transact(db, func(tx *sql.Tx) error {
		task, err := getTaskTx(tx, p.TaskID)
		if err != nil {
			return err
		}

		switch task.Status {
		case models.TaskStatusCompleted:
			return models.E(models.KindIllegalTransition, "task %s is already completed", p.TaskID)
		case models.TaskStatusCancelled:
			return models.E(models.KindIllegalTransition, "task %s is cancelled", p.TaskID)
		case models.TaskStatusBlocked:
			if task.IsBlockedByDependency() {
				return models.E(models.KindIllegalTransition,
					"task %s is blocked by unresolved dependencies", p.TaskID)
			}
		}

		if p.ActualHours != nil {
			if err := ValidateHours("actual_hours", *p.ActualHours); err != nil {
				return err
			}
		}
		if p.RequireSummary || p.Summary != "" {
			if err := ValidateSummary(p.Summary); err != nil {
				return err
			}
		}

		var criteriaResults []models.CriterionResult
		if p.Validate && len(task.SuccessCriteria) > 0 {
			eval := criteria.Evaluate(task.SuccessCriteria, p.Context)
			criteriaResults = eval.Results
			if !eval.OverallPass {
				return &models.ValidationError{TaskID: p.TaskID, Failures: eval.Failures}
			}
		}

		res, err := tx.ExecContext(context.Background(), `
			UPDATE tasks
			SET status = 'completed',
				blocked_reason = NULL,
				completed_at = CURRENT_TIMESTAMP,
				completion_summary = COALESCE(?, completion_summary),
				actual_hours = COALESCE(?, actual_hours),
				version = version + 1,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND version = ?
		`, nullable(strings.TrimSpace(p.Summary)), nullableFloat(p.ActualHours), p.TaskID, task.Version)
		if err != nil {
			return fmt.Errorf("failed to complete task: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if ra == 0 {
			return ErrVersionConflict
		}

		unblocked, err := UnblockDependentsTx(tx, p.TaskID)
		if err != nil {
			return err
		}
		if err := notifyUnblockedTx(tx, p.TaskID, unblocked); err != nil {
			return err
		}
		if err := NotifyParticipantsTx(tx, p.TaskID, p.AgentID, models.NotificationCompleted,
			fmt.Sprintf("task %s completed by %s", p.TaskID, p.AgentID)); err != nil {
			return err
		}

		var impacted []string
		if p.ImpactReview && len(task.FileRefs) > 0 {
			impacted, err = notifyImpactedTx(tx, task)
			if err != nil {
				return err
			}
		}

		completed, err := getTaskTx(tx, p.TaskID)
		if err != nil {
			return err
		}
		result = &CompleteResult{
			Task:            completed,
			UnblockedIDs:    unblocked,
			CriteriaResults: criteriaResults,
			ImpactedIDs:     impacted,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// notifyImpactedTx emits an "impact" notification for every non-terminal task
// sharing a file-ref path with the completed task. File refs are JSON columns,
// so the path intersection happens in Go over the candidate rows.
func notifyImpactedTx(tx *sql.Tx, completed *models.Task) ([]string, error) {
	paths := make(map[string]bool, len(completed.FileRefs))
	for _, ref := range completed.FileRefs {
		paths[ref.Path] = true
	}

	rows, err := tx.QueryContext(context.Background(), `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id != ?
		  AND status NOT IN ('completed', 'cancelled')
		  AND file_refs IS NOT NULL
	`, completed.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks for impact review: %w", err)
	}
	defer rows.Close()

	var candidates []*models.Task
	for rows.Next() {
		task, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task for impact review: %w", err)
		}
		candidates = append(candidates, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate impact candidates: %w", err)
	}

	var impacted []string
	for _, task := range candidates {
		shared := ""
		for _, ref := range task.FileRefs {
			if paths[ref.Path] {
				shared = ref.Path
				break
			}
		}
		if shared == "" {
			continue
		}
		msg := fmt.Sprintf("task %s touched %s, also referenced by task %s", completed.ID, shared, task.ID)
		if err := insertNotificationTx(tx, task.Assignee, task.ID, models.NotificationImpact, msg); err != nil {
			return nil, err
		}
		impacted = append(impacted, task.ID)
	}
	return impacted, nil
}
