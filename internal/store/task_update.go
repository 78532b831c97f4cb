package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskorch/tm/internal/models"
)

// UpdateTaskParams is a partial patch. Nil fields are left untouched.
type UpdateTaskParams struct {
	Status         *models.TaskStatus
	Assignee       *string
	Description    *string
	Priority       *models.TaskPriority
	Deadline       *time.Time
	EstimatedHours *float64
}

// UpdateTask applies a patch under the status transition rules:
//   - completed and cancelled tasks accept no updates (feedback has its own path)
//   - status cannot be set to completed here (use Complete)
//   - status cannot be set to blocked here (blocked is computed from
//     dependencies; workers escalate through EscalateTask)
//   - a blocked task can only be cancelled
func UpdateTask(db *sql.DB, taskID string, p UpdateTaskParams) (*models.Task, error) {
	var task *models.Task
	err := Transact(db, func(tx *sql.Tx) error {
		updated, err := UpdateTaskTx(tx, taskID, p)
		if err != nil {
			return err
		}
		task = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTaskTx is the in-transaction variant of UpdateTask.
func UpdateTaskTx(tx *sql.Tx, taskID string, p UpdateTaskParams) (*models.Task, error) {
	current, err := taskStatusTx(tx, taskID)
	if err != nil {
		return nil, err
	}

	if current.IsTerminal() {
		return nil, models.E(models.KindIllegalTransition,
			"task %s is %s and can no longer be modified", taskID, current)
	}

	if p.Status != nil {
		if err := checkStatusTransition(taskID, current, *p.Status); err != nil {
			return nil, err
		}
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return nil, models.E(models.KindInvalidInput, "invalid priority: %s", *p.Priority)
	}
	if p.EstimatedHours != nil {
		if err := ValidateHours("estimated_hours", *p.EstimatedHours); err != nil {
			return nil, err
		}
	}

	set := "updated_at = CURRENT_TIMESTAMP, version = version + 1"
	var args []any
	if p.Status != nil {
		set += ", status = ?, blocked_reason = NULL"
		args = append(args, *p.Status)
	}
	if p.Assignee != nil {
		set += ", assignee = ?"
		args = append(args, nullable(*p.Assignee))
	}
	if p.Description != nil {
		set += ", description = ?"
		args = append(args, *p.Description)
	}
	if p.Priority != nil {
		set += ", priority = ?"
		args = append(args, *p.Priority)
	}
	if p.Deadline != nil {
		set += ", deadline = ?"
		args = append(args, p.Deadline.UTC())
	}
	if p.EstimatedHours != nil {
		set += ", estimated_hours = ?"
		args = append(args, *p.EstimatedHours)
	}

	version, err := GetTaskVersionTx(tx, taskID)
	if err != nil {
		return nil, err
	}
	args = append(args, taskID, version)

	res, err := tx.ExecContext(context.Background(),
		`UPDATE tasks SET `+set+` WHERE id = ? AND version = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if ra == 0 {
		return nil, ErrVersionConflict
	}

	// Cancelling a task satisfies its dependents' edges.
	if p.Status != nil && *p.Status == models.TaskStatusCancelled {
		unblocked, err := UnblockDependentsTx(tx, taskID)
		if err != nil {
			return nil, err
		}
		if err := notifyUnblockedTx(tx, taskID, unblocked); err != nil {
			return nil, err
		}
	}

	return getTaskTx(tx, taskID)
}

func checkStatusTransition(taskID string, from, to models.TaskStatus) error {
	if !to.Valid() {
		return models.E(models.KindInvalidInput, "invalid status: %s", to)
	}
	switch to {
	case models.TaskStatusCompleted:
		return models.E(models.KindIllegalTransition,
			"cannot set status=completed via update; use complete")
	case models.TaskStatusBlocked:
		return models.E(models.KindIllegalTransition,
			"blocked is computed from dependencies and cannot be set directly")
	}
	if from == models.TaskStatusBlocked && to != models.TaskStatusCancelled {
		return models.E(models.KindIllegalTransition,
			"task %s is blocked by dependencies; it can only be cancelled", taskID)
	}
	return nil
}

// AssignTask sets the assignee.
func AssignTask(db *sql.DB, taskID, agentID string) (*models.Task, error) {
	return UpdateTask(db, taskID, UpdateTaskParams{Assignee: &agentID})
}

// EscalateTask marks a task blocked with an escalation reason. Unlike
// dependency blocking this is an explicit worker action; the task stays
// blocked until an orchestrator cancels or re-activates it.
func EscalateTask(db *sql.DB, taskID, reason string) (*models.Task, error) {
	var task *models.Task
	err := Transact(db, func(tx *sql.Tx) error {
		current, err := taskStatusTx(tx, taskID)
		if err != nil {
			return err
		}
		if current != models.TaskStatusPending && current != models.TaskStatusInProgress {
			return models.E(models.KindIllegalTransition,
				"cannot escalate task %s from status %s", taskID, current)
		}

		version, err := GetTaskVersionTx(tx, taskID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(context.Background(), `
			UPDATE tasks
			SET status = 'blocked', blocked_reason = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND version = ?
		`, models.BlockedReasonEscalatedPrefix+reason, taskID, version)
		if err != nil {
			return fmt.Errorf("failed to escalate task: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if ra == 0 {
			return ErrVersionConflict
		}

		task, err = getTaskTx(tx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ReactivateTask clears an escalation, returning the task to pending (or
// blocked again if unresolved dependencies remain).
func ReactivateTask(db *sql.DB, taskID string) (*models.Task, error) {
	var task *models.Task
	err := Transact(db, func(tx *sql.Tx) error {
		current, err := taskStatusTx(tx, taskID)
		if err != nil {
			return err
		}
		if current != models.TaskStatusBlocked {
			return models.E(models.KindIllegalTransition,
				"task %s is not blocked (status %s)", taskID, current)
		}

		hasUnresolved, err := HasUnresolvedDependenciesTx(tx, taskID)
		if err != nil {
			return err
		}

		status := models.TaskStatusPending
		var reason any
		if hasUnresolved {
			status = models.TaskStatusBlocked
			reason = string(models.BlockedReasonDependency)
		}

		version, err := GetTaskVersionTx(tx, taskID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(context.Background(), `
			UPDATE tasks
			SET status = ?, blocked_reason = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND version = ?
		`, status, reason, taskID, version); err != nil {
			return fmt.Errorf("failed to reactivate task: %w", err)
		}

		task, err = getTaskTx(tx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}
