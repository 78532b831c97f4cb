package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskorch/tm/internal/models"
)

// AddTaskDependency adds a dependency relationship between two tasks.
// If the dependency target is not terminal, the task transitions to blocked.
func AddTaskDependency(db *sql.DB, taskID, dependsOnTaskID string) error {
	return Transact(db, func(tx *sql.Tx) error {
		return AddTaskDependencyTx(tx, taskID, dependsOnTaskID)
	})
}

// detectCycleTx performs BFS from dependsOnTaskID following task_dependencies
// edges. If it reaches taskID, adding taskID→dependsOnTaskID would create a
// cycle. Max 10000 nodes to prevent runaway traversals.
func detectCycleTx(tx *sql.Tx, taskID, dependsOnTaskID string) error {
	const maxNodes = 10000

	visited := map[string]bool{dependsOnTaskID: true}
	queue := []string{dependsOnTaskID}
	examined := 0

	for len(queue) > 0 && examined < maxNodes {
		current := queue[0]
		queue = queue[1:]
		examined++

		neighbors, err := queryStringColumn(tx, `
			SELECT depends_on_task_id
			FROM task_dependencies
			WHERE task_id = ?
		`, current)
		if err != nil {
			return fmt.Errorf("failed to query deps during cycle check: %w", err)
		}

		for _, neighbor := range neighbors {
			if neighbor == taskID {
				return models.E(models.KindCycleDetected,
					"dependency cycle detected: %s -> %s would create a cycle", taskID, dependsOnTaskID)
			}
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	return nil
}

// AddTaskDependencyTx is the in-transaction variant of AddTaskDependency.
func AddTaskDependencyTx(tx *sql.Tx, taskID, dependsOnTaskID string) error {
	if taskID == "" {
		return models.E(models.KindInvalidInput, "task id is required")
	}
	if dependsOnTaskID == "" {
		return models.E(models.KindInvalidInput, "depends-on task id is required")
	}
	if taskID == dependsOnTaskID {
		return models.E(models.KindCycleDetected, "task cannot depend on itself")
	}

	taskStatus, err := taskStatusTx(tx, taskID)
	if err != nil {
		return err
	}
	depStatus, err := taskStatusTx(tx, dependsOnTaskID)
	if err != nil {
		return err
	}

	if taskStatus.IsTerminal() {
		return models.E(models.KindIllegalTransition, "cannot add a dependency to %s task %s", taskStatus, taskID)
	}

	// Cycle detection: BFS from dependsOnTaskID to see if we can reach taskID
	if cycleErr := detectCycleTx(tx, taskID, dependsOnTaskID); cycleErr != nil {
		return cycleErr
	}

	// Insert dependency (idempotent: ignore if already exists)
	_, err = tx.ExecContext(context.Background(), `
		INSERT OR IGNORE INTO task_dependencies (task_id, depends_on_task_id)
		VALUES (?, ?)
	`, taskID, dependsOnTaskID)
	if err != nil {
		return fmt.Errorf("failed to insert dependency: %w", err)
	}

	// A terminal predecessor does not retroactively block.
	if !depStatus.IsTerminal() && taskStatus != models.TaskStatusBlocked {
		return blockTaskForDependencyTx(tx, taskID)
	}

	return nil
}

// blockTaskForDependencyTx sets a task to blocked status due to an unresolved dependency.
func blockTaskForDependencyTx(tx *sql.Tx, taskID string) error {
	version, err := GetTaskVersionTx(tx, taskID)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(context.Background(), `
		UPDATE tasks
		SET status = 'blocked', blocked_reason = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`, models.BlockedReasonDependency, taskID, version)
	if err != nil {
		return fmt.Errorf("failed to update task to blocked: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check blocked rows affected: %w", err)
	}
	if ra == 0 {
		return ErrVersionConflict
	}
	return nil
}

// RemoveTaskDependency removes a dependency relationship between two tasks.
// After removal, a task blocked only by that dependency transitions to pending.
func RemoveTaskDependency(db *sql.DB, taskID, dependsOnTaskID string) error {
	return Transact(db, func(tx *sql.Tx) error {
		return RemoveTaskDependencyTx(tx, taskID, dependsOnTaskID)
	})
}

// RemoveTaskDependencyTx is the in-transaction variant of RemoveTaskDependency.
func RemoveTaskDependencyTx(tx *sql.Tx, taskID, dependsOnTaskID string) error {
	if taskID == "" {
		return models.E(models.KindInvalidInput, "task id is required")
	}
	if dependsOnTaskID == "" {
		return models.E(models.KindInvalidInput, "depends-on task id is required")
	}

	_, err := tx.ExecContext(context.Background(), `
		DELETE FROM task_dependencies
		WHERE task_id = ? AND depends_on_task_id = ?
	`, taskID, dependsOnTaskID)
	if err != nil {
		return fmt.Errorf("failed to remove dependency: %w", err)
	}

	status, err := taskStatusTx(tx, taskID)
	if err != nil {
		return err
	}
	if status == models.TaskStatusBlocked {
		return unblockTaskIfResolvedTx(tx, taskID)
	}

	return nil
}

// unblockTaskIfResolvedTx transitions a dependency-blocked task to pending
// once no unresolved dependencies remain. Escalation blocks stay put.
func unblockTaskIfResolvedTx(tx *sql.Tx, taskID string) error {
	hasUnresolved, err := HasUnresolvedDependenciesTx(tx, taskID)
	if err != nil {
		return err
	}
	if hasUnresolved {
		return nil
	}

	version, err := GetTaskVersionTx(tx, taskID)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(context.Background(), `
		UPDATE tasks
		SET status = 'pending', blocked_reason = NULL, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ? AND blocked_reason = 'dependency'
	`, taskID, version)
	if err != nil {
		return fmt.Errorf("failed to unblock task after dep removal: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check unblock rows affected: %w", err)
	}
	return nil
}

// GetTaskDependencies returns the list of task IDs that the given task depends on.
func GetTaskDependencies(db *sql.DB, taskID string) ([]string, error) {
	var ids []string
	err := RetryWithBackoff(func() error {
		out, err := queryStringColumn(db, `
			SELECT depends_on_task_id
			FROM task_dependencies
			WHERE task_id = ?
			ORDER BY created_at ASC
		`, taskID)
		if err != nil {
			return fmt.Errorf("failed to query dependencies: %w", err)
		}
		ids = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetDependents returns the list of task IDs that depend on the given task.
func GetDependents(db *sql.DB, taskID string) ([]string, error) {
	out, err := queryStringColumn(db, `
		SELECT task_id
		FROM task_dependencies
		WHERE depends_on_task_id = ?
		ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependents: %w", err)
	}
	return out, nil
}

// HasUnresolvedDependenciesTx checks if the task has any dependency whose
// target is not terminal (completed or cancelled).
func HasUnresolvedDependenciesTx(tx *sql.Tx, taskID string) (bool, error) {
	var count int
	err := tx.QueryRowContext(context.Background(), `
		SELECT COUNT(*)
		FROM task_dependencies td
		JOIN tasks dep ON dep.id = td.depends_on_task_id
		WHERE td.task_id = ? AND dep.status NOT IN ('completed', 'cancelled')
	`, taskID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check unresolved dependencies: %w", err)
	}
	return count > 0, nil
}

// HasUnresolvedDependencies is the standalone variant of HasUnresolvedDependenciesTx.
func HasUnresolvedDependencies(db *sql.DB, taskID string) (bool, error) {
	var result bool
	err := Transact(db, func(tx *sql.Tx) error {
		has, err := HasUnresolvedDependenciesTx(tx, taskID)
		if err != nil {
			return err
		}
		result = has
		return nil
	})
	return result, err
}

// UnblockDependentsTx finds all tasks that depend on the resolved task and
// transitions them from "blocked" to "pending" if every one of their
// dependencies is now terminal. Must be called inside an existing
// transaction so unblocking is observed atomically with the completion.
// Returns the list of unblocked task IDs for notification emission.
func UnblockDependentsTx(tx *sql.Tx, resolvedTaskID string) ([]string, error) {
	// Batch UPDATE: unblock all tasks that:
	// 1. Depend on the resolved task
	// 2. Are currently blocked with reason='dependency'
	// 3. Have no other unresolved dependencies
	result, err := tx.ExecContext(context.Background(), `
		UPDATE tasks
		SET status = 'pending', blocked_reason = NULL, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id IN (
			SELECT DISTINCT td.task_id
			FROM task_dependencies td
			JOIN tasks t ON t.id = td.task_id
			WHERE td.depends_on_task_id = ?
			  AND t.status = 'blocked'
			  AND t.blocked_reason = 'dependency'
			  AND NOT EXISTS (
				SELECT 1 FROM task_dependencies td2
				JOIN tasks dep ON dep.id = td2.depends_on_task_id
				WHERE td2.task_id = td.task_id
				  AND td2.depends_on_task_id != ?
				  AND dep.status NOT IN ('completed', 'cancelled')
			  )
		)
	`, resolvedTaskID, resolvedTaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to unblock dependent tasks: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check unblocked rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return []string{}, nil
	}

	// Fetch the list of freshly unblocked task IDs.
	// SQLite doesn't support RETURNING here, so query separately.
	unblockedIDs, err := queryStringColumn(tx, `
		SELECT DISTINCT td.task_id
		FROM task_dependencies td
		JOIN tasks t ON t.id = td.task_id
		WHERE td.depends_on_task_id = ?
		  AND t.status = 'pending'
		  AND t.blocked_reason IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM task_dependencies td2
			JOIN tasks dep ON dep.id = td2.depends_on_task_id
			WHERE td2.task_id = td.task_id
			  AND td2.depends_on_task_id != ?
			  AND dep.status NOT IN ('completed', 'cancelled')
		  )
	`, resolvedTaskID, resolvedTaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unblocked task IDs: %w", err)
	}

	return unblockedIDs, nil
}
