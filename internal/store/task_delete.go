package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/taskorch/tm/internal/models"
)

// DeleteTask removes a task. Fails if any other task depends on it; the
// task's own outbound dependencies, participants, notifications, and
// progress entries cascade with the row.
func DeleteTask(db *sql.DB, taskID string) error {
	return Transact(db, func(tx *sql.Tx) error {
		if _, err := taskStatusTx(tx, taskID); err != nil {
			return err
		}

		dependents, err := queryStringColumn(tx, `
			SELECT task_id FROM task_dependencies WHERE depends_on_task_id = ? ORDER BY task_id
		`, taskID)
		if err != nil {
			return fmt.Errorf("failed to query dependents: %w", err)
		}
		if len(dependents) > 0 {
			return models.E(models.KindDependencyViolation,
				"cannot delete task %s: depended on by %s", taskID, strings.Join(dependents, ", ")).
				WithContext("dependents", strings.Join(dependents, ","))
		}

		if _, err := tx.ExecContext(context.Background(),
			`DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		return nil
	})
}
