package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/taskorch/tm/internal/models"
)

// AddProgress appends a progress message to a task's log. Progress is
// append-only; entries are never edited or removed.
func AddProgress(db *sql.DB, taskID, agentID, message string) error {
	if strings.TrimSpace(message) == "" {
		return models.E(models.KindInvalidInput, "progress message is required")
	}
	return Transact(db, func(tx *sql.Tx) error {
		status, err := taskStatusTx(tx, taskID)
		if err != nil {
			return err
		}
		if status.IsTerminal() {
			return models.E(models.KindIllegalTransition,
				"cannot add progress to task %s: status is %s", taskID, status)
		}
		_, err = tx.Exec(`
			INSERT INTO progress (task_id, agent_id, message)
			VALUES (?, ?, ?)
		`, taskID, agentID, message)
		if err != nil {
			return fmt.Errorf("failed to add progress: %w", err)
		}
		return nil
	})
}

// ListProgress returns a task's progress entries in insertion order.
func ListProgress(db *sql.DB, taskID string) ([]models.ProgressEntry, error) {
	rows, err := db.Query(`
		SELECT id, task_id, agent_id, message, created_at
		FROM progress
		WHERE task_id = ?
		ORDER BY id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var entries []models.ProgressEntry
	for rows.Next() {
		var e models.ProgressEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.AgentID, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress: %w", err)
	}
	return entries, nil
}
