package store

import (
	"database/sql"
	"fmt"

	"github.com/taskorch/tm/internal/models"
)

// JoinTask registers agentID as a participant on the task. Joining twice is
// a no-op.
func JoinTask(db *sql.DB, taskID, agentID string) error {
	if agentID == "" {
		return models.E(models.KindInvalidInput, "agent id is required")
	}
	return Transact(db, func(tx *sql.Tx) error {
		status, err := taskStatusTx(tx, taskID)
		if err != nil {
			return err
		}
		if status.IsTerminal() {
			return models.E(models.KindIllegalTransition,
				"cannot join task %s: status is %s", taskID, status)
		}
		_, err = tx.Exec(`
			INSERT OR IGNORE INTO participants (task_id, agent_id)
			VALUES (?, ?)
		`, taskID, agentID)
		if err != nil {
			return fmt.Errorf("failed to join task: %w", err)
		}
		return nil
	})
}

// ListParticipants returns the task's participants in join order.
func ListParticipants(db *sql.DB, taskID string) ([]models.Participant, error) {
	rows, err := db.Query(`
		SELECT task_id, agent_id, joined_at
		FROM participants
		WHERE task_id = ?
		ORDER BY joined_at ASC, agent_id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.TaskID, &p.AgentID, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}
