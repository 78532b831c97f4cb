package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/taskorch/tm/internal/models"
)

// defaultWatchLimit caps how many notifications a single watch call consumes.
const defaultWatchLimit = 50

// insertNotificationTx inserts a notification row. An empty agentID stores
// NULL and makes the row a broadcast consumable by any agent.
func insertNotificationTx(tx Querier, agentID, taskID string, kind models.NotificationKind, message string) error {
	if !kind.Valid() {
		return models.E(models.KindInternal, "unknown notification kind: %s", kind)
	}
	_, err := tx.Exec(`
		INSERT INTO notifications (agent_id, task_id, kind, message, read)
		VALUES (?, ?, ?, ?, 0)
	`, nullable(agentID), nullable(taskID), kind, message)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// notifyUnblockedTx emits an "unblocked" notification for every freshly
// unblocked dependent. Notifications target the dependent's assignee when it
// has one and are broadcast otherwise.
func notifyUnblockedTx(tx *sql.Tx, resolvedTaskID string, unblockedIDs []string) error {
	for _, id := range unblockedIDs {
		var assignee sql.NullString
		err := tx.QueryRowContext(context.Background(),
			`SELECT assignee FROM tasks WHERE id = ?`, id).Scan(&assignee)
		if err != nil {
			return fmt.Errorf("failed to look up unblocked task %s: %w", id, err)
		}
		msg := fmt.Sprintf("task %s is unblocked: dependency %s resolved", id, resolvedTaskID)
		if err := insertNotificationTx(tx, scanNullString(assignee), id, models.NotificationUnblocked, msg); err != nil {
			return err
		}
	}
	return nil
}

// NotifyParticipantsTx fans a notification out to every participant of a task
// except the acting agent.
func NotifyParticipantsTx(tx *sql.Tx, taskID, actorID string, kind models.NotificationKind, message string) error {
	participants, err := queryStringColumn(tx, `
		SELECT agent_id FROM participants WHERE task_id = ? AND agent_id != ?
	`, taskID, actorID)
	if err != nil {
		return fmt.Errorf("failed to query participants: %w", err)
	}
	for _, agentID := range participants {
		if err := insertNotificationTx(tx, agentID, taskID, kind, message); err != nil {
			return err
		}
	}
	return nil
}

// NotifyParticipants is the standalone variant of NotifyParticipantsTx.
func NotifyParticipants(db *sql.DB, taskID, actorID string, kind models.NotificationKind, message string) error {
	return Transact(db, func(tx *sql.Tx) error {
		return NotifyParticipantsTx(tx, taskID, actorID, kind, message)
	})
}

// Broadcast inserts a broadcast notification, visible to whichever agent
// watches first.
func Broadcast(db *sql.DB, taskID string, kind models.NotificationKind, message string) error {
	if strings.TrimSpace(message) == "" {
		return models.E(models.KindInvalidInput, "notification message is required")
	}
	return Transact(db, func(tx *sql.Tx) error {
		return insertNotificationTx(tx, "", taskID, kind, message)
	})
}

// Watch atomically fetches and marks read the oldest unread notifications
// addressed to agentID or broadcast. Two concurrent watchers never consume
// the same row: selection and the read flip happen in one transaction.
func Watch(db *sql.DB, agentID string, limit int) ([]models.Notification, error) {
	if agentID == "" {
		return nil, models.E(models.KindInvalidInput, "agent id is required")
	}
	if limit <= 0 {
		limit = defaultWatchLimit
	}

	var out []models.Notification
	err := Transact(db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(context.Background(), `
			SELECT id, agent_id, task_id, kind, message, read, created_at
			FROM notifications
			WHERE read = 0 AND (agent_id = ? OR agent_id IS NULL)
			ORDER BY created_at ASC, id ASC
			LIMIT ?
		`, agentID, limit)
		if err != nil {
			return fmt.Errorf("failed to query notifications: %w", err)
		}
		defer rows.Close()

		notifications, ids, err := scanNotificationRows(rows)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			out = nil
			return nil
		}

		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		if _, err := tx.ExecContext(context.Background(),
			`UPDATE notifications SET read = 1 WHERE id IN (`+placeholders(len(ids))+`)`,
			args...); err != nil {
			return fmt.Errorf("failed to mark notifications read: %w", err)
		}

		out = notifications
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCount returns how many unread notifications are waiting for agentID
// (including broadcasts).
func UnreadCount(db *sql.DB, agentID string) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*)
		FROM notifications
		WHERE read = 0 AND (agent_id = ? OR agent_id IS NULL)
	`, agentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// listTaskNotifications returns the most recent notifications attached to a
// task, read or not, newest first. Used by task detail views.
func listTaskNotifications(db *sql.DB, taskID string, limit int) ([]models.Notification, error) {
	rows, err := db.Query(`
		SELECT id, agent_id, task_id, kind, message, read, created_at
		FROM notifications
		WHERE task_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query task notifications: %w", err)
	}
	defer rows.Close()

	notifications, _, err := scanNotificationRows(rows)
	return notifications, err
}

func scanNotificationRows(rows *sql.Rows) ([]models.Notification, []int64, error) {
	var notifications []models.Notification
	var ids []int64
	for rows.Next() {
		var n models.Notification
		var agentID, taskID sql.NullString
		var read int
		if err := rows.Scan(&n.ID, &agentID, &taskID, &n.Kind, &n.Message, &read, &n.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.AgentID = scanNullString(agentID)
		n.TaskID = scanNullString(taskID)
		n.Read = read != 0
		notifications = append(notifications, n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return notifications, ids, nil
}
