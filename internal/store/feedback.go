package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/taskorch/tm/internal/models"
)

// FeedbackParams carries the post-completion feedback fields.
type FeedbackParams struct {
	Quality    *int
	Timeliness *int
	Note       string
}

// SetFeedback records feedback on a completed task. Feedback is single-shot:
// once any score is recorded the task accepts no further feedback writes.
func SetFeedback(db *sql.DB, taskID string, p FeedbackParams) (*models.Task, error) {
	if p.Quality == nil && p.Timeliness == nil && strings.TrimSpace(p.Note) == "" {
		return nil, models.E(models.KindInvalidInput, "feedback requires a quality, timeliness, or note")
	}
	if p.Quality != nil {
		if err := ValidateScore("quality", *p.Quality); err != nil {
			return nil, err
		}
	}
	if p.Timeliness != nil {
		if err := ValidateScore("timeliness", *p.Timeliness); err != nil {
			return nil, err
		}
	}
	if len(p.Note) > models.MaxFeedbackNotesLength {
		return nil, models.E(models.KindInvalidInput,
			"feedback note exceeds max length (%d)", models.MaxFeedbackNotesLength)
	}

	var task *models.Task
	err := Transact(db, func(tx *sql.Tx) error {
		current, err := getTaskTx(tx, taskID)
		if err != nil {
			return err
		}
		if current.Status != models.TaskStatusCompleted {
			return models.E(models.KindIllegalTransition,
				"feedback requires a completed task (task %s is %s)", taskID, current.Status)
		}
		if current.HasFeedback() || current.FeedbackNotes != "" {
			return models.E(models.KindIllegalTransition,
				"task %s already has feedback", taskID)
		}

		res, err := tx.ExecContext(context.Background(), `
			UPDATE tasks
			SET feedback_quality = ?,
				feedback_timeliness = ?,
				feedback_notes = ?,
				version = version + 1,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND version = ?
		`, nullableInt(p.Quality), nullableInt(p.Timeliness), nullable(strings.TrimSpace(p.Note)),
			taskID, current.Version)
		if err != nil {
			return fmt.Errorf("failed to record feedback: %w", err)
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
