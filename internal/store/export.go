package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskorch/tm/internal/models"
)

// ExportDoc is a deterministic snapshot of the whole task graph. Tasks are
// ordered by created_at then id so repeated exports of an unchanged database
// produce identical output.
type ExportDoc struct {
	ExportedAt time.Time      `json:"exported_at"`
	TaskCount  int            `json:"task_count"`
	Tasks      []*models.Task `json:"tasks"`
}

// Export snapshots all tasks with their dependencies.
func Export(ctx context.Context, db *sql.DB) (*ExportDoc, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks for export: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task for export: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate export rows: %w", err)
	}

	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	depsMap, err := batchLoadTaskDependencies(db, ids)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		task.DependsOn = depsMap[task.ID]
	}

	return &ExportDoc{
		ExportedAt: time.Now().UTC(),
		TaskCount:  len(tasks),
		Tasks:      tasks,
	}, nil
}
