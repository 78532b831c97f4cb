package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/taskorch/tm/internal/models"
)

// CriticalPath computes the longest dependency chain through the non-terminal
// task graph, weighted by estimated hours (null counts as 0). Returns the
// tasks in execution order (dependencies first). Ties are broken by priority,
// then deadline (nulls last), then id.
func CriticalPath(ctx context.Context, db *sql.DB) ([]*models.Task, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status NOT IN ('completed', 'cancelled')
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active tasks: %w", err)
	}
	defer rows.Close()

	tasks := make(map[string]*models.Task)
	for rows.Next() {
		task, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks[task.ID] = task
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	// successors[d] lists tasks that must run after d; only edges between
	// active tasks matter, edges to terminal predecessors are satisfied.
	successors := make(map[string][]string)
	indegree := make(map[string]int, len(tasks))
	for id := range tasks {
		indegree[id] = 0
	}

	edgeRows, err := db.QueryContext(ctx,
		`SELECT task_id, depends_on_task_id FROM task_dependencies`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependency edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var taskID, depID string
		if err := edgeRows.Scan(&taskID, &depID); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if _, ok := tasks[taskID]; !ok {
			continue
		}
		if _, ok := tasks[depID]; !ok {
			continue
		}
		successors[depID] = append(successors[depID], taskID)
		indegree[taskID]++
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edges: %w", err)
	}

	// Kahn topological order with deterministic tie-breaking.
	ready := make([]string, 0, len(tasks))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sortByTaskOrder(ready, tasks)

	weight := func(id string) float64 {
		if h := tasks[id].EstimatedHours; h != nil {
			return *h
		}
		return 0
	}

	best := make(map[string]float64, len(tasks))
	prev := make(map[string]string, len(tasks))
	var order []string

	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		if _, seen := best[id]; !seen {
			best[id] = weight(id)
		}

		succ := successors[id]
		sortByTaskOrder(succ, tasks)
		for _, next := range succ {
			candidate := best[id] + weight(next)
			current, seen := best[next]
			switch {
			case !seen || candidate > current:
				best[next] = candidate
				prev[next] = id
			case candidate == current:
				if taskLess(tasks[id], tasks[prev[next]]) {
					prev[next] = id
				}
			}
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
				sortByTaskOrder(ready, tasks)
			}
		}
	}

	if len(order) != len(tasks) {
		return nil, models.E(models.KindCorrupt,
			"dependency graph contains a cycle among active tasks")
	}

	endID := ""
	for _, id := range order {
		if endID == "" || best[id] > best[endID] ||
			(best[id] == best[endID] && taskLess(tasks[id], tasks[endID])) {
			endID = id
		}
	}

	var path []*models.Task
	for id := endID; id != ""; {
		path = append([]*models.Task{tasks[id]}, path...)
		id = prev[id]
	}
	return path, nil
}

// taskLess orders tasks by priority desc, deadline asc (nulls last),
// created_at asc, then id, mirroring the SQL list ordering.
func taskLess(a, b *models.Task) bool {
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra > rb
	}
	switch {
	case a.Deadline != nil && b.Deadline == nil:
		return true
	case a.Deadline == nil && b.Deadline != nil:
		return false
	case a.Deadline != nil && b.Deadline != nil && !a.Deadline.Equal(*b.Deadline):
		return a.Deadline.Before(*b.Deadline)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func sortByTaskOrder(ids []string, tasks map[string]*models.Task) {
	sort.Slice(ids, func(i, j int) bool {
		return taskLess(tasks[ids[i]], tasks[ids[j]])
	})
}
