package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskorch/tm/internal/models"
)

// CreateTaskParams groups the inputs for CreateTask.
type CreateTaskParams struct {
	Title          string
	Description    string
	Priority       models.TaskPriority
	Assignee       string
	CreatedBy      string
	DependsOn      []string
	Criteria       []models.Criterion
	FileRefs       []models.FileRef
	Deadline       *time.Time
	EstimatedHours *float64
}

// CreateTask creates a task, wiring dependency edges and computing the
// initial status (blocked iff any dependency is not terminal) in one
// transaction.
func CreateTask(db *sql.DB, p CreateTaskParams) (*models.Task, error) {
	var task *models.Task
	err := Transact(db, func(tx *sql.Tx) error {
		created, err := CreateTaskTx(tx, p)
		if err != nil {
			return err
		}
		task = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CreateTaskTx inserts and returns a task inside an existing transaction.
func CreateTaskTx(tx *sql.Tx, p CreateTaskParams) (*models.Task, error) {
	if err := ValidateTitle(p.Title); err != nil {
		return nil, err
	}
	if p.Priority == "" {
		p.Priority = models.PriorityMedium
	}
	if !p.Priority.Valid() {
		return nil, models.E(models.KindInvalidInput, "invalid priority: %s", p.Priority)
	}
	if p.CreatedBy == "" {
		p.CreatedBy = "user"
	}
	if err := ValidateCriteria(p.Criteria); err != nil {
		return nil, err
	}
	if p.EstimatedHours != nil {
		if err := ValidateHours("estimated_hours", *p.EstimatedHours); err != nil {
			return nil, err
		}
	}

	// Verify every named dependency exists before inserting anything.
	// A new task has no incoming edges, so creation alone cannot form a cycle.
	status := models.TaskStatusPending
	for _, depID := range p.DependsOn {
		depStatus, err := taskStatusTx(tx, depID)
		if err != nil {
			return nil, err
		}
		if !depStatus.IsTerminal() {
			status = models.TaskStatusBlocked
		}
	}

	taskID, err := uniqueTaskIDTx(tx)
	if err != nil {
		return nil, err
	}

	criteriaVal, err := marshalJSONColumn(p.Criteria)
	if err != nil {
		return nil, err
	}
	refsVal, err := marshalJSONColumn(p.FileRefs)
	if err != nil {
		return nil, err
	}

	var blockedReason any
	if status == models.TaskStatusBlocked {
		blockedReason = string(models.BlockedReasonDependency)
	}

	_, err = tx.ExecContext(context.Background(), `
		INSERT INTO tasks (id, title, description, status, priority, assignee, created_by, blocked_reason,
			success_criteria, file_refs, deadline, estimated_hours, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, taskID, strings.TrimSpace(p.Title), p.Description, status, p.Priority,
		nullable(p.Assignee), p.CreatedBy, blockedReason,
		criteriaVal, refsVal, nullableTime(p.Deadline), nullableFloat(p.EstimatedHours))
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	for _, depID := range p.DependsOn {
		if _, err := tx.ExecContext(context.Background(), `
			INSERT OR IGNORE INTO task_dependencies (task_id, depends_on_task_id)
			VALUES (?, ?)
		`, taskID, depID); err != nil {
			return nil, fmt.Errorf("failed to insert dependency: %w", err)
		}
	}

	return getTaskTx(tx, taskID)
}

// uniqueTaskIDTx generates an 8-hex id and regenerates on the rare collision.
func uniqueTaskIDTx(tx *sql.Tx) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		id, err := generateTaskID()
		if err != nil {
			return "", err
		}
		var exists int
		if err := tx.QueryRowContext(context.Background(),
			`SELECT COUNT(*) FROM tasks WHERE id = ?`, id).Scan(&exists); err != nil {
			return "", fmt.Errorf("failed to check id uniqueness: %w", err)
		}
		if exists == 0 {
			return id, nil
		}
	}
	return "", models.E(models.KindInternal, "could not generate a unique task id")
}

// taskStatusTx returns the status of a task or NotFound.
func taskStatusTx(tx *sql.Tx, taskID string) (models.TaskStatus, error) {
	var status models.TaskStatus
	err := tx.QueryRowContext(context.Background(), `SELECT status FROM tasks WHERE id = ?`, taskID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.E(models.KindNotFound, "task not found: %s", taskID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get task status: %w", err)
	}
	return status, nil
}

// GetTaskVersionTx loads only the version for optimistic concurrency updates.
func GetTaskVersionTx(tx *sql.Tx, taskID string) (int, error) {
	var version int
	err := tx.QueryRowContext(context.Background(), `SELECT version FROM tasks WHERE id = ?`, taskID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.E(models.KindNotFound, "task not found: %s", taskID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get task version: %w", err)
	}
	return version, nil
}

// GetTask retrieves a task by ID with its dependency list.
func GetTask(db *sql.DB, taskID string) (*models.Task, error) {
	return getTaskByQuerier(db, taskID)
}

// getTaskTx retrieves a task by ID in an existing transaction.
func getTaskTx(tx *sql.Tx, taskID string) (*models.Task, error) {
	return getTaskByQuerier(tx, taskID)
}

func getTaskByQuerier(q Querier, taskID string) (*models.Task, error) {
	row := q.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)

	task, err := scanTaskRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.E(models.KindNotFound, "task not found: %s", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	deps, err := queryStringColumn(q, `
		SELECT depends_on_task_id
		FROM task_dependencies
		WHERE task_id = ?
		ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task dependencies: %w", err)
	}
	task.DependsOn = deps

	return task, nil
}

// TaskDetail is the full view returned by Show: the task plus its
// collaboration state.
type TaskDetail struct {
	Task          *models.Task           `json:"task"`
	Participants  []models.Participant   `json:"participants,omitempty"`
	Progress      []models.ProgressEntry `json:"progress,omitempty"`
	Notifications []models.Notification  `json:"notifications,omitempty"`
}

// recentNotificationLimit bounds how many task notifications Show returns.
const recentNotificationLimit = 10

// ShowTask loads the task, its participants, progress log, and recent
// notifications referencing it.
func ShowTask(db *sql.DB, taskID string) (*TaskDetail, error) {
	task, err := GetTask(db, taskID)
	if err != nil {
		return nil, err
	}

	participants, err := ListParticipants(db, taskID)
	if err != nil {
		return nil, err
	}

	progress, err := ListProgress(db, taskID)
	if err != nil {
		return nil, err
	}

	notifications, err := listTaskNotifications(db, taskID, recentNotificationLimit)
	if err != nil {
		return nil, err
	}

	return &TaskDetail{
		Task:          task,
		Participants:  participants,
		Progress:      progress,
		Notifications: notifications,
	}, nil
}

// TaskFilter selects tasks for List. Zero values mean "no constraint".
type TaskFilter struct {
	Statuses     []models.TaskStatus
	Priorities   []models.TaskPriority
	Assignee     string
	HasDeps      bool
	FileRef      string
	DeadlineFrom *time.Time
	DeadlineTo   *time.Time
}

// taskOrderClause is the canonical ordering: priority (critical first),
// deadline ascending with nulls last, created_at ascending, id.
const taskOrderClause = `
	ORDER BY CASE priority
		WHEN 'critical' THEN 0
		WHEN 'high' THEN 1
		WHEN 'medium' THEN 2
		ELSE 3
	END,
	CASE WHEN deadline IS NULL THEN 1 ELSE 0 END, deadline ASC,
	created_at ASC, id ASC`

// ListTasks retrieves tasks matching the filter in canonical order.
func ListTasks(db *sql.DB, filter TaskFilter) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any

	if len(filter.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(filter.Statuses)) + `)`
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}
	if len(filter.Priorities) > 0 {
		query += ` AND priority IN (` + placeholders(len(filter.Priorities)) + `)`
		for _, p := range filter.Priorities {
			args = append(args, p)
		}
	}
	if filter.Assignee != "" {
		query += ` AND assignee = ?`
		args = append(args, filter.Assignee)
	}
	if filter.HasDeps {
		query += ` AND EXISTS (SELECT 1 FROM task_dependencies td WHERE td.task_id = tasks.id)`
	}
	if filter.FileRef != "" {
		query += ` AND file_refs LIKE ?`
		args = append(args, "%"+filter.FileRef+"%")
	}
	if filter.DeadlineFrom != nil {
		query += ` AND deadline >= ?`
		args = append(args, filter.DeadlineFrom.UTC())
	}
	if filter.DeadlineTo != nil {
		query += ` AND deadline <= ?`
		args = append(args, filter.DeadlineTo.UTC())
	}

	query += taskOrderClause

	rows, err := db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*models.Task
	var taskIDs []string
	for rows.Next() {
		scanner := &taskRowScanner{}
		if scanErr := scanner.scan(rows); scanErr != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", scanErr)
		}
		scanner.hydrate()
		task := scanner.getTask()
		tasks = append(tasks, task)
		taskIDs = append(taskIDs, task.ID)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", rowsErr)
	}

	if len(taskIDs) > 0 {
		depsMap, depsErr := batchLoadTaskDependencies(db, taskIDs)
		if depsErr != nil {
			return nil, fmt.Errorf("failed to batch-load dependencies: %w", depsErr)
		}
		for _, task := range tasks {
			task.DependsOn = depsMap[task.ID]
		}
	}

	return tasks, nil
}

// batchLoadTaskDependencies loads dependencies for multiple tasks in batches,
// respecting SQLite's SQLITE_MAX_VARIABLE_NUMBER limit (999).
func batchLoadTaskDependencies(db *sql.DB, taskIDs []string) (map[string][]string, error) {
	depsMap := make(map[string][]string)

	const batchSize = 999

	for i := 0; i < len(taskIDs); i += batchSize {
		end := i + batchSize
		if end > len(taskIDs) {
			end = len(taskIDs)
		}
		batch := taskIDs[i:end]

		query := `
			SELECT task_id, depends_on_task_id
			FROM task_dependencies
			WHERE task_id IN (` + placeholders(len(batch)) + `)
			ORDER BY task_id, created_at ASC`

		queryArgs := make([]any, len(batch))
		for j, id := range batch {
			queryArgs[j] = id
		}

		if scanErr := func() error {
			rows, err := db.QueryContext(context.Background(), query, queryArgs...)
			if err != nil {
				return fmt.Errorf("failed to query task dependencies batch: %w", err)
			}
			defer func() { _ = rows.Close() }()

			for rows.Next() {
				var taskID, depID string
				if err := rows.Scan(&taskID, &depID); err != nil {
					return fmt.Errorf("failed to scan task dependency: %w", err)
				}
				depsMap[taskID] = append(depsMap[taskID], depID)
			}
			return rows.Err()
		}(); scanErr != nil {
			return nil, scanErr
		}
	}

	return depsMap, nil
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
