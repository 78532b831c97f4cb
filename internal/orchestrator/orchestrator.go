// Package orchestrator is the role-scoped facade for coordinating agents:
// breaking work into dependent tasks, assigning them, monitoring the graph,
// and closing it out. It shares TaskCore with the worker facade; the split
// is policy, not authority.
package orchestrator

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskorch/tm/internal/app"
	"github.com/taskorch/tm/internal/models"
	"github.com/taskorch/tm/internal/store"
)

// Orchestrator exposes the coordinator operation set.
type Orchestrator struct {
	db      *sql.DB
	agentID string
	cfg     *app.Config
}

// New builds an orchestrator facade bound to one agent identity.
func New(db *sql.DB, agentID string, cfg *app.Config) *Orchestrator {
	if cfg == nil {
		defaults := app.DefaultConfig()
		cfg = &defaults
	}
	return &Orchestrator{db: db, agentID: agentID, cfg: cfg}
}

// Breakdown creates a batch of tasks in one transaction. Entries may depend
// on earlier entries in the same batch by list index (DependsOnIndex) as
// well as on pre-existing task IDs.
type BreakdownItem struct {
	store.CreateTaskParams
	DependsOnIndex []int
}

// Breakdown atomically creates a plan of dependent tasks. Either the whole
// plan commits or none of it does.
func (o *Orchestrator) Breakdown(items []BreakdownItem) ([]*models.Task, error) {
	var created []*models.Task
	err := store.Transact(o.db, func(tx *sql.Tx) error {
		created = created[:0]
		for i, item := range items {
			p := item.CreateTaskParams
			p.CreatedBy = o.agentID
			for _, idx := range item.DependsOnIndex {
				if idx < 0 || idx >= i {
					return models.E(models.KindInvalidInput,
						"task %d: depends-on index %d must reference an earlier entry", i, idx)
				}
				p.DependsOn = append(p.DependsOn, created[idx].ID)
			}
			task, err := store.CreateTaskTx(tx, p)
			if err != nil {
				return err
			}
			created = append(created, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	app.RecordEvent(o.cfg, o.agentID, "breakdown", map[string]any{"tasks": len(created)})
	return created, nil
}

// Add creates a single task.
func (o *Orchestrator) Add(p store.CreateTaskParams) (*models.Task, error) {
	if p.CreatedBy == "" {
		p.CreatedBy = o.agentID
	}
	task, err := store.CreateTask(o.db, p)
	if err != nil {
		return nil, err
	}
	app.RecordEvent(o.cfg, o.agentID, "add", map[string]any{"task_id": task.ID})
	return task, nil
}

// Assign hands a task to an agent.
func (o *Orchestrator) Assign(taskID, agentID string) (*models.Task, error) {
	return store.AssignTask(o.db, taskID, agentID)
}

// Link adds a dependency edge between existing tasks.
func (o *Orchestrator) Link(taskID, dependsOn string) error {
	return store.AddTaskDependency(o.db, taskID, dependsOn)
}

// Unlink removes a dependency edge.
func (o *Orchestrator) Unlink(taskID, dependsOn string) error {
	return store.RemoveTaskDependency(o.db, taskID, dependsOn)
}

// Cancel terminates a task, unblocking its dependents.
func (o *Orchestrator) Cancel(taskID string) (*models.Task, error) {
	status := models.TaskStatusCancelled
	return store.UpdateTask(o.db, taskID, store.UpdateTaskParams{Status: &status})
}

// Reactivate clears a worker escalation.
func (o *Orchestrator) Reactivate(taskID string) (*models.Task, error) {
	return store.ReactivateTask(o.db, taskID)
}

// Complete closes a task regardless of assignee; the orchestrator owns
// aggregate completion.
func (o *Orchestrator) Complete(taskID string, p store.CompleteTaskParams) (*store.CompleteResult, error) {
	p.TaskID = taskID
	p.AgentID = o.agentID
	eff := o.cfg.Effective()
	if !eff.SuccessCriteria {
		p.Validate = false
	}
	if p.Validate && eff.CompletionSummaries {
		p.RequireSummary = true
	}
	return store.CompleteTask(o.db, p)
}

// Delete removes a task no other task depends on.
func (o *Orchestrator) Delete(taskID string) error {
	return store.DeleteTask(o.db, taskID)
}

// StatusReport is a monitoring snapshot of the task graph.
type StatusReport struct {
	GeneratedAt   time.Time                 `json:"generated_at"`
	CountByStatus map[models.TaskStatus]int `json:"count_by_status"`
	Escalated     []*models.Task            `json:"escalated,omitempty"`
	Overdue       []*models.Task            `json:"overdue,omitempty"`
	CriticalPath  []string                  `json:"critical_path,omitempty"`
}

// Report summarizes the graph: status counts, escalations needing attention,
// overdue tasks, and the current critical path.
func (o *Orchestrator) Report(ctx context.Context) (*StatusReport, error) {
	tasks, err := store.ListTasks(o.db, store.TaskFilter{})
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		GeneratedAt:   time.Now().UTC(),
		CountByStatus: make(map[models.TaskStatus]int),
	}
	now := time.Now().UTC()
	for _, task := range tasks {
		report.CountByStatus[task.Status]++
		if task.IsBlocked() && !task.IsBlockedByDependency() {
			report.Escalated = append(report.Escalated, task)
		}
		if task.Deadline != nil && task.Deadline.Before(now) && !task.Status.IsTerminal() {
			report.Overdue = append(report.Overdue, task)
		}
	}

	path, err := store.CriticalPath(ctx, o.db)
	if err != nil {
		return nil, err
	}
	for _, task := range path {
		report.CriticalPath = append(report.CriticalPath, task.ID)
	}
	return report, nil
}
