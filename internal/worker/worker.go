// Package worker is the role-scoped facade for agents executing tasks:
// claiming assignments, reporting progress, sharing context, escalating,
// decomposing, and completing their own work. It layers policy over the
// store; it holds no authority of its own.
package worker

import (
	"database/sql"
	"fmt"

	"github.com/taskorch/tm/internal/app"
	"github.com/taskorch/tm/internal/contextstore"
	"github.com/taskorch/tm/internal/models"
	"github.com/taskorch/tm/internal/store"
)

// Worker exposes the operations available to an executing agent.
type Worker struct {
	db       *sql.DB
	agentID  string
	cfg      *app.Config
	contexts *contextstore.Store
}

// New builds a worker facade bound to one agent identity.
func New(db *sql.DB, agentID, stateDir string, cfg *app.Config) *Worker {
	if cfg == nil {
		defaults := app.DefaultConfig()
		cfg = &defaults
	}
	return &Worker{
		db:       db,
		agentID:  agentID,
		cfg:      cfg,
		contexts: contextstore.New(stateDir),
	}
}

// AgentID returns the bound agent identity.
func (w *Worker) AgentID() string { return w.agentID }

// Assignments lists the agent's non-terminal tasks in priority order.
func (w *Worker) Assignments() ([]*models.Task, error) {
	return store.ListTasks(w.db, store.TaskFilter{
		Statuses: []models.TaskStatus{
			models.TaskStatusPending,
			models.TaskStatusInProgress,
			models.TaskStatusBlocked,
		},
		Assignee: w.agentID,
	})
}

// Claim takes a pending task: assigns it to this agent, moves it to
// in_progress, and joins its participant set.
func (w *Worker) Claim(taskID string) (*models.Task, error) {
	task, err := store.GetTask(w.db, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusPending {
		return nil, models.E(models.KindIllegalTransition,
			"task %s cannot be claimed: status is %s", taskID, task.Status)
	}
	if task.Assignee != "" && task.Assignee != w.agentID {
		return nil, models.E(models.KindIllegalTransition,
			"task %s is assigned to %s", taskID, task.Assignee)
	}

	status := models.TaskStatusInProgress
	updated, err := store.UpdateTask(w.db, taskID, store.UpdateTaskParams{
		Status:   &status,
		Assignee: &w.agentID,
	})
	if err != nil {
		return nil, err
	}
	if err := store.JoinTask(w.db, taskID, w.agentID); err != nil {
		return nil, err
	}
	app.RecordEvent(w.cfg, w.agentID, "claim", map[string]any{"task_id": taskID})
	return updated, nil
}

// Progress appends a progress entry authored by this agent.
func (w *Worker) Progress(taskID, message string) error {
	if err := store.AddProgress(w.db, taskID, w.agentID, message); err != nil {
		return err
	}
	app.RecordEvent(w.cfg, w.agentID, "progress", map[string]any{"task_id": taskID})
	return nil
}

// Note appends to this agent's private note for the task.
func (w *Worker) Note(taskID, text string) error {
	return w.contexts.AppendNote(taskID, w.agentID, text)
}

// Share appends a typed contribution to the task's shared context and
// notifies the other participants.
func (w *Worker) Share(taskID string, entryType contextstore.EntryType, content string) error {
	if err := w.contexts.AppendContribution(taskID, w.agentID, entryType, content); err != nil {
		return err
	}
	return store.NotifyParticipants(w.db, taskID, w.agentID, models.NotificationContextUpdated,
		fmt.Sprintf("shared context for task %s updated by %s", taskID, w.agentID))
}

// SetGlobal replaces the task's shared global context section and notifies
// the other participants.
func (w *Worker) SetGlobal(taskID, content string) error {
	if err := w.contexts.SetGlobal(taskID, content); err != nil {
		return err
	}
	return store.NotifyParticipants(w.db, taskID, w.agentID, models.NotificationContextUpdated,
		fmt.Sprintf("global context for task %s replaced by %s", taskID, w.agentID))
}

// ReadNote returns this agent's private note for the task.
func (w *Worker) ReadNote(taskID string) (string, error) {
	return w.contexts.ReadNote(taskID, w.agentID)
}

// Sync records a coordination point and notifies the other participants.
func (w *Worker) Sync(taskID, content string) error {
	if err := w.contexts.AppendSyncPoint(taskID, w.agentID, content); err != nil {
		return err
	}
	return store.NotifyParticipants(w.db, taskID, w.agentID, models.NotificationSync,
		fmt.Sprintf("sync point on task %s: %s", taskID, content))
}

// Discover records a tagged finding in shared context and broadcasts it to
// all agents.
func (w *Worker) Discover(taskID, message, impact string, tags []string) error {
	if _, err := store.GetTask(w.db, taskID); err != nil {
		return err
	}
	if err := w.contexts.AppendDiscovery(taskID, w.agentID, message, impact, tags); err != nil {
		return err
	}
	return store.Broadcast(w.db, taskID, models.NotificationDiscovery,
		fmt.Sprintf("discovery on task %s by %s: %s", taskID, w.agentID, message))
}

// Escalate blocks the task with a reason, signalling the orchestrator.
func (w *Worker) Escalate(taskID, reason string) (*models.Task, error) {
	task, err := store.EscalateTask(w.db, taskID, reason)
	if err != nil {
		return nil, err
	}
	app.RecordEvent(w.cfg, w.agentID, "escalate", map[string]any{"task_id": taskID, "reason": reason})
	return task, nil
}

// Decompose creates child tasks that depend on the parent, assigned to this
// agent. The parent stays open until its children unblock nothing further.
func (w *Worker) Decompose(parentID string, subtasks []store.CreateTaskParams) ([]*models.Task, error) {
	if _, err := store.GetTask(w.db, parentID); err != nil {
		return nil, err
	}
	var created []*models.Task
	err := store.Transact(w.db, func(tx *sql.Tx) error {
		created = created[:0]
		for _, p := range subtasks {
			p.CreatedBy = w.agentID
			if p.Assignee == "" {
				p.Assignee = w.agentID
			}
			p.DependsOn = append(p.DependsOn, parentID)
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
	return created, nil
}

// Complete finishes one of this agent's own tasks. Validation and summary
// requirements follow the feature toggles.
func (w *Worker) Complete(taskID string, p store.CompleteTaskParams) (*store.CompleteResult, error) {
	task, err := store.GetTask(w.db, taskID)
	if err != nil {
		return nil, err
	}
	if task.Assignee != "" && task.Assignee != w.agentID {
		return nil, models.E(models.KindIllegalTransition,
			"task %s is assigned to %s, not %s", taskID, task.Assignee, w.agentID)
	}

	p.TaskID = taskID
	p.AgentID = w.agentID
	eff := w.cfg.Effective()
	if !eff.SuccessCriteria {
		p.Validate = false
	}
	if p.Validate && eff.CompletionSummaries {
		p.RequireSummary = true
	}

	result, err := store.CompleteTask(w.db, p)
	if err != nil {
		return nil, err
	}
	app.RecordEvent(w.cfg, w.agentID, "complete", map[string]any{
		"task_id":   taskID,
		"unblocked": len(result.UnblockedIDs),
	})
	return result, nil
}

// Watch drains this agent's unread notifications.
func (w *Worker) Watch(limit int) ([]models.Notification, error) {
	return store.Watch(w.db, w.agentID, limit)
}

// Unread reports how many notifications are waiting without consuming them.
func (w *Worker) Unread() (int, error) {
	return store.UnreadCount(w.db, w.agentID)
}

// Context returns the task's shared context document.
func (w *Worker) Context(taskID string) (*contextstore.SharedContext, error) {
	return w.contexts.ReadShared(taskID)
}

// Join adds this agent to the task's participant set.
func (w *Worker) Join(taskID string) error {
	return store.JoinTask(w.db, taskID, w.agentID)
}
