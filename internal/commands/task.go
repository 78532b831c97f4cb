package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskorch/tm/internal/models"
	"github.com/taskorch/tm/internal/orchestrator"
	"github.com/taskorch/tm/internal/output"
	"github.com/taskorch/tm/internal/store"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}
			eff := cfg.Effective()

			p := store.CreateTaskParams{
				Title:     args[0],
				CreatedBy: agentID(cmd),
			}
			p.Description, _ = cmd.Flags().GetString("description")
			priority, _ := cmd.Flags().GetString("priority")
			p.Priority = models.TaskPriority(priority)
			p.Assignee, _ = cmd.Flags().GetString("assignee")
			p.DependsOn, _ = cmd.Flags().GetStringSlice("depends-on")

			if refs, _ := cmd.Flags().GetStringSlice("file"); len(refs) > 0 {
				for _, raw := range refs {
					ref, parseErr := store.ParseFileRef(raw)
					if parseErr != nil {
						return cmdErr(parseErr)
					}
					p.FileRefs = append(p.FileRefs, ref)
				}
			}
			if criteriaJSON, _ := cmd.Flags().GetString("criteria"); criteriaJSON != "" {
				if err := requireFeature(eff.SuccessCriteria, "success_criteria"); err != nil {
					return cmdErr(err)
				}
				criteria, parseErr := store.ParseCriteria(criteriaJSON)
				if parseErr != nil {
					return cmdErr(parseErr)
				}
				p.Criteria = criteria
			}
			if deadline, _ := cmd.Flags().GetString("deadline"); deadline != "" {
				if err := requireFeature(eff.Deadlines, "deadlines"); err != nil {
					return cmdErr(err)
				}
				t, parseErr := store.ParseDeadline(deadline)
				if parseErr != nil {
					return cmdErr(parseErr)
				}
				p.Deadline = &t
			}
			if cmd.Flags().Changed("estimated-hours") {
				if err := requireFeature(eff.TimeTracking, "time_tracking"); err != nil {
					return cmdErr(err)
				}
				hours, _ := cmd.Flags().GetFloat64("estimated-hours")
				p.EstimatedHours = &hours
			}

			var task *models.Task
			if err := withDB(func(db *DB) error {
				created, addErr := orchestrator.New(db, agentID(cmd), cfg).Add(p)
				if addErr != nil {
					return addErr
				}
				task = created
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				ID   string       `json:"id"`
				Task *models.Task `json:"task"`
			}
			return output.PrintSuccess(resp{ID: task.ID, Task: task})
		},
	}

	cmd.Flags().String("description", "", "Task description")
	cmd.Flags().String("priority", "", "Priority: low|medium|high|critical (default medium)")
	cmd.Flags().String("assignee", "", "Agent to assign the task to")
	cmd.Flags().StringSlice("depends-on", nil, "Task IDs this task depends on")
	cmd.Flags().StringSlice("file", nil, "File reference path[:start[:end]] (repeatable)")
	cmd.Flags().String("criteria", "", "Success criteria as a JSON array of {criterion, measurable}")
	cmd.Flags().String("deadline", "", "Deadline (ISO-8601)")
	cmd.Flags().Float64("estimated-hours", 0, "Estimated hours")
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter store.TaskFilter
			if statuses, _ := cmd.Flags().GetStringSlice("status"); len(statuses) > 0 {
				for _, s := range statuses {
					status := models.TaskStatus(s)
					if !status.Valid() {
						return cmdErr(models.E(models.KindInvalidInput, "invalid status: %s", s))
					}
					filter.Statuses = append(filter.Statuses, status)
				}
			}
			if priorities, _ := cmd.Flags().GetStringSlice("priority"); len(priorities) > 0 {
				for _, p := range priorities {
					priority := models.TaskPriority(p)
					if !priority.Valid() {
						return cmdErr(models.E(models.KindInvalidInput, "invalid priority: %s", p))
					}
					filter.Priorities = append(filter.Priorities, priority)
				}
			}
			filter.Assignee, _ = cmd.Flags().GetString("assignee")
			filter.HasDeps, _ = cmd.Flags().GetBool("has-deps")
			filter.FileRef, _ = cmd.Flags().GetString("file-ref")

			var tasks []*models.Task
			if err := withDB(func(db *DB) error {
				listed, listErr := store.ListTasks(db, filter)
				if listErr != nil {
					return listErr
				}
				tasks = listed
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				Count int            `json:"count"`
				Tasks []*models.Task `json:"tasks"`
			}
			return output.PrintSuccess(resp{Count: len(tasks), Tasks: tasks})
		},
	}

	cmd.Flags().StringSlice("status", nil, "Filter by status (repeatable)")
	cmd.Flags().StringSlice("priority", nil, "Filter by priority (repeatable)")
	cmd.Flags().String("assignee", "", "Filter by assignee")
	cmd.Flags().Bool("has-deps", false, "Only tasks with dependencies")
	cmd.Flags().String("file-ref", "", "Filter by file reference substring")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with dependencies, participants, progress, and recent notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var detail *store.TaskDetail
			if err := withDB(func(db *DB) error {
				d, showErr := store.ShowTask(db, args[0])
				if showErr != nil {
					return showErr
				}
				detail = d
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(detail)
		},
	}
}

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields (status, assignee, priority, description, dependencies)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			var p store.UpdateTaskParams
			if status, _ := cmd.Flags().GetString("status"); status != "" {
				s := models.TaskStatus(status)
				p.Status = &s
			}
			if cmd.Flags().Changed("assignee") {
				assignee, _ := cmd.Flags().GetString("assignee")
				p.Assignee = &assignee
			}
			if cmd.Flags().Changed("description") {
				description, _ := cmd.Flags().GetString("description")
				p.Description = &description
			}
			if priority, _ := cmd.Flags().GetString("priority"); priority != "" {
				pr := models.TaskPriority(priority)
				p.Priority = &pr
			}
			if deadline, _ := cmd.Flags().GetString("deadline"); deadline != "" {
				t, parseErr := store.ParseDeadline(deadline)
				if parseErr != nil {
					return cmdErr(parseErr)
				}
				p.Deadline = &t
			}
			if cmd.Flags().Changed("estimated-hours") {
				hours, _ := cmd.Flags().GetFloat64("estimated-hours")
				p.EstimatedHours = &hours
			}
			addDeps, _ := cmd.Flags().GetStringSlice("add-depends-on")
			removeDeps, _ := cmd.Flags().GetStringSlice("remove-depends-on")

			var task *models.Task
			if err := withDB(func(db *DB) error {
				for _, dep := range addDeps {
					if depErr := store.AddTaskDependency(db, taskID, dep); depErr != nil {
						return depErr
					}
				}
				for _, dep := range removeDeps {
					if depErr := store.RemoveTaskDependency(db, taskID, dep); depErr != nil {
						return depErr
					}
				}

				if p != (store.UpdateTaskParams{}) {
					updated, upErr := store.UpdateTask(db, taskID, p)
					if upErr != nil {
						return upErr
					}
					task = updated
					return nil
				}
				current, getErr := store.GetTask(db, taskID)
				if getErr != nil {
					return getErr
				}
				task = current
				return nil
			}); err != nil {
				return err
			}

			return output.PrintSuccess(task)
		},
	}

	cmd.Flags().String("status", "", "New status: pending|in_progress|cancelled")
	cmd.Flags().String("assignee", "", "New assignee (empty clears)")
	cmd.Flags().String("description", "", "New description")
	cmd.Flags().String("priority", "", "New priority")
	cmd.Flags().String("deadline", "", "New deadline (ISO-8601)")
	cmd.Flags().Float64("estimated-hours", 0, "New estimate")
	cmd.Flags().StringSlice("add-depends-on", nil, "Add dependency edges")
	cmd.Flags().StringSlice("remove-depends-on", nil, "Remove dependency edges")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task no other task depends on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := withDB(func(db *DB) error {
				return store.DeleteTask(db, args[0])
			}); err != nil {
				return err
			}
			type resp struct {
				Deleted string `json:"deleted"`
			}
			return output.PrintSuccess(resp{Deleted: args[0]})
		},
	}
}

func newAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <id> <agent>",
		Short: "Assign a task to an agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var task *models.Task
			if err := withDB(func(db *DB) error {
				updated, asgErr := store.AssignTask(db, args[0], args[1])
				if asgErr != nil {
					return asgErr
				}
				task = updated
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(task)
		},
	}
}

func newCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete a task, unblocking its dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}

			p := store.CompleteTaskParams{}
			p.Validate, _ = cmd.Flags().GetBool("validate")
			p.ImpactReview, _ = cmd.Flags().GetBool("impact-review")
			p.Summary, _ = cmd.Flags().GetString("summary")
			if cmd.Flags().Changed("actual-hours") {
				if err := requireFeature(cfg.Effective().TimeTracking, "time_tracking"); err != nil {
					return cmdErr(err)
				}
				hours, _ := cmd.Flags().GetFloat64("actual-hours")
				p.ActualHours = &hours
			}
			if ctxPairs, _ := cmd.Flags().GetStringSlice("context"); len(ctxPairs) > 0 {
				ctx, parseErr := parseContextPairs(ctxPairs)
				if parseErr != nil {
					return cmdErr(parseErr)
				}
				p.Context = ctx
			}

			var result *store.CompleteResult
			if err := withDB(func(db *DB) error {
				r, cErr := orchestrator.New(db, agentID(cmd), cfg).Complete(args[0], p)
				if cErr != nil {
					return cErr
				}
				result = r
				return nil
			}); err != nil {
				return err
			}

			return output.PrintSuccess(result)
		},
	}

	cmd.Flags().Bool("validate", false, "Evaluate success criteria before completing")
	cmd.Flags().Bool("impact-review", false, "Notify tasks sharing file references")
	cmd.Flags().String("summary", "", "Completion summary (20-2000 chars)")
	cmd.Flags().Float64("actual-hours", 0, "Actual hours spent")
	cmd.Flags().StringSlice("context", nil, "Criteria context as key=value (repeatable)")
	return cmd
}

// parseContextPairs converts key=value flags into the criteria context map,
// coercing booleans and numbers.
func parseContextPairs(pairs []string) (map[string]any, error) {
	ctx := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, models.E(models.KindInvalidInput, "context entry %q must be key=value", pair)
		}
		switch value {
		case "true":
			ctx[key] = true
		case "false":
			ctx[key] = false
		default:
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				ctx[key] = n
			} else {
				ctx[key] = value
			}
		}
	}
	return ctx, nil
}
