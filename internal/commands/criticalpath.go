package commands

import (
	"github.com/spf13/cobra"

	"github.com/taskorch/tm/internal/models"
	"github.com/taskorch/tm/internal/output"
	"github.com/taskorch/tm/internal/store"
)

func newCriticalPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "critical-path",
		Short: "Longest dependency chain by estimated hours over active tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var path []*models.Task
			if err := withDB(func(db *DB) error {
				p, cpErr := store.CriticalPath(cmd.Context(), db)
				if cpErr != nil {
					return cpErr
				}
				path = p
				return nil
			}); err != nil {
				return err
			}

			var totalHours float64
			ids := make([]string, 0, len(path))
			for _, task := range path {
				ids = append(ids, task.ID)
				if task.EstimatedHours != nil {
					totalHours += *task.EstimatedHours
				}
			}

			type resp struct {
				Path       []string       `json:"path"`
				TotalHours float64        `json:"total_hours"`
				Tasks      []*models.Task `json:"tasks"`
			}
			return output.PrintSuccess(resp{Path: ids, TotalHours: totalHours, Tasks: path})
		},
	}
}
