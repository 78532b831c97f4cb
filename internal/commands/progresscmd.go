package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskorch/tm/internal/models"
	"github.com/taskorch/tm/internal/output"
	"github.com/taskorch/tm/internal/store"
	"github.com/taskorch/tm/internal/worker"
)

func newProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <message>",
		Short: "Append a progress entry to a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, stateDir, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}
			message := strings.Join(args[1:], " ")
			if err := withDB(func(db *DB) error {
				return worker.New(db, agentID(cmd), stateDir, cfg).Progress(args[0], message)
			}); err != nil {
				return err
			}
			type resp struct {
				TaskID  string `json:"task_id"`
				Message string `json:"message"`
			}
			return output.PrintSuccess(resp{TaskID: args[0], Message: message})
		},
	}
}

func newFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <id>",
		Short: "Record quality/timeliness feedback on a completed task (single-shot)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}
			if err := requireFeature(cfg.Effective().Feedback, "feedback"); err != nil {
				return cmdErr(err)
			}

			var p store.FeedbackParams
			if cmd.Flags().Changed("quality") {
				quality, _ := cmd.Flags().GetInt("quality")
				p.Quality = &quality
			}
			if cmd.Flags().Changed("timeliness") {
				timeliness, _ := cmd.Flags().GetInt("timeliness")
				p.Timeliness = &timeliness
			}
			p.Note, _ = cmd.Flags().GetString("note")

			var task *models.Task
			if err := withDB(func(db *DB) error {
				updated, fbErr := store.SetFeedback(db, args[0], p)
				if fbErr != nil {
					return fbErr
				}
				task = updated
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(task)
		},
	}

	cmd.Flags().Int("quality", 0, "Quality score 1..5")
	cmd.Flags().Int("timeliness", 0, "Timeliness score 1..5")
	cmd.Flags().String("note", "", "Free-form note (max 500 chars)")
	return cmd
}
