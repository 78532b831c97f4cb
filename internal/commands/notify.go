package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskorch/tm/internal/models"
	"github.com/taskorch/tm/internal/output"
	"github.com/taskorch/tm/internal/worker"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print and mark read the current agent's unread notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, stateDir, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}
			limit, _ := cmd.Flags().GetInt("limit")

			if countOnly, _ := cmd.Flags().GetBool("count"); countOnly {
				var count int
				if err := withDB(func(db *DB) error {
					n, cntErr := worker.New(db, agentID(cmd), stateDir, cfg).Unread()
					if cntErr != nil {
						return cntErr
					}
					count = n
					return nil
				}); err != nil {
					return err
				}
				type resp struct {
					Unread int `json:"unread"`
				}
				return output.PrintSuccess(resp{Unread: count})
			}

			var notifications []models.Notification
			if err := withDB(func(db *DB) error {
				got, watchErr := worker.New(db, agentID(cmd), stateDir, cfg).Watch(limit)
				if watchErr != nil {
					return watchErr
				}
				notifications = got
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				Count         int                   `json:"count"`
				Notifications []models.Notification `json:"notifications"`
			}
			return output.PrintSuccess(resp{Count: len(notifications), Notifications: notifications})
		},
	}

	cmd.Flags().Int("limit", 0, "Max notifications to consume (default 50)")
	cmd.Flags().Bool("count", false, "Report the unread count without consuming")
	return cmd
}

func newDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover <id> <message>",
		Short: "Broadcast a discovery and record it in the task's shared context",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, stateDir, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}
			message := strings.Join(args[1:], " ")
			tags, _ := cmd.Flags().GetStringSlice("tags")
			impact, _ := cmd.Flags().GetString("impact")

			if err := withDB(func(db *DB) error {
				return worker.New(db, agentID(cmd), stateDir, cfg).Discover(args[0], message, impact, tags)
			}); err != nil {
				return err
			}

			type resp struct {
				TaskID  string   `json:"task_id"`
				Message string   `json:"message"`
				Tags    []string `json:"tags,omitempty"`
			}
			return output.PrintSuccess(resp{TaskID: args[0], Message: message, Tags: tags})
		},
	}

	cmd.Flags().StringSlice("tags", nil, "Comma-separated tags")
	cmd.Flags().String("impact", "", "Impact assessment")
	return cmd
}
