package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskorch/tm/internal/contextstore"
	"github.com/taskorch/tm/internal/models"
	"github.com/taskorch/tm/internal/output"
	"github.com/taskorch/tm/internal/worker"
)

func newJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <id>",
		Short: "Join a task's participant set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, stateDir, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}
			agent := agentID(cmd)
			if err := withDB(func(db *DB) error {
				return worker.New(db, agent, stateDir, cfg).Join(args[0])
			}); err != nil {
				return err
			}
			type resp struct {
				TaskID  string `json:"task_id"`
				AgentID string `json:"agent_id"`
			}
			return output.PrintSuccess(resp{TaskID: args[0], AgentID: agent})
		},
	}
}

func newShareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share <id> <text>",
		Short: "Append a contribution to a task's shared context",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, stateDir, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}
			entryType, _ := cmd.Flags().GetString("type")
			global, _ := cmd.Flags().GetBool("global")
			text := strings.Join(args[1:], " ")

			if err := withDB(func(db *DB) error {
				w := worker.New(db, agentID(cmd), stateDir, cfg)
				if global {
					return w.SetGlobal(args[0], text)
				}
				return w.Share(args[0], contextstore.EntryType(entryType), text)
			}); err != nil {
				return err
			}
			type resp struct {
				TaskID string `json:"task_id"`
				Type   string `json:"type"`
			}
			return output.PrintSuccess(resp{TaskID: args[0], Type: entryType})
		},
	}

	cmd.Flags().String("type", string(contextstore.EntryUpdate),
		"Entry type: progress|update|fix|discovery|sync")
	cmd.Flags().Bool("global", false, "Replace the shared global section instead of appending")
	return cmd
}

func newNoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note <id> [text...]",
		Short: "Append to (or show with --show) this agent's private note for a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, stateDir, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}
			show, _ := cmd.Flags().GetBool("show")

			if show {
				var note string
				if err := withDB(func(db *DB) error {
					text, readErr := worker.New(db, agentID(cmd), stateDir, cfg).ReadNote(args[0])
					if readErr != nil {
						return readErr
					}
					note = text
					return nil
				}); err != nil {
					return err
				}
				type resp struct {
					TaskID string `json:"task_id"`
					Note   string `json:"note"`
				}
				return output.PrintSuccess(resp{TaskID: args[0], Note: note})
			}

			if len(args) < 2 {
				return cmdErr(models.E(models.KindInvalidInput, "note text is required"))
			}
			text := strings.Join(args[1:], " ")
			if err := withDB(func(db *DB) error {
				return worker.New(db, agentID(cmd), stateDir, cfg).Note(args[0], text)
			}); err != nil {
				return err
			}
			type resp struct {
				TaskID string `json:"task_id"`
			}
			return output.PrintSuccess(resp{TaskID: args[0]})
		},
	}

	cmd.Flags().Bool("show", false, "Print the note instead of appending")
	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <id> <text>",
		Short: "Record a sync point and notify the task's participants",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, stateDir, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}
			text := strings.Join(args[1:], " ")
			if err := withDB(func(db *DB) error {
				return worker.New(db, agentID(cmd), stateDir, cfg).Sync(args[0], text)
			}); err != nil {
				return err
			}
			type resp struct {
				TaskID string `json:"task_id"`
			}
			return output.PrintSuccess(resp{TaskID: args[0]})
		},
	}
}

func newContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context <id>",
		Short: "Print a task's shared context document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, stateDir, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}
			doc, err := contextstore.New(stateDir).ReadShared(args[0])
			if err != nil {
				return cmdErr(err)
			}
			return output.PrintSuccess(doc)
		},
	}
}
