// Package commands is the cobra CLI over the coordination engine. Commands
// are thin: flag parsing, facade calls, and the JSON envelope. Each error
// kind maps to a distinct exit code (see ExitCode).
package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskorch/tm/internal/app"
	"github.com/taskorch/tm/internal/output"
)

// NewRootCmd assembles the full command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "tm",
		Short:         "Multi-agent task coordination (tasks, dependencies, notifications, shared context)",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return output.PrintSuccess(resp{Version: version})
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dir, err := cmd.Flags().GetString("dir"); err == nil && dir != "" {
				app.SetStateDirOverride(dir)
			}
			return nil
		},
	}

	root.PersistentFlags().String("dir", "", "Project directory (default: nearest ancestor with a state dir)")
	root.PersistentFlags().StringP("agent", "a", "", "Agent identifier (default: $TM_AGENT_ID or derived)")
	root.Flags().BoolP("version", "v", false, "version for tm")

	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newUpdateCmd())
	root.AddCommand(newCompleteCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newAssignCmd())
	root.AddCommand(newProgressCmd())
	root.AddCommand(newFeedbackCmd())
	root.AddCommand(newMetricsCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newDiscoverCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newCriticalPathCmd())
	root.AddCommand(newJoinCmd())
	root.AddCommand(newShareCmd())
	root.AddCommand(newNoteCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newContextCmd())
	return root
}

// Execute runs the CLI application.
func Execute(version string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	err := NewRootCmd(version).Execute()
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			slog.Error("command failed", "error", err.Error())
		}
	}
	return err
}
