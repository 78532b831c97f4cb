package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/taskorch/tm/internal/app"
	"github.com/taskorch/tm/internal/output"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the project state directory, database, and default config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stateDir, err := app.StateDir()
			if err != nil {
				return cmdErr(err)
			}
			for _, dir := range []string{
				stateDir,
				app.ContextsDir(stateDir),
				app.NotesDir(stateDir),
				app.BackupsDir(stateDir),
			} {
				if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
					return cmdErr(mkErr)
				}
			}

			if _, statErr := os.Stat(app.ConfigPath(stateDir)); os.IsNotExist(statErr) {
				if saveErr := app.SaveConfig(stateDir, app.DefaultConfig()); saveErr != nil {
					return cmdErr(saveErr)
				}
			}

			// InitDBWithPath opens, applies pragmas, and migrates.
			if err := withDB(func(db *DB) error { return nil }); err != nil {
				return err
			}

			type resp struct {
				StateDir string `json:"state_dir"`
			}
			return output.PrintSuccess(resp{StateDir: stateDir})
		},
	}
}
