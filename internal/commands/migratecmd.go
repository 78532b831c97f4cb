package commands

import (
	"github.com/spf13/cobra"

	"github.com/taskorch/tm/internal/app"
	"github.com/taskorch/tm/internal/output"
	"github.com/taskorch/tm/internal/store"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect, apply, or roll back schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := app.GetDBPath()
			if err != nil {
				return cmdErr(err)
			}
			stateDir, err := app.StateDir()
			if err != nil {
				return cmdErr(err)
			}
			backupsDir := app.BackupsDir(stateDir)

			apply, _ := cmd.Flags().GetBool("apply")
			rollback, _ := cmd.Flags().GetBool("rollback")
			check, _ := cmd.Flags().GetBool("check")

			if rollback {
				// Rollback restores the newest pre-migration backup over the
				// database file; the store must not be open while it runs.
				restored, rbErr := store.RollbackDatabase(dbPath, backupsDir)
				if rbErr != nil {
					return cmdErr(rbErr)
				}
				type resp struct {
					RestoredFrom string `json:"restored_from"`
				}
				return output.PrintSuccess(resp{RestoredFrom: restored})
			}

			db, dbErr := store.OpenDB(dbPath)
			if dbErr != nil {
				return cmdErr(dbErr)
			}
			defer func() { _ = db.Close() }()

			if check {
				if cErr := store.CheckIntegrity(cmd.Context(), db); cErr != nil {
					return cmdErr(cErr)
				}
			}

			if apply {
				if mErr := store.MigrateDB(db, dbPath, backupsDir); mErr != nil {
					return cmdErr(mErr)
				}
			}

			current, latest, vErr := store.SchemaVersion(db)
			if vErr != nil {
				return cmdErr(vErr)
			}
			type resp struct {
				Current int64 `json:"current"`
				Latest  int64 `json:"latest"`
				Applied bool  `json:"applied"`
			}
			return output.PrintSuccess(resp{Current: current, Latest: latest, Applied: apply})
		},
	}

	cmd.Flags().Bool("status", false, "Show schema version (default)")
	cmd.Flags().Bool("apply", false, "Back up and apply pending migrations")
	cmd.Flags().Bool("rollback", false, "Restore the newest migration backup")
	cmd.Flags().Bool("check", false, "Run an integrity check before anything else")
	return cmd
}
