package commands

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/taskorch/tm/internal/app"
	"github.com/taskorch/tm/internal/identity"
	"github.com/taskorch/tm/internal/models"
	"github.com/taskorch/tm/internal/output"
	"github.com/taskorch/tm/internal/store"
)

// DB is an alias so command code doesn't need to import database/sql.
type DB = sql.DB

type printedError struct {
	err error
}

func (e printedError) Error() string {
	// The JSON error envelope is the output; hide the original here.
	return "error already printed"
}

func (e printedError) Unwrap() error { return e.err }

func openDB() (*DB, func(), error) {
	db, err := store.InitDB()
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

func withDB(fn func(db *DB) error) error {
	db, closeDB, err := openDB()
	if err != nil {
		return cmdErr(err)
	}
	defer closeDB()

	if err := fn(db); err != nil {
		return cmdErr(err)
	}
	return nil
}

// cmdErr prints the JSON error envelope once, logs it with its structured
// attributes, and returns a sentinel so Execute doesn't log it again.
func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	_ = output.PrintError(err)

	attrs := []any{"error", err.Error()}
	type slogAttrError interface {
		SlogAttrs() []any
	}
	var detailed slogAttrError
	if errors.As(err, &detailed) {
		attrs = append(attrs, detailed.SlogAttrs()...)
	}
	slog.Error("command error", attrs...)
	return printedError{err: err}
}

// agentID resolves the acting agent: --agent flag, then TM_AGENT_ID, then
// the derived user_hosthash identity.
func agentID(cmd *cobra.Command) string {
	if flag, err := cmd.Flags().GetString("agent"); err == nil && flag != "" {
		return flag
	}
	return identity.Resolve()
}

// projectConfig loads the feature toggles for the current project.
func projectConfig() (*app.Config, string, error) {
	stateDir, err := app.StateDir()
	if err != nil {
		return nil, "", err
	}
	cfg, err := app.LoadConfig(stateDir)
	if err != nil {
		return nil, "", err
	}
	return &cfg, stateDir, nil
}

// requireFeature gates a command path on a config toggle.
func requireFeature(enabled bool, name string) error {
	if enabled {
		return nil
	}
	return models.E(models.KindInvalidInput,
		"feature %q is disabled; enable it with: tm config --enable %s", name, name)
}
