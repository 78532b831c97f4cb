// Package app resolves project-local state paths and feature-toggle
// configuration. All engine state lives under <project>/.task-orchestrator.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StateDirName is the project-local state directory.
const StateDirName = ".task-orchestrator"

// Environment variables honored by path resolution.
const (
	EnvDBPath   = "TM_DB_PATH"
	EnvTestMode = "TM_TEST_MODE"
)

// stateDirOverrideMu and stateDirOverride implement a mutex-protected
// process-wide override for the CLI --dir flag.
//
//nolint:gochecknoglobals // RWMutex override is intentional process-wide state
var (
	stateDirOverrideMu sync.RWMutex
	stateDirOverride   string
)

// SetStateDirOverride sets a process-wide project directory override.
// Intended for CLI flag support (e.g. --dir).
func SetStateDirOverride(dir string) {
	stateDirOverrideMu.Lock()
	stateDirOverride = dir
	stateDirOverrideMu.Unlock()
}

func getStateDirOverride() string {
	stateDirOverrideMu.RLock()
	v := stateDirOverride
	stateDirOverrideMu.RUnlock()
	return v
}

// StateDir resolves the state directory for the current project.
// Order of precedence:
// 1) CLI override (--dir), joined with StateDirName
// 2) The nearest ancestor of the working directory containing StateDirName
// 3) <cwd>/.task-orchestrator (not created; Init creates it)
func StateDir() (string, error) {
	if override := getStateDirOverride(); override != "" {
		return filepath.Join(override, StateDirName), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}

	for dir := cwd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, StateDirName)
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return candidate, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}

	return filepath.Join(cwd, StateDirName), nil
}

// GetDBPath resolves the database path: TM_DB_PATH wins, otherwise
// <state-dir>/tasks.db. Ensures the parent directory exists.
func GetDBPath() (string, error) {
	if envPath := os.Getenv(EnvDBPath); envPath != "" {
		return EnsureDBDir(envPath)
	}

	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return EnsureDBDir(filepath.Join(dir, "tasks.db"))
}

// EnsureDBDir creates the parent directory of dbPath if missing.
func EnsureDBDir(dbPath string) (string, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return dbPath, nil
}

// LockPath returns the project advisory lock file path.
func LockPath(stateDir string) string { return filepath.Join(stateDir, ".lock") }

// ContextsDir returns the shared context directory.
func ContextsDir(stateDir string) string { return filepath.Join(stateDir, "contexts") }

// NotesDir returns the private notes directory.
func NotesDir(stateDir string) string { return filepath.Join(stateDir, "notes") }

// BackupsDir returns the migration backup directory.
func BackupsDir(stateDir string) string { return filepath.Join(stateDir, "backups") }

// EventsDir returns the post-commit event side-channel directory.
func EventsDir(stateDir string) string { return filepath.Join(stateDir, "events") }

// ConfigPath returns the feature-toggle config file path.
func ConfigPath(stateDir string) string { return filepath.Join(stateDir, "config.yaml") }

// TestMode reports whether TM_TEST_MODE is set. Test mode relaxes fsync on
// context files and is intended for tests only.
func TestMode() bool {
	v := os.Getenv(EnvTestMode)
	return v == "1" || v == "true"
}
