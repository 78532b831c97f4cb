package app

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// TelemetryEvent is one line in the local events.jsonl side-channel.
type TelemetryEvent struct {
	Timestamp time.Time      `json:"ts"`
	AgentID   string         `json:"agent_id,omitempty"`
	Operation string         `json:"operation"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// RecordEvent appends an operation event to <state-dir>/events/events.jsonl.
// Telemetry is local-only, best-effort, and post-commit: failures are logged
// and never surfaced to the caller.
func RecordEvent(cfg *Config, agentID, operation string, fields map[string]any) {
	if cfg == nil || !cfg.Effective().Telemetry {
		return
	}

	stateDir, err := StateDir()
	if err != nil {
		slog.Debug("telemetry: no state dir", "error", err)
		return
	}
	dir := EventsDir(stateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Debug("telemetry: mkdir failed", "error", err)
		return
	}

	line, err := json.Marshal(TelemetryEvent{
		Timestamp: time.Now().UTC(),
		AgentID:   agentID,
		Operation: operation,
		Fields:    fields,
	})
	if err != nil {
		slog.Debug("telemetry: marshal failed", "error", err)
		return
	}

	f, err := os.OpenFile(filepath.Join(dir, "events.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Debug("telemetry: open failed", "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		slog.Debug("telemetry: write failed", "error", err)
	}
}
