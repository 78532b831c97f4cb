// Package output prints the machine-readable JSON envelope used by every
// command. Human-readable formatting stays in the commands package.
package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/taskorch/tm/internal/models"
)

// EnvPrettyJSON enables indented output for humans. The default is compact
// JSON to keep agent-consumed output small.
const EnvPrettyJSON = "TM_PRETTY_JSON"

// Response is the standard JSON envelope.
type Response struct {
	SchemaVersion string                   `json:"schema_version"`
	Success       bool                     `json:"success"`
	Data          any                      `json:"data,omitempty"`
	Error         string                   `json:"error,omitempty"`
	ErrorKind     string                   `json:"error_kind,omitempty"`
	ErrorContext  map[string]string        `json:"error_context,omitempty"`
	Failures      []models.CriterionResult `json:"failures,omitempty"`
}

// Success wraps a successful response with data.
func Success(data any) Response {
	return Response{
		SchemaVersion: "v1",
		Success:       true,
		Data:          data,
	}
}

// Error wraps an error in a response, surfacing the machine-readable kind
// and any structured context or validation failures it carries.
func Error(err error) Response {
	resp := Response{
		SchemaVersion: "v1",
		Success:       false,
		Error:         err.Error(),
		ErrorKind:     string(models.KindOf(err)),
	}
	var se *models.Error
	if errors.As(err, &se) {
		resp.ErrorContext = se.Context
	}
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		resp.Failures = ve.Failures
	}
	return resp
}

// Config controls where and how JSON is written.
type Config struct {
	Writer io.Writer
	Pretty bool
}

// DefaultConfig writes to stdout, pretty when TM_PRETTY_JSON is set.
func DefaultConfig() Config {
	v := os.Getenv(EnvPrettyJSON)
	return Config{
		Writer: os.Stdout,
		Pretty: v == "1" || v == "true",
	}
}

// PrintWith encodes v as JSON per cfg.
func PrintWith(cfg Config, v any) error {
	enc := json.NewEncoder(cfg.Writer)
	if cfg.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Print encodes v as JSON to stdout.
func Print(v any) error {
	return PrintWith(DefaultConfig(), v)
}

// PrintSuccess prints a success envelope.
func PrintSuccess(data any) error {
	return Print(Success(data))
}

// PrintError prints an error envelope.
func PrintError(err error) error {
	return Print(Error(err))
}
