package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/taskorch/tm/internal/models"
	"github.com/taskorch/tm/internal/output"
	"github.com/taskorch/tm/internal/store"
)

// formatValue is a pflag.Value restricted to the supported export formats,
// so invalid formats fail at flag parse time.
type formatValue string

var _ pflag.Value = (*formatValue)(nil)

func (f *formatValue) String() string { return string(*f) }
func (f *formatValue) Type() string   { return "format" }

func (f *formatValue) Set(s string) error {
	switch s {
	case "json", "markdown":
		*f = formatValue(s)
		return nil
	}
	return models.E(models.KindInvalidInput, "unknown export format %q (want json or markdown)", s)
}

func newExportCmd() *cobra.Command {
	format := formatValue("json")
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all tasks deterministically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc *store.ExportDoc
			if err := withDB(func(db *DB) error {
				d, exErr := store.Export(cmd.Context(), db)
				if exErr != nil {
					return exErr
				}
				doc = d
				return nil
			}); err != nil {
				return err
			}

			if format == "markdown" {
				fmt.Fprint(os.Stdout, renderMarkdown(doc))
				return nil
			}
			return output.PrintSuccess(doc)
		},
	}

	cmd.Flags().Var(&format, "format", "Output format: json|markdown")
	return cmd
}

func renderMarkdown(doc *store.ExportDoc) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Tasks (%d)\n", doc.TaskCount)
	for _, task := range doc.Tasks {
		fmt.Fprintf(&b, "\n## %s %s\n\n", task.ID, task.Title)
		fmt.Fprintf(&b, "- status: %s\n- priority: %s\n", task.Status, task.Priority)
		if task.Assignee != "" {
			fmt.Fprintf(&b, "- assignee: %s\n", task.Assignee)
		}
		if len(task.DependsOn) > 0 {
			fmt.Fprintf(&b, "- depends on: %s\n", strings.Join(task.DependsOn, ", "))
		}
		if task.Deadline != nil {
			fmt.Fprintf(&b, "- deadline: %s\n", task.Deadline.UTC().Format("2006-01-02T15:04:05Z"))
		}
		if task.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", task.Description)
		}
	}
	return b.String()
}
