package commands

import (
	"github.com/spf13/cobra"

	"github.com/taskorch/tm/internal/app"
	"github.com/taskorch/tm/internal/models"
	"github.com/taskorch/tm/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change feature toggles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, stateDir, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}

			enable, _ := cmd.Flags().GetStringSlice("enable")
			disable, _ := cmd.Flags().GetStringSlice("disable")
			minimal, _ := cmd.Flags().GetBool("minimal-mode")
			reset, _ := cmd.Flags().GetBool("reset")

			changed := false
			if reset {
				*cfg = app.DefaultConfig()
				changed = true
			}
			for _, name := range enable {
				if !cfg.Set(name, true) {
					return cmdErr(models.E(models.KindInvalidInput, "unknown feature %q", name))
				}
				changed = true
			}
			for _, name := range disable {
				if !cfg.Set(name, false) {
					return cmdErr(models.E(models.KindInvalidInput, "unknown feature %q", name))
				}
				changed = true
			}
			if minimal {
				cfg.MinimalMode = true
				changed = true
			}

			if changed {
				if saveErr := app.SaveConfig(stateDir, *cfg); saveErr != nil {
					return cmdErr(saveErr)
				}
			}

			type resp struct {
				Config    app.Config `json:"config"`
				Effective app.Config `json:"effective"`
			}
			return output.PrintSuccess(resp{Config: *cfg, Effective: cfg.Effective()})
		},
	}

	cmd.Flags().Bool("show", false, "Show current toggles (default)")
	cmd.Flags().StringSlice("enable", nil, "Enable features")
	cmd.Flags().StringSlice("disable", nil, "Disable features")
	cmd.Flags().Bool("minimal-mode", false, "Turn every feature off")
	cmd.Flags().Bool("reset", false, "Restore default toggles")
	return cmd
}
