package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/taskorch/tm/internal/output"
	"github.com/taskorch/tm/internal/store"
)

func newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Read-only aggregations over completed tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := projectConfig()
			if err != nil {
				return cmdErr(err)
			}
			eff := cfg.Effective()

			periodName, _ := cmd.Flags().GetString("period")
			period, err := store.PeriodFromName(periodName, time.Now().UTC())
			if err != nil {
				return cmdErr(err)
			}

			wantFeedback, _ := cmd.Flags().GetBool("feedback")
			wantTime, _ := cmd.Flags().GetBool("time-tracking")
			wantTelemetry, _ := cmd.Flags().GetBool("telemetry")
			if !wantFeedback && !wantTime && !wantTelemetry {
				wantFeedback, wantTime, wantTelemetry = true, true, true
			}

			type resp struct {
				Feedback *store.FeedbackMetrics `json:"feedback,omitempty"`
				Time     *store.TimeMetrics     `json:"time,omitempty"`
				Adoption *store.AdoptionMetrics `json:"adoption,omitempty"`
			}
			var r resp

			if err := withDB(func(db *DB) error {
				ctx := cmd.Context()
				if wantFeedback && eff.Feedback {
					m, mErr := store.GetFeedbackMetrics(ctx, db, period)
					if mErr != nil {
						return mErr
					}
					r.Feedback = m
				}
				if wantTime && eff.TimeTracking {
					m, mErr := store.GetTimeMetrics(ctx, db, period)
					if mErr != nil {
						return mErr
					}
					r.Time = m
				}
				if wantTelemetry && eff.Telemetry {
					m, mErr := store.GetAdoptionMetrics(ctx, db, period)
					if mErr != nil {
						return mErr
					}
					r.Adoption = m
				}
				return nil
			}); err != nil {
				return err
			}

			return output.PrintSuccess(r)
		},
	}

	cmd.Flags().Bool("feedback", false, "Feedback metrics only")
	cmd.Flags().Bool("time-tracking", false, "Time-tracking metrics only")
	cmd.Flags().Bool("telemetry", false, "Adoption metrics only")
	cmd.Flags().String("period", "", "Period filter: week|month")
	return cmd
}
