package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jejernig/keyvault-to-appconfig/internal/config"
	"github.com/jejernig/keyvault-to-appconfig/internal/configstore"
	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
	"github.com/jejernig/keyvault-to-appconfig/internal/report"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
	"github.com/jejernig/keyvault-to-appconfig/pkg/writes"
)

// NewApplyCommand creates the 'apply' command
func NewApplyCommand(cfg *config.Config) *cobra.Command {
	var (
		planPath        string
		maxParallelism  int
		retryMax        int
		retryBaseDelay  int
		retryMaxDelay   int
		rollback        bool
		reportJSON      string
		metricsTextfile string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Execute a write plan against the target store",
		Long: `Apply runs every Create and Update action of a plan written by 'plan --out'
against the configured target store, retrying transient failures. With
--rollback, failed writes are reverted using the plan's rollback actions.

Interrupting apply stops scheduling new writes; writes already finished are
reported. The command exits 2 when any write failed or the run was interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDefinition(cmd, cfg); err != nil {
				return err
			}
			def := cfg.Definition

			opts := def.WriteOptions()
			flags := cmd.Flags()
			if flags.Changed("max-parallelism") {
				opts.MaxParallelism = maxParallelism
			}
			if flags.Changed("retry-max") {
				opts.RetryPolicy.MaxAttempts = retryMax
			}
			if flags.Changed("retry-base-delay") {
				opts.RetryPolicy.BaseDelaySeconds = retryBaseDelay
			}
			if flags.Changed("retry-max-delay") {
				opts.RetryPolicy.MaxDelaySeconds = retryMaxDelay
			}
			if flags.Changed("rollback") {
				opts.Rollback = rollback
			}
			if opts.MaxParallelism < 1 {
				return dserrors.ConfigError{Field: "max-parallelism", Value: opts.MaxParallelism, Message: "must be >= 1"}
			}
			if err := opts.RetryPolicy.Validate(); err != nil {
				return err
			}
			if metricsTextfile == "" {
				metricsTextfile = def.Metrics.Textfile
			}

			plan, err := report.ReadWritePlan(planPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := openTarget(ctx, def)
			if err != nil {
				return err
			}
			if opts.Rollback && plan.RollbackPlan == nil {
				if plan.RollbackPlan, err = currentRollbackPlan(ctx, def, store, plan); err != nil {
					return err
				}
			}

			correlationID := logging.NewCorrelationID()
			cfg.Logger.Event(correlationID, "apply.start", map[string]string{
				"planId":         plan.PlanID,
				"actions":        strconv.Itoa(len(plan.Actions)),
				"maxParallelism": strconv.Itoa(opts.MaxParallelism),
				"rollback":       strconv.FormatBool(opts.Rollback),
			})

			metrics := writes.NewMetrics()
			executor := writes.NewExecutor(store,
				writes.WithLogger(cfg.Logger),
				writes.WithMetrics(metrics),
				writes.WithCorrelationID(correlationID),
			)
			rep, execErr := executor.Execute(ctx, plan, opts)
			if rep == nil {
				return execErr
			}

			secrets := make([]string, 0, len(plan.Actions))
			for _, a := range plan.Actions {
				if a.DesiredValue != "" {
					secrets = append(secrets, a.DesiredValue)
				}
			}
			clean := report.RedactWriteReport(rep, secrets)

			cfg.Logger.Event(correlationID, "apply.complete", map[string]string{
				"planId":  plan.PlanID,
				"created": strconv.Itoa(rep.Totals.CreateCount),
				"updated": strconv.Itoa(rep.Totals.UpdateCount),
				"skipped": strconv.Itoa(rep.Totals.SkipCount),
				"failed":  strconv.Itoa(rep.Totals.FailedCount),
			})

			out := cmd.OutOrStdout()
			if err := printWriteReport(out, clean); err != nil {
				return err
			}
			if reportJSON != "" {
				if err := report.WriteWriteReportJSON(reportJSON, rep, secrets); err != nil {
					return err
				}
			}
			if metricsTextfile != "" {
				if err := metrics.WriteTextfile(metricsTextfile); err != nil {
					cfg.Logger.Warn("Failed to write metrics to %s: %v", metricsTextfile, err)
				}
			}

			if execErr != nil {
				if errors.Is(execErr, context.Canceled) || errors.Is(execErr, context.DeadlineExceeded) {
					return dserrors.WithExitCode(dserrors.ExitPartialFailure,
						fmt.Errorf("apply interrupted after %d result(s): %w", len(rep.Results), execErr))
				}
				return execErr
			}
			if rep.Totals.FailedCount > 0 {
				return dserrors.WithExitCode(dserrors.ExitPartialFailure,
					fmt.Errorf("%d write(s) failed", rep.Totals.FailedCount))
			}
			return nil
		},
	}

	defaults := writes.DefaultOptions()
	retry := writes.DefaultRetryPolicy()
	cmd.Flags().StringVar(&planPath, "plan-path", "", "Write plan produced by 'plan --out' (required)")
	cmd.Flags().IntVar(&maxParallelism, "max-parallelism", defaults.MaxParallelism, "Maximum concurrent writes")
	cmd.Flags().IntVar(&retryMax, "retry-max", retry.MaxAttempts, "Maximum attempts per write")
	cmd.Flags().IntVar(&retryBaseDelay, "retry-base-delay", retry.BaseDelaySeconds, "Base retry delay in seconds")
	cmd.Flags().IntVar(&retryMaxDelay, "retry-max-delay", retry.MaxDelaySeconds, "Maximum retry delay in seconds")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Revert failed writes using the plan's rollback actions")
	cmd.Flags().StringVar(&reportJSON, "report-json", "", "Write the apply report as JSON to this path")
	cmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this textfile")
	_ = cmd.MarkFlagRequired("plan-path")

	return cmd
}

// currentRollbackPlan snapshots the settings the plan touches and derives
// their rollback actions.
func currentRollbackPlan(ctx context.Context, def *config.Definition, store configstore.Store, plan *writes.WritePlan) (*writes.RollbackPlan, error) {
	var labels []string
	for _, a := range plan.Actions {
		if a.Label == "" {
			labels = nil
			break
		}
		labels = append(labels, a.Label)
	}
	snapshot, err := listTarget(ctx, def, store, configstore.Selector{Labels: planning.NormalizeLabels(labels)})
	if err != nil {
		return nil, err
	}
	return writes.BuildRollbackPlan(plan, snapshot), nil
}

func printWriteReport(out io.Writer, rep *writes.WriteReport) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tLABEL\tSTATUS\tATTEMPTS\tDETAIL")
	for _, r := range rep.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.Key, displayLabel(r.Label), r.Status, r.Attempts, r.FailureReason)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	t := rep.Totals
	elapsed := rep.CompletedAt.Sub(rep.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(out, "\nApplied: %d created, %d updated, %d skipped, %d failed in %s\n",
		t.CreateCount, t.UpdateCount, t.SkipCount, t.FailedCount, elapsed)
	return nil
}
