package commands

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jejernig/keyvault-to-appconfig/internal/config"
	"github.com/jejernig/keyvault-to-appconfig/internal/configstore"
	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
	"github.com/jejernig/keyvault-to-appconfig/internal/report"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
)

// NewDiffCommand creates the 'diff' command
func NewDiffCommand(cfg *config.Config) *cobra.Command {
	var (
		desiredPath       string
		existingPath      string
		fromTarget        bool
		keyPrefix         string
		labels            []string
		pageSize          int
		continuationToken string
		reportJSON        string
		showValues        bool
		detailedExitCode  bool
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare desired settings with the target store",
		Long: `Diff classifies every desired setting as Create, Update or Unchanged
against an existing state snapshot read from a file (--existing-path) or from
the configured target store (--from-target). Desired entries that disagree on
the value of the same key and label are reported as conflicts and left out.
Values are never printed; --show-values includes them in the JSON report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if existingPath != "" && fromTarget {
				return dserrors.UserError{
					Message:    "--existing-path and --from-target are mutually exclusive",
					Suggestion: "Pick one source of existing state",
				}
			}
			if err := loadDefinition(cmd, cfg); err != nil {
				return err
			}
			def := cfg.Definition

			desired, err := report.ReadDesiredState(desiredPath)
			if err != nil {
				return err
			}

			scope := planning.Scope{
				KeyPrefix:         keyPrefix,
				Labels:            mergedLabels(labels, def),
				PageSize:          pageSize,
				ContinuationToken: continuationToken,
			}

			ctx := cmd.Context()
			var existing *planning.ExistingSnapshot
			if existingPath != "" {
				snapshot, err := report.ReadExistingState(existingPath)
				if err != nil {
					return err
				}
				if existing, err = planning.ApplyScope(snapshot, scope); err != nil {
					return err
				}
			} else {
				store, err := openTarget(ctx, def)
				if err != nil {
					return err
				}
				existing, err = listTarget(ctx, def, store, configstore.Selector(scope))
				if err != nil {
					return err
				}
			}

			output, err := planning.NewEngine().Plan(ctx, desired, existing)
			if err != nil {
				return err
			}

			correlationID := logging.NewCorrelationID()
			cfg.Logger.Event(correlationID, "diff.complete", totalsFields(output.Totals))

			out := cmd.OutOrStdout()
			if err := printDiff(out, output); err != nil {
				return err
			}
			if existing.ContinuationToken != "" {
				fmt.Fprintf(out, "More existing entries available: --continuation-token %s\n", existing.ContinuationToken)
			}

			if reportJSON != "" {
				if err := report.WriteDiffReportJSON(reportJSON, output, correlationID, showValues); err != nil {
					return err
				}
			}

			return changesExitCode(detailedExitCode, output.Totals.CreateCount+output.Totals.UpdateCount)
		},
	}

	cmd.Flags().StringVar(&desiredPath, "desired-path", "", "Desired state JSON document (required)")
	cmd.Flags().StringVar(&existingPath, "existing-path", "", "Existing state JSON snapshot")
	cmd.Flags().BoolVar(&fromTarget, "from-target", false, "Read existing state from the configured target store")
	cmd.Flags().StringVar(&keyPrefix, "key-prefix", "", "Only compare existing keys with this prefix")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "Only compare existing entries with these labels")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Existing entries per page (0 reads everything)")
	cmd.Flags().StringVar(&continuationToken, "continuation-token", "", "Resume existing state listing from this token")
	cmd.Flags().StringVar(&reportJSON, "report-json", "", "Write the diff report as JSON to this path")
	cmd.Flags().BoolVar(&showValues, "show-values", false, "Include values in the JSON report")
	cmd.Flags().BoolVar(&detailedExitCode, "detailed-exitcode", false, "Exit 1 when there are changes")
	_ = cmd.MarkFlagRequired("desired-path")

	return cmd
}

func printDiff(out io.Writer, output *planning.PlanOutput) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tLABEL\tCHANGE\tREASON")
	for _, item := range output.DiffItems {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.Key, displayLabel(item.Label), item.Classification, item.Reason)
	}
	for _, c := range output.Conflicts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d conflicting values\n", c.Key, displayLabel(c.Label), c.ResolutionStatus, len(c.ConflictingValues))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	t := output.Totals
	fmt.Fprintf(out, "\n%d to create, %d to update, %d unchanged, %d conflict(s)\n",
		t.CreateCount, t.UpdateCount, t.UnchangedCount, t.ConflictCount)
	return nil
}

func totalsFields(t planning.PlanTotals) map[string]string {
	return map[string]string{
		"create":    strconv.Itoa(t.CreateCount),
		"update":    strconv.Itoa(t.UpdateCount),
		"unchanged": strconv.Itoa(t.UnchangedCount),
		"conflicts": strconv.Itoa(t.ConflictCount),
	}
}

func displayLabel(label string) string {
	if label == "" {
		return "(none)"
	}
	return label
}
