package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jejernig/keyvault-to-appconfig/internal/config"
	"github.com/jejernig/keyvault-to-appconfig/internal/configstore"
	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
	"github.com/jejernig/keyvault-to-appconfig/internal/report"
	"github.com/jejernig/keyvault-to-appconfig/internal/secretsource"
	"github.com/jejernig/keyvault-to-appconfig/internal/secure"
	"github.com/jejernig/keyvault-to-appconfig/pkg/mapping"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
	"github.com/jejernig/keyvault-to-appconfig/pkg/secretref"
	"github.com/jejernig/keyvault-to-appconfig/pkg/writes"
)

const generatedBy = "kv2appconfig plan"

// NewPlanCommand creates the 'plan' command
func NewPlanCommand(cfg *config.Config) *cobra.Command {
	var (
		specPath         string
		sourcePath       string
		fromSource       bool
		existingPath     string
		fromTarget       bool
		outPath          string
		labels           []string
		envLabel         string
		mode             string
		copyValues       bool
		reportJSON       string
		showValues       bool
		detailedExitCode bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build a write plan from the secret source",
		Long: `Plan maps the source's secret names, builds the desired settings (Key Vault
references by default, copied values only when the copy guardrail is
satisfied), compares them with the existing state and writes an executable
plan, including its rollback actions, to --out.

The plan file holds the values that will be written and is created with
owner-only permissions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourcePath != "" && fromSource {
				return dserrors.UserError{Message: "--source-path and --from-source are mutually exclusive"}
			}
			if existingPath != "" && fromTarget {
				return dserrors.UserError{Message: "--existing-path and --from-target are mutually exclusive"}
			}
			if err := loadDefinition(cmd, cfg); err != nil {
				return err
			}
			def := cfg.Definition
			if cmd.Flags().Changed("mode") {
				def.SecretMode.Mode = mode
			}
			if cmd.Flags().Changed("environment-label") {
				def.LabelContext.EnvironmentLabel = envLabel
			}
			secretMode, err := secretref.ParseMode(def.SecretMode.Mode)
			if err != nil {
				return err
			}

			doc, result, err := loadSpecification(specPath, def)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !result.Valid() {
				return invalidSpecification(out, result)
			}

			ctx := cmd.Context()
			src, err := openSource(ctx, def, sourcePath)
			if err != nil {
				return err
			}
			run, descriptors, err := runMapping(ctx, def, doc, src)
			if err != nil {
				return err
			}
			if run.Status == mapping.RunFailed {
				printRun(out, run)
				return dserrors.WithExitCode(dserrors.ExitPartialFailure,
					fmt.Errorf("mapping run failed; no plan written"))
			}

			values := secure.NewValueCache()
			defer values.Destroy()

			correlationID := logging.NewCorrelationID()
			desired, err := buildDesiredState(ctx, cfg.Logger, desiredInputs{
				source:        src,
				descriptors:   descriptors,
				run:           run,
				mode:          secretMode,
				guardrail:     def.Guardrail(copyValues),
				labels:        mergedLabels(labels, def),
				values:        values,
				correlationID: correlationID,
			})
			if err != nil {
				return err
			}

			lc := def.LabelContextValue()
			existing, err := loadExisting(ctx, cfg, existingPath, desired, lc)
			if err != nil {
				return err
			}

			output, err := planning.NewEngine().Plan(ctx, desired, existing)
			if err != nil {
				return err
			}
			plan, err := writes.NewPlanner().Plan(ctx, desired, existing, lc, def.ManagedMetadata())
			if err != nil {
				return err
			}
			plan.RollbackPlan = writes.BuildRollbackPlan(plan, existing)

			if err := report.WritePlanFile(outPath, plan); err != nil {
				return err
			}
			if reportJSON != "" {
				if err := report.WriteDiffReportJSON(reportJSON, output, correlationID, showValues); err != nil {
					return err
				}
			}

			fields := totalsFields(output.Totals)
			fields["planId"] = plan.PlanID
			fields["mode"] = string(secretMode)
			fields["excluded"] = fmt.Sprintf("%d", len(desired.Excluded))
			cfg.Logger.Event(correlationID, "plan.complete", fields)

			if err := printPlan(out, plan, desired.Excluded); err != nil {
				return err
			}
			fmt.Fprintf(out, "Plan written to %s\n", outPath)

			create, update, _ := plan.Counts()
			return changesExitCode(detailedExitCode, create+update)
		},
	}

	cmd.Flags().StringVar(&specPath, "spec-path", "", "Mapping specification file (JSON or YAML)")
	cmd.Flags().StringVar(&sourcePath, "source-path", "", "Secrets document to plan from instead of the configured source")
	cmd.Flags().BoolVar(&fromSource, "from-source", false, "Plan from the configured secret source")
	cmd.Flags().StringVar(&existingPath, "existing-path", "", "Existing state JSON snapshot")
	cmd.Flags().BoolVar(&fromTarget, "from-target", false, "Read existing state from the configured target store")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the executable plan to this path (required)")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "Labels to write every setting under")
	cmd.Flags().StringVar(&envLabel, "environment-label", "", "Label for entries without one")
	cmd.Flags().StringVar(&mode, "mode", "", "Secret handling mode: reference or copy")
	cmd.Flags().BoolVar(&copyValues, "copy-values", false, "Allow copy mode for allow-listed secrets")
	cmd.Flags().StringVar(&reportJSON, "report-json", "", "Write the diff report as JSON to this path")
	cmd.Flags().BoolVar(&showValues, "show-values", false, "Include values in the JSON report")
	cmd.Flags().BoolVar(&detailedExitCode, "detailed-exitcode", false, "Exit 1 when there are changes")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

type desiredInputs struct {
	source        secretsource.Source
	descriptors   []secretsource.Descriptor
	run           *mapping.Run
	mode          secretref.Mode
	guardrail     secretref.Guardrail
	labels        []string
	values        *secure.ValueCache
	correlationID string
}

// buildDesiredState materializes every mapped secret. Reference mode needs
// a Key Vault secret identifier; copy mode fetches allow-listed values into
// the sealed cache. Anything else lands in DesiredState.Excluded.
func buildDesiredState(ctx context.Context, logger *logging.Logger, in desiredInputs) (*planning.DesiredState, error) {
	mapped := make(map[string]bool, in.run.NormalizedKeys.Len())
	for _, m := range in.run.NormalizedKeys.Entries() {
		mapped[strings.ToLower(m.SourceKey)] = true
	}

	var candidates []secretsource.Descriptor
	for _, d := range in.descriptors {
		if mapped[strings.ToLower(d.Name)] {
			candidates = append(candidates, d)
		}
	}

	if in.mode == secretref.ModeCopy {
		guard := secretref.EvaluateGuardrail(in.guardrail)
		if !guard.Satisfied {
			return nil, dserrors.ConfigError{
				Field:   "secretMode",
				Value:   string(in.mode),
				Message: "copy-value guardrails not satisfied",
				Suggestion: fmt.Sprintf("Pass --copy-values, set secretMode.confirmation to %q and list secretMode.allowed_keys",
					secretref.ConfirmationText),
			}
		}
		for _, d := range candidates {
			if !guard.Allows(d.Name) {
				logger.Debug("Secret %s is not on the copy allow-list", d.Name)
				continue
			}
			v, err := in.source.GetValue(ctx, d.Name, d.Version)
			if err != nil {
				return nil, err
			}
			contentType := v.ContentType
			if contentType == "" {
				contentType = d.ContentType
			}
			if err := in.values.Put(d.Name, v.Value, contentType, v.ID); err != nil {
				return nil, err
			}
		}
	} else {
		uris := make([]string, len(candidates))
		for i, d := range candidates {
			uris[i] = d.ID
		}
		eval, err := secretref.Evaluate(ctx, secretref.Request{
			Mode:          in.mode,
			SecretURIs:    uris,
			Redaction:     secretref.RedactionPolicy{RedactValues: true},
			CorrelationID: in.correlationID,
		})
		if err != nil {
			return nil, err
		}
		for i, item := range eval.Items {
			if item.Outcome != secretref.OutcomeAllowed {
				logger.Warn("Skipping secret %s: %s", candidates[i].Name, item.FailureReason)
				continue
			}
			ref, contentType, err := secretref.Materialize(in.mode, item.OriginalURI, "", "")
			if err != nil {
				return nil, err
			}
			if err := in.values.Put(candidates[i].Name, ref, contentType, item.OriginalURI); err != nil {
				return nil, err
			}
		}
	}

	resolve := func(name string) (string, bool) {
		v, ok, err := in.values.Get(name)
		if err != nil {
			logger.Warn("Secret %s could not be read back: %v", name, err)
			return "", false
		}
		return v, ok
	}
	return planning.NewBuilder().BuildFromMapping(in.run, in.labels, resolve, in.values.ContentType, generatedBy)
}

// loadExisting reads the snapshot the plan is built against: a file, the
// configured target, or nothing when no target is configured.
func loadExisting(ctx context.Context, cfg *config.Config, existingPath string, desired *planning.DesiredState, lc writes.LabelContext) (*planning.ExistingSnapshot, error) {
	if existingPath != "" {
		return report.ReadExistingState(existingPath)
	}
	if !hasTarget(cfg.Definition) {
		cfg.Logger.Warn("No target store configured; planning against an empty store")
		return &planning.ExistingSnapshot{}, nil
	}

	store, err := openTarget(ctx, cfg.Definition)
	if err != nil {
		return nil, err
	}
	// An unlabelled entry needs the unfiltered listing.
	var labels []string
	for _, e := range desired.Entries {
		label := writes.ResolveLabel(e, lc)
		if label == "" {
			labels = nil
			break
		}
		labels = append(labels, label)
	}
	return listTarget(ctx, cfg.Definition, store, configstore.Selector{Labels: planning.NormalizeLabels(labels)})
}

func printPlan(out io.Writer, plan *writes.WritePlan, excluded []string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tLABEL\tACTION\tREASON")
	for _, a := range plan.Actions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Key, displayLabel(a.Label), a.ActionType, a.Reason)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, name := range excluded {
		fmt.Fprintf(out, "excluded: %s\n", name)
	}

	create, update, skip := plan.Counts()
	fmt.Fprintf(out, "\nPlan: %d to create, %d to update, %d to skip\n", create, update, skip)
	return nil
}
