package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jejernig/keyvault-to-appconfig/internal/config"
	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
	"github.com/jejernig/keyvault-to-appconfig/internal/report"
	"github.com/jejernig/keyvault-to-appconfig/pkg/mapping"
)

// NewMappingCommand creates the parent 'mapping' command
func NewMappingCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Validate and run mapping specifications",
		Long: `A mapping specification turns secret names into configuration keys.

Examples:
  kv2appconfig mapping validate --spec-path mapping.yaml
  kv2appconfig mapping run --spec-path mapping.yaml --source-path secrets.yaml`,
	}

	cmd.AddCommand(
		newMappingValidateCommand(cfg),
		newMappingRunCommand(cfg),
	)

	return cmd
}

func newMappingValidateCommand(cfg *config.Config) *cobra.Command {
	var (
		specPath string
		storeDir string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a mapping specification for errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDefinition(cmd, cfg); err != nil {
				return err
			}

			doc, result, err := loadSpecification(specPath, cfg.Definition)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !result.Valid() {
				return invalidSpecification(out, result)
			}

			spec := doc.Specification
			fmt.Fprintf(out, "Specification %s (version %s) is valid: %d rule(s)\n", spec.Name, spec.Version, len(spec.Rules))

			if storeDir != "" {
				path, err := mapping.NewSpecStore(storeDir).Save(spec)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Saved to %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&specPath, "spec-path", "", "Mapping specification file (JSON or YAML)")
	cmd.Flags().StringVar(&storeDir, "store-dir", "", "Save the validated specification into this directory")

	return cmd
}

func newMappingRunCommand(cfg *config.Config) *cobra.Command {
	var (
		specPath   string
		sourcePath string
		fromSource bool
		reportJSON string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Map secret names to configuration keys",
		Long: `Run applies a mapping specification to secret names read from a local
secrets document (--source-path) or from the configured secret source
(--from-source). Only names are read; secret values are never fetched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourcePath != "" && fromSource {
				return dserrors.UserError{
					Message:    "--source-path and --from-source are mutually exclusive",
					Suggestion: "Pick one source of secret names",
				}
			}
			if err := loadDefinition(cmd, cfg); err != nil {
				return err
			}

			doc, result, err := loadSpecification(specPath, cfg.Definition)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !result.Valid() {
				return invalidSpecification(out, result)
			}

			ctx := cmd.Context()
			src, err := openSource(ctx, cfg.Definition, sourcePath)
			if err != nil {
				return err
			}
			run, _, err := runMapping(ctx, cfg.Definition, doc, src)
			if err != nil {
				return err
			}

			correlationID := logging.NewCorrelationID()
			cfg.Logger.Event(correlationID, "mapping.run", map[string]string{
				"specificationId": run.SpecificationID,
				"status":          string(run.Status),
				"mapped":          fmt.Sprintf("%d", run.NormalizedKeys.Len()),
				"unmapped":        fmt.Sprintf("%d", len(run.Unmapped)),
			})

			printRun(out, run)
			if reportJSON != "" {
				if err := report.WriteMappingRunJSON(reportJSON, run, correlationID); err != nil {
					return err
				}
			}

			if run.Status == mapping.RunFailed {
				return dserrors.WithExitCode(dserrors.ExitPartialFailure, fmt.Errorf("mapping run failed"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&specPath, "spec-path", "", "Mapping specification file (JSON or YAML)")
	cmd.Flags().StringVar(&sourcePath, "source-path", "", "Secrets document to read names from")
	cmd.Flags().BoolVar(&fromSource, "from-source", false, "Read names from the configured secret source")
	cmd.Flags().StringVar(&reportJSON, "report-json", "", "Write the mapping run as JSON to this path")

	return cmd
}
