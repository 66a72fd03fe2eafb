package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jejernig/keyvault-to-appconfig/internal/config"
	"github.com/jejernig/keyvault-to-appconfig/internal/configstore"
	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/internal/secretsource"
)

// NewDoctorCommand creates the 'doctor' command
func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check source, target and mapping configuration",
		Long: `Verify that kv2appconfig is ready to run.

This command checks:
- Configuration file validity
- The mapping specification named by mapping.spec_path
- Secret source authentication and connectivity
- Target store authentication and connectivity

Each endpoint is probed with a single one-item listing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDefinition(cmd, cfg); err != nil {
				return err
			}
			def := cfg.Definition
			cfg.Logger.Info("Configuration %s loaded", cfg.Path)

			ctx := cmd.Context()
			results := []CheckResult{
				checkMapping(def),
				checkSource(ctx, def),
				checkTarget(ctx, def),
			}

			out := cmd.OutOrStdout()
			if err := displayCheckResults(out, results, verbose); err != nil {
				return err
			}

			healthy, failed := 0, 0
			for _, r := range results {
				switch r.Status {
				case statusHealthy:
					healthy++
				case statusError:
					failed++
				}
			}
			fmt.Fprintf(out, "\nSummary: %d/%d checks healthy\n", healthy, len(results))
			if failed > 0 {
				return dserrors.WithExitCode(dserrors.ExitFatal, fmt.Errorf("%d check(s) failed", failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failed checks")

	return cmd
}

const (
	statusHealthy = "healthy"
	statusError   = "error"
	statusSkipped = "skipped"
)

// CheckResult is the outcome of one doctor check.
type CheckResult struct {
	Name        string
	Type        string
	Status      string
	Message     string
	Suggestions []string
}

func checkMapping(def *config.Definition) CheckResult {
	res := CheckResult{Name: "mapping", Type: "specification"}
	if strings.TrimSpace(def.Mapping.SpecPath) == "" {
		res.Status = statusSkipped
		res.Message = "mapping.spec_path not set"
		return res
	}

	_, result, err := loadSpecification(def.Mapping.SpecPath, def)
	switch {
	case err != nil:
		res.Status = statusError
		res.Message = firstLine(err.Error())
		res.Suggestions = []string{"Check mapping.spec_path points at a JSON or YAML file"}
	case !result.Valid():
		res.Status = statusError
		res.Message = fmt.Sprintf("%d validation error(s)", len(result.Errors))
		for _, e := range result.Errors {
			res.Suggestions = append(res.Suggestions, e.String())
		}
	default:
		res.Status = statusHealthy
		res.Message = "Specification is valid"
	}
	return res
}

func checkSource(ctx context.Context, def *config.Definition) CheckResult {
	res := CheckResult{Name: "source", Type: def.Source.Type}
	if strings.TrimSpace(def.Source.Type) == "" {
		res.Status = statusSkipped
		res.Message = "source.type not set"
		return res
	}

	src, err := openSource(ctx, def, "")
	if err == nil {
		ctx, cancel := context.WithTimeout(ctx, time.Duration(def.Source.Timeout())*time.Millisecond)
		_, err = src.List(ctx, secretsource.Filter{}, secretsource.PageRequest{PageSize: 1})
		cancel()
	}
	if err != nil {
		res.Status = statusError
		res.Message = firstLine(err.Error())
		res.Suggestions = suggestionsFor(def.Source.Type, err)
		return res
	}
	res.Status = statusHealthy
	res.Message = "Source is reachable"
	return res
}

func checkTarget(ctx context.Context, def *config.Definition) CheckResult {
	res := CheckResult{Name: "target", Type: def.Target.Type}
	if !hasTarget(def) {
		res.Status = statusSkipped
		res.Message = "target.type not set"
		return res
	}

	store, err := openTarget(ctx, def)
	if err == nil {
		_, err = listTarget(ctx, def, store, configstore.Selector{PageSize: 1})
	}
	if err != nil {
		res.Status = statusError
		res.Message = firstLine(err.Error())
		res.Suggestions = suggestionsFor(def.Target.Type, err)
		return res
	}
	res.Status = statusHealthy
	res.Message = "Target is reachable"
	return res
}

func displayCheckResults(out io.Writer, results []CheckResult, verbose bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tTYPE\tSTATUS\tMESSAGE")
	for _, r := range results {
		kind := r.Type
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, kind, r.Status, r.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !verbose {
		return nil
	}
	for _, r := range results {
		if r.Status != statusError || len(r.Suggestions) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s suggestions:\n", r.Name)
		for _, s := range r.Suggestions {
			fmt.Fprintf(out, "  - %s\n", s)
		}
	}
	return nil
}

// suggestionsFor returns hints for a failed source or target check.
func suggestionsFor(kind string, err error) []string {
	msg := strings.ToLower(err.Error())
	var suggestions []string

	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(kind)), ".", "-") {
	case secretsource.KindAzureKeyVault, configstore.KindAzureAppConfig, "appconfig":
		suggestions = append(suggestions, "Sign in with 'az login' or set AZURE_CLIENT_ID, AZURE_TENANT_ID and AZURE_CLIENT_SECRET")
		if strings.Contains(msg, "403") || strings.Contains(msg, "forbidden") {
			suggestions = append(suggestions, "Grant the principal list and read access on the resource")
		}
	case secretsource.KindAWSSecretsManager:
		suggestions = append(suggestions, "Configure AWS credentials via CLI, env vars, or IAM roles")
		if strings.Contains(msg, "region") {
			suggestions = append(suggestions, "Set AWS_REGION or source.region")
		}
	case secretsource.KindGCPSecretManager:
		suggestions = append(suggestions, "Run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS")
	case secretsource.KindFile:
		suggestions = append(suggestions, "Check the path setting points at a readable document")
	default:
		suggestions = append(suggestions, "Verify the configuration in kv2appconfig.yaml")
	}
	return suggestions
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
