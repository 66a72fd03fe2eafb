package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jejernig/keyvault-to-appconfig/internal/config"
	"github.com/jejernig/keyvault-to-appconfig/internal/configstore"
	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
	"github.com/jejernig/keyvault-to-appconfig/internal/secretsource"
	"github.com/jejernig/keyvault-to-appconfig/pkg/mapping"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
)

// loadDefinition reads --config. A missing default file falls back to
// built-in defaults; a file named explicitly must exist. Every validation
// problem is logged before the command fails.
func loadDefinition(cmd *cobra.Command, cfg *config.Config) error {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Path == "" {
		cfg.Path = config.DefaultPath
	}
	if err := cfg.LoadOrDefault(cmd.Flags().Changed("config")); err != nil {
		return err
	}

	problems := cfg.Definition.Validate()
	if len(problems) == 0 {
		return nil
	}
	for _, p := range problems {
		cfg.Logger.Error("%s", p.Error())
	}
	return dserrors.WithExitCode(dserrors.ExitFatal,
		fmt.Errorf("configuration %s has %d problem(s)", cfg.Path, len(problems)))
}

// openSource returns the file source at sourcePath when given, otherwise
// the source configured in the definition.
func openSource(ctx context.Context, def *config.Definition, sourcePath string) (secretsource.Source, error) {
	if strings.TrimSpace(sourcePath) != "" {
		return secretsource.LoadFileSource(sourcePath)
	}
	if strings.TrimSpace(def.Source.Type) == "" {
		return nil, dserrors.ConfigError{
			Field:      "source.type",
			Message:    "no secret source configured",
			Suggestion: "Set source.type in kv2appconfig.yaml or pass --source-path",
		}
	}
	return secretsource.NewRegistry().Create(ctx, def.Source.Type, def.Source.Config)
}

// openTarget returns the configured target store.
func openTarget(ctx context.Context, def *config.Definition) (configstore.Store, error) {
	if strings.TrimSpace(def.Target.Type) == "" {
		return nil, dserrors.ConfigError{
			Field:      "target.type",
			Message:    "no target store configured",
			Suggestion: "Set target.type in kv2appconfig.yaml",
		}
	}
	return configstore.New(ctx, def.Target.Type, def.Target.Config)
}

func hasTarget(def *config.Definition) bool {
	return strings.TrimSpace(def.Target.Type) != ""
}

func enumerateSource(ctx context.Context, def *config.Definition, src secretsource.Source, filter secretsource.Filter) ([]secretsource.Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(def.Source.Timeout())*time.Millisecond)
	defer cancel()
	return secretsource.NewEnumerator().Enumerate(ctx, src, filter, secretsource.VersionSelection{}, secretsource.PageRequest{})
}

func listTarget(ctx context.Context, def *config.Definition, store configstore.Store, sel configstore.Selector) (*planning.ExistingSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(def.Target.Timeout())*time.Millisecond)
	defer cancel()
	return store.List(ctx, sel)
}

// loadSpecification reads and validates the mapping specification. Callers
// print the validation result; only unreadable files are errors.
func loadSpecification(specPath string, def *config.Definition) (*mapping.Document, mapping.ValidationResult, error) {
	if strings.TrimSpace(specPath) == "" {
		specPath = def.Mapping.SpecPath
	}
	if strings.TrimSpace(specPath) == "" {
		return nil, mapping.ValidationResult{}, dserrors.ConfigError{
			Field:      "mapping.spec_path",
			Message:    "no mapping specification given",
			Suggestion: "Pass --spec-path or set mapping.spec_path",
		}
	}
	doc, err := mapping.LoadFile(specPath)
	if err != nil {
		return nil, mapping.ValidationResult{}, err
	}
	return doc, mapping.NewValidator(nil, nil).Validate(doc.Root), nil
}

// invalidSpecification prints every validation error and returns the
// exit error for an invalid specification.
func invalidSpecification(w io.Writer, result mapping.ValidationResult) error {
	for _, e := range result.Errors {
		fmt.Fprintln(w, e.String())
	}
	return dserrors.WithExitCode(dserrors.ExitFatal,
		fmt.Errorf("mapping specification has %d error(s)", len(result.Errors)))
}

// runMapping enumerates the source and maps every secret name.
func runMapping(ctx context.Context, def *config.Definition, doc *mapping.Document, src secretsource.Source) (*mapping.Run, []secretsource.Descriptor, error) {
	filter, err := def.SourceFilter()
	if err != nil {
		return nil, nil, err
	}
	descriptors, err := enumerateSource(ctx, def, src, filter)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	run, err := mapping.NewEngine().Run(ctx, doc.Specification, names)
	if err != nil {
		return nil, nil, err
	}
	return run, descriptors, nil
}

// printRun writes one line per mapping, unmapped name and collision.
func printRun(w io.Writer, run *mapping.Run) {
	for _, m := range run.NormalizedKeys.Entries() {
		fmt.Fprintf(w, "%s <= %s\n", m.NormalizedKey, m.SourceKey)
	}
	for _, name := range run.Unmapped {
		fmt.Fprintf(w, "unmapped: %s\n", name)
	}
	if run.CollisionReport != nil {
		for _, c := range run.CollisionReport.Entries {
			fmt.Fprintf(w, "collision: %s <= %s (%s)\n", c.NormalizedKey, strings.Join(c.SourceKeys, ", "), c.AppliedPolicy)
		}
	}
}

// mergedLabels returns the flag labels when given, otherwise the configured
// ones.
func mergedLabels(flagLabels []string, def *config.Definition) []string {
	if len(flagLabels) > 0 {
		return planning.NormalizeLabels(flagLabels)
	}
	return planning.NormalizeLabels(def.Labels)
}

// changesExitCode returns ExitChanges when detailed exit codes are
// requested and anything would be written.
func changesExitCode(detailed bool, changes int) error {
	if detailed && changes > 0 {
		return dserrors.ExitError{Code: dserrors.ExitChanges}
	}
	return nil
}
