package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jejernig/keyvault-to-appconfig/internal/config"
	"github.com/jejernig/keyvault-to-appconfig/internal/secretsource"
)

// NewSecretsCommand creates the parent 'secrets' command
func NewSecretsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Inspect the secret source",
	}

	cmd.AddCommand(newSecretsListCommand(cfg))

	return cmd
}

func newSecretsListCommand(cfg *config.Config) *cobra.Command {
	var (
		sourcePath  string
		prefix      string
		regex       string
		tags        []string
		enabledOnly bool
		outputJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List secret names (no values shown)",
		Long: `List enumerates the configured secret source, applies the name, tag and
enabled filters and prints the matching secrets ordered by name and version.
Flags override the filter section of the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDefinition(cmd, cfg); err != nil {
				return err
			}
			def := cfg.Definition

			filter, err := def.SourceFilter()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("prefix") {
				filter.Prefix = prefix
			}
			if cmd.Flags().Changed("regex") {
				filter.Regex = regex
			}
			if cmd.Flags().Changed("tag") {
				parsed, err := secretsource.ParseTags(tags)
				if err != nil {
					return err
				}
				filter.Tags = parsed
			}
			if cmd.Flags().Changed("enabled-only") {
				filter.EnabledOnly = enabledOnly
			}

			ctx := cmd.Context()
			src, err := openSource(ctx, def, sourcePath)
			if err != nil {
				return err
			}
			cfg.Logger.Debug("Listing secrets from %s", src.Name())

			items, err := enumerateSource(ctx, def, src, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				if items == nil {
					items = []secretsource.Descriptor{}
				}
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(items)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tENABLED")
			for _, d := range items {
				fmt.Fprintf(w, "%s\t%s\t%t\n", d.Name, d.Version, d.Enabled)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nTotal secrets: %d\n", len(items))
			return nil
		},
	}

	cmd.Flags().StringVar(&sourcePath, "source-path", "", "Secrets document to list instead of the configured source")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only names starting with this prefix (any case)")
	cmd.Flags().StringVar(&regex, "regex", "", "Only names matching this regex (any case)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Only secrets carrying this key=value tag (repeatable)")
	cmd.Flags().BoolVar(&enabledOnly, "enabled-only", false, "Skip disabled secrets")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")

	return cmd
}
