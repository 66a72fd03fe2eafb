package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jejernig/keyvault-to-appconfig/internal/configstore"
	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
	"github.com/jejernig/keyvault-to-appconfig/internal/secretsource"
	"github.com/jejernig/keyvault-to-appconfig/pkg/secretref"
	"github.com/jejernig/keyvault-to-appconfig/pkg/writes"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "kv2appconfig.yaml"

// DefaultTimeoutMs bounds a single source or target call.
const DefaultTimeoutMs = 30000

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Definition     *Definition
}

// Definition represents the kv2appconfig.yaml structure
type Definition struct {
	Version      int            `yaml:"version"`
	Source       EndpointConfig `yaml:"source"`
	Target       EndpointConfig `yaml:"target"`
	Mapping      MappingConfig  `yaml:"mapping"`
	Labels       []string       `yaml:"labels,omitempty"`
	LabelContext LabelConfig    `yaml:"labelContext"`
	Metadata     MetadataConfig `yaml:"metadata"`
	Writes       WritesConfig   `yaml:"writes"`
	SecretMode   SecretConfig   `yaml:"secretMode"`
	Filter       FilterConfig   `yaml:"filter"`
	Metrics      MetricsConfig  `yaml:"metrics"`
}

// EndpointConfig holds a source or target type plus its backend settings
type EndpointConfig struct {
	Type      string                 `yaml:"type"`
	TimeoutMs int                    `yaml:"timeout_ms,omitempty"`
	Config    map[string]interface{} `yaml:",inline"`
}

// MappingConfig locates the mapping specification
type MappingConfig struct {
	SpecPath string `yaml:"spec_path"`
}

// LabelConfig controls labelling of unlabelled entries
type LabelConfig struct {
	EnvironmentLabel         string `yaml:"environment_label"`
	UseEmptyLabelWhenMissing *bool  `yaml:"use_empty_label_when_missing"`
}

// MetadataConfig is stamped onto written settings
type MetadataConfig struct {
	Source string            `yaml:"source"`
	Tags   map[string]string `yaml:"tags"`
}

// WritesConfig tunes the write executor
type WritesConfig struct {
	MaxParallelism int                `yaml:"max_parallelism"`
	Retry          writes.RetryPolicy `yaml:"retry"`
	Rollback       bool               `yaml:"rollback"`
}

// SecretConfig selects reference or copy mode
type SecretConfig struct {
	Mode         string   `yaml:"mode"`
	AllowedKeys  []string `yaml:"allowed_keys"`
	Confirmation string   `yaml:"confirmation"`
}

// FilterConfig narrows secret enumeration
type FilterConfig struct {
	Prefix      string   `yaml:"prefix"`
	Regex       string   `yaml:"regex"`
	Tags        []string `yaml:"tags"`
	EnabledOnly bool     `yaml:"enabled_only"`
}

// MetricsConfig configures the Prometheus textfile written after apply
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Load reads and parses the kv2appconfig.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create kv2appconfig.yaml or pass --config",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.Version != 0 && def.Version != 1 {
		return dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 1' at the top of your kv2appconfig.yaml file",
		}
	}

	def.ApplyDefaults()
	c.Definition = &def
	return nil
}

// LoadOrDefault loads the file when it exists and otherwise starts from
// defaults. An explicitly requested file must exist.
func (c *Config) LoadOrDefault(explicit bool) error {
	if _, err := os.Stat(c.Path); os.IsNotExist(err) && !explicit {
		def := Default()
		c.Definition = def
		return nil
	}
	return c.Load()
}

// Default returns a definition with every default applied.
func Default() *Definition {
	def := &Definition{Version: 1}
	def.ApplyDefaults()
	return def
}

// ApplyDefaults fills unset fields.
func (d *Definition) ApplyDefaults() {
	if d.Writes.MaxParallelism == 0 {
		d.Writes.MaxParallelism = writes.DefaultOptions().MaxParallelism
	}
	retry := writes.DefaultRetryPolicy()
	if d.Writes.Retry.MaxAttempts == 0 {
		d.Writes.Retry.MaxAttempts = retry.MaxAttempts
	}
	if d.Writes.Retry.BaseDelaySeconds == 0 {
		d.Writes.Retry.BaseDelaySeconds = retry.BaseDelaySeconds
	}
	if d.Writes.Retry.MaxDelaySeconds == 0 {
		d.Writes.Retry.MaxDelaySeconds = retry.MaxDelaySeconds
	}
	if d.LabelContext.UseEmptyLabelWhenMissing == nil {
		t := true
		d.LabelContext.UseEmptyLabelWhenMissing = &t
	}
	if d.SecretMode.Mode == "" {
		d.SecretMode.Mode = string(secretref.ModeReference)
	}
	if d.Source.Config == nil {
		d.Source.Config = map[string]interface{}{}
	}
	if d.Target.Config == nil {
		d.Target.Config = map[string]interface{}{}
	}
}

// Timeout returns the per-call timeout in milliseconds
func (e EndpointConfig) Timeout() int {
	if e.TimeoutMs <= 0 {
		return DefaultTimeoutMs
	}
	return e.TimeoutMs
}

// LabelContextValue converts the label settings for the write planner.
func (d *Definition) LabelContextValue() writes.LabelContext {
	lc := writes.DefaultLabelContext()
	lc.EnvironmentLabel = strings.TrimSpace(d.LabelContext.EnvironmentLabel)
	if d.LabelContext.UseEmptyLabelWhenMissing != nil {
		lc.UseEmptyLabelWhenMissing = *d.LabelContext.UseEmptyLabelWhenMissing
	}
	return lc
}

// ManagedMetadata returns the tags to stamp on written settings, nil when
// none are configured.
func (d *Definition) ManagedMetadata() *writes.ManagedMetadata {
	if d.Metadata.Source == "" && len(d.Metadata.Tags) == 0 {
		return nil
	}
	return &writes.ManagedMetadata{Source: d.Metadata.Source, AdditionalTags: d.Metadata.Tags}
}

// WriteOptions converts the writes section for the executor.
func (d *Definition) WriteOptions() writes.Options {
	return writes.Options{
		MaxParallelism: d.Writes.MaxParallelism,
		RetryPolicy:    d.Writes.Retry,
		Rollback:       d.Writes.Rollback,
	}
}

// SourceFilter converts the filter section for enumeration.
func (d *Definition) SourceFilter() (secretsource.Filter, error) {
	tags, err := secretsource.ParseTags(d.Filter.Tags)
	if err != nil {
		return secretsource.Filter{}, dserrors.ConfigError{
			Field:      "filter.tags",
			Message:    err.Error(),
			Suggestion: "Use key=value",
		}
	}
	return secretsource.Filter{
		Prefix:      d.Filter.Prefix,
		Regex:       d.Filter.Regex,
		Tags:        tags,
		EnabledOnly: d.Filter.EnabledOnly,
	}, nil
}

// Guardrail converts the secret mode section. copyFlag is the CLI flag that
// opts in to copying values.
func (d *Definition) Guardrail(copyFlag bool) secretref.Guardrail {
	return secretref.Guardrail{
		FlagProvided: copyFlag,
		Confirmation: d.SecretMode.Confirmation,
		AllowedKeys:  d.SecretMode.AllowedKeys,
	}
}

// Validate checks the definition and returns every problem in field order.
func (d *Definition) Validate() []dserrors.ConfigError {
	var errs []dserrors.ConfigError
	add := func(field string, value interface{}, msg, suggestion string) {
		errs = append(errs, dserrors.ConfigError{Field: field, Value: value, Message: msg, Suggestion: suggestion})
	}

	if d.Source.Type != "" && !secretsource.NewRegistry().Has(d.Source.Type) {
		add("source.type", d.Source.Type, "unknown source type",
			fmt.Sprintf("Available types: %s", strings.Join(secretsource.NewRegistry().Kinds(), ", ")))
	}
	if d.Target.Type != "" && !isTargetType(d.Target.Type) {
		add("target.type", d.Target.Type, "unknown target type", "Available types: azure-appconfig, file")
	}

	if d.Writes.MaxParallelism < 1 {
		add("writes.max_parallelism", d.Writes.MaxParallelism, "must be >= 1", "")
	}
	if d.Writes.Retry.MaxAttempts < 1 {
		add("writes.retry.max_attempts", d.Writes.Retry.MaxAttempts, "must be >= 1", "")
	}
	if d.Writes.Retry.BaseDelaySeconds < 1 {
		add("writes.retry.base_delay_seconds", d.Writes.Retry.BaseDelaySeconds, "must be >= 1", "")
	}
	if d.Writes.Retry.MaxDelaySeconds < 1 {
		add("writes.retry.max_delay_seconds", d.Writes.Retry.MaxDelaySeconds, "must be >= 1", "")
	} else if d.Writes.Retry.MaxDelaySeconds < d.Writes.Retry.BaseDelaySeconds {
		add("writes.retry.max_delay_seconds", d.Writes.Retry.MaxDelaySeconds, "must be >= base_delay_seconds", "")
	}

	mode, err := secretref.ParseMode(d.SecretMode.Mode)
	if err != nil {
		add("secretMode.mode", d.SecretMode.Mode, "unknown secret mode", "Use 'reference' or 'copy'")
	} else if mode == secretref.ModeCopy && len(d.SecretMode.AllowedKeys) == 0 {
		add("secretMode.allowed_keys", nil, "copy mode requires an allow-list",
			"List the secrets whose values may be copied")
	}

	if strings.TrimSpace(d.Filter.Regex) != "" {
		if _, err := regexp.Compile(d.Filter.Regex); err != nil {
			add("filter.regex", d.Filter.Regex, "must be a valid regex", "Use RE2 syntax")
		}
	}
	if _, err := secretsource.ParseTags(d.Filter.Tags); err != nil {
		add("filter.tags", d.Filter.Tags, "must be in key=value format", "")
	}

	return errs
}

func isTargetType(kind string) bool {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(kind)), ".", "-") {
	case configstore.KindAzureAppConfig, "appconfig", configstore.KindFile:
		return true
	}
	return false
}
