package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
	"github.com/jejernig/keyvault-to-appconfig/internal/secretsource"
	"github.com/jejernig/keyvault-to-appconfig/pkg/secretref"
	"github.com/jejernig/keyvault-to-appconfig/pkg/writes"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kv2appconfig.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfig_Load_MissingFile(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: "/nonexistent/path/to/kv2appconfig.yaml", Logger: logging.New(false, false)}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestConfig_Load_InvalidYAML(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: writeConfig(t, "version: 1\nsource:\n  type: file\n  bad syntax here [[[\n")}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML syntax")
}

func TestConfig_Load_UnsupportedVersion(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: writeConfig(t, "version: 7\n")}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported configuration version")
}

func TestConfig_Load_FullDefinition(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: writeConfig(t, `version: 1
source:
  type: azure-keyvault
  vault_url: https://my-vault.vault.azure.net/
  timeout_ms: 5000
target:
  type: azure-appconfig
  endpoint: https://my-store.azconfig.io
mapping:
  spec_path: mapping.yaml
labels: [prod]
labelContext:
  environment_label: prod
  use_empty_label_when_missing: false
metadata:
  source: keyvault
  tags:
    team: core
writes:
  max_parallelism: 8
  retry:
    max_attempts: 5
  rollback: true
secretMode:
  mode: copy
  allowed_keys: [db-password]
  confirmation: I UNDERSTAND
filter:
  prefix: app-
  tags: ["env=prod"]
  enabled_only: true
metrics:
  textfile: /var/lib/node_exporter/kv2appconfig.prom
`)}
	require.NoError(t, cfg.Load())
	def := cfg.Definition

	assert.Equal(t, "azure-keyvault", def.Source.Type)
	assert.Equal(t, "https://my-vault.vault.azure.net/", def.Source.Config["vault_url"])
	assert.Equal(t, 5000, def.Source.Timeout())
	assert.Equal(t, DefaultTimeoutMs, def.Target.Timeout())
	assert.Equal(t, "mapping.yaml", def.Mapping.SpecPath)

	assert.Equal(t, writes.LabelContext{EnvironmentLabel: "prod", UseEmptyLabelWhenMissing: false}, def.LabelContextValue())
	assert.Equal(t, &writes.ManagedMetadata{Source: "keyvault", AdditionalTags: map[string]string{"team": "core"}}, def.ManagedMetadata())
	assert.Equal(t, writes.Options{
		MaxParallelism: 8,
		RetryPolicy:    writes.RetryPolicy{MaxAttempts: 5, BaseDelaySeconds: 1, MaxDelaySeconds: 10},
		Rollback:       true,
	}, def.WriteOptions())

	filter, err := def.SourceFilter()
	require.NoError(t, err)
	assert.Equal(t, secretsource.Filter{Prefix: "app-", Tags: map[string]string{"env": "prod"}, EnabledOnly: true}, filter)

	g := secretref.EvaluateGuardrail(def.Guardrail(true))
	assert.True(t, g.Satisfied)
	assert.Empty(t, def.Validate())
}

func TestDefault(t *testing.T) {
	t.Parallel()

	def := Default()
	assert.Equal(t, 4, def.Writes.MaxParallelism)
	assert.Equal(t, writes.DefaultRetryPolicy(), def.Writes.Retry)
	assert.Equal(t, "reference", def.SecretMode.Mode)
	assert.Equal(t, writes.DefaultLabelContext(), def.LabelContextValue())
	assert.Nil(t, def.ManagedMetadata())
	assert.Empty(t, def.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "kv2appconfig.yaml")

	cfg := &Config{Path: missing}
	require.NoError(t, cfg.LoadOrDefault(false))
	assert.Equal(t, 4, cfg.Definition.Writes.MaxParallelism)

	cfg = &Config{Path: missing}
	assert.Error(t, cfg.LoadOrDefault(true))
}

func TestDefinition_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(d *Definition)
		fields []string
	}{
		{
			name:   "non-positive parallelism",
			mutate: func(d *Definition) { d.Writes.MaxParallelism = -1 },
			fields: []string{"writes.max_parallelism"},
		},
		{
			name: "retry bounds",
			mutate: func(d *Definition) {
				d.Writes.Retry = writes.RetryPolicy{MaxAttempts: -1, BaseDelaySeconds: 5, MaxDelaySeconds: 2}
			},
			fields: []string{"writes.retry.max_attempts", "writes.retry.max_delay_seconds"},
		},
		{
			name:   "unknown source and target",
			mutate: func(d *Definition) { d.Source.Type = "vault"; d.Target.Type = "consul" },
			fields: []string{"source.type", "target.type"},
		},
		{
			name:   "copy mode without allow-list",
			mutate: func(d *Definition) { d.SecretMode.Mode = "copy" },
			fields: []string{"secretMode.allowed_keys"},
		},
		{
			name:   "unknown mode",
			mutate: func(d *Definition) { d.SecretMode.Mode = "mirror" },
			fields: []string{"secretMode.mode"},
		},
		{
			name:   "bad filters",
			mutate: func(d *Definition) { d.Filter.Regex = "("; d.Filter.Tags = []string{"env"} },
			fields: []string{"filter.regex", "filter.tags"},
		},
		{
			name:   "dotted type names",
			mutate: func(d *Definition) { d.Source.Type = "azure.keyvault"; d.Target.Type = "Azure.AppConfig" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			def := Default()
			tt.mutate(def)

			var fields []string
			for _, e := range def.Validate() {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}
