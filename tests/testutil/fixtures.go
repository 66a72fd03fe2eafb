package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/jejernig/keyvault-to-appconfig/internal/secretsource"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
	"github.com/jejernig/keyvault-to-appconfig/pkg/writes"
)

// Fixtures writes input documents into a per-test temporary directory.
//
// Example usage:
//
//	fx := NewFixtures(t)
//	spec := fx.WriteFile("mapping.yaml", specYAML)
//	secrets := fx.WriteSecrets(secretsource.FileSecret{Name: "app-db", ID: fx.KeyVaultID("app-db")})
type Fixtures struct {
	t   *testing.T
	Dir string
}

// NewFixtures creates the fixture directory.
func NewFixtures(t *testing.T) *Fixtures {
	t.Helper()
	return &Fixtures{t: t, Dir: t.TempDir()}
}

// Path returns the absolute path of name inside the fixture directory.
func (f *Fixtures) Path(name string) string {
	return filepath.Join(f.Dir, name)
}

// WriteFile writes raw content and returns its path.
func (f *Fixtures) WriteFile(name, content string) string {
	f.t.Helper()

	path := f.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		f.t.Fatalf("Failed to create fixture directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		f.t.Fatalf("Failed to write fixture %s: %v", name, err)
	}
	return path
}

// WriteJSON encodes v as indented JSON.
func (f *Fixtures) WriteJSON(name string, v interface{}) string {
	f.t.Helper()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		f.t.Fatalf("Failed to encode fixture %s: %v", name, err)
	}
	return f.WriteFile(name, string(data))
}

// WriteConfig writes a kv2appconfig.yaml with the given content.
func (f *Fixtures) WriteConfig(content string) string {
	f.t.Helper()
	return f.WriteFile("kv2appconfig.yaml", content)
}

// WriteSecrets writes a secrets document readable by the file source.
func (f *Fixtures) WriteSecrets(secrets ...secretsource.FileSecret) string {
	f.t.Helper()

	doc := struct {
		Secrets []secretsource.FileSecret `yaml:"secrets"`
	}{Secrets: secrets}
	data, err := yaml.Marshal(doc)
	if err != nil {
		f.t.Fatalf("Failed to encode secrets fixture: %v", err)
	}
	return f.WriteFile("secrets.yaml", string(data))
}

// WriteDesiredState writes a desired state document.
func (f *Fixtures) WriteDesiredState(entries ...planning.DesiredEntry) string {
	f.t.Helper()
	if entries == nil {
		entries = []planning.DesiredEntry{}
	}
	return f.WriteJSON("desired.json", planning.DesiredState{Entries: entries})
}

// WriteExistingState writes an existing state snapshot.
func (f *Fixtures) WriteExistingState(entries ...planning.ExistingEntry) string {
	f.t.Helper()
	if entries == nil {
		entries = []planning.ExistingEntry{}
	}
	return f.WriteJSON("existing.json", planning.ExistingSnapshot{Entries: entries})
}

// WritePlan writes an executable write plan.
func (f *Fixtures) WritePlan(plan *writes.WritePlan) string {
	f.t.Helper()
	if plan.Actions == nil {
		plan.Actions = []writes.WriteAction{}
	}
	return f.WriteJSON("plan.json", plan)
}

// KeyVaultID returns a secret identifier in the test vault.
func (f *Fixtures) KeyVaultID(name string) string {
	return "https://test-vault.vault.azure.net/secrets/" + name
}
