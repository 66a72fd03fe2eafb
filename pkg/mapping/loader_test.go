package mapping

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileYAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "spec.yaml", `
specificationId: spec-1
name: payments
version: "1.2"
defaultBehavior: pass-through
collisionPolicy: keep_last
createdAt: 2026-01-02T03:04:05Z
rules:
  - ruleId: db
    strategyType: Regex
    sourceSelector: ^db-(.+)$
    targetKey: Db:$1
    priority: 10
    transforms:
      - transformType: suffix
        parameters:
          value: .v1
`)

	doc, err := LoadFile(path)
	require.NoError(t, err)

	spec := doc.Specification
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, "spec-1", spec.SpecificationID)
	assert.Equal(t, "payments", spec.Name)
	assert.Equal(t, "1.2", spec.Version)
	assert.Equal(t, PassThrough, spec.DefaultBehavior)
	assert.Equal(t, CollisionKeepLast, spec.CollisionPolicy)
	require.NotNil(t, spec.CreatedAt)
	assert.Equal(t, 2026, spec.CreatedAt.Year())

	require.Len(t, spec.Rules, 1)
	rule := spec.Rules[0]
	assert.Equal(t, StrategyRegex, rule.StrategyType)
	assert.Equal(t, 10, rule.Priority)
	require.Len(t, rule.Transforms, 1)
	assert.Equal(t, TransformSuffix, rule.Transforms[0].TransformType)
	assert.Equal(t, map[string]string{"value": ".v1"}, rule.Transforms[0].Parameters)
}

func TestLoadFileJSONDefaults(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "spec.json", `{
	"name": "n",
	"version": "1",
	"defaultBehavior": "bogus",
	"rules": [{"ruleId": "a", "sourceSelector": "a", "targetKey": "A", "priority": "7"}]
}`)

	doc, err := LoadFile(path)
	require.NoError(t, err)

	spec := doc.Specification
	assert.Len(t, spec.SpecificationID, 32)
	assert.Equal(t, RejectUnmapped, spec.DefaultBehavior)
	assert.Equal(t, CollisionError, spec.CollisionPolicy)
	require.Len(t, spec.Rules, 1)
	assert.Equal(t, StrategyDirect, spec.Rules[0].StrategyType)
	assert.Equal(t, 7, spec.Rules[0].Priority)
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadFile("")
	assert.ErrorIs(t, err, dserrors.ErrInvalidArgument)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "mapping specification not found", cfgErr.Message)

	_, err = LoadFile(writeFile(t, "broken.json", `{"name": `))
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, "invalid specification syntax")

	_, err = LoadFile(writeFile(t, "broken.yaml", "name: [unclosed"))
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseValueKeepsFieldOrder(t *testing.T) {
	t.Parallel()

	v, err := ParseValue([]byte(`{"b": 1, "a": [true, null, "x"], "c": {"z": 1.5}}`))
	require.NoError(t, err)

	require.Equal(t, KindObject, v.Kind)
	require.Len(t, v.Fields, 3)
	assert.Equal(t, "b", v.Fields[0].Name)
	assert.Equal(t, "a", v.Fields[1].Name)

	arr, ok := v.Get("A")
	require.True(t, ok)
	require.Len(t, arr.Items, 3)
	assert.Equal(t, KindBool, arr.Items[0].Kind)
	assert.Equal(t, KindNull, arr.Items[1].Kind)
	s, ok := arr.Items[2].String()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	c, _ := v.Get("c")
	z, _ := c.Get("z")
	assert.Equal(t, KindNumber, z.Kind)
	assert.Equal(t, "1.5", z.Scalar)
}

func TestParseValueYAMLAliases(t *testing.T) {
	t.Parallel()

	v, err := ParseValue([]byte(`
base: &base
  transformType: lower
rules:
  - *base
`))
	require.NoError(t, err)

	rules, _ := v.Get("rules")
	require.Len(t, rules.Items, 1)
	tt, ok := rules.Items[0].Get("transformType")
	require.True(t, ok)
	assert.Equal(t, "lower", tt.Scalar)
}

func TestKeyMapJSONRoundTripKeepsOrder(t *testing.T) {
	t.Parallel()

	m := NewKeyMap()
	m.Set("zeta", "z")
	m.Set("Alpha", "a")
	m.Set("ALPHA", "a2")

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"z","Alpha":"a2"}`, string(data))

	var decoded KeyMap
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m.Entries(), decoded.Entries())

	assert.Error(t, json.Unmarshal([]byte(`["x"]`), &decoded))
}
