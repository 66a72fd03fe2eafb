package planning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jejernig/keyvault-to-appconfig/pkg/mapping"
)

func TestNormalizeLabels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"dev", "Prod"}, NormalizeLabels([]string{" Prod ", "", "dev", "prod", "  "}))
	assert.Empty(t, NormalizeLabels(nil))
}

func TestBuildFromMapping(t *testing.T) {
	t.Parallel()

	keys := mapping.NewKeyMap()
	keys.Set("b:key", "b-secret")
	keys.Set("a:key", "a-secret")
	keys.Set("c:key", "c-secret")
	run := &mapping.Run{NormalizedKeys: keys}

	values := func(source string) (string, bool) {
		if source == "c-secret" {
			return "", false
		}
		return "value-of-" + source, true
	}
	contentTypes := func(source string) string { return "text/plain" }

	state, err := NewBuilder().BuildFromMapping(run, []string{"prod", "dev", "PROD"}, values, contentTypes, "test")
	require.NoError(t, err)

	require.Len(t, state.Entries, 4)
	assert.Equal(t, DesiredEntry{Key: "a:key", Label: "dev", Value: "value-of-a-secret", ContentType: "text/plain", SourceID: "a-secret"}, state.Entries[0])
	assert.Equal(t, "prod", state.Entries[1].Label)
	assert.Equal(t, "b:key", state.Entries[2].Key)
	assert.Equal(t, []string{"c-secret"}, state.Excluded)
	assert.Equal(t, "test", state.GeneratedBy)
	assert.NotEmpty(t, state.DesiredStateID)
}

func TestBuildFromMappingWithoutLabels(t *testing.T) {
	t.Parallel()

	keys := mapping.NewKeyMap()
	keys.Set("k", "s")

	state, err := NewBuilder().BuildFromMapping(&mapping.Run{NormalizedKeys: keys}, nil,
		func(string) (string, bool) { return "v", true }, nil, "")
	require.NoError(t, err)

	require.Len(t, state.Entries, 1)
	assert.Equal(t, "", state.Entries[0].Label)
	assert.Equal(t, "", state.Entries[0].ContentType)
}

func TestBuildFromMappingRejectsNil(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder().BuildFromMapping(nil, nil, func(string) (string, bool) { return "", true }, nil, "")
	assert.Error(t, err)

	_, err = NewBuilder().BuildFromMapping(&mapping.Run{NormalizedKeys: mapping.NewKeyMap()}, nil, nil, nil, "")
	assert.Error(t, err)
}
