package writes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
)

func TestResolveLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		label string
		lc    LabelContext
		want  string
	}{
		{"own label wins", "dev", LabelContext{EnvironmentLabel: "prod"}, "dev"},
		{"environment label fills in", "", LabelContext{EnvironmentLabel: "prod"}, "prod"},
		{"blank label uses environment", "  ", LabelContext{EnvironmentLabel: "prod"}, "prod"},
		{"empty when missing", "  ", LabelContext{UseEmptyLabelWhenMissing: true}, ""},
		{"original when not emptied", "  ", LabelContext{}, "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ResolveLabel(planning.DesiredEntry{Key: "k", Label: tt.label}, tt.lc)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyManagedMetadata(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	existing := map[string]string{"ManagedBy": "someone", "team": "core"}

	merged := ApplyManagedMetadata(existing, ManagedMetadata{
		Source:         "kv2appconfig",
		Timestamp:      &ts,
		AdditionalTags: map[string]string{"TEAM": "platform", "env": "prod"},
	})

	assert.Equal(t, map[string]string{
		"ManagedBy": "kv2appconfig",
		"managedAt": "2026-03-01T11:00:00Z",
		"team":      "platform",
		"env":       "prod",
	}, merged)
	assert.Equal(t, "someone", existing["ManagedBy"], "input map must not be modified")
}

func TestApplyManagedMetadataSkipsBlankSource(t *testing.T) {
	t.Parallel()

	merged := ApplyManagedMetadata(nil, ManagedMetadata{Source: "  "})
	assert.Empty(t, merged)
}
