package planning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	desired := DesiredEntry{Key: "app:db", Label: "prod", Value: "v1", ContentType: "text/plain"}

	tests := []struct {
		name           string
		existing       *ExistingEntry
		classification Classification
		reason         string
	}{
		{
			name:           "missing existing entry",
			existing:       nil,
			classification: Create,
			reason:         "Missing in existing state",
		},
		{
			name:           "same value and content type",
			existing:       &ExistingEntry{Key: "app:db", Label: "prod", Value: "v1", ContentType: "text/plain"},
			classification: Unchanged,
			reason:         "Matches existing state",
		},
		{
			name:           "value differs",
			existing:       &ExistingEntry{Key: "app:db", Label: "prod", Value: "v0", ContentType: "text/plain"},
			classification: Update,
			reason:         "Value differs",
		},
		{
			name:           "content type differs",
			existing:       &ExistingEntry{Key: "app:db", Label: "prod", Value: "v1"},
			classification: Update,
			reason:         "Content type differs",
		},
		{
			name:           "both differ",
			existing:       &ExistingEntry{Key: "app:db", Label: "prod", Value: "v0", ContentType: "application/json"},
			classification: Update,
			reason:         "Value and content type differ",
		},
		{
			name:           "value comparison is case sensitive",
			existing:       &ExistingEntry{Key: "app:db", Label: "prod", Value: "V1", ContentType: "text/plain"},
			classification: Update,
			reason:         "Value differs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			item := Classify(desired, tt.existing)
			assert.Equal(t, tt.classification, item.Classification)
			assert.Equal(t, tt.reason, item.Reason)
			assert.Equal(t, "v1", item.DesiredValue)
			if tt.existing == nil {
				assert.Nil(t, item.ExistingValue)
			} else {
				require.NotNil(t, item.ExistingValue)
				assert.Equal(t, tt.existing.Value, *item.ExistingValue)
			}
		})
	}
}
