package writes

import (
	"strings"
	"time"

	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
)

// Tag names written by ApplyManagedMetadata.
const (
	TagManagedBy = "managedBy"
	TagManagedAt = "managedAt"
)

// ResolveLabel picks the label an entry is written under: its own label,
// else the environment label, else empty or the original label depending on
// UseEmptyLabelWhenMissing.
func ResolveLabel(entry planning.DesiredEntry, lc LabelContext) string {
	if strings.TrimSpace(entry.Label) != "" {
		return entry.Label
	}
	if strings.TrimSpace(lc.EnvironmentLabel) != "" {
		return lc.EnvironmentLabel
	}
	if lc.UseEmptyLabelWhenMissing {
		return ""
	}
	return entry.Label
}

// ApplyManagedMetadata merges managed tags into a copy of existing. Tag
// names match without regard to case; an existing name keeps its casing.
func ApplyManagedMetadata(existing map[string]string, meta ManagedMetadata) map[string]string {
	merged := make(map[string]string, len(existing)+2+len(meta.AdditionalTags))
	for k, v := range existing {
		setTag(merged, k, v)
	}

	if strings.TrimSpace(meta.Source) != "" {
		setTag(merged, TagManagedBy, meta.Source)
	}
	if meta.Timestamp != nil {
		setTag(merged, TagManagedAt, meta.Timestamp.UTC().Format(time.RFC3339Nano))
	}
	for _, k := range logging.SortedKeys(meta.AdditionalTags) {
		setTag(merged, k, meta.AdditionalTags[k])
	}
	return merged
}

func setTag(tags map[string]string, name, value string) {
	for existing := range tags {
		if strings.EqualFold(existing, name) {
			tags[existing] = value
			return
		}
	}
	tags[name] = value
}
