package planning

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/pkg/mapping"
)

// ValueResolver returns the desired value for a source name. Returning false
// leaves the name out of the desired state.
type ValueResolver func(sourceKey string) (string, bool)

// ContentTypeResolver returns the desired content type for a source name.
type ContentTypeResolver func(sourceKey string) string

// Builder assembles desired state.
type Builder struct {
	now func() time.Time
}

// NewBuilder returns a builder using the wall clock.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build sorts entries into a DesiredState.
func (b *Builder) Build(entries []DesiredEntry, generatedBy string) *DesiredState {
	sorted := make([]DesiredEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareEntries(sorted[i].Key, sorted[i].Label, sorted[i].Value,
			sorted[j].Key, sorted[j].Label, sorted[j].Value) < 0
	})

	return &DesiredState{
		DesiredStateID: strings.ReplaceAll(uuid.New().String(), "-", ""),
		Entries:        sorted,
		GeneratedAt:    b.now().UTC(),
		GeneratedBy:    generatedBy,
	}
}

// BuildFromMapping expands every mapping of run into one entry per label.
// With no labels, each mapping yields a single unlabelled entry.
func (b *Builder) BuildFromMapping(
	run *mapping.Run,
	labels []string,
	values ValueResolver,
	contentTypes ContentTypeResolver,
	generatedBy string,
) (*DesiredState, error) {
	if run == nil {
		return nil, dserrors.InvalidArgument("mapping run")
	}
	if values == nil {
		return nil, dserrors.InvalidArgument("value resolver")
	}

	normalized := NormalizeLabels(labels)
	if len(normalized) == 0 {
		normalized = []string{""}
	}

	mappings := run.NormalizedKeys.Entries()
	sort.SliceStable(mappings, func(i, j int) bool {
		if c := compareFold(mappings[i].NormalizedKey, mappings[j].NormalizedKey); c != 0 {
			return c < 0
		}
		return compareFold(mappings[i].SourceKey, mappings[j].SourceKey) < 0
	})

	var entries []DesiredEntry
	var excluded []string
	for _, m := range mappings {
		value, ok := values(m.SourceKey)
		if !ok {
			excluded = append(excluded, m.SourceKey)
			continue
		}
		contentType := ""
		if contentTypes != nil {
			contentType = contentTypes(m.SourceKey)
		}
		for _, label := range normalized {
			entries = append(entries, DesiredEntry{
				Key:         m.NormalizedKey,
				Label:       label,
				Value:       value,
				ContentType: contentType,
				SourceID:    m.SourceKey,
			})
		}
	}

	state := b.Build(entries, generatedBy)
	state.Excluded = excluded
	return state, nil
}

// NormalizeLabels trims labels, drops blanks and case-insensitive
// duplicates, and sorts the result.
func NormalizeLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	var out []string
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[strings.ToLower(l)] {
			continue
		}
		seen[strings.ToLower(l)] = true
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return compareFold(out[i], out[j]) < 0 })
	return out
}
