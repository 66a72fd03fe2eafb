package mapping

import "strings"

// CollisionReporter accumulates collisions in the order they were first seen.
type CollisionReporter struct {
	entries []*CollisionEntry
	index   map[string]int
}

// NewCollisionReporter returns an empty reporter.
func NewCollisionReporter() *CollisionReporter {
	return &CollisionReporter{index: make(map[string]int)}
}

// Register records that newSource produced a key already held by
// existingSource.
func (r *CollisionReporter) Register(normalizedKey, existingSource, newSource string, policy CollisionPolicy) {
	folded := strings.ToLower(normalizedKey)
	i, ok := r.index[folded]
	if !ok {
		r.index[folded] = len(r.entries)
		r.entries = append(r.entries, &CollisionEntry{
			NormalizedKey: normalizedKey,
			SourceKeys:    []string{existingSource, newSource},
			AppliedPolicy: policy,
		})
		return
	}

	entry := r.entries[i]
	if !containsFold(entry.SourceKeys, newSource) {
		entry.SourceKeys = append(entry.SourceKeys, newSource)
	}
	entry.AppliedPolicy = policy
}

// Report returns the collisions, or nil when none were registered.
func (r *CollisionReporter) Report() *CollisionReport {
	if len(r.entries) == 0 {
		return nil
	}
	report := &CollisionReport{Entries: make([]CollisionEntry, 0, len(r.entries))}
	for _, e := range r.entries {
		entry := *e
		entry.SourceKeys = append([]string(nil), e.SourceKeys...)
		report.Entries = append(report.Entries, entry)
	}
	return report
}
