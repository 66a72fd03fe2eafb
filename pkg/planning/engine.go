package planning

import (
	"context"
	"sort"
	"time"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// ConflictRecord is a (key, label) that desired entries disagree on.
type ConflictRecord struct {
	Key               string   `json:"key"`
	Label             string   `json:"label"`
	ConflictingValues []string `json:"conflictingValues"`
	ResolutionStatus  string   `json:"resolutionStatus"`
}

// PlanTotals counts diff classifications and conflicts.
type PlanTotals struct {
	CreateCount    int `json:"createCount"`
	UpdateCount    int `json:"updateCount"`
	UnchangedCount int `json:"unchangedCount"`
	ConflictCount  int `json:"conflictCount"`
}

// HasChanges reports whether applying the plan would write anything.
func (t PlanTotals) HasChanges() bool {
	return t.CreateCount > 0 || t.UpdateCount > 0
}

// PlanOutput is the result of planning.
type PlanOutput struct {
	DiffItems   []DiffItem       `json:"diffItems"`
	Conflicts   []ConflictRecord `json:"conflicts"`
	Totals      PlanTotals       `json:"totals"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// Engine compares desired state with an existing snapshot. It has no side
// effects.
type Engine struct {
	now func() time.Time
}

// NewEngine returns a planning engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Plan detects conflicts among desired entries and classifies the rest.
func (e *Engine) Plan(ctx context.Context, desired *DesiredState, existing *ExistingSnapshot) (*PlanOutput, error) {
	if desired == nil {
		return nil, dserrors.InvalidArgument("desired state")
	}
	if existing == nil {
		return nil, dserrors.InvalidArgument("existing state")
	}

	ordered := make([]DesiredEntry, len(desired.Entries))
	copy(ordered, desired.Entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return CompareEntries(ordered[i].Key, ordered[i].Label, ordered[i].Value,
			ordered[j].Key, ordered[j].Label, ordered[j].Value) < 0
	})

	conflicts, conflicted := findConflicts(ordered)
	lookup := existingLookup(existing.Entries)

	out := &PlanOutput{
		DiffItems: []DiffItem{},
		Conflicts: conflicts,
	}

	emitted := make(map[Identity]bool)
	for _, entry := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := IdentityOf(entry.Key, entry.Label)
		if conflicted[id] || emitted[id] {
			continue
		}
		emitted[id] = true

		var match *ExistingEntry
		if found, ok := lookup[id]; ok {
			match = &found
		}
		item := Classify(entry, match)
		out.DiffItems = append(out.DiffItems, item)

		switch item.Classification {
		case Create:
			out.Totals.CreateCount++
		case Update:
			out.Totals.UpdateCount++
		case Unchanged:
			out.Totals.UnchangedCount++
		}
	}

	out.Totals.ConflictCount = len(conflicts)
	out.GeneratedAt = e.now().UTC()
	return out, nil
}

// findConflicts groups entries by identity. A group holding more than one
// distinct value is a conflict. Entries must already be sorted.
func findConflicts(ordered []DesiredEntry) ([]ConflictRecord, map[Identity]bool) {
	type group struct {
		first  DesiredEntry
		values map[string]bool
	}
	groups := make(map[Identity]*group)
	var order []Identity

	for _, entry := range ordered {
		id := IdentityOf(entry.Key, entry.Label)
		g, ok := groups[id]
		if !ok {
			g = &group{first: entry, values: make(map[string]bool)}
			groups[id] = g
			order = append(order, id)
		}
		g.values[entry.Value] = true
	}

	conflicts := []ConflictRecord{}
	conflicted := make(map[Identity]bool)
	for _, id := range order {
		g := groups[id]
		if len(g.values) < 2 {
			continue
		}
		values := make([]string, 0, len(g.values))
		for v := range g.values {
			values = append(values, v)
		}
		sort.Strings(values)

		conflicted[id] = true
		conflicts = append(conflicts, ConflictRecord{
			Key:               g.first.Key,
			Label:             g.first.Label,
			ConflictingValues: values,
			ResolutionStatus:  "Unresolved",
		})
	}
	return conflicts, conflicted
}

// existingLookup indexes a snapshot by identity. When the snapshot holds
// duplicates the first in sorted order wins.
func existingLookup(entries []ExistingEntry) map[Identity]ExistingEntry {
	ordered := make([]ExistingEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if c := compareFold(ordered[i].Key, ordered[j].Key); c != 0 {
			return c < 0
		}
		return compareFold(ordered[i].Label, ordered[j].Label) < 0
	})

	lookup := make(map[Identity]ExistingEntry, len(ordered))
	for _, e := range ordered {
		id := IdentityOf(e.Key, e.Label)
		if _, ok := lookup[id]; !ok {
			lookup[id] = e
		}
	}
	return lookup
}
