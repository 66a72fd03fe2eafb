package planning

import (
	"strings"
	"time"
)

// DesiredEntry is one key/label the run wants to exist.
type DesiredEntry struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Value       string `json:"value"`
	ContentType string `json:"contentType,omitempty"`
	SourceID    string `json:"sourceId,omitempty"`
}

// DesiredState is the complete set of desired entries for a run.
type DesiredState struct {
	DesiredStateID string         `json:"desiredStateId,omitempty"`
	Entries        []DesiredEntry `json:"entries"`
	GeneratedAt    time.Time      `json:"generatedAt"`
	GeneratedBy    string         `json:"generatedBy,omitempty"`
	// Excluded lists source names left out by the value resolver.
	Excluded []string `json:"excluded,omitempty"`
}

// ExistingEntry is one setting read from the configuration store.
type ExistingEntry struct {
	Key          string            `json:"key"`
	Label        string            `json:"label"`
	Value        string            `json:"value"`
	ContentType  string            `json:"contentType,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	LastModified *time.Time        `json:"lastModified,omitempty"`
}

// ExistingSnapshot is what the configuration store held when it was read.
type ExistingSnapshot struct {
	SnapshotID        string          `json:"snapshotId,omitempty"`
	Entries           []ExistingEntry `json:"entries"`
	RetrievedAt       time.Time       `json:"retrievedAt"`
	KeyPrefix         string          `json:"keyPrefix,omitempty"`
	Labels            []string        `json:"labels,omitempty"`
	PageSize          int             `json:"pageSize,omitempty"`
	ContinuationToken string          `json:"continuationToken,omitempty"`
}

// Identity is the case-insensitive (key, label) pair used to match entries.
type Identity struct {
	key   string
	label string
}

// IdentityOf folds key and label into an Identity.
func IdentityOf(key, label string) Identity {
	return Identity{key: strings.ToLower(key), label: strings.ToLower(label)}
}

// compareFold orders strings ignoring case, falling back to byte order so
// the result is total.
func compareFold(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// CompareEntries orders entries by key, label, then value.
func CompareEntries(aKey, aLabel, aValue, bKey, bLabel, bValue string) int {
	if c := compareFold(aKey, bKey); c != 0 {
		return c
	}
	if c := compareFold(aLabel, bLabel); c != 0 {
		return c
	}
	return strings.Compare(aValue, bValue)
}
