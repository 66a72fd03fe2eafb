// Package secretsource enumerates secrets from a secret store and reads
// their values.
package secretsource

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Descriptor describes one secret without its value.
type Descriptor struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Enabled     bool              `json:"enabled"`
	Tags        map[string]string `json:"tags,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	ID          string            `json:"id,omitempty"`
	Updated     time.Time         `json:"updated,omitempty"`
}

// Value is a fetched secret value.
type Value struct {
	Value       string
	ContentType string
	ID          string
}

// PageRequest asks for one page of descriptors.
type PageRequest struct {
	PageSize          int
	ContinuationToken string
}

// Page is one page of descriptors. An empty ContinuationToken means the
// listing is complete.
type Page struct {
	Items             []Descriptor
	ContinuationToken string
}

// Source is a secret store. List may ignore parts of the filter; Enumerate
// applies it in full.
type Source interface {
	Name() string
	List(ctx context.Context, filter Filter, page PageRequest) (Page, error)
	GetValue(ctx context.Context, name, version string) (Value, error)
}

// SortDescriptors orders by name then version, ignoring case.
func SortDescriptors(items []Descriptor) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := strings.ToLower(items[i].Name), strings.ToLower(items[j].Name)
		if a != b {
			return a < b
		}
		return strings.ToLower(items[i].Version) < strings.ToLower(items[j].Version)
	})
}
