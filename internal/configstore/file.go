package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
	"github.com/jejernig/keyvault-to-appconfig/pkg/writes"
)

// FileEntry is one setting in a file store document.
type FileEntry struct {
	Key          string            `json:"key"`
	Label        string            `json:"label"`
	Value        string            `json:"value"`
	ContentType  string            `json:"contentType,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	LastModified *time.Time        `json:"lastModified,omitempty"`
}

type fileDocument struct {
	Entries []FileEntry `json:"entries"`
}

// FileStore keeps settings in a JSON document and rewrites it after every
// change. Keys and labels match case-insensitively.
type FileStore struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	entries []FileEntry
}

// OpenFileStore loads path, starting empty when the file does not exist.
func OpenFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, dserrors.ConfigError{
			Field:      "target.path",
			Message:    "path is required for the file target",
			Suggestion: "Point target.path at a JSON settings document",
		}
	}

	s := &FileStore{path: path, now: time.Now}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, dserrors.UserError{Message: "Failed to read settings document", Details: path, Err: err}
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, dserrors.UserError{
			Message:    "Invalid settings document",
			Details:    err.Error(),
			Suggestion: `Use {"entries": [{"key": ..., "label": ..., "value": ...}]}`,
			Err:        err,
		}
	}
	s.entries = doc.Entries
	return s, nil
}

func (s *FileStore) find(key, label string) int {
	id := planning.IdentityOf(key, label)
	for i, e := range s.entries {
		if planning.IdentityOf(e.Key, e.Label) == id {
			return i
		}
	}
	return -1
}

func (s *FileStore) persist() error {
	sorted := make([]FileEntry, len(s.entries))
	copy(sorted, s.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		return planning.CompareEntries(a.Key, a.Label, "", b.Key, b.Label, "") < 0
	})
	data, err := json.MarshalIndent(fileDocument{Entries: sorted}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, append(data, '\n'), 0o600)
}

// List returns entries matching the key prefix and labels, paged by entry
// offset.
func (s *FileStore) List(ctx context.Context, sel Selector) (*planning.ExistingSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	entries := make([]planning.ExistingEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, planning.ExistingEntry{
			Key:          e.Key,
			Label:        e.Label,
			Value:        e.Value,
			ContentType:  e.ContentType,
			Tags:         cloneTags(e.Tags),
			LastModified: e.LastModified,
		})
	}
	s.mu.Unlock()

	return planning.ApplyScope(&planning.ExistingSnapshot{Entries: entries, RetrievedAt: s.now().UTC()}, planning.Scope{
		KeyPrefix:         sel.KeyPrefix,
		Labels:            sel.Labels,
		PageSize:          sel.PageSize,
		ContinuationToken: sel.ContinuationToken,
	})
}

// GetTags returns the tags of an entry, nil when it does not exist.
func (s *FileStore) GetTags(ctx context.Context, key, label string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(key, label); i >= 0 {
		return cloneTags(s.entries[i].Tags), nil
	}
	return nil, nil
}

// Upsert creates or replaces an entry and saves the document.
func (s *FileStore) Upsert(ctx context.Context, setting writes.Setting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := s.now().UTC()
	entry := FileEntry{
		Key:          setting.Key,
		Label:        setting.Label,
		Value:        setting.Value,
		ContentType:  setting.ContentType,
		Tags:         cloneTags(setting.Tags),
		LastModified: &now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(setting.Key, setting.Label); i >= 0 {
		s.entries[i] = entry
	} else {
		s.entries = append(s.entries, entry)
	}
	return s.persist()
}

// Delete removes an entry and saves the document. Deleting a missing entry
// is not an error.
func (s *FileStore) Delete(ctx context.Context, key, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(key, label)
	if i < 0 {
		return nil
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return s.persist()
}
