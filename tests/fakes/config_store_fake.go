package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jejernig/keyvault-to-appconfig/internal/configstore"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
	"github.com/jejernig/keyvault-to-appconfig/pkg/writes"
)

// FakeConfigStore is an in-memory configuration store with injectable
// failures.
type FakeConfigStore struct {
	mu       sync.Mutex
	settings map[planning.Identity]writes.Setting
	order    []planning.Identity

	// UpsertErrors maps keys to errors returned by every Upsert of that key
	UpsertErrors map[string]error
	// DeleteErrors maps keys to errors returned by every Delete of that key
	DeleteErrors map[string]error
	// ListErr is returned by List when set
	ListErr error

	UpsertCalls int
	DeleteCalls int
	ListCalls   int
}

var _ configstore.Store = (*FakeConfigStore)(nil)

// NewFakeConfigStore creates an empty store
func NewFakeConfigStore() *FakeConfigStore {
	return &FakeConfigStore{
		settings:     make(map[planning.Identity]writes.Setting),
		UpsertErrors: make(map[string]error),
		DeleteErrors: make(map[string]error),
	}
}

// Seed stores a setting without counting a call
func (f *FakeConfigStore) Seed(setting writes.Setting) *FakeConfigStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(setting)
	return f
}

// FailUpsert makes every Upsert of key fail
func (f *FakeConfigStore) FailUpsert(key string, err error) *FakeConfigStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpsertErrors[key] = err
	return f
}

func (f *FakeConfigStore) put(setting writes.Setting) {
	id := planning.IdentityOf(setting.Key, setting.Label)
	if _, ok := f.settings[id]; !ok {
		f.order = append(f.order, id)
	}
	f.settings[id] = setting
}

// Get returns a stored setting
func (f *FakeConfigStore) Get(key, label string) (writes.Setting, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settings[planning.IdentityOf(key, label)]
	return s, ok
}

// Len returns the number of stored settings
func (f *FakeConfigStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.settings)
}

// List returns every stored setting matching the selector, in insertion order
func (f *FakeConfigStore) List(ctx context.Context, sel configstore.Selector) (*planning.ExistingSnapshot, error) {
	f.mu.Lock()
	f.ListCalls++
	if f.ListErr != nil {
		f.mu.Unlock()
		return nil, f.ListErr
	}
	entries := make([]planning.ExistingEntry, 0, len(f.order))
	for _, id := range f.order {
		s, ok := f.settings[id]
		if !ok {
			continue
		}
		entries = append(entries, planning.ExistingEntry{
			Key: s.Key, Label: s.Label, Value: s.Value, ContentType: s.ContentType, Tags: s.Tags,
		})
	}
	f.mu.Unlock()

	return planning.ApplyScope(&planning.ExistingSnapshot{Entries: entries, RetrievedAt: time.Now().UTC()}, planning.Scope{
		KeyPrefix:         sel.KeyPrefix,
		Labels:            sel.Labels,
		PageSize:          sel.PageSize,
		ContinuationToken: sel.ContinuationToken,
	})
}

// GetTags returns a setting's tags, nil when it does not exist
func (f *FakeConfigStore) GetTags(ctx context.Context, key, label string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := f.Get(key, label)
	if !ok {
		return nil, nil
	}
	return s.Tags, nil
}

// Upsert stores a setting
func (f *FakeConfigStore) Upsert(ctx context.Context, setting writes.Setting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpsertCalls++
	if err, ok := f.UpsertErrors[setting.Key]; ok {
		return err
	}
	f.put(setting)
	return nil
}

// Delete removes a setting
func (f *FakeConfigStore) Delete(ctx context.Context, key, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if err, ok := f.DeleteErrors[key]; ok {
		return err
	}
	id := planning.IdentityOf(key, label)
	if _, ok := f.settings[id]; !ok {
		return fmt.Errorf("setting %s/%s not found", key, label)
	}
	delete(f.settings, id)
	return nil
}
