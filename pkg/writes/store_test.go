package writes

import (
	"context"
	"errors"
	"sync"

	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
)

// memStore is an in-memory Store with injectable failures.
type memStore struct {
	mu       sync.Mutex
	settings map[planning.Identity]Setting
	upserts  int
	deletes  int

	failUpsert  func(Setting) error
	failGetTags bool
}

func newMemStore(seed ...Setting) *memStore {
	s := &memStore{settings: make(map[planning.Identity]Setting)}
	for _, setting := range seed {
		s.settings[planning.IdentityOf(setting.Key, setting.Label)] = setting
	}
	return s
}

func (s *memStore) GetTags(_ context.Context, key, label string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGetTags {
		return nil, errors.New("tags unavailable")
	}
	setting, ok := s.settings[planning.IdentityOf(key, label)]
	if !ok {
		return nil, nil
	}
	tags := make(map[string]string, len(setting.Tags))
	for k, v := range setting.Tags {
		tags[k] = v
	}
	return tags, nil
}

func (s *memStore) Upsert(_ context.Context, setting Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.failUpsert != nil {
		if err := s.failUpsert(setting); err != nil {
			return err
		}
	}
	s.settings[planning.IdentityOf(setting.Key, setting.Label)] = setting
	return nil
}

func (s *memStore) Delete(_ context.Context, key, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.settings, planning.IdentityOf(key, label))
	return nil
}

func (s *memStore) get(key, label string) (Setting, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setting, ok := s.settings[planning.IdentityOf(key, label)]
	return setting, ok
}

// blockingStore parks every Upsert until the context is cancelled.
type blockingStore struct {
	started chan struct{}
	once    sync.Once
}

func (s *blockingStore) GetTags(context.Context, string, string) (map[string]string, error) {
	return nil, nil
}

func (s *blockingStore) Upsert(ctx context.Context, _ Setting) error {
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingStore) Delete(context.Context, string, string) error {
	return nil
}
