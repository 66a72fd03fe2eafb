package fakes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jejernig/keyvault-to-appconfig/internal/secretsource"
)

// FakeSecretSource is a Source backed by a slice, paged by offset.
type FakeSecretSource struct {
	mu      sync.Mutex
	name    string
	secrets []secretsource.Descriptor
	values  map[string]string
	failOn  map[string]error

	// PageSize splits listings when the request does not set one
	PageSize int

	ListCalls int
	GetCalls  int
}

var _ secretsource.Source = (*FakeSecretSource)(nil)

// NewFakeSecretSource creates a new fake source
func NewFakeSecretSource(name string) *FakeSecretSource {
	return &FakeSecretSource{
		name:   name,
		values: make(map[string]string),
		failOn: make(map[string]error),
	}
}

// WithSecret adds an enabled secret with a value
func (f *FakeSecretSource) WithSecret(name, version, value string) *FakeSecretSource {
	return f.WithDescriptor(secretsource.Descriptor{Name: name, Version: version, Enabled: true}, value)
}

// WithDescriptor adds a secret with full metadata
func (f *FakeSecretSource) WithDescriptor(d secretsource.Descriptor, value string) *FakeSecretSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets = append(f.secrets, d)
	f.values[strings.ToLower(d.Name)] = value
	return f
}

// WithError makes GetValue fail for name
func (f *FakeSecretSource) WithError(name string, err error) *FakeSecretSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[strings.ToLower(name)] = err
	return f
}

// Name returns the source name
func (f *FakeSecretSource) Name() string { return f.name }

// List pages through the secrets in insertion order
func (f *FakeSecretSource) List(ctx context.Context, _ secretsource.Filter, req secretsource.PageRequest) (secretsource.Page, error) {
	if err := ctx.Err(); err != nil {
		return secretsource.Page{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++

	start := 0
	if req.ContinuationToken != "" {
		n, err := strconv.Atoi(req.ContinuationToken)
		if err != nil || n < 0 || n > len(f.secrets) {
			return secretsource.Page{}, fmt.Errorf("invalid continuation token %q", req.ContinuationToken)
		}
		start = n
	}
	size := req.PageSize
	if size <= 0 {
		size = f.PageSize
	}
	end := len(f.secrets)
	if size > 0 && start+size < end {
		end = start + size
	}

	page := secretsource.Page{Items: append([]secretsource.Descriptor(nil), f.secrets[start:end]...)}
	if end < len(f.secrets) {
		page.ContinuationToken = strconv.Itoa(end)
	}
	return page, nil
}

// GetValue returns the stored value
func (f *FakeSecretSource) GetValue(ctx context.Context, name, version string) (secretsource.Value, error) {
	if err := ctx.Err(); err != nil {
		return secretsource.Value{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++

	if err, ok := f.failOn[strings.ToLower(name)]; ok {
		return secretsource.Value{}, err
	}
	v, ok := f.values[strings.ToLower(name)]
	if !ok {
		return secretsource.Value{}, fmt.Errorf("secret not found: %s", name)
	}
	return secretsource.Value{Value: v, ID: fmt.Sprintf("%s/%s/%s", f.name, name, version)}, nil
}
