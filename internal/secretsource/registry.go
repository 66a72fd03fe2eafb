package secretsource

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Factory creates a Source from its configuration block.
type Factory func(ctx context.Context, configMap map[string]interface{}) (Source, error)

// Registry maps source type names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in sources.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register(KindAzureKeyVault, func(_ context.Context, m map[string]interface{}) (Source, error) {
		return NewAzureKeyVaultSource(m)
	})
	r.Register(KindAWSSecretsManager, func(ctx context.Context, m map[string]interface{}) (Source, error) {
		return NewAWSSecretsManagerSource(ctx, m)
	})
	r.Register(KindGCPSecretManager, func(ctx context.Context, m map[string]interface{}) (Source, error) {
		return NewGCPSecretManagerSource(ctx, m)
	})
	r.Register(KindFile, func(_ context.Context, m map[string]interface{}) (Source, error) {
		return NewFileSource(m)
	})
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(kind string, factory Factory) {
	r.factories[normalizeKind(kind)] = factory
}

// Create builds a source of the given type. Dots and dashes are
// interchangeable in type names.
func (r *Registry) Create(ctx context.Context, kind string, configMap map[string]interface{}) (Source, error) {
	factory, ok := r.factories[normalizeKind(kind)]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %s", kind)
	}
	if configMap == nil {
		configMap = map[string]interface{}{}
	}
	return factory(ctx, configMap)
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind string) bool {
	_, ok := r.factories[normalizeKind(kind)]
	return ok
}

// Kinds returns the registered type names, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func normalizeKind(kind string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(kind)), ".", "-")
}
