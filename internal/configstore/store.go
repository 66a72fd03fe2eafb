// Package configstore reads and writes the target configuration store.
package configstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
	"github.com/jejernig/keyvault-to-appconfig/pkg/writes"
)

// Target type names.
const (
	KindAzureAppConfig = "azure-appconfig"
	KindFile           = "file"
)

// Selector scopes a listing. Each label is listed separately; no labels
// lists every label. A continuation token only applies when at most one
// label is given.
type Selector struct {
	KeyPrefix         string
	Labels            []string
	PageSize          int
	ContinuationToken string
}

// Store is a configuration store the planner can read and the executor can
// write.
type Store interface {
	writes.Store
	List(ctx context.Context, sel Selector) (*planning.ExistingSnapshot, error)
}

// New creates a store of the given type from its configuration block.
func New(ctx context.Context, kind string, configMap map[string]interface{}) (Store, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(kind)), ".", "-") {
	case KindAzureAppConfig, "appconfig":
		return NewAppConfigStoreFromMap(configMap)
	case KindFile:
		path, _ := configMap["path"].(string)
		return OpenFileStore(path)
	default:
		return nil, fmt.Errorf("unknown target type: %s", kind)
	}
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
