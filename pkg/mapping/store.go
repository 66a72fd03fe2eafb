package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// ErrSpecNotFound is returned by SpecStore.Load for an unknown name/version.
var ErrSpecNotFound = errors.New("mapping specification not found")

// SpecStore keeps specifications as <name>__<version>.json files in a
// directory.
type SpecStore struct {
	root string
}

// NewSpecStore returns a store rooted at dir. The directory is created on
// first save.
func NewSpecStore(dir string) *SpecStore {
	return &SpecStore{root: dir}
}

// Save writes spec, replacing any stored copy of the same name and version.
func (s *SpecStore) Save(spec *Specification) (string, error) {
	if spec == nil {
		return "", dserrors.InvalidArgument("specification")
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("create spec store: %w", err)
	}

	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode specification: %w", err)
	}

	path := filepath.Join(s.root, SpecFileName(spec.Name, spec.Version))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write specification: %w", err)
	}
	return path, nil
}

// Load reads a stored specification.
func (s *SpecStore) Load(name, version string) (*Document, error) {
	path := filepath.Join(s.root, SpecFileName(name, version))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrSpecNotFound, name, version)
		}
		return nil, fmt.Errorf("read specification: %w", err)
	}
	return Parse(path, data)
}

// List returns the stored file names in sorted order.
func (s *SpecStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") && strings.Contains(e.Name(), "__") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// SpecFileName builds the stored file name for a name and version.
func SpecFileName(name, version string) string {
	return sanitizeFileComponent(name) + "__" + sanitizeFileComponent(version) + ".json"
}

func sanitizeFileComponent(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20, strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		case r == ' ':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}
