package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// KeyMapping pairs a normalized key with the source name it came from.
type KeyMapping struct {
	NormalizedKey string `json:"normalizedKey"`
	SourceKey     string `json:"sourceKey"`
}

// KeyMap is an insertion-ordered map of normalized key to source name.
// Lookups ignore case; the first casing stored for a key is kept.
type KeyMap struct {
	entries []KeyMapping
	index   map[string]int
}

// NewKeyMap returns an empty map.
func NewKeyMap() *KeyMap {
	return &KeyMap{index: make(map[string]int)}
}

// Get returns the source name for a normalized key.
func (m *KeyMap) Get(normalizedKey string) (string, bool) {
	if m == nil {
		return "", false
	}
	i, ok := m.index[strings.ToLower(normalizedKey)]
	if !ok {
		return "", false
	}
	return m.entries[i].SourceKey, true
}

// Contains reports whether a normalized key is present.
func (m *KeyMap) Contains(normalizedKey string) bool {
	_, ok := m.Get(normalizedKey)
	return ok
}

// Set stores a mapping, replacing the source name of an existing key.
func (m *KeyMap) Set(normalizedKey, sourceKey string) {
	folded := strings.ToLower(normalizedKey)
	if i, ok := m.index[folded]; ok {
		m.entries[i].SourceKey = sourceKey
		return
	}
	m.index[folded] = len(m.entries)
	m.entries = append(m.entries, KeyMapping{NormalizedKey: normalizedKey, SourceKey: sourceKey})
}

// Len returns the number of mappings.
func (m *KeyMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns the mappings in insertion order.
func (m *KeyMap) Entries() []KeyMapping {
	if m == nil {
		return nil
	}
	out := make([]KeyMapping, len(m.entries))
	copy(out, m.entries)
	return out
}

// Map returns the mappings as a plain map.
func (m *KeyMap) Map() map[string]string {
	out := make(map[string]string, m.Len())
	for _, e := range m.Entries() {
		out[e.NormalizedKey] = e.SourceKey
	}
	return out
}

// MarshalJSON writes a JSON object in insertion order.
func (m *KeyMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.NormalizedKey)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.SourceKey)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping document order.
func (m *KeyMap) UnmarshalJSON(data []byte) error {
	root, err := parseJSONValue(data)
	if err != nil {
		return err
	}
	if root.Kind != KindObject {
		return fmt.Errorf("normalized keys must be a JSON object, got %s", root.Kind)
	}
	*m = *NewKeyMap()
	for _, f := range root.Fields {
		m.Set(f.Name, f.Value.Scalar)
	}
	return nil
}
