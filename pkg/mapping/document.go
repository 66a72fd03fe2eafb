package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the type of a node in a parsed document.
type Kind int

const (
	KindNull Kind = iota
	KindObject
	KindArray
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a loosely typed document node. Objects keep their field order.
type Value struct {
	Kind   Kind
	Fields []Field
	Items  []*Value
	Scalar string
}

// Field is one property of an object node.
type Field struct {
	Name  string
	Value *Value
}

// Get returns the first property whose name matches, ignoring case.
func (v *Value) Get(name string) (*Value, bool) {
	if v == nil || v.Kind != KindObject {
		return nil, false
	}
	for _, f := range v.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the scalar of a string node.
func (v *Value) String() (string, bool) {
	if v == nil || v.Kind != KindString {
		return "", false
	}
	return v.Scalar, true
}

// ParseValue parses a JSON or YAML document into a Value. Input starting
// with a brace or bracket is read as JSON first, then as a YAML flow
// collection.
func ParseValue(data []byte) (*Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		v, jsonErr := parseJSONValue(trimmed)
		if jsonErr == nil {
			return v, nil
		}
		if v, err := parseYAMLValue(data); err == nil {
			return v, nil
		}
		return nil, jsonErr
	}
	return parseYAMLValue(data)
}

func parseJSONValue(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSON(dec)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("json: unexpected data after top-level value")
	}
	return v, nil
}

func decodeJSON(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &Value{Kind: KindObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyTok)
				}
				child, err := decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				obj.Fields = append(obj.Fields, Field{Name: key, Value: child})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := &Value{Kind: KindArray}
			for dec.More() {
				child, err := decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				arr.Items = append(arr.Items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return &Value{Kind: KindString, Scalar: t}, nil
	case json.Number:
		return &Value{Kind: KindNumber, Scalar: t.String()}, nil
	case bool:
		return &Value{Kind: KindBool, Scalar: fmt.Sprint(t)}, nil
	case nil:
		return &Value{Kind: KindNull}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func parseYAMLValue(data []byte) (*Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &Value{Kind: KindNull}, nil
	}
	return fromYAML(doc.Content[0], 0)
}

const maxAliasDepth = 32

func fromYAML(n *yaml.Node, depth int) (*Value, error) {
	if depth > maxAliasDepth {
		return nil, fmt.Errorf("yaml: alias nesting too deep at line %d", n.Line)
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return &Value{Kind: KindNull}, nil
		}
		return fromYAML(n.Content[0], depth)
	case yaml.AliasNode:
		return fromYAML(n.Alias, depth+1)
	case yaml.MappingNode:
		obj := &Value{Kind: KindObject}
		for i := 0; i+1 < len(n.Content); i += 2 {
			child, err := fromYAML(n.Content[i+1], depth)
			if err != nil {
				return nil, err
			}
			obj.Fields = append(obj.Fields, Field{Name: n.Content[i].Value, Value: child})
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := &Value{Kind: KindArray}
		for _, item := range n.Content {
			child, err := fromYAML(item, depth)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, child)
		}
		return arr, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return &Value{Kind: KindNull}, nil
		case "!!int", "!!float":
			return &Value{Kind: KindNumber, Scalar: n.Value}, nil
		case "!!bool":
			return &Value{Kind: KindBool, Scalar: n.Value}, nil
		default:
			return &Value{Kind: KindString, Scalar: n.Value}, nil
		}
	}
	return nil, fmt.Errorf("yaml: unsupported node at line %d", n.Line)
}
