package mapping

import (
	"fmt"
	"sort"
	"strings"
)

// Step is one compiled transform.
type Step func(value string, captures Captures) string

// TransformDefinition describes a catalog entry: its required parameters and
// how to compile it.
type TransformDefinition struct {
	Type TransformType
	// Required parameters must be present and non-blank.
	Required []string
	// AllowEmpty lists required parameters that may be the empty string.
	AllowEmpty []string
	// RegexParameters must compile as regular expressions.
	RegexParameters []string

	build func(params map[string]string, cache *RegexCache) (Step, error)
}

// AllowsEmpty reports whether a required parameter may be empty.
func (d TransformDefinition) AllowsEmpty(name string) bool {
	for _, n := range d.AllowEmpty {
		if n == name {
			return true
		}
	}
	return false
}

// Catalog is the set of transforms a specification may use.
type Catalog struct {
	defs map[TransformType]TransformDefinition
}

// DefaultCatalog returns the built-in transforms.
func DefaultCatalog() *Catalog {
	c := &Catalog{defs: make(map[TransformType]TransformDefinition)}

	c.register(TransformDefinition{Type: TransformTrim, build: pure(strings.TrimSpace)})
	c.register(TransformDefinition{Type: TransformUpper, build: pure(strings.ToUpper)})
	c.register(TransformDefinition{Type: TransformLower, build: pure(strings.ToLower)})

	c.register(TransformDefinition{
		Type:     TransformPrefix,
		Required: []string{"value"},
		build: func(p map[string]string, _ *RegexCache) (Step, error) {
			prefix := p["value"]
			return func(v string, _ Captures) string { return prefix + v }, nil
		},
	})
	c.register(TransformDefinition{
		Type:     TransformSuffix,
		Required: []string{"value"},
		build: func(p map[string]string, _ *RegexCache) (Step, error) {
			suffix := p["value"]
			return func(v string, _ Captures) string { return v + suffix }, nil
		},
	})
	c.register(TransformDefinition{
		Type:       TransformReplace,
		Required:   []string{"pattern", "replacement"},
		AllowEmpty: []string{"replacement"},
		build: func(p map[string]string, _ *RegexCache) (Step, error) {
			old, hasOld := p["pattern"]
			repl, hasRepl := p["replacement"]
			if !hasOld || !hasRepl {
				return identity, nil
			}
			return func(v string, _ Captures) string { return strings.ReplaceAll(v, old, repl) }, nil
		},
	})
	c.register(TransformDefinition{
		Type:            TransformRegexReplace,
		Required:        []string{"pattern", "replacement"},
		AllowEmpty:      []string{"replacement"},
		RegexParameters: []string{"pattern"},
		build: func(p map[string]string, cache *RegexCache) (Step, error) {
			pattern, hasPattern := p["pattern"]
			repl, hasRepl := p["replacement"]
			if !hasPattern || !hasRepl {
				return identity, nil
			}
			re, err := cache.Compile(pattern)
			if err != nil {
				return nil, err
			}
			repl = braceGroupRefs(repl)
			return func(v string, _ Captures) string { return re.ReplaceAllString(v, repl) }, nil
		},
	})
	c.register(TransformDefinition{
		Type:     TransformCaptureSubstitute,
		Required: []string{"template"},
		build: func(p map[string]string, _ *RegexCache) (Step, error) {
			template, ok := p["template"]
			if !ok {
				return identity, nil
			}
			return func(v string, captures Captures) string {
				if !captures.Matched() {
					return v
				}
				return captures.Expand(template)
			}, nil
		},
	})

	return c
}

func identity(v string, _ Captures) string { return v }

func pure(fn func(string) string) func(map[string]string, *RegexCache) (Step, error) {
	return func(map[string]string, *RegexCache) (Step, error) {
		return func(v string, _ Captures) string { return fn(v) }, nil
	}
}

func (c *Catalog) register(def TransformDefinition) {
	c.defs[def.Type] = def
}

// Lookup finds a transform by name, ignoring case and separators.
func (c *Catalog) Lookup(name string) (TransformDefinition, bool) {
	t, ok := ParseTransformType(name)
	if !ok {
		return TransformDefinition{}, false
	}
	def, ok := c.defs[t]
	return def, ok
}

// Names lists the catalog's transform names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for t := range c.defs {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// Compile turns a transform operation into a Step. A step missing one of its
// parameters leaves the value unchanged; run the Validator first to reject
// such specifications.
func (c *Catalog) Compile(op Transform, cache *RegexCache) (Step, error) {
	def, ok := c.Lookup(string(op.TransformType))
	if !ok {
		return nil, fmt.Errorf("unsupported transform %q", op.TransformType)
	}
	params := op.Parameters
	if params == nil {
		params = map[string]string{}
	}
	step, err := def.build(params, cache)
	if err != nil {
		return nil, fmt.Errorf("transform %q: %w", op.TransformType, err)
	}
	return step, nil
}
