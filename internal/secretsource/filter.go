package secretsource

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter selects secrets by name and metadata. Zero values match
// everything.
type Filter struct {
	Prefix      string
	Regex       string
	Tags        map[string]string
	EnabledOnly bool
}

type compiledFilter struct {
	Filter
	re *regexp.Regexp
}

func (f Filter) compile() (*compiledFilter, error) {
	cf := &compiledFilter{Filter: f}
	if strings.TrimSpace(f.Regex) != "" {
		re, err := regexp.Compile("(?i)" + f.Regex)
		if err != nil {
			return nil, fmt.Errorf("invalid name regex %q: %w", f.Regex, err)
		}
		cf.re = re
	}
	return cf, nil
}

func (f *compiledFilter) matches(d Descriptor) bool {
	if strings.TrimSpace(f.Prefix) != "" && !strings.HasPrefix(strings.ToLower(d.Name), strings.ToLower(f.Prefix)) {
		return false
	}
	if f.EnabledOnly && !d.Enabled {
		return false
	}
	if f.re != nil && !f.re.MatchString(d.Name) {
		return false
	}
	for k, want := range f.Tags {
		got, ok := lookupTag(d.Tags, k)
		if !ok || !strings.EqualFold(got, want) {
			return false
		}
	}
	return true
}

func lookupTag(tags map[string]string, name string) (string, bool) {
	if v, ok := tags[name]; ok {
		return v, true
	}
	for k, v := range tags {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// ParseTag parses a "key=value" tag filter. Both sides are trimmed and
// must be non-empty.
func ParseTag(raw string) (string, string, error) {
	key, value, ok := strings.Cut(raw, "=")
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if !ok || key == "" || value == "" {
		return "", "", fmt.Errorf("invalid tag filter %q: expected key=value", raw)
	}
	return key, value, nil
}

// ParseTags parses several tag filters into one map.
func ParseTags(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(raw))
	for _, r := range raw {
		k, v, err := ParseTag(r)
		if err != nil {
			return nil, err
		}
		tags[k] = v
	}
	return tags, nil
}
