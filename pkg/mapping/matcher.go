package mapping

import (
	"fmt"
	"regexp"
	"strings"
)

// Captures holds the groups captured when a regex rule matched. The zero
// value belongs to a direct match and expands templates unchanged.
type Captures struct {
	re    *regexp.Regexp
	input string
	match []int
}

// Matched reports whether the captures came from a regex match.
func (c Captures) Matched() bool {
	return c.re != nil
}

// Group returns a numbered capture group, or "" when absent.
func (c Captures) Group(n int) string {
	if c.re == nil || 2*n+1 >= len(c.match) || c.match[2*n] < 0 {
		return ""
	}
	return c.input[c.match[2*n]:c.match[2*n+1]]
}

// Expand substitutes $1, ${1} and ${name} references in template.
func (c Captures) Expand(template string) string {
	if c.re == nil {
		return template
	}
	return string(c.re.ExpandString(nil, braceGroupRefs(template), c.input, c.match))
}

// braceGroupRefs rewrites a back-reference template into regexp.Expand form.
// A numbered reference ends at the last digit, so $1_Conn is group 1
// followed by "_Conn". A $ that starts neither a number, ${...} nor $$ is
// literal text.
func braceGroupRefs(template string) string {
	if !strings.Contains(template, "$") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template) + 8)
	for i := 0; i < len(template); i++ {
		ch := template[i]
		if ch != '$' {
			b.WriteByte(ch)
			continue
		}
		if i+1 >= len(template) {
			b.WriteString("$$")
			continue
		}
		next := template[i+1]
		switch {
		case next == '$':
			b.WriteString("$$")
			i++
		case next == '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				b.WriteString("$$")
				continue
			}
			b.WriteString(template[i : i+end+1])
			i += end
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(template) && template[j] >= '0' && template[j] <= '9' {
				j++
			}
			b.WriteString("${")
			b.WriteString(template[i+1 : j])
			b.WriteByte('}')
			i = j - 1
		default:
			b.WriteString("$$")
		}
	}
	return b.String()
}

// Matcher decides whether a rule applies to a source name.
type Matcher interface {
	Match(sourceKey string) (Captures, bool)
	Strategy() StrategyType
}

// DirectMatcher matches one exact source name, case-sensitively.
type DirectMatcher struct {
	Selector string
}

func (m DirectMatcher) Match(sourceKey string) (Captures, bool) {
	return Captures{}, sourceKey == m.Selector
}

func (m DirectMatcher) Strategy() StrategyType { return StrategyDirect }

// RegexMatcher matches source names against a compiled pattern.
type RegexMatcher struct {
	Pattern *regexp.Regexp
}

func (m RegexMatcher) Match(sourceKey string) (Captures, bool) {
	loc := m.Pattern.FindStringSubmatchIndex(sourceKey)
	if loc == nil {
		return Captures{}, false
	}
	return Captures{re: m.Pattern, input: sourceKey, match: loc}, true
}

func (m RegexMatcher) Strategy() StrategyType { return StrategyRegex }

// NewMatcher builds the matcher for a rule's strategy.
func NewMatcher(rule Rule, cache *RegexCache) (Matcher, error) {
	switch rule.StrategyType {
	case StrategyRegex:
		re, err := cache.Compile(rule.SourceSelector)
		if err != nil {
			return nil, fmt.Errorf("rule %q: invalid source selector: %w", rule.RuleID, err)
		}
		return RegexMatcher{Pattern: re}, nil
	case StrategyDirect, "":
		return DirectMatcher{Selector: rule.SourceSelector}, nil
	default:
		return nil, fmt.Errorf("rule %q: unknown strategy type %q", rule.RuleID, rule.StrategyType)
	}
}
