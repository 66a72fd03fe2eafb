package mapping

import (
	"context"
	"fmt"
	"sort"
	"time"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// Engine runs mapping specifications over source names.
type Engine struct {
	catalog *Catalog
	cache   *RegexCache
	now     func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCatalog sets the transform catalog.
func WithCatalog(c *Catalog) EngineOption {
	return func(e *Engine) { e.catalog = c }
}

// WithRegexCache shares a regex cache with the engine.
func WithRegexCache(c *RegexCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithClock sets the clock used for run timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine with the default catalog and a fresh cache.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		catalog: DefaultCatalog(),
		cache:   NewRegexCache(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type compiledRule struct {
	rule    Rule
	matcher Matcher
	steps   []Step
}

// Run maps sourceKeys in the order given. Unmapped names and collisions are
// reported through the returned Run, not as errors; an error means the
// specification could not be compiled or ctx was cancelled.
func (e *Engine) Run(ctx context.Context, spec *Specification, sourceKeys []string) (*Run, error) {
	if spec == nil {
		return nil, dserrors.InvalidArgument("specification")
	}

	rules, err := e.compile(spec)
	if err != nil {
		return nil, err
	}

	run := &Run{
		SpecificationID:      spec.SpecificationID,
		SpecificationVersion: spec.Version,
		StartedAt:            e.now().UTC(),
		Status:               RunSucceeded,
		NormalizedKeys:       NewKeyMap(),
	}
	collisions := NewCollisionReporter()

	for _, sourceKey := range sourceKeys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		normalized, matched := e.normalize(rules, sourceKey)
		if !matched {
			if spec.DefaultBehavior != PassThrough {
				run.Status = RunFailed
				run.Unmapped = append(run.Unmapped, sourceKey)
				continue
			}
			normalized = sourceKey
		}

		existing, taken := run.NormalizedKeys.Get(normalized)
		if !taken {
			run.NormalizedKeys.Set(normalized, sourceKey)
			continue
		}
		if existing == sourceKey {
			continue
		}

		collisions.Register(normalized, existing, sourceKey, spec.CollisionPolicy)
		switch spec.CollisionPolicy {
		case CollisionKeepLast:
			run.NormalizedKeys.Set(normalized, sourceKey)
		case CollisionKeepFirst, CollisionReportOnly:
		default:
			run.Status = RunFailed
		}
	}

	run.CollisionReport = collisions.Report()
	run.CompletedAt = e.now().UTC()
	return run, nil
}

// normalize finds the first matching rule and applies its target and
// transforms.
func (e *Engine) normalize(rules []compiledRule, sourceKey string) (string, bool) {
	for _, r := range rules {
		captures, ok := r.matcher.Match(sourceKey)
		if !ok {
			continue
		}
		key := captures.Expand(r.rule.TargetKey)
		for _, step := range r.steps {
			key = step(key, captures)
		}
		return key, true
	}
	return "", false
}

// compile orders rules by priority, highest first, keeping declaration order
// within a priority.
func (e *Engine) compile(spec *Specification) ([]compiledRule, error) {
	rules := make([]compiledRule, 0, len(spec.Rules))
	for _, rule := range spec.Rules {
		matcher, err := NewMatcher(rule, e.cache)
		if err != nil {
			return nil, err
		}
		steps := make([]Step, 0, len(rule.Transforms))
		for _, t := range rule.Transforms {
			step, err := e.catalog.Compile(t, e.cache)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", rule.RuleID, err)
			}
			steps = append(steps, step)
		}
		rules = append(rules, compiledRule{rule: rule, matcher: matcher, steps: steps})
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].rule.Priority > rules[j].rule.Priority
	})
	return rules, nil
}
