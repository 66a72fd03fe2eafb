package mapping

import (
	"strings"
	"time"
)

// DefaultBehavior decides what happens to source names no rule matches.
type DefaultBehavior string

const (
	RejectUnmapped DefaultBehavior = "reject-unmapped"
	PassThrough    DefaultBehavior = "pass-through"
)

// CollisionPolicy decides which mapping survives a collision.
type CollisionPolicy string

const (
	CollisionError      CollisionPolicy = "error"
	CollisionKeepFirst  CollisionPolicy = "keep-first"
	CollisionKeepLast   CollisionPolicy = "keep-last"
	CollisionReportOnly CollisionPolicy = "report-only"
)

// StrategyType selects how a rule matches source names.
type StrategyType string

const (
	StrategyDirect StrategyType = "direct"
	StrategyRegex  StrategyType = "regex"
)

// TransformType names an entry in the transform catalog.
type TransformType string

const (
	TransformTrim              TransformType = "trim"
	TransformUpper             TransformType = "upper"
	TransformLower             TransformType = "lower"
	TransformPrefix            TransformType = "prefix"
	TransformSuffix            TransformType = "suffix"
	TransformReplace           TransformType = "replace"
	TransformRegexReplace      TransformType = "regex-replace"
	TransformCaptureSubstitute TransformType = "capture-substitute"
)

// RunStatus is the outcome of a mapping run.
type RunStatus string

const (
	RunSucceeded RunStatus = "Succeeded"
	RunFailed    RunStatus = "Failed"
)

// Specification is a loaded mapping specification. Treat it as immutable
// once loaded.
type Specification struct {
	SpecificationID string          `json:"specificationId,omitempty"`
	Name            string          `json:"name"`
	Version         string          `json:"version"`
	Description     string          `json:"description,omitempty"`
	DefaultBehavior DefaultBehavior `json:"defaultBehavior"`
	CollisionPolicy CollisionPolicy `json:"collisionPolicy"`
	CreatedAt       *time.Time      `json:"createdAt,omitempty"`
	CreatedBy       string          `json:"createdBy,omitempty"`
	Rules           []Rule          `json:"rules"`
}

// Rule maps matching source names to a target key.
type Rule struct {
	RuleID         string       `json:"ruleId"`
	StrategyType   StrategyType `json:"strategyType"`
	SourceSelector string       `json:"sourceSelector"`
	TargetKey      string       `json:"targetKey"`
	Priority       int          `json:"priority"`
	Transforms     []Transform  `json:"transforms,omitempty"`
}

// Transform is one step of a rule's transform chain.
type Transform struct {
	TransformType TransformType     `json:"transformType"`
	Parameters    map[string]string `json:"parameters,omitempty"`
}

// Run is the result of one mapping invocation.
type Run struct {
	SpecificationID      string           `json:"specificationId"`
	SpecificationVersion string           `json:"specificationVersion"`
	StartedAt            time.Time        `json:"startedAt"`
	CompletedAt          time.Time        `json:"completedAt"`
	Status               RunStatus        `json:"status"`
	NormalizedKeys       *KeyMap          `json:"normalizedKeys"`
	CollisionReport      *CollisionReport `json:"collisionReport,omitempty"`
	Unmapped             []string         `json:"unmapped,omitempty"`
}

// CollisionReport lists every normalized key produced by more than one
// source name.
type CollisionReport struct {
	Entries []CollisionEntry `json:"entries"`
}

// CollisionEntry records the source names that produced one normalized key.
type CollisionEntry struct {
	NormalizedKey string          `json:"normalizedKey"`
	SourceKeys    []string        `json:"sourceKeys"`
	AppliedPolicy CollisionPolicy `json:"appliedPolicy"`
}

// ParseDefaultBehavior reads a behavior leniently: case, dashes, underscores
// and spaces are ignored. Unknown values fall back to RejectUnmapped.
func ParseDefaultBehavior(s string) DefaultBehavior {
	switch squash(s) {
	case "passthrough":
		return PassThrough
	default:
		return RejectUnmapped
	}
}

// ParseCollisionPolicy reads a policy leniently. Unknown values fall back to
// CollisionError.
func ParseCollisionPolicy(s string) CollisionPolicy {
	switch squash(s) {
	case "keepfirst":
		return CollisionKeepFirst
	case "keeplast":
		return CollisionKeepLast
	case "reportonly":
		return CollisionReportOnly
	default:
		return CollisionError
	}
}

// ParseStrategyType reads a strategy leniently. Unknown values fall back to
// StrategyDirect.
func ParseStrategyType(s string) StrategyType {
	if squash(s) == "regex" {
		return StrategyRegex
	}
	return StrategyDirect
}

// ParseTransformType reads a transform name leniently. The second result is
// false when the name is not in the catalog.
func ParseTransformType(s string) (TransformType, bool) {
	switch squash(s) {
	case "trim":
		return TransformTrim, true
	case "upper":
		return TransformUpper, true
	case "lower":
		return TransformLower, true
	case "prefix":
		return TransformPrefix, true
	case "suffix":
		return TransformSuffix, true
	case "replace":
		return TransformReplace, true
	case "regexreplace":
		return TransformRegexReplace, true
	case "capturesubstitute":
		return TransformCaptureSubstitute, true
	}
	return "", false
}

func squash(s string) string {
	r := strings.NewReplacer("-", "", "_", "", " ", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(s)))
}
