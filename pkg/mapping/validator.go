package mapping

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError is one problem found in a specification document.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ValidationResult is the ordered list of problems in a document.
type ValidationResult struct {
	Errors []ValidationError `json:"errors"`
}

// Valid reports whether no problems were found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) add(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

var (
	rootFields = []string{
		"specificationId", "name", "version", "description", "defaultBehavior",
		"collisionPolicy", "createdAt", "createdBy", "rules",
	}
	ruleFields      = []string{"ruleId", "strategyType", "sourceSelector", "targetKey", "priority", "transforms"}
	transformFields = []string{"transformType", "parameters"}

	defaultBehaviorValues = []string{string(RejectUnmapped), string(PassThrough)}
	collisionPolicyValues = []string{
		string(CollisionError), string(CollisionKeepFirst), string(CollisionKeepLast), string(CollisionReportOnly),
	}
)

const (
	minPriority = 0
	maxPriority = 1000
)

// Validator checks specification documents against the mapping schema.
type Validator struct {
	catalog *Catalog
	cache   *RegexCache
}

// NewValidator returns a validator using the given catalog and regex cache.
// Nil arguments select the defaults.
func NewValidator(catalog *Catalog, cache *RegexCache) *Validator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if cache == nil {
		cache = NewRegexCache()
	}
	return &Validator{catalog: catalog, cache: cache}
}

// Validate walks a parsed document and returns every problem it finds, in
// document order. It never fails on malformed content.
func (v *Validator) Validate(root *Value) ValidationResult {
	var result ValidationResult

	if root == nil || root.Kind != KindObject {
		result.add("", "Specification must be a JSON object.")
		return result
	}

	checkUnknownFields(root, rootFields, "spec", &result)
	requiredString(root, "name", "", &result)
	requiredScalar(root, "version", &result)
	checkEnum(root, "defaultBehavior", defaultBehaviorValues, &result)
	checkEnum(root, "collisionPolicy", collisionPolicyValues, &result)

	rules, ok := root.Get("rules")
	if !ok || rules.Kind != KindArray {
		result.add("rules", "Rules must be an array.")
		return result
	}

	seen := make(map[string]bool)
	for i, rule := range rules.Items {
		path := fmt.Sprintf("rules[%d]", i)
		if rule.Kind != KindObject {
			result.add(path, "Rule must be an object.")
			continue
		}

		checkUnknownFields(rule, ruleFields, path, &result)

		ruleID := requiredString(rule, "ruleId", path, &result)
		if ruleID != "" {
			folded := strings.ToLower(ruleID)
			if seen[folded] {
				result.add(path+".ruleId", "Rule identifiers must be unique within a specification.")
			}
			seen[folded] = true
		}

		strategy := requiredString(rule, "strategyType", path, &result)
		selector := requiredString(rule, "sourceSelector", path, &result)
		requiredString(rule, "targetKey", path, &result)
		v.checkPriority(rule, path, &result)

		if strategy != "" && !strings.EqualFold(strategy, string(StrategyDirect)) && !strings.EqualFold(strategy, string(StrategyRegex)) {
			result.add(path+".strategyType", "Strategy type must be 'direct' or 'regex'.")
		}
		if strings.EqualFold(strategy, string(StrategyRegex)) && selector != "" {
			v.checkRegex(selector, path+".sourceSelector", &result)
		}

		if transforms, ok := rule.Get("transforms"); ok {
			v.checkTransforms(transforms, path, &result)
		}
	}

	return result
}

func (v *Validator) checkPriority(rule *Value, path string, result *ValidationResult) {
	field := path + ".priority"
	p, ok := rule.Get("priority")
	if !ok || p.Kind != KindNumber {
		result.add(field, "Priority must be an integer.")
		return
	}
	n, err := strconv.ParseInt(p.Scalar, 10, 32)
	if err != nil {
		result.add(field, "Priority must be an integer.")
		return
	}
	if n < minPriority || n > maxPriority {
		result.add(field, "Priority must be between 0 and 1000.")
	}
}

func (v *Validator) checkTransforms(transforms *Value, rulePath string, result *ValidationResult) {
	if transforms.Kind != KindArray {
		result.add(rulePath+".transforms", "Transforms must be an array.")
		return
	}

	for j, t := range transforms.Items {
		path := fmt.Sprintf("%s.transforms[%d]", rulePath, j)
		if t.Kind != KindObject {
			result.add(path, "Transform must be an object.")
			continue
		}

		checkUnknownFields(t, transformFields, path, result)
		name := requiredString(t, "transformType", path, result)
		if name == "" {
			continue
		}

		def, ok := v.catalog.Lookup(name)
		if !ok {
			result.add(path+".transformType", fmt.Sprintf("Unsupported transform '%s'.", name))
			continue
		}

		params, _ := t.Get("parameters")
		for _, required := range def.Required {
			value, present := parameter(params, required)
			if !present || (strings.TrimSpace(value) == "" && !def.AllowsEmpty(required)) {
				result.add(path+".parameters."+required, "Parameter is required.")
			}
		}
		for _, param := range def.RegexParameters {
			if pattern, present := parameter(params, param); present {
				v.checkRegex(pattern, path+".parameters."+param, result)
			}
		}
	}
}

func (v *Validator) checkRegex(pattern, field string, result *ValidationResult) {
	if _, err := v.cache.Compile(pattern); err != nil {
		result.add(field, "Regex pattern is invalid.")
	}
}

func parameter(params *Value, name string) (string, bool) {
	p, ok := params.Get(name)
	if !ok || p.Kind != KindString {
		return "", false
	}
	return p.Scalar, true
}

func checkUnknownFields(obj *Value, allowed []string, path string, result *ValidationResult) {
	for _, f := range obj.Fields {
		if !containsFold(allowed, f.Name) {
			result.add(path+"."+f.Name, "Unknown field is not allowed.")
		}
	}
}

// requiredString returns the field's text, or "" after recording an error
// when it is missing, blank or not a string.
func requiredString(obj *Value, name, prefix string, result *ValidationResult) string {
	field := name
	if prefix != "" {
		field = prefix + "." + name
	}
	v, ok := obj.Get(name)
	if !ok || v.Kind != KindString || strings.TrimSpace(v.Scalar) == "" {
		result.add(field, "Field is required.")
		return ""
	}
	return v.Scalar
}

// requiredScalar is requiredString for root fields that may also be written
// as a bare number, like version: 2 in YAML.
func requiredScalar(obj *Value, name string, result *ValidationResult) string {
	if v, ok := obj.Get(name); ok && v.Kind == KindNumber && strings.TrimSpace(v.Scalar) != "" {
		return v.Scalar
	}
	return requiredString(obj, name, "", result)
}

func checkEnum(obj *Value, name string, allowed []string, result *ValidationResult) {
	v, ok := obj.Get(name)
	if !ok {
		return
	}
	if v.Kind != KindString || !containsFold(allowed, v.Scalar) {
		result.add(name, fmt.Sprintf("Value must be one of: %s.", strings.Join(allowed, ", ")))
	}
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
