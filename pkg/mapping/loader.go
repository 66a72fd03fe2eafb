package mapping

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// Document is a parsed specification file: the loose value tree the
// Validator walks and the typed Specification the Engine runs.
type Document struct {
	Path          string
	Root          *Value
	Specification *Specification
}

// LoadFile reads and parses a JSON or YAML specification file.
func LoadFile(path string) (*Document, error) {
	if strings.TrimSpace(path) == "" {
		return nil, dserrors.InvalidArgument("specification path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dserrors.ConfigError{
				Field:      "spec-path",
				Value:      path,
				Message:    "mapping specification not found",
				Suggestion: "Pass the path of an existing .json or .yaml file with --spec-path",
			}
		}
		return nil, dserrors.UserError{
			Message:    "Failed to read mapping specification",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	return Parse(path, data)
}

// Parse builds a Document from raw bytes. Syntax errors are returned as
// errors; content problems are left for the Validator.
func Parse(path string, data []byte) (*Document, error) {
	root, err := ParseValue(data)
	if err != nil {
		return nil, dserrors.ConfigError{
			Field:      "spec-path",
			Value:      path,
			Message:    "invalid specification syntax: " + err.Error(),
			Suggestion: "Check the file is well-formed JSON or YAML",
		}
	}

	spec := decodeSpecification(root)
	if strings.TrimSpace(spec.SpecificationID) == "" {
		spec.SpecificationID = strings.ReplaceAll(uuid.New().String(), "-", "")
	}

	return &Document{Path: path, Root: root, Specification: spec}, nil
}

// decodeSpecification reads the typed view leniently. Wrong-typed or unknown
// values fall back to zero values and defaults.
func decodeSpecification(root *Value) *Specification {
	spec := &Specification{
		DefaultBehavior: RejectUnmapped,
		CollisionPolicy: CollisionError,
	}
	if root == nil || root.Kind != KindObject {
		return spec
	}

	spec.SpecificationID = scalarField(root, "specificationId")
	spec.Name = scalarField(root, "name")
	spec.Version = scalarField(root, "version")
	spec.Description = scalarField(root, "description")
	spec.CreatedBy = scalarField(root, "createdBy")
	spec.DefaultBehavior = ParseDefaultBehavior(scalarField(root, "defaultBehavior"))
	spec.CollisionPolicy = ParseCollisionPolicy(scalarField(root, "collisionPolicy"))

	if created := scalarField(root, "createdAt"); created != "" {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			spec.CreatedAt = &t
		}
	}

	rules, ok := root.Get("rules")
	if !ok || rules.Kind != KindArray {
		return spec
	}
	for _, item := range rules.Items {
		if item.Kind != KindObject {
			continue
		}
		spec.Rules = append(spec.Rules, decodeRule(item))
	}
	return spec
}

func decodeRule(v *Value) Rule {
	rule := Rule{
		RuleID:         scalarField(v, "ruleId"),
		StrategyType:   ParseStrategyType(scalarField(v, "strategyType")),
		SourceSelector: scalarField(v, "sourceSelector"),
		TargetKey:      scalarField(v, "targetKey"),
	}
	if p, err := strconv.Atoi(strings.TrimSpace(scalarField(v, "priority"))); err == nil {
		rule.Priority = p
	}

	transforms, ok := v.Get("transforms")
	if !ok || transforms.Kind != KindArray {
		return rule
	}
	for _, item := range transforms.Items {
		if item.Kind != KindObject {
			continue
		}
		t := Transform{TransformType: TransformType(scalarField(item, "transformType"))}
		if parsed, ok := ParseTransformType(string(t.TransformType)); ok {
			t.TransformType = parsed
		}
		if params, ok := item.Get("parameters"); ok && params.Kind == KindObject {
			t.Parameters = make(map[string]string, len(params.Fields))
			for _, f := range params.Fields {
				if isScalar(f.Value) {
					t.Parameters[f.Name] = f.Value.Scalar
				}
			}
		}
		rule.Transforms = append(rule.Transforms, t)
	}
	return rule
}

func scalarField(v *Value, name string) string {
	field, ok := v.Get(name)
	if !ok || !isScalar(field) {
		return ""
	}
	return field.Scalar
}

func isScalar(v *Value) bool {
	return v != nil && (v.Kind == KindString || v.Kind == KindNumber || v.Kind == KindBool)
}
