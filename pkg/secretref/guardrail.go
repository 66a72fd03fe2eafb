package secretref

import "strings"

// ConfirmationText must be typed to enable copy mode.
const ConfirmationText = "I UNDERSTAND"

// Guardrail is the operator's opt-in to copy mode.
type Guardrail struct {
	FlagProvided bool     `json:"flagProvided" yaml:"flag_provided"`
	Confirmation string   `json:"confirmation" yaml:"confirmation"`
	AllowedKeys  []string `json:"allowedKeys" yaml:"allowed_keys"`
}

// GuardrailResult reports whether copy mode may proceed.
type GuardrailResult struct {
	Satisfied bool
	allowed   map[string]struct{}
}

// Allows reports whether name is on the allow-list, ignoring case.
func (r GuardrailResult) Allows(name string) bool {
	_, ok := r.allowed[strings.ToLower(name)]
	return ok
}

// EvaluateGuardrail is satisfied only when the flag is set, the
// confirmation matches ConfirmationText (trimmed, any case) and the
// allow-list has at least one name.
func EvaluateGuardrail(g Guardrail) GuardrailResult {
	allowed := make(map[string]struct{}, len(g.AllowedKeys))
	for _, k := range g.AllowedKeys {
		if strings.TrimSpace(k) == "" {
			continue
		}
		allowed[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}

	confirmed := strings.EqualFold(strings.TrimSpace(g.Confirmation), ConfirmationText)
	return GuardrailResult{
		Satisfied: g.FlagProvided && confirmed && len(allowed) > 0,
		allowed:   allowed,
	}
}
