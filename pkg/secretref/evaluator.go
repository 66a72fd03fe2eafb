package secretref

import (
	"context"
	"sort"
	"strings"

	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
)

// Outcome is what happens to one secret under the selected mode.
type Outcome string

const (
	OutcomeAllowed Outcome = "Allowed"
	OutcomeSkipped Outcome = "Skipped"
	OutcomeFailed  Outcome = "Failed"
)

const redacted = "[REDACTED]"

// RedactionPolicy controls what Evaluate hides in its output.
type RedactionPolicy struct {
	RedactValues bool
	RedactNames  bool
}

// Request is a batch of secrets to evaluate.
type Request struct {
	Mode          Mode
	SecretURIs    []string
	Guardrail     Guardrail
	Redaction     RedactionPolicy
	CorrelationID string
}

// Item is the outcome for one secret URI.
type Item struct {
	Key                string  `json:"key"`
	OriginalURI        string  `json:"originalUri"`
	Mode               Mode    `json:"mode"`
	GuardrailSatisfied bool    `json:"guardrailSatisfied"`
	AllowedKey         bool    `json:"allowedKey"`
	ResolvedVersion    string  `json:"resolvedVersion,omitempty"`
	IsValid            bool    `json:"isValid"`
	FailureReason      string  `json:"failureReason,omitempty"`
	Outcome            Outcome `json:"outcome"`
}

// Result summarises a batch.
type Result struct {
	CorrelationID      string   `json:"correlationId"`
	Mode               Mode     `json:"mode"`
	GuardrailSatisfied bool     `json:"guardrailSatisfied"`
	RedactionApplied   bool     `json:"redactionApplied"`
	AllowListEnforced  bool     `json:"allowListEnforced"`
	Items              []Item   `json:"items"`
	Messages           []string `json:"messages,omitempty"`
}

// Evaluate resolves every URI and decides its outcome. Invalid URIs fail;
// in copy mode names off the allow-list, or every name when the guardrail
// is not satisfied, are skipped. Items keep request order.
func Evaluate(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	correlationID := req.CorrelationID
	if strings.TrimSpace(correlationID) == "" {
		correlationID = logging.NewCorrelationID()
	}

	copyMode := req.Mode == ModeCopy
	guard := GuardrailResult{Satisfied: true}
	if copyMode {
		guard = EvaluateGuardrail(req.Guardrail)
	}

	result := &Result{
		CorrelationID:      correlationID,
		Mode:               req.Mode,
		GuardrailSatisfied: guard.Satisfied,
		RedactionApplied:   req.Redaction.RedactValues || req.Redaction.RedactNames,
		AllowListEnforced:  copyMode,
		Items:              make([]Item, 0, len(req.SecretURIs)),
	}

	for _, uri := range req.SecretURIs {
		res := ResolveSecretURI(uri)
		key := res.SecretName
		if key == "" {
			key = res.OriginalURI
		}
		allowed := !copyMode || (guard.Satisfied && guard.Allows(key))

		item := Item{
			Key:                key,
			OriginalURI:        res.OriginalURI,
			Mode:               req.Mode,
			GuardrailSatisfied: guard.Satisfied,
			AllowedKey:         allowed,
			ResolvedVersion:    res.Version,
			IsValid:            res.IsValid,
			FailureReason:      res.FailureReason,
		}
		switch {
		case !res.IsValid:
			item.Outcome = OutcomeFailed
		case copyMode && !allowed:
			item.Outcome = OutcomeSkipped
		default:
			item.Outcome = OutcomeAllowed
		}
		result.Items = append(result.Items, redactItem(item, req.Redaction))
	}

	if copyMode && !guard.Satisfied {
		result.Messages = append(result.Messages, "Copy-value guardrails not satisfied.")
	}
	return result, nil
}

func redactItem(item Item, policy RedactionPolicy) Item {
	if policy.RedactNames {
		item.Key = redacted
		item.OriginalURI = redacted
	}
	if policy.RedactValues && item.FailureReason != "" {
		item.FailureReason = logging.RedactValues(item.FailureReason)
	}
	return item
}

// AllowedNames returns the names of allowed items, sorted without regard
// to case. Redacted names are not returned.
func (r *Result) AllowedNames() []string {
	var names []string
	for _, item := range r.Items {
		if item.Outcome == OutcomeAllowed && item.Key != redacted {
			names = append(names, item.Key)
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}
