// Package report writes and reads the JSON documents exchanged by the
// command line: executable write plans, redacted diff and apply reports,
// mapping runs and the desired/existing state inputs of the diff command.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
	"github.com/jejernig/keyvault-to-appconfig/pkg/mapping"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
	"github.com/jejernig/keyvault-to-appconfig/pkg/writes"
)

const redacted = "[REDACTED]"

// DiffReport is the redacted summary written by diff and plan.
type DiffReport struct {
	CorrelationID string                    `json:"correlationId"`
	GeneratedAt   time.Time                 `json:"generatedAt"`
	ValuesShown   bool                      `json:"valuesShown"`
	Totals        planning.PlanTotals       `json:"totals"`
	DiffItems     []planning.DiffItem       `json:"diffItems"`
	Conflicts     []planning.ConflictRecord `json:"conflicts"`
}

// MappingReport wraps a mapping run with the invocation's correlation id.
type MappingReport struct {
	CorrelationID string `json:"correlationId"`
	*mapping.Run
}

// NewDiffReport copies out into a report, redacting every value unless
// showValues is set.
func NewDiffReport(out *planning.PlanOutput, correlationID string, showValues bool) *DiffReport {
	r := &DiffReport{
		CorrelationID: correlationID,
		ValuesShown:   showValues,
		DiffItems:     []planning.DiffItem{},
		Conflicts:     []planning.ConflictRecord{},
	}
	if out == nil {
		return r
	}
	r.GeneratedAt = out.GeneratedAt
	r.Totals = out.Totals

	for _, item := range out.DiffItems {
		if !showValues {
			if item.DesiredValue != "" {
				item.DesiredValue = redacted
			}
			if item.ExistingValue != nil {
				masked := redacted
				item.ExistingValue = &masked
			}
		}
		r.DiffItems = append(r.DiffItems, item)
	}
	for _, c := range out.Conflicts {
		values := make([]string, len(c.ConflictingValues))
		for i, v := range c.ConflictingValues {
			if showValues {
				values[i] = v
			} else {
				values[i] = redacted
			}
		}
		c.ConflictingValues = values
		r.Conflicts = append(r.Conflicts, c)
	}
	return r
}

// WriteDiffReportJSON writes the redacted diff report for out.
func WriteDiffReportJSON(path string, out *planning.PlanOutput, correlationID string, showValues bool) error {
	return writeJSON(path, NewDiffReport(out, correlationID, showValues))
}

// WritePlanFile writes the executable plan consumed by apply. Values are
// kept, so the file is only readable by its owner.
func WritePlanFile(path string, plan *writes.WritePlan) error {
	if plan == nil {
		return dserrors.InvalidArgument("plan")
	}
	return writeJSON(path, plan)
}

// WriteWriteReportJSON writes an apply report. Failure reasons are
// scrubbed of the given secret values and of key=value assignments.
func WriteWriteReportJSON(path string, rep *writes.WriteReport, secrets []string) error {
	if rep == nil {
		return dserrors.InvalidArgument("report")
	}
	return writeJSON(path, RedactWriteReport(rep, secrets))
}

// RedactWriteReport returns a copy of rep that is safe to print or persist.
func RedactWriteReport(rep *writes.WriteReport, secrets []string) *writes.WriteReport {
	clean := *rep
	clean.Results = make([]writes.WriteResult, len(rep.Results))
	for i, res := range rep.Results {
		if res.FailureReason != "" {
			res.FailureReason = logging.RedactValues(logging.Redact(res.FailureReason, secrets))
		}
		clean.Results[i] = res
	}
	return &clean
}

// WriteMappingRunJSON writes a mapping run. Runs never carry secret values.
func WriteMappingRunJSON(path string, run *mapping.Run, correlationID string) error {
	if run == nil {
		return dserrors.InvalidArgument("run")
	}
	return writeJSON(path, MappingReport{CorrelationID: correlationID, Run: run})
}

// ReadWritePlan loads and validates a plan written by WritePlanFile.
func ReadWritePlan(path string) (*writes.WritePlan, error) {
	var plan writes.WritePlan
	if err := readDocument(path, KindWritePlan, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ReadDesiredState loads and validates a desired state document.
func ReadDesiredState(path string) (*planning.DesiredState, error) {
	var state planning.DesiredState
	if err := readDocument(path, KindDesiredState, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// ReadExistingState loads and validates an existing state snapshot.
func ReadExistingState(path string) (*planning.ExistingSnapshot, error) {
	var snap planning.ExistingSnapshot
	if err := readDocument(path, KindExistingState, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func readDocument(path string, kind DocumentKind, into interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.UserError{
				Message:    fmt.Sprintf("%s file not found", kind),
				Details:    fmt.Sprintf("Looked for: %s", path),
				Suggestion: "Check the path passed on the command line",
				Err:        err,
			}
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := ValidateDocument(kind, data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, into); err != nil {
		return dserrors.UserError{
			Message: fmt.Sprintf("Invalid %s document", kind),
			Details: err.Error(),
			Err:     err,
		}
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	if path == "" {
		return dserrors.InvalidArgument("path")
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
