package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/pkg/mapping"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
	"github.com/jejernig/keyvault-to-appconfig/pkg/writes"
)

func strPtr(s string) *string { return &s }

func samplePlan() *writes.WritePlan {
	return &writes.WritePlan{
		PlanID:      "plan-1",
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Actions: []writes.WriteAction{
			{Key: "app/db", Label: "prod", ActionType: writes.ActionCreate, DesiredValue: "s3cret", Reason: "Missing in target"},
			{Key: "app/api", Label: "prod", ActionType: writes.ActionSkip, DesiredValue: "same", Reason: "Unchanged"},
		},
		LabelContext: writes.LabelContext{EnvironmentLabel: "prod"},
		RollbackPlan: &writes.RollbackPlan{
			Enabled: true,
			Actions: []writes.WriteAction{{Key: "app/db", Label: "prod", ActionType: writes.ActionDelete}},
		},
	}
}

func TestWritePlanFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "plan.json")
	require.NoError(t, WritePlanFile(path, samplePlan()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	plan, err := ReadWritePlan(path)
	require.NoError(t, err)
	assert.Equal(t, "plan-1", plan.PlanID)
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, "s3cret", plan.Actions[0].DesiredValue)
	require.NotNil(t, plan.RollbackPlan)
	assert.Equal(t, writes.ActionDelete, plan.RollbackPlan.Actions[0].ActionType)
}

func TestWritePlanFileRequiresPlan(t *testing.T) {
	t.Parallel()

	err := WritePlanFile(filepath.Join(t.TempDir(), "plan.json"), nil)
	assert.ErrorIs(t, err, dserrors.ErrInvalidArgument)
}

func TestDiffReportRedaction(t *testing.T) {
	t.Parallel()

	out := &planning.PlanOutput{
		DiffItems: []planning.DiffItem{
			{Key: "a", Classification: planning.Update, DesiredValue: "new", ExistingValue: strPtr("old")},
			{Key: "b", Classification: planning.Create, DesiredValue: "fresh"},
		},
		Conflicts: []planning.ConflictRecord{
			{Key: "c", ConflictingValues: []string{"x", "y"}, ResolutionStatus: "Unresolved"},
		},
		Totals: planning.PlanTotals{CreateCount: 1, UpdateCount: 1, ConflictCount: 1},
	}

	tests := []struct {
		name       string
		showValues bool
		desired    string
		existing   string
		conflict   string
	}{
		{name: "redacted", showValues: false, desired: redacted, existing: redacted, conflict: redacted},
		{name: "shown", showValues: true, desired: "new", existing: "old", conflict: "x"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "diff.json")
			require.NoError(t, WriteDiffReportJSON(path, out, "corr-1", tt.showValues))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			var got DiffReport
			require.NoError(t, json.Unmarshal(data, &got))

			assert.Equal(t, "corr-1", got.CorrelationID)
			assert.Equal(t, tt.showValues, got.ValuesShown)
			assert.Equal(t, tt.desired, got.DiffItems[0].DesiredValue)
			require.NotNil(t, got.DiffItems[0].ExistingValue)
			assert.Equal(t, tt.existing, *got.DiffItems[0].ExistingValue)
			assert.Nil(t, got.DiffItems[1].ExistingValue)
			assert.Equal(t, tt.conflict, got.Conflicts[0].ConflictingValues[0])
			assert.Equal(t, 1, got.Totals.ConflictCount)
		})
	}

	assert.Equal(t, "new", out.DiffItems[0].DesiredValue, "input must not be modified")
	assert.Equal(t, "x", out.Conflicts[0].ConflictingValues[0])
}

func TestNewDiffReportNilOutput(t *testing.T) {
	t.Parallel()

	r := NewDiffReport(nil, "corr", false)
	assert.Empty(t, r.DiffItems)
	assert.NotNil(t, r.Conflicts)
}

func TestRedactWriteReport(t *testing.T) {
	t.Parallel()

	rep := &writes.WriteReport{
		CorrelationID: "corr",
		Results: []writes.WriteResult{
			{Key: "a", Status: writes.StatusFailed, FailureReason: "rejected value hunter2 for password=hunter2"},
			{Key: "b", Status: writes.StatusSucceeded},
		},
	}

	clean := RedactWriteReport(rep, []string{"hunter2"})
	assert.NotContains(t, clean.Results[0].FailureReason, "hunter2")
	assert.Contains(t, clean.Results[0].FailureReason, redacted)
	assert.Empty(t, clean.Results[1].FailureReason)
	assert.Contains(t, rep.Results[0].FailureReason, "hunter2", "input must not be modified")

	path := filepath.Join(t.TempDir(), "apply.json")
	require.NoError(t, WriteWriteReportJSON(path, rep, []string{"hunter2"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
}

func TestWriteMappingRunJSON(t *testing.T) {
	t.Parallel()

	keys := mapping.NewKeyMap()
	keys.Set("app/db", "app-db")
	run := &mapping.Run{
		SpecificationID:      "spec",
		SpecificationVersion: "1",
		Status:               mapping.RunSucceeded,
		NormalizedKeys:       keys,
	}

	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, WriteMappingRunJSON(path, run, "corr-9"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "corr-9", got["correlationId"])
	assert.Equal(t, "spec", got["specificationId"])
	assert.Equal(t, map[string]interface{}{"app/db": "app-db"}, got["normalizedKeys"])
}

func TestValidateDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    DocumentKind
		doc     string
		wantErr string
	}{
		{name: "valid plan", kind: KindWritePlan, doc: `{"actions":[{"key":"a","actionType":"Create"}]}`},
		{name: "null actions", kind: KindWritePlan, doc: `{"actions":null}`},
		{name: "plan missing actions", kind: KindWritePlan, doc: `{}`, wantErr: "schema validation"},
		{name: "plan bad action type", kind: KindWritePlan, doc: `{"actions":[{"key":"a","actionType":"Delete"}]}`, wantErr: "schema validation"},
		{name: "plan empty key", kind: KindWritePlan, doc: `{"actions":[{"key":"","actionType":"Create"}]}`, wantErr: "schema validation"},
		{name: "rollback delete", kind: KindWritePlan, doc: `{"actions":[],"rollbackPlan":{"enabled":true,"actions":[{"key":"a","actionType":"Delete"}]}}`},
		{name: "plan with null optional fields", kind: KindWritePlan, doc: `{"planId":null,"actions":[{"key":"a","label":null,"actionType":"Create","desiredValue":null,"desiredContentType":null,"reason":null}],"rollbackPlan":{"enabled":true,"snapshotId":null,"actions":[{"key":"a","actionType":"Delete","desiredContentType":null}]}}`},
		{name: "plan null key", kind: KindWritePlan, doc: `{"actions":[{"key":null,"actionType":"Create"}]}`, wantErr: "schema validation"},
		{name: "desired null content type", kind: KindDesiredState, doc: `{"entries":[{"key":"a","label":null,"value":"v","contentType":null,"sourceId":null}]}`},
		{name: "existing null content type", kind: KindExistingState, doc: `{"entries":[{"key":"a","contentType":null}],"continuationToken":null}`},
		{name: "valid desired", kind: KindDesiredState, doc: `{"entries":[{"key":"a","label":"","value":"v"}]}`},
		{name: "desired entry without key", kind: KindDesiredState, doc: `{"entries":[{"value":"v"}]}`, wantErr: "schema validation"},
		{name: "valid existing", kind: KindExistingState, doc: `{"entries":[{"key":"a","tags":{"x":"y"}}]}`},
		{name: "existing negative page size", kind: KindExistingState, doc: `{"entries":[],"pageSize":-1}`, wantErr: "schema validation"},
		{name: "not json", kind: KindDesiredState, doc: `{`, wantErr: "Invalid desiredstate document"},
		{name: "unknown kind", kind: DocumentKind("other"), doc: `{}`, wantErr: "unknown document kind"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateDocument(tt.kind, []byte(tt.doc))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadStates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	desired := filepath.Join(dir, "desired.json")
	existing := filepath.Join(dir, "existing.json")
	require.NoError(t, os.WriteFile(desired, []byte(`{"entries":[{"key":"app/db","label":"prod","value":"v1"}]}`), 0o600))
	require.NoError(t, os.WriteFile(existing, []byte(`{"entries":[{"key":"app/db","label":"prod","value":"v0"}],"labels":["prod"]}`), 0o600))

	ds, err := ReadDesiredState(desired)
	require.NoError(t, err)
	require.Len(t, ds.Entries, 1)
	assert.Equal(t, "v1", ds.Entries[0].Value)

	es, err := ReadExistingState(existing)
	require.NoError(t, err)
	require.Len(t, es.Entries, 1)
	assert.Equal(t, []string{"prod"}, es.Labels)

	_, err = ReadDesiredState(filepath.Join(dir, "missing.json"))
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "not found")
}

func TestReadWritePlanNullContentTypes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plan.json")
	doc := `{"planId":"p1","actions":[` +
		`{"key":"app/db","label":"prod","actionType":"Update","desiredValue":"v1","desiredContentType":null,"reason":"ValueDiffers"},` +
		`{"key":"app/api","label":null,"actionType":"Skip","desiredValue":null,"desiredContentType":null,"reason":null}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	plan, err := ReadWritePlan(path)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, "", plan.Actions[0].DesiredContentType)
	assert.Equal(t, "v1", plan.Actions[0].DesiredValue)
	assert.Equal(t, "", plan.Actions[1].Label)
	assert.Equal(t, "", plan.Actions[1].Reason)
}
