package writes

import (
	"context"
	"time"
)

// ActionType is what a write action does to the store.
type ActionType string

const (
	ActionCreate ActionType = "Create"
	ActionUpdate ActionType = "Update"
	ActionSkip   ActionType = "Skip"
	// ActionDelete only appears in rollback plans.
	ActionDelete ActionType = "Delete"
)

// Status is the outcome of one action.
type Status string

const (
	StatusSucceeded  Status = "Succeeded"
	StatusFailed     Status = "Failed"
	StatusSkipped    Status = "Skipped"
	StatusRolledBack Status = "RolledBack"
)

// WriteAction is one planned write.
type WriteAction struct {
	Key                string     `json:"key"`
	Label              string     `json:"label"`
	ActionType         ActionType `json:"actionType"`
	DesiredValue       string     `json:"desiredValue"`
	DesiredContentType string     `json:"desiredContentType,omitempty"`
	Reason             string     `json:"reason"`
}

// LabelContext controls how unlabelled entries are labelled.
type LabelContext struct {
	EnvironmentLabel         string `json:"environmentLabel,omitempty"`
	UseEmptyLabelWhenMissing bool   `json:"useEmptyLabelWhenMissing"`
}

// DefaultLabelContext leaves unlabelled entries unlabelled.
func DefaultLabelContext() LabelContext {
	return LabelContext{UseEmptyLabelWhenMissing: true}
}

// ManagedMetadata is stamped onto every written setting as tags.
type ManagedMetadata struct {
	Source         string            `json:"source,omitempty"`
	Timestamp      *time.Time        `json:"timestamp,omitempty"`
	AdditionalTags map[string]string `json:"additionalTags,omitempty"`
}

// RollbackPlan holds the action that reverts each planned write.
type RollbackPlan struct {
	Enabled    bool          `json:"enabled"`
	SnapshotID string        `json:"snapshotId,omitempty"`
	Actions    []WriteAction `json:"actions"`
}

// WritePlan is the ordered list of actions for one run.
type WritePlan struct {
	PlanID          string           `json:"planId,omitempty"`
	GeneratedAt     time.Time        `json:"generatedAt"`
	Actions         []WriteAction    `json:"actions"`
	LabelContext    LabelContext     `json:"labelContext"`
	ManagedMetadata *ManagedMetadata `json:"managedMetadata,omitempty"`
	RollbackPlan    *RollbackPlan    `json:"rollbackPlan,omitempty"`
}

// Counts returns the number of actions of each type.
func (p *WritePlan) Counts() (create, update, skip int) {
	for _, a := range p.Actions {
		switch a.ActionType {
		case ActionCreate:
			create++
		case ActionUpdate:
			update++
		case ActionSkip:
			skip++
		}
	}
	return create, update, skip
}

// WriteResult is the outcome of one action.
type WriteResult struct {
	Key           string `json:"key"`
	Label         string `json:"label"`
	Status        Status `json:"status"`
	Attempts      int    `json:"attempts"`
	RetryCount    int    `json:"retryCount"`
	FailureReason string `json:"failureReason,omitempty"`
}

// WriteTotals summarises a report. Create, Update and Skip come from the
// plan; Failed comes from the results.
type WriteTotals struct {
	CreateCount int `json:"createCount"`
	UpdateCount int `json:"updateCount"`
	SkipCount   int `json:"skipCount"`
	FailedCount int `json:"failedCount"`
}

// WriteReport is the outcome of executing a plan.
type WriteReport struct {
	CorrelationID string        `json:"correlationId"`
	StartedAt     time.Time     `json:"startedAt"`
	CompletedAt   time.Time     `json:"completedAt"`
	Results       []WriteResult `json:"results"`
	Totals        WriteTotals   `json:"totals"`
}

// Setting is a configuration store entry as written.
type Setting struct {
	Key         string
	Label       string
	Value       string
	ContentType string
	Tags        map[string]string
}

// Store is the write side of a configuration store.
type Store interface {
	GetTags(ctx context.Context, key, label string) (map[string]string, error)
	Upsert(ctx context.Context, setting Setting) error
	Delete(ctx context.Context, key, label string) error
}
