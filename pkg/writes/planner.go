package writes

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
)

// Reasons attached to write actions.
const (
	ReasonConflict  = "Conflict: multiple desired entries for key/label"
	ReasonUnchanged = "Unchanged"
)

// Planner converts desired state into a WritePlan.
type Planner struct {
	now func() time.Time
}

// NewPlanner returns a planner using the wall clock.
func NewPlanner() *Planner {
	return &Planner{now: time.Now}
}

// Plan builds one action per desired entry, in (key, label, value) order.
func (p *Planner) Plan(
	ctx context.Context,
	desired *planning.DesiredState,
	existing *planning.ExistingSnapshot,
	lc LabelContext,
	meta *ManagedMetadata,
) (*WritePlan, error) {
	if desired == nil {
		return nil, dserrors.InvalidArgument("desired state")
	}
	if existing == nil {
		return nil, dserrors.InvalidArgument("existing state")
	}

	lookup := make(map[planning.Identity]planning.ExistingEntry, len(existing.Entries))
	for _, e := range existing.Entries {
		id := planning.IdentityOf(e.Key, e.Label)
		if _, ok := lookup[id]; !ok {
			lookup[id] = e
		}
	}

	ordered := make([]planning.DesiredEntry, len(desired.Entries))
	copy(ordered, desired.Entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return planning.CompareEntries(ordered[i].Key, ordered[i].Label, ordered[i].Value,
			ordered[j].Key, ordered[j].Label, ordered[j].Value) < 0
	})

	counts := make(map[planning.Identity]int, len(ordered))
	for _, entry := range ordered {
		counts[planning.IdentityOf(entry.Key, ResolveLabel(entry, lc))]++
	}

	actions := make([]WriteAction, 0, len(ordered))
	for _, entry := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		label := ResolveLabel(entry, lc)
		id := planning.IdentityOf(entry.Key, label)
		action := WriteAction{
			Key:                entry.Key,
			Label:              label,
			DesiredValue:       entry.Value,
			DesiredContentType: entry.ContentType,
		}

		current, found := lookup[id]
		switch {
		case counts[id] > 1:
			action.ActionType = ActionSkip
			action.Reason = ReasonConflict
		case !found:
			action.ActionType = ActionCreate
			action.Reason = planning.ReasonMissing
		case entry.Value == current.Value && entry.ContentType == current.ContentType:
			action.ActionType = ActionSkip
			action.Reason = ReasonUnchanged
		case entry.Value == current.Value:
			action.ActionType = ActionUpdate
			action.Reason = planning.ReasonContentTypeDiffers
		default:
			action.ActionType = ActionUpdate
			action.Reason = planning.ReasonValueDiffers
		}
		actions = append(actions, action)
	}

	return &WritePlan{
		PlanID:          strings.ReplaceAll(uuid.New().String(), "-", ""),
		GeneratedAt:     p.now().UTC(),
		Actions:         actions,
		LabelContext:    lc,
		ManagedMetadata: meta,
	}, nil
}

// BuildRollbackPlan derives the revert of every Create and Update in plan
// from the snapshot the plan was built against. Updates restore the
// previous value; creates are deleted.
func BuildRollbackPlan(plan *WritePlan, existing *planning.ExistingSnapshot) *RollbackPlan {
	rb := &RollbackPlan{Enabled: true, Actions: []WriteAction{}}
	if plan == nil {
		return rb
	}

	lookup := make(map[planning.Identity]planning.ExistingEntry)
	if existing != nil {
		rb.SnapshotID = existing.SnapshotID
		for _, e := range existing.Entries {
			id := planning.IdentityOf(e.Key, e.Label)
			if _, ok := lookup[id]; !ok {
				lookup[id] = e
			}
		}
	}

	for _, a := range plan.Actions {
		switch a.ActionType {
		case ActionCreate:
			rb.Actions = append(rb.Actions, WriteAction{
				Key:        a.Key,
				Label:      a.Label,
				ActionType: ActionDelete,
				Reason:     "Rollback: remove created setting",
			})
		case ActionUpdate:
			previous, ok := lookup[planning.IdentityOf(a.Key, a.Label)]
			if !ok {
				rb.Actions = append(rb.Actions, WriteAction{
					Key:        a.Key,
					Label:      a.Label,
					ActionType: ActionSkip,
					Reason:     "Rollback: previous value unknown",
				})
				continue
			}
			rb.Actions = append(rb.Actions, WriteAction{
				Key:                a.Key,
				Label:              a.Label,
				ActionType:         ActionUpdate,
				DesiredValue:       previous.Value,
				DesiredContentType: previous.ContentType,
				Reason:             "Rollback: restore previous value",
			})
		}
	}
	return rb
}
