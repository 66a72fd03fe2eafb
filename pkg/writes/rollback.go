package writes

import (
	"context"
	"fmt"
)

// RollbackHandler reverts a failed write with its rollback action.
type RollbackHandler struct {
	store Store
}

// NewRollbackHandler returns a handler writing to store.
func NewRollbackHandler(store Store) *RollbackHandler {
	return &RollbackHandler{store: store}
}

// TryRollback issues the rollback action once, without retries. On success
// the result becomes RolledBack and its failure reason is cleared. Skip
// actions cannot be rolled back and return false with no error.
func (h *RollbackHandler) TryRollback(ctx context.Context, result *WriteResult, action WriteAction) (bool, error) {
	if result == nil {
		return false, fmt.Errorf("rollback: nil result")
	}

	var err error
	switch action.ActionType {
	case ActionDelete:
		err = h.store.Delete(ctx, action.Key, action.Label)
	case ActionCreate, ActionUpdate:
		err = h.store.Upsert(ctx, Setting{
			Key:         action.Key,
			Label:       action.Label,
			Value:       action.DesiredValue,
			ContentType: action.DesiredContentType,
		})
	default:
		return false, nil
	}
	if err != nil {
		return false, err
	}

	result.Status = StatusRolledBack
	result.FailureReason = ""
	return true, nil
}
