package planning

import (
	"strconv"
	"strings"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// ScopeError reports a bad scope argument.
type ScopeError struct {
	Field   string
	Message string
}

func (e ScopeError) Error() string {
	return e.Field + ": " + e.Message
}

// Scope narrows an existing snapshot the way a paged store listing would.
type Scope struct {
	KeyPrefix         string
	Labels            []string
	PageSize          int
	ContinuationToken string
}

// ApplyScope filters a file-based snapshot by key prefix and labels, then
// pages it. The continuation token is an entry offset; the returned snapshot
// carries the offset of the next page, empty on the last one.
func ApplyScope(snapshot *ExistingSnapshot, scope Scope) (*ExistingSnapshot, error) {
	if snapshot == nil {
		return nil, dserrors.InvalidArgument("existing state")
	}

	labels := NormalizeLabels(scope.Labels)
	var entries []ExistingEntry
	for _, e := range snapshot.Entries {
		if scope.KeyPrefix != "" && !strings.HasPrefix(strings.ToLower(e.Key), strings.ToLower(scope.KeyPrefix)) {
			continue
		}
		if len(labels) > 0 && !containsFold(labels, e.Label) {
			continue
		}
		entries = append(entries, e)
	}

	offset := 0
	if strings.TrimSpace(scope.ContinuationToken) != "" {
		var err error
		offset, err = strconv.Atoi(strings.TrimSpace(scope.ContinuationToken))
		if err != nil || offset < 0 {
			return nil, ScopeError{Field: "continuation-token", Message: "Must be a non-negative integer for file-based inputs."}
		}
		if offset > len(entries) {
			offset = len(entries)
		}
		entries = entries[offset:]
	}

	next := ""
	if scope.PageSize > 0 && len(entries) > scope.PageSize {
		entries = entries[:scope.PageSize]
		next = strconv.Itoa(offset + scope.PageSize)
	}

	return &ExistingSnapshot{
		SnapshotID:        snapshot.SnapshotID,
		Entries:           entries,
		RetrievedAt:       snapshot.RetrievedAt,
		KeyPrefix:         scope.KeyPrefix,
		Labels:            labels,
		PageSize:          scope.PageSize,
		ContinuationToken: next,
	}, nil
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
