package writes

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
)

func testOptions() Options {
	return Options{
		MaxParallelism: 2,
		RetryPolicy:    RetryPolicy{MaxAttempts: 2, BaseDelaySeconds: 1, MaxDelaySeconds: 1},
	}
}

func newTestExecutor(store Store, opts ...ExecutorOption) *Executor {
	opts = append([]ExecutorOption{WithRetryExecutor(instantRetry(nil))}, opts...)
	return NewExecutor(store, opts...)
}

func TestExecuteTotalsAsymmetry(t *testing.T) {
	t.Parallel()

	store := newMemStore(Setting{Key: "upd", Label: "prod", Value: "old"})
	store.failUpsert = func(s Setting) error {
		if s.Key == "new" {
			return errors.New("create rejected")
		}
		return nil
	}
	plan := &WritePlan{Actions: []WriteAction{
		{Key: "new", Label: "prod", ActionType: ActionCreate, DesiredValue: "n"},
		{Key: "upd", Label: "prod", ActionType: ActionUpdate, DesiredValue: "u"},
		{Key: "same", Label: "prod", ActionType: ActionSkip, Reason: ReasonUnchanged},
	}}

	report, err := newTestExecutor(store).Execute(context.Background(), plan, testOptions())
	require.NoError(t, err)

	assert.Equal(t, WriteTotals{CreateCount: 1, UpdateCount: 1, SkipCount: 1, FailedCount: 1}, report.Totals)
	require.Len(t, report.Results, 3)

	byKey := map[string]WriteResult{}
	for _, r := range report.Results {
		byKey[r.Key] = r
	}
	assert.Equal(t, StatusFailed, byKey["new"].Status)
	assert.Equal(t, 2, byKey["new"].Attempts)
	assert.Equal(t, "create rejected", byKey["new"].FailureReason)
	assert.Equal(t, StatusSucceeded, byKey["upd"].Status)
	assert.Equal(t, StatusSkipped, byKey["same"].Status)
	assert.Equal(t, 0, byKey["same"].Attempts)

	got, ok := store.get("upd", "prod")
	require.True(t, ok)
	assert.Equal(t, "u", got.Value)
	assert.NotEmpty(t, report.CorrelationID)
}

func TestExecuteSortsResults(t *testing.T) {
	t.Parallel()

	plan := &WritePlan{Actions: []WriteAction{
		{Key: "c", ActionType: ActionCreate},
		{Key: "b", ActionType: ActionSkip},
		{Key: "a", Label: "z", ActionType: ActionCreate},
		{Key: "a", Label: "y", ActionType: ActionCreate},
	}}

	report, err := newTestExecutor(newMemStore()).Execute(context.Background(), plan, testOptions())
	require.NoError(t, err)

	var got []string
	for _, r := range report.Results {
		got = append(got, r.Key+"/"+r.Label)
	}
	assert.Equal(t, []string{"a/y", "a/z", "b/", "c/"}, got)
}

type countingStore struct {
	*memStore
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *countingStore) Upsert(ctx context.Context, setting Setting) error {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return s.memStore.Upsert(ctx, setting)
}

func TestExecuteBoundsParallelism(t *testing.T) {
	t.Parallel()

	store := &countingStore{memStore: newMemStore()}
	var actions []WriteAction
	for _, k := range strings.Split("a b c d e f g h i j", " ") {
		actions = append(actions, WriteAction{Key: k, ActionType: ActionCreate, DesiredValue: k})
	}

	opts := testOptions()
	opts.MaxParallelism = 3
	report, err := newTestExecutor(store).Execute(context.Background(), &WritePlan{Actions: actions}, opts)
	require.NoError(t, err)

	assert.Len(t, report.Results, 10)
	assert.LessOrEqual(t, store.peak.Load(), int32(3))
	assert.Equal(t, 10, store.upserts)
}

func TestExecuteMergesManagedMetadata(t *testing.T) {
	t.Parallel()

	store := newMemStore(Setting{Key: "k", Label: "l", Value: "old", Tags: map[string]string{"owner": "team-a"}})
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	plan := &WritePlan{
		Actions:         []WriteAction{{Key: "k", Label: "l", ActionType: ActionUpdate, DesiredValue: "new"}},
		ManagedMetadata: &ManagedMetadata{Source: "kv2appconfig", Timestamp: &ts},
	}

	_, err := newTestExecutor(store).Execute(context.Background(), plan, testOptions())
	require.NoError(t, err)

	got, _ := store.get("k", "l")
	assert.Equal(t, map[string]string{
		"owner":     "team-a",
		"managedBy": "kv2appconfig",
		"managedAt": "2026-01-02T03:04:05Z",
	}, got.Tags)
}

func TestExecuteTagReadFailureIsIgnored(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.failGetTags = true
	plan := &WritePlan{
		Actions:         []WriteAction{{Key: "k", ActionType: ActionCreate, DesiredValue: "v"}},
		ManagedMetadata: &ManagedMetadata{Source: "kv2appconfig"},
	}

	report, err := newTestExecutor(store).Execute(context.Background(), plan, testOptions())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusSucceeded, report.Results[0].Status)

	got, _ := store.get("k", "")
	assert.Equal(t, map[string]string{"managedBy": "kv2appconfig"}, got.Tags)
}

func TestExecuteRollsBackFailedUpdate(t *testing.T) {
	t.Parallel()

	store := newMemStore(Setting{Key: "k", Label: "l", Value: "old", ContentType: "text/plain"})
	store.failUpsert = func(s Setting) error {
		if s.Value == "new" {
			return errors.New("write rejected")
		}
		return nil
	}
	plan := &WritePlan{
		Actions: []WriteAction{{Key: "k", Label: "l", ActionType: ActionUpdate, DesiredValue: "new"}},
		RollbackPlan: &RollbackPlan{Enabled: true, Actions: []WriteAction{
			{Key: "K", Label: "l", ActionType: ActionUpdate, DesiredValue: "old", DesiredContentType: "text/plain"},
		}},
	}
	opts := testOptions()
	opts.Rollback = true

	metrics := NewMetrics()
	report, err := newTestExecutor(store, WithMetrics(metrics)).Execute(context.Background(), plan, opts)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusRolledBack, report.Results[0].Status)
	assert.Empty(t, report.Results[0].FailureReason)
	assert.Equal(t, 0, report.Totals.FailedCount)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.rollbacksTotal.WithLabelValues("succeeded")))

	got, _ := store.get("k", "l")
	assert.Equal(t, "old", got.Value)
}

func TestExecuteRollbackDisabled(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.failUpsert = func(Setting) error { return errors.New("no") }
	plan := &WritePlan{
		Actions: []WriteAction{{Key: "k", ActionType: ActionCreate, DesiredValue: "v"}},
		RollbackPlan: &RollbackPlan{Enabled: true, Actions: []WriteAction{
			{Key: "k", ActionType: ActionDelete},
		}},
	}

	report, err := newTestExecutor(store).Execute(context.Background(), plan, testOptions())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.Equal(t, 0, store.deletes)
}

func TestExecuteCancellation(t *testing.T) {
	t.Parallel()

	store := &blockingStore{started: make(chan struct{})}
	plan := &WritePlan{Actions: []WriteAction{
		{Key: "a", ActionType: ActionCreate},
		{Key: "b", ActionType: ActionCreate},
		{Key: "c", ActionType: ActionCreate},
		{Key: "d", ActionType: ActionSkip},
	}}
	opts := testOptions()
	opts.MaxParallelism = 1

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-store.started
		cancel()
	}()

	report, err := newTestExecutor(store).Execute(ctx, plan, opts)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)

	require.Len(t, report.Results, 1)
	assert.Equal(t, "d", report.Results[0].Key)
	assert.Equal(t, StatusSkipped, report.Results[0].Status)
	assert.Equal(t, 0, report.Totals.FailedCount)
}

func TestExecuteInvalidArguments(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(newMemStore())
	_, err := e.Execute(context.Background(), nil, testOptions())
	assert.Error(t, err)

	opts := testOptions()
	opts.MaxParallelism = 0
	_, err = e.Execute(context.Background(), &WritePlan{}, opts)
	assert.Error(t, err)

	opts = testOptions()
	opts.RetryPolicy.MaxAttempts = 0
	_, err = e.Execute(context.Background(), &WritePlan{}, opts)
	assert.Error(t, err)
}

func TestExecuteEmitsEvents(t *testing.T) {
	t.Parallel()

	var out, events bytes.Buffer
	logger := logging.NewWithWriters(false, true, &out, &events)
	plan := &WritePlan{Actions: []WriteAction{{Key: "k", ActionType: ActionCreate, DesiredValue: "s3cr3t-value"}}}

	report, err := newTestExecutor(newMemStore(), WithLogger(logger)).Execute(context.Background(), plan, testOptions())
	require.NoError(t, err)

	assert.Contains(t, events.String(), `"event":"write.started"`)
	assert.Contains(t, events.String(), `"event":"write.completed"`)
	assert.Contains(t, events.String(), report.CorrelationID)
	assert.NotContains(t, events.String()+out.String(), "s3cr3t-value")
}

func TestExecuteUsesGivenCorrelationID(t *testing.T) {
	t.Parallel()

	var out, events bytes.Buffer
	logger := logging.NewWithWriters(false, true, &out, &events)
	plan := &WritePlan{Actions: []WriteAction{{Key: "k", ActionType: ActionCreate, DesiredValue: "v"}}}

	report, err := newTestExecutor(newMemStore(), WithLogger(logger), WithCorrelationID("run-42")).
		Execute(context.Background(), plan, testOptions())
	require.NoError(t, err)

	assert.Equal(t, "run-42", report.CorrelationID)
	assert.Contains(t, events.String(), `"correlationId":"run-42"`)
}
