package writes

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
)

// Options controls one plan execution.
type Options struct {
	MaxParallelism int
	RetryPolicy    RetryPolicy
	// Rollback enables the plan's rollback actions for failed writes.
	Rollback bool
}

// DefaultOptions returns parallelism 4, the default retry policy and no
// rollback.
func DefaultOptions() Options {
	return Options{MaxParallelism: 4, RetryPolicy: DefaultRetryPolicy()}
}

// Executor applies a WritePlan to a Store.
type Executor struct {
	store    Store
	retry    *RetryExecutor
	rollback *RollbackHandler
	logger   *logging.Logger
	metrics  *Metrics
	corrID   string
	now      func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger used for per-action events.
func WithLogger(l *logging.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics records outcomes into m.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithCorrelationID tags the report and its events with id instead of a
// fresh one.
func WithCorrelationID(id string) ExecutorOption {
	return func(e *Executor) { e.corrID = id }
}

// WithRetryExecutor replaces the retry executor.
func WithRetryExecutor(r *RetryExecutor) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// NewExecutor returns an executor writing to store.
func NewExecutor(store Store, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:    store,
		retry:    NewRetryExecutor(),
		rollback: NewRollbackHandler(store),
		logger:   logging.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every non-Skip action in plan with at most
// opts.MaxParallelism writes in flight. Per-action failures are reported in
// the WriteReport. A cancelled ctx stops scheduling; results already
// finished are returned together with ctx.Err().
func (e *Executor) Execute(ctx context.Context, plan *WritePlan, opts Options) (*WriteReport, error) {
	if plan == nil {
		return nil, dserrors.InvalidArgument("write plan")
	}
	if opts.MaxParallelism < 1 {
		return nil, dserrors.InvalidArgument("max parallelism")
	}
	if err := opts.RetryPolicy.Validate(); err != nil {
		return nil, err
	}

	correlationID := e.corrID
	if correlationID == "" {
		correlationID = logging.NewCorrelationID()
	}
	report := &WriteReport{
		CorrelationID: correlationID,
		StartedAt:     e.now().UTC(),
	}
	e.logger.Event(report.CorrelationID, "write.started", map[string]string{
		"planId":  plan.PlanID,
		"actions": strconv.Itoa(len(plan.Actions)),
	})

	var (
		results   []WriteResult
		resultsMu sync.Mutex
		wg        sync.WaitGroup
	)
	record := func(a WriteAction, r WriteResult) {
		resultsMu.Lock()
		results = append(results, r)
		resultsMu.Unlock()
		e.metrics.RecordResult(a.ActionType, r)
	}

	pending := make([]WriteAction, 0, len(plan.Actions))
	for _, a := range plan.Actions {
		if a.ActionType == ActionSkip {
			record(a, WriteResult{Key: a.Key, Label: a.Label, Status: StatusSkipped})
			continue
		}
		pending = append(pending, a)
	}

	semaphore := make(chan struct{}, opts.MaxParallelism)

schedule:
	for _, a := range pending {
		select {
		case <-ctx.Done():
			break schedule
		case semaphore <- struct{}{}:
		}
		if ctx.Err() != nil {
			<-semaphore
			break
		}

		wg.Add(1)
		go func(action WriteAction) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result, err := e.retry.Execute(ctx, action, opts.RetryPolicy, func(ctx context.Context) error {
				return e.write(ctx, action, plan.ManagedMetadata)
			})
			if err != nil {
				// Cancelled; the action is left out of the report.
				return
			}
			e.logger.Debug("%s %s [%s] -> %s (attempts=%d)", action.ActionType, action.Key, action.Label, result.Status, result.Attempts)
			record(action, result)
		}(a)
	}
	wg.Wait()

	if opts.Rollback && plan.RollbackPlan != nil && len(plan.RollbackPlan.Actions) > 0 && ctx.Err() == nil {
		e.applyRollback(ctx, plan.RollbackPlan, results)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return planning.CompareEntries(results[i].Key, results[i].Label, "", results[j].Key, results[j].Label, "") < 0
	})

	create, update, skip := plan.Counts()
	report.Results = results
	report.Totals = WriteTotals{CreateCount: create, UpdateCount: update, SkipCount: skip}
	for _, r := range results {
		if r.Status == StatusFailed {
			report.Totals.FailedCount++
		}
	}
	report.CompletedAt = e.now().UTC()
	e.metrics.ObserveRun(report.CompletedAt.Sub(report.StartedAt).Seconds())

	e.logger.Event(report.CorrelationID, "write.completed", map[string]string{
		"results": strconv.Itoa(len(results)),
		"failed":  strconv.Itoa(report.Totals.FailedCount),
	})

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (e *Executor) write(ctx context.Context, action WriteAction, meta *ManagedMetadata) error {
	// Tags are read best-effort; a failed read counts as no tags.
	tags, err := e.store.GetTags(ctx, action.Key, action.Label)
	if err != nil {
		tags = nil
	}
	if meta != nil {
		tags = ApplyManagedMetadata(tags, *meta)
	}
	return e.store.Upsert(ctx, Setting{
		Key:         action.Key,
		Label:       action.Label,
		Value:       action.DesiredValue,
		ContentType: action.DesiredContentType,
		Tags:        tags,
	})
}

func (e *Executor) applyRollback(ctx context.Context, rb *RollbackPlan, results []WriteResult) {
	lookup := make(map[planning.Identity]WriteAction, len(rb.Actions))
	for _, a := range rb.Actions {
		id := planning.IdentityOf(a.Key, a.Label)
		if _, ok := lookup[id]; !ok {
			lookup[id] = a
		}
	}

	for i := range results {
		if results[i].Status != StatusFailed {
			continue
		}
		action, ok := lookup[planning.IdentityOf(results[i].Key, results[i].Label)]
		if !ok {
			continue
		}
		rolledBack, err := e.rollback.TryRollback(ctx, &results[i], action)
		if err != nil {
			e.logger.Warn("rollback of %s [%s] failed: %v", results[i].Key, results[i].Label, err)
		}
		if action.ActionType != ActionSkip {
			e.metrics.RecordRollback(rolledBack)
		}
	}
}
