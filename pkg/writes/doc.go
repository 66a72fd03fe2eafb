// Package writes turns desired state into configuration store writes and
// executes them.
//
// # Planning
//
// Planner compares desired entries with an existing snapshot after resolving
// each entry's label through a LabelContext. It produces one WriteAction per
// desired entry: Create when the store has no entry, Update when the value
// or content type differs, Skip when nothing changed. Entries that resolve to
// the same (key, label) are all skipped as conflicts, even when their values
// agree, because only one of them could be written.
//
// Note that the conflict check here runs on the resolved label, while
// planning.Engine checks the label written on the entry. An unlabelled entry
// and an entry labelled with the environment label are distinct to the diff
// and identical to the writer.
//
// # Execution
//
// Executor runs the non-Skip actions concurrently, at most MaxParallelism at
// a time, each through RetryExecutor:
//
//	report, err := writes.NewExecutor(store).Execute(ctx, plan, writes.Options{
//	    MaxParallelism: 4,
//	    RetryPolicy:    writes.DefaultRetryPolicy(),
//	    Rollback:       true,
//	})
//
// A failed attempt is retried after min(MaxDelaySeconds,
// BaseDelaySeconds*2^(attempt-1)) seconds. When rollback is enabled, each
// action that still failed is reverted once using the plan's RollbackPlan.
//
// The report's Create, Update and Skip totals count what the plan intended.
// FailedCount counts what actually failed after retries and rollback.
//
// Cancelling ctx stops new actions from starting and aborts in-flight
// attempts. Cancelled actions are absent from the report and are never
// counted as failures.
package writes
