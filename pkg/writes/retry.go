package writes

import (
	"context"
	"fmt"
	"time"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// RetryPolicy bounds the attempts made for one action.
type RetryPolicy struct {
	MaxAttempts      int `json:"maxAttempts" yaml:"max_attempts"`
	BaseDelaySeconds int `json:"baseDelaySeconds" yaml:"base_delay_seconds"`
	MaxDelaySeconds  int `json:"maxDelaySeconds" yaml:"max_delay_seconds"`
}

// DefaultRetryPolicy is three attempts, one second base delay, ten second cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelaySeconds: 1, MaxDelaySeconds: 10}
}

// Validate checks every bound is at least one.
func (p RetryPolicy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be at least 1", dserrors.ErrInvalidArgument)
	case p.BaseDelaySeconds < 1:
		return fmt.Errorf("%w: base delay must be at least 1 second", dserrors.ErrInvalidArgument)
	case p.MaxDelaySeconds < 1:
		return fmt.Errorf("%w: max delay must be at least 1 second", dserrors.ErrInvalidArgument)
	}
	return nil
}

// Delay returns the wait after the given failed attempt:
// min(MaxDelaySeconds, BaseDelaySeconds*2^(attempt-1)) seconds.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	seconds := p.BaseDelaySeconds
	for i := 1; i < attempt && seconds < p.MaxDelaySeconds; i++ {
		seconds *= 2
	}
	if seconds > p.MaxDelaySeconds {
		seconds = p.MaxDelaySeconds
	}
	return time.Duration(seconds) * time.Second
}

// Operation is one write attempt.
type Operation func(ctx context.Context) error

// RetryExecutor runs an operation under a RetryPolicy.
type RetryExecutor struct {
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor returns an executor that sleeps on the wall clock.
func NewRetryExecutor() *RetryExecutor {
	return &RetryExecutor{sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute attempts op until it succeeds or the policy is exhausted. Failure
// is reported in the result. The error is non-nil only when ctx was
// cancelled, in which case no result is produced.
func (r *RetryExecutor) Execute(ctx context.Context, action WriteAction, policy RetryPolicy, op Operation) (WriteResult, error) {
	if op == nil {
		return WriteResult{}, dserrors.InvalidArgument("operation")
	}
	if err := policy.Validate(); err != nil {
		return WriteResult{}, err
	}

	result := WriteResult{Key: action.Key, Label: action.Label}
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return WriteResult{}, err
		}
		result.Attempts = attempt

		lastErr = op(ctx)
		if lastErr == nil {
			result.Status = StatusSucceeded
			result.RetryCount = attempt - 1
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			return WriteResult{}, err
		}
		if attempt == policy.MaxAttempts {
			break
		}
		if err := r.sleep(ctx, policy.Delay(attempt)); err != nil {
			return WriteResult{}, err
		}
	}

	result.Status = StatusFailed
	result.RetryCount = result.Attempts - 1
	result.FailureReason = lastErr.Error()
	return result, nil
}
