package secretsource

import (
	"context"
	"time"
)

// NewInstantEnumerator returns an enumerator that records backoff delays
// instead of sleeping.
func NewInstantEnumerator(delays *[]time.Duration) *Enumerator {
	return &Enumerator{sleep: func(_ context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return nil
	}}
}
