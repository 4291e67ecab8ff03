package app

import (
	"context"
	"time"
)

// withRetry runs fn up to attempts times, doubling the delay between
// tries. Ledger writes are retryable-until-acknowledged: a transient
// storage failure should not silently drop a credit.
func withRetry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}

	return err
}
