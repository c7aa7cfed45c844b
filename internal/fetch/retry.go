package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonathan/propoto-agents/internal/apierr"
)

// RetryPolicy bounds how often and how quickly a failing call is repeated.
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used for agent tool calls: three attempts, waiting 2s then up to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, InitialInterval: 2 * time.Second, MaxInterval: 10 * time.Second}
}

// Retry runs op until it succeeds, the policy is exhausted, or ctx is done, and returns the
// last error from op. Errors classified as non-retryable (an *apierr.Error with Retryable
// unset, or a 4xx *StatusError other than 408/429) stop retrying immediately.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = 0

	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(policy.Attempts-1)), ctx)

	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if e, ok := apierr.As(err); ok && !e.Retryable {
			return backoff.Permanent(err)
		}
		var status *StatusError
		if errors.As(err, &status) && status.StatusCode >= 400 && status.StatusCode < 500 &&
			status.StatusCode != 408 && status.StatusCode != 429 {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}
