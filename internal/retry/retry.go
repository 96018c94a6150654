package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"
)

// maxAttempts bounds remote-call retries (one initial attempt plus two
// retries), matching the pipeline's tolerance for transient API failures.
const maxAttempts = 3

// Do runs op with bounded exponential backoff. Transient failures (rate
// limits, server errors, timeouts) are retried up to maxAttempts; anything
// else stops immediately.
func Do(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 4 * time.Second
	policy.MaxInterval = 10 * time.Second

	return doWithBackOff(ctx, op, policy)
}

func doWithBackOff(ctx context.Context, op func() error, policy backoff.BackOff) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithMaxRetries(backoff.WithContext(policy, ctx), maxAttempts-1))
}

// IsTransient reports whether the error is worth retrying.
func IsTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
