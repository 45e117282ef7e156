package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxRetries = 3

// httpStatusError marks a non-2xx response so the retry policy can
// tell transient server failures from permanent client errors.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("bad status %d: %s", e.status, e.body)
}

// transient reports whether the status is worth retrying:
// server errors and rate limiting, never other 4xx.
func (e *httpStatusError) transient() bool {
	return e.status >= 500 || e.status == http.StatusTooManyRequests
}

// withRetry runs op with up to maxRetries retries and exponential
// backoff. Network errors and transient HTTP statuses are retried;
// permanent failures and context cancellation stop immediately.
func withRetry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(newExponentialBackOff(), maxRetries), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if statusErr, ok := err.(*httpStatusError); ok && !statusErr.transient() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func newExponentialBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}
