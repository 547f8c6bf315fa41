package domain

import "time"

// RetryPolicy fixes the retry/dead-letter behavior of the pipeline.
type RetryPolicy struct {
	// MaxRetries is the number of re-attempts after the initial one. A job
	// whose retry count exceeds it is dead-lettered.
	MaxRetries int
	// InitialBackoff is the delay before the first retry; each further retry
	// doubles it.
	InitialBackoff time.Duration
}

// DefaultRetryPolicy returns the fleet defaults: three retries at 2s/4s/8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialBackoff: 2 * time.Second}
}

// BackoffDelay returns the requeue delay before retry attempt n (1-based):
// 2^(n-1) times the initial backoff.
func (p RetryPolicy) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.InitialBackoff << uint(attempt-1)
}

// Exhausted reports whether the given retry count is past the policy limit.
func (p RetryPolicy) Exhausted(retryCount int) bool {
	return retryCount > p.MaxRetries
}
