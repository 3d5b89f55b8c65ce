package worker

import (
	"time"

	"github.com/hibiken/asynq"
)

// BackoffKind selects how retry delays grow between attempts.
type BackoffKind string

const (
	BackoffExponential BackoffKind = "exponential"
	BackoffLinear      BackoffKind = "linear"
	BackoffFixed       BackoffKind = "fixed"
)

// RetryPolicy is the queue-agnostic retry configuration for a job class.
// MaxAttempts counts the first run, so 3 attempts means 2 retries.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffKind BackoffKind
}

// DefaultRetryPolicy matches the pipeline default: 3 attempts, exponential
// backoff starting at 60 seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BackoffBase: 60 * time.Second,
		BackoffKind: BackoffExponential,
	}
}

// Delay returns the wait before retry number n (0-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	base := p.BackoffBase
	if base <= 0 {
		base = 60 * time.Second
	}

	switch p.BackoffKind {
	case BackoffFixed:
		return base
	case BackoffLinear:
		return base * time.Duration(n+1)
	default:
		return base * time.Duration(1<<n)
	}
}

// Options translates the policy into asynq task options. No retention is set
// on recurring tenant tasks: their deterministic task IDs must free up as
// soon as a run finishes so the next tick can enqueue.
func (p RetryPolicy) Options() []asynq.Option {
	maxRetry := p.MaxAttempts - 1
	if maxRetry < 0 {
		maxRetry = 0
	}
	return []asynq.Option{
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(10 * time.Minute),
	}
}

// makeRetryDelayFunc adapts the per-class policies to asynq's retry hook.
func makeRetryDelayFunc(policies map[string]RetryPolicy) asynq.RetryDelayFunc {
	return func(n int, err error, task *asynq.Task) time.Duration {
		if policy, ok := policies[task.Type()]; ok {
			return policy.Delay(n)
		}
		return DefaultRetryPolicy().Delay(n)
	}
}
