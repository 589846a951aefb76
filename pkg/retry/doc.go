// Package retry provides bounded retry logic with exponential backoff and
// jitter strategies.
//
// Key Features:
//   - Multiple jitter strategies (None, Equal, Decorrelated)
//   - Configurable attempt limits and delay bounds
//   - Caller-supplied retryability classification
//   - Observability hooks (OnRetry callback)
//   - Testability support (timer abstraction)
//
// Basic Usage:
//
//	err := retry.WithAttempts(ctx, 5, func(ctx context.Context) error {
//	    return someTransientOperation(ctx)
//	})
//
// Custom Classification:
//
//	config := retry.Config{
//	    MaxAttempts:  5,
//	    InitialDelay: 100 * time.Millisecond,
//	    MaxDelay:     time.Second,
//	}
//	err := retry.DoWithRetryable(ctx, config, fn, func(err error) bool {
//	    return isContention(err)
//	})
//	if retry.Exhausted(err) {
//	    // every attempt failed with a retryable error
//	}
//
// Non-retryable errors are returned to the caller unchanged and immediately;
// only errors the classifier accepts consume additional attempts.
package retry
