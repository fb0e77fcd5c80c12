/**
 * @description
 * Exponential backoff for RPC calls: initial 500ms, factor 2, capped at 30s,
 * at most 6 attempts. Ported from the retry-loop shape used elsewhere in the
 * corpus for websocket reconnects, generalized into the reusable withRetry
 * helper instead of being folded directly into the dial loop.
 *
 * @dependencies
 * - standard "context", "time"
 */

package chain

import (
	"context"
	"time"
)

const (
	retryInitialDelay = 500 * time.Millisecond
	retryFactor       = 2
	retryMaxDelay     = 30 * time.Second
	retryMaxAttempts  = 6
)

// withRetry runs fn until it succeeds, ctx is cancelled, or the attempt
// budget is exhausted. The last error is returned on exhaustion.
func withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := retryInitialDelay
	var lastErr error

	for attempt := 1; attempt <= retryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == retryMaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= retryFactor
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}

	return lastErr
}
