package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/rishabhpatre/ai-news-agent/app/item"
)

const (
	DefaultAttempts  = 2
	DefaultBaseDelay = time.Second
	maxRetryDelay    = 30 * time.Second
)

// RetryPolicy controls how often a failed fetch is repeated inside the
// per-source timeout. Attempts counts the first call.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: DefaultAttempts, BaseDelay: DefaultBaseDelay}
}

// delay doubles per attempt and is capped at 30s.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if d <= 0 || d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

type fetchFunc func(ctx context.Context) ([]item.Raw, error)

// withRetry stops early when the next backoff would not fit in what is left
// of the context deadline, returning the last error seen.
func withRetry(ctx context.Context, policy RetryPolicy, fn fetchFunc) ([]item.Raw, int, error) {
	attempts := max(policy.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		items, err := fn(ctx)
		if err == nil {
			return items, attempt, nil
		}
		lastErr = err

		if attempt == attempts {
			if attempts > 1 {
				return nil, attempt, fmt.Errorf("failed after %d attempts: %w", attempts, err)
			}
			return nil, attempt, err
		}
		if ctx.Err() != nil {
			return nil, attempt, lastErr
		}

		delay := policy.delay(attempt)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= delay {
			return nil, attempt, lastErr
		}

		select {
		case <-ctx.Done():
			return nil, attempt, lastErr
		case <-time.After(delay):
		}
	}

	return nil, attempts, lastErr
}
