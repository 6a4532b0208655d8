package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds fn to the given budget. fn runs on its own goroutine
// with a context that is cancelled when the budget expires, so a cooperative
// fn stops shortly after the caller gets its error. A budget of zero or less
// disables the limit. Errors from an expired budget wrap
// context.DeadlineExceeded; name is carried in the error text so callers can
// tell which bounded operation blew it.
func WithTimeout(parent context.Context, budget time.Duration, name string, fn func(ctx context.Context) error) error {
	if budget <= 0 {
		return fn(parent)
	}

	ctx, cancel := context.WithTimeout(parent, budget)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- fn(ctx)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if parent.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, parent.Err())
		}
		return fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, budget)
	}
}
