package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a derived context that is cancelled after
// the given limit and reports context.DeadlineExceeded when fn does not
// return in time. The analytics snapshot writer uses it so a slow
// database cannot stall the periodic save loop. A zero or negative
// limit disables the deadline. fn must honour its context: a function
// that ignores cancellation keeps its goroutine alive past the return.
func WithTimeout(ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", op, ctx.Err())
		}
		return fmt.Errorf("%s: %w (limit: %v)", op, context.DeadlineExceeded, limit)
	}
}
