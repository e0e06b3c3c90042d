package resilience

import (
	"context"
	"time"
)

// WithTimeout runs fn with a context bounded by d. A d of zero or less runs
// fn with ctx unchanged. The deadline error surfaces as fn's own error when
// fn honours context cancellation, which every collaborator in this codebase
// is required to do.
func WithTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(tctx)
}
