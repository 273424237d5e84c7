package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/models"
)

// DefaultTimeout bounds every database unit of work when no timeout is configured
const DefaultTimeout = 5 * time.Second

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// classify passes domain errors through and turns an expired deadline into a
// retryable timeout. Anything else is returned unchanged for the caller to wrap.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := models.AsError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.Wrap(models.ErrTimeout, err)
	}
	return err
}

// reason is the metric label for a failure
func reason(err error) string {
	if e, ok := models.AsError(err); ok {
		return e.Code
	}
	return "internal"
}
