package contexthelper

import (
	"context"
	"time"
)

// CheckCancellation checks if the context is cancelled.
// If the context is cancelled, it returns ErrContextCancelled.
func CheckCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Detach returns a context that keeps ctx's values but not its cancellation,
// bounded by timeout. Used for best-effort work that must outlive a request.
func Detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
