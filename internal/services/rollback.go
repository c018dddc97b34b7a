package services

import (
	"context"
	"time"
)

const rollbackTimeout = 5 * time.Second

// rollbackContext keeps the request's values but not its cancellation, so a
// compensating write still runs after the request deadline has passed.
func rollbackContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
}
