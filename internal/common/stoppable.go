package common

import (
	"context"
	"time"
)

// Stoppable is implemented by services that own a background lifecycle
// (the Control API's HTTP server) and can be asked to wind down within a
// bounded deadline.
type Stoppable interface {
	Stop(ctx context.Context) error
}

// StopWithTimeout calls Stop on service bounded by timeout, used by
// cmd/server during graceful shutdown.
func StopWithTimeout(service Stoppable, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return service.Stop(ctx)
}
