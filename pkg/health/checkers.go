package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is the subset of a connection pool the database probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck returns a readiness probe over a connection pool.
func DatabaseCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return db.Ping(ctx)
	}
}

// GoroutineCountCheck returns a liveness probe that fails when the goroutine
// count exceeds the threshold, catching leaks in the sweep or request paths.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}
