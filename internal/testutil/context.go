package testutil

import (
	"context"
	"testing"
	"time"
)

// DefaultTimeout bounds unit tests that block on goroutines or fake clocks.
const DefaultTimeout = 5 * time.Second

// Context returns a context that ends after timeout or with the test.
// A non-positive timeout uses DefaultTimeout.
func Context(t testing.TB, timeout time.Duration) context.Context {
	t.Helper()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if dt, ok := t.(interface{ Deadline() (time.Time, bool) }); ok {
		if deadline, ok := dt.Deadline(); ok {
			if remaining := time.Until(deadline) - time.Second; remaining > 0 && remaining < timeout {
				timeout = remaining
			}
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CanceledContext returns a context that has already been canceled.
func CanceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
