package testutil

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// Epoch is the start time of fake clocks created by NewFakeClock.
var Epoch = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

// NewFakeClock returns a controllable clock set to Epoch.
func NewFakeClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(Epoch)
}

// AwaitWaiters blocks until exactly n timers are pending on clock.
func AwaitWaiters(t testing.TB, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx := Context(t, 0)
	if err := clock.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for %d pending timers: %v", n, err)
	}
}

// AdvanceWhenBlocked waits for n pending timers, then advances clock by d.
func AdvanceWhenBlocked(t testing.TB, clock *clockwork.FakeClock, n int, d time.Duration) {
	t.Helper()
	AwaitWaiters(t, clock, n)
	clock.Advance(d)
}

// Since returns the elapsed fake time from Epoch.
func Since(clock clockwork.Clock) time.Duration {
	return clock.Since(Epoch)
}
