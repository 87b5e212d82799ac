package ratelimiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"polibase/internal/testutil"
)

// runWithTimeout fails the test if fn does not complete within timeout.
func runWithTimeout(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	ctx := testutil.Context(t, timeout)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-ctx.Done():
		t.Fatalf("test timed out")
	case <-done:
	}
}

// waitFor waits for a signal on ch or fails after timeout.
func waitFor(t *testing.T, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	ctx := testutil.Context(t, timeout)
	select {
	case <-ctx.Done():
		t.Fatalf("timeout waiting for signal")
	case <-ch:
	}
}

// recordingObserver captures admission events.
type recordingObserver struct {
	mu       sync.Mutex
	admits   []RequestRecord
	waits    []Decision
	canceled []string
}

func (o *recordingObserver) OnAdmit(rec RequestRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.admits = append(o.admits, rec)
}

func (o *recordingObserver) OnWait(_ string, d Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.waits = append(o.waits, d)
}

func (o *recordingObserver) OnCancel(endpoint string, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.canceled = append(o.canceled, endpoint)
}

func (o *recordingObserver) admitted() []RequestRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]RequestRecord(nil), o.admits...)
}

func (o *recordingObserver) lastWait() (Decision, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.waits) == 0 {
		return Decision{}, false
	}
	return o.waits[len(o.waits)-1], true
}

// newTestGate builds a gate on a fake clock with a recording observer.
func newTestGate(t *testing.T, tiers ...Tier) (*Gate, *clockwork.FakeClock, *recordingObserver) {
	t.Helper()
	clock := testutil.NewFakeClock()
	obs := &recordingObserver{}
	gate, err := New(Config{Tiers: tiers, SafetyMargin: DefaultSafetyMargin}, WithClock(clock), WithObserver(obs))
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	t.Cleanup(func() {
		_ = gate.Shutdown(testutil.Context(t, time.Second))
	})
	return gate, clock, obs
}

// admitAsync runs AwaitAdmission in a goroutine and returns its result channel.
func admitAsync(gate *Gate, ctx context.Context, endpoint string) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- gate.AwaitAdmission(ctx, endpoint)
	}()
	return ch
}
