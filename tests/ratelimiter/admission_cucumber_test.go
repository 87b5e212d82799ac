//go:build cucumber

package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/jonboulle/clockwork"

	"polibase/internal/testutil"
	"polibase/pkg/ratelimiter"
)

const stepTimeout = 2 * time.Second

// TestAdmissionFeatures executes the admission gate scenarios via godog.
func TestAdmissionFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "admission",
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("features", "admission.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeScenario wires step definitions for the admission scenarios.
func InitializeScenario(ctx *godog.ScenarioContext) {
	state := &admissionState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		return ctx, state.close()
	})

	ctx.Step(`^a gate with tiers "([^"]+)" and a safety margin of (\d+) seconds$`, state.givenGate)
	ctx.Step(`^request "([^"]+)" is admitted$`, state.admitNow)
	ctx.Step(`^the next admission must wait (\d+) seconds$`, state.nextWaitIs)
	ctx.Step(`^request "([^"]+)" waits for admission$`, state.startWaiting)
	ctx.Step(`^the clock advances (\d+) seconds$`, state.advance)
	ctx.Step(`^request "([^"]+)" is still waiting$`, state.stillWaiting)
	ctx.Step(`^request "([^"]+)" is admitted (\d+) seconds after the start$`, state.admittedAt)
	ctx.Step(`^the pending wait is (\d+) seconds bound by tier "([^"]+)"$`, state.pendingWait)
	ctx.Step(`^"([^"]+)" work is queued at (\w+) priority$`, state.queueWork)
	ctx.Step(`^the queue drains$`, state.drainQueue)
	ctx.Step(`^the work ran in order "([^"]+)"$`, state.ranInOrder)
	ctx.Step(`^request "([^"]+)" is cancelled$`, state.cancelRequest)
	ctx.Step(`^request "([^"]+)" failed with a cancellation$`, state.failedWithCancellation)
	ctx.Step(`^the (\w+) tier holds (\d+) admissions?$`, state.tierHolds)
}

// waiter tracks one in-flight AwaitAdmission call.
type waiter struct {
	cancel context.CancelFunc
	done   chan error
	err    error
	at     time.Time
}

// admissionState holds scenario state.
type admissionState struct {
	clock   *clockwork.FakeClock
	gate    *ratelimiter.Gate
	waits   *waitRecorder
	waiters map[string]*waiter
	tickets []*ratelimiter.Ticket

	mu  sync.Mutex
	ran []string
}

// waitRecorder keeps the last wait decision and admission times.
type waitRecorder struct {
	mu     sync.Mutex
	last   ratelimiter.Decision
	admits map[string]time.Time
}

func (r *waitRecorder) OnAdmit(rec ratelimiter.RequestRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admits[rec.Endpoint] = rec.Timestamp
}

func (r *waitRecorder) OnWait(_ string, d ratelimiter.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = d
}

func (r *waitRecorder) OnCancel(string, error) {}

func (r *waitRecorder) lastWait() ratelimiter.Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (s *admissionState) reset() {
	s.clock = testutil.NewFakeClock()
	s.gate = nil
	s.waits = &waitRecorder{admits: map[string]time.Time{}}
	s.waiters = map[string]*waiter{}
	s.tickets = nil
	s.mu.Lock()
	s.ran = nil
	s.mu.Unlock()
}

func (s *admissionState) close() error {
	for _, w := range s.waiters {
		w.cancel()
	}
	if s.gate == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	return s.gate.Shutdown(ctx)
}

func (s *admissionState) givenGate(layout string, marginSeconds int) error {
	tiers, err := parseTiers(layout)
	if err != nil {
		return err
	}
	s.gate, err = ratelimiter.New(ratelimiter.Config{
		Tiers:        tiers,
		SafetyMargin: time.Duration(marginSeconds) * time.Second,
	}, ratelimiter.WithClock(s.clock), ratelimiter.WithObserver(s.waits))
	return err
}

// parseTiers reads "max/window" pairs separated by commas.
func parseTiers(layout string) ([]ratelimiter.Tier, error) {
	var tiers []ratelimiter.Tier
	for _, part := range strings.Split(layout, ",") {
		limit, window, ok := strings.Cut(strings.TrimSpace(part), "/")
		if !ok {
			return nil, fmt.Errorf("tier %q: expected max/window", part)
		}
		n, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("tier %q: %w", part, err)
		}
		d, err := time.ParseDuration(window)
		if err != nil {
			return nil, fmt.Errorf("tier %q: %w", part, err)
		}
		tiers = append(tiers, ratelimiter.Tier{Window: d, MaxRequests: n})
	}
	return tiers, nil
}

func (s *admissionState) admitNow(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	return s.gate.AwaitAdmission(ctx, name)
}

func (s *admissionState) nextWaitIs(seconds int) error {
	d := s.gate.Evaluate()
	if want := time.Duration(seconds) * time.Second; d.Allowed || d.Wait != want {
		return fmt.Errorf("expected wait %s, got %+v", want, d)
	}
	return nil
}

func (s *admissionState) startWaiting(name string) error {
	ctx, cancel := context.WithCancel(context.Background())
	w := &waiter{cancel: cancel, done: make(chan error, 1)}
	s.waiters[name] = w
	go func() {
		w.done <- s.gate.AwaitAdmission(ctx, name)
	}()
	return s.awaitTimers(1)
}

func (s *admissionState) awaitTimers(n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	if err := s.clock.BlockUntilContext(ctx, n); err != nil {
		return fmt.Errorf("waiting for %d pending timers: %w", n, err)
	}
	return nil
}

func (s *admissionState) advance(seconds int) error {
	s.clock.Advance(time.Duration(seconds) * time.Second)
	return nil
}

func (s *admissionState) stillWaiting(name string) error {
	w, ok := s.waiters[name]
	if !ok {
		return fmt.Errorf("unknown request %q", name)
	}
	// The waiter re-arms a timer only if it woke up and was still blocked.
	if err := s.awaitTimers(1); err != nil {
		return err
	}
	select {
	case err := <-w.done:
		return fmt.Errorf("request %q finished early: %v", name, err)
	default:
		return nil
	}
}

func (s *admissionState) result(name string) (*waiter, error) {
	w, ok := s.waiters[name]
	if !ok {
		return nil, fmt.Errorf("unknown request %q", name)
	}
	if w.done != nil {
		select {
		case w.err = <-w.done:
			w.done = nil
		case <-time.After(stepTimeout):
			return nil, fmt.Errorf("request %q did not finish", name)
		}
	}
	return w, nil
}

func (s *admissionState) admittedAt(name string, seconds int) error {
	w, err := s.result(name)
	if err != nil {
		return err
	}
	if w.err != nil {
		return fmt.Errorf("request %q failed: %w", name, w.err)
	}
	s.waits.mu.Lock()
	at, ok := s.waits.admits[name]
	s.waits.mu.Unlock()
	if !ok {
		return fmt.Errorf("request %q was not recorded", name)
	}
	if got, want := at.Sub(testutil.Epoch), time.Duration(seconds)*time.Second; got != want {
		return fmt.Errorf("request %q admitted at %s, want %s", name, got, want)
	}
	return nil
}

func (s *admissionState) pendingWait(seconds int, tier string) error {
	d := s.waits.lastWait()
	if want := time.Duration(seconds) * time.Second; d.Wait != want {
		return fmt.Errorf("expected wait %s, got %s", want, d.Wait)
	}
	if d.Binding.String() != tier {
		return fmt.Errorf("expected binding tier %s, got %s", tier, d.Binding)
	}
	return nil
}

func (s *admissionState) queueWork(name, priority string) error {
	p, err := ratelimiter.ParsePriority(priority)
	if err != nil {
		return err
	}
	ticket := s.gate.Submit(context.Background(), "/"+name, p, func(context.Context) (any, error) {
		s.mu.Lock()
		s.ran = append(s.ran, name)
		s.mu.Unlock()
		return name, nil
	})
	s.tickets = append(s.tickets, ticket)
	if len(s.tickets) == 1 {
		// The first ticket holds the drain loop on the quota.
		return s.awaitTimers(1)
	}
	return nil
}

func (s *admissionState) drainQueue() error {
	deadline := time.Now().Add(stepTimeout)
	for _, ticket := range s.tickets {
		for !testutil.Closed(ticket.Done()) {
			if time.Now().After(deadline) {
				return fmt.Errorf("ticket %s did not drain", ticket.Endpoint)
			}
			// Only an item waiting on quota arms a timer; a running item does not.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			err := s.clock.BlockUntilContext(ctx, 1)
			cancel()
			if err == nil {
				s.clock.Advance(61 * time.Second)
			}
		}
		if _, err := ticket.Result(); err != nil {
			return fmt.Errorf("ticket %s: %w", ticket.Endpoint, err)
		}
	}
	return nil
}

func (s *admissionState) ranInOrder(order string) error {
	want := strings.Split(order, ", ")
	s.mu.Lock()
	got := append([]string(nil), s.ran...)
	s.mu.Unlock()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("expected order %v, got %v", want, got)
	}
	return nil
}

func (s *admissionState) cancelRequest(name string) error {
	w, ok := s.waiters[name]
	if !ok {
		return fmt.Errorf("unknown request %q", name)
	}
	w.cancel()
	return nil
}

func (s *admissionState) failedWithCancellation(name string) error {
	w, err := s.result(name)
	if err != nil {
		return err
	}
	if !errors.Is(w.err, ratelimiter.ErrCanceled) {
		return fmt.Errorf("expected ErrCanceled, got %v", w.err)
	}
	return nil
}

func (s *admissionState) tierHolds(window string, count int) error {
	d, err := time.ParseDuration(window)
	if err != nil {
		return err
	}
	for _, ts := range s.gate.Status().Tiers {
		if ts.Tier.Window == d {
			if ts.Count != count {
				return fmt.Errorf("tier %s holds %d admissions, want %d", ts.Tier, ts.Count, count)
			}
			return nil
		}
	}
	return fmt.Errorf("no %s tier configured", window)
}
