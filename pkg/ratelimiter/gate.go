package ratelimiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// minRecheckDelay bounds how tightly a blocked caller re-checks when the
// computed wait is zero (only possible with a zero safety margin).
const minRecheckDelay = time.Millisecond

// Gate admits outbound requests against every configured tier and owns the
// priority scheduler for queued work. A Gate is safe for concurrent use.
type Gate struct {
	mu     sync.Mutex
	tiers  []Tier
	margin time.Duration
	log    *windowLog

	clock    clockwork.Clock
	logger   *zap.Logger
	observer Observer
	delayLog rate.Sometimes

	sched *scheduler
}

// New constructs a Gate for cfg.
func New(cfg Config, opts ...Option) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultGateOptions()
	for _, opt := range opts {
		opt(&o)
	}
	g := &Gate{
		tiers:    append([]Tier(nil), cfg.Tiers...),
		margin:   cfg.SafetyMargin,
		log:      newWindowLog(cfg.longestWindow()),
		clock:    o.clock,
		logger:   o.logger,
		observer: o.observer,
		delayLog: delayLimiter(o.delayLogInterval),
	}
	g.sched = newScheduler(g.AwaitAdmission, g.clock.Now, g.logger)
	return g, nil
}

// Tiers returns a copy of the configured tiers.
func (g *Gate) Tiers() []Tier {
	return append([]Tier(nil), g.tiers...)
}

// AwaitAdmission blocks until every tier has room, then records the
// admission for endpoint. Each successful call records exactly one admission.
// If ctx ends first no record is written and the error wraps ErrCanceled.
func (g *Gate) AwaitAdmission(ctx context.Context, endpoint string) error {
	for {
		if err := ctx.Err(); err != nil {
			return g.abandon(endpoint, err)
		}
		d, rec := g.tryAdmit(endpoint)
		if d.Allowed {
			g.logger.Debug("admission granted",
				zap.String("endpoint", endpoint),
				zap.Time("at", rec.Timestamp),
			)
			g.observer.OnAdmit(rec)
			return nil
		}
		g.delayLog.Do(func() {
			g.logger.Info("admission delayed",
				zap.String("endpoint", endpoint),
				zap.Duration("wait", d.Wait),
				zap.Stringer("binding_tier", d.Binding),
				zap.Int("blocked_tiers", len(d.Blocked)),
			)
		})
		g.observer.OnWait(endpoint, d)
		if err := g.sleep(ctx, d.Wait); err != nil {
			return g.abandon(endpoint, err)
		}
	}
}

// Evaluate previews the decision the next admission would get without
// recording anything.
func (g *Gate) Evaluate() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return evaluate(g.log, g.tiers, g.margin, g.clock.Now())
}

// Status returns a point-in-time snapshot. It never waits on quota and never
// modifies the log.
func (g *Gate) Status() Status {
	g.mu.Lock()
	now := g.clock.Now()
	tiers := make([]TierStatus, 0, len(g.tiers))
	for _, tier := range g.tiers {
		tiers = append(tiers, TierStatus{Tier: tier, Count: g.log.countSince(now, tier.Window)})
	}
	g.mu.Unlock()

	queued, draining := g.sched.snapshot()
	return Status{At: now, Tiers: tiers, Queued: queued, Draining: draining}
}

// Submit enqueues work for endpoint at priority and returns its ticket.
func (g *Gate) Submit(ctx context.Context, endpoint string, priority Priority, work Work) *Ticket {
	return g.sched.submit(ctx, endpoint, priority, work)
}

// Schedule runs work once the scheduler admits it and returns the work's
// outcome, or a cancellation/closed error if the work never ran.
func (g *Gate) Schedule(ctx context.Context, endpoint string, priority Priority, work Work) (any, error) {
	return g.Submit(ctx, endpoint, priority, work).Result()
}

// Shutdown resolves queued work with ErrClosed and waits for the active drain
// loop to finish its current item.
func (g *Gate) Shutdown(ctx context.Context) error {
	return g.sched.shutdown(ctx)
}

// tryAdmit prunes, evaluates and, when allowed, records under one lock.
func (g *Gate) tryAdmit(endpoint string) (Decision, RequestRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	g.log.prune(now)
	d := evaluate(g.log, g.tiers, g.margin, now)
	if !d.Allowed {
		return d, RequestRecord{}
	}
	return d, g.log.record(now, endpoint)
}

// sleep waits for d on the gate clock or until ctx ends.
func (g *Gate) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = minRecheckDelay
	}
	timer := g.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

func (g *Gate) abandon(endpoint string, err error) error {
	g.logger.Debug("admission canceled", zap.String("endpoint", endpoint), zap.Error(err))
	g.observer.OnCancel(endpoint, err)
	return canceled(err)
}

func canceled(err error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, err)
}
