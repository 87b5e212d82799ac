package ratelimiter

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// admitFunc blocks until endpoint may be called, as Gate.AwaitAdmission does.
type admitFunc func(ctx context.Context, endpoint string) error

// scheduler serializes admission and execution of queued work.
// It is idle when no drain loop runs and draining while exactly one does.
type scheduler struct {
	admit  admitFunc
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	backlog  backlog
	seq      uint64
	draining bool
	closed   bool
	// idle is closed when the current drain loop exits.
	idle chan struct{}
}

func newScheduler(admit admitFunc, now func() time.Time, logger *zap.Logger) *scheduler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	idle := make(chan struct{})
	close(idle)
	return &scheduler{admit: admit, now: now, logger: logger, idle: idle}
}

// submit queues work and starts a drain loop when idle.
func (s *scheduler) submit(ctx context.Context, endpoint string, priority Priority, work Work) *Ticket {
	t := newTicket(ctx, endpoint, priority, work, s.now())
	stop := context.AfterFunc(ctx, func() { s.cancel(t) })

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()
		t.resolve(nil, ErrClosed)
		return t
	}
	if t.resolved() {
		s.mu.Unlock()
		return t
	}
	s.seq++
	t.seq = s.seq
	t.stop = stop
	heap.Push(&s.backlog, t)
	start := !s.draining
	if start {
		s.draining = true
		s.idle = make(chan struct{})
	}
	s.mu.Unlock()

	s.logger.Debug("request queued",
		zap.Stringer("id", t.ID),
		zap.String("endpoint", endpoint),
		zap.Stringer("priority", priority),
	)
	if start {
		go s.drain()
	}
	return t
}

// cancel removes t from the backlog and resolves it with the context error
// while it is still queued. Once the drain loop has dequeued t, the outcome
// belongs to execute, which sees the same context through admit and the work.
func (s *scheduler) cancel(t *Ticket) {
	s.mu.Lock()
	if t.dequeued {
		s.mu.Unlock()
		return
	}
	if t.index >= 0 {
		heap.Remove(&s.backlog, t.index)
	}
	resolved := t.resolve(nil, canceled(context.Cause(t.ctx)))
	s.mu.Unlock()

	if resolved {
		s.logger.Debug("request canceled",
			zap.Stringer("id", t.ID),
			zap.String("endpoint", t.Endpoint),
		)
	}
}

// shutdown rejects new work, resolves queued work with ErrClosed and waits
// for the active drain loop to exit.
func (s *scheduler) shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	pending := make([]*Ticket, 0, len(s.backlog))
	for s.backlog.Len() > 0 {
		t := heap.Pop(&s.backlog).(*Ticket)
		t.dequeued = true
		pending = append(pending, t)
	}
	idle := s.idle
	s.mu.Unlock()

	for _, t := range pending {
		t.stop()
		t.resolve(nil, ErrClosed)
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// snapshot reports backlog depth and whether a drain loop is active.
func (s *scheduler) snapshot() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backlog.Len(), s.draining
}
