package ratelimiter

import (
	"container/heap"
	"fmt"

	"go.uber.org/zap"
)

// drain consumes the backlog head-first until it is empty, then returns the
// scheduler to idle. Only one drain loop runs at a time.
func (s *scheduler) drain() {
	for {
		s.mu.Lock()
		if s.backlog.Len() == 0 {
			s.draining = false
			close(s.idle)
			s.mu.Unlock()
			return
		}
		t := heap.Pop(&s.backlog).(*Ticket)
		t.dequeued = true
		s.mu.Unlock()

		s.execute(t)
	}
}

// execute admits and runs a single ticket and delivers its outcome. Work
// always runs once admission is recorded.
func (s *scheduler) execute(t *Ticket) {
	defer t.stop()
	if err := s.admit(t.ctx, t.Endpoint); err != nil {
		t.resolve(nil, err)
		return
	}
	value, err := s.run(t)
	if err != nil {
		s.logger.Debug("queued request failed",
			zap.Stringer("id", t.ID),
			zap.String("endpoint", t.Endpoint),
			zap.Error(err),
		)
	}
	t.resolve(value, err)
}

// run invokes the work, turning a panic into an error for this ticket only.
func (s *scheduler) run(t *Ticket) (value any, err error) {
	if t.work == nil {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ratelimiter: work for %s panicked: %v", t.Endpoint, r)
		}
	}()
	return t.work(t.ctx)
}
