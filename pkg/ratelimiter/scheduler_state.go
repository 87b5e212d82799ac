package ratelimiter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Work is a unit of queued work, typically a send-and-decode call.
type Work func(ctx context.Context) (any, error)

// Ticket tracks one scheduled request from submission to its single outcome.
type Ticket struct {
	ID         uuid.UUID
	Endpoint   string
	Priority   Priority
	EnqueuedAt time.Time

	ctx  context.Context
	work Work
	seq  uint64
	// index is the backlog position, -1 when not queued.
	index int
	// stop unregisters the context cancellation hook.
	stop func() bool
	// dequeued is set under the scheduler lock once the ticket leaves the
	// backlog for execution or shutdown.
	dequeued bool

	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newTicket(ctx context.Context, endpoint string, priority Priority, work Work, now time.Time) *Ticket {
	return &Ticket{
		ID:         uuid.New(),
		Endpoint:   endpoint,
		Priority:   priority,
		EnqueuedAt: now,
		ctx:        ctx,
		work:       work,
		index:      -1,
		stop:       func() bool { return false },
		done:       make(chan struct{}),
	}
}

// Done is closed once the ticket's outcome is available.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Result blocks until the outcome is available and returns it.
func (t *Ticket) Result() (any, error) {
	<-t.done
	return t.value, t.err
}

// resolve stores the outcome. Only the first call has any effect.
func (t *Ticket) resolve(value any, err error) bool {
	resolved := false
	t.once.Do(func() {
		t.value = value
		t.err = err
		close(t.done)
		resolved = true
	})
	return resolved
}

func (t *Ticket) resolved() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// backlog orders tickets by priority, then submission order.
// It implements container/heap.Interface.
type backlog []*Ticket

func (b backlog) Len() int { return len(b) }

func (b backlog) Less(i, j int) bool {
	if b[i].Priority != b[j].Priority {
		return b[i].Priority > b[j].Priority
	}
	return b[i].seq < b[j].seq
}

func (b backlog) Swap(i, j int) {
	b[i], b[j] = b[j], b[i]
	b[i].index = i
	b[j].index = j
}

func (b *backlog) Push(x any) {
	t := x.(*Ticket)
	t.index = len(*b)
	*b = append(*b, t)
}

func (b *backlog) Pop() any {
	old := *b
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*b = old[:n-1]
	return t
}
