package live

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"polibase/pkg/ratelimiter"
)

// Controller runs the dashboard and implements ratelimiter.Observer, so it
// can be attached to a gate before the gate exists to be polled.
type Controller struct {
	events  chan Event
	program *tea.Program
	done    chan struct{}
	err     error

	mu     sync.RWMutex
	closed bool
}

var _ ratelimiter.Observer = (*Controller)(nil)

// NewController buffers events until Start is called.
func NewController() *Controller {
	return &Controller{
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
}

// Start launches the dashboard for source, writing to stdout.
func (c *Controller) Start(ctx context.Context, stdout io.Writer, source StatusSource, opts Options) {
	if stdout == nil {
		stdout = os.Stdout
	}
	model := NewModel(source, c.events, opts)
	c.program = tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithOutput(stdout),
		tea.WithAltScreen(),
	)
	go func() {
		defer close(c.done)
		if _, err := c.program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			c.err = err
		}
	}()
}

// Finish reports the end of the workload and closes the dashboard.
func (c *Controller) Finish(message string) {
	c.send(Event{Kind: EventDone, Message: message})
	c.Close()
}

// Close signals the UI to stop.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// Wait blocks until the UI has exited and returns its error.
func (c *Controller) Wait() error {
	if c == nil || c.program == nil {
		return nil
	}
	<-c.done
	return c.err
}

// OnAdmit forwards admissions to the UI.
func (c *Controller) OnAdmit(rec ratelimiter.RequestRecord) {
	c.send(Event{Kind: EventAdmit, At: rec.Timestamp, Endpoint: rec.Endpoint})
}

// OnWait forwards delayed attempts to the UI.
func (c *Controller) OnWait(endpoint string, d ratelimiter.Decision) {
	c.send(Event{Kind: EventWait, Endpoint: endpoint, Decision: d})
}

// OnCancel forwards abandoned admissions to the UI.
func (c *Controller) OnCancel(endpoint string, _ error) {
	c.send(Event{Kind: EventCancel, Endpoint: endpoint})
}

// send enqueues an event without blocking the caller. Events after Close are
// dropped.
func (c *Controller) send(event Event) {
	if c == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	default:
	}
}
