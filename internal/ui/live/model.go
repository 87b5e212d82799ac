package live

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"polibase/pkg/ratelimiter"
)

// StatusSource provides gate snapshots. ratelimiter.Admitter satisfies it.
type StatusSource interface {
	Status() ratelimiter.Status
}

// Model renders the quota dashboard using Bubble Tea.
type Model struct {
	state        State
	table        table.Model
	source       StatusSource
	events       <-chan Event
	tickInterval time.Duration
	now          time.Time
	noColor      bool
}

// Options configures the live UI model.
type Options struct {
	Title        string
	NoColor      bool
	TickInterval time.Duration
}

// NewModel constructs a dashboard polling source and consuming events.
func NewModel(source StatusSource, events <-chan Event, opts Options) Model {
	tickInterval := opts.TickInterval
	if tickInterval <= 0 {
		tickInterval = 200 * time.Millisecond
	}
	t := table.New(
		table.WithColumns(defaultColumns()),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
		table.WithHeight(4),
		table.WithWidth(72),
	)
	t.SetStyles(tableStyles(opts.NoColor))
	m := Model{
		state:        State{Title: opts.Title},
		table:        t,
		source:       source,
		events:       events,
		tickInterval: tickInterval,
		noColor:      opts.NoColor,
	}
	return m.poll()
}

// Init starts ticking and waits for the first event.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick(m.tickInterval))
}

// Update consumes events, key presses and ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		switch typed.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.table.SetWidth(typed.Width)
		m.table.SetColumns(columnsForWidth(typed.Width))
		return m, nil
	case EventMsg:
		m.state = Reduce(m.state, typed.Event)
		return m, waitForEvent(m.events)
	case tickMsg:
		m = m.poll()
		return m, tick(m.tickInterval)
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	header := renderHeader(m.state, m.now, m.noColor)
	summary := renderSummary(m.state, m.noColor)
	footer := renderFooter(m.state, m.noColor)
	return lipgloss.JoinVertical(lipgloss.Left, header, summary, m.table.View(), footer)
}

// State returns the current dashboard state.
func (m Model) State() State {
	return m.state
}

// poll refreshes the gate snapshot and table rows.
func (m Model) poll() Model {
	if m.source == nil {
		return m
	}
	status := m.source.Status()
	m.now = status.At
	m.state = ApplyStatus(m.state, status)
	m.table.SetRows(rowsForState(m.state, m.noColor))
	return m
}

// EventMsg wraps a UI event for Bubble Tea.
type EventMsg struct {
	Event Event
}

// tickMsg carries a clock tick for updates.
type tickMsg time.Time

// waitForEvent blocks until a UI event is available.
func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		if events == nil {
			return nil
		}
		event, ok := <-events
		if !ok {
			return tea.Quit()
		}
		return EventMsg{Event: event}
	}
}

// tick emits a periodic tick message.
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}
