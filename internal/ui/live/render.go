package live

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the title line.
func renderHeader(state State, now time.Time, noColor bool) string {
	line := state.Title
	if line == "" {
		line = "Admission gate"
	}
	if !state.StartedAt.IsZero() && !now.Before(state.StartedAt) {
		line += " | Elapsed: " + formatDuration(now.Sub(state.StartedAt))
	}
	return stylize(line, noColor, lipgloss.Color("33"))
}

// renderSummary renders event counts and backlog depth.
func renderSummary(state State, noColor bool) string {
	counts := state.Counts
	line := "Admitted: " + fmtInt(counts.Admitted) +
		" Waits: " + fmtInt(counts.Waits) +
		" Canceled: " + fmtInt(counts.Canceled) +
		" Queued: " + fmtInt(state.Status.Queued)
	if state.Status.Draining {
		line += " (draining)"
	}
	if state.LongestWait > 0 {
		line += " Longest wait: " + formatDuration(state.LongestWait)
	}
	return stylize(line, noColor, lipgloss.Color("242"))
}

// renderFooter renders the last event line.
func renderFooter(state State, noColor bool) string {
	if state.LastEvent == "" {
		return ""
	}
	return stylize("Last event: "+state.LastEvent, noColor, lipgloss.Color("244"))
}
