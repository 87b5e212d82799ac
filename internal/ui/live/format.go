package live

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"polibase/pkg/ratelimiter"
)

const barWidth = 20

// fmtInt converts an int to string.
func fmtInt(value int) string {
	return strconv.Itoa(value)
}

// formatDuration rounds durations for display.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

// formatPercent renders a usage percentage.
func formatPercent(value float64) string {
	return strconv.FormatFloat(value, 'f', 0, 64) + "%"
}

// formatBar renders a fixed-width usage bar.
func formatBar(ts ratelimiter.TierStatus, noColor bool) string {
	filled := int(ts.PercentUsed() / 100 * barWidth)
	filled = min(max(filled, 0), barWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
	return stylize(bar, noColor, usageColor(ts))
}

// formatState renders the tier state column.
func formatState(ts ratelimiter.TierStatus, noColor bool) string {
	if ts.AtLimit() {
		return stylize("AT LIMIT", noColor, lipgloss.Color("196"))
	}
	return stylize("ok", noColor, lipgloss.Color("42"))
}

// usageColor picks a color by usage band.
func usageColor(ts ratelimiter.TierStatus) lipgloss.Color {
	switch used := ts.PercentUsed(); {
	case used >= 100:
		return lipgloss.Color("196")
	case used >= 75:
		return lipgloss.Color("214")
	default:
		return lipgloss.Color("42")
	}
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
