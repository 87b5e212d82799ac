package live

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// defaultColumns returns the tier table columns.
func defaultColumns() []table.Column {
	return []table.Column{
		{Title: "Tier", Width: 12},
		{Title: "Used", Width: 10},
		{Title: "Usage", Width: barWidth},
		{Title: "%", Width: 6},
		{Title: "State", Width: 10},
	}
}

// columnsForWidth hides the usage bar on narrow terminals.
func columnsForWidth(width int) []table.Column {
	columns := defaultColumns()
	if width > 0 && width < 70 {
		columns[2].Width = 0
	}
	return columns
}

// tableStyles returns table styles for the UI.
func tableStyles(noColor bool) table.Styles {
	styles := table.DefaultStyles()
	if noColor {
		return styles
	}
	styles.Header = styles.Header.Foreground(lipgloss.Color("252"))
	return styles
}

// rowsForState converts the polled status into table rows.
func rowsForState(state State, noColor bool) []table.Row {
	rows := make([]table.Row, 0, len(state.Status.Tiers))
	for _, ts := range state.Status.Tiers {
		rows = append(rows, table.Row{
			ts.Tier.Window.String(),
			fmtInt(ts.Count) + "/" + fmtInt(ts.Max()),
			formatBar(ts, noColor),
			formatPercent(ts.PercentUsed()),
			formatState(ts, noColor),
		})
	}
	return rows
}
