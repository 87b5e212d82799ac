package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"polibase/internal/journal"
)

// runReport builds the handler for the report command.
func runReport(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		journalPath := fs.String("journal", "", "DuckDB journal written by simulate --journal")
		if code, ok := parseFlags(cmd, fs, args, stdout, stderr); !ok {
			return code
		}
		if *journalPath == "" {
			fmt.Fprintln(stderr, "Missing --journal")
			return ExitUsage
		}
		if _, err := os.Stat(*journalPath); err != nil {
			fmt.Fprintf(stderr, "Failed to open journal: %v\n", err)
			return ExitError
		}

		if err := report(context.Background(), *journalPath, stdout); err != nil {
			fmt.Fprintf(stderr, "Report failed: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
}

func report(ctx context.Context, path string, stdout io.Writer) (err error) {
	j, err := journal.Open(ctx, path, nil)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, j.Close())
	}()

	summary, err := j.Summary(ctx)
	if err != nil {
		return err
	}
	if len(summary) == 0 {
		fmt.Fprintln(stdout, "Journal is empty")
		return nil
	}
	rows := make([][]string, 0, len(summary))
	for _, s := range summary {
		rows = append(rows, []string{
			s.Endpoint,
			strconv.FormatInt(s.Admitted, 10),
			strconv.FormatInt(s.Waits, 10),
			strconv.FormatInt(s.Canceled, 10),
			s.TotalWait.String(),
			s.MaxWait.String(),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Endpoint", "Admitted", "Waits", "Canceled", "Total wait", "Max wait").
		Rows(rows...)
	fmt.Fprintln(stdout, t.String())

	tiers, err := j.BindingTiers(ctx)
	if err != nil {
		return err
	}
	for _, window := range sortedWindows(tiers) {
		fmt.Fprintf(stdout, "Binding tier %s: %d waits\n", window, tiers[window])
	}
	return nil
}

func sortedWindows(tiers map[time.Duration]int64) []time.Duration {
	windows := make([]time.Duration, 0, len(tiers))
	for window := range tiers {
		windows = append(windows, window)
	}
	slices.Sort(windows)
	return windows
}
