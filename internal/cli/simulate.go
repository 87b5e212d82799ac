package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"polibase/internal/config"
	"polibase/internal/journal"
	"polibase/internal/ratelimit"
	"polibase/internal/ui/live"
	"polibase/pkg/ratelimiter"
)

// simulateOptions holds parsed simulate flags.
type simulateOptions struct {
	configPath  string
	requests    int
	scale       float64
	concurrency int
	uiMode      string
	journalPath string
	logLevel    string
	timeout     time.Duration
}

// syntheticEndpoints models transcript-browsing traffic.
var syntheticEndpoints = []string{
	"GET /search",
	"GET /videos/{id}",
	"GET /videos/{id}/transcript",
	"GET /channels/{id}/uploads",
}

// runSimulate builds the handler for the simulate command.
func runSimulate(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		var opts simulateOptions
		fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		fs.StringVar(&opts.configPath, "config", "", "Path to quota config file (default: reference tiers)")
		fs.IntVar(&opts.requests, "requests", 30, "Number of synthetic requests")
		fs.Float64Var(&opts.scale, "scale", 0.01, "Multiplier applied to every tier window")
		fs.IntVar(&opts.concurrency, "concurrency", 4, "Concurrent callers")
		fs.StringVar(&opts.uiMode, "ui", "auto", "UI mode: auto|live|plain")
		fs.StringVar(&opts.journalPath, "journal", "", "DuckDB file to journal admissions into")
		fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug|info|warn|error")
		fs.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Abort the simulation after this long")
		if code, ok := parseFlags(cmd, fs, args, stdout, stderr); !ok {
			return code
		}
		if opts.requests < 1 || opts.concurrency < 1 {
			fmt.Fprintln(stderr, "--requests and --concurrency must be >= 1")
			return ExitUsage
		}
		decision, err := resolveUIMode(opts.uiMode, stdout)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitUsage
		}
		if decision.warning != "" {
			fmt.Fprintln(stderr, decision.warning)
		}

		logger, err := newLogger(opts.logLevel, stderr)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitUsage
		}
		defer func() { _ = logger.Sync() }()

		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		defer cancel()
		if err := simulate(ctx, opts, decision.useLive, stdout, logger); err != nil {
			fmt.Fprintf(stderr, "Simulation failed: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
}

// simulate runs the workload and prints a summary to stdout.
func simulate(ctx context.Context, opts simulateOptions, useLive bool, stdout io.Writer, logger *zap.Logger) (err error) {
	cfg := config.Default()
	if opts.configPath != "" {
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}

	stats := newSimulationStats()
	observers := []ratelimiter.Observer{stats}
	if opts.journalPath != "" {
		j, openErr := journal.Open(ctx, opts.journalPath, logger.Named("journal"))
		if openErr != nil {
			return openErr
		}
		defer func() {
			err = errors.Join(err, j.Close())
		}()
		observers = append(observers, j)
	}
	var dashboard *live.Controller
	if useLive {
		dashboard = live.NewController()
		observers = append(observers, dashboard)
	}

	admitter := ratelimiter.NoopAdmitter
	if cfg.Enabled() {
		gate, buildErr := ratelimit.BuildGate(cfg, opts.scale, logger, ratelimiter.WithObserver(ratelimiter.Observers(observers...)))
		if buildErr != nil {
			return buildErr
		}
		admitter = gate
	} else {
		fmt.Fprintln(stdout, "Admission control disabled; requests run unthrottled.")
	}
	if dashboard != nil {
		dashboard.Start(ctx, stdout, admitter, live.Options{Title: programName + " simulate"})
	}

	started := time.Now()
	runErr := drive(ctx, admitter, opts)
	elapsed := time.Since(started)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runErr = errors.Join(runErr, ratelimit.Shutdown(shutdownCtx, admitter))
	if dashboard != nil {
		dashboard.Finish(fmt.Sprintf("finished %d requests in %s", opts.requests, elapsed.Round(time.Millisecond)))
		runErr = errors.Join(runErr, dashboard.Wait())
	}

	printSimulationSummary(stdout, opts, stats.snapshot(), admitter.Status(), elapsed)
	return runErr
}

// drive issues opts.requests synthetic requests from opts.concurrency callers.
// Every fourth request bypasses the scheduler and waits for admission directly.
func drive(ctx context.Context, admitter ratelimiter.Admitter, opts simulateOptions) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for i := 0; i < opts.requests; i++ {
		endpoint := syntheticEndpoints[i%len(syntheticEndpoints)]
		priority := syntheticPriority(i)
		direct := i%4 == 3
		g.Go(func() error {
			if direct {
				return admitter.AwaitAdmission(ctx, endpoint)
			}
			_, err := ratelimiter.Do(ctx, admitter, endpoint, priority, func(context.Context) (string, error) {
				return endpoint, nil
			})
			return err
		})
	}
	return g.Wait()
}

// syntheticPriority spreads requests over every priority.
func syntheticPriority(i int) ratelimiter.Priority {
	switch {
	case i%10 == 0:
		return ratelimiter.PriorityCritical
	case i%3 == 0:
		return ratelimiter.PriorityHigh
	case i%2 == 0:
		return ratelimiter.PriorityNormal
	default:
		return ratelimiter.PriorityLow
	}
}

func printSimulationSummary(w io.Writer, opts simulateOptions, stats statsSnapshot, status ratelimiter.Status, elapsed time.Duration) {
	fmt.Fprintln(w, "Simulation summary")
	fmt.Fprintf(w, "  requests:     %d\n", opts.requests)
	fmt.Fprintf(w, "  admitted:     %d\n", stats.admitted)
	fmt.Fprintf(w, "  waits:        %d\n", stats.waits)
	fmt.Fprintf(w, "  canceled:     %d\n", stats.canceled)
	fmt.Fprintf(w, "  longest wait: %s\n", stats.longestWait.Round(time.Millisecond))
	fmt.Fprintf(w, "  elapsed:      %s\n", elapsed.Round(time.Millisecond))
	for _, ts := range status.Tiers {
		fmt.Fprintf(w, "  tier %-14s used %d/%d, bound %d waits\n", ts.Tier.String(), ts.Count, ts.Max(), stats.binding[ts.Tier])
	}
}
