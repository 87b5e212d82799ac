package cli

import (
	"flag"
	"fmt"
	"io"

	"polibase/internal/config"
)

// runValidate builds the handler for the validate command.
func runValidate(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		flags.SetOutput(stderr)
		configPath := flags.String("config", "", "Path to quota config file")
		if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
			return code
		}
		if *configPath == "" {
			fmt.Fprintln(stderr, "Missing --config")
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}

		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Validation failed:\n%s\n", err.Error())
			return ExitError
		}
		limits, err := cfg.Limiter()
		if err != nil {
			fmt.Fprintf(stderr, "Validation failed:\n%s\n", err.Error())
			return ExitError
		}

		fmt.Fprintln(stdout, "Config OK")
		fmt.Fprintf(stdout, "Mode: %s\n", cfg.Mode)
		fmt.Fprintf(stdout, "Safety margin: %s\n", limits.SafetyMargin)
		for _, tier := range limits.Tiers {
			fmt.Fprintf(stdout, "Tier: %d requests per %s\n", tier.MaxRequests, tier.Window)
		}
		return ExitOK
	}
}
