package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

const programName = "polibase-quota"

type Command struct {
	Name    string
	Summary string
	Usage   []string
	Run     func(args []string, stdout, stderr io.Writer) int
}

func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stdout)
		return ExitUsage
	}
	if isHelpArg(args[0]) {
		printUsage(stdout)
		return ExitOK
	}

	cmd := findCommand(args[0])
	if cmd == nil {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return ExitUsage
	}

	return cmd.Run(args[1:], stdout, stderr)
}

func findCommand(name string) *Command {
	for _, cmd := range commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func isHelpArg(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	default:
		return false
	}
}

func wantsHelp(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-h", "--help":
			return true
		}
	}
	return false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s <command> [options]\n", programName)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintf(w, "\nUse \"%s <command> --help\" for more information.\n", programName)
}

func printCommandUsage(cmd *Command, w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	for _, line := range cmd.Usage {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if cmd.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", cmd.Summary)
	}
}

// parseFlags parses args into fs and rejects positional arguments. It returns
// an exit code and false when the command should stop.
func parseFlags(cmd *Command, fs *flag.FlagSet, args []string, stdout, stderr io.Writer) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			printCommandUsage(cmd, stdout)
			return ExitOK, false
		}
		fmt.Fprintf(stderr, "invalid arguments: %v\n", err)
		printCommandUsage(cmd, stderr)
		return ExitUsage, false
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		printCommandUsage(cmd, stderr)
		return ExitUsage, false
	}
	return ExitOK, true
}

func command(name, summary string, usage []string, runner func(cmd *Command) func(args []string, stdout, stderr io.Writer) int) *Command {
	cmd := &Command{
		Name:    name,
		Summary: summary,
		Usage:   usage,
	}
	cmd.Run = runner(cmd)
	return cmd
}

var commands = []*Command{
	command("validate", "Validate a quota config and print its tiers", []string{
		programName + " validate --config <path>",
	}, runValidate),
	command("simulate", "Drive synthetic traffic through the admission gate", []string{
		programName + " simulate [--config <path>] [--requests N] [--scale F] [--concurrency N]",
		"                         [--ui auto|live|plain] [--journal <db>] [--log-level level]",
	}, runSimulate),
	command("report", "Summarize an admission journal", []string{
		programName + " report --journal <db>",
	}, runReport),
}
