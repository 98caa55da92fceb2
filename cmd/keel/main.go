package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/toyz/keel/internal/cli"
	"github.com/toyz/keel/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[0], os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns its exit code
func run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		moduleFlag    = flags.String("module", "", "Module name shown in reports (defaults to go.mod module)")
		tagsFlag      = flags.String("tags", "", "Comma separated build tags used while loading packages")
		verboseFlag   = flags.Bool("verbose", false, "Enable verbose output and list every dependency point")
		quietFlag     = flags.Bool("quiet", false, "Only show errors and final results")
		serveFlag     = flags.String("serve", "", "Serve the report on this address after the check, e.g. :8080")
		frameworkFlag = flags.String("framework", cli.DefaultServeFramework, "Web framework used by -serve: echo, gin or fiber")
		helpFlag      = flags.Bool("help", false, "Show help information")
	)

	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [options] <package-patterns...>\n\n", name)
		fmt.Fprintf(stderr, "Keel Dependency Checker\n")
		fmt.Fprintf(stderr, "Loads Go packages, collects keel:: services and injection points and resolves every point statically.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		flags.PrintDefaults()
		fmt.Fprintf(stderr, "\nArguments:\n")
		fmt.Fprintf(stderr, "  package-patterns   One or more package patterns to load\n")
		fmt.Fprintf(stderr, "                     Supports Go-style patterns like './...' for recursive loading\n")
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  %s ./...                                  # Check everything recursively\n", name)
		fmt.Fprintf(stderr, "  %s ./internal/...                        # Check internal packages\n", name)
		fmt.Fprintf(stderr, "  %s --tags integration ./...              # Load with build tags\n", name)
		fmt.Fprintf(stderr, "  %s --verbose ./...                       # List every dependency point\n", name)
		fmt.Fprintf(stderr, "  %s --serve :8080 --framework gin ./...   # Serve the report under /keel\n", name)
	}

	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if *helpFlag {
		flags.Usage()
		return 0
	}

	patterns := flags.Args()
	if len(patterns) == 0 {
		fmt.Fprintf(stderr, "Error: At least one package pattern is required\n\n")
		flags.Usage()
		return 1
	}

	config := cli.Config{
		Patterns:   patterns,
		ModuleName: *moduleFlag,
		Tags:       cli.ParseTags(*tagsFlag),
		Verbose:    *verboseFlag,
		Quiet:      *quietFlag,
		Serve:      *serveFlag,
		Framework:  *frameworkFlag,
	}

	diagnostics := utils.NewDiagnosticSystem(config.DiagnosticLevel())
	diagnostics.SetOutput(stdout, stderr)
	reporter := cli.NewDiagnosticReporter(config.Verbose)
	reporter.SetOutput(stdout, stderr)

	diagnostics.Section("Keel Dependency Checker")

	if config.Verbose {
		diagnostics.Subsection("Configuration")
		diagnostics.List("Patterns: %s", strings.Join(patterns, ", "))
		if config.ModuleName != "" {
			diagnostics.List("Custom module: %s", config.ModuleName)
		}
		if len(config.Tags) > 0 {
			diagnostics.List("Build tags: %s", strings.Join(config.Tags, ", "))
		}
		if config.Serve != "" {
			diagnostics.List("Serve: %s (%s)", config.Serve, config.Framework)
		}
	}

	checker := cli.NewChecker(config, diagnostics)
	result, err := checker.Check(ctx)
	if err != nil {
		reporter.ReportError(err)
		return 1
	}

	reporter.ReportProblems(result.Problems)
	reporter.ReportPoints(result.Report)

	summary := checker.Summary()
	diagnostics.Summary("Check Complete!", summary.Stats())

	exit := 0
	if result.Failed() {
		diagnostics.Error("%s", summary)
		exit = 1
	} else {
		reporter.ReportSuccess(summary)
	}

	if config.Serve != "" {
		if err := cli.Serve(ctx, config, result.Report, diagnostics); err != nil {
			reporter.ReportError(err)
			return 1
		}
	}
	return exit
}
