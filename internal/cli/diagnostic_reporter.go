package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/toyz/keel/internal/errors"
	"github.com/toyz/keel/pkg/keel"
)

// DiagnosticReporter provides user-friendly error reporting and diagnostics
type DiagnosticReporter struct {
	verbose bool
	out     io.Writer
	errOut  io.Writer
}

// NewDiagnosticReporter creates a new diagnostic reporter
func NewDiagnosticReporter(verbose bool) *DiagnosticReporter {
	return &DiagnosticReporter{
		verbose: verbose,
		out:     os.Stdout,
		errOut:  os.Stderr,
	}
}

// SetOutput redirects regular and error output
func (r *DiagnosticReporter) SetOutput(out, errOut io.Writer) {
	r.out = out
	r.errOut = errOut
}

var (
	warningMark  = color.New(color.FgYellow, color.Bold)
	failureMark  = color.New(color.FgRed, color.Bold)
	resolvedMark = color.New(color.FgGreen)
	absentMark   = color.New(color.FgHiBlack)
)

// ReportWarning provides user-friendly warning reporting
func (r *DiagnosticReporter) ReportWarning(message string, suggestions ...string) {
	warningMark.Fprint(r.errOut, "! ")
	fmt.Fprintf(r.errOut, "%s\n", message)
	if r.verbose {
		for _, s := range suggestions {
			fmt.Fprintf(r.errOut, "    %s\n", s)
		}
	}
}

// ReportProblems reports declarations the scanner or the locator rejected
func (r *DiagnosticReporter) ReportProblems(problems []error) {
	for _, p := range problems {
		var suggestions []string
		var ke errors.KeelError
		if stderrors.As(p, &ke) {
			suggestions = ke.Suggestions()
		}
		r.ReportWarning(p.Error(), suggestions...)
	}
}

// ReportPoints prints every failed point with its error and suggestions. In
// verbose mode resolved and absent points are listed too.
func (r *DiagnosticReporter) ReportPoints(report *keel.Report) {
	for _, p := range report.Points {
		switch p.Status {
		case keel.Failed.String():
			r.reportFailedPoint(p)
		case keel.Resolved.String():
			if r.verbose {
				resolvedMark.Fprint(r.out, "✓ ")
				fmt.Fprintf(r.out, "%s -> %s\n", pointName(p), p.Service)
			}
		default:
			if r.verbose {
				absentMark.Fprint(r.out, "- ")
				fmt.Fprintf(r.out, "%s (optional, absent)\n", pointName(p))
			}
		}
	}
}

func (r *DiagnosticReporter) reportFailedPoint(p keel.PointReport) {
	failureMark.Fprint(r.errOut, "✗ ")
	fmt.Fprintf(r.errOut, "%s\n", pointName(p))
	if p.Context != "" {
		fmt.Fprintf(r.errOut, "    reached through %s\n", p.Context)
	}
	fmt.Fprintf(r.errOut, "    %s: %s\n", p.Code, p.Error)
	for _, s := range p.Suggestions {
		fmt.Fprintf(r.errOut, "    - %s\n", s)
	}
}

// pointName renders a point as parent.point with its parent kind
func pointName(p keel.PointReport) string {
	name := p.Parent + "." + p.Point
	if p.Required != "" {
		name += " " + p.Required
	} else if p.Declared != "" {
		name += " " + p.Declared
	}
	return fmt.Sprintf("%s [%s]", name, p.ParentKind)
}

// ReportError provides comprehensive error reporting with user-friendly output
func (r *DiagnosticReporter) ReportError(err error) {
	fmt.Fprintf(r.errOut, "\nERROR: Check Failed\n")
	fmt.Fprintf(r.errOut, "===================\n\n")

	var multi *errors.MultipleErrors
	var ke errors.KeelError
	switch {
	case stderrors.As(err, &multi):
		for _, e := range multi.Errors {
			r.reportKeelError(e)
		}
	case stderrors.As(err, &ke):
		r.reportKeelError(ke)
	default:
		fmt.Fprintf(r.errOut, "Message: %s\n\n", err.Error())
	}

	fmt.Fprintf(r.errOut, "\n")
}

// reportKeelError reports a KeelError with full context and suggestions
func (r *DiagnosticReporter) reportKeelError(err errors.KeelError) {
	r.printErrorHeader(err.ErrorCode())

	fmt.Fprintf(r.errOut, "Message: %s\n\n", err.Error())

	if loc := err.Location(); !loc.IsEmpty() {
		fmt.Fprintf(r.errOut, "Location: %s\n\n", loc)
	}

	if ctx := err.Context(); len(ctx) > 0 {
		r.printContext(ctx)
	}

	if len(err.Suggestions()) > 0 {
		r.printSuggestions(err.Suggestions())
	}

	r.printAdditionalHelp(err.ErrorCode())

	if r.verbose {
		r.printVerboseDebuggingInfo(err)
	}
}

// printErrorHeader prints a formatted error header based on error code
func (r *DiagnosticReporter) printErrorHeader(code errors.ErrorCode) {
	var errorTypeStr string

	switch code {
	case errors.SyntaxErrorCode:
		errorTypeStr = "Annotation Syntax Error"
	case errors.SchemaErrorCode:
		errorTypeStr = "Annotation Schema Error"
	case errors.ScanErrorCode:
		errorTypeStr = "Package Load Error"
	case errors.ConfigurationErrorCode:
		errorTypeStr = "Configuration Error"
	case errors.RegistrationErrorCode:
		errorTypeStr = "Registration Error"
	default:
		errorTypeStr = code.String()
	}

	fmt.Fprintf(r.errOut, "Type: %s\n", errorTypeStr)
	fmt.Fprintf(r.errOut, "%s\n\n", strings.Repeat("-", len(errorTypeStr)+6))
}

// printContext prints context information in a readable format
func (r *DiagnosticReporter) printContext(context map[string]interface{}) {
	fmt.Fprintf(r.errOut, "Context:\n")

	// Print important context items first
	importantKeys := []string{"pattern", "service", "component_type", "name"}
	printed := make(map[string]bool)

	for _, key := range importantKeys {
		if value, exists := context[key]; exists {
			fmt.Fprintf(r.errOut, "   %s: %v\n", r.formatContextKey(key), value)
			printed[key] = true
		}
	}

	var rest []string
	for key := range context {
		if !printed[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		fmt.Fprintf(r.errOut, "   %s: %v\n", r.formatContextKey(key), context[key])
	}

	fmt.Fprintf(r.errOut, "\n")
}

// formatContextKey formats context keys to be more readable
func (r *DiagnosticReporter) formatContextKey(key string) string {
	switch key {
	case "pattern":
		return "Pattern"
	case "config_type":
		return "Setting"
	case "component_type":
		return "Component"
	default:
		// Convert snake_case to Title Case
		parts := strings.Split(key, "_")
		for i, part := range parts {
			if len(part) > 0 {
				parts[i] = strings.ToUpper(part[:1]) + part[1:]
			}
		}
		return strings.Join(parts, " ")
	}
}

// printSuggestions prints actionable suggestions
func (r *DiagnosticReporter) printSuggestions(suggestions []string) {
	fmt.Fprintf(r.errOut, "Suggestions:\n")

	for i, suggestion := range suggestions {
		lines := strings.Split(suggestion, "\n")
		fmt.Fprintf(r.errOut, "   %d. %s\n", i+1, lines[0])
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) != "" {
				fmt.Fprintf(r.errOut, "      %s\n", line)
			}
		}
	}

	fmt.Fprintf(r.errOut, "\n")
}

// printAdditionalHelp prints additional help based on error code
func (r *DiagnosticReporter) printAdditionalHelp(code errors.ErrorCode) {
	switch code {
	case errors.ScanErrorCode:
		fmt.Fprintf(r.errOut, "Package Loading:\n")
		fmt.Fprintf(r.errOut, "  - Make sure the packages build with 'go build'\n")
		fmt.Fprintf(r.errOut, "  - Run 'go mod tidy' to ensure dependencies are available\n")
		fmt.Fprintf(r.errOut, "  - Check that the patterns are relative to the module\n\n")

	case errors.SyntaxErrorCode, errors.SchemaErrorCode:
		fmt.Fprintf(r.errOut, "Annotation Syntax Help:\n")
		fmt.Fprintf(r.errOut, "  - Struct tags look like `keel:\"@Named(\\\"audit\\\") @Optional\"`\n")
		fmt.Fprintf(r.errOut, "  - Directives must start with //keel::\n\n")
	}

	fmt.Fprintf(r.errOut, "For more help:\n")
	fmt.Fprintf(r.errOut, "  - Run with --verbose for more detailed output\n")
}

// printVerboseDebuggingInfo prints the error chain in verbose mode
func (r *DiagnosticReporter) printVerboseDebuggingInfo(err errors.KeelError) {
	fmt.Fprintf(r.errOut, "\nVerbose Debug Information:\n")
	fmt.Fprintf(r.errOut, "  Error Code: %d (%s)\n", int(err.ErrorCode()), err.ErrorCode())

	cause := err.Unwrap()
	level := 1
	if cause != nil {
		fmt.Fprintf(r.errOut, "  Error Chain:\n")
	}
	for cause != nil {
		fmt.Fprintf(r.errOut, "    %d. %s\n", level, cause.Error())
		cause = stderrors.Unwrap(cause)
		level++
	}

	fmt.Fprintf(r.errOut, "\n")
}

// ReportSuccess reports a check without failures
func (r *DiagnosticReporter) ReportSuccess(summary CheckSummary) {
	fmt.Fprintf(r.out, "\nAll dependency points of %s resolve\n", summary.Module)
	fmt.Fprintf(r.out, "%s\n", summary)
}
