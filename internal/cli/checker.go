package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/toyz/keel/internal/errors"
	"github.com/toyz/keel/internal/scanner"
	"github.com/toyz/keel/internal/utils"
	"github.com/toyz/keel/pkg/keel"
)

// RegistryName names the locator the scanned services are bound to
const RegistryName = "keel-check"

// CheckSummary counts what a check found
type CheckSummary struct {
	Module          string
	PackagesScanned int
	ServicesFound   int
	ServicesBound   int
	PointsChecked   int
	Resolved        int
	Absent          int
	Failed          int
	Problems        int
}

// Checker loads packages and resolves every dependency point they declare
// against the services they declare. Services are never created.
type Checker struct {
	config      Config
	diagnostics *utils.DiagnosticSystem
	resolver    *ModuleResolver
	summary     CheckSummary
}

// NewChecker creates a checker that reports through diagnostics
func NewChecker(config Config, diagnostics *utils.DiagnosticSystem) *Checker {
	if diagnostics == nil {
		diagnostics = utils.NewDiagnosticSystem(config.DiagnosticLevel())
	}
	return &Checker{
		config:      config,
		diagnostics: diagnostics,
		resolver:    NewModuleResolver(),
	}
}

// Summary returns the counts of the last check
func (c *Checker) Summary() CheckSummary {
	return c.summary
}

// CheckResult is the outcome of a check
type CheckResult struct {
	Report   *keel.Report
	Scan     *scanner.Result
	Problems []error
}

// Failed reports whether any point failed or any declaration was rejected
func (r *CheckResult) Failed() bool {
	return r.Report.HasFailures() || len(r.Problems) > 0
}

// Check runs the check. The returned error is set when packages could not be
// loaded; unresolvable points are reported in the result.
func (c *Checker) Check(ctx context.Context) (*CheckResult, error) {
	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	c.summary = CheckSummary{}

	module, err := c.resolver.ResolveModuleName(c.config.ModuleName, c.config.Dir)
	if err != nil {
		return nil, errors.WrapConfigurationError("module", "resolve", err).
			WithSuggestion("Run keel inside a Go module or pass -module")
	}
	c.summary.Module = module
	c.diagnostics.Verbose("Module: %s", module)

	s := scanner.New(scanner.Config{Dir: c.config.Dir, Tags: c.config.Tags}, scanner.WithLogger(c.diagnostics))

	c.diagnostics.StartProgress("Loading packages")
	scan, err := s.Load(ctx, c.config.Patterns...)
	if err != nil {
		c.diagnostics.EndProgress(false, "")
		return nil, err
	}
	c.diagnostics.EndProgress(true, fmt.Sprintf("%d packages", len(scan.Packages)))
	c.summary.PackagesScanned = len(scan.Packages)
	c.summary.ServicesFound = len(scan.Services)

	result := &CheckResult{Scan: scan}
	for _, p := range scan.Problems {
		result.Problems = append(result.Problems, p)
	}

	engine := keel.NewEngine(keel.WithAnnotations(s.Registry()), keel.WithLogger(c.diagnostics))
	locator := keel.NewLocator(RegistryName, keel.UseEngine(engine), keel.UseLogger(c.diagnostics))

	c.diagnostics.StartProgress("Binding services")
	for _, svc := range scan.Services {
		if err := locator.Bind(svc.Descriptor(declaredOnly(svc))); err != nil {
			result.Problems = append(result.Problems, scanner.Problem{Position: svc.Position, Err: err})
			continue
		}
		c.summary.ServicesBound++
	}
	c.diagnostics.EndProgress(c.summary.ServicesBound == c.summary.ServicesFound,
		fmt.Sprintf("%d of %d", c.summary.ServicesBound, c.summary.ServicesFound))

	c.diagnostics.StartProgress("Resolving dependency points")
	result.Report = engine.Inspect(locator, scan.Targets...)
	c.diagnostics.EndProgress(!result.Report.HasFailures(), fmt.Sprintf("%d points", result.Report.Summary.Total))

	c.summary.PointsChecked = result.Report.Summary.Total
	c.summary.Resolved = result.Report.Summary.Resolved
	c.summary.Absent = result.Report.Summary.Absent
	c.summary.Failed = result.Report.Summary.Failed
	c.summary.Problems = len(result.Problems)
	return result, nil
}

// declaredOnly is the factory of a service known only from source. Checks
// resolve handles, so it only runs if a report consumer asks for a value.
func declaredOnly(svc scanner.Service) keel.Factory {
	origin := "declaration"
	if svc.Constructor != nil {
		origin = svc.Constructor.Name()
	}
	return func(*keel.CreationContext) (any, error) {
		return nil, errors.Newf(errors.CreationErrorCode,
			"%s is declared by %s and cannot be created by a static check", svc.Implementation, origin).
			WithSuggestion("Bind the service to a keel.Locator at runtime to create it")
	}
}

// Stats converts the summary into the diagnostics summary format
func (s CheckSummary) Stats() map[string]interface{} {
	return map[string]interface{}{
		"Packages scanned": s.PackagesScanned,
		"Services found":   s.ServicesFound,
		"Points checked":   s.PointsChecked,
		"Resolved":         s.Resolved,
		"Absent":           s.Absent,
		"Failed":           s.Failed,
		"Problems":         s.Problems,
	}
}

// String renders the summary on one line
func (s CheckSummary) String() string {
	parts := []string{
		fmt.Sprintf("%d points", s.PointsChecked),
		fmt.Sprintf("%d resolved", s.Resolved),
		fmt.Sprintf("%d absent", s.Absent),
		fmt.Sprintf("%d failed", s.Failed),
	}
	if s.Problems > 0 {
		parts = append(parts, fmt.Sprintf("%d problems", s.Problems))
	}
	return strings.Join(parts, ", ")
}
