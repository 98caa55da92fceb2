package cli

import (
	"strings"

	"github.com/toyz/keel/internal/errors"
	"github.com/toyz/keel/internal/utils"
	"github.com/toyz/keel/pkg/keel/adapters"
)

// DefaultServeFramework is used by -serve when no framework is given
const DefaultServeFramework = "echo"

// Config holds the configuration for a keel check
type Config struct {
	// Patterns are the package patterns to load, e.g. ./...
	Patterns []string

	// Dir is the directory patterns are resolved in; empty means the current directory
	Dir string

	// ModuleName is reported instead of the module declared in go.mod
	ModuleName string

	// Tags are build tags used while loading packages
	Tags []string

	// Verbose enables detailed logging and error reporting
	Verbose bool

	// Quiet limits output to errors and failed points
	Quiet bool

	// Serve is the address the report is served on after the check; empty disables serving
	Serve string

	// Framework is the web framework used by Serve: echo, gin or fiber
	Framework string
}

// ParseTags splits a comma separated build tag list
func ParseTags(list string) []string {
	var tags []string
	for _, tag := range strings.Split(list, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Validate checks the configuration before any package is loaded
func (c *Config) Validate() error {
	if err := utils.SliceNotEmpty[string]("patterns")(c.Patterns); err != nil {
		return errors.WrapConfigurationError("patterns", "validate", err).
			WithSuggestion("Pass at least one package pattern, e.g. ./...")
	}

	notBoth := utils.Custom("verbose", "cannot be combined with quiet", func(c *Config) bool {
		return !(c.Verbose && c.Quiet)
	})
	if err := notBoth(c); err != nil {
		return errors.WrapConfigurationError("verbosity", "validate", err)
	}

	framework := utils.Conditional(
		func(string) bool { return c.Serve != "" },
		utils.IsOneOf("framework", adapters.Frameworks...),
	)
	if err := framework(c.framework()); err != nil {
		return errors.WrapConfigurationError("serve", "validate", err).
			WithSuggestion("Use -framework with one of: " + strings.Join(adapters.Frameworks, ", "))
	}
	return nil
}

// framework returns the configured framework or the default one
func (c *Config) framework() string {
	if c.Framework == "" {
		return DefaultServeFramework
	}
	return strings.ToLower(c.Framework)
}

// DiagnosticLevel maps the verbosity flags onto a diagnostic level
func (c *Config) DiagnosticLevel() utils.DiagnosticLevel {
	switch {
	case c.Quiet:
		return utils.DiagnosticError
	case c.Verbose:
		return utils.DiagnosticVerbose
	default:
		return utils.DiagnosticInfo
	}
}
