// Package adapters mounts keel inspection endpoints on Echo, Gin or Fiber.
package adapters

import (
	"fmt"
	"strings"

	"github.com/toyz/keel/pkg/keel"
)

// Frameworks lists the names accepted by New
var Frameworks = []string{"echo", "gin", "fiber"}

// New creates the default adapter for framework
func New(framework string) (keel.WebServer, error) {
	switch strings.ToLower(framework) {
	case "echo":
		return NewDefaultEchoAdapter(), nil
	case "gin":
		return NewDefaultGinAdapter(), nil
	case "fiber":
		return NewFiberAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported framework %q, expected one of %s", framework, strings.Join(Frameworks, ", "))
	}
}
