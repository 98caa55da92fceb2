package keel

import (
	"github.com/toyz/keel/pkg/annotations"
)

// Logger receives debug output from the engine and the locator
type Logger interface {
	Debug(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}

// Engine turns dependency points into injectees and resolves them against a
// ServiceRegistry. It holds no per-call state and may be shared.
type Engine struct {
	annotations annotations.Registry
	parser      *annotations.Parser
	logger      Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithLogger sets the debug logger
func WithLogger(logger Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithAnnotations sets the schema registry used to parse keel struct tags
func WithAnnotations(registry annotations.Registry) EngineOption {
	return func(e *Engine) {
		if registry != nil {
			e.annotations = registry
		}
	}
}

// NewEngine creates an engine
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		annotations: annotations.DefaultRegistry(),
		logger:      nopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.parser = annotations.NewParser(e.annotations)
	return e
}

var defaultEngine = NewEngine()

// DefaultEngine returns the shared engine using the default annotation registry
func DefaultEngine() *Engine {
	return defaultEngine
}

// Parser returns the annotation parser the engine uses for struct tags
func (e *Engine) Parser() *annotations.Parser {
	return e.parser
}

// Injectee builds the injectee for point reached through ctx. The point must be
// listed by its own parent; its declared type is resolved in ctx and its
// annotations are classified into qualifiers and markers.
func (e *Engine) Injectee(point DependencyPoint, ctx Type) (*Injectee, error) {
	if point == nil {
		return nil, newInternalError("dependency point is nil")
	}
	parent := point.Parent()
	if parent == nil {
		return nil, newInternalError("dependency point %s has no parent", point.Name())
	}

	index := -1
	for i, sibling := range parent.Points() {
		if sibling == point {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, newInternalError("dependency point %s not found in parent %s %s",
			point.Name(), parent.Kind(), parent.Name())
	}

	position := index
	if parent.Kind() == StructParent {
		position = -1
	}

	resolved, err := ResolveType(ctx, point.DeclaredType())
	if err != nil {
		return nil, err
	}

	c := annotations.Classify(point.Annotations())
	qualifiers := c.Qualifiers
	if parent.Kind() == StructParent {
		qualifiers = nameQualifiers(qualifiers, point.Name())
	}

	inj := NewInjectee(InjecteeSpec{
		RequiredType:       resolved,
		Parent:             parent,
		Point:              point,
		InjecteeClass:      ctx,
		Position:           position,
		RequiredQualifiers: qualifiers,
		Optional:           c.IsOptional(),
		Self:               c.IsSelf(),
		Unqualified:        c.UnqualifiedRule(),
	})
	e.logger.Debug("built injectee %s", inj)
	return inj, nil
}

// nameQualifiers gives a field's bare @Named the field name
func nameQualifiers(qualifiers []*annotations.Instance, field string) []*annotations.Instance {
	out := make([]*annotations.Instance, len(qualifiers))
	for i, q := range qualifiers {
		out[i] = q
		if q.Type() != annotations.NamedAnnotation {
			continue
		}
		if name, err := q.GetString("value", ""); err == nil && name == "" {
			out[i] = annotations.Named(field)
		}
	}
	return out
}

// ResolveHandle resolves point to a service handle
func (e *Engine) ResolveHandle(point DependencyPoint, ctx Type, registry ServiceRegistry) Result {
	inj, d, res, done := e.lookup(point, ctx, registry)
	if done {
		return res
	}

	handle, err := registry.Handle(d, inj)
	if err != nil {
		e.logger.Debug("handle for %s failed: %v", inj, err)
		return failed(inj, err)
	}
	return resolvedHandle(inj, handle)
}

// ResolveValue resolves point to a service value, tracked under root when root
// is not nil
func (e *Engine) ResolveValue(point DependencyPoint, ctx Type, root ServiceHandle, registry ServiceRegistry) Result {
	inj, d, res, done := e.lookup(point, ctx, registry)
	if done {
		return res
	}

	value, err := registry.Value(d, root, inj)
	if err != nil {
		e.logger.Debug("value for %s failed: %v", inj, err)
		return failed(inj, err)
	}
	return resolvedValue(inj, value)
}

// lookup builds the injectee and finds its descriptor. When done is true res is
// the final result.
func (e *Engine) lookup(point DependencyPoint, ctx Type, registry ServiceRegistry) (inj *Injectee, d Descriptor, res Result, done bool) {
	if registry == nil {
		return nil, nil, failed(nil, newInternalError("service registry is nil")), true
	}

	inj, err := e.Injectee(point, ctx)
	if err != nil {
		return nil, nil, failed(nil, err), true
	}

	d, ok := registry.FindDescriptor(inj)
	if !ok {
		if inj.IsOptional() {
			e.logger.Debug("optional %s left absent in %s", inj, registry.Name())
			return inj, nil, absent(inj), true
		}
		return inj, nil, failed(inj, NewUnsatisfiedDependencyError(inj, registry.Name())), true
	}

	e.logger.Debug("matched %s to %s", inj, describe(d))
	return inj, d, Result{}, false
}

// ResolveHandle resolves point with the default engine
func ResolveHandle(point DependencyPoint, ctx Type, registry ServiceRegistry) Result {
	return defaultEngine.ResolveHandle(point, ctx, registry)
}

// ResolveValue resolves point with the default engine
func ResolveValue(point DependencyPoint, ctx Type, root ServiceHandle, registry ServiceRegistry) Result {
	return defaultEngine.ResolveValue(point, ctx, root, registry)
}

// BuildInjectee builds the injectee for point with the default engine
func BuildInjectee(point DependencyPoint, ctx Type) (*Injectee, error) {
	return defaultEngine.Injectee(point, ctx)
}
