package keel

import (
	"fmt"
	"strings"

	"github.com/toyz/keel/internal/errors"
)

// Sentinels for errors.Is. They match any error carrying the same code.
var (
	ErrTypeResolution        = errors.New(errors.TypeResolutionErrorCode, "type resolution failed")
	ErrInternal              = errors.New(errors.InternalConsistencyErrorCode, "internal consistency failure")
	ErrUnsatisfiedDependency = errors.New(errors.UnsatisfiedDependencyErrorCode, "unsatisfied dependency")
	ErrCycle                 = errors.New(errors.CycleErrorCode, "dependency cycle")
	ErrCreation              = errors.New(errors.CreationErrorCode, "service creation failed")
	ErrRegistration          = errors.New(errors.RegistrationErrorCode, "registration failed")
)

// TypeResolutionError reports a type variable that could not be bound
type TypeResolutionError struct {
	*errors.BaseError
	Variable *TypeVar
	Context  Type
	Declared Type
}

func newTypeResolutionError(v *TypeVar, detail string) *TypeResolutionError {
	msg := detail
	if msg == "" {
		msg = fmt.Sprintf("type variable %s of %s is not bound", v.Name, v.Owner)
	}
	base := errors.New(errors.TypeResolutionErrorCode, msg).
		WithSuggestion("Resolve the dependency through a concrete instantiation of its declaring type")
	if v != nil {
		base.WithContext("variable", v.Name).WithContext("owner", v.Owner)
	}
	return &TypeResolutionError{BaseError: base, Variable: v}
}

func (e *TypeResolutionError) attach(ctx, declared Type) {
	e.Context = ctx
	e.Declared = declared
	e.Message = fmt.Sprintf("cannot resolve %s in context %s: %s", typeString(declared), typeString(ctx), e.Message)
	e.WithContext("context", typeString(ctx)).WithContext("declared", typeString(declared))
}

// InternalError signals a broken invariant, such as a dependency point that is
// not listed by its own parent. It indicates a caller bug.
type InternalError struct {
	*errors.BaseError
}

func newInternalError(format string, args ...interface{}) *InternalError {
	return &InternalError{BaseError: errors.Newf(errors.InternalConsistencyErrorCode, format, args...)}
}

// UnsatisfiedDependencyError reports a required dependency no descriptor satisfies
type UnsatisfiedDependencyError struct {
	*errors.BaseError
	Injectee *Injectee
	Registry string
}

// NewUnsatisfiedDependencyError builds the failure for injectee in the named registry
func NewUnsatisfiedDependencyError(injectee *Injectee, registry string) *UnsatisfiedDependencyError {
	base := errors.Newf(errors.UnsatisfiedDependencyErrorCode,
		"no service in registry %s satisfies %s", registry, injectee).
		WithContext("injectee", injectee.String()).
		WithContext("registry", registry).
		WithContext("type", typeString(injectee.RequiredType()))

	if qualifiers := injectee.RequiredQualifiers(); len(qualifiers) > 0 {
		keys := make([]string, len(qualifiers))
		for i, q := range qualifiers {
			keys[i] = q.Key()
		}
		base.WithContext("qualifiers", keys).
			WithSuggestion(fmt.Sprintf("Bind a service of type %s qualified with %s",
				injectee.RequiredType(), strings.Join(keys, " ")))
	} else {
		base.WithSuggestion(fmt.Sprintf("Bind a service of type %s", injectee.RequiredType()))
	}
	base.WithSuggestion("Mark the dependency @Optional if it may be missing")

	return &UnsatisfiedDependencyError{BaseError: base, Injectee: injectee, Registry: registry}
}

// CycleError reports a service that requires itself while being created
type CycleError struct {
	*errors.BaseError
	Chain []Descriptor
}

func newCycleError(chain []Descriptor) *CycleError {
	names := make([]string, len(chain))
	for i, d := range chain {
		names[i] = describe(d)
	}
	base := errors.Newf(errors.CycleErrorCode, "dependency cycle: %s", strings.Join(names, " -> ")).
		WithContext("chain", names).
		WithSuggestion("Break the cycle by injecting a ServiceHandle and calling Service() after the factory returns")
	return &CycleError{BaseError: base, Chain: chain}
}

func describe(d Descriptor) string {
	if d == nil {
		return "<nil>"
	}
	if d.Name() != "" {
		return fmt.Sprintf("%s(%s)", typeString(d.Implementation()), d.Name())
	}
	return typeString(d.Implementation())
}
