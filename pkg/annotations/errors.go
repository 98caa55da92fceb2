package annotations

import (
	"fmt"

	"github.com/toyz/keel/internal/errors"
)

// SourceLocation represents the location of an annotation in source code
type SourceLocation = errors.SourceLocation

// TypeMismatchError is returned when an attribute is read as a kind it does not hold
type TypeMismatchError struct {
	*errors.BaseError
	Expected Kind
	Actual   Kind
}

func newTypeMismatch(expected Kind, actual Value) *TypeMismatchError {
	return &TypeMismatchError{
		BaseError: errors.Newf(errors.TypeMismatchErrorCode,
			"expected %s value, got %s", expected, actual.Kind()),
		Expected: expected,
		Actual:   actual.Kind(),
	}
}

// SyntaxError represents an annotation that could not be parsed
type SyntaxError struct {
	*errors.BaseError
	Input string
}

func newSyntaxError(input string, loc SourceLocation, cause error) *SyntaxError {
	base := errors.Wrap(errors.SyntaxErrorCode, fmt.Sprintf("invalid annotation %q", input), cause).
		WithLocation(loc).
		WithSuggestion(`Use format: @Name, @Name("value") or @Name(key=value, ...)`)
	return &SyntaxError{BaseError: base, Input: input}
}

// SchemaError represents an annotation or schema that violates its declared parameters
type SchemaError struct {
	*errors.BaseError
	Annotation string
	Parameter  string
}

func newSchemaError(annotation, parameter, format string, args ...interface{}) *SchemaError {
	return &SchemaError{
		BaseError:  errors.Newf(errors.SchemaErrorCode, "@%s: "+format, append([]interface{}{annotation}, args...)...),
		Annotation: annotation,
		Parameter:  parameter,
	}
}
