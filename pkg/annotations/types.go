package annotations

import (
	"fmt"
	"sort"
	"strings"
)

// MarkerKind classifies non-qualifier annotations the resolver understands
type MarkerKind int

const (
	NoMarker MarkerKind = iota
	OptionalMarker
	SelfMarker
	UnqualifiedMarker
)

// String returns the string representation of the marker kind
func (m MarkerKind) String() string {
	switch m {
	case OptionalMarker:
		return "optional"
	case SelfMarker:
		return "self"
	case UnqualifiedMarker:
		return "unqualified"
	default:
		return "none"
	}
}

// ParameterSpec defines the specification for an annotation parameter
type ParameterSpec struct {
	Kind         Kind              // Parameter kind
	Required     bool              // Whether parameter is required
	DefaultValue Value             // Declared default, invalid when there is none
	Description  string            // Parameter description
	Validator    func(Value) error // Custom validator function
}

// CustomValidator represents a custom validation function for annotations
type CustomValidator func(*Instance) error

// Schema defines an annotation type. Qualifier plays the role of a
// meta-annotation: instances of a qualifier schema disambiguate services.
type Schema struct {
	Name        string                   // Annotation name as written after '@'
	Description string                   // Human-readable description
	Qualifier   bool                     // Whether the annotation is a qualifier
	Marker      MarkerKind               // Marker role for non-qualifiers
	Parameters  map[string]ParameterSpec // Parameter specifications
	Validators  []CustomValidator        // Custom validation functions
	Examples    []string                 // Usage examples
}

// Instance is one annotation attached to an element. It holds only the values
// written explicitly; declared defaults come from the schema on demand.
type Instance struct {
	schema   *Schema
	values   map[string]Value
	Location SourceLocation
	Raw      string
}

// NewInstance validates values against schema and returns the annotation instance
func NewInstance(schema *Schema, values map[string]Value) (*Instance, error) {
	if schema == nil {
		return nil, fmt.Errorf("annotation schema cannot be nil")
	}

	inst := &Instance{
		schema: schema,
		values: make(map[string]Value, len(values)),
	}
	for key, value := range values {
		if spec, ok := schema.Parameters[key]; ok {
			value = coerce(value, spec.Kind)
		}
		inst.values[key] = value
	}

	if err := inst.validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// MustInstance is like NewInstance but panics on invalid values
func MustInstance(schema *Schema, values map[string]Value) *Instance {
	inst, err := NewInstance(schema, values)
	if err != nil {
		panic(err)
	}
	return inst
}

func (i *Instance) validate() error {
	for key, value := range i.values {
		spec, ok := i.schema.Parameters[key]
		if !ok {
			return newSchemaError(i.schema.Name, key, "unknown parameter '%s'", key)
		}
		if spec.Kind != value.Kind() {
			return newSchemaError(i.schema.Name, key, "parameter '%s' must be %s, got %s", key, spec.Kind, value.Kind())
		}
		if spec.Validator != nil {
			if err := spec.Validator(value); err != nil {
				return newSchemaError(i.schema.Name, key, "parameter '%s' validation failed: %v", key, err)
			}
		}
	}

	for key, spec := range i.schema.Parameters {
		if spec.Required {
			if _, ok := i.values[key]; !ok {
				return newSchemaError(i.schema.Name, key, "missing required parameter '%s'", key)
			}
		}
	}

	for _, validator := range i.schema.Validators {
		if err := validator(i); err != nil {
			return newSchemaError(i.schema.Name, "", "%v", err)
		}
	}
	return nil
}

// Type returns the annotation type name
func (i *Instance) Type() string { return i.schema.Name }

// Schema returns the annotation schema
func (i *Instance) Schema() *Schema { return i.schema }

// IsQualifier reports whether the annotation type is a qualifier
func (i *Instance) IsQualifier() bool { return i.schema.Qualifier }

// Marker returns the marker role of the annotation type
func (i *Instance) Marker() MarkerKind { return i.schema.Marker }

// Has reports whether key was given explicitly
func (i *Instance) Has(key string) bool {
	_, ok := i.values[key]
	return ok
}

// Values returns the explicitly written attribute values
func (i *Instance) Values() map[string]Value {
	out := make(map[string]Value, len(i.values))
	for k, v := range i.values {
		out[k] = v
	}
	return out
}

// Value returns the attribute value, or def when the attribute was not written.
// The schema's declared default is not consulted.
func (i *Instance) Value(key string, kind Kind, def Value) (Value, error) {
	v, ok := i.values[key]
	if !ok {
		v = def
	}
	if v.Kind() != kind {
		return Value{}, newTypeMismatch(kind, v)
	}
	return v, nil
}

// ValueOf returns the attribute value, falling back to the schema's declared default
func (i *Instance) ValueOf(key string, kind Kind) (Value, error) {
	if v, ok := i.values[key]; ok {
		if v.Kind() != kind {
			return Value{}, newTypeMismatch(kind, v)
		}
		return v, nil
	}

	spec, ok := i.schema.Parameters[key]
	if !ok || !spec.DefaultValue.IsValid() {
		return Value{}, newSchemaError(i.schema.Name, key, "no value and no default for '%s'", key)
	}
	if spec.DefaultValue.Kind() != kind {
		return Value{}, newTypeMismatch(kind, spec.DefaultValue)
	}
	return spec.DefaultValue, nil
}

func (i *Instance) lookup(key string, kind Kind, def []Value) (Value, error) {
	if len(def) > 0 {
		return i.Value(key, kind, def[0])
	}
	return i.ValueOf(key, kind)
}

// GetString returns a string parameter value with optional default
func (i *Instance) GetString(key string, defaultValue ...string) (string, error) {
	var def []Value
	if len(defaultValue) > 0 {
		def = []Value{StringValue(defaultValue[0])}
	}
	v, err := i.lookup(key, StringKind, def)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// GetInt returns an integer parameter value with optional default
func (i *Instance) GetInt(key string, defaultValue ...int64) (int64, error) {
	var def []Value
	if len(defaultValue) > 0 {
		def = []Value{IntValue(defaultValue[0])}
	}
	v, err := i.lookup(key, IntKind, def)
	if err != nil {
		return 0, err
	}
	return v.AsInt()
}

// GetBool returns a boolean parameter value with optional default
func (i *Instance) GetBool(key string, defaultValue ...bool) (bool, error) {
	var def []Value
	if len(defaultValue) > 0 {
		def = []Value{BoolValue(defaultValue[0])}
	}
	v, err := i.lookup(key, BoolKind, def)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

// GetStrings returns a string list parameter value with optional default
func (i *Instance) GetStrings(key string, defaultValue ...[]string) ([]string, error) {
	var def []Value
	if len(defaultValue) > 0 {
		def = []Value{StringsValue(defaultValue[0]...)}
	}
	v, err := i.lookup(key, ListKind, def)
	if err != nil {
		return nil, err
	}
	return v.AsStrings()
}

// effective merges declared defaults with explicit values
func (i *Instance) effective() map[string]Value {
	out := make(map[string]Value, len(i.schema.Parameters))
	for key, spec := range i.schema.Parameters {
		if spec.DefaultValue.IsValid() {
			out[key] = spec.DefaultValue
		}
	}
	for key, v := range i.values {
		out[key] = v
	}
	return out
}

// Key is the canonical identity of the annotation: its type plus every
// effective attribute value in key order.
func (i *Instance) Key() string {
	values := i.effective()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("@")
	b.WriteString(i.schema.Name)
	if len(keys) > 0 {
		b.WriteString("(")
		for n, k := range keys {
			if n > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(values[k].String())
		}
		b.WriteString(")")
	}
	return b.String()
}

// Equal reports annotation equality: same type and same effective values
func (i *Instance) Equal(other *Instance) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.Key() == other.Key()
}

// String returns the canonical form of the annotation
func (i *Instance) String() string {
	return i.Key()
}
