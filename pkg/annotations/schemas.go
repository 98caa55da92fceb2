package annotations

import (
	"fmt"
)

// Built-in annotation names
const (
	NamedAnnotation       = "Named"
	OptionalAnnotation    = "Optional"
	SelfAnnotation        = "Self"
	UnqualifiedAnnotation = "Unqualified"
	ServiceAnnotation     = "Service"
)

// Service lifecycle modes accepted by @Service(Mode=...)
const (
	ModeSingleton = "Singleton"
	ModeTransient = "Transient"
)

// NamedSchema defines the @Named qualifier
var NamedSchema = &Schema{
	Name:        NamedAnnotation,
	Description: "Qualifies a dependency or service by name",
	Qualifier:   true,
	Parameters: map[string]ParameterSpec{
		"value": {
			Kind:         StringKind,
			DefaultValue: StringValue(""),
			Description:  "Service name",
		},
	},
	Examples: []string{
		`@Named("audit")`,
		`@Named(value="audit")`,
	},
}

// OptionalSchema defines the @Optional marker
var OptionalSchema = &Schema{
	Name:        OptionalAnnotation,
	Description: "Resolves to nothing instead of failing when no service matches",
	Marker:      OptionalMarker,
	Parameters:  map[string]ParameterSpec{},
	Examples: []string{
		"@Optional",
	},
}

// SelfSchema defines the @Self marker
var SelfSchema = &Schema{
	Name:        SelfAnnotation,
	Description: "Injects the descriptor of the service being constructed",
	Marker:      SelfMarker,
	Parameters:  map[string]ParameterSpec{},
	Examples: []string{
		"@Self",
	},
}

// UnqualifiedSchema defines the @Unqualified marker. With no value only services
// without any qualifier are eligible; otherwise services carrying one of the
// listed qualifiers are excluded.
var UnqualifiedSchema = &Schema{
	Name:        UnqualifiedAnnotation,
	Description: "Excludes qualified services from matching",
	Marker:      UnqualifiedMarker,
	Parameters: map[string]ParameterSpec{
		"value": {
			Kind:         ListKind,
			DefaultValue: StringsValue(),
			Description:  "Qualifier names to exclude; empty excludes every qualified service",
			Validator: func(v Value) error {
				_, err := v.AsStrings()
				return err
			},
		},
	},
	Examples: []string{
		"@Unqualified",
		"@Unqualified(Named)",
		"@Unqualified({Named, Primary})",
	},
}

// ServiceSchema defines the @Service declaration used by the source scanner
var ServiceSchema = &Schema{
	Name:        ServiceAnnotation,
	Description: "Declares a service provider",
	Parameters: map[string]ParameterSpec{
		"Name": {
			Kind:        StringKind,
			Description: "Service name, matched by @Named",
		},
		"Mode": {
			Kind:         StringKind,
			DefaultValue: StringValue(ModeSingleton),
			Description:  "Service lifecycle mode: 'Singleton' (default) or 'Transient'",
			Validator: func(v Value) error {
				mode, err := v.AsString()
				if err != nil {
					return err
				}
				if mode != ModeSingleton && mode != ModeTransient {
					return fmt.Errorf("must be '%s' or '%s', got '%s'", ModeSingleton, ModeTransient, mode)
				}
				return nil
			},
		},
		"Rank": {
			Kind:         IntKind,
			DefaultValue: IntValue(0),
			Description:  "Selection rank; higher ranks win when several services match",
		},
		"Contracts": {
			Kind:         ListKind,
			DefaultValue: StringsValue(),
			Description:  "Extra contract type names the service is advertised under",
		},
		"Qualifiers": {
			Kind:         ListKind,
			DefaultValue: StringsValue(),
			Description:  "Qualifier annotations carried by the service, e.g. {Primary}",
		},
	},
	Examples: []string{
		"//keel::service",
		"//keel::service -Name=audit",
		"//keel::service -Mode=Transient -Rank=10",
		"//keel::service -Qualifiers=Primary",
	},
}

// GetBuiltinSchemas returns all built-in annotation schemas
func GetBuiltinSchemas() []*Schema {
	return []*Schema{
		NamedSchema,
		OptionalSchema,
		SelfSchema,
		UnqualifiedSchema,
		ServiceSchema,
	}
}

// RegisterBuiltinSchemas registers all built-in annotation schemas with the given registry
func RegisterBuiltinSchemas(registry Registry) error {
	for _, schema := range GetBuiltinSchemas() {
		if err := registry.Register(schema); err != nil {
			return fmt.Errorf("failed to register %s schema: %w", schema.Name, err)
		}
	}
	return nil
}

// Named returns a @Named qualifier instance
func Named(name string) *Instance {
	return MustInstance(NamedSchema, map[string]Value{"value": StringValue(name)})
}

// Optional returns an @Optional marker instance
func Optional() *Instance {
	return MustInstance(OptionalSchema, nil)
}

// Self returns a @Self marker instance
func Self() *Instance {
	return MustInstance(SelfSchema, nil)
}

// Unqualified returns an @Unqualified marker excluding the given qualifier names
func Unqualified(excluded ...string) *Instance {
	if len(excluded) == 0 {
		return MustInstance(UnqualifiedSchema, nil)
	}
	return MustInstance(UnqualifiedSchema, map[string]Value{"value": StringsValue(excluded...)})
}

// Qualifier returns a schema for a custom parameterless qualifier such as @Primary
func Qualifier(name string) *Schema {
	return &Schema{
		Name:        name,
		Description: fmt.Sprintf("Qualifier %s", name),
		Qualifier:   true,
		Parameters:  map[string]ParameterSpec{},
	}
}
