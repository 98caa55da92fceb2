package annotations

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/toyz/keel/internal/utils"
)

// Registry defines the interface for managing annotation schemas
type Registry interface {
	// Register a new annotation type with its schema
	Register(schema *Schema) error

	// Lookup retrieves the schema for an annotation name
	Lookup(name string) (*Schema, bool)

	// ListTypes returns all registered annotation names, sorted
	ListTypes() []string

	// IsRegistered checks if an annotation name is registered
	IsRegistered(name string) bool
}

// registry is the concrete implementation of Registry
type registry struct {
	schemas *utils.BaseRegistry[string, *Schema]
}

// NewRegistry creates an empty annotation registry
func NewRegistry() Registry {
	schemas := utils.NewBaseRegistry[string, *Schema]("annotation", "annotation name", "schema")
	schemas.SetValidator(utils.ChainValidators[string, *Schema](
		utils.NotEmptyKeyValidator[*Schema]("annotation name"),
		utils.NoDuplicateValidator[string, *Schema]("annotation"),
		validateSchema,
	))
	return &registry{schemas: schemas}
}

// NewRegistryWithBuiltins creates a registry holding the built-in schemas
func NewRegistryWithBuiltins() Registry {
	r := NewRegistry()
	if err := RegisterBuiltinSchemas(r); err != nil {
		panic(err)
	}
	return r
}

var (
	defaultRegistry     Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the global registry, pre-populated with the built-in schemas
func DefaultRegistry() Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistryWithBuiltins()
	})
	return defaultRegistry
}

// Register adds a new annotation type with its schema to the registry
func (r *registry) Register(schema *Schema) error {
	if schema == nil {
		return fmt.Errorf("schema cannot be nil")
	}
	return r.schemas.Register(schema.Name, schema)
}

// Lookup retrieves the schema for an annotation name
func (r *registry) Lookup(name string) (*Schema, bool) {
	return r.schemas.Get(name)
}

// ListTypes returns all registered annotation names
func (r *registry) ListTypes() []string {
	names := r.schemas.List()
	sort.Strings(names)
	return names
}

// IsRegistered checks if an annotation name is registered
func (r *registry) IsRegistered(name string) bool {
	return r.schemas.Has(name)
}

// lookupFold finds a schema ignoring case, used for //keel:: directives
func lookupFold(r Registry, name string) (*Schema, bool) {
	if s, ok := r.Lookup(name); ok {
		return s, true
	}
	for _, candidate := range r.ListTypes() {
		if strings.EqualFold(candidate, name) {
			return r.Lookup(candidate)
		}
	}
	return nil, false
}

// validateSchema performs basic validation on a schema
func validateSchema(name string, schema *Schema, _ map[string]*Schema) error {
	if schema == nil {
		return fmt.Errorf("schema for %s cannot be nil", name)
	}
	if schema.Qualifier && schema.Marker != NoMarker {
		return fmt.Errorf("%s cannot be both a qualifier and a %s marker", name, schema.Marker)
	}

	for paramName, spec := range schema.Parameters {
		if paramName == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if spec.Kind <= InvalidKind || spec.Kind > MapKind {
			return fmt.Errorf("invalid parameter kind for %s: %d", paramName, spec.Kind)
		}
		if spec.DefaultValue.IsValid() && spec.DefaultValue.Kind() != spec.Kind {
			return fmt.Errorf("default value for %s parameter %s must be %s, got %s",
				spec.Kind, paramName, spec.Kind, spec.DefaultValue.Kind())
		}
	}

	return nil
}
