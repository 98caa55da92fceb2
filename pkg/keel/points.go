package keel

import (
	"github.com/toyz/keel/pkg/annotations"
)

// ParentKind tells what kind of element owns a dependency point
type ParentKind int

const (
	ConstructorParent ParentKind = iota
	MethodParent
	StructParent
)

// String returns the string representation of the parent kind
func (k ParentKind) String() string {
	switch k {
	case ConstructorParent:
		return "constructor"
	case MethodParent:
		return "method"
	case StructParent:
		return "struct"
	default:
		return "unknown"
	}
}

// Parent is the element that declares dependency points: a constructor or
// method with parameters, or a struct with injected fields.
type Parent interface {
	Name() string
	Kind() ParentKind
	Points() []DependencyPoint
}

// DependencyPoint is a parameter or field asking for a service
type DependencyPoint interface {
	Name() string
	DeclaredType() Type
	Annotations() []*annotations.Instance
	Parent() Parent
}

// Executable is a constructor or method and its parameters
type Executable struct {
	name   string
	kind   ParentKind
	params []*Parameter
}

// NewConstructor declares a constructor called name
func NewConstructor(name string) *Executable {
	return &Executable{name: name, kind: ConstructorParent}
}

// NewMethod declares a method called name
func NewMethod(name string) *Executable {
	return &Executable{name: name, kind: MethodParent}
}

// Param appends a parameter and returns it
func (e *Executable) Param(name string, declared Type, anns ...*annotations.Instance) *Parameter {
	p := &Parameter{name: name, declared: declared, annotations: anns, parent: e}
	e.params = append(e.params, p)
	return p
}

func (e *Executable) Name() string     { return e.name }
func (e *Executable) Kind() ParentKind { return e.kind }

// Params returns the parameters in declaration order
func (e *Executable) Params() []*Parameter {
	return append([]*Parameter(nil), e.params...)
}

func (e *Executable) Points() []DependencyPoint {
	points := make([]DependencyPoint, len(e.params))
	for i, p := range e.params {
		points[i] = p
	}
	return points
}

// Parameter is one parameter of an Executable
type Parameter struct {
	name        string
	declared    Type
	annotations []*annotations.Instance
	parent      Parent
}

// NewParameter creates a parameter that claims parent without being listed by it.
// Registries use it for synthetic lookups; the injectee builder rejects it.
func NewParameter(name string, declared Type, parent Parent, anns ...*annotations.Instance) *Parameter {
	return &Parameter{name: name, declared: declared, annotations: anns, parent: parent}
}

func (p *Parameter) Name() string       { return p.name }
func (p *Parameter) DeclaredType() Type { return p.declared }
func (p *Parameter) Parent() Parent     { return p.parent }

func (p *Parameter) Annotations() []*annotations.Instance {
	return append([]*annotations.Instance(nil), p.annotations...)
}

// StructInfo is a struct type with injected fields
type StructInfo struct {
	typ    Type
	fields []*Field
}

// NewStruct declares the injected fields of typ
func NewStruct(typ Type) *StructInfo {
	return &StructInfo{typ: typ}
}

// Field appends an injected field and returns it
func (s *StructInfo) Field(name string, declared Type, anns ...*annotations.Instance) *Field {
	f := &Field{name: name, declared: declared, annotations: anns, parent: s, index: -1}
	s.fields = append(s.fields, f)
	return f
}

func (s *StructInfo) Name() string     { return typeString(s.typ) }
func (s *StructInfo) Kind() ParentKind { return StructParent }

// Type returns the struct type
func (s *StructInfo) Type() Type { return s.typ }

// Fields returns the injected fields in declaration order
func (s *StructInfo) Fields() []*Field {
	return append([]*Field(nil), s.fields...)
}

func (s *StructInfo) Points() []DependencyPoint {
	points := make([]DependencyPoint, len(s.fields))
	for i, f := range s.fields {
		points[i] = f
	}
	return points
}

// Field is one injected struct field
type Field struct {
	name        string
	declared    Type
	annotations []*annotations.Instance
	parent      *StructInfo
	index       int
}

func (f *Field) Name() string       { return f.name }
func (f *Field) DeclaredType() Type { return f.declared }
func (f *Field) Parent() Parent     { return f.parent }

func (f *Field) Annotations() []*annotations.Instance {
	return append([]*annotations.Instance(nil), f.annotations...)
}

// Index returns the reflect field index, or -1 when the field was declared by hand
func (f *Field) Index() int { return f.index }
