package keel

import (
	"reflect"
	"strings"
)

// Type is a node of the keel type model. Implementations are *Named, *TypeVar,
// *Parameterized, *Slice, *Pointer, *Map and *Wildcard.
type Type interface {
	String() string
	isType()
}

// Named is a declared type. Generic types list their TypeParams; Supers holds
// the embedded or inherited types, written in terms of those parameters.
type Named struct {
	PkgPath    string
	Name       string
	TypeParams []*TypeVar
	Supers     []Type
}

// TypeVar is a type parameter. Two variables are the same when they have the
// same Owner and Name.
type TypeVar struct {
	Name   string
	Owner  string
	Bounds []Type
}

// Parameterized is an instantiation Raw[Args...] of a generic type
type Parameterized struct {
	Raw  *Named
	Args []Type
}

// Slice is a slice or array of Elem
type Slice struct {
	Elem Type
}

// Pointer is a pointer to Elem
type Pointer struct {
	Elem Type
}

// Map is a map from Key to Elem
type Map struct {
	Key  Type
	Elem Type
}

// Wildcard stands for an unknown type within bounds
type Wildcard struct {
	Upper []Type
	Lower []Type
}

func (*Named) isType()         {}
func (*TypeVar) isType()       {}
func (*Parameterized) isType() {}
func (*Slice) isType()         {}
func (*Pointer) isType()       {}
func (*Map) isType()           {}
func (*Wildcard) isType()      {}

// Any is the top type
var Any = &Named{Name: "any"}

// Predeclared types
var (
	StringType  = Basic("string")
	IntType     = Basic("int")
	Int64Type   = Basic("int64")
	Float64Type = Basic("float64")
	BoolType    = Basic("bool")
	ErrorType   = Basic("error")
)

// Basic returns a predeclared type such as int or string
func Basic(name string) *Named {
	return &Named{Name: name}
}

// NewNamed declares a type. Type parameters are created with the given names and
// owned by the new type.
func NewNamed(pkgPath, name string, typeParams ...string) *Named {
	n := &Named{PkgPath: pkgPath, Name: name}
	for _, param := range typeParams {
		n.TypeParams = append(n.TypeParams, &TypeVar{Name: param, Owner: n.QualifiedName()})
	}
	return n
}

// Extends appends supertypes to n and returns n
func (n *Named) Extends(supers ...Type) *Named {
	n.Supers = append(n.Supers, supers...)
	return n
}

// Param returns the type parameter called name, or nil
func (n *Named) Param(name string) *TypeVar {
	for _, tv := range n.TypeParams {
		if tv.Name == name {
			return tv
		}
	}
	return nil
}

// IsGeneric reports whether n declares type parameters
func (n *Named) IsGeneric() bool {
	return len(n.TypeParams) > 0
}

// QualifiedName returns the import path qualified name of n
func (n *Named) QualifiedName() string {
	if n.PkgPath == "" {
		return n.Name
	}
	return n.PkgPath + "." + n.Name
}

func (n *Named) String() string {
	if n.PkgPath == "" {
		return n.Name
	}
	return packageName(n.PkgPath) + "." + n.Name
}

func (v *TypeVar) String() string {
	return v.Name
}

func (v *TypeVar) key() string {
	return v.Owner + "#" + v.Name
}

func (p *Parameterized) String() string {
	args := make([]string, len(p.Args))
	for i, arg := range p.Args {
		args[i] = typeString(arg)
	}
	return typeString(p.Raw) + "[" + strings.Join(args, ", ") + "]"
}

func (s *Slice) String() string   { return "[]" + typeString(s.Elem) }
func (p *Pointer) String() string { return "*" + typeString(p.Elem) }
func (m *Map) String() string     { return "map[" + typeString(m.Key) + "]" + typeString(m.Elem) }

func (w *Wildcard) String() string {
	var b strings.Builder
	b.WriteString("?")
	for _, u := range w.Upper {
		b.WriteString(" extends ")
		b.WriteString(typeString(u))
	}
	for _, l := range w.Lower {
		b.WriteString(" super ")
		b.WriteString(typeString(l))
	}
	return b.String()
}

// Of instantiates raw with args
func Of(raw *Named, args ...Type) *Parameterized {
	return &Parameterized{Raw: raw, Args: args}
}

// SliceOf returns []elem
func SliceOf(elem Type) *Slice { return &Slice{Elem: elem} }

// PointerTo returns *elem
func PointerTo(elem Type) *Pointer { return &Pointer{Elem: elem} }

// MapOf returns map[key]elem
func MapOf(key, elem Type) *Map { return &Map{Key: key, Elem: elem} }

// Extending returns a wildcard bounded above by upper
func Extending(upper ...Type) *Wildcard { return &Wildcard{Upper: upper} }

// Super returns a wildcard bounded below by lower
func Super(lower ...Type) *Wildcard { return &Wildcard{Lower: lower} }

// TypesEqual reports whether a and b denote the same type
func TypesEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *Named:
		y, ok := b.(*Named)
		return ok && x.PkgPath == y.PkgPath && x.Name == y.Name
	case *TypeVar:
		y, ok := b.(*TypeVar)
		return ok && x.key() == y.key()
	case *Parameterized:
		y, ok := b.(*Parameterized)
		return ok && TypesEqual(x.Raw, y.Raw) && typeListsEqual(x.Args, y.Args)
	case *Slice:
		y, ok := b.(*Slice)
		return ok && TypesEqual(x.Elem, y.Elem)
	case *Pointer:
		y, ok := b.(*Pointer)
		return ok && TypesEqual(x.Elem, y.Elem)
	case *Map:
		y, ok := b.(*Map)
		return ok && TypesEqual(x.Key, y.Key) && TypesEqual(x.Elem, y.Elem)
	case *Wildcard:
		y, ok := b.(*Wildcard)
		return ok && typeListsEqual(x.Upper, y.Upper) && typeListsEqual(x.Lower, y.Lower)
	default:
		return false
	}
}

func typeListsEqual(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !TypesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// RawType strips an instantiation down to its generic declaration
func RawType(t Type) Type {
	if p, ok := t.(*Parameterized); ok {
		return p.Raw
	}
	return t
}

// Deref strips every pointer level from t
func Deref(t Type) Type {
	for {
		p, ok := t.(*Pointer)
		if !ok {
			return t
		}
		t = p.Elem
	}
}

// FreeVariables returns the type variables t still mentions, in order of appearance
func FreeVariables(t Type) []*TypeVar {
	var out []*TypeVar
	seen := make(map[string]bool)
	var walk func(Type)
	walk = func(t Type) {
		switch x := t.(type) {
		case *TypeVar:
			if !seen[x.key()] {
				seen[x.key()] = true
				out = append(out, x)
			}
		case *Parameterized:
			for _, arg := range x.Args {
				walk(arg)
			}
		case *Slice:
			walk(x.Elem)
		case *Pointer:
			walk(x.Elem)
		case *Map:
			walk(x.Key)
			walk(x.Elem)
		case *Wildcard:
			for _, u := range x.Upper {
				walk(u)
			}
			for _, l := range x.Lower {
				walk(l)
			}
		}
	}
	walk(t)
	return out
}

// typeKey is like String but fully qualifies named types
func typeKey(t Type) string {
	switch x := t.(type) {
	case nil:
		return "<nil>"
	case *Named:
		return x.QualifiedName()
	case *TypeVar:
		return x.key()
	case *Parameterized:
		args := make([]string, len(x.Args))
		for i, arg := range x.Args {
			args[i] = typeKey(arg)
		}
		return typeKey(x.Raw) + "[" + strings.Join(args, ",") + "]"
	case *Slice:
		return "[]" + typeKey(x.Elem)
	case *Pointer:
		return "*" + typeKey(x.Elem)
	case *Map:
		return "map[" + typeKey(x.Key) + "]" + typeKey(x.Elem)
	default:
		return t.String()
	}
}

func typeString(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func packageName(pkgPath string) string {
	if i := strings.LastIndex(pkgPath, "/"); i >= 0 {
		return pkgPath[i+1:]
	}
	return pkgPath
}

// TypeOf converts a runtime type into the type model. Runtime types are always
// concrete: instantiated generics become Parameterized values whose raw type
// carries no type parameters.
func TypeOf(rt reflect.Type) Type {
	if rt == nil {
		return Any
	}

	if rt.Name() != "" {
		name := rt.Name()
		if open := strings.IndexByte(name, '['); open > 0 && strings.HasSuffix(name, "]") {
			raw := &Named{PkgPath: rt.PkgPath(), Name: name[:open]}
			args, ok := parseTypeList(name[open+1 : len(name)-1])
			if ok {
				return Of(raw, args...)
			}
		}
		return &Named{PkgPath: rt.PkgPath(), Name: name}
	}

	switch rt.Kind() {
	case reflect.Pointer:
		return PointerTo(TypeOf(rt.Elem()))
	case reflect.Slice, reflect.Array:
		return SliceOf(TypeOf(rt.Elem()))
	case reflect.Map:
		return MapOf(TypeOf(rt.Key()), TypeOf(rt.Elem()))
	case reflect.Interface:
		if rt.NumMethod() == 0 {
			return Any
		}
	}
	return &Named{Name: rt.String()}
}

// TypeFor returns the model of T
func TypeFor[T any]() Type {
	return TypeOf(reflect.TypeFor[T]())
}

// parseTypeList parses the type arguments reflect prints inside an instantiated
// type name, e.g. "int,example.com/app.Order".
func parseTypeList(s string) ([]Type, bool) {
	var out []Type
	for _, part := range splitTopLevel(s) {
		t, ok := parseTypeName(strings.TrimSpace(part))
		if !ok {
			return nil, false
		}
		out = append(out, t)
	}
	return out, len(out) > 0
}

func parseTypeName(s string) (Type, bool) {
	switch {
	case s == "":
		return nil, false
	case s == "interface {}" || s == "any":
		return Any, true
	case strings.HasPrefix(s, "*"):
		elem, ok := parseTypeName(s[1:])
		return PointerTo(elem), ok
	case strings.HasPrefix(s, "[]"):
		elem, ok := parseTypeName(s[2:])
		return SliceOf(elem), ok
	case strings.HasPrefix(s, "["):
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, false
		}
		elem, ok := parseTypeName(s[end+1:])
		return SliceOf(elem), ok
	case strings.HasPrefix(s, "map["):
		depth := 0
		for i := 3; i < len(s); i++ {
			switch s[i] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					key, ok1 := parseTypeName(s[4:i])
					elem, ok2 := parseTypeName(s[i+1:])
					return MapOf(key, elem), ok1 && ok2
				}
			}
		}
		return nil, false
	}

	base, args := s, ""
	if open := strings.IndexByte(s, '['); open > 0 && strings.HasSuffix(s, "]") {
		base, args = s[:open], s[open+1:len(s)-1]
	}

	named := &Named{Name: base}
	if dot := strings.LastIndexByte(base, '.'); dot > 0 {
		named = &Named{PkgPath: base[:dot], Name: base[dot+1:]}
	}
	if args == "" {
		return named, true
	}
	parsed, ok := parseTypeList(args)
	if !ok {
		return nil, false
	}
	return Of(named, parsed...), true
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
