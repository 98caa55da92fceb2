package scanner

import (
	"go/types"

	"github.com/toyz/keel/pkg/keel"
)

// Converter maps go/types types onto the keel type model. Declared types are
// converted once, so every reference to a generic declaration shares the same
// type variables.
type Converter struct {
	named map[*types.TypeName]*keel.Named
	vars  map[*types.TypeParam]*keel.TypeVar
}

// NewConverter creates an empty converter
func NewConverter() *Converter {
	return &Converter{
		named: make(map[*types.TypeName]*keel.Named),
		vars:  make(map[*types.TypeParam]*keel.TypeVar),
	}
}

// Convert returns the keel model of t
func (c *Converter) Convert(t types.Type) keel.Type {
	if t == nil {
		return keel.Any
	}

	switch x := types.Unalias(t).(type) {
	case *types.Basic:
		// byte and rune are reported under their alias names
		return keel.Basic(types.Typ[x.Kind()].Name())
	case *types.Pointer:
		return keel.PointerTo(c.Convert(x.Elem()))
	case *types.Slice:
		return keel.SliceOf(c.Convert(x.Elem()))
	case *types.Array:
		return keel.SliceOf(c.Convert(x.Elem()))
	case *types.Map:
		return keel.MapOf(c.Convert(x.Key()), c.Convert(x.Elem()))
	case *types.Interface:
		if x.Empty() {
			return keel.Any
		}
	case *types.TypeParam:
		return c.typeVar(x)
	case *types.Named:
		return c.namedType(x)
	}
	return &keel.Named{Name: t.String()}
}

// Declare returns the generic declaration of n, converting it on first use
func (c *Converter) Declare(n *types.Named) *keel.Named {
	origin := n.Origin()
	obj := origin.Obj()
	if decl, ok := c.named[obj]; ok {
		return decl
	}

	decl := &keel.Named{PkgPath: obj.Pkg().Path(), Name: obj.Name()}
	// registered before supers are converted so self references terminate
	c.named[obj] = decl

	params := origin.TypeParams()
	for i := 0; i < params.Len(); i++ {
		tp := params.At(i)
		tv := &keel.TypeVar{Name: tp.Obj().Name(), Owner: decl.QualifiedName()}
		c.vars[tp] = tv
		decl.TypeParams = append(decl.TypeParams, tv)
	}
	for i := 0; i < params.Len(); i++ {
		c.bound(params.At(i))
	}

	switch u := origin.Underlying().(type) {
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if f := u.Field(i); f.Embedded() {
				decl.Supers = append(decl.Supers, keel.Deref(c.Convert(f.Type())))
			}
		}
	case *types.Interface:
		for i := 0; i < u.NumEmbeddeds(); i++ {
			if _, ok := types.Unalias(u.EmbeddedType(i)).(*types.Named); ok {
				decl.Supers = append(decl.Supers, c.Convert(u.EmbeddedType(i)))
			}
		}
	}
	return decl
}

// DeclareFunc registers the type parameters of a generic function under its
// qualified name
func (c *Converter) DeclareFunc(fn *types.Func) {
	sig, ok := fn.Type().(*types.Signature)
	if !ok {
		return
	}
	// receiver type parameters are the receiver declaration's own
	if recv := sig.Recv(); recv != nil && sig.RecvTypeParams().Len() > 0 {
		t := types.Unalias(recv.Type())
		if p, ok := t.(*types.Pointer); ok {
			t = types.Unalias(p.Elem())
		}
		if n, ok := t.(*types.Named); ok {
			decl := c.Declare(n)
			rparams := sig.RecvTypeParams()
			for i := 0; i < rparams.Len() && i < len(decl.TypeParams); i++ {
				c.vars[rparams.At(i)] = decl.TypeParams[i]
			}
		}
	}

	owner := fn.FullName()
	params := sig.TypeParams()
	for i := 0; i < params.Len(); i++ {
		tp := params.At(i)
		if _, ok := c.vars[tp]; !ok {
			c.vars[tp] = &keel.TypeVar{Name: tp.Obj().Name(), Owner: owner}
		}
	}
	for i := 0; i < params.Len(); i++ {
		c.bound(params.At(i))
	}
}

func (c *Converter) namedType(n *types.Named) keel.Type {
	obj := n.Obj()
	if obj.Pkg() == nil {
		if obj.Name() == "error" {
			return keel.ErrorType
		}
		return keel.Basic(obj.Name())
	}

	decl := c.Declare(n)
	args := n.TypeArgs()
	if args.Len() == 0 {
		return decl
	}
	converted := make([]keel.Type, args.Len())
	for i := 0; i < args.Len(); i++ {
		converted[i] = c.Convert(args.At(i))
	}
	return keel.Of(decl, converted...)
}

func (c *Converter) typeVar(tp *types.TypeParam) *keel.TypeVar {
	if tv, ok := c.vars[tp]; ok {
		return tv
	}
	owner := ""
	if pkg := tp.Obj().Pkg(); pkg != nil {
		owner = pkg.Path()
	}
	tv := &keel.TypeVar{Name: tp.Obj().Name(), Owner: owner}
	c.vars[tp] = tv
	return tv
}

// bound records a named constraint such as fmt.Stringer; anonymous
// constraints and type sets carry nothing the resolver can use
func (c *Converter) bound(tp *types.TypeParam) {
	tv := c.vars[tp]
	if tv == nil || len(tv.Bounds) > 0 {
		return
	}
	if n, ok := types.Unalias(tp.Constraint()).(*types.Named); ok && n.Obj().Pkg() != nil {
		tv.Bounds = []keel.Type{c.Convert(n)}
	}
}
