package keel

import "fmt"

// maxSubstitutionDepth bounds variable chains such as T -> U -> V
const maxSubstitutionDepth = 64

// bindings maps a type variable key to the type bound to it
type bindings map[string]Type

// ResolveType resolves declared in the context of ctx. Type variables are bound
// by walking ctx and its supertypes: an instantiation C[X] binds the parameter
// of C to X, and that binding flows into the supertypes C declares. Wildcards
// resolve to their first upper bound. A variable that stays unbound is an error.
func ResolveType(ctx Type, declared Type) (Type, error) {
	if declared == nil {
		return nil, newInternalError("declared type is nil")
	}

	env := make(bindings)
	if ctx != nil {
		if err := collectBindings(ctx, env, make(map[string]bool)); err != nil {
			return nil, attachTypes(err, ctx, declared)
		}
	}

	resolved, err := substitute(declared, env, true, 0)
	if err != nil {
		return nil, attachTypes(err, ctx, declared)
	}
	return resolved, nil
}

func attachTypes(err error, ctx, declared Type) error {
	if tre, ok := err.(*TypeResolutionError); ok {
		tre.attach(ctx, declared)
	}
	return err
}

// collectBindings walks t and its supertypes, recording every binding an
// instantiation introduces. The first binding found for a variable is kept.
func collectBindings(t Type, env bindings, visited map[string]bool) error {
	key := typeKey(t)
	if visited[key] {
		return nil
	}
	visited[key] = true

	switch x := t.(type) {
	case *Pointer:
		return collectBindings(x.Elem, env, visited)

	case *Named:
		for _, super := range x.Supers {
			if err := collectBindings(super, env, visited); err != nil {
				return err
			}
		}

	case *Parameterized:
		raw := x.Raw
		if raw == nil {
			return newInternalError("parameterized type without raw type")
		}
		if len(raw.TypeParams) != len(x.Args) {
			return newTypeResolutionError(nil,
				fmt.Sprintf("%s declares %d type parameters but %d arguments were given",
					raw, len(raw.TypeParams), len(x.Args)))
		}

		local := make(bindings, len(raw.TypeParams))
		for i, param := range raw.TypeParams {
			local[param.key()] = x.Args[i]
			if _, bound := env[param.key()]; !bound {
				env[param.key()] = x.Args[i]
			}
		}

		for _, super := range raw.Supers {
			s, err := substitute(super, local, false, 0)
			if err != nil {
				return err
			}
			if err := collectBindings(s, env, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// substitute replaces bound variables in t. In strict mode unbound variables
// fail and wildcards collapse to their upper bound; otherwise both are kept.
func substitute(t Type, env bindings, strict bool, depth int) (Type, error) {
	if depth > maxSubstitutionDepth {
		return nil, newTypeResolutionError(nil, fmt.Sprintf("type variable chain too deep resolving %s", t))
	}

	switch x := t.(type) {
	case *TypeVar:
		bound, ok := env[x.key()]
		if !ok {
			if strict {
				return nil, newTypeResolutionError(x, "")
			}
			return x, nil
		}
		if v, ok := bound.(*TypeVar); ok && v.key() == x.key() {
			if strict {
				return nil, newTypeResolutionError(x, "")
			}
			return x, nil
		}
		return substitute(bound, env, strict, depth+1)

	case *Parameterized:
		args := make([]Type, len(x.Args))
		for i, arg := range x.Args {
			a, err := substitute(arg, env, strict, depth+1)
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		return &Parameterized{Raw: x.Raw, Args: args}, nil

	case *Slice:
		elem, err := substitute(x.Elem, env, strict, depth+1)
		if err != nil {
			return nil, err
		}
		return &Slice{Elem: elem}, nil

	case *Pointer:
		elem, err := substitute(x.Elem, env, strict, depth+1)
		if err != nil {
			return nil, err
		}
		return &Pointer{Elem: elem}, nil

	case *Map:
		key, err := substitute(x.Key, env, strict, depth+1)
		if err != nil {
			return nil, err
		}
		elem, err := substitute(x.Elem, env, strict, depth+1)
		if err != nil {
			return nil, err
		}
		return &Map{Key: key, Elem: elem}, nil

	case *Wildcard:
		if strict {
			if len(x.Upper) == 0 {
				return Any, nil
			}
			return substitute(x.Upper[0], env, strict, depth+1)
		}
		upper, err := substituteAll(x.Upper, env, depth)
		if err != nil {
			return nil, err
		}
		lower, err := substituteAll(x.Lower, env, depth)
		if err != nil {
			return nil, err
		}
		return &Wildcard{Upper: upper, Lower: lower}, nil

	default:
		return t, nil
	}
}

func substituteAll(ts []Type, env bindings, depth int) ([]Type, error) {
	if ts == nil {
		return nil, nil
	}
	out := make([]Type, len(ts))
	for i, t := range ts {
		s, err := substitute(t, env, false, depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
