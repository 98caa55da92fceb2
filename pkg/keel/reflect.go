package keel

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/toyz/keel/internal/errors"
	"github.com/toyz/keel/pkg/annotations"
)

// TagName is the struct tag marking injected fields, e.g. `keel:"@Named(\"audit\")"`
const TagName = "keel"

var errorInterface = reflect.TypeFor[error]()

// FuncPoints describes the parameters of fn as constructor dependency points.
// tags[i] holds the annotations of parameter i in annotation syntax.
func (e *Engine) FuncPoints(fn any, tags ...string) (*Executable, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, errors.Newf(errors.TypeMismatchErrorCode, "constructor must be a function, got %T", fn)
	}
	ft := fv.Type()
	if len(tags) > ft.NumIn() {
		return nil, errors.Newf(errors.SchemaErrorCode, "%d annotation tags given for %d parameters", len(tags), ft.NumIn())
	}

	exec := NewConstructor(funcName(fv))
	for i := 0; i < ft.NumIn(); i++ {
		var anns []*annotations.Instance
		if i < len(tags) {
			parsed, err := e.parser.Parse(tags[i], annotations.SourceLocation{File: exec.Name()})
			if err != nil {
				return nil, err
			}
			anns = parsed
		}
		exec.Param(fmt.Sprintf("arg%d", i), TypeOf(ft.In(i)), anns...)
	}
	return exec, nil
}

// StructPoints describes the fields of a struct tagged with `keel` as field
// dependency points. rt may be a struct or a pointer to one.
func (e *Engine) StructPoints(rt reflect.Type) (*StructInfo, error) {
	st := rt
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, errors.Newf(errors.TypeMismatchErrorCode, "%s is not a struct", rt)
	}

	info := NewStruct(TypeOf(st))
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		tag, ok := sf.Tag.Lookup(TagName)
		if !ok || tag == "-" {
			continue
		}
		if !sf.IsExported() {
			return nil, errors.Newf(errors.SchemaErrorCode, "field %s.%s is tagged but not exported", st.Name(), sf.Name)
		}

		anns, err := e.parser.Parse(tag, annotations.SourceLocation{File: st.String() + "." + sf.Name})
		if err != nil {
			return nil, err
		}
		f := info.Field(sf.Name, TypeOf(sf.Type), anns...)
		f.index = i
	}
	return info, nil
}

// FuncPoints describes fn with the default engine
func FuncPoints(fn any, tags ...string) (*Executable, error) {
	return defaultEngine.FuncPoints(fn, tags...)
}

// StructPoints describes rt with the default engine
func StructPoints(rt reflect.Type) (*StructInfo, error) {
	return defaultEngine.StructPoints(rt)
}

func funcName(fv reflect.Value) string {
	f := runtime.FuncForPC(fv.Pointer())
	if f == nil {
		return "func"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Constant returns a factory that always yields v
func Constant(v any) Factory {
	return func(*CreationContext) (any, error) {
		return v, nil
	}
}

// Constructor returns a factory calling fn with its parameters resolved as
// dependencies. fn returns the service and optionally an error. tags annotate
// the parameters as in FuncPoints and are parsed with the engine of the
// locator creating the service.
func Constructor(fn any, tags ...string) Factory {
	return perEngine(func(e *Engine) Factory { return e.Constructor(fn, tags...) })
}

// StructOf returns a factory allocating rt and injecting its `keel` tagged
// fields. A pointer type yields a pointer to the populated struct. Tags are
// parsed with the engine of the locator creating the service.
func StructOf(rt reflect.Type) Factory {
	return perEngine(func(e *Engine) Factory { return e.StructOf(rt) })
}

// perEngine builds a factory once per engine it is used with
func perEngine(build func(*Engine) Factory) Factory {
	var (
		mu    sync.Mutex
		built = map[*Engine]Factory{}
	)
	return func(cc *CreationContext) (any, error) {
		e := cc.Locator().Engine()
		mu.Lock()
		f, ok := built[e]
		if !ok {
			f = build(e)
			built[e] = f
		}
		mu.Unlock()
		return f(cc)
	}
}

// Constructor is like the package Constructor with tags parsed by e
func (e *Engine) Constructor(fn any, tags ...string) Factory {
	exec, err := e.FuncPoints(fn, tags...)
	if err == nil {
		err = checkConstructorResults(reflect.TypeOf(fn))
	}

	return func(cc *CreationContext) (any, error) {
		if err != nil {
			return nil, err
		}
		fv := reflect.ValueOf(fn)
		ft := fv.Type()

		args := make([]reflect.Value, ft.NumIn())
		for i, p := range exec.Params() {
			v, err := cc.Resolve(p, cc.Descriptor().Implementation())
			if err != nil {
				return nil, err
			}
			arg, err := assignable(v, ft.In(i), p.Name())
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}

		// the variadic parameter resolves to the whole slice
		var out []reflect.Value
		if ft.IsVariadic() {
			out = fv.CallSlice(args)
		} else {
			out = fv.Call(args)
		}
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}
}

func checkConstructorResults(ft reflect.Type) error {
	switch {
	case ft.NumOut() == 1:
		return nil
	case ft.NumOut() == 2 && ft.Out(1) == errorInterface:
		return nil
	default:
		return errors.Newf(errors.TypeMismatchErrorCode, "constructor %s must return (T) or (T, error)", ft)
	}
}

// StructOf is like the package StructOf with tags parsed by e
func (e *Engine) StructOf(rt reflect.Type) Factory {
	info, err := e.StructPoints(rt)

	return func(cc *CreationContext) (any, error) {
		if err != nil {
			return nil, err
		}
		st := rt
		if st.Kind() == reflect.Pointer {
			st = st.Elem()
		}

		ptr := reflect.New(st)
		ctx := TypeOf(rt)
		for _, f := range info.Fields() {
			v, err := cc.Resolve(f, ctx)
			if err != nil {
				return nil, err
			}
			field := ptr.Elem().Field(f.Index())
			arg, err := assignable(v, field.Type(), f.Name())
			if err != nil {
				return nil, err
			}
			field.Set(arg)
		}

		if rt.Kind() == reflect.Pointer {
			return ptr.Interface(), nil
		}
		return ptr.Elem().Interface(), nil
	}
}

// assignable converts a resolved dependency into a value of type want. A nil
// dependency becomes the zero value.
func assignable(v any, want reflect.Type, name string) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(want), nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(want) {
		return reflect.Value{}, errors.Newf(errors.TypeMismatchErrorCode,
			"cannot use %s as %s for %s", rv.Type(), want, name)
	}
	return rv, nil
}
