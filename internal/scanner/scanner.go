// Package scanner loads Go packages and extracts the dependency points and
// service declarations keel can check statically.
//
// Struct fields tagged with `keel` become field points. Functions carry
// directives in their doc comments:
//
//	//keel::service -Name=audit -Mode=Transient -Rank=10 -Contracts=Auditor -Qualifiers=Primary
//	//keel::param store @Named("orders") @Optional
//	func NewAuditor(store Store) *Auditor
//
// //keel::service on a type declares the type itself as a service, on a
// function declares the function's first result, created by that function.
// //keel::provide marks a function or method whose parameters are injected
// without declaring a service.
package scanner

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/toyz/keel/internal/errors"
	"github.com/toyz/keel/pkg/annotations"
	"github.com/toyz/keel/pkg/keel"
)

// Directive names understood by the scanner
const (
	ServiceDirective = "service"
	ProvideDirective = "provide"
	ParamDirective   = "param"
)

// LoadMode is the information the scanner needs from go/packages
const LoadMode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
	packages.NeedTypes | packages.NeedTypesInfo

// Config controls package loading
type Config struct {
	// Dir is the directory patterns are resolved in; empty means the current directory
	Dir string
	// Tags are build tags passed to the go command
	Tags []string
	// Env overrides the environment of the go command
	Env []string
}

// Service is a service declared in source
type Service struct {
	Implementation keel.Type
	Qualifiers     []*annotations.Instance
	Name           string
	Rank           int
	Mode           keel.Mode
	Position       token.Position

	// Contracts lists the types named by -Contracts; the implementation is always a contract
	Contracts []keel.Type

	// Constructor is the declaring function, nil for services declared on a type
	Constructor *keel.Executable
}

// Descriptor builds a descriptor for the service created by factory
func (s Service) Descriptor(factory keel.Factory) *keel.ServiceDescriptor {
	opts := []keel.DescriptorOption{
		keel.WithContracts(s.Contracts...),
		keel.WithQualifiers(s.Qualifiers...),
		keel.WithRank(s.Rank),
		keel.WithMode(s.Mode),
	}
	if s.Name != "" {
		opts = append(opts, keel.WithName(s.Name))
	}
	return keel.NewDescriptor(s.Implementation, factory, opts...)
}

// Problem is a declaration the scanner could not interpret
type Problem struct {
	Position token.Position
	Err      error
}

func (p Problem) Error() string {
	if !p.Position.IsValid() {
		return p.Err.Error()
	}
	return fmt.Sprintf("%s: %v", p.Position, p.Err)
}

func (p Problem) Unwrap() error { return p.Err }

// Result is everything extracted from the loaded packages
type Result struct {
	Packages []*packages.Package
	// Targets are the dependency points with the context they are reached through
	Targets  []keel.Target
	Services []Service
	Problems []Problem
}

// Scanner extracts dependency points from Go source
type Scanner struct {
	config    Config
	registry  annotations.Registry
	parser    *annotations.Parser
	converter *Converter
	logger    keel.Logger
}

// Option configures a Scanner
type Option func(*Scanner)

// WithRegistry parses annotations against registry. Qualifiers named by
// //keel::service directives are registered in it.
func WithRegistry(registry annotations.Registry) Option {
	return func(s *Scanner) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithQualifiers registers parameterless qualifiers such as Primary
func WithQualifiers(names ...string) Option {
	return func(s *Scanner) {
		for _, name := range names {
			s.registerQualifier(name)
		}
	}
}

// WithLogger sends scanner debug output to logger
func WithLogger(logger keel.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}

// New creates a scanner
func New(config Config, opts ...Option) *Scanner {
	s := &Scanner{
		config:    config,
		registry:  annotations.NewRegistryWithBuiltins(),
		converter: NewConverter(),
		logger:    nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = annotations.NewParser(s.registry)
	return s
}

// Registry returns the annotation registry, including discovered qualifiers
func (s *Scanner) Registry() annotations.Registry {
	return s.registry
}

// Converter returns the converter shared by every load
func (s *Scanner) Converter() *Converter {
	return s.converter
}

func (s *Scanner) registerQualifier(name string) {
	if name == "" || s.registry.IsRegistered(name) {
		return
	}
	// a duplicate registration is the only possible failure
	_ = s.registry.Register(annotations.Qualifier(name))
}

// Load loads the packages matching patterns and extracts their points and
// services. Package load errors fail the whole load; declarations that cannot
// be interpreted are reported as problems.
func (s *Scanner) Load(ctx context.Context, patterns ...string) (*Result, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	pattern := strings.Join(patterns, " ")

	cfg := &packages.Config{
		Context: ctx,
		Mode:    LoadMode,
		Dir:     s.config.Dir,
		Env:     s.config.Env,
	}
	if len(s.config.Tags) > 0 {
		cfg.BuildFlags = []string{"-tags=" + strings.Join(s.config.Tags, ",")}
	}

	s.logger.Debug("loading %s", pattern)
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, errors.WrapScanError(pattern, err)
	}

	loadErrs := errors.NewMultipleErrors()
	for _, pkg := range pkgs {
		for _, pe := range pkg.Errors {
			loadErrs.Add(errors.WrapScanError(pkg.PkgPath, pe).
				WithLocation(positionLocation(pe.Pos)))
		}
	}
	if err := loadErrs.ErrOrNil(); err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		return nil, errors.WrapScanError(pattern, fmt.Errorf("no packages matched"))
	}

	return s.Extract(pkgs), nil
}

// Extract extracts points and services from already loaded packages. The
// packages must have been loaded with LoadMode.
func (s *Scanner) Extract(pkgs []*packages.Package) *Result {
	ex := &extraction{
		scanner: s,
		result:  &Result{Packages: pkgs},
		structs: make(map[*types.TypeName]*keel.StructInfo),
	}

	// services first, so the qualifiers they declare are known to the tag parser
	for _, pkg := range pkgs {
		ex.visit(pkg, ex.collectServices)
	}
	for _, pkg := range pkgs {
		ex.visit(pkg, ex.collectPoints)
	}
	ex.structTargets()

	s.logger.Debug("extracted %d points and %d services from %d packages",
		len(ex.result.Targets), len(ex.result.Services), len(pkgs))
	return ex.result
}

// decl is one annotated declaration
type decl struct {
	pkg  *packages.Package
	doc  *ast.CommentGroup
	spec *ast.TypeSpec
	fn   *ast.FuncDecl
}

type extraction struct {
	scanner *Scanner
	result  *Result

	structs  map[*types.TypeName]*keel.StructInfo
	concrete []*types.Named
}

func (ex *extraction) visit(pkg *packages.Package, handle func(decl)) {
	for _, file := range pkg.Syntax {
		for _, d := range file.Decls {
			switch node := d.(type) {
			case *ast.GenDecl:
				if node.Tok != token.TYPE {
					continue
				}
				for _, spec := range node.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					doc := ts.Doc
					if doc == nil && len(node.Specs) == 1 {
						doc = node.Doc
					}
					handle(decl{pkg: pkg, doc: doc, spec: ts})
				}
			case *ast.FuncDecl:
				handle(decl{pkg: pkg, doc: node.Doc, fn: node})
			}
		}
	}
}

func (ex *extraction) problem(pkg *packages.Package, pos token.Pos, err error) {
	p := Problem{Err: err}
	if pkg.Fset != nil {
		p.Position = pkg.Fset.Position(pos)
	}
	ex.scanner.logger.Debug("problem: %v", p)
	ex.result.Problems = append(ex.result.Problems, p)
}

func (ex *extraction) location(pkg *packages.Package, pos token.Pos) annotations.SourceLocation {
	if pkg.Fset == nil {
		return annotations.SourceLocation{File: pkg.PkgPath}
	}
	p := pkg.Fset.Position(pos)
	return annotations.SourceLocation{File: p.Filename, Line: p.Line, Column: p.Column}
}

// directives returns the //keel:: comments of doc
func directives(doc *ast.CommentGroup) []*ast.Comment {
	if doc == nil {
		return nil
	}
	var out []*ast.Comment
	for _, c := range doc.List {
		if annotations.IsDirective(c.Text) {
			out = append(out, c)
		}
	}
	return out
}

func (ex *extraction) collectServices(d decl) {
	for _, c := range directives(d.doc) {
		if annotations.DirectiveType(c.Text) != ServiceDirective {
			continue
		}
		inst, err := ex.scanner.parser.ParseDirective(c.Text, ex.location(d.pkg, c.Pos()))
		if err != nil {
			ex.problem(d.pkg, c.Pos(), err)
			continue
		}
		qualifiers, err := inst.GetStrings("Qualifiers")
		if err != nil {
			ex.problem(d.pkg, c.Pos(), err)
			continue
		}
		for _, name := range qualifiers {
			ex.scanner.registerQualifier(name)
		}
	}
}

func (ex *extraction) collectPoints(d decl) {
	if d.spec != nil {
		ex.typeDecl(d)
		return
	}
	ex.funcDecl(d)
}

func (ex *extraction) typeDecl(d decl) {
	obj, ok := d.pkg.TypesInfo.Defs[d.spec.Name].(*types.TypeName)
	if !ok || obj.IsAlias() {
		return
	}
	named, ok := obj.Type().(*types.Named)
	if !ok {
		return
	}
	conv := ex.scanner.converter
	declared := conv.Declare(named)

	if st, ok := named.Underlying().(*types.Struct); ok {
		if !declared.IsGeneric() {
			ex.concrete = append(ex.concrete, named)
		}
		if info := ex.structInfo(d.pkg, declared, st); info != nil {
			ex.structs[obj] = info
		}
	}

	for _, c := range directives(d.doc) {
		if annotations.DirectiveType(c.Text) != ServiceDirective {
			continue
		}
		var impl keel.Type = declared
		if _, isStruct := named.Underlying().(*types.Struct); isStruct {
			impl = keel.PointerTo(declared)
		}
		ex.service(d.pkg, c, impl, nil)
	}
}

// structInfo collects the tagged fields of st, or returns nil when there are none
func (ex *extraction) structInfo(pkg *packages.Package, typ keel.Type, st *types.Struct) *keel.StructInfo {
	var info *keel.StructInfo
	for i := 0; i < st.NumFields(); i++ {
		field := st.Field(i)
		tag, ok := reflect.StructTag(st.Tag(i)).Lookup(keel.TagName)
		if !ok || tag == "-" {
			continue
		}
		if !field.Exported() {
			ex.problem(pkg, field.Pos(), fmt.Errorf("field %s is tagged but not exported", field.Name()))
			continue
		}
		anns, err := ex.scanner.parser.Parse(tag, ex.location(pkg, field.Pos()))
		if err != nil {
			ex.problem(pkg, field.Pos(), err)
			continue
		}
		if info == nil {
			info = keel.NewStruct(typ)
		}
		info.Field(field.Name(), ex.scanner.converter.Convert(field.Type()), anns...)
	}
	return info
}

// structTargets reaches every tagged struct through itself, when it is not
// generic, and through every concrete struct that embeds it
func (ex *extraction) structTargets() {
	conv := ex.scanner.converter
	for _, named := range ex.concrete {
		ctx := conv.Convert(named)
		for _, ancestor := range embedded(named) {
			info, ok := ex.structs[ancestor.Obj()]
			if !ok {
				continue
			}
			for _, f := range info.Fields() {
				ex.result.Targets = append(ex.result.Targets, keel.Target{Point: f, Context: ctx})
			}
		}
	}
}

// embedded returns named followed by every struct it embeds, transitively,
// each declaration once
func embedded(named *types.Named) []*types.Named {
	var out []*types.Named
	seen := make(map[*types.TypeName]bool)
	var walk func(*types.Named)
	walk = func(n *types.Named) {
		if seen[n.Origin().Obj()] {
			return
		}
		seen[n.Origin().Obj()] = true
		out = append(out, n.Origin())

		st, ok := n.Underlying().(*types.Struct)
		if !ok {
			return
		}
		for i := 0; i < st.NumFields(); i++ {
			f := st.Field(i)
			if !f.Embedded() {
				continue
			}
			t := types.Unalias(f.Type())
			if p, ok := t.(*types.Pointer); ok {
				t = types.Unalias(p.Elem())
			}
			if inner, ok := t.(*types.Named); ok {
				walk(inner)
			}
		}
	}
	walk(named)
	return out
}

func (ex *extraction) funcDecl(d decl) {
	comments := directives(d.doc)
	if len(comments) == 0 {
		return
	}
	fn, ok := d.pkg.TypesInfo.Defs[d.fn.Name].(*types.Func)
	if !ok {
		return
	}
	sig := fn.Type().(*types.Signature)
	conv := ex.scanner.converter
	conv.DeclareFunc(fn)

	var service, provide *ast.Comment
	var params []*ast.Comment
	for _, c := range comments {
		switch annotations.DirectiveType(c.Text) {
		case ServiceDirective:
			service = c
		case ProvideDirective:
			provide = c
		case ParamDirective:
			params = append(params, c)
		}
	}
	if service == nil && provide == nil {
		if len(params) > 0 {
			ex.problem(d.pkg, params[0].Pos(), fmt.Errorf("%s has //keel::param without //keel::service or //keel::provide", fn.Name()))
		}
		return
	}

	exec, ctx := ex.executable(fn, sig)
	if exec == nil {
		return
	}
	anns := ex.paramAnnotations(d.pkg, sig, params)
	for i := 0; i < sig.Params().Len(); i++ {
		v := sig.Params().At(i)
		exec.Param(v.Name(), conv.Convert(v.Type()), anns[v.Name()]...)
	}

	if service != nil {
		if sig.Results().Len() == 0 {
			ex.problem(d.pkg, service.Pos(), fmt.Errorf("service constructor %s returns nothing", fn.Name()))
		} else {
			impl := conv.Convert(sig.Results().At(0).Type())
			ctx = keel.Deref(impl)
			ex.service(d.pkg, service, impl, exec)
		}
	}

	for _, p := range exec.Points() {
		ex.result.Targets = append(ex.result.Targets, keel.Target{Point: p, Context: ctx})
	}
}

// executable declares fn as a constructor, or as a method of its receiver
// type. ctx is the receiver's declaration for methods, so parameters of a
// generic receiver stay unbound.
func (ex *extraction) executable(fn *types.Func, sig *types.Signature) (*keel.Executable, keel.Type) {
	recv := sig.Recv()
	if recv == nil {
		return keel.NewConstructor(fn.Pkg().Name() + "." + fn.Name()), nil
	}
	ctx := keel.RawType(keel.Deref(ex.scanner.converter.Convert(recv.Type())))
	name := ctx.String() + "." + fn.Name()
	return keel.NewMethod(name), ctx
}

// paramAnnotations parses //keel::param lines into annotations by parameter name
func (ex *extraction) paramAnnotations(pkg *packages.Package, sig *types.Signature, params []*ast.Comment) map[string][]*annotations.Instance {
	known := make(map[string]bool, sig.Params().Len())
	for i := 0; i < sig.Params().Len(); i++ {
		known[sig.Params().At(i).Name()] = true
	}

	out := make(map[string][]*annotations.Instance)
	for _, c := range params {
		name, rest, _ := strings.Cut(annotations.DirectiveBody(c.Text), " ")
		if name == "" {
			ex.problem(pkg, c.Pos(), fmt.Errorf("//keel::param needs a parameter name"))
			continue
		}
		if !known[name] {
			ex.problem(pkg, c.Pos(), fmt.Errorf("unknown parameter %q", name))
			continue
		}
		anns, err := ex.scanner.parser.Parse(strings.TrimSpace(rest), ex.location(pkg, c.Pos()))
		if err != nil {
			ex.problem(pkg, c.Pos(), err)
			continue
		}
		out[name] = append(out[name], anns...)
	}
	return out
}

// service records a //keel::service declaration implemented by impl
func (ex *extraction) service(pkg *packages.Package, c *ast.Comment, impl keel.Type, ctor *keel.Executable) {
	inst, err := ex.scanner.parser.ParseDirective(c.Text, ex.location(pkg, c.Pos()))
	if err != nil {
		// reported while collecting services
		return
	}

	svc := Service{
		Implementation: impl,
		Constructor:    ctor,
		Position:       pkg.Fset.Position(c.Pos()),
	}
	if svc.Name, err = inst.GetString("Name", ""); err != nil {
		ex.problem(pkg, c.Pos(), err)
		return
	}

	modeName, err := inst.GetString("Mode")
	if err != nil {
		ex.problem(pkg, c.Pos(), err)
		return
	}
	mode, ok := keel.ParseMode(modeName)
	if !ok {
		ex.problem(pkg, c.Pos(), fmt.Errorf("unknown mode %q", modeName))
		return
	}
	svc.Mode = mode

	rank, err := inst.GetInt("Rank")
	if err != nil {
		ex.problem(pkg, c.Pos(), err)
		return
	}
	svc.Rank = int(rank)

	contracts, err := inst.GetStrings("Contracts")
	if err != nil {
		ex.problem(pkg, c.Pos(), err)
		return
	}
	for _, name := range contracts {
		t, err := ex.lookupType(pkg, name)
		if err != nil {
			ex.problem(pkg, c.Pos(), err)
			return
		}
		svc.Contracts = append(svc.Contracts, t)
	}

	qualifiers, _ := inst.GetStrings("Qualifiers")
	for _, name := range qualifiers {
		schema, _ := ex.scanner.registry.Lookup(name)
		q, err := annotations.NewInstance(schema, nil)
		if err != nil {
			ex.problem(pkg, c.Pos(), err)
			return
		}
		svc.Qualifiers = append(svc.Qualifiers, q)
	}

	ex.scanner.logger.Debug("service %s declared at %s", impl, svc.Position)
	ex.result.Services = append(ex.result.Services, svc)
}

// lookupType resolves a contract name written as Name, *Name or pkg.Name
// against the scope of pkg and its imports
func (ex *extraction) lookupType(pkg *packages.Package, name string) (keel.Type, error) {
	pointer := strings.HasPrefix(name, "*")
	ident := strings.TrimPrefix(name, "*")

	scope := pkg.Types.Scope()
	if qualifier, local, ok := strings.Cut(ident, "."); ok {
		scope = nil
		for _, imp := range pkg.Types.Imports() {
			if imp.Name() == qualifier {
				scope = imp.Scope()
				break
			}
		}
		if scope == nil {
			return nil, fmt.Errorf("contract %s: package %s is not imported", name, qualifier)
		}
		ident = local
	}

	obj, ok := scope.Lookup(ident).(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("contract %s is not a type", name)
	}
	t := ex.scanner.converter.Convert(obj.Type())
	if pointer {
		t = keel.PointerTo(t)
	}
	return t, nil
}

func positionLocation(pos string) errors.SourceLocation {
	if pos == "" || pos == "-" {
		return errors.SourceLocation{}
	}
	parts := strings.Split(pos, ":")
	loc := errors.SourceLocation{File: parts[0]}
	if len(parts) > 1 {
		loc.Line, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		loc.Column, _ = strconv.Atoi(parts[2])
	}
	return loc
}
