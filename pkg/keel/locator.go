package keel

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/toyz/keel/internal/errors"
	"github.com/toyz/keel/internal/utils"
	"github.com/toyz/keel/pkg/annotations"
)

// Locator is an in-memory ServiceRegistry. Descriptors are matched by contract,
// qualifiers and the unqualified rule; among several matches the highest rank
// wins and ties go to the descriptor bound first.
type Locator struct {
	id          string
	name        string
	engine      *Engine
	logger      Logger
	descriptors *utils.BaseRegistry[string, *ServiceDescriptor]
	bindMu      sync.Mutex
}

// LocatorOption configures a Locator
type LocatorOption func(*Locator)

// UseEngine sets the engine factories resolve their dependencies with
func UseEngine(engine *Engine) LocatorOption {
	return func(l *Locator) {
		if engine != nil {
			l.engine = engine
		}
	}
}

// UseLogger sets the debug logger
func UseLogger(logger Logger) LocatorOption {
	return func(l *Locator) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLocator creates an empty locator called name
func NewLocator(name string, opts ...LocatorOption) *Locator {
	l := &Locator{
		id:     uuid.NewString(),
		name:   name,
		engine: DefaultEngine(),
		logger: nopLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}

	l.descriptors = utils.NewBaseRegistry[string, *ServiceDescriptor]("locator "+name, "descriptor id", "descriptor")
	l.descriptors.SetValidator(utils.ChainValidators[string, *ServiceDescriptor](
		utils.NotEmptyKeyValidator[*ServiceDescriptor]("descriptor id"),
		utils.NoDuplicateValidator[string, *ServiceDescriptor]("descriptor"),
		validateDescriptor,
	))
	return l
}

func validateDescriptor(_ string, d *ServiceDescriptor, _ map[string]*ServiceDescriptor) error {
	if d.impl == nil {
		return fmt.Errorf("descriptor has no implementation type")
	}
	if d.factory == nil {
		return fmt.Errorf("descriptor %s has no factory", describe(d))
	}
	if len(FreeVariables(d.impl)) > 0 {
		return fmt.Errorf("implementation %s is not a concrete type", d.impl)
	}
	return nil
}

// ID returns the unique id of the locator
func (l *Locator) ID() string { return l.id }

// Name returns the locator name
func (l *Locator) Name() string { return l.name }

// Engine returns the engine used by factories
func (l *Locator) Engine() *Engine { return l.engine }

// Bind registers descriptors in order. A descriptor can be bound once.
func (l *Locator) Bind(descriptors ...*ServiceDescriptor) error {
	l.bindMu.Lock()
	defer l.bindMu.Unlock()

	for _, d := range descriptors {
		if d == nil {
			return errors.WrapRegistrationError("descriptor", "<nil>", fmt.Errorf("descriptor is nil"))
		}
		if d.id != "" {
			return errors.WrapRegistrationError("descriptor", describe(d), fmt.Errorf("already bound with id %s", d.id))
		}

		id := uuid.NewString()
		if err := l.descriptors.Register(id, d); err != nil {
			return errors.WrapRegistrationError("descriptor", describe(d), err)
		}
		d.id = id
		l.logger.Debug("bound %s as %s in %s", describe(d), id, l.name)
	}
	return nil
}

// MustBind is like Bind but panics on error
func (l *Locator) MustBind(descriptors ...*ServiceDescriptor) *Locator {
	if err := l.Bind(descriptors...); err != nil {
		panic(err)
	}
	return l
}

// Unbind removes the descriptor with id
func (l *Locator) Unbind(id string) bool {
	return l.descriptors.Delete(id)
}

// Descriptors returns every bound descriptor in bind order
func (l *Locator) Descriptors() []Descriptor {
	values := l.descriptors.Values()
	out := make([]Descriptor, len(values))
	for i, d := range values {
		out[i] = d
	}
	return out
}

// Candidates returns every descriptor matching injectee, best first
func (l *Locator) Candidates(injectee *Injectee) []Descriptor {
	var out []Descriptor
	for _, d := range l.descriptors.Values() {
		if l.matches(d, injectee) {
			out = append(out, d)
		}
	}
	// stable insertion sort by rank keeps bind order among equal ranks
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Rank() > out[j-1].Rank(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// FindDescriptor implements ServiceRegistry
func (l *Locator) FindDescriptor(injectee *Injectee) (Descriptor, bool) {
	if injectee == nil {
		return nil, false
	}

	if injectee.IsSelf() {
		return l.findSelf(injectee)
	}

	var best *ServiceDescriptor
	for _, d := range l.descriptors.Values() {
		if !l.matches(d, injectee) {
			continue
		}
		if best == nil || d.rank > best.rank {
			best = d
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func (l *Locator) findSelf(injectee *Injectee) (Descriptor, bool) {
	class := injectee.InjecteeClass()
	if class == nil {
		return nil, false
	}
	want := RawType(Deref(class))
	for _, d := range l.descriptors.Values() {
		if TypesEqual(RawType(Deref(d.impl)), want) {
			return d, true
		}
	}
	return nil, false
}

func (l *Locator) matches(d *ServiceDescriptor, injectee *Injectee) bool {
	if !d.hasContract(injectee.RequiredType()) {
		return false
	}
	if !d.hasQualifiers(injectee.RequiredQualifiers()) {
		return false
	}
	if rule := injectee.Unqualified(); rule != nil && !rule.Allows(d.qualifiers) {
		return false
	}
	return true
}

// Handle implements ServiceRegistry. The service is created on first use.
func (l *Locator) Handle(d Descriptor, injectee *Injectee) (ServiceHandle, error) {
	sd, err := l.own(d)
	if err != nil {
		return nil, err
	}
	return l.newHandle(sd, injectee, nil), nil
}

// Value implements ServiceRegistry. A @Self injectee receives the descriptor itself.
func (l *Locator) Value(d Descriptor, root ServiceHandle, injectee *Injectee) (any, error) {
	sd, err := l.own(d)
	if err != nil {
		return nil, err
	}
	return l.newHandle(sd, injectee, root).Service()
}

// Lookup resolves a service of type t carrying qualifiers
func (l *Locator) Lookup(t Type, qualifiers ...*annotations.Instance) (any, error) {
	lookup := NewMethod("Lookup")
	point := lookup.Param("service", t, qualifiers...)

	v, _, err := l.engine.ResolveValue(point, nil, nil, l).Unpack()
	return v, err
}

// Get resolves the service registered for T
func Get[T any](l *Locator, qualifiers ...*annotations.Instance) (T, error) {
	var zero T
	v, err := l.Lookup(TypeFor[T](), qualifiers...)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.Newf(errors.TypeMismatchErrorCode, "service is %T, not %s", v, TypeFor[T]())
	}
	return t, nil
}

// own checks that d was bound to this locator
func (l *Locator) own(d Descriptor) (*ServiceDescriptor, error) {
	if d == nil {
		return nil, newInternalError("descriptor is nil")
	}
	sd, ok := l.descriptors.Get(d.ID())
	if !ok || Descriptor(sd) != d {
		return nil, newInternalError("descriptor %s is not bound to locator %s", describe(d), l.name)
	}
	return sd, nil
}

func (l *Locator) newHandle(d *ServiceDescriptor, injectee *Injectee, root ServiceHandle) *serviceHandle {
	return &serviceHandle{
		locator:  l,
		desc:     d,
		injectee: injectee,
		root:     root,
		self:     injectee != nil && injectee.IsSelf(),
	}
}

// create runs the factory of h's descriptor, refusing cycles along h's root chain
func (l *Locator) create(h *serviceHandle) (any, error) {
	if chain := cycleChain(h); chain != nil {
		return nil, newCycleError(chain)
	}

	l.logger.Debug("creating %s", describe(h.desc))
	cc := &CreationContext{locator: l, handle: h}
	v, err := h.desc.factory(cc)
	cc.release()
	if err != nil {
		return nil, errors.WrapCreationError(describe(h.desc), err)
	}
	return v, nil
}

// cycleChain returns the descriptors from the first occurrence of h's
// descriptor among its ancestors down to h, or nil when there is no cycle.
func cycleChain(h *serviceHandle) []Descriptor {
	ancestors := []Descriptor{h.desc}
	for r := parentOf(h); r != nil; r = parentOf(r) {
		d := r.Descriptor()
		if d == nil {
			continue
		}
		ancestors = append(ancestors, d)
		if d.ID() == h.desc.ID() {
			chain := make([]Descriptor, len(ancestors))
			for i, a := range ancestors {
				chain[len(ancestors)-1-i] = a
			}
			return chain
		}
	}
	return nil
}

// parentOf returns the handle h is created under: its root, or the handle
// whose factory is still running when h was handed out
func parentOf(h ServiceHandle) ServiceHandle {
	sh, ok := h.(*serviceHandle)
	if !ok {
		return h.Root()
	}
	if sh.root != nil {
		return sh.root
	}
	if creator := sh.creator.Load(); creator != nil {
		return creator
	}
	return nil
}

// serviceHandle is the ServiceHandle returned by Locator
type serviceHandle struct {
	locator  *Locator
	desc     *ServiceDescriptor
	injectee *Injectee
	root     ServiceHandle
	self     bool
	creator  atomic.Pointer[serviceHandle]

	mu      sync.Mutex
	done    bool
	service any
}

func (h *serviceHandle) Descriptor() Descriptor { return h.desc }
func (h *serviceHandle) Injectee() *Injectee    { return h.injectee }
func (h *serviceHandle) Root() ServiceHandle    { return h.root }

// Service returns the service, creating it when needed. Singleton services are
// shared across handles; transient ones are created once per handle.
func (h *serviceHandle) Service() (any, error) {
	if h.self {
		return h.desc, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return h.service, nil
	}

	var (
		v   any
		err error
	)
	if h.desc.mode == Singleton {
		if chain := cycleChain(h); chain != nil {
			return nil, newCycleError(chain)
		}
		v, err = h.desc.singleton(func() (any, error) { return h.locator.create(h) })
	} else {
		v, err = h.locator.create(h)
	}
	if err != nil {
		return nil, err
	}

	h.service = v
	h.done = true
	return v, nil
}

// IsActive reports whether the service behind the handle exists
func (h *serviceHandle) IsActive() bool {
	if h.self {
		return true
	}
	if h.desc.mode == Singleton && h.desc.created.Load() {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// CreationContext is handed to a Factory while its service is created
type CreationContext struct {
	locator *Locator
	handle  *serviceHandle

	mu      sync.Mutex
	handles []*serviceHandle
}

// release detaches the handles given out by ResolveHandle once the factory
// has returned; they then create their services as independent roots
func (cc *CreationContext) release() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	for _, h := range cc.handles {
		h.creator.CompareAndSwap(cc.handle, nil)
	}
	cc.handles = nil
}

// Locator returns the locator creating the service
func (cc *CreationContext) Locator() *Locator { return cc.locator }

// Descriptor returns the descriptor being created
func (cc *CreationContext) Descriptor() Descriptor { return cc.handle.desc }

// Handle returns the handle under construction. Dependencies resolved through
// the context are tracked under it.
func (cc *CreationContext) Handle() ServiceHandle { return cc.handle }

// Resolve resolves point in ctx as a dependency of the service being created.
// An absent optional dependency yields nil.
func (cc *CreationContext) Resolve(point DependencyPoint, ctx Type) (any, error) {
	v, _, err := cc.locator.engine.ResolveValue(point, ctx, cc.handle, cc.locator).Unpack()
	return v, err
}

// ResolveHandle resolves point in ctx to a handle without creating the service.
// Until the factory returns, creating the service through the handle counts as
// part of the current creation, so cycles are reported instead of blocking.
func (cc *CreationContext) ResolveHandle(point DependencyPoint, ctx Type) (ServiceHandle, error) {
	v, ok, err := cc.locator.engine.ResolveHandle(point, ctx, cc.locator).Unpack()
	if err != nil || !ok {
		return nil, err
	}
	h := v.(ServiceHandle)
	if sh, ok := h.(*serviceHandle); ok {
		sh.creator.Store(cc.handle)
		cc.mu.Lock()
		cc.handles = append(cc.handles, sh)
		cc.mu.Unlock()
	}
	return h, nil
}
