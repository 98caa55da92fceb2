package keel

import (
	"sync"
	"sync/atomic"

	"github.com/toyz/keel/pkg/annotations"
)

// Factory creates the service of a descriptor
type Factory func(cc *CreationContext) (any, error)

// ServiceDescriptor is the Descriptor implementation used by Locator
type ServiceDescriptor struct {
	id         string
	impl       Type
	contracts  []Type
	qualifiers []*annotations.Instance
	name       string
	rank       int
	mode       Mode
	factory    Factory

	mu       sync.Mutex
	created  atomic.Bool
	instance any
}

// DescriptorOption configures a ServiceDescriptor
type DescriptorOption func(*ServiceDescriptor)

// WithContracts advertises the service under extra types
func WithContracts(contracts ...Type) DescriptorOption {
	return func(d *ServiceDescriptor) {
		for _, c := range contracts {
			if c != nil && !d.hasExactContract(c) {
				d.contracts = append(d.contracts, c)
			}
		}
	}
}

// WithQualifiers attaches qualifier annotations to the service
func WithQualifiers(qualifiers ...*annotations.Instance) DescriptorOption {
	return func(d *ServiceDescriptor) {
		for _, q := range qualifiers {
			if q != nil && !annotations.HasQualifier(d.qualifiers, q) {
				d.qualifiers = append(d.qualifiers, q)
			}
		}
	}
}

// WithName names the service. The name is also attached as a @Named qualifier.
func WithName(name string) DescriptorOption {
	return func(d *ServiceDescriptor) {
		d.name = name
		if name != "" {
			WithQualifiers(annotations.Named(name))(d)
		}
	}
}

// WithRank sets the selection rank. Higher ranks win.
func WithRank(rank int) DescriptorOption {
	return func(d *ServiceDescriptor) {
		d.rank = rank
	}
}

// WithMode sets the lifecycle mode
func WithMode(mode Mode) DescriptorOption {
	return func(d *ServiceDescriptor) {
		d.mode = mode
	}
}

// NewDescriptor describes a service implemented by impl and created by factory.
// The implementation type is always one of the contracts.
func NewDescriptor(impl Type, factory Factory, opts ...DescriptorOption) *ServiceDescriptor {
	d := &ServiceDescriptor{
		impl:    impl,
		factory: factory,
		mode:    Singleton,
	}
	if impl != nil {
		d.contracts = []Type{impl}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *ServiceDescriptor) ID() string           { return d.id }
func (d *ServiceDescriptor) Implementation() Type { return d.impl }
func (d *ServiceDescriptor) Name() string         { return d.name }
func (d *ServiceDescriptor) Rank() int            { return d.rank }
func (d *ServiceDescriptor) Mode() Mode           { return d.mode }

func (d *ServiceDescriptor) Contracts() []Type {
	return append([]Type(nil), d.contracts...)
}

func (d *ServiceDescriptor) Qualifiers() []*annotations.Instance {
	return append([]*annotations.Instance(nil), d.qualifiers...)
}

// String describes the descriptor for diagnostics
func (d *ServiceDescriptor) String() string {
	return describe(d)
}

func (d *ServiceDescriptor) hasExactContract(t Type) bool {
	for _, c := range d.contracts {
		if TypesEqual(c, t) {
			return true
		}
	}
	return false
}

// hasContract reports whether the service can be injected as t. A raw generic
// contract also satisfies any instantiation of it.
func (d *ServiceDescriptor) hasContract(t Type) bool {
	if d.hasExactContract(t) {
		return true
	}
	p, ok := t.(*Parameterized)
	if !ok {
		return false
	}
	for _, c := range d.contracts {
		if n, ok := c.(*Named); ok && TypesEqual(n, p.Raw) {
			return true
		}
	}
	return false
}

func (d *ServiceDescriptor) hasQualifiers(required []*annotations.Instance) bool {
	for _, q := range required {
		if !annotations.HasQualifier(d.qualifiers, q) {
			return false
		}
	}
	return true
}

// singleton returns the cached service, creating it with create the first time.
// Failures are not cached.
func (d *ServiceDescriptor) singleton(create func() (any, error)) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.created.Load() {
		return d.instance, nil
	}
	v, err := create()
	if err != nil {
		return nil, err
	}
	d.instance = v
	d.created.Store(true)
	return v, nil
}
