package keel

import (
	"github.com/toyz/keel/pkg/annotations"
)

// Mode is the lifecycle of the services a descriptor produces
type Mode int

const (
	// Singleton descriptors create their service once
	Singleton Mode = iota
	// Transient descriptors create a new service for every request
	Transient
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case Transient:
		return annotations.ModeTransient
	default:
		return annotations.ModeSingleton
	}
}

// ParseMode converts an annotation value into a Mode
func ParseMode(s string) (Mode, bool) {
	switch s {
	case annotations.ModeSingleton, "":
		return Singleton, true
	case annotations.ModeTransient:
		return Transient, true
	default:
		return Singleton, false
	}
}

// Descriptor is a registry's record of one available service
type Descriptor interface {
	ID() string
	Implementation() Type
	Contracts() []Type
	Qualifiers() []*annotations.Instance
	Name() string
	Rank() int
	Mode() Mode
}

// ServiceHandle is an opaque reference to a service whose lifecycle the
// registry manages
type ServiceHandle interface {
	Descriptor() Descriptor
	Injectee() *Injectee
	Root() ServiceHandle
	Service() (any, error)
	IsActive() bool
}

// ServiceRegistry is the lookup contract the resolution engine consumes
type ServiceRegistry interface {
	// FindDescriptor returns the single descriptor judged to satisfy the injectee
	FindDescriptor(injectee *Injectee) (Descriptor, bool)

	// Handle returns a handle for d, requested on behalf of injectee
	Handle(d Descriptor, injectee *Injectee) (ServiceHandle, error)

	// Value returns the service of d, tracked under root when root is not nil
	Value(d Descriptor, root ServiceHandle, injectee *Injectee) (any, error)

	// Name identifies the registry in diagnostics
	Name() string
}
