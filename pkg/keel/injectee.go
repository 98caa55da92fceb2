package keel

import (
	"fmt"
	"strings"

	"github.com/toyz/keel/pkg/annotations"
)

// Injectee is the resolved, immutable description of one dependency point
type Injectee struct {
	requiredType  Type
	parent        Parent
	point         DependencyPoint
	injecteeClass Type
	position      int
	qualifiers    []*annotations.Instance
	optional      bool
	self          bool
	unqualified   *annotations.UnqualifiedRule
}

// InjecteeSpec holds the fields of an Injectee under construction
type InjecteeSpec struct {
	RequiredType       Type
	Parent             Parent
	Point              DependencyPoint
	InjecteeClass      Type
	Position           int
	RequiredQualifiers []*annotations.Instance
	Optional           bool
	Self               bool
	Unqualified        *annotations.UnqualifiedRule
}

// NewInjectee freezes spec into an Injectee. Qualifiers are deduplicated by key.
func NewInjectee(spec InjecteeSpec) *Injectee {
	inj := &Injectee{
		requiredType:  spec.RequiredType,
		parent:        spec.Parent,
		point:         spec.Point,
		injecteeClass: spec.InjecteeClass,
		position:      spec.Position,
		optional:      spec.Optional,
		self:          spec.Self,
	}

	seen := make(map[string]bool, len(spec.RequiredQualifiers))
	for _, q := range spec.RequiredQualifiers {
		if q == nil || seen[q.Key()] {
			continue
		}
		seen[q.Key()] = true
		inj.qualifiers = append(inj.qualifiers, q)
	}

	if spec.Unqualified != nil {
		inj.unqualified = &annotations.UnqualifiedRule{
			Excluded: append([]string{}, spec.Unqualified.Excluded...),
		}
	}
	return inj
}

// RequiredType is the concrete type the dependency asks for
func (i *Injectee) RequiredType() Type { return i.requiredType }

// Parent is the constructor, method or struct owning the point
func (i *Injectee) Parent() Parent { return i.parent }

// Point is the dependency point the injectee was built from
func (i *Injectee) Point() DependencyPoint { return i.point }

// InjecteeClass is the declaring context the point was resolved in
func (i *Injectee) InjecteeClass() Type { return i.injecteeClass }

// Position is the parameter index, or -1 for fields
func (i *Injectee) Position() int { return i.position }

// RequiredQualifiers returns the qualifiers a descriptor must carry
func (i *Injectee) RequiredQualifiers() []*annotations.Instance {
	return append([]*annotations.Instance(nil), i.qualifiers...)
}

// IsOptional reports whether a missing service is acceptable
func (i *Injectee) IsOptional() bool { return i.optional }

// IsSelf reports whether the point asks for its own descriptor
func (i *Injectee) IsSelf() bool { return i.self }

// Unqualified returns the exclusion rule, or nil
func (i *Injectee) Unqualified() *annotations.UnqualifiedRule {
	if i.unqualified == nil {
		return nil
	}
	return &annotations.UnqualifiedRule{Excluded: append([]string{}, i.unqualified.Excluded...)}
}

// Equal compares the structure of two injectees. Parent and point compare by identity.
func (i *Injectee) Equal(other *Injectee) bool {
	if i == nil || other == nil {
		return i == other
	}
	if !TypesEqual(i.requiredType, other.requiredType) ||
		!TypesEqual(i.injecteeClass, other.injecteeClass) ||
		i.parent != other.parent ||
		i.point != other.point ||
		i.position != other.position ||
		i.optional != other.optional ||
		i.self != other.self {
		return false
	}
	if !sameKeys(i.qualifiers, other.qualifiers) {
		return false
	}

	switch {
	case i.unqualified == nil || other.unqualified == nil:
		return i.unqualified == nil && other.unqualified == nil
	case len(i.unqualified.Excluded) != len(other.unqualified.Excluded):
		return false
	}
	for n := range i.unqualified.Excluded {
		if i.unqualified.Excluded[n] != other.unqualified.Excluded[n] {
			return false
		}
	}
	return true
}

func sameKeys(a, b []*annotations.Instance) bool {
	if len(a) != len(b) {
		return false
	}
	keys := make(map[string]bool, len(a))
	for _, q := range a {
		keys[q.Key()] = true
	}
	for _, q := range b {
		if !keys[q.Key()] {
			return false
		}
	}
	return true
}

// String describes the injectee for diagnostics
func (i *Injectee) String() string {
	var b strings.Builder
	b.WriteString(typeString(i.requiredType))
	for _, q := range i.qualifiers {
		b.WriteString(" ")
		b.WriteString(q.Key())
	}
	if i.unqualified != nil {
		b.WriteString(" ")
		b.WriteString(i.unqualified.String())
	}
	if i.optional {
		b.WriteString(" @Optional")
	}
	if i.self {
		b.WriteString(" @Self")
	}

	if i.point != nil {
		where := i.point.Name()
		if i.parent != nil {
			where = i.parent.Name() + "." + where
			if i.position >= 0 {
				where = fmt.Sprintf("%s(#%d)", where, i.position)
			}
		}
		b.WriteString(" at ")
		b.WriteString(where)
	}
	if i.injecteeClass != nil {
		b.WriteString(" in ")
		b.WriteString(typeString(i.injecteeClass))
	}
	return b.String()
}
