package annotations

// UnqualifiedRule restricts matching to services whose qualifiers are not
// excluded. An empty Excluded list means the service must carry no qualifier.
type UnqualifiedRule struct {
	Excluded []string
}

// NewUnqualifiedRule builds the rule carried by an @Unqualified instance
func NewUnqualifiedRule(inst *Instance) *UnqualifiedRule {
	excluded, err := inst.GetStrings("value", nil)
	if err != nil {
		excluded = nil
	}
	return &UnqualifiedRule{Excluded: excluded}
}

// Allows reports whether a service carrying qualifiers passes the rule
func (r *UnqualifiedRule) Allows(qualifiers []*Instance) bool {
	if r == nil {
		return true
	}
	if len(r.Excluded) == 0 {
		return len(qualifiers) == 0
	}
	for _, q := range qualifiers {
		for _, name := range r.Excluded {
			if q.Type() == name {
				return false
			}
		}
	}
	return true
}

// String returns the rule in annotation syntax
func (r *UnqualifiedRule) String() string {
	if r == nil {
		return ""
	}
	if len(r.Excluded) == 0 {
		return "@" + UnqualifiedAnnotation
	}
	return "@" + UnqualifiedAnnotation + "(" + StringsValue(r.Excluded...).String() + ")"
}

// Classification splits the annotations of a dependency point into the roles
// the resolver cares about.
type Classification struct {
	// Qualifiers in declaration order, without duplicates
	Qualifiers []*Instance

	// Marker instances, nil when absent. When a marker kind appears more than
	// once the last occurrence is kept.
	Optional    *Instance
	Self        *Instance
	Unqualified *Instance

	// Other holds annotations with no resolver meaning
	Other []*Instance
}

// IsOptional reports whether @Optional was present
func (c Classification) IsOptional() bool { return c.Optional != nil }

// IsSelf reports whether @Self was present
func (c Classification) IsSelf() bool { return c.Self != nil }

// UnqualifiedRule returns the @Unqualified rule, or nil when absent
func (c Classification) UnqualifiedRule() *UnqualifiedRule {
	if c.Unqualified == nil {
		return nil
	}
	return NewUnqualifiedRule(c.Unqualified)
}

// Classify sorts annotations into qualifiers and markers. Qualifiers with the
// same canonical key are kept once.
func Classify(annotations []*Instance) Classification {
	var c Classification
	seen := make(map[string]bool)

	for _, inst := range annotations {
		if inst == nil {
			continue
		}
		if inst.IsQualifier() {
			key := inst.Key()
			if !seen[key] {
				seen[key] = true
				c.Qualifiers = append(c.Qualifiers, inst)
			}
			continue
		}

		switch inst.Marker() {
		case OptionalMarker:
			c.Optional = inst
		case SelfMarker:
			c.Self = inst
		case UnqualifiedMarker:
			c.Unqualified = inst
		default:
			c.Other = append(c.Other, inst)
		}
	}
	return c
}

// Qualifiers returns only the qualifier annotations, deduplicated
func Qualifiers(annotations []*Instance) []*Instance {
	return Classify(annotations).Qualifiers
}

// HasQualifier reports whether qualifiers contain one equal to q
func HasQualifier(qualifiers []*Instance, q *Instance) bool {
	for _, candidate := range qualifiers {
		if candidate.Equal(q) {
			return true
		}
	}
	return false
}
