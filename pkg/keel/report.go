package keel

import (
	stderrors "errors"

	"github.com/toyz/keel/internal/errors"
)

// Target is a dependency point together with the context it is reached through
type Target struct {
	Point   DependencyPoint
	Context Type
}

// PointReport describes the resolution of one dependency point
type PointReport struct {
	Parent      string   `json:"parent"`
	ParentKind  string   `json:"parent_kind"`
	Point       string   `json:"point"`
	Position    int      `json:"position"`
	Declared    string   `json:"declared"`
	Required    string   `json:"required,omitempty"`
	Context     string   `json:"context,omitempty"`
	Qualifiers  []string `json:"qualifiers,omitempty"`
	Unqualified []string `json:"unqualified,omitempty"`
	Optional    bool     `json:"optional,omitempty"`
	Self        bool     `json:"self,omitempty"`
	Status      string   `json:"status"`
	Service     string   `json:"service,omitempty"`
	ServiceID   string   `json:"service_id,omitempty"`
	Error       string   `json:"error,omitempty"`
	Code        string   `json:"code,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// DescriptorReport describes one bound descriptor
type DescriptorReport struct {
	ID             string   `json:"id"`
	Implementation string   `json:"implementation"`
	Contracts      []string `json:"contracts"`
	Qualifiers     []string `json:"qualifiers,omitempty"`
	Name           string   `json:"name,omitempty"`
	Rank           int      `json:"rank"`
	Mode           string   `json:"mode"`
}

// Summary counts points by outcome
type Summary struct {
	Total    int `json:"total"`
	Resolved int `json:"resolved"`
	Absent   int `json:"absent"`
	Failed   int `json:"failed"`
}

// Report is a serializable view of a registry and the resolution of a set of points
type Report struct {
	Registry    string             `json:"registry"`
	Summary     Summary            `json:"summary"`
	Points      []PointReport      `json:"points"`
	Descriptors []DescriptorReport `json:"descriptors"`
}

// descriptorLister is implemented by registries that can enumerate their descriptors
type descriptorLister interface {
	Descriptors() []Descriptor
}

// NewReport creates an empty report for the named registry
func NewReport(registry string) *Report {
	return &Report{
		Registry:    registry,
		Points:      []PointReport{},
		Descriptors: []DescriptorReport{},
	}
}

// Inspect resolves every target to a handle against registry and records the
// outcomes. Services are not created.
func (e *Engine) Inspect(registry ServiceRegistry, targets ...Target) *Report {
	name := ""
	if registry != nil {
		name = registry.Name()
	}
	report := NewReport(name)

	if lister, ok := registry.(descriptorLister); ok {
		for _, d := range lister.Descriptors() {
			report.AddDescriptor(d)
		}
	}
	for _, t := range targets {
		report.Add(t.Point, t.Context, e.ResolveHandle(t.Point, t.Context, registry))
	}
	return report
}

// Inspect inspects targets with the default engine
func Inspect(registry ServiceRegistry, targets ...Target) *Report {
	return defaultEngine.Inspect(registry, targets...)
}

// Add records the result of resolving point in ctx
func (r *Report) Add(point DependencyPoint, ctx Type, res Result) {
	pr := PointReport{
		Position: -1,
		Status:   res.Kind().String(),
	}
	if point != nil {
		pr.Point = point.Name()
		pr.Declared = typeString(point.DeclaredType())
		if parent := point.Parent(); parent != nil {
			pr.Parent = parent.Name()
			pr.ParentKind = parent.Kind().String()
		}
	}
	if ctx != nil {
		pr.Context = ctx.String()
	}

	if inj := res.Injectee(); inj != nil {
		pr.Position = inj.Position()
		pr.Required = typeString(inj.RequiredType())
		pr.Optional = inj.IsOptional()
		pr.Self = inj.IsSelf()
		for _, q := range inj.RequiredQualifiers() {
			pr.Qualifiers = append(pr.Qualifiers, q.Key())
		}
		if rule := inj.Unqualified(); rule != nil {
			pr.Unqualified = append([]string{}, rule.Excluded...)
		}
	}

	if h := res.Handle(); h != nil && h.Descriptor() != nil {
		pr.Service = describe(h.Descriptor())
		pr.ServiceID = h.Descriptor().ID()
	}

	if err := res.Err(); err != nil {
		pr.Error = err.Error()
		pr.Code = errors.CodeOf(err).String()
		var ke errors.KeelError
		if stderrors.As(err, &ke) {
			pr.Suggestions = ke.Suggestions()
		}
	}

	switch res.Kind() {
	case Resolved:
		r.Summary.Resolved++
	case Absent:
		r.Summary.Absent++
	default:
		r.Summary.Failed++
	}
	r.Summary.Total++
	r.Points = append(r.Points, pr)
}

// AddDescriptor records a bound descriptor
func (r *Report) AddDescriptor(d Descriptor) {
	dr := DescriptorReport{
		ID:             d.ID(),
		Implementation: typeString(d.Implementation()),
		Contracts:      []string{},
		Name:           d.Name(),
		Rank:           d.Rank(),
		Mode:           d.Mode().String(),
	}
	for _, c := range d.Contracts() {
		dr.Contracts = append(dr.Contracts, typeString(c))
	}
	for _, q := range d.Qualifiers() {
		dr.Qualifiers = append(dr.Qualifiers, q.Key())
	}
	r.Descriptors = append(r.Descriptors, dr)
}

// HasFailures reports whether any point failed
func (r *Report) HasFailures() bool {
	return r.Summary.Failed > 0
}

// Filter returns the points with the given status. An empty status returns all points.
func (r *Report) Filter(status string) []PointReport {
	if status == "" {
		return append([]PointReport{}, r.Points...)
	}
	out := []PointReport{}
	for _, p := range r.Points {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}
