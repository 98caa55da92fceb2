package keel

// ResultKind tags the outcome of a resolution
type ResultKind int

const (
	// Resolved carries a handle or a value
	Resolved ResultKind = iota
	// Absent is an optional dependency nothing satisfied. It is not a failure.
	Absent
	// Failed carries the error that stopped resolution
	Failed
)

// String returns the string representation of the result kind
func (k ResultKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Absent:
		return "absent"
	default:
		return "failed"
	}
}

// Result is the outcome of resolving one dependency point
type Result struct {
	kind     ResultKind
	injectee *Injectee
	handle   ServiceHandle
	value    any
	err      error
}

func resolvedHandle(inj *Injectee, h ServiceHandle) Result {
	return Result{kind: Resolved, injectee: inj, handle: h}
}

func resolvedValue(inj *Injectee, v any) Result {
	return Result{kind: Resolved, injectee: inj, value: v}
}

func absent(inj *Injectee) Result {
	return Result{kind: Absent, injectee: inj}
}

func failed(inj *Injectee, err error) Result {
	return Result{kind: Failed, injectee: inj, err: err}
}

// Kind returns the outcome tag
func (r Result) Kind() ResultKind { return r.kind }

// IsResolved reports whether a handle or value was produced
func (r Result) IsResolved() bool { return r.kind == Resolved }

// IsAbsent reports whether an optional dependency was left unsatisfied
func (r Result) IsAbsent() bool { return r.kind == Absent }

// IsFailed reports whether resolution failed
func (r Result) IsFailed() bool { return r.kind == Failed }

// Handle returns the resolved handle from ResolveHandle, or nil
func (r Result) Handle() ServiceHandle { return r.handle }

// Value returns the resolved value from ResolveValue, or nil
func (r Result) Value() any { return r.value }

// Err returns the failure, or nil
func (r Result) Err() error { return r.err }

// Injectee returns the injectee the result was computed for. It is nil when
// building the injectee itself failed.
func (r Result) Injectee() *Injectee { return r.injectee }

// Unpack returns the handle or value, whether one is present, and the failure
func (r Result) Unpack() (any, bool, error) {
	switch r.kind {
	case Resolved:
		if r.handle != nil {
			return r.handle, true, nil
		}
		return r.value, true, nil
	case Absent:
		return nil, false, nil
	default:
		return nil, false, r.err
	}
}
