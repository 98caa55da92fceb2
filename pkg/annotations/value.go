package annotations

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the type carried by a Value
type Kind int

const (
	InvalidKind Kind = iota
	StringKind
	IntKind
	FloatKind
	BoolKind
	ListKind
	MapKind
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case StringKind:
		return "string"
	case IntKind:
		return "int"
	case FloatKind:
		return "float"
	case BoolKind:
		return "bool"
	case ListKind:
		return "list"
	case MapKind:
		return "map"
	default:
		return "invalid"
	}
}

// Value is a typed annotation attribute value. The zero Value is invalid and
// stands for "no value".
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	flag bool
	list []Value
	dict map[string]Value
}

func StringValue(s string) Value   { return Value{kind: StringKind, str: s} }
func IntValue(n int64) Value       { return Value{kind: IntKind, num: n} }
func FloatValue(f float64) Value   { return Value{kind: FloatKind, flt: f} }
func BoolValue(b bool) Value       { return Value{kind: BoolKind, flag: b} }
func ListValue(vs ...Value) Value  { return Value{kind: ListKind, list: append([]Value{}, vs...)} }

// StringsValue builds a list value out of plain strings
func StringsValue(ss ...string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = StringValue(s)
	}
	return Value{kind: ListKind, list: vs}
}

// MapValue builds a nested map value. The map is copied.
func MapValue(m map[string]Value) Value {
	dict := make(map[string]Value, len(m))
	for k, v := range m {
		dict[k] = v
	}
	return Value{kind: MapKind, dict: dict}
}

// Kind returns the kind of the value
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether the value holds anything
func (v Value) IsValid() bool { return v.kind != InvalidKind }

// AsString returns the string held by v
func (v Value) AsString() (string, error) {
	if v.kind != StringKind {
		return "", newTypeMismatch(StringKind, v)
	}
	return v.str, nil
}

// AsInt returns the integer held by v
func (v Value) AsInt() (int64, error) {
	if v.kind != IntKind {
		return 0, newTypeMismatch(IntKind, v)
	}
	return v.num, nil
}

// AsFloat returns the number held by v. Integers widen to float.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case FloatKind:
		return v.flt, nil
	case IntKind:
		return float64(v.num), nil
	default:
		return 0, newTypeMismatch(FloatKind, v)
	}
}

// AsBool returns the boolean held by v
func (v Value) AsBool() (bool, error) {
	if v.kind != BoolKind {
		return false, newTypeMismatch(BoolKind, v)
	}
	return v.flag, nil
}

// AsList returns a copy of the list held by v
func (v Value) AsList() ([]Value, error) {
	if v.kind != ListKind {
		return nil, newTypeMismatch(ListKind, v)
	}
	return append([]Value{}, v.list...), nil
}

// AsStrings returns the list held by v as strings; every element must be a string
func (v Value) AsStrings() ([]string, error) {
	if v.kind != ListKind {
		return nil, newTypeMismatch(ListKind, v)
	}
	out := make([]string, len(v.list))
	for i, item := range v.list {
		s, err := item.AsString()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// AsMap returns a copy of the nested map held by v
func (v Value) AsMap() (map[string]Value, error) {
	if v.kind != MapKind {
		return nil, newTypeMismatch(MapKind, v)
	}
	out := make(map[string]Value, len(v.dict))
	for k, item := range v.dict {
		out[k] = item
	}
	return out, nil
}

// Equal reports whether both values have the same kind and content
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case StringKind:
		return v.str == other.str
	case IntKind:
		return v.num == other.num
	case FloatKind:
		return v.flt == other.flt
	case BoolKind:
		return v.flag == other.flag
	case ListKind:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case MapKind:
		if len(v.dict) != len(other.dict) {
			return false
		}
		for k, item := range v.dict {
			o, ok := other.dict[k]
			if !ok || !item.Equal(o) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the value in annotation syntax
func (v Value) String() string {
	switch v.kind {
	case StringKind:
		return strconv.Quote(v.str)
	case IntKind:
		return strconv.FormatInt(v.num, 10)
	case FloatKind:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case BoolKind:
		return strconv.FormatBool(v.flag)
	case ListKind:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case MapKind:
		keys := make([]string, 0, len(v.dict))
		for k := range v.dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%s", k, v.dict[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "<invalid>"
	}
}

// Interface returns the plain Go form of the value (string, int64, float64, bool,
// []interface{} or map[string]interface{}), used for JSON reports.
func (v Value) Interface() interface{} {
	switch v.kind {
	case StringKind:
		return v.str
	case IntKind:
		return v.num
	case FloatKind:
		return v.flt
	case BoolKind:
		return v.flag
	case ListKind:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case MapKind:
		out := make(map[string]interface{}, len(v.dict))
		for k, item := range v.dict {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// coerce adapts a parsed value to the kind a schema declares: single items become
// one-element lists, integers widen to floats.
func coerce(v Value, kind Kind) Value {
	switch {
	case kind == ListKind && v.kind != ListKind && v.kind != InvalidKind:
		return ListValue(v)
	case kind == FloatKind && v.kind == IntKind:
		return FloatValue(float64(v.num))
	default:
		return v
	}
}
