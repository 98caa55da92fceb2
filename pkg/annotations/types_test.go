package annotations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/keel/internal/errors"
)

var retrySchema = &Schema{
	Name: "Retry",
	Parameters: map[string]ParameterSpec{
		"attempts": {Kind: IntKind, DefaultValue: IntValue(3)},
		"backoff":  {Kind: FloatKind},
		"jitter":   {Kind: BoolKind, DefaultValue: BoolValue(false)},
		"on":       {Kind: ListKind, DefaultValue: StringsValue("timeout")},
		"policy":   {Kind: StringKind, Required: true},
	},
}

func TestInstanceValueLookups(t *testing.T) {
	inst, err := NewInstance(retrySchema, map[string]Value{
		"policy":  StringValue("exponential"),
		"backoff": IntValue(2),
	})
	require.NoError(t, err)

	t.Run("explicit value wins over both defaults", func(t *testing.T) {
		v, err := inst.GetString("policy", "linear")
		require.NoError(t, err)
		assert.Equal(t, "exponential", v)
	})

	t.Run("explicit default ignores declared default", func(t *testing.T) {
		v, err := inst.GetInt("attempts", 7)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v)
	})

	t.Run("declared default when no explicit default", func(t *testing.T) {
		v, err := inst.GetInt("attempts")
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)

		on, err := inst.GetStrings("on")
		require.NoError(t, err)
		assert.Equal(t, []string{"timeout"}, on)
	})

	t.Run("integer widened to declared float", func(t *testing.T) {
		v, err := inst.ValueOf("backoff", FloatKind)
		require.NoError(t, err)
		f, err := v.AsFloat()
		require.NoError(t, err)
		assert.Equal(t, 2.0, f)
	})

	t.Run("missing value without any default", func(t *testing.T) {
		empty, err := NewInstance(retrySchema, map[string]Value{"policy": StringValue("none")})
		require.NoError(t, err)

		_, err = empty.ValueOf("backoff", FloatKind)
		require.Error(t, err)
		assert.Equal(t, errors.SchemaErrorCode, errors.CodeOf(err))
	})

	t.Run("wrong kind requested", func(t *testing.T) {
		_, err := inst.GetBool("policy")
		require.Error(t, err)

		var mismatch *TypeMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, BoolKind, mismatch.Expected)
		assert.Equal(t, StringKind, mismatch.Actual)
	})

	t.Run("values holds only explicit attributes", func(t *testing.T) {
		values := inst.Values()
		assert.Len(t, values, 2)
		assert.True(t, inst.Has("policy"))
		assert.False(t, inst.Has("attempts"))

		values["policy"] = StringValue("changed")
		v, _ := inst.GetString("policy")
		assert.Equal(t, "exponential", v)
	})
}

func TestNewInstanceValidation(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]Value
	}{
		{"missing required", map[string]Value{}},
		{"unknown parameter", map[string]Value{"policy": StringValue("x"), "delay": IntValue(1)}},
		{"wrong kind", map[string]Value{"policy": IntValue(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInstance(retrySchema, tt.values)
			require.Error(t, err)

			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, "Retry", schemaErr.Annotation)
		})
	}

	_, err := NewInstance(nil, nil)
	assert.Error(t, err)
}

func TestInstanceCustomValidators(t *testing.T) {
	schema := &Schema{
		Name: "Window",
		Parameters: map[string]ParameterSpec{
			"min": {Kind: IntKind, DefaultValue: IntValue(0)},
			"max": {Kind: IntKind, DefaultValue: IntValue(10)},
		},
		Validators: []CustomValidator{
			func(i *Instance) error {
				lo, _ := i.GetInt("min")
				hi, _ := i.GetInt("max")
				if lo > hi {
					return assert.AnError
				}
				return nil
			},
		},
	}

	_, err := NewInstance(schema, map[string]Value{"min": IntValue(5)})
	assert.NoError(t, err)

	_, err = NewInstance(schema, map[string]Value{"min": IntValue(50)})
	assert.Error(t, err)
}

func TestInstanceEquality(t *testing.T) {
	tests := []struct {
		name  string
		a, b  *Instance
		equal bool
	}{
		{"same name", Named("audit"), Named("audit"), true},
		{"different name", Named("audit"), Named("metrics"), false},
		{"explicit default equals implicit default", Named(""), MustInstance(NamedSchema, nil), true},
		{"different types", Optional(), Self(), false},
		{"unqualified list order matters", Unqualified("A", "B"), Unqualified("B", "A"), false},
		{"nil and value", Named("x"), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
		})
	}
}

func TestValueAccessors(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		kind  Kind
		text  string
	}{
		{"string", StringValue("a\"b"), StringKind, `"a\"b"`},
		{"int", IntValue(-4), IntKind, "-4"},
		{"float", FloatValue(1.25), FloatKind, "1.25"},
		{"bool", BoolValue(true), BoolKind, "true"},
		{"list", StringsValue("x", "y"), ListKind, `{"x", "y"}`},
		{"map", MapValue(map[string]Value{"b": IntValue(2), "a": IntValue(1)}), MapKind, "{a=1, b=2}"},
		{"invalid", Value{}, InvalidKind, "<invalid>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.value.Kind())
			assert.Equal(t, tt.text, tt.value.String())
			assert.True(t, tt.value.Equal(tt.value))
		})
	}

	_, err := StringValue("x").AsInt()
	assert.Equal(t, errors.TypeMismatchErrorCode, errors.CodeOf(err))

	f, err := IntValue(3).AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	_, err = ListValue(StringValue("x"), IntValue(1)).AsStrings()
	assert.Error(t, err)

	assert.Equal(t, []interface{}{"x", "y"}, StringsValue("x", "y").Interface())
	assert.False(t, IntValue(1).Equal(FloatValue(1)))
}
