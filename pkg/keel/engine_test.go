package keel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/keel/pkg/annotations"
	"github.com/toyz/keel/pkg/keel"
)

const app = "example.com/app"

var (
	orderType  = keel.NewNamed(app, "Order")
	loggerType = keel.NewNamed(app, "Logger")
	listType   = keel.NewNamed(app, "List", "E")
	repoType   = keel.NewNamed(app, "Repo", "T")
)

// recordingRegistry is a ServiceRegistry double that counts calls
type recordingRegistry struct {
	descriptor keel.Descriptor
	handleErr  error
	valueErr   error
	value      any

	finds    int
	handles  int
	values   int
	lastInj  *keel.Injectee
	lastRoot keel.ServiceHandle
}

func (r *recordingRegistry) FindDescriptor(inj *keel.Injectee) (keel.Descriptor, bool) {
	r.finds++
	r.lastInj = inj
	return r.descriptor, r.descriptor != nil
}

func (r *recordingRegistry) Handle(d keel.Descriptor, inj *keel.Injectee) (keel.ServiceHandle, error) {
	r.handles++
	if r.handleErr != nil {
		return nil, r.handleErr
	}
	return fakeHandle{d: d, inj: inj}, nil
}

func (r *recordingRegistry) Value(d keel.Descriptor, root keel.ServiceHandle, inj *keel.Injectee) (any, error) {
	r.values++
	r.lastRoot = root
	return r.value, r.valueErr
}

func (r *recordingRegistry) Name() string { return "recording" }

type fakeHandle struct {
	d   keel.Descriptor
	inj *keel.Injectee
}

func (h fakeHandle) Descriptor() keel.Descriptor { return h.d }
func (h fakeHandle) Injectee() *keel.Injectee     { return h.inj }
func (h fakeHandle) Root() keel.ServiceHandle     { return nil }
func (h fakeHandle) Service() (any, error)        { return "service", nil }
func (h fakeHandle) IsActive() bool               { return false }

func TestInjecteeWithoutAnnotations(t *testing.T) {
	ctor := keel.NewConstructor("NewService")
	ctor.Param("repo", orderType)
	point := ctor.Param("logger", loggerType)

	inj, err := keel.NewEngine().Injectee(point, orderType)
	require.NoError(t, err)

	assert.Empty(t, inj.RequiredQualifiers())
	assert.False(t, inj.IsOptional())
	assert.False(t, inj.IsSelf())
	assert.Nil(t, inj.Unqualified())
	assert.Equal(t, 1, inj.Position())
	assert.Same(t, point, inj.Point())
	assert.Equal(t, keel.Parent(ctor), inj.Parent())
	assert.True(t, keel.TypesEqual(loggerType, inj.RequiredType()))
	assert.True(t, keel.TypesEqual(orderType, inj.InjecteeClass()))
}

func TestInjecteeClassifiesAnnotations(t *testing.T) {
	primary := annotations.MustInstance(annotations.Qualifier("Primary"), nil)

	tests := []struct {
		name        string
		anns        []*annotations.Instance
		qualifiers  []string
		optional    bool
		self        bool
		unqualified []string
	}{
		{
			name:       "single qualifier",
			anns:       []*annotations.Instance{annotations.Named("audit")},
			qualifiers: []string{`@Named(value="audit")`},
		},
		{
			name:       "duplicate qualifiers collapse",
			anns:       []*annotations.Instance{annotations.Named("audit"), primary, annotations.Named("audit")},
			qualifiers: []string{`@Named(value="audit")`, "@Primary"},
		},
		{
			name:     "optional and self",
			anns:     []*annotations.Instance{annotations.Optional(), annotations.Self()},
			optional: true,
			self:     true,
		},
		{
			name:        "last unqualified marker wins",
			anns:        []*annotations.Instance{annotations.Unqualified("Named"), annotations.Unqualified("Primary")},
			unqualified: []string{"Primary"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := keel.NewMethod("Init")
			point := method.Param("dep", loggerType, tt.anns...)

			inj, err := keel.NewEngine().Injectee(point, nil)
			require.NoError(t, err)

			keys := make([]string, 0)
			for _, q := range inj.RequiredQualifiers() {
				keys = append(keys, q.Key())
			}
			if tt.qualifiers == nil {
				assert.Empty(t, keys)
			} else {
				assert.Equal(t, tt.qualifiers, keys)
			}
			assert.Equal(t, tt.optional, inj.IsOptional())
			assert.Equal(t, tt.self, inj.IsSelf())
			if tt.unqualified == nil {
				assert.Nil(t, inj.Unqualified())
			} else {
				require.NotNil(t, inj.Unqualified())
				assert.Equal(t, tt.unqualified, inj.Unqualified().Excluded)
			}
		})
	}
}

func TestInjecteeForField(t *testing.T) {
	service := keel.NewStruct(keel.NewNamed(app, "Service"))
	named := service.Field("audit", loggerType, annotations.MustInstance(annotations.NamedSchema, nil))
	plain := service.Field("logger", loggerType)

	inj, err := keel.BuildInjectee(named, service.Type())
	require.NoError(t, err)
	assert.Equal(t, -1, inj.Position())
	require.Len(t, inj.RequiredQualifiers(), 1)
	assert.True(t, inj.RequiredQualifiers()[0].Equal(annotations.Named("audit")), "bare @Named takes the field name")

	inj, err = keel.BuildInjectee(plain, service.Type())
	require.NoError(t, err)
	assert.Equal(t, -1, inj.Position())
	assert.Empty(t, inj.RequiredQualifiers())
}

func TestInjecteeIsIdempotent(t *testing.T) {
	method := keel.NewMethod("Find")
	point := method.Param("id", repoType.Param("T"),
		annotations.Named("primary"), annotations.Optional(), annotations.Unqualified("Legacy"))
	ctx := keel.Of(repoType, orderType)
	engine := keel.NewEngine()

	first, err := engine.Injectee(point, ctx)
	require.NoError(t, err)
	second, err := engine.Injectee(point, ctx)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.True(t, first.Equal(second))
	assert.Equal(t, first.String(), second.String())
}

func TestInjecteeEqual(t *testing.T) {
	method := keel.NewMethod("Run")
	a := method.Param("a", loggerType)
	b := method.Param("b", loggerType)

	base := keel.InjecteeSpec{RequiredType: loggerType, Parent: method, Point: a, Position: 0}

	tests := []struct {
		name  string
		edit  func(s *keel.InjecteeSpec)
		equal bool
	}{
		{"identical", func(s *keel.InjecteeSpec) {}, true},
		{"other point", func(s *keel.InjecteeSpec) { s.Point = b; s.Position = 1 }, false},
		{"other type", func(s *keel.InjecteeSpec) { s.RequiredType = orderType }, false},
		{"optional", func(s *keel.InjecteeSpec) { s.Optional = true }, false},
		{"qualifier", func(s *keel.InjecteeSpec) { s.RequiredQualifiers = []*annotations.Instance{annotations.Named("x")} }, false},
		{"unqualified", func(s *keel.InjecteeSpec) { s.Unqualified = &annotations.UnqualifiedRule{} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := base
			tt.edit(&spec)
			assert.Equal(t, tt.equal, keel.NewInjectee(base).Equal(keel.NewInjectee(spec)))
		})
	}
}

func TestInjecteeForeignPoint(t *testing.T) {
	ctor := keel.NewConstructor("NewService")
	ctor.Param("logger", loggerType)
	foreign := keel.NewParameter("logger", loggerType, ctor)

	_, err := keel.NewEngine().Injectee(foreign, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, keel.ErrInternal)

	var internal *keel.InternalError
	assert.ErrorAs(t, err, &internal)

	_, err = keel.NewEngine().Injectee(nil, nil)
	assert.ErrorIs(t, err, keel.ErrInternal)
}

func TestResolveScenarios(t *testing.T) {
	stringList := keel.Of(listType, keel.StringType)

	t.Run("list parameter resolves to the unqualified descriptor value", func(t *testing.T) {
		ctor := keel.NewConstructor("NewCatalog")
		point := ctor.Param("names", stringList)

		locator := keel.NewLocator("default")
		locator.MustBind(keel.NewDescriptor(stringList, keel.Constant([]string{"a", "b"})))

		res := keel.ResolveValue(point, nil, nil, locator)
		require.True(t, res.IsResolved(), "%v", res.Err())
		assert.Equal(t, []string{"a", "b"}, res.Value())
	})

	t.Run("qualified field selects the qualified descriptor", func(t *testing.T) {
		service := keel.NewStruct(keel.NewNamed(app, "Service"))
		field := service.Field("log", loggerType, annotations.Named("audit"))

		locator := keel.NewLocator("default")
		locator.MustBind(
			keel.NewDescriptor(loggerType, keel.Constant("console")),
			keel.NewDescriptor(loggerType, keel.Constant("audit"), keel.WithName("audit")),
		)

		res := keel.ResolveValue(field, service.Type(), nil, locator)
		require.True(t, res.IsResolved(), "%v", res.Err())
		assert.Equal(t, "audit", res.Value())
		require.Len(t, res.Injectee().RequiredQualifiers(), 1)
		assert.True(t, res.Injectee().RequiredQualifiers()[0].Equal(annotations.Named("audit")))

		handle := keel.ResolveHandle(field, service.Type(), locator)
		require.True(t, handle.IsResolved())
		assert.Equal(t, "audit", handle.Handle().Descriptor().Name())

		unqualifiedOnly := keel.NewLocator("unqualified")
		unqualifiedOnly.MustBind(keel.NewDescriptor(loggerType, keel.Constant("console")))

		res = keel.ResolveValue(field, service.Type(), nil, unqualifiedOnly)
		require.True(t, res.IsFailed())

		var unsatisfied *keel.UnsatisfiedDependencyError
		require.ErrorAs(t, res.Err(), &unsatisfied)
		assert.Same(t, field, unsatisfied.Injectee.Point())
		assert.Equal(t, "unqualified", unsatisfied.Registry)
		assert.Contains(t, unsatisfied.Error(), "unqualified")
	})

	t.Run("generic method parameter resolves through the instantiated repository", func(t *testing.T) {
		method := keel.NewMethod("Save")
		point := method.Param("entity", repoType.Param("T"))

		locator := keel.NewLocator("default")
		locator.MustBind(keel.NewDescriptor(orderType, keel.Constant("order")))

		res := keel.ResolveValue(point, keel.Of(repoType, orderType), nil, locator)
		require.True(t, res.IsResolved(), "%v", res.Err())
		assert.True(t, keel.TypesEqual(orderType, res.Injectee().RequiredType()))
		assert.Equal(t, "order", res.Value())
	})

	t.Run("inherited generic parameter", func(t *testing.T) {
		c := keel.NewNamed(app, "C", "T")
		d := keel.NewNamed(app, "D").Extends(keel.Of(c, keel.IntType))
		ctor := keel.NewConstructor("NewC")
		point := ctor.Param("value", c.Param("T"))

		inj, err := keel.BuildInjectee(point, d)
		require.NoError(t, err)
		assert.True(t, keel.TypesEqual(keel.IntType, inj.RequiredType()))
	})
}

func TestResolveOptionalAndRequired(t *testing.T) {
	ctor := keel.NewConstructor("NewService")
	optional := ctor.Param("cache", orderType, annotations.Optional())
	required := ctor.Param("store", orderType)
	registry := &recordingRegistry{}

	res := keel.ResolveValue(optional, nil, nil, registry)
	assert.Equal(t, keel.Absent, res.Kind())
	assert.NoError(t, res.Err())
	v, ok, err := res.Unpack()
	assert.Nil(t, v)
	assert.False(t, ok)
	assert.NoError(t, err)

	res = keel.ResolveHandle(optional, nil, registry)
	assert.True(t, res.IsAbsent())
	assert.Nil(t, res.Handle())

	res = keel.ResolveValue(required, nil, nil, registry)
	require.True(t, res.IsFailed())
	assert.ErrorIs(t, res.Err(), keel.ErrUnsatisfiedDependency)

	var unsatisfied *keel.UnsatisfiedDependencyError
	require.ErrorAs(t, res.Err(), &unsatisfied)
	assert.Same(t, required, unsatisfied.Injectee.Point())
	assert.Equal(t, 1, unsatisfied.Injectee.Position())
	assert.Equal(t, "recording", unsatisfied.Registry)

	assert.Equal(t, 0, registry.handles+registry.values, "no fetch without a descriptor")
}

func TestResolveSingleLookupAndFetch(t *testing.T) {
	ctor := keel.NewConstructor("NewService")
	point := ctor.Param("store", orderType)
	desc := keel.NewDescriptor(orderType, keel.Constant(nil))
	root := fakeHandle{d: desc}

	registry := &recordingRegistry{descriptor: desc, value: 42}
	res := keel.ResolveValue(point, nil, root, registry)
	require.True(t, res.IsResolved())
	assert.Equal(t, 42, res.Value())
	assert.Equal(t, 1, registry.finds)
	assert.Equal(t, 1, registry.values)
	assert.Equal(t, 0, registry.handles)
	assert.Equal(t, keel.ServiceHandle(root), registry.lastRoot)
	assert.Same(t, res.Injectee(), registry.lastInj)

	registry = &recordingRegistry{descriptor: desc}
	res = keel.ResolveHandle(point, nil, registry)
	require.True(t, res.IsResolved())
	assert.Equal(t, 1, registry.finds)
	assert.Equal(t, 1, registry.handles)
	assert.Same(t, res.Injectee(), res.Handle().Injectee())
}

func TestResolvePropagatesRegistryErrors(t *testing.T) {
	ctor := keel.NewConstructor("NewService")
	point := ctor.Param("store", orderType)
	desc := keel.NewDescriptor(orderType, keel.Constant(nil))
	boom := errors.New("boom")

	res := keel.ResolveValue(point, nil, nil, &recordingRegistry{descriptor: desc, valueErr: boom})
	require.True(t, res.IsFailed())
	assert.Same(t, boom, res.Err())
	assert.NotNil(t, res.Injectee())

	res = keel.ResolveHandle(point, nil, &recordingRegistry{descriptor: desc, handleErr: boom})
	require.True(t, res.IsFailed())
	assert.Same(t, boom, res.Err())
}

func TestResolveBuildFailures(t *testing.T) {
	method := keel.NewMethod("Save")
	point := method.Param("entity", repoType.Param("T"))
	registry := &recordingRegistry{}

	res := keel.ResolveValue(point, repoType, nil, registry)
	require.True(t, res.IsFailed())
	assert.ErrorIs(t, res.Err(), keel.ErrTypeResolution)
	assert.Nil(t, res.Injectee())
	assert.Equal(t, 0, registry.finds, "registry is not consulted when the injectee cannot be built")

	res = keel.ResolveHandle(point, keel.Of(repoType, orderType), nil)
	require.True(t, res.IsFailed())
	assert.ErrorIs(t, res.Err(), keel.ErrInternal)
}

type debugLog struct{ lines []string }

func (d *debugLog) Debug(format string, args ...interface{}) {
	d.lines = append(d.lines, format)
}

func TestEngineLogger(t *testing.T) {
	log := &debugLog{}
	engine := keel.NewEngine(keel.WithLogger(log))

	ctor := keel.NewConstructor("NewService")
	point := ctor.Param("cache", orderType, annotations.Optional())

	res := engine.ResolveValue(point, nil, nil, &recordingRegistry{})
	assert.True(t, res.IsAbsent())
	assert.NotEmpty(t, log.lines)
}

func TestResultKindString(t *testing.T) {
	assert.Equal(t, "resolved", keel.Resolved.String())
	assert.Equal(t, "absent", keel.Absent.String())
	assert.Equal(t, "failed", keel.Failed.String())
}
