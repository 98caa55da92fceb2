package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/keel/internal/errors"
	"github.com/toyz/keel/pkg/keel"
)

// backquotes cannot appear in raw strings, so sources spell tags with ~
const appSource = `package app

//keel::service
type SystemClock struct{}

type Store interface{ Get(key string) string }

type OrderStore struct{}

func (s *OrderStore) Get(key string) string { return key }

//keel::service -Name=orders -Contracts=Store -Qualifiers=Primary -Rank=5 -Mode=Transient
func NewOrderStore() *OrderStore { return &OrderStore{} }

type Cache struct{}

type Mailer struct{}

type Base[T any] struct {
	Repo T ~keel:""~
}

type Orders struct {
	Base[*OrderStore]
	Clock  *SystemClock ~keel:""~
	Store  Store        ~keel:"@Primary @Named(\"orders\")"~
	Cache  *Cache       ~keel:"@Optional"~
	Ignore *Cache       ~keel:"-"~
	plain  int
}

type Notifier struct {
	Mailer *Mailer ~keel:""~
}

//keel::provide
//keel::param store @Named("orders")
func Wire(store Store, clock *SystemClock) {}
`

const brokenSource = `package app

type Cache struct{}

type Hidden struct {
	cache *Cache ~keel:""~
}

//keel::service -Mode=Sometimes
type Clock struct{}

//keel::param missing @Optional
func Orphan(c *Cache) {}

//keel::provide
//keel::param other @Optional
func Wire(c *Cache) {}

//keel::service -Contracts=Nowhere
func NewCache() *Cache { return nil }
`

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files["go.mod"] = "module example.com/app\n\ngo 1.22\n"
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(content, "~", "`")), 0o644))
	}
	return dir
}

func load(t *testing.T, files map[string]string, opts ...Option) *Result {
	t.Helper()
	dir := writeModule(t, files)
	s := New(Config{Dir: dir, Env: append(os.Environ(), "GOWORK=off", "GOFLAGS=")}, opts...)
	result, err := s.Load(context.Background(), "./...")
	require.NoError(t, err)
	return result
}

func targetNames(targets []keel.Target) []string {
	var out []string
	for _, target := range targets {
		name := target.Point.Parent().Name() + "." + target.Point.Name()
		if target.Context != nil {
			name += " in " + target.Context.String()
		}
		out = append(out, name)
	}
	return out
}

func TestLoadExtractsTargets(t *testing.T) {
	result := load(t, map[string]string{"app.go": appSource})

	require.Len(t, result.Packages, 1)
	assert.Empty(t, result.Problems)
	assert.Equal(t, []string{
		"app.Wire.store",
		"app.Wire.clock",
		"app.Orders.Clock in app.Orders",
		"app.Orders.Store in app.Orders",
		"app.Orders.Cache in app.Orders",
		"app.Base.Repo in app.Orders",
		"app.Notifier.Mailer in app.Notifier",
	}, targetNames(result.Targets))

	repo := result.Targets[5]
	resolved, err := keel.ResolveType(repo.Context, repo.Point.DeclaredType())
	require.NoError(t, err)
	assert.Equal(t, "*app.OrderStore", resolved.String())
}

func TestLoadExtractsServices(t *testing.T) {
	result := load(t, map[string]string{"app.go": appSource})

	require.Len(t, result.Services, 2)

	clock := result.Services[0]
	assert.Equal(t, "*app.SystemClock", clock.Implementation.String())
	assert.Equal(t, keel.Singleton, clock.Mode)
	assert.Nil(t, clock.Constructor)
	assert.Empty(t, clock.Name)

	store := result.Services[1]
	assert.Equal(t, "*app.OrderStore", store.Implementation.String())
	assert.Equal(t, "orders", store.Name)
	assert.Equal(t, 5, store.Rank)
	assert.Equal(t, keel.Transient, store.Mode)
	require.Len(t, store.Contracts, 1)
	assert.Equal(t, "app.Store", store.Contracts[0].String())
	require.Len(t, store.Qualifiers, 1)
	assert.Equal(t, "@Primary", store.Qualifiers[0].Key())
	require.NotNil(t, store.Constructor)
	assert.Equal(t, "app.NewOrderStore", store.Constructor.Name())
	assert.True(t, store.Position.IsValid())

	d := store.Descriptor(keel.Constant(nil))
	assert.Len(t, d.Contracts(), 2)
	assert.Len(t, d.Qualifiers(), 2, "the name is attached as @Named")
}

func TestLoadedTargetsInspect(t *testing.T) {
	result := load(t, map[string]string{"app.go": appSource})

	locator := keel.NewLocator("static")
	for _, svc := range result.Services {
		require.NoError(t, locator.Bind(svc.Descriptor(keel.Constant(nil))))
	}

	report := locator.Engine().Inspect(locator, result.Targets...)
	assert.Equal(t, keel.Summary{Total: 7, Resolved: 5, Absent: 1, Failed: 1}, report.Summary)

	failed := report.Filter("failed")
	require.Len(t, failed, 1)
	assert.Equal(t, "Mailer", failed[0].Point)
	assert.Equal(t, errors.UnsatisfiedDependencyErrorCode.String(), failed[0].Code)
}

func TestLoadQualifiersFromOtherFiles(t *testing.T) {
	result := load(t, map[string]string{
		"a.go": "package app\n\ntype Orders struct {\n\tStore *Store ~keel:\"@Primary\"~\n}\n",
		"b.go": "package app\n\n//keel::service -Qualifiers=Primary\ntype Store struct{}\n",
	})

	require.Len(t, result.Targets, 1)
	anns := result.Targets[0].Point.Annotations()
	require.Len(t, anns, 1)
	assert.True(t, anns[0].IsQualifier(), "qualifiers declared anywhere are known before tags are parsed")
}

func TestLoadWithQualifiersOption(t *testing.T) {
	result := load(t, map[string]string{
		"app.go": "package app\n\ntype Store struct{}\n\ntype Orders struct {\n\tStore *Store ~keel:\"@Replica\"~\n}\n",
	}, WithQualifiers("Replica"))

	require.Len(t, result.Targets, 1)
	assert.True(t, result.Targets[0].Point.Annotations()[0].IsQualifier())
}

func TestLoadReportsProblems(t *testing.T) {
	result := load(t, map[string]string{"app.go": brokenSource})

	var messages []string
	for _, p := range result.Problems {
		assert.True(t, p.Position.IsValid())
		messages = append(messages, p.Error())
	}
	require.Len(t, messages, 5, strings.Join(messages, "\n"))

	contains := func(fragment string) {
		for _, m := range messages {
			if strings.Contains(m, fragment) {
				return
			}
		}
		t.Errorf("no problem mentions %q:\n%s", fragment, strings.Join(messages, "\n"))
	}
	contains("Sometimes")
	contains("cache is tagged but not exported")
	contains("Orphan has //keel::param")
	contains(`unknown parameter "other"`)
	contains("contract Nowhere")

	assert.Empty(t, result.Services, "broken declarations are not services")
	assert.Equal(t, []string{"app.Wire.c"}, targetNames(result.Targets))
}

func TestLoadGenericMethod(t *testing.T) {
	result := load(t, map[string]string{"app.go": `package app

type Repo[T any] struct{}

//keel::provide
func (r *Repo[T]) Save(entity T, log *Logger) {}

type Logger struct{}
`})

	require.Len(t, result.Targets, 2)
	assert.Equal(t, "app.Repo.Save", result.Targets[0].Point.Parent().Name())
	assert.Equal(t, "app.Repo", result.Targets[0].Context.String())

	_, err := keel.ResolveType(result.Targets[0].Context, result.Targets[0].Point.DeclaredType())
	assert.Error(t, err, "a generic receiver leaves its parameters unbound")

	resolved, err := keel.ResolveType(result.Targets[1].Context, result.Targets[1].Point.DeclaredType())
	require.NoError(t, err)
	assert.Equal(t, "*app.Logger", resolved.String())
}

func TestLoadFailures(t *testing.T) {
	dir := writeModule(t, map[string]string{"app.go": "package app\n\nfunc broken() { undefined() }\n"})
	s := New(Config{Dir: dir, Env: append(os.Environ(), "GOWORK=off", "GOFLAGS=")})

	_, err := s.Load(context.Background(), "./...")
	require.Error(t, err)
	assert.Equal(t, errors.ScanErrorCode, errors.CodeOf(err))
}

func TestPositionLocation(t *testing.T) {
	tests := []struct {
		pos  string
		want errors.SourceLocation
	}{
		{"", errors.SourceLocation{}},
		{"-", errors.SourceLocation{}},
		{"app.go", errors.SourceLocation{File: "app.go"}},
		{"app.go:3", errors.SourceLocation{File: "app.go", Line: 3}},
		{"app.go:3:14", errors.SourceLocation{File: "app.go", Line: 3, Column: 14}},
	}

	for _, tt := range tests {
		t.Run(tt.pos, func(t *testing.T) {
			assert.Equal(t, tt.want, positionLocation(tt.pos))
		})
	}
}
