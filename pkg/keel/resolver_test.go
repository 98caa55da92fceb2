package keel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const app = "example.com/app"

func TestResolveType(t *testing.T) {
	order := NewNamed(app, "Order")
	list := NewNamed(app, "List", "E")
	box := NewNamed(app, "Box", "V")

	// Repo[T] with a generic method parameter of type T
	repo := NewNamed(app, "Repo", "T")
	tRepo := repo.Param("T")

	// C[T]; D extends C[int]
	c := NewNamed(app, "C", "T")
	tC := c.Param("T")
	d := NewNamed(app, "D").Extends(Of(c, IntType))

	// E[U] extends C[U]; F extends E[string]
	e := NewNamed(app, "E", "U")
	e.Extends(Of(c, e.Param("U")))
	f := NewNamed(app, "F").Extends(Of(e, StringType))

	// G[K, V] extends C[map[K]V]; H extends *G[string, Order]
	g := NewNamed(app, "G", "K", "V")
	g.Extends(Of(c, MapOf(g.Param("K"), g.Param("V"))))
	h := NewNamed(app, "H").Extends(PointerTo(Of(g, StringType, order)))

	tests := []struct {
		name     string
		ctx      Type
		declared Type
		want     Type
	}{
		{"concrete type needs no context", nil, order, order},
		{"direct parameter of instantiated context", Of(repo, order), tRepo, order},
		{"inherited binding", d, tC, IntType},
		{"inherited binding through pointer context", PointerTo(d), tC, IntType},
		{"binding forwarded through an intermediate generic", f, tC, StringType},
		{"composite binding", h, tC, MapOf(StringType, order)},
		{"generic array", Of(repo, order), SliceOf(tRepo), SliceOf(order)},
		{"pointer to variable", Of(repo, order), PointerTo(tRepo), PointerTo(order)},
		{"map of variables", Of(repo, order), MapOf(StringType, tRepo), MapOf(StringType, order)},
		{"nested parameterization", Of(repo, order), Of(list, Of(box, tRepo)), Of(list, Of(box, order))},
		{"wildcard resolves to upper bound", Of(repo, order), Of(list, Extending(tRepo)), Of(list, order)},
		{"unbounded wildcard resolves to any", nil, Of(list, Super(order)), Of(list, Any)},
		{"wildcard argument in context", Of(repo, Extending(order)), tRepo, order},
		{"array of nested generics", d, SliceOf(Of(box, tC)), SliceOf(Of(box, IntType))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveType(tt.ctx, tt.declared)
			require.NoError(t, err)
			assert.True(t, TypesEqual(tt.want, got), "want %s, got %s", tt.want, got)
			assert.Empty(t, FreeVariables(got))
		})
	}
}

func TestResolveTypeUnbound(t *testing.T) {
	repo := NewNamed(app, "Repo", "T")
	other := NewNamed(app, "Other", "X")
	c := NewNamed(app, "C", "T")
	e := NewNamed(app, "E", "U")
	e.Extends(Of(c, e.Param("U")))

	tests := []struct {
		name     string
		ctx      Type
		declared Type
		variable string
	}{
		{"no context", nil, repo.Param("T"), "T"},
		{"raw generic context", repo, repo.Param("T"), "T"},
		{"variable of an unrelated type", Of(repo, StringType), other.Param("X"), "X"},
		{"variable forwarded from raw generic", e, c.Param("T"), "U"},
		{"variable nested in slice", nil, SliceOf(Of(repo, repo.Param("T"))), "T"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveType(tt.ctx, tt.declared)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTypeResolution)

			var tre *TypeResolutionError
			require.ErrorAs(t, err, &tre)
			require.NotNil(t, tre.Variable)
			assert.Equal(t, tt.variable, tre.Variable.Name)
			assert.Same(t, tt.declared, tre.Declared)
			assert.Contains(t, tre.Error(), "cannot resolve")
		})
	}
}

func TestResolveTypeArityMismatch(t *testing.T) {
	pair := NewNamed(app, "Pair", "A", "B")

	_, err := ResolveType(Of(pair, IntType), pair.Param("A"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeResolution)
}

func TestResolveTypeRecursiveEmbedding(t *testing.T) {
	node := NewNamed(app, "Node", "T")
	node.Extends(PointerTo(Of(node, node.Param("T"))))

	got, err := ResolveType(Of(node, StringType), node.Param("T"))
	require.NoError(t, err)
	assert.True(t, TypesEqual(StringType, got))
}

func TestResolveTypeIsPure(t *testing.T) {
	repo := NewNamed(app, "Repo", "T")
	order := NewNamed(app, "Order")
	declared := Of(NewNamed(app, "List", "E"), repo.Param("T"))
	ctx := Of(repo, order)

	first, err := ResolveType(ctx, declared)
	require.NoError(t, err)
	second, err := ResolveType(ctx, declared)
	require.NoError(t, err)

	assert.True(t, TypesEqual(first, second))
	assert.Len(t, FreeVariables(declared), 1, "declared type must not be modified")
}

func TestResolveTypeNilDeclared(t *testing.T) {
	_, err := ResolveType(nil, nil)
	assert.ErrorIs(t, err, ErrInternal)
}
