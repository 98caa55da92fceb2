package utils

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseRegistry(t *testing.T) {
	r := NewBaseRegistry[string, int]("numbers", "number name", "number")
	r.SetValidator(ChainValidators[string, int](
		NotEmptyKeyValidator[int]("number name"),
		NoDuplicateValidator[string, int]("number name"),
		nil,
	))

	require.NoError(t, r.Register("one", 1))
	require.NoError(t, r.Register("two", 2))
	require.NoError(t, r.Register("three", 3))

	assert.Equal(t, "numbers", r.Name())
	assert.Equal(t, 3, r.Size())
	assert.Equal(t, []string{"one", "two", "three"}, r.List())
	assert.Equal(t, []int{1, 2, 3}, r.Values())
	assert.True(t, r.Has("two"))

	v, ok := r.Get("two")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, err := r.GetOrError("four")
	assert.ErrorContains(t, err, "number name 'four' is not registered")

	err = r.Register("one", 10)
	assert.ErrorContains(t, err, "numbers registry: number name 'one' is already registered")
	err = r.Register("", 0)
	assert.ErrorContains(t, err, "cannot be empty")

	assert.True(t, r.Delete("two"))
	assert.False(t, r.Delete("two"))
	assert.Equal(t, []string{"one", "three"}, r.List())

	var visited []string
	r.ForEach(func(k string, _ int) { visited = append(visited, k) })
	assert.Equal(t, []string{"one", "three"}, visited)
}

func TestBaseRegistryConcurrent(t *testing.T) {
	r := NewBaseRegistry[string, int]("concurrent", "key", "value")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(fmt.Sprintf("k%d", i), i)
			_ = r.Values()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, r.Size())
	assert.Len(t, r.List(), 50)
}
