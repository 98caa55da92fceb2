package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	cache := NewFileCache[string]()
	_, ok := cache.Get(path)
	assert.False(t, ok)

	require.NoError(t, cache.Put(path, "v1"))
	v, ok := cache.Get(path)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	require.NoError(t, os.WriteFile(path, []byte("version two"), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	_, ok = cache.Get(path)
	assert.False(t, ok, "stale entry is evicted")
	assert.Empty(t, cache.entries)

	assert.Error(t, cache.Put(filepath.Join(t.TempDir(), "missing"), "x"))
}

func TestFileReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go.mod")
	require.NoError(t, os.WriteFile(path, []byte("module example.com/a\n"), 0644))

	reader := NewFileReader()
	content, err := reader.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "module example.com/a\n", content)
	assert.Len(t, reader.contents.entries, 1)

	require.NoError(t, os.WriteFile(path, []byte("module example.com/changed\n"), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	content, err = reader.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "module example.com/changed\n", content, "edited file is read again")

	_, err = reader.ReadFile("")
	assert.Error(t, err)
	_, err = reader.ReadFile(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
