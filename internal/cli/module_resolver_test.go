package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGoMod(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(content), 0644))
}

func TestModuleResolver_ResolveModuleName(t *testing.T) {
	resolver := NewModuleResolver()

	t.Run("custom module name provided", func(t *testing.T) {
		customModule := "github.com/custom/module"
		result, err := resolver.ResolveModuleName(customModule, "")
		require.NoError(t, err)
		assert.Equal(t, customModule, result)
	})

	t.Run("read from go.mod file", func(t *testing.T) {
		tempDir := t.TempDir()
		writeGoMod(t, tempDir, `module github.com/example/testapp

go 1.21

require (
	github.com/labstack/echo/v4 v4.11.1
)
`)
		nested := filepath.Join(tempDir, "internal", "services")
		require.NoError(t, os.MkdirAll(nested, 0755))

		result, err := resolver.ResolveModuleName("", nested)
		require.NoError(t, err)
		assert.Equal(t, "github.com/example/testapp", result)
	})

	t.Run("read from working directory", func(t *testing.T) {
		tempDir := t.TempDir()
		writeGoMod(t, tempDir, "module github.com/example/cwd\n")
		t.Chdir(tempDir)

		result, err := resolver.ResolveModuleName("", "")
		require.NoError(t, err)
		assert.Equal(t, "github.com/example/cwd", result)
	})

	t.Run("go.mod without module declaration", func(t *testing.T) {
		tempDir := t.TempDir()
		writeGoMod(t, tempDir, "go 1.21\n")

		_, err := resolver.ResolveModuleName("", tempDir)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no module declaration found")
	})

	t.Run("no go.mod file found", func(t *testing.T) {
		_, err := resolver.ResolveModuleName("", filepath.Join(string(filepath.Separator), "nonexistent", "keel"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "go.mod file not found")
		assert.Contains(t, err.Error(), "--module")
	})
}

func TestModuleResolver_BuildPackagePath(t *testing.T) {
	resolver := NewModuleResolver()
	root := t.TempDir()
	writeGoMod(t, root, "module github.com/example/app\n")

	testCases := []struct {
		name       string
		packageDir string
		expected   string
	}{
		{
			name:       "module root",
			packageDir: ".",
			expected:   "github.com/example/app",
		},
		{
			name:       "subdirectory",
			packageDir: "internal/controllers",
			expected:   "github.com/example/app/internal/controllers",
		},
		{
			name:       "nested subdirectory",
			packageDir: "internal/services/user",
			expected:   "github.com/example/app/internal/services/user",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := filepath.Join(root, filepath.FromSlash(tc.packageDir))
			require.NoError(t, os.MkdirAll(dir, 0755))

			result, err := resolver.BuildPackagePath("github.com/example/app", dir)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}
