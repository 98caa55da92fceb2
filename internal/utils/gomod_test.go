package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, content string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte(content), 0644))
	return root
}

func TestGoModParser(t *testing.T) {
	root := writeModule(t, `module github.com/example/testapp

go 1.22

require github.com/stretchr/testify v1.9.0
`)
	nested := filepath.Join(root, "internal", "services")
	require.NoError(t, os.MkdirAll(nested, 0755))

	parser := NewGoModParser(nil)

	goMod, err := parser.FindGoModFile(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "go.mod"), goMod)

	name, err := parser.ParseModuleName(goMod)
	require.NoError(t, err)
	assert.Equal(t, "github.com/example/testapp", name)

	_, err = parser.ParseModuleName(filepath.Join(root, "other.txt"))
	assert.ErrorContains(t, err, "not a go.mod file")
}

func TestGoModParserErrors(t *testing.T) {
	parser := NewGoModParser(NewFileReader())

	noModule := writeModule(t, "go 1.22\n")
	_, err := parser.ParseModuleName(filepath.Join(noModule, "go.mod"))
	assert.ErrorContains(t, err, "no module declaration")

	broken := writeModule(t, "module\n")
	_, err = parser.ParseModuleName(filepath.Join(broken, "go.mod"))
	assert.Error(t, err)
}

func TestImportPath(t *testing.T) {
	root := writeModule(t, "module example.com/app\n")
	goMod := filepath.Join(root, "go.mod")

	tests := []struct {
		dir     string
		want    string
		wantErr bool
	}{
		{root, "example.com/app", false},
		{filepath.Join(root, "internal", "store"), "example.com/app/internal/store", false},
		{filepath.Dir(root), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			got, err := ImportPath("example.com/app", goMod, tt.dir)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
