package cli

import (
	"fmt"
	"os"

	"github.com/toyz/keel/internal/utils"
)

// ModuleResolver handles resolving Go module information
type ModuleResolver struct {
	gomod *utils.GoModParser
}

// NewModuleResolver creates a new module resolver
func NewModuleResolver() *ModuleResolver {
	return &ModuleResolver{gomod: utils.NewGoModParser(nil)}
}

// ResolveModuleName resolves the module the checked packages belong to.
// If customModule is provided, it uses that; otherwise reads the go.mod
// governing dir (the current directory when dir is empty).
func (r *ModuleResolver) ResolveModuleName(customModule, dir string) (string, error) {
	if customModule != "" {
		return customModule, nil
	}

	goModPath, err := r.findGoMod(dir)
	if err != nil {
		return "", fmt.Errorf("failed to determine module name: %w (consider using --module flag)", err)
	}
	return r.gomod.ParseModuleName(goModPath)
}

// BuildPackagePath builds the full import path for a package directory
func (r *ModuleResolver) BuildPackagePath(moduleName, packageDir string) (string, error) {
	goModPath, err := r.findGoMod(packageDir)
	if err != nil {
		return "", err
	}
	return utils.ImportPath(moduleName, goModPath, packageDir)
}

func (r *ModuleResolver) findGoMod(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = wd
	}
	return r.gomod.FindGoModFile(dir)
}
