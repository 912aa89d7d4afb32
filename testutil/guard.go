// Package testutil provides boundary guards used by package tests to
// keep the repository's import layering honest: pkg/domain stays free
// of internal packages, and stable interface packages stay free of the
// concrete drivers under internal/infra.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// InternalImportForbidden matches any import path under an internal tree.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// InfraImportForbidden matches import paths that reach into the concrete
// driver packages under internal/infra.
func InfraImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/infra/")
}

// AssertNoDirectImports parses the non-test Go files in dir and fails
// the test when any import path satisfies the forbidden predicate.
// Build tags are not evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	imports, err := scanImports(dir)
	if err != nil {
		t.Fatalf("scan imports in %s: %v", dir, err)
	}
	var viols []string
	for _, imp := range imports {
		if forbidden(imp.path) {
			viols = append(viols, imp.path+" (in "+imp.file+")")
		}
	}
	if len(viols) > 0 {
		t.Fatalf("forbidden direct imports (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}

// AssertNoTransitiveDependency runs `go list -deps` for pattern and
// fails the test when any dependency path satisfies the forbidden
// predicate.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	deps, out, err := listDeps(pattern)
	if err != nil {
		t.Fatalf("go list -deps %s: %v\n%s", pattern, err, out)
	}
	var viols []string
	for _, dep := range deps {
		if forbidden(dep) {
			viols = append(viols, dep)
		}
	}
	if len(viols) > 0 {
		t.Fatalf("forbidden transitive dependencies (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}

type fileImport struct {
	file string
	path string
}

func scanImports(dir string) ([]fileImport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var imports []fileImport
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		parsed, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range parsed.Imports {
			imports = append(imports, fileImport{file: name, path: strings.Trim(imp.Path.Value, `"`)})
		}
	}
	return imports, nil
}

var runGoList = func(pattern string) ([]byte, error) {
	return exec.Command("go", "list", "-deps", pattern).CombinedOutput()
}

func listDeps(pattern string) ([]string, []byte, error) {
	out, err := runGoList(pattern)
	if err != nil {
		return nil, out, err
	}
	var deps []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			deps = append(deps, line)
		}
	}
	return deps, out, nil
}
