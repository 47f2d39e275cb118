package ssa

import (
	"regexp"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// FindFunc parses path (e.g. "(github.com/bsauce/memssa/ssa).MainPkgs") and
// returns the Function body in SSA IR.
//
// The package qualifier matches either the import path or the package name,
// so "main.main" resolves in programs built from a reader. A bare function
// name matches the first function with that name in Functions order.
// Returns nil if no function matches.
func (info *Info) FindFunc(path string) *ssa.Function {
	pkgPath, fnName := parseFuncPath(path)
	for _, f := range info.Functions() {
		if f.Name() != fnName {
			continue
		}
		if pkgPath == "" {
			return f
		}
		if pkg := f.Pkg; pkg != nil {
			if pkg.Pkg.Path() == pkgPath || pkg.Pkg.Name() == pkgPath {
				return f
			}
		}
	}
	return nil
}

// parseFuncPath splits path to package and function segments.
// Does not handle complex functions with receivers.
func parseFuncPath(path string) (pkgPath, fnName string) {
	if len(path) < 1 {
		return "", ""
	}
	switch path[0] {
	case '(':
		regex := regexp.MustCompile(`\((?P<pkg>[^)]+)\).(?P<fn>.+)`)
		submatches := regex.FindStringSubmatch(path)
		if len(submatches) >= 3 {
			return submatches[1], submatches[2]
		}
	case '"':
		regex := regexp.MustCompile(`"(?P<pkg>[^)]+)".(?P<fn>.+)`)
		submatches := regex.FindStringSubmatch(path)
		if len(submatches) >= 3 {
			return submatches[1], submatches[2]
		}
	default:
		parts := strings.Split(path, ".")
		if len(parts) >= 2 {
			return parts[0], parts[1]
		}
	}
	return "", path
}
