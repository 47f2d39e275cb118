package ssa

import (
	"sort"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Functions returns the functions of the program that have a body, including
// anonymous functions and synthetic wrappers, ordered by their full name.
// The ordering makes downstream analyses deterministic across runs.
func (info *Info) Functions() []*ssa.Function {
	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(info.Prog) {
		if fn.Blocks == nil {
			continue // external function
		}
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })
	return fns
}

// MainPkgs returns the main packages in the program.
func MainPkgs(prog *ssa.Program, tests bool) ([]*ssa.Package, error) {
	pkgs := prog.AllPackages()

	var mains []*ssa.Package
	if tests {
		for _, pkg := range pkgs {
			if main := prog.CreateTestMainPackage(pkg); main != nil {
				mains = append(mains, main)
			}
		}
		if mains == nil {
			return nil, ErrNoTestMainPkgs
		}
		return mains, nil
	}

	mains = append(mains, ssautil.MainPackages(pkgs)...)
	if len(mains) == 0 {
		return nil, ErrNoMainPkgs
	}
	return mains, nil
}
