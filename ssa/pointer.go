package ssa

import (
	"go/token"

	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
)

// PtrAnlysCfg returns a default pointer analysis config from Info.
func (info *Info) PtrAnlysCfg(tests bool) (*pointer.Config, error) {
	mains, err := MainPkgs(info.Prog, tests)
	if err != nil {
		return nil, err
	}
	return &pointer.Config{
		Mains:      mains,
		Log:        info.PtaLog,
		Reflection: false,
	}, nil
}

// RunPtrAnlys runs pointer analysis and returns the analysis result.
func (info *Info) RunPtrAnlys(config *pointer.Config) (*pointer.Result, error) {
	return pointer.Analyze(config)
}

// AddMemOpQueries registers a points-to query on config for the address
// operand of every load and store in fns, so that one pointer analysis run
// resolves the objects behind all memory operations of the program.
// Operands the analysis cannot model (basic values, constants) are skipped.
// Globals are skipped too: the analysis resolves direct accesses of them on
// its object graph and leaves a query on the global itself unanswered.
// Returns the number of distinct values registered.
func AddMemOpQueries(config *pointer.Config, fns []*ssa.Function) int {
	added := 0
	query := func(v ssa.Value) {
		if !pointer.CanPoint(v.Type()) {
			return
		}
		if _, ok := v.(*ssa.Global); ok {
			return
		}
		if _, dup := config.Queries[v]; dup {
			return
		}
		config.AddQuery(v)
		added++
	}
	for _, fn := range fns {
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				switch instr := instr.(type) {
				case *ssa.UnOp:
					if instr.Op == token.MUL {
						query(instr.X)
					}
				case *ssa.Store:
					query(instr.Addr)
				}
			}
		}
	}
	return added
}
