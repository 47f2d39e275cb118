// Package mssa builds memory SSA: versioned def/use markers over the memory
// regions of the mr package, so that every load, store and call of a
// function names exactly which region version it observes or produces.
//
// Construction per function runs in three phases. The site builder walks the
// reachable blocks once and records an unversioned mu (use) at every load
// and reading call and an unversioned chi (def) at every store and modifying
// call, plus one entry chi and one return mu per touched region. Phi
// insertion closes the per-region defining blocks over the iterated
// dominance frontier. Renaming then walks the dominator tree once, threading
// a version stack per region, and resolves every slot to a concrete version.
package mssa

import (
	"time"

	"github.com/bsauce/memssa/mr"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

// Regions answers which memory regions an instruction or call site touches.
// The production implementation is *mr.Generator. The oracle is read-only
// during construction and must answer each query with regions in ascending
// id order.
type Regions interface {
	InstrRef(ssa.Instruction) []*mr.Region
	InstrMod(ssa.Instruction) []*mr.Region
	CallRef(ssa.CallInstruction) []*mr.Region
	CallMod(ssa.CallInstruction) []*mr.Region
}

// Dominance answers the control flow questions construction asks about one
// function: which blocks are reachable, what each block's dominance frontier
// is, and whether execution can reach a return. The production implementation
// is *dom.Info.
type Dominance interface {
	Fn() *ssa.Function
	ReachableBlocks() []*ssa.BasicBlock
	Frontier(b *ssa.BasicBlock) (df []*ssa.BasicBlock, ok bool)
	MayReturn() bool
}

// Errors for rejecting functions that cannot be built.
var (
	ErrNoBody      = errors.New("cannot build memory SSA for function without body")
	ErrDomMismatch = errors.New("dominance info built for a different function")
)

// Builder constructs and caches the memory SSA form of functions over one
// region oracle. Functions build one at a time; a Builder must not be shared
// across goroutines while building.
type Builder struct {
	regions Regions
	funcs   map[*ssa.Function]*Func
	stats   Stats
	timing  Timing
	*Logger
}

// NewBuilder returns a Builder over the given region oracle.
func NewBuilder(regions Regions) *Builder {
	l := newLogger()
	return &Builder{
		regions: regions,
		funcs:   make(map[*ssa.Function]*Func),
		Logger:  &Logger{SugaredLogger: l.SugaredLogger, module: color.CyanString("mssa")},
	}
}

// SetLogger replaces the construction logger, keeping the module tag.
func (b *Builder) SetLogger(l *Logger) {
	b.Logger = &Logger{
		SugaredLogger: l.SugaredLogger,
		module:        color.CyanString("mssa"),
	}
}

// AddLogFiles extends current Logger and writes additional log to files.
func (b *Builder) AddLogFiles(file ...string) {
	l := newFileLogger(file...)
	b.Logger = &Logger{SugaredLogger: l.SugaredLogger, module: b.module}
}

// BuildFunction builds the memory SSA form of fn using the dominance info
// di, which must have been computed for fn. Building the same function again
// returns the cached form. External functions have no blocks to walk and are
// rejected with ErrNoBody.
func (b *Builder) BuildFunction(fn *ssa.Function, di Dominance) (*Func, error) {
	if fn.Blocks == nil {
		return nil, errors.Wrap(ErrNoBody, fn.String())
	}
	if di.Fn() != fn {
		return nil, errors.Wrapf(ErrDomMismatch, "%s given info for %s", fn, di.Fn())
	}
	if f, ok := b.funcs[fn]; ok {
		return f, nil
	}

	f := newFunc(fn)
	s := newState(f, di, b.regions, b.Logger)

	start := time.Now()
	s.createSites()
	f.timing.Sites = time.Since(start)

	start = time.Now()
	s.insertPhis()
	f.timing.Phi = time.Since(start)

	start = time.Now()
	s.rename()
	f.timing.Rename = time.Since(start)

	f.verify()
	f.stats = f.countStats()
	b.stats.add(f.stats)
	b.timing.add(f.timing)
	b.funcs[fn] = f
	return f, nil
}

// Func returns the built form of fn, or nil if it has not been built.
func (b *Builder) Func(fn *ssa.Function) *Func { return b.funcs[fn] }

// Stats returns the node counts summed over every function built so far.
func (b *Builder) Stats() Stats { return b.stats }

// Timing returns the construction phase times summed over every function
// built so far.
func (b *Builder) Timing() Timing { return b.timing }

// Release drops every built function and resets the aggregate counters. The
// Builder can be reused afterwards.
func (b *Builder) Release() {
	// Sync error ignored. See https://github.com/uber-go/zap/issues/328
	b.Sync()
	b.funcs = make(map[*ssa.Function]*Func)
	b.stats = Stats{}
	b.timing = Timing{}
}
