// Package dom computes the control flow facts that memory SSA construction
// needs from a function body: the set of blocks reachable from the entry
// block, the dominance frontier of those blocks, and whether the function can
// return to its caller at all.
//
// The dominator tree itself is maintained by golang.org/x/tools/go/ssa
// (BasicBlock.Idom and Dominees); this package derives the rest from it.
//
package dom

import (
	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

// ErrNoBody is the error when facts are requested for a function declared
// without a body, such as an external or assembly function.
var ErrNoBody = errors.New("function has no body")

// Info holds the facts computed for one function.
// Use Compute to populate it; the zero value is not usable.
type Info struct {
	fn        *ssa.Function
	blocks    []*ssa.BasicBlock // reachable blocks, in fn.Blocks order
	reachable map[*ssa.BasicBlock]bool
	frontier  map[*ssa.BasicBlock][]*ssa.BasicBlock
	mayReturn bool
}

// Compute builds the dominance facts for fn.
// Returns ErrNoBody wrapped with the function name if fn has no body.
func Compute(fn *ssa.Function) (*Info, error) {
	if fn.Blocks == nil {
		return nil, errors.Wrap(ErrNoBody, fn.String())
	}
	info := &Info{
		fn:        fn,
		reachable: make(map[*ssa.BasicBlock]bool, len(fn.Blocks)),
		frontier:  make(map[*ssa.BasicBlock][]*ssa.BasicBlock, len(fn.Blocks)),
	}
	info.findReachable()
	info.buildFrontier(fn.Blocks[0])
	for _, b := range info.blocks {
		if n := len(b.Instrs); n > 0 {
			if _, ok := b.Instrs[n-1].(*ssa.Return); ok {
				info.mayReturn = true
				break
			}
		}
	}
	return info, nil
}

// findReachable marks the blocks reachable from the entry block, breadth
// first over successor edges. The recover block of a function that recovers
// from panics is a second entry point with no incoming edges; it stays
// unmarked, together with anything only it reaches.
func (info *Info) findReachable() {
	entry := info.fn.Blocks[0]
	info.reachable[entry] = true
	queue := []*ssa.BasicBlock{entry}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, succ := range b.Succs {
			if !info.reachable[succ] {
				info.reachable[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	for _, b := range info.fn.Blocks {
		if info.reachable[b] {
			info.blocks = append(info.blocks, b)
		}
	}
}

// buildFrontier computes the dominance frontier of the dominator subtree
// rooted at u, bottom-up in the manner of Cytron et al. Every block of the
// subtree receives a map entry, so a lookup can only miss for blocks outside
// the subtree. The per-block lists may contain duplicates; consumers
// deduplicate.
func (info *Info) buildFrontier(u *ssa.BasicBlock) {
	info.frontier[u] = nil
	for _, child := range u.Dominees() {
		info.buildFrontier(child)
	}
	for _, v := range u.Succs {
		if v.Idom() != u {
			info.frontier[u] = append(info.frontier[u], v)
		}
	}
	for _, child := range u.Dominees() {
		for _, v := range info.frontier[child] {
			if v.Idom() != u {
				info.frontier[u] = append(info.frontier[u], v)
			}
		}
	}
}

// Fn returns the function the facts were computed for.
func (info *Info) Fn() *ssa.Function { return info.fn }

// ReachableBlocks returns the blocks reachable from the entry block, in
// fn.Blocks order.
func (info *Info) ReachableBlocks() []*ssa.BasicBlock { return info.blocks }

// Reachable reports whether b is reachable from the entry block.
func (info *Info) Reachable(b *ssa.BasicBlock) bool { return info.reachable[b] }

// Frontier returns the dominance frontier of b. ok is false when b has no
// entry in the frontier map, that is, b is not part of the subtree the
// frontier was computed over.
func (info *Info) Frontier(b *ssa.BasicBlock) (df []*ssa.BasicBlock, ok bool) {
	df, ok = info.frontier[b]
	return df, ok
}

// MayReturn reports whether some reachable block ends in a return
// instruction. A function that can only loop forever or panic never returns,
// and its callers observe no exit state from it.
func (info *Info) MayReturn() bool { return info.mayReturn }
