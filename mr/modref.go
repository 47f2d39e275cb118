package mr

import (
	"golang.org/x/tools/container/intsets"
	"golang.org/x/tools/go/callgraph"
	gossa "golang.org/x/tools/go/ssa"
)

// modOf returns the (lazily created) set of objects fn may modify.
func (g *Generator) modOf(fn *gossa.Function) *intsets.Sparse {
	s, ok := g.funMod[fn]
	if !ok {
		s = new(intsets.Sparse)
		g.funMod[fn] = s
	}
	return s
}

// refOf returns the (lazily created) set of objects fn may read.
func (g *Generator) refOf(fn *gossa.Function) *intsets.Sparse {
	s, ok := g.funRef[fn]
	if !ok {
		s = new(intsets.Sparse)
		g.funRef[fn] = s
	}
	return s
}

// propagateModRef closes the per-function mod/ref sets over the callgraph:
// whatever a callee may touch, its transitive callers may touch too. Plain
// worklist iteration; recursion converges because the sets only grow.
// External functions have no bodies and contribute nothing of their own.
func (g *Generator) propagateModRef(cg *callgraph.Graph) {
	var worklist []*callgraph.Node
	queued := make(map[*callgraph.Node]bool)
	for _, n := range cg.Nodes {
		worklist = append(worklist, n)
		queued[n] = true
	}
	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		queued[n] = false

		mod, ref := g.modOf(n.Func), g.refOf(n.Func)
		for _, e := range n.In {
			caller := e.Caller
			changed := g.modOf(caller.Func).UnionWith(mod)
			if g.refOf(caller.Func).UnionWith(ref) {
				changed = true
			}
			if changed && !queued[caller] {
				worklist = append(worklist, caller)
				queued[caller] = true
			}
		}
	}
}

// collectCallSites attributes the closed mod/ref set of each callee to the
// call sites that may dispatch to it. A polymorphic site accumulates the
// union over all its callees. Synthetic callgraph edges carry no site and
// are skipped. Must run after propagateModRef.
func (g *Generator) collectCallSites(cg *callgraph.Graph) {
	for _, n := range cg.Nodes {
		for _, e := range n.Out {
			if e.Site == nil {
				continue
			}
			callee := e.Callee.Func
			if mod := g.funMod[callee]; mod != nil && !mod.IsEmpty() {
				s, ok := g.csMod[e.Site]
				if !ok {
					s = new(intsets.Sparse)
					g.csMod[e.Site] = s
				}
				s.UnionWith(mod)
			}
			if ref := g.funRef[callee]; ref != nil && !ref.IsEmpty() {
				s, ok := g.csRef[e.Site]
				if !ok {
					s = new(intsets.Sparse)
					g.csRef[e.Site] = s
				}
				s.UnionWith(ref)
			}
		}
	}
}
