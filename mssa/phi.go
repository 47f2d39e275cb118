package mssa

import (
	"golang.org/x/tools/go/ssa"
)

// insertPhis places a phi at every block in the iterated dominance frontier
// of each region's locally-defining blocks. Classic minimal-SSA placement:
// pop a defining block, add a phi at each frontier block that lacks one for
// this region, and requeue that frontier block since the phi makes it a
// defining block too. The (block, region) dedup bounds the loop.
//
// A block missing from the frontier map means the dominance info disagrees
// with the blocks walked here. That is logged and skipped rather than
// treated as fatal.
func (s *state) insertPhis() {
	for _, r := range s.f.touched {
		worklist := append([]*ssa.BasicBlock(nil), s.defBlocks[r]...)
		placed := make(map[*ssa.BasicBlock]bool)
		for len(worklist) > 0 {
			b := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			frontier, ok := s.di.Frontier(b)
			if !ok {
				s.log.Warnf("%s %s: block %d not in dominance frontier map",
					s.log.Module(), s.f.Fn, b.Index)
				continue
			}
			for _, fb := range frontier {
				if placed[fb] {
					continue
				}
				placed[fb] = true
				opds := make([]VerID, len(fb.Preds))
				for i := range opds {
					opds[i] = NoVer
				}
				id := s.f.addDef(Def{Kind: DefPhi, Region: r, Block: fb, Op: NoVer, Res: NoVer, Opds: opds})
				s.f.blockPhis[fb] = append(s.f.blockPhis[fb], id)
				worklist = append(worklist, fb)
			}
		}
		if n := len(s.defBlocks[r]); n > 0 {
			s.log.Debugf("%s %s: %d phis for %s from %d defining blocks",
				s.log.Module(), s.f.Fn, len(placed), r, n)
		}
	}
}
