package mssa

import (
	"fmt"

	"github.com/bsauce/memssa/mr"
	"golang.org/x/tools/go/ssa"
)

// rename assigns final versions in one depth-first walk of the dominator
// tree. Every use slot gets the version on top of its region's stack, every
// def consumes the top and pushes a freshly minted version, and leaving a
// block pops exactly what the block pushed. Afterwards each touched region's
// stack must hold just the two entry bootstrap versions.
func (s *state) rename() {
	s.renameBlock(s.f.Fn.Blocks[0])
	s.finishStacks()
}

func (s *state) renameBlock(b *ssa.BasicBlock) {
	var pushed []*mr.Region

	// Phi results first: their versions are in scope for the whole block,
	// before any instruction runs.
	for _, id := range s.f.blockPhis[b] {
		d := &s.f.defs[id]
		d.Res = s.newVer(d.Region, id)
		pushed = append(pushed, d.Region)
	}

	for _, instr := range b.Instrs {
		if call, ok := instr.(ssa.CallInstruction); ok {
			// The call reads before it clobbers: mus take the incoming
			// versions, then chis redefine.
			for _, id := range s.f.callMus[call] {
				u := &s.f.uses[id]
				u.Ver = s.topVer(u.Region)
			}
			for _, id := range s.f.callChis[call] {
				d := &s.f.defs[id]
				d.Op = s.topVer(d.Region)
				d.Res = s.newVer(d.Region, id)
				pushed = append(pushed, d.Region)
			}
			continue
		}
		for _, id := range s.f.instrMus[instr] {
			u := &s.f.uses[id]
			u.Ver = s.topVer(u.Region)
		}
		for _, id := range s.f.instrChis[instr] {
			d := &s.f.defs[id]
			d.Op = s.topVer(d.Region)
			d.Res = s.newVer(d.Region, id)
			pushed = append(pushed, d.Region)
		}
		if _, ok := instr.(*ssa.Return); ok {
			for _, id := range s.f.retMus {
				u := &s.f.uses[id]
				u.Ver = s.topVer(u.Region)
			}
		}
	}

	// Fill our operand slot in every successor phi. A block can occupy
	// several predecessor positions of the same successor; all of them get
	// the current version.
	for _, succ := range b.Succs {
		for i, pred := range succ.Preds {
			if pred != b {
				continue
			}
			for _, id := range s.f.blockPhis[succ] {
				d := &s.f.defs[id]
				d.Opds[i] = s.topVer(d.Region)
			}
		}
	}

	for _, c := range b.Dominees() {
		s.renameBlock(c)
	}

	for i := len(pushed) - 1; i >= 0; i-- {
		s.pop(pushed[i])
	}
}

// finishStacks drains the two entry bootstrap versions of every touched
// region and checks nothing else is left: a deeper or shallower stack means
// a push/pop imbalance somewhere in the walk.
func (s *state) finishStacks() {
	for _, r := range s.f.touched {
		if n := len(s.stack[r]); n != 2 {
			panic(fmt.Sprintf("mssa: version stack for %s in %s holds %d entries after renaming, want 2",
				r, s.f.Fn, n))
		}
		s.pop(r)
		s.pop(r)
	}
}
