package mssa

import (
	"fmt"
	"go/token"
	"sort"

	"github.com/bsauce/memssa/mr"
	"golang.org/x/tools/go/ssa"
)

// state is the per-function construction scratch: version counters, rename
// stacks and the locally-defining block sets. A fresh state is made for every
// function and thrown away once the Func is finalized, so nothing here leaks
// across functions.
type state struct {
	f       *Func
	di      Dominance
	regions Regions
	log     *Logger

	count map[*mr.Region]int     // next version number per region
	stack map[*mr.Region][]VerID // rename stacks, top is last

	used      map[*mr.Region]bool
	defBlocks map[*mr.Region][]*ssa.BasicBlock // blocks with a store or call def
	defSeen   map[defKey]bool
}

type defKey struct {
	r *mr.Region
	b *ssa.BasicBlock
}

func newState(f *Func, di Dominance, regions Regions, log *Logger) *state {
	return &state{
		f:         f,
		di:        di,
		regions:   regions,
		log:       log,
		count:     make(map[*mr.Region]int),
		stack:     make(map[*mr.Region][]VerID),
		used:      make(map[*mr.Region]bool),
		defBlocks: make(map[*mr.Region][]*ssa.BasicBlock),
		defSeen:   make(map[defKey]bool),
	}
}

// newVer mints the next version of r, owned by def d, and pushes it onto r's
// rename stack.
func (s *state) newVer(r *mr.Region, d DefID) VerID {
	num := s.count[r]
	s.count[r] = num + 1
	id := VerID(len(s.f.vers))
	s.f.vers = append(s.f.vers, Ver{Region: r, Num: num, Def: d})
	s.stack[r] = append(s.stack[r], id)
	return id
}

// topVer returns the version of r currently in scope.
func (s *state) topVer(r *mr.Region) VerID {
	stk := s.stack[r]
	if len(stk) == 0 {
		panic(fmt.Sprintf("mssa: empty version stack for %s in %s", r, s.f.Fn))
	}
	return stk[len(stk)-1]
}

func (s *state) pop(r *mr.Region) {
	stk := s.stack[r]
	if len(stk) == 0 {
		panic(fmt.Sprintf("mssa: popping empty version stack for %s in %s", r, s.f.Fn))
	}
	s.stack[r] = stk[:len(stk)-1]
}

func (s *state) addDefBlock(r *mr.Region, b *ssa.BasicBlock) {
	k := defKey{r, b}
	if s.defSeen[k] {
		return
	}
	s.defSeen[k] = true
	s.defBlocks[r] = append(s.defBlocks[r], b)
}

// createSites walks the reachable blocks once, creating an unversioned mu
// per (load, region) and (reading call, region), an unversioned chi per
// (store, region) and (modifying call, region), and recording which blocks
// define which regions. It then bootstraps every touched region with an
// entry chi, and a return mu unless the function never reaches a return.
// Unreachable blocks contribute nothing.
func (s *state) createSites() {
	for _, b := range s.di.ReachableBlocks() {
		for _, instr := range b.Instrs {
			if call, ok := instr.(ssa.CallInstruction); ok {
				// Builtins (len, append, panic, ...) have no callee body for
				// the oracle to summarize; they get no call site nodes.
				if _, builtin := call.Common().Value.(*ssa.Builtin); builtin {
					continue
				}
				for _, r := range s.regions.CallRef(call) {
					s.used[r] = true
					id := s.f.addUse(Use{Kind: UseCall, Region: r, Block: b, Call: call, Ver: NoVer})
					s.f.callMus[call] = append(s.f.callMus[call], id)
				}
				for _, r := range s.regions.CallMod(call) {
					s.used[r] = true
					id := s.f.addDef(Def{Kind: DefCall, Region: r, Block: b, Call: call, Op: NoVer, Res: NoVer})
					s.f.callChis[call] = append(s.f.callChis[call], id)
					s.addDefBlock(r, b)
				}
				continue
			}
			switch instr := instr.(type) {
			case *ssa.UnOp:
				if instr.Op != token.MUL {
					break
				}
				for _, r := range s.regions.InstrRef(instr) {
					s.used[r] = true
					id := s.f.addUse(Use{Kind: UseLoad, Region: r, Block: b, Instr: instr, Ver: NoVer})
					s.f.instrMus[instr] = append(s.f.instrMus[instr], id)
				}
			case *ssa.Store:
				for _, r := range s.regions.InstrMod(instr) {
					s.used[r] = true
					id := s.f.addDef(Def{Kind: DefStore, Region: r, Block: b, Instr: instr, Op: NoVer, Res: NoVer})
					s.f.instrChis[instr] = append(s.f.instrChis[instr], id)
					s.addDefBlock(r, b)
				}
			}
		}
	}
	s.createEntryExitSites()
}

// createEntryExitSites mints, for every region the function touches, the two
// bootstrap versions 0 and 1 through the entry chi and leaves both on the
// rename stack, so that a use before any def sees version 1. Return mus stay
// unversioned until renaming reaches the return instructions.
func (s *state) createEntryExitSites() {
	for r := range s.used {
		s.f.touched = append(s.f.touched, r)
	}
	sort.Slice(s.f.touched, func(i, j int) bool { return s.f.touched[i].ID() < s.f.touched[j].ID() })

	entry := s.f.Fn.Blocks[0]
	mayReturn := s.di.MayReturn()
	for _, r := range s.f.touched {
		id := s.f.addDef(Def{Kind: DefEntry, Region: r, Block: entry, Op: NoVer, Res: NoVer})
		s.f.defs[id].Op = s.newVer(r, id)
		s.f.defs[id].Res = s.newVer(r, id)
		s.f.entryChis = append(s.f.entryChis, id)

		if mayReturn {
			uid := s.f.addUse(Use{Kind: UseReturn, Region: r, Ver: NoVer})
			s.f.retMus = append(s.f.retMus, uid)
		}
	}
	s.log.Debugf("%s %s: %d regions, %d defs, %d uses",
		s.log.Module(), s.f.Fn, len(s.f.touched), len(s.f.defs), len(s.f.uses))
}
