package mssa

import (
	"fmt"

	"github.com/bsauce/memssa/mr"
	"golang.org/x/tools/go/ssa"
)

// VerID indexes a version in a function's version table.
type VerID int

// DefID indexes a def node (chi or phi) in a function's node tables.
type DefID int

// UseID indexes a use node (mu) in a function's node tables.
type UseID int

// NoVer marks a version slot renaming has not assigned yet.
const NoVer VerID = -1

// DefKind enumerates the def node variants.
type DefKind int

const (
	DefEntry DefKind = iota // region value on function entry
	DefStore                // store instruction
	DefCall                 // call site that may modify the region
	DefPhi                  // join of versions from predecessor blocks
)

func (k DefKind) String() string {
	switch k {
	case DefEntry:
		return "ENCHI"
	case DefStore:
		return "STCHI"
	case DefCall:
		return "CALCHI"
	case DefPhi:
		return "PHI"
	}
	return "CHI?"
}

// UseKind enumerates the use node variants.
type UseKind int

const (
	UseLoad   UseKind = iota // load instruction
	UseCall                  // call site that may read the region
	UseReturn                // region value observed at returns
)

func (k UseKind) String() string {
	switch k {
	case UseLoad:
		return "LDMU"
	case UseCall:
		return "CALMU"
	case UseReturn:
		return "RETMU"
	}
	return "MU?"
}

// Ver is one version of a region: the value the region holds from its owning
// def to the next def. Numbers count up from 0 per region and are never
// reused within a function.
type Ver struct {
	Region *mr.Region
	Num    int
	Def    DefID // the def that produced this version
}

// Def is a node that produces a new version of a region. Entry defs, stores
// and modifying calls consume the incoming version through Op; phis consume
// one version per predecessor through Opds.
type Def struct {
	Kind   DefKind
	Region *mr.Region
	Block  *ssa.BasicBlock
	Instr  ssa.Instruction     // store instruction, nil otherwise
	Call   ssa.CallInstruction // modifying call site, nil otherwise
	Op     VerID               // incoming version, NoVer for phis
	Res    VerID               // produced version
	Opds   []VerID             // phi operands indexed by predecessor position
}

// Use is a node that reads a version of a region without producing one.
type Use struct {
	Kind   UseKind
	Region *mr.Region
	Block  *ssa.BasicBlock     // nil for return uses
	Instr  ssa.Instruction     // load instruction, nil otherwise
	Call   ssa.CallInstruction // reading call site, nil otherwise
	Ver    VerID
}

// Func holds the finished memory SSA form of one function. All nodes live in
// tables owned by the Func and cross-reference each other through
// VerID/DefID/UseID indices, never raw pointers.
type Func struct {
	Fn *ssa.Function

	vers []Ver
	defs []Def
	uses []Use

	touched   []*mr.Region // regions with at least one node, ascending by id
	entryChis []DefID      // one per touched region, same order as touched
	retMus    []UseID      // one per touched region unless Fn never returns
	instrMus  map[ssa.Instruction][]UseID
	instrChis map[ssa.Instruction][]DefID
	callMus   map[ssa.CallInstruction][]UseID
	callChis  map[ssa.CallInstruction][]DefID
	blockPhis map[*ssa.BasicBlock][]DefID

	stats  Stats
	timing Timing
}

func newFunc(fn *ssa.Function) *Func {
	return &Func{
		Fn:        fn,
		instrMus:  make(map[ssa.Instruction][]UseID),
		instrChis: make(map[ssa.Instruction][]DefID),
		callMus:   make(map[ssa.CallInstruction][]UseID),
		callChis:  make(map[ssa.CallInstruction][]DefID),
		blockPhis: make(map[*ssa.BasicBlock][]DefID),
	}
}

func (f *Func) addDef(d Def) DefID {
	id := DefID(len(f.defs))
	f.defs = append(f.defs, d)
	return id
}

func (f *Func) addUse(u Use) UseID {
	id := UseID(len(f.uses))
	f.uses = append(f.uses, u)
	return id
}

// Ver returns the version row behind id.
func (f *Func) Ver(id VerID) Ver { return f.vers[id] }

// Def returns the def node behind id.
func (f *Func) Def(id DefID) Def { return f.defs[id] }

// Use returns the use node behind id.
func (f *Func) Use(id UseID) Use { return f.uses[id] }

// NumVers returns the number of versions minted for this function.
func (f *Func) NumVers() int { return len(f.vers) }

// NumDefs returns the number of def nodes.
func (f *Func) NumDefs() int { return len(f.defs) }

// NumUses returns the number of use nodes.
func (f *Func) NumUses() int { return len(f.uses) }

// Regions returns the regions this function touches, in ascending id order.
func (f *Func) Regions() []*mr.Region { return f.touched }

// EntryChis returns the entry defs, one per touched region.
func (f *Func) EntryChis() []DefID { return f.entryChis }

// RetMus returns the return uses, one per touched region. Empty when the
// function never reaches a return.
func (f *Func) RetMus() []UseID { return f.retMus }

// InstrMus returns the load uses of instr.
func (f *Func) InstrMus(instr ssa.Instruction) []UseID { return f.instrMus[instr] }

// InstrChis returns the store defs of instr.
func (f *Func) InstrChis(instr ssa.Instruction) []DefID { return f.instrChis[instr] }

// CallMus returns the uses of the call site.
func (f *Func) CallMus(call ssa.CallInstruction) []UseID { return f.callMus[call] }

// CallChis returns the defs of the call site.
func (f *Func) CallChis(call ssa.CallInstruction) []DefID { return f.callChis[call] }

// Phis returns the phi defs of block b, in ascending region id order.
func (f *Func) Phis(b *ssa.BasicBlock) []DefID { return f.blockPhis[b] }

// Stats returns the node counts of this function.
func (f *Func) Stats() Stats { return f.stats }

// Timing returns the construction phase timings of this function.
func (f *Func) Timing() Timing { return f.timing }

// VerString renders a version as MR_<region>V_<num>.
func (f *Func) VerString(id VerID) string {
	v := f.vers[id]
	return fmt.Sprintf("%sV_%d", v.Region, v.Num)
}

// verify checks that renaming filled every slot and that every version is
// owned by the def that claims to produce it. Any hole here is a bug in the
// construction, so it panics rather than returning an error.
func (f *Func) verify() {
	for i := range f.defs {
		d := &f.defs[i]
		if d.Res == NoVer {
			panic(fmt.Sprintf("mssa: %s for %s in %s has no result version", d.Kind, d.Region, f.Fn))
		}
		if f.vers[d.Res].Def != DefID(i) {
			panic(fmt.Sprintf("mssa: version %s has two producers in %s", f.VerString(d.Res), f.Fn))
		}
		if d.Kind == DefPhi {
			for pos, op := range d.Opds {
				if op == NoVer {
					panic(fmt.Sprintf("mssa: phi for %s in block %d of %s: operand %d not filled",
						d.Region, d.Block.Index, f.Fn, pos))
				}
			}
			continue
		}
		if d.Op == NoVer {
			panic(fmt.Sprintf("mssa: %s for %s in %s has no incoming version", d.Kind, d.Region, f.Fn))
		}
	}
	for i := range f.uses {
		u := &f.uses[i]
		if u.Ver == NoVer {
			panic(fmt.Sprintf("mssa: %s for %s in %s not renamed", u.Kind, u.Region, f.Fn))
		}
	}
}
