package mssa_test

import (
	"fmt"
	"go/token"
	"strings"
	"testing"

	"github.com/bsauce/memssa/dom"
	"github.com/bsauce/memssa/mr"
	"github.com/bsauce/memssa/mssa"
	"github.com/bsauce/memssa/ssa"
	"github.com/bsauce/memssa/ssa/build"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/tools/container/intsets"
	gossa "golang.org/x/tools/go/ssa"
)

// regionTable is a hand-filled region oracle for tests: it maps exactly the
// instructions a test cares about and answers nil for everything else.
type regionTable struct {
	refs  map[gossa.Instruction][]*mr.Region
	mods  map[gossa.Instruction][]*mr.Region
	crefs map[gossa.CallInstruction][]*mr.Region
	cmods map[gossa.CallInstruction][]*mr.Region
}

func newRegionTable() *regionTable {
	return &regionTable{
		refs:  make(map[gossa.Instruction][]*mr.Region),
		mods:  make(map[gossa.Instruction][]*mr.Region),
		crefs: make(map[gossa.CallInstruction][]*mr.Region),
		cmods: make(map[gossa.CallInstruction][]*mr.Region),
	}
}

func (t *regionTable) InstrRef(i gossa.Instruction) []*mr.Region    { return t.refs[i] }
func (t *regionTable) InstrMod(i gossa.Instruction) []*mr.Region    { return t.mods[i] }
func (t *regionTable) CallRef(c gossa.CallInstruction) []*mr.Region { return t.crefs[c] }
func (t *regionTable) CallMod(c gossa.CallInstruction) []*mr.Region { return t.cmods[c] }

func region(id int, objs ...int) *mr.Region {
	var s intsets.Sparse
	for _, o := range objs {
		s.Insert(o)
	}
	return mr.NewRegion(id, &s)
}

func buildMain(t *testing.T, prog string) *gossa.Function {
	t.Helper()
	info, err := build.FromReader(strings.NewReader(prog)).Build()
	if err != nil {
		t.Fatal("SSA build failed:", err)
	}
	mains, err := ssa.MainPkgs(info.Prog, false)
	if err != nil {
		t.Fatal("cannot find main package:", err)
	}
	fn := mains[0].Func("main")
	if fn == nil {
		t.Fatal("no main function")
	}
	return fn
}

func domOf(t *testing.T, fn *gossa.Function) *dom.Info {
	t.Helper()
	di, err := dom.Compute(fn)
	if err != nil {
		t.Fatal("dominance computation failed:", err)
	}
	return di
}

func stores(fn *gossa.Function) []*gossa.Store {
	var out []*gossa.Store
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if st, ok := instr.(*gossa.Store); ok {
				out = append(out, st)
			}
		}
	}
	return out
}

func loads(fn *gossa.Function) []*gossa.UnOp {
	var out []*gossa.UnOp
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if ld, ok := instr.(*gossa.UnOp); ok && ld.Op == token.MUL {
				out = append(out, ld)
			}
		}
	}
	return out
}

// loadOf returns the load reading the named global.
func loadOf(t *testing.T, fn *gossa.Function, name string) *gossa.UnOp {
	t.Helper()
	for _, ld := range loads(fn) {
		if g, ok := ld.X.(*gossa.Global); ok && g.Name() == name {
			return ld
		}
	}
	t.Fatalf("no load of %s in %s", name, fn)
	return nil
}

func callTo(t *testing.T, fn *gossa.Function, callee string) gossa.CallInstruction {
	t.Helper()
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			call, ok := instr.(gossa.CallInstruction)
			if !ok {
				continue
			}
			if static := call.Common().StaticCallee(); static != nil && static.Name() == callee {
				return call
			}
		}
	}
	t.Fatalf("no call to %s in %s", callee, fn)
	return nil
}

func verNum(f *mssa.Func, id mssa.VerID) int { return f.Ver(id).Num }

func TestStraightLine(t *testing.T) {
	fn := buildMain(t, `package main
	var x int
	func main() {
		x = 1
		_ = x
	}`)
	r := region(1, 0)
	table := newRegionTable()
	table.mods[stores(fn)[0]] = []*mr.Region{r}
	table.refs[loads(fn)[0]] = []*mr.Region{r}

	b := mssa.NewBuilder(table)
	f, err := b.BuildFunction(fn, domOf(t, fn))
	if err != nil {
		t.Fatal("build failed:", err)
	}

	if got := f.Regions(); len(got) != 1 || got[0] != r {
		t.Errorf("touched regions: got %v, want [%s]", got, r)
	}
	entries := f.EntryChis()
	if len(entries) != 1 {
		t.Fatalf("entry chis: got %d, want 1", len(entries))
	}
	entry := f.Def(entries[0])
	if entry.Kind != mssa.DefEntry {
		t.Errorf("entry chi kind: got %s", entry.Kind)
	}
	if verNum(f, entry.Op) != 0 || verNum(f, entry.Res) != 1 {
		t.Errorf("entry chi versions: got %d -> %d, want 0 -> 1",
			verNum(f, entry.Op), verNum(f, entry.Res))
	}

	chis := f.InstrChis(stores(fn)[0])
	if len(chis) != 1 {
		t.Fatalf("store chis: got %d, want 1", len(chis))
	}
	chi := f.Def(chis[0])
	if chi.Op != entry.Res {
		t.Errorf("store chi consumes %s, want the entry version %s",
			f.VerString(chi.Op), f.VerString(entry.Res))
	}
	if verNum(f, chi.Res) != 2 {
		t.Errorf("store chi produces version %d, want 2", verNum(f, chi.Res))
	}

	mus := f.InstrMus(loads(fn)[0])
	if len(mus) != 1 {
		t.Fatalf("load mus: got %d, want 1", len(mus))
	}
	if got := f.Use(mus[0]).Ver; got != chi.Res {
		t.Errorf("load sees %s, want the store's version %s",
			f.VerString(got), f.VerString(chi.Res))
	}

	rets := f.RetMus()
	if len(rets) != 1 {
		t.Fatalf("return mus: got %d, want 1", len(rets))
	}
	if got := f.Use(rets[0]).Ver; got != chi.Res {
		t.Errorf("return mu sees %s, want %s", f.VerString(got), f.VerString(chi.Res))
	}

	want := mssa.Stats{LoadMu: 1, StoreChi: 1, EntryChi: 1, RetMu: 1}
	if got := f.Stats(); got != want {
		t.Errorf("stats: got %+v, want %+v", got, want)
	}
	if got := f.NumVers(); got != 3 {
		t.Errorf("versions minted: got %d, want 3", got)
	}
}

func TestDiamondPhi(t *testing.T) {
	fn := buildMain(t, `package main
	var x, c int
	func main() {
		if c > 0 {
			x = 1
		}
		_ = x
	}`)
	r := region(1, 0)
	table := newRegionTable()
	st := stores(fn)[0]
	table.mods[st] = []*mr.Region{r}
	// Only the x load at the join is mapped; the c load for the branch is
	// not the oracle's business here.
	loadX := loadOf(t, fn, "x")
	table.refs[loadX] = []*mr.Region{r}

	b := mssa.NewBuilder(table)
	f, err := b.BuildFunction(fn, domOf(t, fn))
	if err != nil {
		t.Fatal("build failed:", err)
	}

	if got := f.Stats().Phi; got != 1 {
		t.Fatalf("phis: got %d, want exactly 1 at the join", got)
	}
	thenB := f.Def(f.InstrChis(st)[0]).Block
	if len(thenB.Succs) != 1 {
		t.Fatalf("store block should have one successor, got %d", len(thenB.Succs))
	}
	join := thenB.Succs[0]
	phis := f.Phis(join)
	if len(phis) != 1 {
		t.Fatalf("phis at join: got %d, want 1", len(phis))
	}
	phi := f.Def(phis[0])
	if len(phi.Opds) != len(join.Preds) {
		t.Fatalf("phi operands: got %d, want %d", len(phi.Opds), len(join.Preds))
	}

	entryRes := f.Def(f.EntryChis()[0]).Res
	storeRes := f.Def(f.InstrChis(st)[0]).Res
	for i, pred := range join.Preds {
		want := entryRes
		if pred == thenB {
			want = storeRes
		}
		if phi.Opds[i] != want {
			t.Errorf("phi operand %d (from block %d): got %s, want %s",
				i, pred.Index, f.VerString(phi.Opds[i]), f.VerString(want))
		}
	}

	if got := f.Use(f.InstrMus(loadX)[0]).Ver; got != phi.Res {
		t.Errorf("load after join sees %s, want phi result %s",
			f.VerString(got), f.VerString(phi.Res))
	}
	if got := verNum(f, phi.Res); got != 3 {
		t.Errorf("phi result version: got %d, want 3", got)
	}
}

func TestLoopPhi(t *testing.T) {
	// The loop carries no post statement so the body jumps straight back to
	// the header.
	fn := buildMain(t, `package main
	var x, n int
	func main() {
		i := 0
		for i < n {
			x = i
			i++
		}
		_ = x
	}`)
	r := region(1, 0)
	table := newRegionTable()
	st := stores(fn)[0]
	table.mods[st] = []*mr.Region{r}
	loadX := loadOf(t, fn, "x")
	table.refs[loadX] = []*mr.Region{r}

	b := mssa.NewBuilder(table)
	f, err := b.BuildFunction(fn, domOf(t, fn))
	if err != nil {
		t.Fatal("build failed:", err)
	}

	var header *gossa.BasicBlock
	for _, blk := range fn.Blocks {
		if len(f.Phis(blk)) > 0 {
			if header != nil {
				t.Fatalf("phis in both block %d and block %d, want only the loop header",
					header.Index, blk.Index)
			}
			header = blk
		}
	}
	if header == nil {
		t.Fatal("no phi inserted for the loop")
	}
	body := f.Def(f.InstrChis(st)[0]).Block
	found := false
	for _, succ := range body.Succs {
		if succ == header {
			found = true
		}
	}
	if !found {
		t.Errorf("phi sits in block %d, not a successor of the loop body %d",
			header.Index, body.Index)
	}

	phi := f.Def(f.Phis(header)[0])
	storeChi := f.Def(f.InstrChis(st)[0])
	if storeChi.Op != phi.Res {
		t.Errorf("store in loop consumes %s, want phi result %s",
			f.VerString(storeChi.Op), f.VerString(phi.Res))
	}
	for i, pred := range header.Preds {
		want := f.Def(f.EntryChis()[0]).Res
		if pred == body {
			want = storeChi.Res
		}
		if phi.Opds[i] != want {
			t.Errorf("phi operand %d (from block %d): got %s, want %s",
				i, pred.Index, f.VerString(phi.Opds[i]), f.VerString(want))
		}
	}
	if got := f.Use(f.InstrMus(loadX)[0]).Ver; got != phi.Res {
		t.Errorf("load after loop sees %s, want phi result %s",
			f.VerString(got), f.VerString(phi.Res))
	}
}

func TestCallMuBeforeChi(t *testing.T) {
	fn := buildMain(t, `package main
	var x int
	func bump() {
		x++
	}
	func main() {
		bump()
		_ = x
	}`)
	r := region(1, 0)
	table := newRegionTable()
	call := callTo(t, fn, "bump")
	table.crefs[call] = []*mr.Region{r}
	table.cmods[call] = []*mr.Region{r}
	table.refs[loads(fn)[0]] = []*mr.Region{r}

	b := mssa.NewBuilder(table)
	f, err := b.BuildFunction(fn, domOf(t, fn))
	if err != nil {
		t.Fatal("build failed:", err)
	}

	mus, chis := f.CallMus(call), f.CallChis(call)
	if len(mus) != 1 || len(chis) != 1 {
		t.Fatalf("call nodes: got %d mus, %d chis, want 1 and 1", len(mus), len(chis))
	}
	mu, chi := f.Use(mus[0]), f.Def(chis[0])
	if verNum(f, mu.Ver) != 1 {
		t.Errorf("call mu reads version %d, want the entry version 1", verNum(f, mu.Ver))
	}
	if chi.Op != mu.Ver {
		t.Errorf("call chi consumes %s but the mu read %s: the call must read before it clobbers",
			f.VerString(chi.Op), f.VerString(mu.Ver))
	}
	if verNum(f, chi.Res) != 2 {
		t.Errorf("call chi produces version %d, want 2", verNum(f, chi.Res))
	}
	if got := f.Use(f.InstrMus(loads(fn)[0])[0]).Ver; got != chi.Res {
		t.Errorf("load after call sees %s, want %s", f.VerString(got), f.VerString(chi.Res))
	}

	want := mssa.Stats{LoadMu: 1, CallMu: 1, CallChi: 1, EntryChi: 1, RetMu: 1}
	if got := f.Stats(); got != want {
		t.Errorf("stats: got %+v, want %+v", got, want)
	}
}

func TestNeverReturns(t *testing.T) {
	fn := buildMain(t, `package main
	var x int
	func main() {
		for {
			x = 1
		}
	}`)
	r := region(1, 0)
	table := newRegionTable()
	table.mods[stores(fn)[0]] = []*mr.Region{r}

	b := mssa.NewBuilder(table)
	f, err := b.BuildFunction(fn, domOf(t, fn))
	if err != nil {
		t.Fatal("build failed:", err)
	}

	if got := len(f.RetMus()); got != 0 {
		t.Errorf("return mus in a function that never returns: got %d, want 0", got)
	}
	if got := len(f.EntryChis()); got != 1 {
		t.Errorf("entry chis: got %d, want 1", got)
	}
	if got := f.Stats().Phi; got != 1 {
		t.Errorf("phis: got %d, want 1 at the loop head", got)
	}
}

// partialDom forwards to computed dominance info but reports one block as
// missing from the frontier map.
type partialDom struct {
	*dom.Info
	missing *gossa.BasicBlock
}

func (d *partialDom) Frontier(b *gossa.BasicBlock) ([]*gossa.BasicBlock, bool) {
	if b == d.missing {
		return nil, false
	}
	return d.Info.Frontier(b)
}

// A defining block can miss from the frontier map when the dominance info
// disagrees with the blocks walked during construction. The builder must warn
// and carry on without phis for that block instead of failing.
func TestFrontierMissWarnsAndSkips(t *testing.T) {
	fn := buildMain(t, `package main
	var x, n int
	func main() {
		if n > 0 {
			x = 1
		}
		_ = x
	}`)
	r := region(1, 0)
	table := newRegionTable()
	st := stores(fn)[0]
	table.mods[st] = []*mr.Region{r}
	loadX := loadOf(t, fn, "x")
	table.refs[loadX] = []*mr.Region{r}

	core, logs := observer.New(zapcore.WarnLevel)
	b := mssa.NewBuilder(table)
	b.SetLogger(&mssa.Logger{SugaredLogger: zap.New(core).Sugar()})

	f, err := b.BuildFunction(fn, &partialDom{Info: domOf(t, fn), missing: st.Block()})
	if err != nil {
		t.Fatal("build failed:", err)
	}

	if got := f.Stats().Phi; got != 0 {
		t.Errorf("phis after skipping the store block: got %d, want 0", got)
	}
	entryRes := f.Def(f.EntryChis()[0]).Res
	if got := f.Use(f.InstrMus(loadX)[0]).Ver; got != entryRes {
		t.Errorf("load after the skipped join sees %s, want the entry version %s",
			f.VerString(got), f.VerString(entryRes))
	}

	want := fmt.Sprintf("block %d not in dominance frontier map", st.Block().Index)
	found := false
	for _, e := range logs.All() {
		if strings.Contains(e.Message, want) {
			found = true
		}
	}
	if !found {
		t.Errorf("no warning mentioning %q among %d log entries", want, logs.Len())
	}
}

func TestTwoRegionsIndependent(t *testing.T) {
	fn := buildMain(t, `package main
	var x, y int
	func main() {
		x = 1
		y = 2
		_ = x
		_ = y
	}`)
	r1, r2 := region(1, 0), region(2, 1)
	table := newRegionTable()
	sts := stores(fn)
	table.mods[sts[0]] = []*mr.Region{r1}
	table.mods[sts[1]] = []*mr.Region{r2}
	lds := []*gossa.UnOp{loadOf(t, fn, "x"), loadOf(t, fn, "y")}
	table.refs[lds[0]] = []*mr.Region{r1}
	table.refs[lds[1]] = []*mr.Region{r2}

	b := mssa.NewBuilder(table)
	f, err := b.BuildFunction(fn, domOf(t, fn))
	if err != nil {
		t.Fatal("build failed:", err)
	}

	if got := f.Regions(); len(got) != 2 || got[0] != r1 || got[1] != r2 {
		t.Fatalf("touched regions: got %v, want [%s %s]", got, r1, r2)
	}
	for i, st := range sts {
		chi := f.Def(f.InstrChis(st)[0])
		if verNum(f, chi.Op) != 1 || verNum(f, chi.Res) != 2 {
			t.Errorf("store %d versions: got %d -> %d, want 1 -> 2 (counters are per region)",
				i, verNum(f, chi.Op), verNum(f, chi.Res))
		}
	}
	for i, ld := range lds {
		mu := f.Use(f.InstrMus(ld)[0])
		if verNum(f, mu.Ver) != 2 {
			t.Errorf("load %d sees version %d, want 2", i, verNum(f, mu.Ver))
		}
	}
	if got := f.NumVers(); got != 6 {
		t.Errorf("versions minted: got %d, want 3 per region", got)
	}
}

// A region the function never loads, stores or calls into must leave no
// trace in its form: no nodes, no entry chi, no return mu, no version
// counter. Built over one oracle, two functions touching different regions
// stay fully independent.
func TestUntouchedRegion(t *testing.T) {
	fn := buildMain(t, `package main
	var x, y int
	func other() {
		y = 2
	}
	func main() {
		x = 1
	}`)
	otherFn := fn.Pkg.Func("other")
	if otherFn == nil {
		t.Fatal("no function other")
	}
	r1, r2 := region(1, 0), region(2, 1)
	table := newRegionTable()
	table.mods[stores(fn)[0]] = []*mr.Region{r1}
	table.mods[stores(otherFn)[0]] = []*mr.Region{r2}

	b := mssa.NewBuilder(table)
	mainF, err := b.BuildFunction(fn, domOf(t, fn))
	if err != nil {
		t.Fatal("build failed:", err)
	}
	otherF, err := b.BuildFunction(otherFn, domOf(t, otherFn))
	if err != nil {
		t.Fatal("build failed:", err)
	}

	if got := mainF.Regions(); len(got) != 1 || got[0] != r1 {
		t.Errorf("main touches %v, want only %s: the untouched %s must not appear", got, r1, r2)
	}
	if got := otherF.Regions(); len(got) != 1 || got[0] != r2 {
		t.Errorf("other touches %v, want only %s", got, r2)
	}
	for i := 0; i < mainF.NumDefs(); i++ {
		if d := mainF.Def(mssa.DefID(i)); d.Region != r1 {
			t.Errorf("main holds a %s for %s", d.Kind, d.Region)
		}
	}
	for i := 0; i < mainF.NumUses(); i++ {
		if u := mainF.Use(mssa.UseID(i)); u.Region != r1 {
			t.Errorf("main holds a %s for %s", u.Kind, u.Region)
		}
	}
	want := mssa.Stats{StoreChi: 1, EntryChi: 1, RetMu: 1}
	if got := mainF.Stats(); got != want {
		t.Errorf("main stats: got %+v, want %+v", got, want)
	}
	if got := otherF.Stats(); got != want {
		t.Errorf("other stats: got %+v, want %+v", got, want)
	}

	// Version counters are per function: other's store sees the same 1 -> 2
	// numbering main's does, not a continuation of it.
	chi := otherF.Def(otherF.InstrChis(stores(otherFn)[0])[0])
	if verNum(otherF, chi.Op) != 1 || verNum(otherF, chi.Res) != 2 {
		t.Errorf("other's store versions: got %d -> %d, want 1 -> 2",
			verNum(otherF, chi.Op), verNum(otherF, chi.Res))
	}

	agg := mssa.Stats{StoreChi: 2, EntryChi: 2, RetMu: 2}
	if got := b.Stats(); got != agg {
		t.Errorf("aggregate stats: got %+v, want %+v", got, agg)
	}
}

func TestMayAliasStoreTwoRegions(t *testing.T) {
	fn := buildMain(t, `package main
	var x int
	func main() {
		x = 1
		_ = x
	}`)
	r1, r2 := region(1, 0), region(2, 1)
	both := []*mr.Region{r1, r2}
	table := newRegionTable()
	table.mods[stores(fn)[0]] = both
	table.refs[loads(fn)[0]] = both

	b := mssa.NewBuilder(table)
	f, err := b.BuildFunction(fn, domOf(t, fn))
	if err != nil {
		t.Fatal("build failed:", err)
	}

	chis := f.InstrChis(stores(fn)[0])
	if len(chis) != 2 {
		t.Fatalf("chis on a may-alias store: got %d, want 2", len(chis))
	}
	for i, want := range both {
		chi := f.Def(chis[i])
		if chi.Region != want {
			t.Errorf("chi %d region: got %s, want %s", i, chi.Region, want)
		}
		if verNum(f, chi.Op) != 1 || verNum(f, chi.Res) != 2 {
			t.Errorf("chi %d versions: got %d -> %d, want 1 -> 2",
				i, verNum(f, chi.Op), verNum(f, chi.Res))
		}
	}
	mus := f.InstrMus(loads(fn)[0])
	if len(mus) != 2 {
		t.Fatalf("mus on a may-alias load: got %d, want 2", len(mus))
	}
	for i := range both {
		if got := f.Use(mus[i]).Ver; got != f.Def(chis[i]).Res {
			t.Errorf("mu %d sees %s, want %s", i, f.VerString(got), f.VerString(f.Def(chis[i]).Res))
		}
	}
}

// TestRenamedFormProperties checks the structural guarantees on a function
// with branching, a loop and a call: defs dominate their uses, phi operands
// come from blocks dominating the matching predecessor, and no version has
// two producers.
func TestRenamedFormProperties(t *testing.T) {
	fn := buildMain(t, `package main
	var x, n int
	func touch() {
		x = 3
	}
	func main() {
		if n > 0 {
			x = 1
		} else {
			touch()
		}
		for i := 0; i < n; i++ {
			x = x + i
		}
		_ = x
	}`)
	r := region(1, 0)
	table := newRegionTable()
	for _, st := range stores(fn) {
		table.mods[st] = []*mr.Region{r}
	}
	for _, ld := range loads(fn) {
		if _, ok := ld.X.(*gossa.Global); ok && ld.X.Name() == "x" {
			table.refs[ld] = []*mr.Region{r}
		}
	}
	call := callTo(t, fn, "touch")
	table.cmods[call] = []*mr.Region{r}

	b := mssa.NewBuilder(table)
	f, err := b.BuildFunction(fn, domOf(t, fn))
	if err != nil {
		t.Fatal("build failed:", err)
	}

	defBlock := func(id mssa.VerID) *gossa.BasicBlock {
		return f.Def(f.Ver(id).Def).Block
	}

	for i := 0; i < f.NumUses(); i++ {
		u := f.Use(mssa.UseID(i))
		if u.Block == nil { // return mus have no single block
			continue
		}
		if db := defBlock(u.Ver); !db.Dominates(u.Block) {
			t.Errorf("%s of %s in block %d: producing def in block %d does not dominate it",
				u.Kind, u.Region, u.Block.Index, db.Index)
		}
	}
	producers := make(map[mssa.VerID]int)
	for i := 0; i < f.NumDefs(); i++ {
		d := f.Def(mssa.DefID(i))
		producers[d.Res]++
		if d.Kind != mssa.DefPhi {
			if db := defBlock(d.Op); !db.Dominates(d.Block) {
				t.Errorf("%s of %s in block %d: consumed version from non-dominating block %d",
					d.Kind, d.Region, d.Block.Index, db.Index)
			}
			continue
		}
		for pos, op := range d.Opds {
			pred := d.Block.Preds[pos]
			if db := defBlock(op); !db.Dominates(pred) {
				t.Errorf("phi in block %d: operand %d produced in block %d, which does not dominate predecessor %d",
					d.Block.Index, pos, db.Index, pred.Index)
			}
		}
	}
	for id, n := range producers {
		if n != 1 {
			t.Errorf("version %s has %d producers", f.VerString(id), n)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	info, err := build.FromReader(strings.NewReader(`package main
	import "fmt"
	func main() {
		fmt.Println("x")
	}`)).AddBadPkg("fmt", "test wants an opaque function").Build()
	if err != nil {
		t.Fatal("SSA build failed:", err)
	}
	fmtPkg := info.Prog.ImportedPackage("fmt")
	if fmtPkg == nil {
		t.Fatal("fmt not loaded")
	}
	printlnFn := fmtPkg.Func("Println")
	if printlnFn == nil {
		t.Fatal("fmt.Println not found")
	}

	b := mssa.NewBuilder(newRegionTable())
	if _, err := b.BuildFunction(printlnFn, nil); errors.Cause(err) != mssa.ErrNoBody {
		t.Errorf("building an opaque function: got %v, want ErrNoBody", err)
	}

	mains, err := ssa.MainPkgs(info.Prog, false)
	if err != nil {
		t.Fatal("cannot find main package:", err)
	}
	mainFn := mains[0].Func("main")
	initFn := mains[0].Func("init")
	if _, err := b.BuildFunction(mainFn, domOf(t, initFn)); errors.Cause(err) != mssa.ErrDomMismatch {
		t.Errorf("building with mismatched dominance info: got %v, want ErrDomMismatch", err)
	}
}

func TestBuildFunctionCachesAndReleases(t *testing.T) {
	fn := buildMain(t, `package main
	var x int
	func main() {
		x = 1
	}`)
	table := newRegionTable()
	table.mods[stores(fn)[0]] = []*mr.Region{region(1, 0)}

	b := mssa.NewBuilder(table)
	di := domOf(t, fn)
	f1, err := b.BuildFunction(fn, di)
	if err != nil {
		t.Fatal("build failed:", err)
	}
	f2, err := b.BuildFunction(fn, di)
	if err != nil {
		t.Fatal("rebuild failed:", err)
	}
	if f1 != f2 {
		t.Error("second build did not return the cached form")
	}
	if b.Func(fn) != f1 {
		t.Error("Func lookup did not return the built form")
	}
	agg := b.Stats()
	if agg != f1.Stats() {
		t.Errorf("aggregate stats: got %+v, want the single function's %+v", agg, f1.Stats())
	}

	b.Release()
	if b.Func(fn) != nil {
		t.Error("Release kept the built form")
	}
	if b.Stats() != (mssa.Stats{}) {
		t.Error("Release kept the aggregate stats")
	}
}
