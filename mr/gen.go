package mr

import (
	"context"
	"go/token"
	"sort"
	"time"

	"github.com/bsauce/memssa/ssa"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/container/intsets"
	"golang.org/x/tools/go/pointer"
	gossa "golang.org/x/tools/go/ssa"
)

// Strategy selects how points-to sets are carved into memory regions.
type Strategy int

const (
	// IntraDisjoint partitions the objects each function touches into sets
	// that the function's own points-to sets cannot tell apart. This is the
	// default strategy.
	IntraDisjoint Strategy = iota
	// Distinct keeps one region per object.
	Distinct
	// InterDisjoint partitions like IntraDisjoint but with one program-wide
	// partition shared by all functions.
	InterDisjoint
)

// ParseStrategy maps a -mempar flag value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "distinct":
		return Distinct, nil
	case "intra-disjoint":
		return IntraDisjoint, nil
	case "inter-disjoint":
		return InterDisjoint, nil
	}
	return IntraDisjoint, errors.Errorf("unknown memory partition strategy %q", s)
}

func (s Strategy) String() string {
	switch s {
	case Distinct:
		return "distinct"
	case IntraDisjoint:
		return "intra-disjoint"
	case InterDisjoint:
		return "inter-disjoint"
	}
	return "unknown"
}

// memSite is one load or store whose address the pointer analysis resolved.
type memSite struct {
	instr gossa.Instruction
	addr  gossa.Value
	store bool
}

// Generator runs the pointer analysis over a built program and materializes
// the regions plus the per-site region sets that memory SSA asks for. It is
// the production implementation of the mssa region oracle. All query methods
// are read-only after Generate returns.
type Generator struct {
	info     *ssa.Info
	strategy Strategy
	log      *zap.SugaredLogger

	objs    *objTable
	regions map[string]*Region // interned by canonical object set
	byID    []*Region

	fns      []*gossa.Function
	sitePts  map[gossa.Value]*intsets.Sparse       // load/store address -> objects
	funSites map[*gossa.Function][]memSite         // loads and stores per function
	funPts   map[*gossa.Function][]*intsets.Sparse // partition input per function
	funInter map[*gossa.Function][]*intsets.Sparse // intra-disjoint partition
	inter    []*intsets.Sparse                     // inter-disjoint partition

	funMod map[*gossa.Function]*intsets.Sparse
	funRef map[*gossa.Function]*intsets.Sparse
	csMod  map[gossa.CallInstruction]*intsets.Sparse
	csRef  map[gossa.CallInstruction]*intsets.Sparse

	loadMRs    map[gossa.Instruction][]*Region
	storeMRs   map[gossa.Instruction][]*Region
	callRefMRs map[gossa.CallInstruction][]*Region
	callModMRs map[gossa.CallInstruction][]*Region

	elapsed time.Duration
}

// NewGenerator returns a Generator over a built program. Generate must be
// called before any query method answers.
func NewGenerator(info *ssa.Info, strategy Strategy) *Generator {
	return &Generator{
		info:       info,
		strategy:   strategy,
		log:        zap.NewNop().Sugar(),
		objs:       newObjTable(),
		regions:    make(map[string]*Region),
		sitePts:    make(map[gossa.Value]*intsets.Sparse),
		funSites:   make(map[*gossa.Function][]memSite),
		funPts:     make(map[*gossa.Function][]*intsets.Sparse),
		funInter:   make(map[*gossa.Function][]*intsets.Sparse),
		funMod:     make(map[*gossa.Function]*intsets.Sparse),
		funRef:     make(map[*gossa.Function]*intsets.Sparse),
		csMod:      make(map[gossa.CallInstruction]*intsets.Sparse),
		csRef:      make(map[gossa.CallInstruction]*intsets.Sparse),
		loadMRs:    make(map[gossa.Instruction][]*Region),
		storeMRs:   make(map[gossa.Instruction][]*Region),
		callRefMRs: make(map[gossa.CallInstruction][]*Region),
		callModMRs: make(map[gossa.CallInstruction][]*Region),
	}
}

// SetLogger routes generation progress logging through l.
func (g *Generator) SetLogger(l *zap.Logger) { g.log = l.Sugar() }

// Generate runs the pointer analysis, resolves every memory operation of the
// program to its object set, closes mod/ref summaries over the callgraph and
// carves the regions according to the configured strategy.
func (g *Generator) Generate() error {
	start := time.Now()
	defer func() { g.elapsed = time.Since(start) }()

	g.fns = g.info.Functions()
	config, err := g.info.PtrAnlysCfg(false)
	if err != nil {
		return errors.Wrap(err, "mr: pointer analysis config")
	}
	config.BuildCallGraph = true
	n := ssa.AddMemOpQueries(config, g.fns)
	g.log.Debugf("mr: registered %d points-to queries over %d functions", n, len(g.fns))
	result, err := g.info.RunPtrAnlys(config)
	if err != nil {
		return errors.Wrap(err, "mr: pointer analysis")
	}

	g.collectSites(result)
	g.propagateModRef(result.CallGraph)
	g.collectCallSites(result.CallGraph)
	g.buildPartitionInput()
	if err := g.partition(); err != nil {
		return err
	}
	g.updateAliasMRs()
	g.log.Debugf("mr: %d regions (%s) over %d objects", len(g.byID), g.strategy, len(g.objs.rows))
	return nil
}

// collectSites walks every function body, interning the objects behind each
// load and store address and accumulating the direct mod/ref set of each
// function. Sites whose address resolves to no objects contribute nothing.
func (g *Generator) collectSites(result *pointer.Result) {
	for _, fn := range g.fns {
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				switch instr := instr.(type) {
				case *gossa.UnOp:
					if instr.Op == token.MUL {
						g.addSite(fn, instr, instr.X, false, result)
					}
				case *gossa.Store:
					g.addSite(fn, instr, instr.Addr, true, result)
				}
			}
		}
	}
}

func (g *Generator) addSite(fn *gossa.Function, instr gossa.Instruction, addr gossa.Value, isStore bool, result *pointer.Result) {
	g.funSites[fn] = append(g.funSites[fn], memSite{instr: instr, addr: addr, store: isStore})
	pts, ok := g.sitePts[addr]
	if !ok {
		pts = new(intsets.Sparse)
		if global, ok := addr.(*gossa.Global); ok {
			// The analysis resolves direct global accesses on its object
			// graph and answers no points-to query for them; the object is
			// the global itself. Synthetic globals of the SSA lowering,
			// such as the package init guard, are not source memory and
			// contribute nothing.
			if global.Object() != nil {
				pts.Insert(g.objs.internValue(global))
			}
		} else {
			for _, l := range result.Queries[addr].PointsTo().Labels() {
				pts.Insert(g.objs.intern(l))
			}
		}
		g.sitePts[addr] = pts
	}
	if pts.IsEmpty() {
		return
	}
	if isStore {
		g.modOf(fn).UnionWith(pts)
	} else {
		g.refOf(fn).UnionWith(pts)
	}
}

// buildPartitionInput gathers, per function, every points-to set the region
// partition must cover: the sets behind the function's own loads and stores
// plus the mod/ref sets of its call sites.
func (g *Generator) buildPartitionInput() {
	for _, fn := range g.fns {
		seen := make(map[gossa.Value]bool)
		for _, site := range g.funSites[fn] {
			if seen[site.addr] {
				continue
			}
			seen[site.addr] = true
			if pts := g.sitePts[site.addr]; !pts.IsEmpty() {
				g.funPts[fn] = append(g.funPts[fn], pts)
			}
		}
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				call, ok := instr.(gossa.CallInstruction)
				if !ok {
					continue
				}
				if s := g.csRef[call]; s != nil && !s.IsEmpty() {
					g.funPts[fn] = append(g.funPts[fn], s)
				}
				if s := g.csMod[call]; s != nil && !s.IsEmpty() {
					g.funPts[fn] = append(g.funPts[fn], s)
				}
			}
		}
	}
}

// partition carves the collected points-to sets into regions. IntraDisjoint
// refines each function's partition independently, so that step fans out
// across functions; region interning stays sequential in function order to
// keep region ids deterministic.
func (g *Generator) partition() error {
	switch g.strategy {
	case Distinct:
		for _, fn := range g.fns {
			for _, pts := range g.funPts[fn] {
				for _, o := range pts.AppendTo(nil) {
					var single intsets.Sparse
					single.Insert(o)
					g.createRegion(&single)
				}
			}
		}

	case IntraDisjoint:
		parts := make([][]*intsets.Sparse, len(g.fns))
		group, _ := errgroup.WithContext(context.Background())
		for i := range g.fns {
			i := i
			group.Go(func() error {
				var inters []*intsets.Sparse
				for _, pts := range g.funPts[g.fns[i]] {
					inters = refine(inters, pts)
				}
				parts[i] = inters
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return errors.Wrap(err, "mr: partition")
		}
		for i, fn := range g.fns {
			for _, part := range parts[i] {
				g.createRegion(part)
			}
			g.funInter[fn] = parts[i]
		}

	case InterDisjoint:
		var inters []*intsets.Sparse
		for _, fn := range g.fns {
			for _, pts := range g.funPts[fn] {
				inters = refine(inters, pts)
			}
		}
		for _, part := range inters {
			g.createRegion(part)
		}
		g.inter = inters
	}
	return nil
}

// refine splits the pairwise disjoint parts so that cpts becomes expressible
// as a union of parts. Refinement only ever splits: a part overlapping cpts
// divides into the common objects and the rest, so every earlier input stays
// expressible too.
func refine(inters []*intsets.Sparse, cpts *intsets.Sparse) []*intsets.Sparse {
	if cpts.IsEmpty() {
		return inters
	}
	remaining := new(intsets.Sparse)
	remaining.Copy(cpts)
	out := make([]*intsets.Sparse, 0, len(inters)+1)
	for _, inter := range inters {
		var common intsets.Sparse
		common.Intersection(inter, cpts)
		if common.IsEmpty() {
			out = append(out, inter)
			continue
		}
		out = append(out, &common)
		var diff intsets.Sparse
		diff.Difference(inter, cpts)
		if !diff.IsEmpty() {
			out = append(out, &diff)
		}
		remaining.DifferenceWith(&common)
	}
	if !remaining.IsEmpty() {
		out = append(out, remaining)
	}
	return out
}

// createRegion interns a region over pts, minting an id on first sight.
// Region ids start at 1.
func (g *Generator) createRegion(pts *intsets.Sparse) *Region {
	key := pts.String()
	if r, ok := g.regions[key]; ok {
		return r
	}
	r := NewRegion(len(g.byID)+1, pts)
	g.regions[key] = r
	g.byID = append(g.byID, r)
	return r
}

// lookup returns the interned region for pts, which the partition phase must
// already have created.
func (g *Generator) lookup(pts *intsets.Sparse) *Region {
	r, ok := g.regions[pts.String()]
	if !ok {
		panic("mr: region looked up before creation: " + pts.String())
	}
	return r
}

// regionsFor decomposes cpts into the regions covering it under the current
// strategy, in ascending region id order.
func (g *Generator) regionsFor(fn *gossa.Function, cpts *intsets.Sparse) []*Region {
	if cpts == nil || cpts.IsEmpty() {
		return nil
	}
	var out []*Region
	switch g.strategy {
	case Distinct:
		for _, o := range cpts.AppendTo(nil) {
			var single intsets.Sparse
			single.Insert(o)
			out = append(out, g.lookup(&single))
		}
	case IntraDisjoint:
		for _, part := range g.funInter[fn] {
			if part.SubsetOf(cpts) {
				out = append(out, g.lookup(part))
			}
		}
	case InterDisjoint:
		for _, part := range g.inter {
			if part.SubsetOf(cpts) {
				out = append(out, g.lookup(part))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// updateAliasMRs resolves every load, store and call site to its final
// region set.
func (g *Generator) updateAliasMRs() {
	for _, fn := range g.fns {
		for _, site := range g.funSites[fn] {
			mrs := g.regionsFor(fn, g.sitePts[site.addr])
			if len(mrs) == 0 {
				continue
			}
			if site.store {
				g.storeMRs[site.instr] = mrs
			} else {
				g.loadMRs[site.instr] = mrs
			}
		}
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				call, ok := instr.(gossa.CallInstruction)
				if !ok {
					continue
				}
				if mrs := g.regionsFor(fn, g.csRef[call]); len(mrs) > 0 {
					g.callRefMRs[call] = mrs
				}
				if mrs := g.regionsFor(fn, g.csMod[call]); len(mrs) > 0 {
					g.callModMRs[call] = mrs
				}
			}
		}
	}
}

// InstrRef returns the regions the instruction reads. Only loads read
// regions directly; for anything else the answer is nil.
func (g *Generator) InstrRef(instr gossa.Instruction) []*Region { return g.loadMRs[instr] }

// InstrMod returns the regions the instruction writes. Only stores write
// regions directly; for anything else the answer is nil.
func (g *Generator) InstrMod(instr gossa.Instruction) []*Region { return g.storeMRs[instr] }

// CallRef returns the regions the call site may read through its callees.
func (g *Generator) CallRef(call gossa.CallInstruction) []*Region { return g.callRefMRs[call] }

// CallMod returns the regions the call site may modify through its callees.
func (g *Generator) CallMod(call gossa.CallInstruction) []*Region { return g.callModMRs[call] }

// Regions returns all generated regions in ascending id order.
func (g *Generator) Regions() []*Region {
	return append([]*Region(nil), g.byID...)
}

// NumRegions returns the number of generated regions.
func (g *Generator) NumRegions() int { return len(g.byID) }

// NumObjects returns the number of distinct abstract objects seen.
func (g *Generator) NumObjects() int { return len(g.objs.rows) }

// ObjectString renders the object's allocation site as resolved by the
// pointer analysis, or as the global itself for objects only accessed
// directly.
func (g *Generator) ObjectString(obj int) string { return g.objs.str(obj) }

// FunMod returns the ids of the objects fn may modify, directly or through
// its callees, in ascending order.
func (g *Generator) FunMod(fn *gossa.Function) []int {
	if s := g.funMod[fn]; s != nil {
		return s.AppendTo(nil)
	}
	return nil
}

// FunRef returns the ids of the objects fn may read, directly or through
// its callees, in ascending order.
func (g *Generator) FunRef(fn *gossa.Function) []int {
	if s := g.funRef[fn]; s != nil {
		return s.AppendTo(nil)
	}
	return nil
}

// Strategy returns the partitioning strategy in use.
func (g *Generator) Strategy() Strategy { return g.strategy }

// Elapsed returns the wall clock time of the last Generate run.
func (g *Generator) Elapsed() time.Duration { return g.elapsed }
