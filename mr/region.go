// Package mr builds the memory regions that memory SSA versions. Regions are
// sets of abstract objects discovered by a whole-program pointer analysis,
// carved up by one of three partitioning strategies, with mod/ref summaries
// resolving which regions each instruction and call site reads and writes.
package mr

import (
	"fmt"

	"golang.org/x/tools/container/intsets"
	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
)

// Region is a set of abstract memory objects versioned as one unit by memory
// SSA. Regions are immutable once created. A Generator interns them so that
// two sites touching equal object sets share one region.
type Region struct {
	id   int
	objs intsets.Sparse
}

// NewRegion returns a region with the given id over a copy of objs.
// The Generator interns the regions it creates; callers materializing
// regions directly, such as tests or alternative generators, own that
// concern themselves.
func NewRegion(id int, objs *intsets.Sparse) *Region {
	r := &Region{id: id}
	if objs != nil {
		r.objs.Copy(objs)
	}
	return r
}

// ID returns the region identifier, unique within its generator.
func (r *Region) ID() int { return r.id }

// Has reports whether the region contains the object obj.
func (r *Region) Has(obj int) bool { return r.objs.Has(obj) }

// NumObjects returns the number of objects in the region.
func (r *Region) NumObjects() int { return r.objs.Len() }

// Objects returns the region's objects in ascending order.
func (r *Region) Objects() []int { return r.objs.AppendTo(nil) }

// String returns the region's dump name, e.g. MR_2.
func (r *Region) String() string { return fmt.Sprintf("MR_%d", r.id) }

// objTable interns abstract objects to dense ids. Objects are keyed by
// allocation site and access path rather than label identity, because
// separate pointer analysis queries materialize separate label values for
// one object, and a global accessed directly materializes no label at all.
type objTable struct {
	ids  map[objKey]int
	rows []objRow
}

type objKey struct {
	val  ssa.Value
	path string
}

// objRow remembers how to render an interned object. label is nil for
// objects only ever reached directly through their global.
type objRow struct {
	key   objKey
	label *pointer.Label
}

func newObjTable() *objTable {
	return &objTable{ids: make(map[objKey]int)}
}

func (t *objTable) intern(l *pointer.Label) int {
	return t.get(objKey{val: l.Value(), path: l.Path()}, l)
}

// internValue interns the object behind val itself, bypassing the pointer
// analysis. The key matches what a label for the same object would intern
// under, so both paths agree on the id.
func (t *objTable) internValue(val ssa.Value) int {
	return t.get(objKey{val: val}, nil)
}

func (t *objTable) get(k objKey, l *pointer.Label) int {
	if id, ok := t.ids[k]; ok {
		return id
	}
	id := len(t.rows)
	t.ids[k] = id
	t.rows = append(t.rows, objRow{key: k, label: l})
	return id
}

func (t *objTable) str(obj int) string {
	r := t.rows[obj]
	if r.label != nil {
		return r.label.String()
	}
	return r.key.val.String()
}
