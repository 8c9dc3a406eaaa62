// Package scc implements Tarjan's strongly-connected-component
// algorithm over any graph that can answer "what are the direct
// out-edges of this node", producing a representative map and a
// reverse-topological stack of representatives (spec.md §4.2).
//
// The projection a caller wants SCC to traverse (all direct edges, or
// only copy edges) is chosen by the Graph value handed to NewDetector
// (for example cg.SCCView's Mode field), never read from global
// state — the redesign spec.md §9 calls for in place of the original's
// "dynamic dispatch... based on a global mode flag".
package scc

import (
	"github.com/emirpasic/gods/stack/arraystack"

	"github.com/picatz/goa/internal/ids"
)

// Graph is the minimal capability SCC needs: direct children of a node
// under some caller-chosen edge projection.
type Graph interface {
	// DirectChildren returns the ids reachable by a single projected
	// direct edge from n.
	DirectChildren(n ids.NodeID) []ids.NodeID
	// NodeIDs returns every node the detector should consider as a root.
	NodeIDs() []ids.NodeID
}

// info is the per-node SCC auxiliary state, matching SVF's GNodeSCCInfo.
type info struct {
	visited bool
	inSCC   bool
	rep     ids.NodeID
	sub     *ids.NodeSet
}

// Detector runs Tarjan's algorithm and holds the resulting per-node
// state. Detector auxiliary state is cleared before each Find call; it
// is not safe to read across a Find invocation that had no prior clear
// (spec.md's SccStateStale).
type Detector struct {
	g       Graph
	info    map[ids.NodeID]*info
	timer   map[ids.NodeID]uint64
	clock   uint64
	stack   []ids.NodeID // the internal DFS stack (SVF's _SS)
	topo    []ids.NodeID // representatives in reverse-topological order (SVF's _T)
	repSet  *ids.NodeSet
	ranOnce bool
}

// NewDetector constructs a Detector bound to g. Call Find to run it.
func NewDetector(g Graph) *Detector {
	return &Detector{g: g}
}

// clear resets all auxiliary state, required before each Find.
func (d *Detector) clear() {
	d.info = make(map[ids.NodeID]*info)
	d.timer = make(map[ids.NodeID]uint64)
	d.clock = 0
	d.stack = d.stack[:0]
	d.topo = nil
	d.repSet = ids.NewNodeSet()
	d.ranOnce = false
}

func (d *Detector) node(n ids.NodeID) *info {
	inf, ok := d.info[n]
	if !ok {
		inf = &info{rep: ids.MaxNodeID, sub: ids.NewNodeSet()}
		d.info[n] = inf
	}
	return inf
}

// Find runs Tarjan's algorithm over every node returned by g.NodeIDs,
// clearing any previous state first.
func (d *Detector) Find() {
	d.clear()
	for _, n := range d.g.NodeIDs() {
		if !d.node(n).visited {
			d.visit(n)
		}
	}
	d.ranOnce = true
}

// FindCandidates restricts the root scan to an explicit candidate set,
// used for incremental re-detection after new edges appear. It still
// clears prior state first: SVF's incremental variant reuses stored
// node→rep state across calls, but this Go rendering keeps Find/clear
// coupled 1:1 so SccStateStale can never arise from a forgotten clear.
func (d *Detector) FindCandidates(candidates []ids.NodeID) {
	d.clear()
	for _, n := range candidates {
		if !d.node(n).visited {
			d.visit(n)
		}
	}
	d.ranOnce = true
}

// visitFrame is one level of the simulated call stack visit keeps in
// callStack: the node being visited, its (already-fetched) children,
// and how many of them have been dispatched so far.
type visitFrame struct {
	v        ids.NodeID
	children []ids.NodeID
	idx      int
}

// visit runs Tarjan's DFS from v using an explicit stack
// (github.com/emirpasic/gods's arraystack) rather than Go call
// recursion, since a whole-program IR's call graph can chain deep
// enough (long straight-line call chains, generated code) to risk
// exhausting the goroutine stack if visit recursed one Go frame per
// graph node.
func (d *Detector) visit(start ids.NodeID) {
	callStack := arraystack.New()

	enter := func(n ids.NodeID) {
		d.clock++
		d.timer[n] = d.clock
		d.setRep(n, n)
		d.node(n).visited = true
		d.stack = append(d.stack, n)
		callStack.Push(&visitFrame{v: n, children: d.g.DirectChildren(n)})
	}
	enter(start)

	for !callStack.Empty() {
		top, _ := callStack.Peek()
		f := top.(*visitFrame)

		if f.idx < len(f.children) {
			w := f.children[f.idx]
			f.idx++
			if !d.node(w).visited {
				enter(w)
				continue
			}
			if !d.node(w).inSCC {
				if d.timer[d.repNode(w)] < d.timer[d.repNode(f.v)] {
					d.setRep(f.v, d.repNode(w))
				}
			}
			continue
		}

		// every child of f.v dispatched: finish f.v exactly as the
		// recursive version did after its children loop returned.
		callStack.Pop()
		v := f.v
		if d.repNode(v) == v {
			// v is a representative: pop and merge every node above v
			// whose timestamp exceeds D[v].
			for len(d.stack) > 0 {
				top := d.stack[len(d.stack)-1]
				if d.timer[top] <= d.timer[v] {
					break
				}
				d.stack = d.stack[:len(d.stack)-1]
				d.setRep(top, v)
				d.node(top).inSCC = true
			}
			d.node(v).inSCC = true
			d.stack = d.stack[:len(d.stack)-1] // pop v itself
			d.topo = append(d.topo, v)
			d.repSet.Add(v)
		}

		// propagate v's finished rep to its parent frame, mirroring the
		// recursive version's post-d.visit(w) comparison.
		if !callStack.Empty() {
			parentTop, _ := callStack.Peek()
			pf := parentTop.(*visitFrame)
			if d.timer[d.repNode(v)] < d.timer[d.repNode(pf.v)] {
				d.setRep(pf.v, d.repNode(v))
			}
		}
	}
}

func (d *Detector) repNode(n ids.NodeID) ids.NodeID {
	return d.node(n).rep
}

func (d *Detector) setRep(n, r ids.NodeID) {
	d.node(n).rep = r
	d.node(r).sub.Add(n)
	if n != r {
		d.node(n).sub = ids.NewNodeSet()
	}
}

// Rep returns the representative of n's SCC. Panics (SccStateStale) if
// Find has never run.
func (d *Detector) Rep(n ids.NodeID) ids.NodeID {
	d.requireRan()
	inf, ok := d.info[n]
	if !ok || inf.rep == ids.MaxNodeID {
		return n
	}
	return inf.rep
}

// SubNodes returns every node merged into the SCC represented by rep.
func (d *Detector) SubNodes(rep ids.NodeID) *ids.NodeSet {
	d.requireRan()
	inf, ok := d.info[rep]
	if !ok {
		s := ids.NewNodeSet()
		s.Add(rep)
		return s
	}
	return inf.sub
}

// IsInCycle reports whether n's representative SCC contains more than
// one node, or a self-loop, per spec.md §4.2.
func (d *Detector) IsInCycle(n ids.NodeID) bool {
	d.requireRan()
	rep := d.Rep(n)
	if d.SubNodes(rep).Len() > 1 {
		return true
	}
	for _, w := range d.g.DirectChildren(rep) {
		if w == rep {
			return true
		}
	}
	return false
}

// RepStack returns the representatives in stack-pop order: d.topo
// records each SCC root in DFS-finish order (a sink-most SCC finishes,
// and is pushed, first); RepStack reports the order a LIFO stack would
// yield them back in, i.e. the reverse of finish order. For a chain
// 1→2→3 this is [1,2,3]; for spec.md's S3 fixture ({1→2,2→3,3→4,3→5,
// 4→2}) this is exactly the documented [1,2,5].
func (d *Detector) RepStack() []ids.NodeID {
	d.requireRan()
	out := make([]ids.NodeID, len(d.topo))
	for i, n := range d.topo {
		out[len(d.topo)-1-i] = n
	}
	return out
}

// Representatives returns the set of representative node ids.
func (d *Detector) Representatives() *ids.NodeSet {
	d.requireRan()
	return d.repSet.Clone()
}

func (d *Detector) requireRan() {
	if !d.ranOnce {
		panic("scc: Find (or FindCandidates) must run before querying results — stale state (SccStateStale)")
	}
}
