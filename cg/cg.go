// Package cg implements the Constraint Graph: the Andersen-style
// projection of the PAG used to drive SCC-based cycle collapse, where
// merged pointers share one "representative" node (spec.md §3.6, §4.3).
package cg

import (
	"github.com/picatz/goa/graph"
	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/pag"
	"github.com/picatz/goa/scc"
)

// EdgeKind is the subset of pag.EdgeKind the Constraint Graph models:
// Addr (node-defining), Copy/NormalGep/VariantGep/Call/Ret (the
// "direct" propagation edges SCC collapses), and Load/Store (the
// indirect memory edges that survive collapse by retargeting).
type EdgeKind = pag.EdgeKind

// EdgeProjectionMode selects which direct edges scc.Detector treats as
// DirectChildren, chosen once per Find() call (spec.md §4.2).
type EdgeProjectionMode uint8

const (
	AllDirect EdgeProjectionMode = iota
	CopyOnly
)

// Edge is a Constraint Graph edge, carrying whether its underlying
// PAG Gep statement has a known non-zero offset — the fact cycle
// collapse needs to decide PWC flagging without reaching back into PAG
// node payloads mid-collapse.
type Edge struct {
	graph.EdgeHeader
	src, dst      ids.NodeID
	kind          EdgeKind
	label         uint64
	nonZeroOffset bool
}

func (e *Edge) Src() ids.NodeID  { return e.src }
func (e *Edge) Dst() ids.NodeID  { return e.dst }
func (e *Edge) Kind() EdgeKind   { return e.kind }
func (e *Edge) Label() uint64    { return e.label }

func newEdge(src, dst ids.NodeID, k EdgeKind, label uint64, nonZeroOffset bool) *Edge {
	return &Edge{src: src, dst: dst, kind: k, label: label, nonZeroOffset: nonZeroOffset}
}

// directKinds are the edges SCC collapses (spec.md §4.3); loadStoreKinds
// and addrKind are retargeted/removed under the separate rules below.
var directKinds = []EdgeKind{pag.Copy, pag.NormalGep, pag.VariantGep, pag.Call, pag.Ret}
var copyOnlyKinds = []EdgeKind{pag.Copy}
var loadStoreKinds = []EdgeKind{pag.Load, pag.Store}

// Graph is the Constraint Graph. Its node ids are identical to the PAG
// node ids they represent (spec.md §3.6); rep tracks the union-find
// style "scc_rep" map used by every edge-endpoint query after collapse.
type Graph struct {
	g   *graph.Graph[struct{}]
	rep map[ids.NodeID]ids.NodeID

	subNodes map[ids.NodeID]*ids.NodeSet // rep -> every original node merged into it (incl. rep)
	pwc      map[ids.NodeID]bool
}

// BuildFromPAG constructs a fresh Constraint Graph from every
// Addr/Copy/Load/Store/Gep/Call/Ret edge in p. Cmp/BinaryOp/UnaryOp/
// ThreadFork/ThreadJoin edges have no constraint-propagation meaning
// and are not carried over.
func BuildFromPAG(p *pag.PAG) *Graph {
	c := &Graph{
		g:        graph.New[struct{}](),
		rep:      make(map[ids.NodeID]ids.NodeID),
		subNodes: make(map[ids.NodeID]*ids.NodeSet),
		pwc:      make(map[ids.NodeID]bool),
	}

	pg := p.Graph()
	for _, id := range pg.NodeIDs() {
		c.g.AddNode(id, struct{}{})
	}

	kinds := append(append([]EdgeKind{pag.Addr}, directKinds...), loadStoreKinds...)
	for _, id := range pg.NodeIDs() {
		for _, k := range kinds {
			for _, e := range pg.OutEdges(id, k) {
				nz := nonZeroOffset(p, e)
				c.g.AddEdge(newEdge(e.Src(), e.Dst(), k, e.Label(), nz))
			}
		}
	}
	return c
}

func nonZeroOffset(p *pag.PAG, e graph.Edge) bool {
	switch e.Kind() {
	case pag.VariantGep:
		return true // unknown offset: treated conservatively as non-zero
	case pag.NormalGep:
		n, ok := p.Node(e.Dst())
		if !ok {
			return false
		}
		switch gv := n.(type) {
		case *pag.GepValueNode:
			return !gv.Location.IsZero()
		case *pag.GepObjectNode:
			return !gv.Location.IsZero()
		}
		return false
	default:
		return false
	}
}

// Rep implements scc_rep(id): the representative of id after any
// collapse, or id itself if it has never been merged. Path-compresses
// on the way out, matching "lookups are O(1) expected".
func (c *Graph) Rep(id ids.NodeID) ids.NodeID {
	r, ok := c.rep[id]
	if !ok {
		return id
	}
	root := c.Rep(r)
	if root != r {
		c.rep[id] = root
	}
	return root
}

// IsPWC reports whether rep (itself a representative) has been flagged
// as a positive-weight cycle (invariant C2).
func (c *Graph) IsPWC(rep ids.NodeID) bool { return c.pwc[c.Rep(rep)] }

// SubNodes returns every original node merged into rep, including rep
// itself.
func (c *Graph) SubNodes(rep ids.NodeID) *ids.NodeSet {
	r := c.Rep(rep)
	if s, ok := c.subNodes[r]; ok {
		return s.Clone()
	}
	out := ids.NewNodeSet()
	out.Add(r)
	return out
}

// NodeIDs returns every live (non-merged-away) node id, satisfying
// scc.Graph.
func (c *Graph) NodeIDs() []ids.NodeID { return c.g.NodeIDs() }

// DirectChildren projects c's direct out-edges under mode, satisfying
// scc.Graph for a given SCC run (spec.md §4.2: "the caller selects
// between all direct edges and a copy-only projection before each run").
func (c *Graph) DirectChildren(n ids.NodeID, mode EdgeProjectionMode) []ids.NodeID {
	kinds := directKinds
	if mode == CopyOnly {
		kinds = copyOnlyKinds
	}
	var out []ids.NodeID
	for _, k := range kinds {
		for _, e := range c.OutEdges(n, k) {
			out = append(out, e.Dst())
		}
	}
	return out
}

// SCCView adapts Graph to scc.Graph for a fixed projection mode, since
// scc.Graph.DirectChildren takes no mode parameter.
type SCCView struct {
	C    *Graph
	Mode EdgeProjectionMode
}

func (v *SCCView) NodeIDs() []ids.NodeID                  { return v.C.NodeIDs() }
func (v *SCCView) DirectChildren(n ids.NodeID) []ids.NodeID { return v.C.DirectChildren(n, v.Mode) }

var _ scc.Graph = (*SCCView)(nil)

// OutEdges/InEdges return c's edges of kind k incident to n.
func (c *Graph) OutEdges(n ids.NodeID, k EdgeKind) []*Edge {
	return asEdges(c.g.OutEdges(n, k))
}
func (c *Graph) InEdges(n ids.NodeID, k EdgeKind) []*Edge {
	return asEdges(c.g.InEdges(n, k))
}

func asEdges(in []graph.Edge) []*Edge {
	out := make([]*Edge, 0, len(in))
	for _, e := range in {
		out = append(out, e.(*Edge))
	}
	return out
}

func (c *Graph) retargetDst(e *Edge, newDst ids.NodeID) {
	c.g.RemoveEdge(e)
	c.g.AddEdge(newEdge(e.src, newDst, e.kind, e.label, e.nonZeroOffset))
}

func (c *Graph) retargetSrc(e *Edge, newSrc ids.NodeID) {
	c.g.RemoveEdge(e)
	c.g.AddEdge(newEdge(newSrc, e.dst, e.kind, e.label, e.nonZeroOffset))
}

// Collapse merges every node in sub other than rep into rep, applying
// the five-step edge-edit procedure of spec.md §4.3 to both incoming
// and outgoing edges (the outgoing side is the mirror image). rep must
// be a member of sub. Intended to be called once per representative
// scc.Detector.Find() reports with a non-trivial SCC (IsInCycle).
func (c *Graph) Collapse(rep ids.NodeID, sub *ids.NodeSet) {
	members := sub.Clone()
	members.ForEach(func(n ids.NodeID) bool {
		if n == rep {
			return true
		}
		c.mergeIncoming(n, rep, members)
		c.mergeOutgoing(n, rep, members)
		c.g.RemoveNode(n)
		c.rep[n] = rep
		return true
	})

	if _, ok := c.subNodes[rep]; !ok {
		c.subNodes[rep] = ids.NewNodeSet()
	}
	c.subNodes[rep].UnionWith(members)
	c.subNodes[rep].Add(rep)

	// A self-loop NormalGep/VariantGep surviving directly on rep (never
	// touched by the per-member merge below, since src==dst==rep) still
	// witnesses a non-zero-offset cycle.
	for _, k := range []EdgeKind{pag.NormalGep, pag.VariantGep} {
		for _, e := range c.OutEdges(rep, k) {
			if e.dst == rep && e.nonZeroOffset {
				c.pwc[rep] = true
			}
		}
	}
}

func (c *Graph) mergeIncoming(n, rep ids.NodeID, members *ids.NodeSet) {
	for _, k := range append(append([]EdgeKind{pag.Addr}, directKinds...), loadStoreKinds...) {
		for _, e := range c.InEdges(n, k) {
			inside := members.Has(e.src)
			switch k {
			case pag.Load, pag.Store:
				c.retargetDst(e, rep) // never deleted, inside or outside
			case pag.Addr:
				if inside {
					c.g.RemoveEdge(e)
				} else {
					c.retargetDst(e, rep)
				}
			case pag.Copy:
				if inside {
					c.g.RemoveEdge(e)
				} else {
					c.retargetDst(e, rep)
				}
			case pag.NormalGep, pag.VariantGep:
				if inside {
					if e.nonZeroOffset {
						c.pwc[rep] = true
					}
					c.g.RemoveEdge(e)
				} else {
					c.retargetDst(e, rep)
				}
			default: // Call, Ret: direct, no special inside deletion rule beyond Copy-like retarget
				if inside {
					c.g.RemoveEdge(e)
				} else {
					c.retargetDst(e, rep)
				}
			}
		}
	}
}

func (c *Graph) mergeOutgoing(n, rep ids.NodeID, members *ids.NodeSet) {
	for _, k := range append(append([]EdgeKind{pag.Addr}, directKinds...), loadStoreKinds...) {
		for _, e := range c.OutEdges(n, k) {
			inside := members.Has(e.dst)
			switch k {
			case pag.Load, pag.Store:
				c.retargetSrc(e, rep)
			case pag.Addr:
				if inside {
					c.g.RemoveEdge(e)
				} else {
					c.retargetSrc(e, rep)
				}
			case pag.Copy:
				if inside {
					c.g.RemoveEdge(e)
				} else {
					c.retargetSrc(e, rep)
				}
			case pag.NormalGep, pag.VariantGep:
				if inside {
					if e.nonZeroOffset {
						c.pwc[rep] = true
					}
					c.g.RemoveEdge(e)
				} else {
					c.retargetSrc(e, rep)
				}
			default:
				if inside {
					c.g.RemoveEdge(e)
				} else {
					c.retargetSrc(e, rep)
				}
			}
		}
	}
}

// NumNodes and NumEdges expose the live graph's size, mainly for tests
// and diagnostics.
func (c *Graph) NumNodes() int { return c.g.NumNodes() }
func (c *Graph) NumEdges() int { return c.g.NumEdges() }
