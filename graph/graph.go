// Package graph implements the GenericGraph substrate every other graph
// in the analysis core (ICFG, PAG, CG, PTACallGraph, VFG/SVFG) is built
// on top of: unique node/edge IDs, adjacency maintained on both
// endpoints, and a parametric node/edge payload.
//
// The graph exclusively owns its nodes and edges; callers hold only
// NodeID/EdgeID handles, never pointers into the store, so that the
// graph may always move, compact, or rebuild its internal maps.
package graph

import (
	"fmt"
	"sort"

	"github.com/picatz/goa/internal/ids"
)

// Kind is a small integer discriminating edge kinds within a graph.
// Each concrete graph (pag, icfg, cg, vfg) defines its own Kind values;
// graph.Graph treats Kind as opaque beyond ordering and equality.
type Kind uint8

// Edge is the minimal shape graph.Graph needs from an edge payload: its
// endpoints, its kind, and (for statement- or call-labelled edges) an
// auxiliary label. Kind and label are separate accessors; the label is
// a full uint64 and is not packed together with the kind.
type Edge interface {
	Src() ids.NodeID
	Dst() ids.NodeID
	ID() ids.EdgeID
	Kind() Kind
	Label() uint64
	setID(ids.EdgeID)
}

// EdgeHeader is embedded by concrete edge types to satisfy the ID/setID
// half of the Edge interface.
type EdgeHeader struct {
	id ids.EdgeID
}

func (h *EdgeHeader) ID() ids.EdgeID    { return h.id }
func (h *EdgeHeader) setID(e ids.EdgeID) { h.id = e }

// key is the total order spec.md's design notes require: "(kind_flag,
// src_id, dst_id)" so that duplicate detection and deterministic
// iteration both succeed.
type key struct {
	kind  Kind
	src   ids.NodeID
	dst   ids.NodeID
	label uint64
}

func keyOf(e Edge) key {
	return key{kind: e.Kind(), src: e.Src(), dst: e.Dst(), label: e.Label()}
}

func less(a, b key) bool {
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	if a.src != b.src {
		return a.src < b.src
	}
	if a.dst != b.dst {
		return a.dst < b.dst
	}
	return a.label < b.label
}

// nodeAdj tracks the edges incident to one node, bucketed by kind for
// O(1) expected lookup of e.g. "all Load edges out of n".
type nodeAdj struct {
	out map[Kind][]ids.EdgeID
	in  map[Kind][]ids.EdgeID
}

// Graph is a typed graph skeleton parametric over a node payload type
// N and an Edge implementation. It is the Go rendering of SVF's
// GenericGraph<NodeTy, EdgeTy>.
type Graph[N any] struct {
	nodeAlloc *ids.Allocator
	edgeAlloc *ids.Allocator

	nodes    map[ids.NodeID]N
	edgeByID map[ids.EdgeID]Edge
	// index provides the total order over (kind, src, dst, label) for
	// deterministic iteration and duplicate-edge detection (E1).
	index map[key]ids.EdgeID
	adj   map[ids.NodeID]*nodeAdj
}

// New returns an empty Graph.
func New[N any]() *Graph[N] {
	return &Graph[N]{
		nodeAlloc: ids.NewNodeAllocator(),
		edgeAlloc: ids.NewEdgeAllocator(),
		nodes:     make(map[ids.NodeID]N),
		edgeByID:  make(map[ids.EdgeID]Edge),
		index:     make(map[key]ids.EdgeID),
		adj:       make(map[ids.NodeID]*nodeAdj),
	}
}

// NextNodeID allocates (but does not register) the next NodeID.
func (g *Graph[N]) NextNodeID() ids.NodeID {
	return ids.NodeID(g.nodeAlloc.Next())
}

// AddNode registers payload under id. id must not already be registered.
func (g *Graph[N]) AddNode(id ids.NodeID, payload N) {
	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("graph: duplicate node registration for id %d", id))
	}
	g.nodes[id] = payload
	g.adj[id] = &nodeAdj{out: make(map[Kind][]ids.EdgeID), in: make(map[Kind][]ids.EdgeID)}
}

// Node returns the payload for id and whether it was found.
func (g *Graph[N]) Node(id ids.NodeID) (N, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether id is registered.
func (g *Graph[N]) HasNode(id ids.NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// NumNodes returns the number of registered nodes.
func (g *Graph[N]) NumNodes() int { return len(g.nodes) }

// NodeIDs returns every registered NodeID in ascending order.
func (g *Graph[N]) NodeIDs() []ids.NodeID {
	out := make([]ids.NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FindEdge returns the existing edge with the given (src, dst, kind)
// identity and whether it was found, implementing the canonicalisation
// half of E1 ("Addr/Copy/Load/Store/Gep edges between a fixed (src,dst)
// pair are unique up to edge kind").
func (g *Graph[N]) FindEdge(src, dst ids.NodeID, k Kind) (Edge, bool) {
	return g.findEdgeLabel(src, dst, k, 0)
}

// FindEdgeLabel is FindEdge additionally keyed by the edge's auxiliary
// label, for Call/Ret/Store edges that may legitimately duplicate
// across distinct labels.
func (g *Graph[N]) FindEdgeLabel(src, dst ids.NodeID, k Kind, label uint64) (Edge, bool) {
	return g.findEdgeLabel(src, dst, k, label)
}

func (g *Graph[N]) findEdgeLabel(src, dst ids.NodeID, k Kind, label uint64) (Edge, bool) {
	id, ok := g.index[key{kind: k, src: src, dst: dst, label: label}]
	if !ok {
		return nil, false
	}
	return g.edgeByID[id], true
}

// AddEdge registers e, assigning it the next EdgeID, unless an edge
// with the same (kind, src, dst, label) identity already exists, in
// which case the existing edge is returned unchanged (E1, and the
// idempotence property in spec.md §8: "re-adding an edge... yields the
// pre-existing edge... and does not grow the edge count").
func (g *Graph[N]) AddEdge(e Edge) Edge {
	k := keyOf(e)
	if id, ok := g.index[k]; ok {
		return g.edgeByID[id]
	}
	if !g.HasNode(e.Src()) {
		panic(fmt.Sprintf("graph: add edge with unregistered src %d", e.Src()))
	}
	if !g.HasNode(e.Dst()) {
		panic(fmt.Sprintf("graph: add edge with unregistered dst %d", e.Dst()))
	}

	id := ids.EdgeID(g.edgeAlloc.Next())
	e.setID(id)
	g.edgeByID[id] = e
	g.index[k] = id

	g.adj[e.Src()].out[e.Kind()] = append(g.adj[e.Src()].out[e.Kind()], id)
	g.adj[e.Dst()].in[e.Kind()] = append(g.adj[e.Dst()].in[e.Kind()], id)

	return e
}

// RemoveEdge deletes e from the graph.
func (g *Graph[N]) RemoveEdge(e Edge) {
	id := e.ID()
	if _, ok := g.edgeByID[id]; !ok {
		return
	}
	delete(g.edgeByID, id)
	delete(g.index, keyOf(e))

	removeFrom(g.adj[e.Src()].out, e.Kind(), id)
	removeFrom(g.adj[e.Dst()].in, e.Kind(), id)
}

func removeFrom(m map[Kind][]ids.EdgeID, k Kind, id ids.EdgeID) {
	list := m[k]
	for i, x := range list {
		if x == id {
			m[k] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// RemoveNode deletes an isolated node. It panics if the node still has
// incident edges: the caller is responsible for removing or retargeting
// them first.
func (g *Graph[N]) RemoveNode(id ids.NodeID) {
	a, ok := g.adj[id]
	if !ok {
		panic(fmt.Sprintf("graph: remove unknown node %d", id))
	}
	for _, list := range a.out {
		if len(list) > 0 {
			panic(fmt.Sprintf("graph: remove node %d with remaining outgoing edges", id))
		}
	}
	for _, list := range a.in {
		if len(list) > 0 {
			panic(fmt.Sprintf("graph: remove node %d with remaining incoming edges", id))
		}
	}
	delete(g.nodes, id)
	delete(g.adj, id)
}

// OutEdges returns the outgoing edges of n with the given kind, in
// deterministic (src,dst,label) order.
func (g *Graph[N]) OutEdges(n ids.NodeID, k Kind) []Edge {
	return g.edgesFor(g.adj[n].out[k])
}

// InEdges returns the incoming edges of n with the given kind.
func (g *Graph[N]) InEdges(n ids.NodeID, k Kind) []Edge {
	return g.edgesFor(g.adj[n].in[k])
}

// AllOutEdges returns every outgoing edge of n regardless of kind.
func (g *Graph[N]) AllOutEdges(n ids.NodeID) []Edge {
	a, ok := g.adj[n]
	if !ok {
		return nil
	}
	var list []ids.EdgeID
	for _, es := range a.out {
		list = append(list, es...)
	}
	return g.edgesFor(list)
}

// AllInEdges returns every incoming edge of n regardless of kind.
func (g *Graph[N]) AllInEdges(n ids.NodeID) []Edge {
	a, ok := g.adj[n]
	if !ok {
		return nil
	}
	var list []ids.EdgeID
	for _, es := range a.in {
		list = append(list, es...)
	}
	return g.edgesFor(list)
}

func (g *Graph[N]) edgesFor(edgeIDs []ids.EdgeID) []Edge {
	out := make([]Edge, 0, len(edgeIDs))
	for _, id := range edgeIDs {
		out = append(out, g.edgeByID[id])
	}
	sort.Slice(out, func(i, j int) bool { return less(keyOf(out[i]), keyOf(out[j])) })
	return out
}

// NumEdges returns the number of registered edges.
func (g *Graph[N]) NumEdges() int { return len(g.edgeByID) }

// RetargetEdgeDst removes e and re-adds an edge with the same kind,
// label and src but a new dst, preserving identity only when the
// (kind, src, label) triple is equivalent to a still-absent key —
// matching spec.md §4.1's "retargeting replaces endpoints in-place
// (equivalent to remove+add but preserves identity only when the
// kind/offset triple is equivalent)". The caller supplies a
// constructor so this package never needs to know concrete edge types.
func (g *Graph[N]) RetargetEdgeDst(e Edge, newDst ids.NodeID, rebuild func(src, dst ids.NodeID, k Kind, label uint64) Edge) Edge {
	g.RemoveEdge(e)
	return g.AddEdge(rebuild(e.Src(), newDst, e.Kind(), e.Label()))
}

// RetargetEdgeSrc is the source-side analog of RetargetEdgeDst.
func (g *Graph[N]) RetargetEdgeSrc(e Edge, newSrc ids.NodeID, rebuild func(src, dst ids.NodeID, k Kind, label uint64) Edge) Edge {
	g.RemoveEdge(e)
	return g.AddEdge(rebuild(newSrc, e.Dst(), e.Kind(), e.Label()))
}
