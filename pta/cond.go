package pta

import (
	"sync"

	"github.com/picatz/goa/internal/ids"
)

// CondEntry is one fact in a conditional points-to set: n may point to
// Node, but only along executions where Cond holds. Cond is left
// generic because what a "condition" is (a calling context, a branch
// predicate, a combination) is a client decision spec.md §4.8
// deliberately leaves open.
type CondEntry[Cond comparable] struct {
	Cond Cond
	Node ids.NodeID
}

// CondPta is the conditional points-to representation of spec.md §4.8:
// PointsTo is an ordered set of (cond, node_id) pairs rather than a
// flat bitvector, letting a context- or path-sensitive client keep
// facts that only hold under specific conditions distinct from facts
// that hold unconditionally.
//
// CondPta does not interpret Cond itself — it asks the client-supplied
// Compatible function whenever it needs to know whether two conditions
// could describe the same execution, and leaves everything else (what
// a condition means, how it is constructed) to the caller. This
// mirrors BvDataPta's relationship to ClassHierarchyResolver: the core
// owns the fixpoint bookkeeping, the client owns domain knowledge it
// has no way to derive on its own.
type CondPta[Cond comparable] struct {
	mu  sync.RWMutex
	pts map[ids.NodeID][]CondEntry[Cond]

	// Compatible reports whether c1 and c2 could hold of the same
	// execution. singleton is true when the two entries being compared
	// are each other's only candidate match for their node — callers
	// use this to allow a looser compatibility test in the common case
	// where there is nothing else the fact could be confused with.
	Compatible func(c1, c2 Cond, singleton bool) bool

	blackHole ids.NodeID
}

// NewCondPta returns an empty CondPta. blackHole is the PAG black-hole
// object id (see pag.PAG.BlackHoleObject), used by Alias to treat any
// points-to set reaching it as conservatively MayAlias-only.
func NewCondPta[Cond comparable](blackHole ids.NodeID, compatible func(c1, c2 Cond, singleton bool) bool) *CondPta[Cond] {
	return &CondPta[Cond]{
		pts:        make(map[ids.NodeID][]CondEntry[Cond]),
		Compatible: compatible,
		blackHole:  blackHole,
	}
}

// AddPts records that n may point to o under cond, returning whether
// this grew n's points-to set. Like BvDataPta's table, this is
// grow-only: an existing (cond, o) pair is never removed by AddPts.
func (c *CondPta[Cond]) AddPts(n ids.NodeID, cond Cond, o ids.NodeID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.pts[n] {
		if e.Cond == cond && e.Node == o {
			return false
		}
	}
	c.pts[n] = append(c.pts[n], CondEntry[Cond]{Cond: cond, Node: o})
	return true
}

// UnionPts merges every entry of rhs into n's points-to set, returning
// whether anything was added.
func (c *CondPta[Cond]) UnionPts(n ids.NodeID, rhs []CondEntry[Cond]) bool {
	changed := false
	for _, e := range rhs {
		if c.AddPts(n, e.Cond, e.Node) {
			changed = true
		}
	}
	return changed
}

// GetPts returns a snapshot of n's conditional points-to set.
func (c *CondPta[Cond]) GetPts(n ids.NodeID) []CondEntry[Cond] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CondEntry[Cond], len(c.pts[n]))
	copy(out, c.pts[n])
	return out
}

// Normalize collapses n's conditional points-to set into bitvector
// form by dropping every condition, per spec.md §4.8's "a
// normalisation step collapses conditional sets into bitvector form
// for downstream compatibility" — the resulting NodeSet is exactly
// what a BvDataPta-based client (or any consumer that only wants "is o
// ever a possible pointee of n, under any condition") would query.
func (c *CondPta[Cond]) Normalize(n ids.NodeID) *ids.NodeSet {
	out := ids.NewNodeSet()
	for _, e := range c.GetPts(n) {
		out.Add(e.Node)
	}
	return out
}

// Alias answers spec.md §4.8's conditional alias query. MayAlias holds
// whenever either side's normalized set reaches the black-hole object
// or the two normalized sets intersect, matching the bit-vector rule
// exactly. MustAlias additionally requires pathSensitive and mutual
// containment under Compatible: every entry on each side must have a
// compatible counterpart on the other, so that no execution can tell
// the two pointers apart.
func (c *CondPta[Cond]) Alias(a, b ids.NodeID, pathSensitive bool) AliasResult {
	na, nb := c.Normalize(a), c.Normalize(b)
	if na.Has(c.blackHole) || nb.Has(c.blackHole) {
		return MayAlias
	}
	if !na.Intersects(nb) {
		return NoAlias
	}
	if pathSensitive && c.mutuallyContains(a, b) {
		return MustAlias
	}
	return MayAlias
}

// mutuallyContains reports whether every entry of a's conditional
// points-to set has a Compatible counterpart among b's, and vice
// versa, per spec.md §4.8's "each pts mutually contains the other."
func (c *CondPta[Cond]) mutuallyContains(a, b ids.NodeID) bool {
	if c.Compatible == nil {
		return false
	}
	ea, eb := c.GetPts(a), c.GetPts(b)
	singleton := len(ea) == 1 && len(eb) == 1
	contains := func(set []CondEntry[Cond], e CondEntry[Cond]) bool {
		for _, o := range set {
			if o.Node == e.Node && c.Compatible(e.Cond, o.Cond, singleton) {
				return true
			}
		}
		return false
	}
	for _, e := range ea {
		if !contains(eb, e) {
			return false
		}
	}
	for _, e := range eb {
		if !contains(ea, e) {
			return false
		}
	}
	return true
}
