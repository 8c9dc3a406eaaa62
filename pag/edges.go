package pag

import (
	"fmt"

	"github.com/picatz/goa/graph"
	"github.com/picatz/goa/internal/ids"
)

// EdgeKind enumerates the closed set of PAG statement edges (spec.md §3.3).
type EdgeKind = graph.Kind

const (
	Addr EdgeKind = iota
	Copy
	Load
	Store
	NormalGep
	VariantGep
	Call
	Ret
	ThreadFork
	ThreadJoin
	Cmp
	BinaryOp
	UnaryOp
)

func KindString(k EdgeKind) string {
	switch k {
	case Addr:
		return "Addr"
	case Copy:
		return "Copy"
	case Load:
		return "Load"
	case Store:
		return "Store"
	case NormalGep:
		return "NormalGep"
	case VariantGep:
		return "VariantGep"
	case Call:
		return "Call"
	case Ret:
		return "Ret"
	case ThreadFork:
		return "ThreadFork"
	case ThreadJoin:
		return "ThreadJoin"
	case Cmp:
		return "Cmp"
	case BinaryOp:
		return "BinaryOp"
	case UnaryOp:
		return "UnaryOp"
	default:
		return "UnknownEdgeKind"
	}
}

// IsDirect reports whether edges of kind k participate in the
// constraint graph's "direct" edge set used by SCC (Copy/NormalGep/
// VariantGep/Call/Ret), as opposed to the "indirect" Load/Store edges
// that represent memory accesses (spec.md §4.2/§4.3).
func IsDirect(k EdgeKind) bool {
	switch k {
	case Copy, NormalGep, VariantGep, Call, Ret:
		return true
	default:
		return false
	}
}

// Edge is a PAG statement edge: (src, dst, id, kind[, label]).
//
// The auxiliary 56-bit label spec.md §3.3 packs into the flag's high
// bits is, in this Go rendering, simply a second uint64 field — the
// packed-bitfield representation was a C++-era space optimisation with
// no idiomatic Go counterpart worth the added unsafe-ness; the ordering
// and uniqueness semantics it exists to support are unchanged.
type Edge struct {
	graph.EdgeHeader
	src, dst ids.NodeID
	kind     EdgeKind
	label    uint64 // ICFG NodeID of the labelling instruction, or 0
}

func (e *Edge) Src() ids.NodeID  { return e.src }
func (e *Edge) Dst() ids.NodeID  { return e.dst }
func (e *Edge) Kind() EdgeKind   { return e.kind }
func (e *Edge) Label() uint64    { return e.label }
func (e *Edge) String() string {
	if e.label != 0 {
		return fmt.Sprintf("n%d --[%s#%d]--> n%d", e.src, KindString(e.kind), e.label, e.dst)
	}
	return fmt.Sprintf("n%d --[%s]--> n%d", e.src, KindString(e.kind), e.dst)
}

func newEdge(src, dst ids.NodeID, k EdgeKind, label uint64) *Edge {
	return &Edge{src: src, dst: dst, kind: k, label: label}
}

func rebuildEdge(src, dst ids.NodeID, k EdgeKind, label uint64) graph.Edge {
	return newEdge(src, dst, k, label)
}
