package pag

import (
	"fmt"

	"github.com/picatz/goa/internal/ids"
)

// NodeKind discriminates the closed set of PAG node variants. Modelled
// as a tagged variant per spec.md §9's design note ("model as a closed
// tagged variant per graph… kind discrimination is a cheap field
// read"), not reflection-based isa/dyn_cast.
type NodeKind uint8

const (
	KindValue NodeKind = iota
	KindGepValue
	KindObject
	KindGepObject
	KindFieldInsensitiveObject
	KindDummyValue
	KindDummyObject
	KindReturn
	KindVarArg
)

func (k NodeKind) String() string {
	switch k {
	case KindValue:
		return "Value"
	case KindGepValue:
		return "GepValue"
	case KindObject:
		return "Object"
	case KindGepObject:
		return "GepObject"
	case KindFieldInsensitiveObject:
		return "FieldInsensitiveObject"
	case KindDummyValue:
		return "DummyValue"
	case KindDummyObject:
		return "DummyObject"
	case KindReturn:
		return "Return"
	case KindVarArg:
		return "VarArg"
	default:
		return "UnknownNodeKind"
	}
}

// Node is the common interface satisfied by every PAG node variant.
// Shared fields (id, flags) live in nodeHeader; kind-specific payload
// lives in the concrete struct.
type Node interface {
	ID() ids.NodeID
	Kind() NodeKind
	// IsTopLevelPtr reports whether this node is a top-level ("register")
	// pointer, participating in the VFG's def-use chains directly.
	IsTopLevelPtr() bool
	// IsAddressTakenPtr reports whether this node's address may be
	// observed through a Load/Store, participating in the SVFG's
	// memory-SSA def-use chains.
	IsAddressTakenPtr() bool
	// Value returns the IR-value handle, or (nil, false) for Dummy*
	// nodes per invariant N2 ("Dummy* nodes have no IR value; querying
	// their value is an error" — rendered here as an ok-bool rather
	// than a panic, since callers routinely need to check this).
	Value() (any, bool)
	String() string
}

type nodeHeader struct {
	id          ids.NodeID
	value       any
	hasValue    bool
	topLevel    bool
	addrTaken   bool
}

func (h *nodeHeader) ID() ids.NodeID          { return h.id }
func (h *nodeHeader) IsTopLevelPtr() bool      { return h.topLevel }
func (h *nodeHeader) IsAddressTakenPtr() bool  { return h.addrTaken }
func (h *nodeHeader) Value() (any, bool)       { return h.value, h.hasValue }

// ValueNode represents a top-level SSA value (a register-like pointer).
type ValueNode struct {
	nodeHeader
}

func (n *ValueNode) Kind() NodeKind { return KindValue }
func (n *ValueNode) String() string { return fmt.Sprintf("Value(n%d)", n.id) }

// GepValueNode represents a value obtained by projecting a field out of
// base through a (possibly chained) GEP, as a top-level pointer.
type GepValueNode struct {
	nodeHeader
	Base     ids.NodeID
	Location LocationSet
}

func (n *GepValueNode) Kind() NodeKind { return KindGepValue }
func (n *GepValueNode) String() string {
	return fmt.Sprintf("GepValue(n%d, base=n%d, %s)", n.id, n.Base, n.Location)
}

// ObjectNode represents an abstract memory object (the target of an
// Addr edge).
type ObjectNode struct {
	nodeHeader
	Info ObjectInfo
}

func (n *ObjectNode) Kind() NodeKind { return KindObject }
func (n *ObjectNode) String() string { return fmt.Sprintf("Object(n%d)", n.id) }

// GepObjectNode represents a specific field of a base object (invariant
// N1: the FieldInsensitiveObjectNode of Base must exist, and this node
// is in all_fields_of(Base)).
type GepObjectNode struct {
	nodeHeader
	Base     ids.NodeID
	Location LocationSet
}

func (n *GepObjectNode) Kind() NodeKind { return KindGepObject }
func (n *GepObjectNode) String() string {
	return fmt.Sprintf("GepObject(n%d, base=n%d, %s)", n.id, n.Base, n.Location)
}

// FieldInsensitiveObjectNode represents every field of Base merged into
// one abstract object.
type FieldInsensitiveObjectNode struct {
	nodeHeader
	Base ids.NodeID
	Info ObjectInfo
}

func (n *FieldInsensitiveObjectNode) Kind() NodeKind { return KindFieldInsensitiveObject }
func (n *FieldInsensitiveObjectNode) String() string {
	return fmt.Sprintf("FieldInsensitiveObject(n%d, base=n%d)", n.id, n.Base)
}

// DummyValueNode has no IR value (invariant N2); used for externally
// imported PAG summaries. The null and black-hole pointers are plain
// ValueNodes.
type DummyValueNode struct {
	nodeHeader
}

func (n *DummyValueNode) Kind() NodeKind { return KindDummyValue }
func (n *DummyValueNode) String() string { return fmt.Sprintf("DummyValue(n%d)", n.id) }

// DummyObjectNode has no IR value; used for externally imported PAG
// summaries. The black-hole and constant sentinel objects are plain
// ObjectNodes.
type DummyObjectNode struct {
	nodeHeader
	Info ObjectInfo
}

func (n *DummyObjectNode) Kind() NodeKind { return KindDummyObject }
func (n *DummyObjectNode) String() string { return fmt.Sprintf("DummyObject(n%d)", n.id) }

// ReturnNode represents a function's return-value slot (fn is an
// opaque IR function handle, shared with ICFG's FunEntry/FunExit).
type ReturnNode struct {
	nodeHeader
	Fn any
}

func (n *ReturnNode) Kind() NodeKind { return KindReturn }
func (n *ReturnNode) String() string { return fmt.Sprintf("Return(n%d)", n.id) }

// VarArgNode represents a function's variadic-argument slot.
type VarArgNode struct {
	nodeHeader
	Fn any
}

func (n *VarArgNode) Kind() NodeKind { return KindVarArg }
func (n *VarArgNode) String() string { return fmt.Sprintf("VarArg(n%d)", n.id) }
