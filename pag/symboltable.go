package pag

import "github.com/picatz/goa/internal/ids"

// ObjectInfo is the bag of static flags an external SymbolTable reports
// about an abstract object, per spec.md §6. Supplemented (§11 of
// SPEC_FULL.md) with the heap/stack/global distinction PAG.h's MemObj/
// ObjTypeInfo tracks, since a field-sensitivity decision in practice
// also depends on where an object was allocated.
type ObjectInfo struct {
	MaxFieldOffset     int64
	IsFieldInsensitive bool
	IsConstantData     bool
	IsHeapObject       bool
	IsStackObject      bool
	IsGlobalObject     bool
	Type               any
}

// SymbolTable is the external collaborator (spec.md §6) that assigns
// SymIDs to IR values/objects/returns/varargs and answers static
// queries about them. SymIDs are shared between IR values/objects and
// PAG NodeIDs: the symbol table and the PAG agree on numbering by
// construction.
type SymbolTable interface {
	ValSym(v any) ids.SymID
	ObjSym(v any) ids.SymID
	RetSym(fn any) ids.SymID
	VarArgSym(fn any) ids.SymID
	ObjInfo(sym ids.SymID) ObjectInfo

	BlackHoleID() ids.SymID
	NullID() ids.SymID
	BlkPtrID() ids.SymID
	ConstantID() ids.SymID
}

// ThreadApi is the optional external collaborator recognising
// fork/join/par-for call sites (spec.md §6).
type ThreadApi interface {
	IsFork(callInstr any) bool
	IsJoin(callInstr any) bool
	IsHareParFor(callInstr any) bool
}

// Stmt is one element of the statement stream an IrAdapter yields while
// walking a translation unit: the statement kind plus the operand
// SymIDs, the owning ICFG node, and (for Gep statements) a LocationSet.
// Not every field is meaningful for every Kind — e.g. Store is the
// only kind using both Label and a meaningful src/dst pair that are
// not simply "assignment".
type Stmt struct {
	Kind       EdgeKind
	Src, Dst   ids.SymID
	ICFGNode   ids.NodeID
	Location   LocationSet
	ConstGep   bool
	CallSiteID uint64 // caller-assigned label for Call/Ret/Store edges
}

// IrAdapter is the external collaborator (spec.md §6) that yields, for
// each instruction in a translation unit, the statement stream PAG
// construction consumes.
type IrAdapter interface {
	Statements() []Stmt
}
