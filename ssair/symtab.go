// Package ssair adapts golang.org/x/tools/go/ssa programs into the
// pag.SymbolTable / pag.IrAdapter / pag.ThreadApi collaborators the
// analysis core consumes (spec.md §6), the way callgraphutil adapts the
// same SSA representation into an x/tools-shaped call graph.
package ssair

import (
	"go/types"

	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/pag"
	"golang.org/x/tools/go/ssa"
)

// Reserved SymIDs every pag.SymbolTable agrees on, matching the
// convention every stub SymbolTable in this repo's own tests already
// follows (config_test.go, chresolver_test.go, pta_test.go).
const (
	blackHoleID ids.SymID = 0
	nullID      ids.SymID = 1
	blkPtrID    ids.SymID = 2
	constantID  ids.SymID = 3
	firstDynSym ids.SymID = 4
)

// SymbolTable assigns SymIDs to ssa.Value/ssa.Function identities
// discovered while walking a program, and answers ObjInfo for the
// object SymIDs it allocated. Symbols are allocated lazily and are
// stable for the lifetime of the SymbolTable: the same *ssa.Value
// always maps to the same SymID.
//
// FieldInsensitiveThreshold mirrors config.Options.FieldInsensitiveThreshold:
// an allocated struct/array object whose field count exceeds the
// threshold is reported field-insensitive regardless of what its
// go/types.Type would otherwise allow, bounding field-object blowup for
// wide aggregates (spec.md §4.4's get_gep_obj assumes some objects are
// field-insensitive by policy, not just by type shape).
type SymbolTable struct {
	FieldInsensitiveThreshold int

	next ids.SymID

	vals    map[ssa.Value]ids.SymID
	objs    map[any]ids.SymID
	rets    map[*ssa.Function]ids.SymID
	varargs map[*ssa.Function]ids.SymID

	objInfo map[ids.SymID]pag.ObjectInfo
}

// NewSymbolTable returns an empty SymbolTable ready to allocate symbols.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		next:    firstDynSym,
		vals:    make(map[ssa.Value]ids.SymID),
		objs:    make(map[any]ids.SymID),
		rets:    make(map[*ssa.Function]ids.SymID),
		varargs: make(map[*ssa.Function]ids.SymID),
		objInfo: make(map[ids.SymID]pag.ObjectInfo),
	}
}

func (t *SymbolTable) alloc() ids.SymID {
	id := t.next
	t.next++
	return id
}

// ValSym returns v's value SymID, allocating one on first use.
func (t *SymbolTable) ValSym(v any) ids.SymID {
	val, ok := v.(ssa.Value)
	if !ok {
		return t.alloc()
	}
	if sym, ok := t.vals[val]; ok {
		return sym
	}
	sym := t.alloc()
	t.vals[val] = sym
	return sym
}

// ObjSym returns key's object SymID, allocating one on first use. key is
// typically the *ssa.Alloc or *ssa.Global instruction the abstract
// object was created from; SetObjInfo should be called alongside the
// first ObjSym(key) so ObjInfo has something to report.
func (t *SymbolTable) ObjSym(key any) ids.SymID {
	if sym, ok := t.objs[key]; ok {
		return sym
	}
	sym := t.alloc()
	t.objs[key] = sym
	return sym
}

// RetSym returns fn's formal-return-value SymID.
func (t *SymbolTable) RetSym(fn any) ids.SymID {
	f, ok := fn.(*ssa.Function)
	if !ok {
		return t.alloc()
	}
	if sym, ok := t.rets[f]; ok {
		return sym
	}
	sym := t.alloc()
	t.rets[f] = sym
	return sym
}

// VarArgSym returns fn's variadic-parameter SymID.
func (t *SymbolTable) VarArgSym(fn any) ids.SymID {
	f, ok := fn.(*ssa.Function)
	if !ok {
		return t.alloc()
	}
	if sym, ok := t.varargs[f]; ok {
		return sym
	}
	sym := t.alloc()
	t.varargs[f] = sym
	return sym
}

// SetObjInfo records the ObjectInfo for an already-allocated object
// SymID. Called by Adapter as it discovers Alloc/Global/MakeClosure
// sites, never by a client.
func (t *SymbolTable) SetObjInfo(sym ids.SymID, info pag.ObjectInfo) {
	t.objInfo[sym] = info
}

// ObjInfo returns the recorded ObjectInfo for sym, or the zero value
// (field-sensitive, no flags set) if none was recorded.
func (t *SymbolTable) ObjInfo(sym ids.SymID) pag.ObjectInfo {
	return t.objInfo[sym]
}

func (t *SymbolTable) BlackHoleID() ids.SymID { return blackHoleID }
func (t *SymbolTable) NullID() ids.SymID      { return nullID }
func (t *SymbolTable) BlkPtrID() ids.SymID    { return blkPtrID }
func (t *SymbolTable) ConstantID() ids.SymID  { return constantID }

// fieldCountOf reports how many direct fields elemType's underlying
// type declares, and whether elemType is a struct/array shape at all
// (a pointer, basic, interface, etc. object is always field-insensitive
// since it has no sub-objects to distinguish).
func fieldCountOf(elemType types.Type) (count int, aggregate bool) {
	if elemType == nil {
		return 0, false
	}
	switch u := elemType.Underlying().(type) {
	case *types.Struct:
		return u.NumFields(), true
	case *types.Array:
		return 1, true
	default:
		return 0, false
	}
}

// isFieldInsensitive applies FieldInsensitiveThreshold on top of
// fieldCountOf's type-shape judgement.
func (t *SymbolTable) isFieldInsensitive(elemType types.Type) bool {
	count, aggregate := fieldCountOf(elemType)
	if !aggregate {
		return true
	}
	return t.FieldInsensitiveThreshold > 0 && count > t.FieldInsensitiveThreshold
}
