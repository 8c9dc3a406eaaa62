package config

import (
	"testing"

	"github.com/picatz/goa/callgraph"
	"github.com/picatz/goa/cg"
	"github.com/picatz/goa/icfg"
	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/pag"
	"github.com/picatz/goa/pta"
	"github.com/picatz/goa/vfg"
)

type stubSymtab struct{}

func (stubSymtab) ValSym(v any) ids.SymID     { return v.(ids.SymID) }
func (stubSymtab) ObjSym(v any) ids.SymID     { return v.(ids.SymID) }
func (stubSymtab) RetSym(fn any) ids.SymID    { return fn.(ids.SymID) }
func (stubSymtab) VarArgSym(fn any) ids.SymID { return fn.(ids.SymID) }
func (stubSymtab) ObjInfo(sym ids.SymID) pag.ObjectInfo {
	return pag.ObjectInfo{MaxFieldOffset: 8}
}
func (stubSymtab) BlackHoleID() ids.SymID { return 0 }
func (stubSymtab) NullID() ids.SymID      { return 1 }
func (stubSymtab) BlkPtrID() ids.SymID    { return 2 }
func (stubSymtab) ConstantID() ids.SymID  { return 3 }

func TestDefaultMatchesReferenceDefaults(t *testing.T) {
	o := Default()
	if o.FieldInsensitiveThreshold != 0 {
		t.Fatalf("expected no field-insensitive threshold by default, got %d", o.FieldInsensitiveThreshold)
	}
	if o.BlackholeAddrIsAddrEdge || o.FirstFieldEqualsBase || o.Conditional {
		t.Fatalf("expected every mode flag to default false, got %+v", o)
	}
	if o.EdgeProjectionMode != cg.AllDirect {
		t.Fatalf("expected AllDirect edge projection by default, got %v", o.EdgeProjectionMode)
	}
	if o.Workers != 1 {
		t.Fatalf("expected a single worker by default, got %d", o.Workers)
	}
}

func TestPAGOptionsProjectsOnlyPAGFields(t *testing.T) {
	o := Options{
		BlackholeAddrIsAddrEdge: true,
		FirstFieldEqualsBase:    true,
		Conditional:             true,
		Workers:                 8,
	}
	got := o.PAGOptions()
	want := pag.Options{BlackholeAddrIsAddrEdge: true, FirstFieldEqualsBase: true}
	if got != want {
		t.Fatalf("expected PAGOptions to project only the blackhole/first-field flags, got %+v", got)
	}
}

func TestApplyToConfiguresBvDataPta(t *testing.T) {
	p := pag.New(stubSymtab{}, nil, pag.DefaultOptions(), 4)
	bv := pta.New(p, icfg.New(), cg.BuildFromPAG(p), callgraph.New(), vfg.Build(p))

	o := Options{Workers: 4, EdgeProjectionMode: cg.CopyOnly}
	o.ApplyTo(bv)

	// BvDataPta exposes no workers/mode getters; Solve merely must not
	// panic with the configured values wired through.
	bv.Solve()
}
