package ptsio

import (
	"strings"
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

// buildFixture wires a=&o; b=a; (an Addr and a Copy) into a fresh
// PAG/BvDataPta pair and solves it, so Write has a non-trivial
// points-to table to dump.
func buildFixture(t *testing.T) (*pag.PAG, *pta.BvDataPta) {
	t.Helper()

	p := pag.New(stubSymtab{}, nil, pag.DefaultOptions(), 10)

	const oObj, aVal, bVal ids.SymID = 4, 5, 6
	p.AddAddr(oObj, aVal)
	p.AddCopy(aVal, bVal)

	cGraph := cg.BuildFromPAG(p)
	cfg := icfg.New()
	g := callgraph.New()
	v := vfg.Build(p)

	b := pta.New(p, cfg, cGraph, g, v)
	b.Solve()
	return p, b
}

func TestWriteProducesOneLinePerNonEmptyNode(t *testing.T) {
	p, b := buildFixture(t)

	var buf strings.Builder
	if err := Write(&buf, p, b); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "5 -> { 4 }") {
		t.Errorf("expected a's points-to line, got:\n%s", out)
	}
	if !strings.Contains(out, "6 -> { 4 }") {
		t.Errorf("expected b's points-to line (copy-propagated), got:\n%s", out)
	}
}

func TestWriteThenReadRoundTripsPointsToSets(t *testing.T) {
	p, b := buildFixture(t)

	var buf strings.Builder
	if err := Write(&buf, p, b); err != nil {
		t.Fatalf("Write: %v", err)
	}

	snap, err := Read(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	members, ok := snap.Pts[5]
	if !ok {
		t.Fatal("expected a parsed pts entry for node 5")
	}
	if len(members) != 1 || members[0] != 4 {
		t.Errorf("expected {4}, got %v", members)
	}
}

func TestApplyReplaysSnapshotIntoFreshAnalysis(t *testing.T) {
	p, b := buildFixture(t)

	var buf strings.Builder
	if err := Write(&buf, p, b); err != nil {
		t.Fatalf("Write: %v", err)
	}
	snap, err := Read(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	// Rebuild a fresh analysis over the same PAG and replay the snapshot
	// into it, simulating a reload.
	cGraph := cg.BuildFromPAG(p)
	cfg := icfg.New()
	g := callgraph.New()
	v := vfg.Build(p)
	fresh := pta.New(p, cfg, cGraph, g, v)

	Apply(snap, p, fresh)

	pts := fresh.GetPts(5)
	if !pts.Has(4) {
		t.Errorf("expected reloaded pts(5) to contain 4, got %v", pts.Slice())
	}
}

func TestReadRejectsMalformedLines(t *testing.T) {
	_, err := Read(strings.NewReader("not a valid line at all"))
	if err == nil {
		t.Fatal("expected an error for a malformed field-object line")
	}
}

func TestReadSkipsBlankLines(t *testing.T) {
	snap, err := Read(strings.NewReader("\n\n5 -> { 4 }\n\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(snap.Pts) != 1 {
		t.Fatalf("expected exactly one parsed pts line, got %d", len(snap.Pts))
	}
}
