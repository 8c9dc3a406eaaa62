package callgraphutil

import (
	"testing"

	"github.com/picatz/goa/callgraph"
)

func TestFuncStringFallsBackToSprint(t *testing.T) {
	if got := funcString("foo"); got != "foo" {
		t.Errorf("funcString(%q) = %q, want %q", "foo", got, "foo")
	}
}

func TestCalleesOfDeduplicates(t *testing.T) {
	g := callgraph.New()
	g.SetRoot("main")
	g.AddDirectCallSite("main", "foo", "cs1", callgraph.CallRet)
	g.AddIndirectCallSite("main", "foo", "cs2", callgraph.CallRet)
	g.AddDirectCallSite("main", "bar", "cs3", callgraph.CallRet)

	callees := CalleesOf(g, "main")
	if len(callees) != 2 {
		t.Fatalf("expected 2 distinct callees, got %d: %v", len(callees), callees)
	}
}

func TestCallersOfDeduplicates(t *testing.T) {
	g := callgraph.New()
	g.SetRoot("main")
	g.AddDirectCallSite("main", "target", "cs1", callgraph.CallRet)
	g.AddDirectCallSite("other", "target", "cs2", callgraph.CallRet)
	g.AddDirectCallSite("main", "target", "cs3", callgraph.CallRet)

	callers := CallersOf(g, "target")
	if len(callers) != 2 {
		t.Fatalf("expected 2 distinct callers, got %d: %v", len(callers), callers)
	}
}

func TestCalleesOfNoEdgesIsEmpty(t *testing.T) {
	g := callgraph.New()
	g.SetRoot("main")
	if callees := CalleesOf(g, "main"); len(callees) != 0 {
		t.Errorf("expected no callees, got %v", callees)
	}
}
