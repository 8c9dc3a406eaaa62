// Package pagtext implements the external-PAG-import format spec.md
// §6 describes under "External PAG import": a plain-text per-function
// PAG summary that lets a caller inject a hand-written stand-in for a
// function body the frontend cannot or should not translate (an
// unexported syscall wrapper, a cgo boundary, a hand-audited library
// stub), instead of a real IR translation.
package pagtext

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/pag"
)

// NodeRole distinguishes a plain imported node from one that serves as
// an argument or return slot a real callsite can be wired onto.
type NodeRole int

const (
	RoleNone NodeRole = iota
	RoleArg
	RoleRet
)

// NodeDecl is one parsed "<node_id> v|o [<arg_no>|ret]" line.
type NodeDecl struct {
	ID       ids.NodeID
	IsObject bool
	Role     NodeRole
	ArgNo    int // meaningful only when Role == RoleArg
}

// EdgeDecl is one parsed "<src> <edge_kind> <dst> <offset_or_cs_id>" line.
type EdgeDecl struct {
	Src, Dst ids.NodeID
	Kind     pag.EdgeKind
	Value    uint64
}

// Summary is a fully parsed per-function PAG import: every declared
// node and edge, in file order.
type Summary struct {
	Nodes []NodeDecl
	Edges []EdgeDecl
}

// ArgNode returns the node id declared as argument n, if any.
func (s *Summary) ArgNode(n int) (ids.NodeID, bool) {
	for _, nd := range s.Nodes {
		if nd.Role == RoleArg && nd.ArgNo == n {
			return nd.ID, true
		}
	}
	return 0, false
}

// RetNode returns the node id declared as the return slot, if any.
func (s *Summary) RetNode() (ids.NodeID, bool) {
	for _, nd := range s.Nodes {
		if nd.Role == RoleRet {
			return nd.ID, true
		}
	}
	return 0, false
}

var edgeKindNames = map[string]pag.EdgeKind{
	"addr":        pag.Addr,
	"copy":        pag.Copy,
	"load":        pag.Load,
	"store":       pag.Store,
	"gep":         pag.NormalGep,
	"variant-gep": pag.VariantGep,
	"call":        pag.Call,
	"ret":         pag.Ret,
	"cmp":         pag.Cmp,
	"binary-op":   pag.BinaryOp,
	"unary-op":    pag.UnaryOp,
}

// Parse reads a Summary from r. Per spec.md §9's open question on
// whitespace handling, fields are split with strings.Fields, the
// permissive behavior: runs of whitespace and leading/trailing
// whitespace are all tolerated, while the grammar's canonical,
// single-space-separated form remains what Write-side tooling should
// produce.
func Parse(r io.Reader) (*Summary, error) {
	s := &Summary{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch len(fields) {
		case 2, 3:
			nd, err := parseNodeDecl(fields)
			if err != nil {
				return nil, err
			}
			s.Nodes = append(s.Nodes, nd)
		case 4:
			ed, err := parseEdgeDecl(fields)
			if err != nil {
				return nil, err
			}
			s.Edges = append(s.Edges, ed)
		default:
			return nil, fmt.Errorf("pagtext: malformed line %q: want 2-4 fields, got %d", line, len(fields))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseNodeDecl(fields []string) (NodeDecl, error) {
	id, err := parseNodeID(fields[0])
	if err != nil {
		return NodeDecl{}, fmt.Errorf("pagtext: malformed node id %q: %w", fields[0], err)
	}

	var isObject bool
	switch fields[1] {
	case "v":
		isObject = false
	case "o":
		isObject = true
	default:
		return NodeDecl{}, fmt.Errorf("pagtext: malformed node kind %q: want v or o", fields[1])
	}

	nd := NodeDecl{ID: id, IsObject: isObject}
	if len(fields) == 3 {
		if fields[2] == "ret" {
			nd.Role = RoleRet
		} else {
			argNo, err := strconv.Atoi(fields[2])
			if err != nil {
				return NodeDecl{}, fmt.Errorf("pagtext: malformed node role %q: want an arg number or %q", fields[2], "ret")
			}
			nd.Role = RoleArg
			nd.ArgNo = argNo
		}
	}
	return nd, nil
}

func parseEdgeDecl(fields []string) (EdgeDecl, error) {
	src, err := parseNodeID(fields[0])
	if err != nil {
		return EdgeDecl{}, fmt.Errorf("pagtext: malformed edge src %q: %w", fields[0], err)
	}
	kind, ok := edgeKindNames[fields[1]]
	if !ok {
		return EdgeDecl{}, fmt.Errorf("pagtext: unknown edge kind %q", fields[1])
	}
	dst, err := parseNodeID(fields[2])
	if err != nil {
		return EdgeDecl{}, fmt.Errorf("pagtext: malformed edge dst %q: %w", fields[2], err)
	}
	value, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return EdgeDecl{}, fmt.Errorf("pagtext: malformed edge offset/cs-id %q: %w", fields[3], err)
	}
	return EdgeDecl{Src: src, Dst: dst, Kind: kind, Value: value}, nil
}

func parseNodeID(s string) (ids.NodeID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return ids.NodeID(n), nil
}

// Import creates a dummy value or object node in p for every node
// Summary declares, and wires every declared edge between them, per
// spec.md §6: "the core creates dummy value/object nodes, wires the
// listed edges, and records which nodes serve as argument/return for
// connecting real callsites."
//
// This is a package-level function rather than a *pag.PAG method to
// avoid an import cycle:
// pag cannot depend on pagtext's Summary type while pagtext depends on
// pag's node/edge constructors.
func Import(p *pag.PAG, s *Summary) {
	for _, nd := range s.Nodes {
		if nd.IsObject {
			p.ImportDummyObject(nd.ID, pag.ObjectInfo{})
		} else {
			p.ImportDummyValue(nd.ID)
		}
	}
	for _, ed := range s.Edges {
		p.ImportEdge(ed.Src, ed.Dst, ed.Kind, ed.Value)
	}
}
