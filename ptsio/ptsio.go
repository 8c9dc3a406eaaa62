// Package ptsio implements the line-oriented points-to persistence
// format spec.md §6 describes under "Output… Persistence": one line per
// node with a non-empty points-to set, followed by one line per
// field-object, so a prior run's facts can be reloaded into a freshly
// built PAG/analysis pair before the on-the-fly callgraph solve
// continues.
package ptsio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/picatz/goa/internal/ids"
	"github.com/picatz/goa/pag"
	"github.com/picatz/goa/pta"
)

// Write serialises every node's current points-to set plus every
// GepObjectNode's (base, offset) pair, in ascending node-id order for
// deterministic output, following the style of the teacher's
// WriteDOT (bufio.Writer, one fmt.Fprintf per line).
func Write(w io.Writer, p *pag.PAG, b *pta.BvDataPta) error {
	bw := bufio.NewWriter(w)

	for _, id := range p.Graph().NodeIDs() {
		pts := b.GetPts(id)
		if pts.IsEmpty() {
			continue
		}
		var objs strings.Builder
		first := true
		pts.ForEach(func(o ids.NodeID) bool {
			if !first {
				objs.WriteByte(' ')
			}
			first = false
			objs.WriteString(strconv.FormatUint(uint64(o), 10))
			return true
		})
		if _, err := fmt.Fprintf(bw, "%d -> { %s }\n", id, objs.String()); err != nil {
			return err
		}
	}

	for _, id := range p.Graph().NodeIDs() {
		n, ok := p.Node(id)
		if !ok {
			continue
		}
		gob, ok := n.(*pag.GepObjectNode)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(bw, "%d %d %d\n", id, gob.Base, gob.Location.FieldIdx); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Snapshot is the parsed, not-yet-applied form of a points-to dump:
// Pts maps a node to the member ids its line listed, and Fields lists
// every field-object line in file order.
type Snapshot struct {
	Pts    map[ids.NodeID][]ids.NodeID
	Fields []FieldObject
}

// FieldObject is one parsed field-object line: the field node's own id,
// the base object it projects out of, and the field offset.
type FieldObject struct {
	ID     ids.NodeID
	Base   ids.NodeID
	Offset int64
}

// Read parses a points-to dump into a Snapshot without mutating
// anything; callers apply it with Apply once the target PAG/analysis
// pair is ready (spec.md §6: "Reader reconstructs points-to sets and
// re-materialises field nodes before re-running the on-the-fly
// callgraph solve").
func Read(r io.Reader) (*Snapshot, error) {
	snap := &Snapshot{Pts: make(map[ids.NodeID][]ids.NodeID)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.Contains(line, "->") {
			id, members, err := parsePtsLine(line)
			if err != nil {
				return nil, err
			}
			snap.Pts[id] = members
			continue
		}

		fo, err := parseFieldObjectLine(line)
		if err != nil {
			return nil, err
		}
		snap.Fields = append(snap.Fields, fo)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

func parsePtsLine(line string) (ids.NodeID, []ids.NodeID, error) {
	head, rest, ok := strings.Cut(line, "->")
	if !ok {
		return 0, nil, fmt.Errorf("ptsio: malformed node line %q: missing ->", line)
	}

	id, err := parseNodeID(strings.TrimSpace(head))
	if err != nil {
		return 0, nil, fmt.Errorf("ptsio: malformed node line %q: %w", line, err)
	}

	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, "{")
	rest = strings.TrimSuffix(rest, "}")
	rest = strings.TrimSpace(rest)

	if rest == "" {
		return id, nil, nil
	}

	fields := strings.Fields(rest)
	members := make([]ids.NodeID, 0, len(fields))
	for _, f := range fields {
		o, err := parseNodeID(f)
		if err != nil {
			return 0, nil, fmt.Errorf("ptsio: malformed node line %q: %w", line, err)
		}
		members = append(members, o)
	}
	return id, members, nil
}

func parseFieldObjectLine(line string) (FieldObject, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return FieldObject{}, fmt.Errorf("ptsio: malformed field-object line %q: want 3 fields, got %d", line, len(fields))
	}

	id, err := parseNodeID(fields[0])
	if err != nil {
		return FieldObject{}, fmt.Errorf("ptsio: malformed field-object line %q: %w", line, err)
	}
	base, err := parseNodeID(fields[1])
	if err != nil {
		return FieldObject{}, fmt.Errorf("ptsio: malformed field-object line %q: %w", line, err)
	}
	offset, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return FieldObject{}, fmt.Errorf("ptsio: malformed field-object line %q: %w", line, err)
	}

	return FieldObject{ID: id, Base: base, Offset: offset}, nil
}

func parseNodeID(s string) (ids.NodeID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return ids.NodeID(n), nil
}

// Apply re-materialises snap's field objects against p (via
// p.GetGepObj, so each (base, offset) either resolves to the same id
// the base's static field-insensitivity or FirstFieldEqualsBase option
// would produce fresh, or reuses an already-cached one) and unions
// every recorded points-to member into b's pts table, growing it
// exactly as a live Addr/Copy/Load/Store propagation would.
func Apply(snap *Snapshot, p *pag.PAG, b *pta.BvDataPta) {
	for _, fo := range snap.Fields {
		p.GetGepObj(fo.Base, pag.LocationSet{FieldIdx: fo.Offset})
	}

	for n, members := range snap.Pts {
		for _, o := range members {
			b.AddPts(n, o)
		}
	}
}
