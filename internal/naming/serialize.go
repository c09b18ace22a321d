package naming

import (
	"fmt"
	"slices"

	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/kernel"
)

// ParseError reports malformed identity-map text. Path locates the
// offending value, e.g. "entries[3].sources[0]".
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return "identity map: " + e.Reason
	}
	return fmt.Sprintf("identity map: %s: %s", e.Path, e.Reason)
}

func parseErrorf(path, format string, args ...any) *ParseError {
	return &ParseError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// String renders the map as canonical JSON:
//
//	{"entries":[{"descriptor":{...},"id":"...","kind":"face","origin_op":"...","sources":[...]}],
//	 "retired":[...],"version":1}
//
// Entries are ordered by ID and descriptors use nano-unit integers, so
// equal maps produce byte-identical text. Shape handles are not written.
func (m *Map) String() string {
	entries := make(ir.IRArray, 0, len(m.entries))
	for _, id := range m.IDs() {
		e := m.entries[id]
		sources := make(ir.IRArray, len(e.Sources))
		for i, s := range e.Sources {
			sources[i] = ir.IRString(s)
		}
		entries = append(entries, ir.IRObject{
			"id":         ir.IRString(e.ID),
			"kind":       ir.IRString(e.Kind.String()),
			"descriptor": ir.EncodeDescriptor(e.Descriptor),
			"sources":    sources,
			"origin_op":  ir.IRString(e.OriginOp),
		})
	}

	retired := make(ir.IRArray, 0, len(m.retired))
	for _, id := range sortedIDs(m.retired) {
		retired = append(retired, ir.IRString(id))
	}

	data, err := ir.MarshalCanonical(ir.IRObject{
		"version": ir.IRInt(ir.MapFormatVersion),
		"entries": entries,
		"retired": retired,
	})
	if err != nil {
		// Every value above is constructed here; a failure is a bug.
		panic(fmt.Sprintf("naming: marshal identity map: %v", err))
	}
	return string(data)
}

// Parse replaces the map's contents with the map encoded in text.
//
// Parse is atomic: on any error the map is left exactly as it was. Parsed
// entries are detached (Shape == kernel.NoShape) until reattached with
// Attach.
func (m *Map) Parse(text string) error {
	parsed, err := parse(text)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

// ParseMap decodes text into a new map.
func ParseMap(text string) (*Map, error) {
	return parse(text)
}

func parse(text string) (*Map, error) {
	root, err := ir.ParseCanonical([]byte(text))
	if err != nil {
		return nil, parseErrorf("", "%v", err)
	}

	version, err := root.Int("version")
	if err != nil {
		return nil, parseErrorf("version", "%v", err)
	}
	if version != ir.MapFormatVersion {
		return nil, parseErrorf("version", "unsupported format version %d", version)
	}

	out := New()

	retired, err := root.Array("retired")
	if err != nil {
		return nil, parseErrorf("retired", "%v", err)
	}
	for i, v := range retired {
		s, ok := v.(ir.IRString)
		if !ok || s == "" {
			return nil, parseErrorf(fmt.Sprintf("retired[%d]", i), "expected non-empty string")
		}
		out.retired[ir.ElementID(s)] = struct{}{}
	}

	entries, err := root.Array("entries")
	if err != nil {
		return nil, parseErrorf("entries", "%v", err)
	}
	for i, v := range entries {
		path := fmt.Sprintf("entries[%d]", i)
		obj, ok := v.(ir.IRObject)
		if !ok {
			return nil, parseErrorf(path, "expected object, got %T", v)
		}
		e, err := parseEntry(path, obj)
		if err != nil {
			return nil, err
		}
		if _, dup := out.entries[e.ID]; dup {
			return nil, parseErrorf(path+".id", "duplicate id %q", e.ID)
		}
		if out.Retired(e.ID) {
			return nil, parseErrorf(path+".id", "id %q is both live and retired", e.ID)
		}
		out.insert(e)
	}

	if id, ok := findSourceCycle(out.entries); ok {
		return nil, parseErrorf("entries", "source cycle through %q", id)
	}
	return out, nil
}

func parseEntry(path string, obj ir.IRObject) (*Entry, error) {
	id, err := obj.String("id")
	if err != nil {
		return nil, parseErrorf(path, "%v", err)
	}
	if id == "" {
		return nil, parseErrorf(path+".id", "empty id")
	}

	kindName, err := obj.String("kind")
	if err != nil {
		return nil, parseErrorf(path, "%v", err)
	}
	kind, err := ir.ParseElementKind(kindName)
	if err != nil {
		return nil, parseErrorf(path+".kind", "%v", err)
	}

	descObj, err := obj.Object("descriptor")
	if err != nil {
		return nil, parseErrorf(path, "%v", err)
	}
	desc, err := ir.DecodeDescriptor(descObj)
	if err != nil {
		return nil, parseErrorf(path+".descriptor", "%v", err)
	}

	origin, err := obj.String("origin_op")
	if err != nil {
		return nil, parseErrorf(path, "%v", err)
	}

	rawSources, err := obj.Array("sources")
	if err != nil {
		return nil, parseErrorf(path, "%v", err)
	}
	sources := make([]ir.ElementID, 0, len(rawSources))
	for j, s := range rawSources {
		str, ok := s.(ir.IRString)
		if !ok || str == "" {
			return nil, parseErrorf(fmt.Sprintf("%s.sources[%d]", path, j), "expected non-empty string")
		}
		if ir.ElementID(str) == ir.ElementID(id) {
			return nil, parseErrorf(fmt.Sprintf("%s.sources[%d]", path, j), "entry lists itself as a source")
		}
		sources = append(sources, ir.ElementID(str))
	}
	slices.Sort(sources)
	if len(slices.Compact(slices.Clone(sources))) != len(sources) {
		return nil, parseErrorf(path+".sources", "duplicate source")
	}

	return &Entry{
		ID:         ir.ElementID(id),
		Kind:       kind,
		Descriptor: desc,
		Shape:      kernel.NoShape,
		Sources:    sources,
		OriginOp:   origin,
	}, nil
}

// findSourceCycle walks the live source graph in sorted order and returns
// an ID on a cycle, if any. Sources naming retired or unknown IDs are
// leaves.
func findSourceCycle(entries map[ir.ElementID]*Entry) (ir.ElementID, bool) {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[ir.ElementID]int, len(entries))

	var visit func(id ir.ElementID) (ir.ElementID, bool)
	visit = func(id ir.ElementID) (ir.ElementID, bool) {
		state[id] = onStack
		for _, src := range entries[id].Sources {
			if _, live := entries[src]; !live {
				continue
			}
			switch state[src] {
			case onStack:
				return src, true
			case unvisited:
				if hit, ok := visit(src); ok {
					return hit, true
				}
			}
		}
		state[id] = done
		return "", false
	}

	ids := make([]ir.ElementID, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if state[id] == unvisited {
			if hit, ok := visit(id); ok {
				return hit, true
			}
		}
	}
	return "", false
}
