package naming

import (
	"fmt"
	"slices"

	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/kernel"
)

// Entry is one named element.
type Entry struct {
	ID         ir.ElementID
	Kind       ir.ElementKind
	Descriptor ir.Descriptor

	// Shape is a non-owning handle into the kernel's shape table.
	// kernel.NoShape when the entry is detached (e.g. just parsed).
	Shape kernel.ShapeRef

	// Sources are the IDs this element descends from, sorted.
	// Never contains ID itself.
	Sources []ir.ElementID

	// OriginOp is the operation that last touched the element.
	// Empty for base-body elements.
	OriginOp string
}

func (e *Entry) clone() Entry {
	c := *e
	c.Sources = slices.Clone(e.Sources)
	return c
}

// Map is the element identity map.
//
// INVARIANTS:
//   - every live ID maps to exactly one entry
//   - byShape[s] contains id iff entries[id].Shape == s (s != NoShape)
//   - retired and entries never share an ID
type Map struct {
	entries map[ir.ElementID]*Entry
	byShape map[kernel.ShapeRef]map[ir.ElementID]struct{}
	retired map[ir.ElementID]struct{}
}

// New creates an empty map.
func New() *Map {
	return &Map{
		entries: make(map[ir.ElementID]*Entry),
		byShape: make(map[kernel.ShapeRef]map[ir.ElementID]struct{}),
		retired: make(map[ir.ElementID]struct{}),
	}
}

// Register creates an entry for a previously unknown ID.
//
// Returns false without mutating the map if id is empty, kind is invalid,
// or id is live or retired: callers must mint fresh IDs for new entities.
func (m *Map) Register(id ir.ElementID, kind ir.ElementKind, shape kernel.ShapeRef, desc ir.Descriptor, opID string) bool {
	if id == "" || !kind.Valid() || m.taken(id) {
		return false
	}
	m.insert(&Entry{
		ID:         id,
		Kind:       kind,
		Descriptor: desc,
		Shape:      shape,
		OriginOp:   opID,
	})
	return true
}

// Find returns a copy of the entry for id. Never mutates.
func (m *Map) Find(id ir.ElementID) (Entry, bool) {
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// FindIDsByShape returns every live ID currently bound to shape, sorted.
// More than one ID is normal when distinct references coincide on the
// same geometry (e.g. two faces merged by a union).
func (m *Map) FindIDsByShape(shape kernel.ShapeRef) []ir.ElementID {
	return sortedIDs(m.byShape[shape])
}

// IDs returns a sorted snapshot of all live IDs.
func (m *Map) IDs() []ir.ElementID {
	ids := make([]ir.ElementID, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Entries returns copies of all live entries ordered by ID.
func (m *Map) Entries() []Entry {
	ids := m.IDs()
	out := make([]Entry, len(ids))
	for i, id := range ids {
		out[i] = m.entries[id].clone()
	}
	return out
}

// Len returns the number of live entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// Retired reports whether id named an entity that has been destroyed.
func (m *Map) Retired(id ir.ElementID) bool {
	_, ok := m.retired[id]
	return ok
}

// Attach binds an existing entry to a live kernel shape. Used to reattach
// parsed (detached) entries after the geometry has been rebuilt.
func (m *Map) Attach(id ir.ElementID, shape kernel.ShapeRef) bool {
	e, ok := m.entries[id]
	if !ok {
		return false
	}
	m.rebind(e, shape)
	return true
}

// Clone returns a deep copy of the map.
func (m *Map) Clone() *Map {
	c := New()
	for _, id := range m.IDs() {
		e := m.entries[id].clone()
		c.insert(&e)
	}
	for id := range m.retired {
		c.retired[id] = struct{}{}
	}
	return c
}

func (m *Map) taken(id ir.ElementID) bool {
	if _, ok := m.entries[id]; ok {
		return true
	}
	_, ok := m.retired[id]
	return ok
}

// freeID returns candidate, or candidate~n for the smallest n >= 2 that is
// neither live nor retired.
func (m *Map) freeID(candidate ir.ElementID) ir.ElementID {
	if !m.taken(candidate) {
		return candidate
	}
	for n := 2; ; n++ {
		id := ir.ElementID(fmt.Sprintf("%s~%d", candidate, n))
		if !m.taken(id) {
			return id
		}
	}
}

func (m *Map) insert(e *Entry) {
	m.entries[e.ID] = e
	m.index(e.ID, e.Shape)
}

func (m *Map) index(id ir.ElementID, shape kernel.ShapeRef) {
	if shape == kernel.NoShape {
		return
	}
	set, ok := m.byShape[shape]
	if !ok {
		set = make(map[ir.ElementID]struct{})
		m.byShape[shape] = set
	}
	set[id] = struct{}{}
}

func (m *Map) unindex(id ir.ElementID, shape kernel.ShapeRef) {
	set, ok := m.byShape[shape]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m.byShape, shape)
	}
}

func (m *Map) rebind(e *Entry, shape kernel.ShapeRef) {
	m.unindex(e.ID, e.Shape)
	e.Shape = shape
	m.index(e.ID, shape)
}

// retire removes an entry from both indexes and records its ID as spent.
func (m *Map) retire(id ir.ElementID) {
	e, ok := m.entries[id]
	if !ok {
		return
	}
	m.unindex(id, e.Shape)
	delete(m.entries, id)
	m.retired[id] = struct{}{}
}

func sortedIDs(set map[ir.ElementID]struct{}) []ir.ElementID {
	ids := make([]ir.ElementID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// mergeSources returns the sorted union of a and b without self.
func mergeSources(self ir.ElementID, a []ir.ElementID, b ...ir.ElementID) []ir.ElementID {
	out := make([]ir.ElementID, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	out = slices.Compact(out)
	return slices.DeleteFunc(out, func(id ir.ElementID) bool { return id == self })
}
