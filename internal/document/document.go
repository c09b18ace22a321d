// Package document holds an operation history: the ordered records the
// regeneration engine replays, the applied cursor, base bodies, per-op
// suppression flags and the sketch profiles that extrude and revolve read.
//
// The engine only reads a document through the History interface. A
// Document is not safe for concurrent mutation; the scheduler owns it for
// the duration of a regeneration.
package document

import (
	"fmt"
	"slices"

	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/kernel"
)

// History is the read-only view the engine replays.
type History interface {
	// Operations returns the records in document order.
	Operations() []ir.OperationRecord

	// AppliedCount is the rollback cursor: operations at positions
	// >= AppliedCount are not replayed by a plain regeneration.
	AppliedCount() int

	// BaseBodies lists bodies that exist before any operation runs.
	BaseBodies() []string

	// IsSuppressed reports whether opID is skipped during replay.
	IsSuppressed(opID string) bool

	// Profile returns region of sketch as a closed polygon.
	Profile(sketch string, region int) (*kernel.Profile, bool)
}

// Sketch is a set of closed planar regions at height Z.
type Sketch struct {
	Z       float64
	Regions [][][2]float64
}

// Document is the in-memory History implementation.
type Document struct {
	ID string

	ops        []ir.OperationRecord
	applied    int
	baseBodies []string
	suppressed map[string]bool
	sketches   map[string]Sketch
}

var _ History = (*Document)(nil)

// New creates an empty document.
func New(id string) *Document {
	return &Document{
		ID:         id,
		suppressed: make(map[string]bool),
		sketches:   make(map[string]Sketch),
	}
}

// Append adds rec at the end of the history and advances the applied
// cursor when it was at the end.
func (d *Document) Append(rec ir.OperationRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if d.indexOf(rec.ID) >= 0 {
		return fmt.Errorf("duplicate op_id %q", rec.ID)
	}
	atEnd := d.applied == len(d.ops)
	d.ops = append(d.ops, rec)
	if atEnd {
		d.applied = len(d.ops)
	}
	return nil
}

// Operations returns a copy of the records in document order.
func (d *Document) Operations() []ir.OperationRecord {
	return slices.Clone(d.ops)
}

// Operation returns the record with opID.
func (d *Document) Operation(opID string) (ir.OperationRecord, bool) {
	i := d.indexOf(opID)
	if i < 0 {
		return ir.OperationRecord{}, false
	}
	return d.ops[i], true
}

// Len returns the number of records.
func (d *Document) Len() int {
	return len(d.ops)
}

// AppliedCount returns the rollback cursor.
func (d *Document) AppliedCount() int {
	return d.applied
}

// SetAppliedCount moves the rollback cursor. n must be in [0, Len()].
func (d *Document) SetAppliedCount(n int) error {
	if n < 0 || n > len(d.ops) {
		return fmt.Errorf("applied count %d out of range [0, %d]", n, len(d.ops))
	}
	d.applied = n
	return nil
}

// AddBaseBody registers a body that no operation produces.
func (d *Document) AddBaseBody(id string) error {
	if id == "" {
		return fmt.Errorf("empty base body id")
	}
	if slices.Contains(d.baseBodies, id) {
		return fmt.Errorf("duplicate base body %q", id)
	}
	d.baseBodies = append(d.baseBodies, id)
	return nil
}

// BaseBodies returns the base body ids in registration order.
func (d *Document) BaseBodies() []string {
	return slices.Clone(d.baseBodies)
}

// Suppress sets the suppression flag of opID.
func (d *Document) Suppress(opID string, suppressed bool) error {
	if d.indexOf(opID) < 0 {
		return fmt.Errorf("unknown op_id %q", opID)
	}
	if suppressed {
		d.suppressed[opID] = true
	} else {
		delete(d.suppressed, opID)
	}
	return nil
}

// IsSuppressed reports whether opID is suppressed.
func (d *Document) IsSuppressed(opID string) bool {
	return d.suppressed[opID]
}

// Suppressed returns the suppressed op ids in document order.
func (d *Document) Suppressed() []string {
	var out []string
	for _, op := range d.ops {
		if d.suppressed[op.ID] {
			out = append(out, op.ID)
		}
	}
	return out
}

// AddSketch registers sketch id.
func (d *Document) AddSketch(id string, s Sketch) error {
	if id == "" {
		return fmt.Errorf("empty sketch id")
	}
	if _, ok := d.sketches[id]; ok {
		return fmt.Errorf("duplicate sketch %q", id)
	}
	for i, r := range s.Regions {
		if len(r) < 3 {
			return fmt.Errorf("sketch %s: region %d has %d points, need at least 3", id, i, len(r))
		}
	}
	d.sketches[id] = s
	return nil
}

// Sketch returns sketch id.
func (d *Document) Sketch(id string) (Sketch, bool) {
	s, ok := d.sketches[id]
	return s, ok
}

// SketchIDs returns the sketch ids, sorted.
func (d *Document) SketchIDs() []string {
	ids := make([]string, 0, len(d.sketches))
	for id := range d.sketches {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Profile returns the region of a sketch as a kernel profile.
func (d *Document) Profile(sketch string, region int) (*kernel.Profile, bool) {
	s, ok := d.sketches[sketch]
	if !ok || region < 0 || region >= len(s.Regions) {
		return nil, false
	}
	return &kernel.Profile{Points: slices.Clone(s.Regions[region]), Z: s.Z}, true
}

func (d *Document) indexOf(opID string) int {
	return slices.IndexFunc(d.ops, func(r ir.OperationRecord) bool { return r.ID == opID })
}
