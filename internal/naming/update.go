package naming

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/kernel"
)

// Update propagates identity through one kernel change-set.
//
// Relations are applied in change-set order against a snapshot of the
// shape -> IDs index taken before any mutation, so a kernel that reuses
// handles (S1 -> S2 in one change, S2 -> S3 in another) cannot make one
// name move twice. Phases:
//
//  1. Modified: merge each input's outputs across changes, then rebind
//     (1 output), split (N outputs) or retire (no outputs)
//  2. Generated: name each unnamed output after its source
//  3. Deleted: retire names whose shape had no Modified counterpart
//  4. Fresh: mint "<opID>/<kind>-<k>" for outputs still unnamed
//
// Update never fails. Contract violations from the kernel (an output whose
// kind differs from the entry it continues) retire the old name and let
// the output be named fresh.
func (m *Map) Update(cs kernel.ChangeSet, opID string) {
	before := make(map[kernel.ShapeRef][]ir.ElementID)
	for _, c := range cs.Changes {
		if _, ok := before[c.Input]; !ok {
			before[c.Input] = m.FindIDsByShape(c.Input)
		}
	}

	// A kernel may report one input's outputs across several Modified
	// changes; they form a single relation.
	var order []kernel.ShapeRef
	merged := make(map[kernel.ShapeRef][]kernel.ShapeRef)
	for _, c := range cs.Changes {
		if c.Relation != kernel.Modified {
			continue
		}
		if _, ok := merged[c.Input]; !ok {
			order = append(order, c.Input)
		}
		merged[c.Input] = append(merged[c.Input], c.Outputs...)
	}
	modified := make(map[kernel.ShapeRef]bool, len(order))
	for _, in := range order {
		merged[in] = dedupe(merged[in])
		modified[in] = len(merged[in]) > 0
	}

	for _, in := range order {
		m.applyModified(in, merged[in], before[in], cs, opID)
	}
	for _, c := range cs.Changes {
		if c.Relation == kernel.Generated {
			m.applyGenerated(c, before[c.Input], cs, opID)
		}
	}
	for _, c := range cs.Changes {
		if c.Relation == kernel.Deleted && !modified[c.Input] {
			m.retireBound(c.Input, before[c.Input])
		}
	}
	m.mintFresh(cs, opID)
}

// retireBound retires the IDs among ids still bound to shape.
func (m *Map) retireBound(shape kernel.ShapeRef, ids []ir.ElementID) {
	for _, id := range ids {
		if e, ok := m.entries[id]; ok && e.Shape == shape {
			m.retire(id)
		}
	}
}

func (m *Map) applyModified(input kernel.ShapeRef, outputs []kernel.ShapeRef, ids []ir.ElementID, cs kernel.ChangeSet, opID string) {
	if len(outputs) == 0 {
		// Every Modified change for input was empty.
		m.retireBound(input, ids)
		return
	}
	if len(outputs) > 1 {
		outputs = splitOrder(outputs, cs)
	}

	for _, id := range ids {
		e, ok := m.entries[id]
		if !ok || e.Shape != input {
			continue
		}

		primary, hasInfo := cs.Info(outputs[0])
		if hasInfo && primary.Kind != e.Kind {
			slog.Debug("kind mismatch on modified shape, retiring",
				"element_id", id,
				"kind", e.Kind,
				"output_kind", primary.Kind,
				"op_id", opID,
			)
			m.retire(id)
			continue
		}

		original := e.clone()
		m.rebind(e, outputs[0])
		if hasInfo {
			e.Descriptor = primary.Descriptor
		}
		e.OriginOp = opID

		for k := 1; k < len(outputs); k++ {
			desc := original.Descriptor
			if info, ok := cs.Info(outputs[k]); ok {
				desc = info.Descriptor
			}
			derived := m.freeID(ir.ElementID(fmt.Sprintf("%s/%s-split-%d", id, original.Kind, k)))
			m.insert(&Entry{
				ID:         derived,
				Kind:       original.Kind,
				Descriptor: desc,
				Shape:      outputs[k],
				Sources:    mergeSources(derived, original.Sources, id),
				OriginOp:   opID,
			})
		}
	}
}

func (m *Map) applyGenerated(c kernel.Change, sources []ir.ElementID, cs kernel.ChangeSet, opID string) {
	if len(sources) == 0 {
		// Nothing to name after; phase 4 mints these as fresh.
		return
	}
	for k, out := range dedupe(c.Outputs) {
		if len(m.byShape[out]) > 0 {
			continue
		}
		info, ok := cs.Info(out)
		if !ok {
			continue
		}
		id := m.freeID(ir.ElementID(fmt.Sprintf("%s/%s-gen-%d", sources[0], info.Kind, k)))
		m.insert(&Entry{
			ID:         id,
			Kind:       info.Kind,
			Descriptor: info.Descriptor,
			Shape:      out,
			Sources:    mergeSources(id, nil, sources...),
			OriginOp:   opID,
		})
	}
}

func (m *Map) mintFresh(cs kernel.ChangeSet, opID string) {
	counters := make(map[ir.ElementKind]int)
	for _, info := range cs.Outputs {
		if info.Ref == kernel.NoShape || len(m.byShape[info.Ref]) > 0 || !info.Kind.Valid() {
			continue
		}
		k := counters[info.Kind]
		counters[info.Kind]++
		id := m.freeID(ir.ElementID(fmt.Sprintf("%s/%s-%d", opID, info.Kind, k)))
		m.insert(&Entry{
			ID:         id,
			Kind:       info.Kind,
			Descriptor: info.Descriptor,
			Shape:      info.Ref,
			OriginOp:   opID,
		})
	}
}

// splitOrder sorts split outputs by canonical fingerprint. Outputs the
// change-set does not describe sort last, by enumeration index.
func splitOrder(outputs []kernel.ShapeRef, cs kernel.ChangeSet) []kernel.ShapeRef {
	type keyed struct {
		ref   kernel.ShapeRef
		index int
		info  ir.Descriptor
		known bool
	}
	items := make([]keyed, len(outputs))
	for i, ref := range outputs {
		info, ok := cs.Info(ref)
		items[i] = keyed{ref: ref, index: i, info: info.Descriptor, known: ok}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		if a.known != b.known {
			if a.known {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.info.Geometry, b.info.Geometry); c != 0 {
			return c
		}
		for i := range a.info.Point {
			if c := cmp.Compare(fingerprint(a.info.Point[i]), fingerprint(b.info.Point[i])); c != 0 {
				return c
			}
		}
		if c := cmp.Compare(fingerprint(a.info.Measure), fingerprint(b.info.Measure)); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})

	out := make([]kernel.ShapeRef, len(items))
	for i, it := range items {
		out[i] = it.ref
	}
	return out
}

// fingerprint rounds to the 1e-9 grid used by the canonical encoding, so
// noise below that resolution cannot reorder split outputs.
func fingerprint(v float64) int64 {
	if math.IsNaN(v) {
		return math.MinInt64
	}
	return ir.Nano(v)
}

// dedupe drops repeated refs and NoShape, preserving first occurrence.
func dedupe(refs []kernel.ShapeRef) []kernel.ShapeRef {
	seen := make(map[kernel.ShapeRef]bool, len(refs))
	out := make([]kernel.ShapeRef, 0, len(refs))
	for _, r := range refs {
		if r == kernel.NoShape || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
