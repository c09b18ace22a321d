package simkernel

import (
	"math"
	"slices"

	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/kernel"
)

// ApplyBoolean combines the input body with the tool body, which is
// consumed. The result is the input body's handle.
//
// Target faces that straddle the tool's x-planes are split into two or
// three pieces. Pieces are kept or dropped by where their centroid falls
// relative to the tool's bounding box:
//
//	cut        drop pieces inside the tool; tool faces inside the target
//	           generate the pocket walls
//	union      drop pieces inside the tool; tool faces coplanar with a
//	           target face merge into it, the rest move to the result
//	intersect  keep only pieces within the tool; tool faces inside the
//	           target generate the remaining walls
func (k *Kernel) ApplyBoolean(p ir.BooleanParams, in kernel.Inputs) (kernel.Result, error) {
	k.calls++
	target, ok := k.bodies[in.Body]
	if !ok {
		return kernel.Result{}, kernel.Errorf(ir.OpBoolean, "input body %d is not alive", in.Body)
	}
	tool, ok := k.bodies[in.Tool]
	if !ok {
		return kernel.Result{}, kernel.Errorf(ir.OpBoolean, "tool body %d is not alive", in.Tool)
	}
	if target == tool {
		return kernel.Result{}, kernel.Errorf(ir.OpBoolean, "tool and input are the same body")
	}
	if !slices.Contains(ir.BooleanModes, p.Mode) {
		return kernel.Result{}, kernel.Errorf(ir.OpBoolean, "unknown mode %q", p.Mode)
	}
	for _, s := range []*solid{target, tool} {
		for _, ref := range s.faces {
			if k.shapes[ref].poly == nil {
				return kernel.Result{}, kernel.Errorf(ir.OpBoolean, "body %d has non-planar faces", s.ref)
			}
		}
	}

	tb := k.bodyBox(tool)
	bb := k.bodyBox(target)
	switch p.Mode {
	case ir.BooleanIntersect:
		if !tb.overlaps(bb) {
			return kernel.Result{}, kernel.Errorf(ir.OpBoolean, "intersect of disjoint bodies is empty")
		}
	case ir.BooleanCut:
		if closedInside(tb, bb.min) && closedInside(tb, bb.max) {
			return kernel.Result{}, kernel.Errorf(ir.OpBoolean, "cut removes the whole body")
		}
	}

	keepPiece := func(centroid vec) bool {
		if p.Mode == ir.BooleanIntersect {
			return closedInside(tb, centroid)
		}
		return !tb.strictlyInside(centroid)
	}

	var changes []kernel.Change
	var unsplit []kernel.ShapeRef

	// Target faces.
	for _, ref := range slices.Clone(target.faces) {
		f := k.shapes[ref]
		pieces := splitX(f.poly, tb.min[0], tb.max[0])
		if len(pieces) == 1 {
			if keepPiece(polyCentroid(f.poly)) {
				unsplit = append(unsplit, ref)
				continue
			}
			changes = append(changes, kernel.Change{Relation: kernel.Deleted, Input: ref})
			k.remove(ref)
			continue
		}

		var outputs []kernel.ShapeRef
		for _, piece := range pieces {
			if !keepPiece(polyCentroid(piece)) {
				continue
			}
			pb := boxOf(piece...)
			var edges []kernel.ShapeRef
			for _, e := range k.liveEdges(f) {
				if x := e.desc.Point[0]; x >= pb.min[0]-eps && x <= pb.max[0]+eps {
					edges = append(edges, e.ref)
				}
			}
			outputs = append(outputs, k.addFace(target, piece, edges).ref)
		}
		if len(outputs) == 0 {
			changes = append(changes, kernel.Change{Relation: kernel.Deleted, Input: ref})
		} else {
			changes = append(changes, kernel.Change{Relation: kernel.Modified, Input: ref, Outputs: outputs})
		}
		k.remove(ref)
	}

	// Target edges and vertices.
	for _, group := range [][]kernel.ShapeRef{target.edges, target.vertices} {
		for _, ref := range slices.Clone(group) {
			if keepPiece(vec(k.shapes[ref].desc.Point)) {
				continue
			}
			changes = append(changes, kernel.Change{Relation: kernel.Deleted, Input: ref})
			k.remove(ref)
		}
	}

	// Tool faces.
	for _, ref := range slices.Clone(tool.faces) {
		u := k.shapes[ref]
		switch p.Mode {
		case ir.BooleanUnion:
			if t := k.coplanarFace(unsplit, u); t != nil {
				merged := k.mergeFaces(target, t, u)
				changes = append(changes,
					kernel.Change{Relation: kernel.Modified, Input: t.ref, Outputs: []kernel.ShapeRef{merged.ref}},
					kernel.Change{Relation: kernel.Modified, Input: u.ref, Outputs: []kernel.ShapeRef{merged.ref}},
				)
				unsplit = without(unsplit, t.ref)
				k.remove(t.ref)
				k.remove(u.ref)
				continue
			}
			if bb.strictlyInside(polyCentroid(u.poly)) {
				changes = append(changes, kernel.Change{Relation: kernel.Deleted, Input: ref})
				k.remove(ref)
				continue
			}
			k.adopt(target, u)
		default:
			clipped := clipBox(u.poly, bb)
			if polyArea(clipped) > eps && bb.strictlyInside(polyCentroid(clipped)) {
				if p.Mode == ir.BooleanCut {
					slices.Reverse(clipped)
				}
				wall := k.addFace(target, clipped, nil)
				changes = append(changes, kernel.Change{Relation: kernel.Generated, Input: ref, Outputs: []kernel.ShapeRef{wall.ref}})
			}
			changes = append(changes, kernel.Change{Relation: kernel.Deleted, Input: ref})
			k.remove(ref)
		}
	}

	// Tool edges and vertices.
	for _, group := range [][]kernel.ShapeRef{tool.edges, tool.vertices} {
		for _, ref := range slices.Clone(group) {
			e := k.shapes[ref]
			if p.Mode == ir.BooleanUnion && !bb.strictlyInside(vec(e.desc.Point)) {
				k.adopt(target, e)
				continue
			}
			changes = append(changes, kernel.Change{Relation: kernel.Deleted, Input: ref})
			k.remove(ref)
		}
	}
	delete(k.bodies, tool.ref)

	return kernel.Result{
		Bodies:   []kernel.ShapeRef{target.ref},
		Consumed: []kernel.ShapeRef{tool.ref},
		Changes:  k.changeSet(changes, target.ref),
	}, nil
}

// adopt moves sub-shape e (same handle) into body s.
func (k *Kernel) adopt(s *solid, e *entity) {
	if old, ok := k.bodies[e.body]; ok {
		old.faces = without(old.faces, e.ref)
		old.edges = without(old.edges, e.ref)
		old.vertices = without(old.vertices, e.ref)
	}
	e.body = s.ref
	switch e.kind {
	case ir.KindFace:
		s.faces = append(s.faces, e.ref)
	case ir.KindEdge:
		s.edges = append(s.edges, e.ref)
	case ir.KindVertex:
		s.vertices = append(s.vertices, e.ref)
	}
}

// coplanarFace returns the first face among candidates lying in the same
// axis-aligned plane as u, facing the same way and overlapping it.
func (k *Kernel) coplanarFace(candidates []kernel.ShapeRef, u *entity) *entity {
	axis, sign, ok := axisNormal(u.poly)
	if !ok {
		return nil
	}
	ub := boxOf(u.poly...)
	for _, ref := range candidates {
		t := k.shapes[ref]
		ta, ts, ok := axisNormal(t.poly)
		if !ok || ta != axis || ts != sign {
			continue
		}
		tb := boxOf(t.poly...)
		if math.Abs(tb.min[axis]-ub.min[axis]) > eps {
			continue
		}
		if overlapsInPlane(tb, ub, axis) {
			return t
		}
	}
	return nil
}

// mergeFaces replaces t and u with one face covering both bounding boxes.
func (k *Kernel) mergeFaces(s *solid, t, u *entity) *entity {
	axis, sign, _ := axisNormal(t.poly)
	b := boxOf(t.poly...).union(boxOf(u.poly...))
	var edges []kernel.ShapeRef
	for _, e := range k.liveEdges(t) {
		edges = append(edges, e.ref)
	}
	for _, e := range k.liveEdges(u) {
		edges = append(edges, e.ref)
	}
	return k.addFace(s, rectangle(b, axis, sign), edges)
}

// splitX cuts poly by the planes x == lo and x == hi where they cross its
// interior, returning pieces ordered by increasing x.
func splitX(poly []vec, lo, hi float64) [][]vec {
	b := boxOf(poly...)
	pieces := [][]vec{poly}
	for _, c := range []float64{lo, hi} {
		if c <= b.min[0]+eps || c >= b.max[0]-eps {
			continue
		}
		last := pieces[len(pieces)-1]
		left := clip(last, 0, c, true)
		right := clip(last, 0, c, false)
		if polyArea(left) < eps || polyArea(right) < eps {
			continue
		}
		pieces = append(pieces[:len(pieces)-1], left, right)
	}
	return pieces
}

// axisNormal returns the axis and direction of poly's normal when it is
// axis-aligned.
func axisNormal(poly []vec) (int, float64, bool) {
	n := newell(poly)
	l := n.norm()
	if l < eps {
		return 0, 0, false
	}
	for axis := 0; axis < 3; axis++ {
		if c := n[axis] / l; math.Abs(math.Abs(c)-1) < 1e-12 {
			return axis, math.Copysign(1, c), true
		}
	}
	return 0, 0, false
}

func overlapsInPlane(a, b box, normal int) bool {
	for axis := 0; axis < 3; axis++ {
		if axis == normal {
			continue
		}
		if a.max[axis] <= b.min[axis]+eps || b.max[axis] <= a.min[axis]+eps {
			return false
		}
	}
	return true
}

// rectangle is the face of b perpendicular to axis at b.min[axis],
// oriented so its normal points along sign.
func rectangle(b box, axis int, sign float64) []vec {
	u, v := (axis+1)%3, (axis+2)%3
	corner := func(cu, cv float64) vec {
		var p vec
		p[axis] = b.min[axis]
		p[u] = cu
		p[v] = cv
		return p
	}
	poly := []vec{
		corner(b.min[u], b.min[v]),
		corner(b.max[u], b.min[v]),
		corner(b.max[u], b.max[v]),
		corner(b.min[u], b.max[v]),
	}
	if sign < 0 {
		slices.Reverse(poly)
	}
	return poly
}

// closedInside reports whether p lies in b, boundary included.
func closedInside(b box, p vec) bool {
	for i := range p {
		if p[i] < b.min[i]-eps || p[i] > b.max[i]+eps {
			return false
		}
	}
	return true
}
