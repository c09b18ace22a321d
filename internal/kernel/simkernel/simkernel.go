// Package simkernel is a deterministic in-memory reference kernel.
//
// It models solids as collections of faces, edges and vertices with
// descriptors derived from simple geometry: prisms from extruded polygon
// profiles, surfaces of revolution, axis-aligned booleans that split faces
// along the tool's x-planes, and descriptor-level fillets, chamfers and
// shells. It is exact enough to exercise persistent naming (splits,
// generated faces, deletions, coincident faces) and nothing more.
//
// Handles are allocated from a counter that Reset rewinds, so two replays
// of the same history produce identical ShapeRefs and change-sets.
package simkernel

import (
	"fmt"
	"math"

	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/kernel"
)

// entity is one sub-shape.
type entity struct {
	ref  kernel.ShapeRef
	kind ir.ElementKind
	body kernel.ShapeRef
	desc ir.Descriptor

	// Faces: planar outline (nil for curved faces) and boundary edges.
	poly  []vec
	edges []kernel.ShapeRef

	// Edges: endpoints.
	ends [2]vec
}

// solid is one body, listing sub-shapes in enumeration order.
type solid struct {
	ref      kernel.ShapeRef
	faces    []kernel.ShapeRef
	edges    []kernel.ShapeRef
	vertices []kernel.ShapeRef
}

// Kernel is the reference kernel. Not safe for concurrent use.
type Kernel struct {
	next   kernel.ShapeRef
	shapes map[kernel.ShapeRef]*entity
	bodies map[kernel.ShapeRef]*solid

	baseBoxes map[string]box
	calls     int
}

var _ kernel.Kernel = (*Kernel)(nil)

// Option configures a Kernel.
type Option func(*Kernel)

// WithBaseBody places base body id as the axis-aligned box [lo, hi].
// Base bodies without an explicit placement are the box [0,10]^3.
func WithBaseBody(id string, lo, hi [3]float64) Option {
	return func(k *Kernel) {
		k.baseBoxes[id] = box{min: vec(lo), max: vec(hi)}
	}
}

// New creates an empty kernel.
func New(opts ...Option) *Kernel {
	k := &Kernel{baseBoxes: make(map[string]box)}
	for _, opt := range opts {
		opt(k)
	}
	k.Reset()
	return k
}

// Reset discards every shape and rewinds handle allocation.
func (k *Kernel) Reset() {
	k.next = 1
	k.shapes = make(map[kernel.ShapeRef]*entity)
	k.bodies = make(map[kernel.ShapeRef]*solid)
}

// Calls returns the number of Apply* calls since construction.
func (k *Kernel) Calls() int {
	return k.calls
}

func (k *Kernel) alloc() kernel.ShapeRef {
	r := k.next
	k.next++
	return r
}

// LoadBaseBody materializes base body id as a box.
func (k *Kernel) LoadBaseBody(id string) (kernel.ShapeRef, error) {
	if id == "" {
		return kernel.NoShape, kernel.Errorf("", "empty base body id")
	}
	b, ok := k.baseBoxes[id]
	if !ok {
		b = box{max: vec{10, 10, 10}}
	}
	profile := []vec{
		{b.min[0], b.min[1], 0},
		{b.max[0], b.min[1], 0},
		{b.max[0], b.max[1], 0},
		{b.min[0], b.max[1], 0},
	}
	s, err := k.prism(profile, b.min[2], b.max[2])
	if err != nil {
		return kernel.NoShape, fmt.Errorf("base body %s: %w", id, err)
	}
	return s.ref, nil
}

// Explore lists faces, then edges, then vertices of body.
func (k *Kernel) Explore(body kernel.ShapeRef) []kernel.ShapeInfo {
	s, ok := k.bodies[body]
	if !ok {
		return nil
	}
	var out []kernel.ShapeInfo
	for _, group := range [][]kernel.ShapeRef{s.faces, s.edges, s.vertices} {
		for _, ref := range group {
			e := k.shapes[ref]
			out = append(out, kernel.ShapeInfo{Ref: ref, Kind: e.kind, Descriptor: e.desc})
		}
	}
	return out
}

// Alive reports whether ref names a live body or sub-shape.
func (k *Kernel) Alive(ref kernel.ShapeRef) bool {
	if _, ok := k.shapes[ref]; ok {
		return true
	}
	_, ok := k.bodies[ref]
	return ok
}

// BodyOf returns the body owning sub-shape ref.
func (k *Kernel) BodyOf(ref kernel.ShapeRef) (kernel.ShapeRef, bool) {
	e, ok := k.shapes[ref]
	if !ok {
		return kernel.NoShape, false
	}
	return e.body, true
}

func (k *Kernel) newBody() *solid {
	s := &solid{ref: k.alloc()}
	k.bodies[s.ref] = s
	return s
}

func (k *Kernel) addFace(s *solid, poly []vec, edges []kernel.ShapeRef) *entity {
	e := &entity{
		ref:   k.alloc(),
		kind:  ir.KindFace,
		body:  s.ref,
		poly:  poly,
		edges: edges,
		desc:  planeDescriptor(poly),
	}
	k.shapes[e.ref] = e
	s.faces = append(s.faces, e.ref)
	return e
}

func (k *Kernel) addEdge(s *solid, a, b vec) *entity {
	e := &entity{ref: k.alloc(), kind: ir.KindEdge, body: s.ref, ends: [2]vec{a, b}, desc: lineDescriptor(a, b)}
	k.shapes[e.ref] = e
	s.edges = append(s.edges, e.ref)
	return e
}

func (k *Kernel) addVertex(s *solid, p vec) *entity {
	e := &entity{
		ref:  k.alloc(),
		kind: ir.KindVertex,
		body: s.ref,
		desc: ir.Descriptor{Geometry: "point", Point: p},
	}
	k.shapes[e.ref] = e
	s.vertices = append(s.vertices, e.ref)
	return e
}

// prism builds a right prism over profile (x, y in sketch space; the z
// component is ignored) between heights z0 and z1. Faces: bottom, top,
// then one side per profile segment.
func (k *Kernel) prism(profile []vec, z0, z1 float64) (*solid, error) {
	if len(profile) < 3 {
		return nil, fmt.Errorf("profile needs at least 3 points, got %d", len(profile))
	}
	if z0 > z1 {
		z0, z1 = z1, z0
	}
	if z1-z0 < eps {
		return nil, fmt.Errorf("zero height")
	}
	pts := make([]vec, len(profile))
	for i, p := range profile {
		pts[i] = vec{p[0], p[1], 0}
	}
	if newell(pts)[2] < 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	if polyArea(pts) < eps {
		return nil, fmt.Errorf("profile has zero area")
	}

	at := func(p vec, z float64) vec { return vec{p[0], p[1], z} }
	n := len(pts)
	s := k.newBody()

	bottom := make([]kernel.ShapeRef, n)
	top := make([]kernel.ShapeRef, n)
	vertical := make([]kernel.ShapeRef, n)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		bottom[i] = k.addEdge(s, at(pts[i], z0), at(pts[j], z0)).ref
		top[i] = k.addEdge(s, at(pts[i], z1), at(pts[j], z1)).ref
		vertical[i] = k.addEdge(s, at(pts[i], z0), at(pts[i], z1)).ref
	}
	for i := 0; i < n; i++ {
		k.addVertex(s, at(pts[i], z0))
		k.addVertex(s, at(pts[i], z1))
	}

	// Outward orientation: bottom reversed, top as-is, sides (p_i, p_j) up.
	bottomPoly := make([]vec, n)
	topPoly := make([]vec, n)
	for i := 0; i < n; i++ {
		bottomPoly[i] = at(pts[n-1-i], z0)
		topPoly[i] = at(pts[i], z1)
	}
	k.addFace(s, bottomPoly, bottom)
	k.addFace(s, topPoly, top)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		side := []vec{at(pts[i], z0), at(pts[j], z0), at(pts[j], z1), at(pts[i], z1)}
		k.addFace(s, side, []kernel.ShapeRef{bottom[i], vertical[j], top[i], vertical[i]})
	}
	return s, nil
}

// liveEdges returns the boundary edges of face that still exist.
func (k *Kernel) liveEdges(face *entity) []*entity {
	var out []*entity
	for _, ref := range face.edges {
		if e, ok := k.shapes[ref]; ok {
			out = append(out, e)
		}
	}
	return out
}

// bodyBox bounds every planar face and vertex of s.
func (k *Kernel) bodyBox(s *solid) box {
	b := emptyBox()
	for _, ref := range s.faces {
		for _, p := range k.shapes[ref].poly {
			b = b.extend(p)
		}
	}
	for _, ref := range s.vertices {
		b = b.extend(vec(k.shapes[ref].desc.Point))
	}
	return b
}

// remove drops sub-shape ref from the kernel and its body's lists.
func (k *Kernel) remove(ref kernel.ShapeRef) {
	e, ok := k.shapes[ref]
	if !ok {
		return
	}
	delete(k.shapes, ref)
	s, ok := k.bodies[e.body]
	if !ok {
		return
	}
	s.faces = without(s.faces, ref)
	s.edges = without(s.edges, ref)
	s.vertices = without(s.vertices, ref)
}

// replaceFace swaps old for a new entity at the same position in the body.
func (k *Kernel) replaceFace(s *solid, old kernel.ShapeRef, e *entity) {
	e.ref = k.alloc()
	e.body = s.ref
	k.shapes[e.ref] = e
	for i, r := range s.faces {
		if r == old {
			s.faces[i] = e.ref
		}
	}
	delete(k.shapes, old)
}

func (k *Kernel) changeSet(changes []kernel.Change, bodies ...kernel.ShapeRef) kernel.ChangeSet {
	cs := kernel.ChangeSet{Changes: changes}
	for _, b := range bodies {
		cs.Outputs = append(cs.Outputs, k.Explore(b)...)
	}
	return cs
}

func without(refs []kernel.ShapeRef, ref kernel.ShapeRef) []kernel.ShapeRef {
	out := refs[:0]
	for _, r := range refs {
		if r != ref {
			out = append(out, r)
		}
	}
	return out
}

func planeDescriptor(poly []vec) ir.Descriptor {
	return ir.Descriptor{
		Geometry:   "plane",
		Point:      polyCentroid(poly),
		Measure:    polyArea(poly),
		HasMeasure: true,
	}
}

func lineDescriptor(a, b vec) ir.Descriptor {
	return ir.Descriptor{
		Geometry:   "line",
		Point:      a.add(b).scale(0.5),
		Measure:    b.sub(a).norm(),
		HasMeasure: true,
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
