package simkernel

import (
	"math"

	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/kernel"
)

// ApplyExtrude sweeps the input profile by Distance along +z (or -z when
// negative). Every sub-shape of the result is new.
func (k *Kernel) ApplyExtrude(p ir.ExtrudeParams, in kernel.Inputs) (kernel.Result, error) {
	k.calls++
	if in.Profile == nil {
		return kernel.Result{}, kernel.Errorf(ir.OpExtrude, "missing profile")
	}
	if !finite(p.Distance) || math.Abs(p.Distance) < eps {
		return kernel.Result{}, kernel.Errorf(ir.OpExtrude, "distance must be non-zero, got %g", p.Distance)
	}
	s, err := k.prism(profileVecs(in.Profile), in.Profile.Z, in.Profile.Z+p.Distance)
	if err != nil {
		return kernel.Result{}, kernel.Errorf(ir.OpExtrude, "%v", err)
	}
	return kernel.Result{
		Bodies:  []kernel.ShapeRef{s.ref},
		Changes: k.changeSet(nil, s.ref),
	}, nil
}

// ApplyRevolve sweeps the input profile about the sketch y axis. Faces are
// listed one per profile segment (segments lying on the axis produce
// none), then the start and end caps when the sweep is partial.
func (k *Kernel) ApplyRevolve(p ir.RevolveParams, in kernel.Inputs) (kernel.Result, error) {
	k.calls++
	if in.Profile == nil {
		return kernel.Result{}, kernel.Errorf(ir.OpRevolve, "missing profile")
	}
	if !finite(p.AngleDeg) || p.AngleDeg <= eps || p.AngleDeg > 360+eps {
		return kernel.Result{}, kernel.Errorf(ir.OpRevolve, "angle must be in (0, 360], got %g", p.AngleDeg)
	}
	pts := profileVecs(in.Profile)
	if len(pts) < 3 {
		return kernel.Result{}, kernel.Errorf(ir.OpRevolve, "profile needs at least 3 points, got %d", len(pts))
	}
	if polyArea(pts) < eps {
		return kernel.Result{}, kernel.Errorf(ir.OpRevolve, "profile has zero area")
	}
	for _, pt := range pts {
		if pt[0] < -eps {
			return kernel.Result{}, kernel.Errorf(ir.OpRevolve, "profile crosses the revolution axis at x=%g", pt[0])
		}
	}

	z0 := in.Profile.Z
	theta := radians(p.AngleDeg)
	full := p.AngleDeg >= 360-eps
	mid := theta / 2
	n := len(pts)
	onAxis := func(pt vec) bool { return pt[0] < eps }

	s := k.newBody()

	if !full {
		for _, pt := range pts {
			k.addVertex(s, rotateY(pt, 0, z0))
			if !onAxis(pt) {
				k.addVertex(s, rotateY(pt, theta, z0))
			}
		}
	}

	arcs := make([]kernel.ShapeRef, n)
	for i, pt := range pts {
		if onAxis(pt) {
			continue
		}
		geometry := "arc"
		if full {
			geometry = "circle"
		}
		arcs[i] = k.addEdgeDesc(s, ir.Descriptor{
			Geometry:   geometry,
			Point:      rotateY(pt, mid, z0),
			Measure:    pt[0] * theta,
			HasMeasure: true,
		}).ref
	}

	var start, end []kernel.ShapeRef
	if !full {
		start = make([]kernel.ShapeRef, n)
		end = make([]kernel.ShapeRef, n)
		for i := range pts {
			j := (i + 1) % n
			start[i] = k.addEdge(s, rotateY(pts[i], 0, z0), rotateY(pts[j], 0, z0)).ref
			end[i] = k.addEdge(s, rotateY(pts[i], theta, z0), rotateY(pts[j], theta, z0)).ref
		}
	}

	for i := range pts {
		j := (i + 1) % n
		a, b := pts[i], pts[j]
		if onAxis(a) && onAxis(b) {
			continue
		}
		length := b.sub(a).norm()
		var desc ir.Descriptor
		switch {
		case math.Abs(a[0]-b[0]) < eps:
			desc = ir.Descriptor{Geometry: "cylinder", Measure: a[0] * theta * length}
		case math.Abs(a[1]-b[1]) < eps:
			desc = ir.Descriptor{Geometry: "plane", Measure: math.Abs(b[0]*b[0]-a[0]*a[0]) * theta / 2}
		default:
			desc = ir.Descriptor{Geometry: "cone", Measure: (a[0] + b[0]) / 2 * theta * length}
		}
		desc.HasMeasure = true
		desc.Point = rotateY(a.add(b).scale(0.5), mid, z0)

		var edges []kernel.ShapeRef
		for _, r := range []kernel.ShapeRef{arcs[i], arcs[j]} {
			if r != kernel.NoShape {
				edges = append(edges, r)
			}
		}
		if !full {
			edges = append(edges, start[i], end[i])
		}
		k.addSurface(s, desc, edges)
	}

	if !full {
		startPoly := make([]vec, n)
		endPoly := make([]vec, n)
		for i, pt := range pts {
			startPoly[i] = rotateY(pt, 0, z0)
			endPoly[i] = rotateY(pt, theta, z0)
		}
		k.addFace(s, startPoly, start)
		k.addFace(s, endPoly, end)
	}

	return kernel.Result{
		Bodies:  []kernel.ShapeRef{s.ref},
		Changes: k.changeSet(nil, s.ref),
	}, nil
}

// ApplyFillet rounds every boundary edge of the input face.
func (k *Kernel) ApplyFillet(p ir.FilletParams, in kernel.Inputs) (kernel.Result, error) {
	k.calls++
	return k.blend(ir.OpFillet, p.Radius, in)
}

// ApplyChamfer bevels every boundary edge of the input face.
func (k *Kernel) ApplyChamfer(p ir.ChamferParams, in kernel.Inputs) (kernel.Result, error) {
	k.calls++
	return k.blend(ir.OpChamfer, p.Distance, in)
}

// blend implements fillet and chamfer. The face is Modified (shrunk);
// each boundary edge generates a blend face and a replacement edge, and
// is then Deleted.
func (k *Kernel) blend(op ir.OpType, size float64, in kernel.Inputs) (kernel.Result, error) {
	face, err := k.liveFace(op, in.Face)
	if err != nil {
		return kernel.Result{}, err
	}
	if !finite(size) || size <= eps {
		return kernel.Result{}, kernel.Errorf(op, "size must be positive, got %g", size)
	}
	edges := k.liveEdges(face)
	if len(edges) == 0 {
		return kernel.Result{}, kernel.Errorf(op, "face has no boundary edges")
	}

	var perimeter float64
	for _, e := range edges {
		if size >= e.desc.Measure/2 {
			return kernel.Result{}, kernel.Errorf(op, "size %g too large for edge of length %g", size, e.desc.Measure)
		}
		perimeter += e.desc.Measure
	}
	area := face.desc.Measure
	shrunk := area - perimeter*size
	if shrunk <= eps {
		return kernel.Result{}, kernel.Errorf(op, "face of area %g too small for size %g", area, size)
	}

	s := k.bodies[face.body]
	centre := vec(face.desc.Point)

	var changes []kernel.Change
	var replacement []kernel.ShapeRef
	var generated []kernel.Change
	for _, e := range edges {
		length := e.desc.Measure
		blendDesc := ir.Descriptor{Point: e.desc.Point, HasMeasure: true}
		if op == ir.OpFillet {
			blendDesc.Geometry = "cylinder"
			blendDesc.Measure = length * size * math.Pi / 2
		} else {
			blendDesc.Geometry = "plane"
			blendDesc.Measure = length * size * math.Sqrt2
		}
		blendFace := k.addSurface(s, blendDesc, nil)

		inward := toward(vec(e.desc.Point), centre, size)
		edgeDesc := e.desc
		edgeDesc.Point = vec(e.desc.Point).add(inward)
		edgeDesc.Measure = length - 2*size
		newEdge := k.addEdgeDesc(s, edgeDesc)
		newEdge.ends = [2]vec{e.ends[0].add(inward), e.ends[1].add(inward)}
		replacement = append(replacement, newEdge.ref)

		generated = append(generated,
			kernel.Change{Relation: kernel.Generated, Input: e.ref, Outputs: []kernel.ShapeRef{blendFace.ref, newEdge.ref}},
			kernel.Change{Relation: kernel.Deleted, Input: e.ref},
		)
	}
	for _, e := range edges {
		k.remove(e.ref)
	}

	next := &entity{kind: ir.KindFace, edges: replacement, desc: face.desc}
	if face.poly != nil {
		next.poly = shrink(face.poly, math.Sqrt(shrunk/area))
		next.desc = planeDescriptor(next.poly)
	} else {
		next.desc.Measure = shrunk
	}
	old := face.ref
	k.replaceFace(s, old, next)
	changes = append(changes, kernel.Change{Relation: kernel.Modified, Input: old, Outputs: []kernel.ShapeRef{next.ref}})
	changes = append(changes, generated...)

	return kernel.Result{
		Bodies:  []kernel.ShapeRef{s.ref},
		Changes: k.changeSet(changes, s.ref),
	}, nil
}

// ApplyShell hollows the body of the input face. The face is removed;
// every other face is Modified and generates one inner offset face.
func (k *Kernel) ApplyShell(p ir.ShellParams, in kernel.Inputs) (kernel.Result, error) {
	k.calls++
	face, err := k.liveFace(ir.OpShell, in.Face)
	if err != nil {
		return kernel.Result{}, err
	}
	if !finite(p.Thickness) || p.Thickness <= eps {
		return kernel.Result{}, kernel.Errorf(ir.OpShell, "thickness must be positive, got %g", p.Thickness)
	}
	s := k.bodies[face.body]
	for _, ref := range s.faces {
		if k.shapes[ref].poly == nil {
			return kernel.Result{}, kernel.Errorf(ir.OpShell, "body has non-planar faces")
		}
	}
	if b := k.bodyBox(s); 2*p.Thickness >= b.minExtent() {
		return kernel.Result{}, kernel.Errorf(ir.OpShell, "thickness %g too large for body of minimum extent %g", p.Thickness, b.minExtent())
	}

	changes := []kernel.Change{{Relation: kernel.Deleted, Input: face.ref}}
	k.remove(face.ref)

	others := append([]kernel.ShapeRef(nil), s.faces...)
	for _, ref := range others {
		g := k.shapes[ref]
		next := &entity{kind: ir.KindFace, poly: g.poly, edges: g.edges, desc: g.desc}
		k.replaceFace(s, ref, next)

		normal := newell(g.poly)
		offset := normal.scale(-p.Thickness / normal.norm())
		inner := make([]vec, len(g.poly))
		for i, pt := range g.poly {
			inner[len(g.poly)-1-i] = pt.add(offset)
		}
		innerFace := k.addFace(s, inner, nil)

		changes = append(changes,
			kernel.Change{Relation: kernel.Modified, Input: ref, Outputs: []kernel.ShapeRef{next.ref}},
			kernel.Change{Relation: kernel.Generated, Input: ref, Outputs: []kernel.ShapeRef{innerFace.ref}},
		)
	}

	return kernel.Result{
		Bodies:  []kernel.ShapeRef{s.ref},
		Changes: k.changeSet(changes, s.ref),
	}, nil
}

func (k *Kernel) liveFace(op ir.OpType, ref kernel.ShapeRef) (*entity, error) {
	e, ok := k.shapes[ref]
	if !ok {
		return nil, kernel.Errorf(op, "input face %d is not alive", ref)
	}
	if e.kind != ir.KindFace {
		return nil, kernel.Errorf(op, "input %d is a %s, not a face", ref, e.kind)
	}
	return e, nil
}

func (k *Kernel) addSurface(s *solid, desc ir.Descriptor, edges []kernel.ShapeRef) *entity {
	e := &entity{ref: k.alloc(), kind: ir.KindFace, body: s.ref, desc: desc, edges: edges}
	k.shapes[e.ref] = e
	s.faces = append(s.faces, e.ref)
	return e
}

func (k *Kernel) addEdgeDesc(s *solid, desc ir.Descriptor) *entity {
	e := &entity{ref: k.alloc(), kind: ir.KindEdge, body: s.ref, desc: desc}
	k.shapes[e.ref] = e
	s.edges = append(s.edges, e.ref)
	return e
}

// toward returns the vector of length d from a toward b (zero if a == b).
func toward(a, b vec, d float64) vec {
	dir := b.sub(a)
	n := dir.norm()
	if n < eps {
		return vec{}
	}
	return dir.scale(d / n)
}

func profileVecs(p *kernel.Profile) []vec {
	out := make([]vec, len(p.Points))
	for i, pt := range p.Points {
		out[i] = vec{pt[0], pt[1], 0}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
