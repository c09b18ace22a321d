package simkernel

import "math"

type vec [3]float64

func (a vec) add(b vec) vec     { return vec{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a vec) sub(b vec) vec     { return vec{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a vec) scale(s float64) vec { return vec{a[0] * s, a[1] * s, a[2] * s} }
func (a vec) dot(b vec) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a vec) cross(b vec) vec {
	return vec{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}
func (a vec) norm() float64 { return math.Sqrt(a.dot(a)) }

// eps is the kernel's geometric resolution.
const eps = 1e-9

// newell returns the (unnormalized) polygon normal; its length is twice
// the polygon area.
func newell(poly []vec) vec {
	var n vec
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		n[0] += (a[1] - b[1]) * (a[2] + b[2])
		n[1] += (a[2] - b[2]) * (a[0] + b[0])
		n[2] += (a[0] - b[0]) * (a[1] + b[1])
	}
	return n
}

func polyArea(poly []vec) float64 {
	if len(poly) < 3 {
		return 0
	}
	return newell(poly).norm() / 2
}

// polyCentroid is the area centroid of a planar polygon, by fan
// triangulation weighted along the polygon normal.
func polyCentroid(poly []vec) vec {
	if len(poly) == 0 {
		return vec{}
	}
	n := newell(poly)
	var sum vec
	var total float64
	for i := 1; i+1 < len(poly); i++ {
		a, b, c := poly[0], poly[i], poly[i+1]
		w := b.sub(a).cross(c.sub(a)).dot(n)
		sum = sum.add(a.add(b).add(c).scale(w / 3))
		total += w
	}
	if math.Abs(total) < eps {
		// Degenerate: fall back to the vertex mean.
		var m vec
		for _, p := range poly {
			m = m.add(p)
		}
		return m.scale(1 / float64(len(poly)))
	}
	return sum.scale(1 / total)
}

func polyPerimeter(poly []vec) float64 {
	var l float64
	for i := range poly {
		l += poly[(i+1)%len(poly)].sub(poly[i]).norm()
	}
	return l
}

// clip keeps the part of poly on one side of the plane x[axis] == c
// (Sutherland-Hodgman). below selects x[axis] <= c.
func clip(poly []vec, axis int, c float64, below bool) []vec {
	inside := func(p vec) bool {
		if below {
			return p[axis] <= c+eps
		}
		return p[axis] >= c-eps
	}
	var out []vec
	for i := range poly {
		cur, next := poly[i], poly[(i+1)%len(poly)]
		cin, nin := inside(cur), inside(next)
		if cin {
			out = append(out, cur)
		}
		if cin != nin {
			t := (c - cur[axis]) / (next[axis] - cur[axis])
			p := cur.add(next.sub(cur).scale(t))
			p[axis] = c
			out = append(out, p)
		}
	}
	return dropDuplicates(out)
}

// clipBox keeps the part of poly inside b.
func clipBox(poly []vec, b box) []vec {
	for axis := 0; axis < 3 && len(poly) > 0; axis++ {
		poly = clip(poly, axis, b.min[axis], false)
		poly = clip(poly, axis, b.max[axis], true)
	}
	return poly
}

func dropDuplicates(poly []vec) []vec {
	out := poly[:0:0]
	for i, p := range poly {
		if i > 0 && p.sub(out[len(out)-1]).norm() < eps {
			continue
		}
		out = append(out, p)
	}
	if len(out) > 1 && out[0].sub(out[len(out)-1]).norm() < eps {
		out = out[:len(out)-1]
	}
	return out
}

// box is an axis-aligned bounding box.
type box struct {
	min, max vec
}

func emptyBox() box {
	inf := math.Inf(1)
	return box{min: vec{inf, inf, inf}, max: vec{-inf, -inf, -inf}}
}

func (b box) extend(p vec) box {
	for i := range p {
		b.min[i] = math.Min(b.min[i], p[i])
		b.max[i] = math.Max(b.max[i], p[i])
	}
	return b
}

func (b box) union(o box) box {
	return b.extend(o.min).extend(o.max)
}

func boxOf(points ...vec) box {
	b := emptyBox()
	for _, p := range points {
		b = b.extend(p)
	}
	return b
}

// strictlyInside reports whether p lies in the open interior of b.
func (b box) strictlyInside(p vec) bool {
	for i := range p {
		if p[i] <= b.min[i]+eps || p[i] >= b.max[i]-eps {
			return false
		}
	}
	return true
}

// overlaps reports whether b and o share a region of positive volume.
func (b box) overlaps(o box) bool {
	for i := 0; i < 3; i++ {
		if b.max[i] <= o.min[i]+eps || o.max[i] <= b.min[i]+eps {
			return false
		}
	}
	return true
}

func (b box) center() vec {
	return b.min.add(b.max).scale(0.5)
}

func (b box) minExtent() float64 {
	m := math.Inf(1)
	for i := 0; i < 3; i++ {
		m = math.Min(m, b.max[i]-b.min[i])
	}
	return m
}

// shrink scales poly about its centroid by f.
func shrink(poly []vec, f float64) []vec {
	c := polyCentroid(poly)
	out := make([]vec, len(poly))
	for i, p := range poly {
		out[i] = c.add(p.sub(c).scale(f))
	}
	return out
}

// rotateY rotates p by phi radians about the vertical line through
// (0, *, z0).
func rotateY(p vec, phi, z0 float64) vec {
	return vec{p[0] * math.Cos(phi), p[1], z0 + p[0]*math.Sin(phi)}
}
