package ir

import (
	"fmt"
	"math"
)

// ElementID names a topological sub-entity (vertex, edge or face).
// IDs are human-inspectable paths such as "op-1/face-2" or
// "op-1/face-2/face-split-1", unique within a document, and never reused
// once the entity they name has been destroyed.
type ElementID string

// ElementKind is the topological kind of an element. Fixed for the lifetime
// of an ID.
type ElementKind int

const (
	KindVertex ElementKind = iota + 1
	KindEdge
	KindFace
)

// String returns the lowercase kind name used inside element IDs.
func (k ElementKind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindEdge:
		return "edge"
	case KindFace:
		return "face"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the three topological kinds.
func (k ElementKind) Valid() bool {
	return k == KindVertex || k == KindEdge || k == KindFace
}

// ParseElementKind is the inverse of ElementKind.String.
func ParseElementKind(s string) (ElementKind, error) {
	switch s {
	case "vertex":
		return KindVertex, nil
	case "edge":
		return KindEdge, nil
	case "face":
		return KindFace, nil
	default:
		return 0, fmt.Errorf("unknown element kind %q", s)
	}
}

// Descriptor is a kernel-independent fingerprint of an element at the time
// of its last update. It survives serialization, so a loaded map can be
// inspected and diffed without the live kernel shape.
type Descriptor struct {
	// Geometry is the underlying surface/curve type: "plane", "cylinder",
	// "torus", "line", "arc", "point".
	Geometry string `json:"geometry"`

	// Point is a representative position (centroid for faces, midpoint for
	// edges, the position itself for vertices).
	Point [3]float64 `json:"point"`

	// Measure is area for faces and length for edges.
	Measure    float64 `json:"measure,omitempty"`
	HasMeasure bool    `json:"has_measure,omitempty"`
}

// DescriptorTolerance is the numeric tolerance used to compare descriptors.
const DescriptorTolerance = 1e-6

// ApproxEqual compares two descriptors within tol on numeric fields and
// exactly on the geometry type.
func (d Descriptor) ApproxEqual(o Descriptor, tol float64) bool {
	if d.Geometry != o.Geometry || d.HasMeasure != o.HasMeasure {
		return false
	}
	for i := range d.Point {
		if math.Abs(d.Point[i]-o.Point[i]) > tol {
			return false
		}
	}
	return !d.HasMeasure || math.Abs(d.Measure-o.Measure) <= tol
}

// nanoScale converts model units to the fixed-point integers stored in
// canonical text. 1e-9 resolution keeps round trips well inside
// DescriptorTolerance.
const nanoScale = 1e9

// Nano converts a model-unit quantity to fixed-point nano-units.
func Nano(v float64) int64 {
	return int64(math.Round(v * nanoScale))
}

// FromNano is the inverse of Nano.
func FromNano(n int64) float64 {
	return float64(n) / nanoScale
}

// EncodeDescriptor renders a descriptor as a float-free IRObject.
func EncodeDescriptor(d Descriptor) IRObject {
	obj := IRObject{
		"geometry": IRString(d.Geometry),
		"point": IRArray{
			IRInt(Nano(d.Point[0])),
			IRInt(Nano(d.Point[1])),
			IRInt(Nano(d.Point[2])),
		},
	}
	if d.HasMeasure {
		obj["measure"] = IRInt(Nano(d.Measure))
	}
	return obj
}

// DecodeDescriptor is the inverse of EncodeDescriptor.
func DecodeDescriptor(obj IRObject) (Descriptor, error) {
	var d Descriptor
	geometry, err := obj.String("geometry")
	if err != nil {
		return d, err
	}
	d.Geometry = geometry

	point, err := obj.Array("point")
	if err != nil {
		return d, err
	}
	if len(point) != 3 {
		return d, fmt.Errorf("field %q: expected 3 coordinates, got %d", "point", len(point))
	}
	for i, c := range point {
		n, ok := c.(IRInt)
		if !ok {
			return d, fmt.Errorf("field %q[%d]: expected int, got %T", "point", i, c)
		}
		d.Point[i] = FromNano(int64(n))
	}

	if _, ok := obj["measure"]; ok {
		m, err := obj.Int("measure")
		if err != nil {
			return d, err
		}
		d.Measure = FromNano(m)
		d.HasMeasure = true
	}
	return d, nil
}
