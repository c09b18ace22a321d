package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/kernel"
)

func planeAt(x, y, z, area float64) ir.Descriptor {
	return ir.Descriptor{Geometry: "plane", Point: [3]float64{x, y, z}, Measure: area, HasMeasure: true}
}

func face(ref kernel.ShapeRef, desc ir.Descriptor) kernel.ShapeInfo {
	return kernel.ShapeInfo{Ref: ref, Kind: ir.KindFace, Descriptor: desc}
}

func TestRegister_NewID(t *testing.T) {
	m := New()

	ok := m.Register("base/face-0", ir.KindFace, 10, planeAt(0, 0, 0, 1), "")
	require.True(t, ok)

	e, found := m.Find("base/face-0")
	require.True(t, found)
	assert.Equal(t, ir.KindFace, e.Kind)
	assert.Equal(t, kernel.ShapeRef(10), e.Shape)
	assert.Empty(t, e.Sources)
	assert.Equal(t, 1, m.Len())
}

func TestRegister_DuplicateReturnsFalse(t *testing.T) {
	m := New()
	require.True(t, m.Register("a", ir.KindFace, 1, planeAt(0, 0, 0, 1), ""))

	before := m.String()
	assert.False(t, m.Register("a", ir.KindEdge, 2, ir.Descriptor{Geometry: "line"}, "op"))
	assert.Equal(t, before, m.String(), "failed register must not mutate")

	e, _ := m.Find("a")
	assert.Equal(t, ir.KindFace, e.Kind)
	assert.Equal(t, kernel.ShapeRef(1), e.Shape)
}

func TestRegister_RejectsInvalid(t *testing.T) {
	m := New()
	assert.False(t, m.Register("", ir.KindFace, 1, ir.Descriptor{}, ""))
	assert.False(t, m.Register("x", ir.ElementKind(0), 1, ir.Descriptor{}, ""))
	assert.Equal(t, 0, m.Len())
}

func TestRegister_RetiredIDRefused(t *testing.T) {
	m := New()
	require.True(t, m.Register("a", ir.KindFace, 1, planeAt(0, 0, 0, 1), ""))
	m.Update(kernel.ChangeSet{Changes: []kernel.Change{{Relation: kernel.Deleted, Input: 1}}}, "op-1")

	assert.True(t, m.Retired("a"))
	assert.False(t, m.Register("a", ir.KindFace, 2, planeAt(0, 0, 0, 1), ""))
}

func TestFind_Missing(t *testing.T) {
	m := New()
	_, ok := m.Find("nope")
	assert.False(t, ok)
}

func TestFind_ReturnsCopy(t *testing.T) {
	m := New()
	require.True(t, m.Register("a", ir.KindFace, 1, planeAt(0, 0, 0, 1), ""))

	e, _ := m.Find("a")
	e.Sources = append(e.Sources, "tampered")
	e.Shape = 99

	again, _ := m.Find("a")
	assert.Empty(t, again.Sources)
	assert.Equal(t, kernel.ShapeRef(1), again.Shape)
}

func TestFindIDsByShape_ReturnsFullSortedSet(t *testing.T) {
	m := New()
	require.True(t, m.Register("b", ir.KindFace, 7, planeAt(0, 0, 0, 1), ""))
	require.True(t, m.Register("a", ir.KindFace, 7, planeAt(0, 0, 0, 1), ""))
	require.True(t, m.Register("c", ir.KindFace, 8, planeAt(0, 0, 0, 1), ""))

	assert.Equal(t, []ir.ElementID{"a", "b"}, m.FindIDsByShape(7))
	assert.Equal(t, []ir.ElementID{"c"}, m.FindIDsByShape(8))
	assert.Empty(t, m.FindIDsByShape(9))
	assert.Empty(t, m.FindIDsByShape(kernel.NoShape))
}

func TestIDs_Sorted(t *testing.T) {
	m := New()
	for _, id := range []ir.ElementID{"z", "a", "m"} {
		require.True(t, m.Register(id, ir.KindVertex, 0, ir.Descriptor{Geometry: "point"}, ""))
	}
	assert.Equal(t, []ir.ElementID{"a", "m", "z"}, m.IDs())
}

func TestAttach(t *testing.T) {
	m := New()
	require.True(t, m.Register("a", ir.KindFace, kernel.NoShape, planeAt(0, 0, 0, 1), ""))

	assert.True(t, m.Attach("a", 5))
	assert.Equal(t, []ir.ElementID{"a"}, m.FindIDsByShape(5))
	assert.False(t, m.Attach("missing", 5))
}

func TestClone_Independent(t *testing.T) {
	m := New()
	require.True(t, m.Register("a", ir.KindFace, 1, planeAt(0, 0, 0, 1), ""))

	c := m.Clone()
	c.Update(kernel.ChangeSet{Changes: []kernel.Change{{Relation: kernel.Deleted, Input: 1}}}, "op-1")

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.Retired("a"))
	assert.False(t, m.Retired("a"))
}
