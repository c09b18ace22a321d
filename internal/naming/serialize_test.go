package naming

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/kernel"
)

func TestString_EmptyMap(t *testing.T) {
	assert.Equal(t, `{"entries":[],"retired":[],"version":1}`, New().String())
}

func TestString_Canonical(t *testing.T) {
	m := New()
	require.True(t, m.Register("b", ir.KindEdge, 1, ir.Descriptor{Geometry: "line", Point: [3]float64{0.5, 0, 0}, Measure: 1, HasMeasure: true}, "op"))
	require.True(t, m.Register("a", ir.KindVertex, 2, ir.Descriptor{Geometry: "point"}, ""))

	want := `{"entries":[` +
		`{"descriptor":{"geometry":"point","point":[0,0,0]},"id":"a","kind":"vertex","origin_op":"","sources":[]},` +
		`{"descriptor":{"geometry":"line","measure":1000000000,"point":[500000000,0,0]},"id":"b","kind":"edge","origin_op":"op","sources":[]}` +
		`],"retired":[],"version":1}`
	assert.Equal(t, want, m.String())
}

func TestParse_RoundTrip(t *testing.T) {
	m := boxMap(t)
	m.Update(kernel.ChangeSet{
		Changes: []kernel.Change{
			{Relation: kernel.Modified, Input: 1, Outputs: []kernel.ShapeRef{20, 21}},
			{Relation: kernel.Deleted, Input: 2},
		},
		Outputs: []kernel.ShapeInfo{
			face(20, planeAt(0.123456789, -1.5, 1e-7, 2.25)),
			face(21, planeAt(3.000000001, 2, 0, 0.75)),
		},
	}, "op-1")

	text := m.String()

	parsed := New()
	require.NoError(t, parsed.Parse(text))
	assert.Equal(t, text, parsed.String())
	assert.Equal(t, m.IDs(), parsed.IDs())
	assert.True(t, parsed.Retired("box/face-1"))

	for _, want := range m.Entries() {
		got, ok := parsed.Find(want.ID)
		require.True(t, ok, want.ID)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Sources, got.Sources)
		assert.Equal(t, want.OriginOp, got.OriginOp)
		assert.True(t, want.Descriptor.ApproxEqual(got.Descriptor, ir.DescriptorTolerance), want.ID)
		assert.Equal(t, kernel.NoShape, got.Shape, "parsed entries are detached")
	}
	assert.True(t, Diff(m, parsed, ir.DescriptorTolerance).Empty())
}

func TestParse_MalformedLeavesMapUnchanged(t *testing.T) {
	tests := []struct {
		name string
		text string
		path string
	}{
		{"not json", `{`, ""},
		{"float", `{"entries":[],"retired":[],"version":1.5}`, ""},
		{"missing version", `{"entries":[],"retired":[]}`, "version"},
		{"wrong version", `{"entries":[],"retired":[],"version":2}`, "version"},
		{"missing entries", `{"retired":[],"version":1}`, "entries"},
		{"entry not object", `{"entries":[1],"retired":[],"version":1}`, "entries[0]"},
		{"bad kind", `{"entries":[{"descriptor":{"geometry":"p","point":[0,0,0]},"id":"a","kind":"solid","origin_op":"","sources":[]}],"retired":[],"version":1}`, "entries[0].kind"},
		{"short point", `{"entries":[{"descriptor":{"geometry":"p","point":[0,0]},"id":"a","kind":"face","origin_op":"","sources":[]}],"retired":[],"version":1}`, "entries[0].descriptor"},
		{"self source", `{"entries":[{"descriptor":{"geometry":"p","point":[0,0,0]},"id":"a","kind":"face","origin_op":"","sources":["a"]}],"retired":[],"version":1}`, "entries[0].sources[0]"},
		{"duplicate id", `{"entries":[` +
			`{"descriptor":{"geometry":"p","point":[0,0,0]},"id":"a","kind":"face","origin_op":"","sources":[]},` +
			`{"descriptor":{"geometry":"p","point":[0,0,0]},"id":"a","kind":"face","origin_op":"","sources":[]}` +
			`],"retired":[],"version":1}`, "entries[1].id"},
		{"live and retired", `{"entries":[{"descriptor":{"geometry":"p","point":[0,0,0]},"id":"a","kind":"face","origin_op":"","sources":[]}],"retired":["a"],"version":1}`, "entries[0].id"},
		{"source cycle", `{"entries":[` +
			`{"descriptor":{"geometry":"p","point":[0,0,0]},"id":"a","kind":"face","origin_op":"","sources":["b"]},` +
			`{"descriptor":{"geometry":"p","point":[0,0,0]},"id":"b","kind":"face","origin_op":"","sources":["a"]}` +
			`],"retired":[],"version":1}`, "entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := boxMap(t)
			before := m.String()

			err := m.Parse(tt.text)
			require.Error(t, err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.path, pe.Path)
			assert.True(t, strings.HasPrefix(err.Error(), "identity map: "))

			assert.Equal(t, before, m.String(), "map must be untouched")
			assert.Equal(t, []ir.ElementID{"box/face-0"}, m.FindIDsByShape(1), "shape bindings must survive")
		})
	}
}

func TestParse_SourcesMayNameRetiredIDs(t *testing.T) {
	text := `{"entries":[{"descriptor":{"geometry":"plane","point":[0,0,0]},"id":"e/face-gen-0","kind":"face","origin_op":"f","sources":["e"]}],"retired":["e"],"version":1}`

	m, err := ParseMap(text)
	require.NoError(t, err)
	assert.Equal(t, text, m.String())
}

func TestDiff(t *testing.T) {
	a := New()
	require.True(t, a.Register("same", ir.KindFace, 1, planeAt(0, 0, 0, 1), ""))
	require.True(t, a.Register("moved", ir.KindFace, 2, planeAt(0, 0, 0, 1), ""))
	require.True(t, a.Register("gone", ir.KindFace, 3, planeAt(0, 0, 0, 1), ""))

	b := New()
	require.True(t, b.Register("same", ir.KindFace, 9, planeAt(0, 0, 1e-9, 1), "other-op"))
	require.True(t, b.Register("moved", ir.KindFace, 2, planeAt(0, 0, 1, 1), ""))
	require.True(t, b.Register("new", ir.KindFace, 4, planeAt(0, 0, 0, 1), ""))

	d := Diff(a, b, ir.DescriptorTolerance)
	assert.Equal(t, []ir.ElementID{"new"}, d.Added)
	assert.Equal(t, []ir.ElementID{"gone"}, d.Removed)
	assert.Equal(t, []ir.ElementID{"moved"}, d.Changed)
	assert.False(t, d.Empty())
}
