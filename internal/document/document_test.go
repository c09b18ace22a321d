package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/regen/internal/ir"
)

const bracketYAML = `
id: bracket
base_bodies: [stock]
sketches:
  s1:
    z: 1
    regions:
      - [[0, 0], [10, 0], [10, 10], [0, 10]]
operations:
  - id: pad
    type: extrude
    input: {sketch: s1, region: 0}
    params: {distance: 5}
    result: [body1]
  - id: round
    type: fillet
    input: {body: body1, face: pad/face-1}
    params: {radius: 1}
    result: [body1]
    suppressed: true
  - id: merge
    type: boolean
    input: {body: body1}
    params: {mode: union, tool: stock}
    result: [body1]
`

func pad(id string) ir.OperationRecord {
	return ir.OperationRecord{
		ID:           id,
		Input:        ir.SketchRegionRef{Sketch: "s1"},
		Params:       ir.ExtrudeParams{Distance: 1},
		ResultBodies: []string{id + "-body"},
	}
}

func TestAppend_AdvancesCursorAtEnd(t *testing.T) {
	d := New("doc")
	require.NoError(t, d.Append(pad("a")))
	require.NoError(t, d.Append(pad("b")))
	assert.Equal(t, 2, d.AppliedCount())

	require.NoError(t, d.SetAppliedCount(1))
	require.NoError(t, d.Append(pad("c")))
	assert.Equal(t, 1, d.AppliedCount(), "a rolled-back cursor stays put")
	assert.Equal(t, 3, d.Len())
}

func TestAppend_Rejections(t *testing.T) {
	d := New("doc")
	require.NoError(t, d.Append(pad("a")))

	assert.Error(t, d.Append(pad("a")), "duplicate op id")
	assert.Error(t, d.Append(ir.OperationRecord{ID: "x"}), "invalid record")
	assert.Equal(t, 1, d.Len())
}

func TestOperations_ReturnsCopy(t *testing.T) {
	d := New("doc")
	require.NoError(t, d.Append(pad("a")))

	ops := d.Operations()
	ops[0].ID = "mutated"

	got, ok := d.Operation("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)
}

func TestSetAppliedCount_Range(t *testing.T) {
	d := New("doc")
	require.NoError(t, d.Append(pad("a")))

	assert.NoError(t, d.SetAppliedCount(0))
	assert.Error(t, d.SetAppliedCount(2))
	assert.Error(t, d.SetAppliedCount(-1))
}

func TestSuppress(t *testing.T) {
	d := New("doc")
	require.NoError(t, d.Append(pad("a")))
	require.NoError(t, d.Append(pad("b")))

	require.NoError(t, d.Suppress("b", true))
	assert.True(t, d.IsSuppressed("b"))
	assert.Equal(t, []string{"b"}, d.Suppressed())

	require.NoError(t, d.Suppress("b", false))
	assert.False(t, d.IsSuppressed("b"))
	assert.Error(t, d.Suppress("nope", true))
}

func TestProfile(t *testing.T) {
	d := New("doc")
	require.NoError(t, d.AddSketch("s", Sketch{Z: 2, Regions: [][][2]float64{{{0, 0}, {1, 0}, {0, 1}}}}))

	p, ok := d.Profile("s", 0)
	require.True(t, ok)
	assert.Equal(t, 2.0, p.Z)
	assert.Len(t, p.Points, 3)

	_, ok = d.Profile("s", 1)
	assert.False(t, ok)
	_, ok = d.Profile("missing", 0)
	assert.False(t, ok)

	assert.Error(t, d.AddSketch("bad", Sketch{Regions: [][][2]float64{{{0, 0}, {1, 0}}}}))
}

func TestDecodeYAML(t *testing.T) {
	d, err := DecodeYAML([]byte(bracketYAML))
	require.NoError(t, err)

	assert.Equal(t, "bracket", d.ID)
	assert.Equal(t, []string{"stock"}, d.BaseBodies())
	assert.Equal(t, 3, d.AppliedCount())
	assert.True(t, d.IsSuppressed("round"))

	ops := d.Operations()
	require.Len(t, ops, 3)
	assert.Equal(t, ir.SketchRegionRef{Sketch: "s1", Region: 0}, ops[0].Input)
	assert.Equal(t, ir.ExtrudeParams{Distance: 5}, ops[0].Params)
	assert.Equal(t, ir.FaceRef{Body: "body1", Element: "pad/face-1"}, ops[1].Input)
	assert.Equal(t, ir.BooleanParams{Mode: ir.BooleanUnion, Tool: "stock"}, ops[2].Params)
	assert.Equal(t, []string{"body1", "stock"}, ops[2].ReferencedBodies())
}

func TestDecodeYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "id: d\nbogus: 1\noperations: []\n"},
		{"missing id", "operations: []\n"},
		{"unknown type", "id: d\noperations:\n  - {id: a, type: loft, input: {body: b}, result: [b]}\n"},
		{"no input", "id: d\noperations:\n  - {id: a, type: extrude, params: {distance: 1}, result: [b]}\n"},
		{"face without body", "id: d\noperations:\n  - {id: a, type: fillet, input: {face: f}, result: [b]}\n"},
		{"applied out of range", "id: d\napplied: 4\noperations: []\n"},
		{"wrong input variant", "id: d\noperations:\n  - {id: a, type: fillet, input: {body: b}, params: {radius: 1}, result: [b]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeYAML([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestEncodeYAML_RoundTrip(t *testing.T) {
	d, err := DecodeYAML([]byte(bracketYAML))
	require.NoError(t, err)
	require.NoError(t, d.SetAppliedCount(2))

	data, err := EncodeYAML(d)
	require.NoError(t, err)

	back, err := DecodeYAML(data)
	require.NoError(t, err)
	assert.Equal(t, d.Operations(), back.Operations())
	assert.Equal(t, 2, back.AppliedCount())
	assert.Equal(t, d.Suppressed(), back.Suppressed())
	assert.Equal(t, d.SketchIDs(), back.SketchIDs())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(bracketYAML), 0o644))

	d, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, "bracket", d.ID)

	_, err = LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
