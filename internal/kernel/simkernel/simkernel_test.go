package simkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/kernel"
)

func square(size, z float64) *kernel.Profile {
	return &kernel.Profile{Points: [][2]float64{{0, 0}, {size, 0}, {size, size}, {0, size}}, Z: z}
}

func countKinds(infos []kernel.ShapeInfo) map[ir.ElementKind]int {
	out := make(map[ir.ElementKind]int)
	for _, info := range infos {
		out[info.Kind]++
	}
	return out
}

func relations(cs kernel.ChangeSet, r kernel.Relation) []kernel.Change {
	var out []kernel.Change
	for _, c := range cs.Changes {
		if c.Relation == r {
			out = append(out, c)
		}
	}
	return out
}

func TestLoadBaseBody_Box(t *testing.T) {
	k := New()

	body, err := k.LoadBaseBody("base")
	require.NoError(t, err)
	require.True(t, k.Alive(body))

	infos := k.Explore(body)
	counts := countKinds(infos)
	assert.Equal(t, 6, counts[ir.KindFace])
	assert.Equal(t, 12, counts[ir.KindEdge])
	assert.Equal(t, 8, counts[ir.KindVertex])

	top := infos[1]
	assert.Equal(t, "plane", top.Descriptor.Geometry)
	assert.InDelta(t, 100, top.Descriptor.Measure, 1e-9)
	assert.InDelta(t, 10, top.Descriptor.Point[2], 1e-9)

	owner, ok := k.BodyOf(top.Ref)
	require.True(t, ok)
	assert.Equal(t, body, owner)
}

func TestLoadBaseBody_Placement(t *testing.T) {
	k := New(WithBaseBody("tool", [3]float64{1, 2, 3}, [3]float64{2, 4, 6}))

	body, err := k.LoadBaseBody("tool")
	require.NoError(t, err)
	top := k.Explore(body)[1]
	assert.InDelta(t, 2, top.Descriptor.Measure, 1e-9)
	assert.InDelta(t, 6, top.Descriptor.Point[2], 1e-9)
}

func TestReset_RewindsHandles(t *testing.T) {
	k := New()
	first, err := k.LoadBaseBody("a")
	require.NoError(t, err)
	before := k.Explore(first)

	k.Reset()
	assert.False(t, k.Alive(first))
	assert.Empty(t, k.Explore(first))

	second, err := k.LoadBaseBody("a")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, before, k.Explore(second))
}

func TestApplyExtrude(t *testing.T) {
	k := New()

	res, err := k.ApplyExtrude(ir.ExtrudeParams{Distance: 5}, kernel.Inputs{Profile: square(2, 1)})
	require.NoError(t, err)
	require.Len(t, res.Bodies, 1)
	assert.Empty(t, res.Changes.Changes, "every sub-shape of an extrude is new")

	counts := countKinds(res.Changes.Outputs)
	assert.Equal(t, 6, counts[ir.KindFace])
	assert.Equal(t, 12, counts[ir.KindEdge])
	assert.Equal(t, 8, counts[ir.KindVertex])

	bottom, top := res.Changes.Outputs[0], res.Changes.Outputs[1]
	assert.InDelta(t, 1, bottom.Descriptor.Point[2], 1e-9)
	assert.InDelta(t, 6, top.Descriptor.Point[2], 1e-9)
	assert.InDelta(t, 4, top.Descriptor.Measure, 1e-9)
}

func TestApplyExtrude_ClockwiseProfileNormalized(t *testing.T) {
	k := New()
	cw := &kernel.Profile{Points: [][2]float64{{0, 0}, {0, 2}, {2, 2}, {2, 0}}}

	a, err := k.ApplyExtrude(ir.ExtrudeParams{Distance: 1}, kernel.Inputs{Profile: cw})
	require.NoError(t, err)
	b, err := k.ApplyExtrude(ir.ExtrudeParams{Distance: 1}, kernel.Inputs{Profile: square(2, 0)})
	require.NoError(t, err)

	assert.Equal(t, len(a.Changes.Outputs), len(b.Changes.Outputs))
	assert.InDelta(t, 4, a.Changes.Outputs[1].Descriptor.Measure, 1e-9)
}

func TestApplyExtrude_InvalidParams(t *testing.T) {
	k := New()

	tests := []struct {
		name    string
		params  ir.ExtrudeParams
		profile *kernel.Profile
	}{
		{"zero distance", ir.ExtrudeParams{Distance: 0}, square(1, 0)},
		{"missing profile", ir.ExtrudeParams{Distance: 1}, nil},
		{"degenerate profile", ir.ExtrudeParams{Distance: 1}, &kernel.Profile{Points: [][2]float64{{0, 0}, {1, 0}, {2, 0}}}},
		{"too few points", ir.ExtrudeParams{Distance: 1}, &kernel.Profile{Points: [][2]float64{{0, 0}, {1, 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.ApplyExtrude(tt.params, kernel.Inputs{Profile: tt.profile})
			require.Error(t, err)
			assert.True(t, kernel.IsError(err))
		})
	}
}

func TestApplyRevolve_Partial(t *testing.T) {
	k := New()
	profile := &kernel.Profile{Points: [][2]float64{{1, 0}, {2, 0}, {2, 1}, {1, 1}}}

	res, err := k.ApplyRevolve(ir.RevolveParams{AngleDeg: 90}, kernel.Inputs{Profile: profile})
	require.NoError(t, err)

	var geometries []string
	for _, info := range res.Changes.Outputs {
		if info.Kind == ir.KindFace {
			geometries = append(geometries, info.Descriptor.Geometry)
		}
	}
	// bottom annulus, outer cylinder, top annulus, inner cylinder, two caps
	assert.Equal(t, []string{"plane", "cylinder", "plane", "cylinder", "plane", "plane"}, geometries)
}

func TestApplyRevolve_FullHasNoCaps(t *testing.T) {
	k := New()
	profile := &kernel.Profile{Points: [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}

	res, err := k.ApplyRevolve(ir.RevolveParams{AngleDeg: 360}, kernel.Inputs{Profile: profile})
	require.NoError(t, err)

	counts := countKinds(res.Changes.Outputs)
	// The axis segment produces no face: bottom disc, cylinder, top disc.
	assert.Equal(t, 3, counts[ir.KindFace])
	assert.Equal(t, 0, counts[ir.KindVertex])
}

func TestApplyRevolve_InvalidParams(t *testing.T) {
	k := New()

	_, err := k.ApplyRevolve(ir.RevolveParams{AngleDeg: 0}, kernel.Inputs{Profile: square(1, 0)})
	assert.True(t, kernel.IsError(err))

	_, err = k.ApplyRevolve(ir.RevolveParams{AngleDeg: 400}, kernel.Inputs{Profile: square(1, 0)})
	assert.True(t, kernel.IsError(err))

	crossing := &kernel.Profile{Points: [][2]float64{{-1, 0}, {1, 0}, {1, 1}}}
	_, err = k.ApplyRevolve(ir.RevolveParams{AngleDeg: 90}, kernel.Inputs{Profile: crossing})
	assert.True(t, kernel.IsError(err))
}

func TestApplyFillet(t *testing.T) {
	k := New()
	body, err := k.LoadBaseBody("b")
	require.NoError(t, err)
	top := k.Explore(body)[1]

	res, err := k.ApplyFillet(ir.FilletParams{Radius: 1}, kernel.Inputs{Face: top.Ref})
	require.NoError(t, err)
	assert.Equal(t, []kernel.ShapeRef{body}, res.Bodies)

	modified := relations(res.Changes, kernel.Modified)
	require.Len(t, modified, 1)
	assert.Equal(t, top.Ref, modified[0].Input)
	assert.False(t, k.Alive(top.Ref))

	shrunk, ok := res.Changes.Info(modified[0].Outputs[0])
	require.True(t, ok)
	assert.InDelta(t, 100-40, shrunk.Descriptor.Measure, 1e-6)

	generated := relations(res.Changes, kernel.Generated)
	require.Len(t, generated, 4)
	for _, g := range generated {
		require.Len(t, g.Outputs, 2)
		blend, ok := res.Changes.Info(g.Outputs[0])
		require.True(t, ok)
		assert.Equal(t, ir.KindFace, blend.Kind)
		assert.Equal(t, "cylinder", blend.Descriptor.Geometry)
		edge, ok := res.Changes.Info(g.Outputs[1])
		require.True(t, ok)
		assert.Equal(t, ir.KindEdge, edge.Kind)
		assert.InDelta(t, 8, edge.Descriptor.Measure, 1e-9)
	}
	assert.Len(t, relations(res.Changes, kernel.Deleted), 4)
}

func TestApplyChamfer_PlanarBlends(t *testing.T) {
	k := New()
	body, err := k.LoadBaseBody("b")
	require.NoError(t, err)
	top := k.Explore(body)[1]

	res, err := k.ApplyChamfer(ir.ChamferParams{Distance: 0.5}, kernel.Inputs{Face: top.Ref})
	require.NoError(t, err)
	for _, g := range relations(res.Changes, kernel.Generated) {
		blend, _ := res.Changes.Info(g.Outputs[0])
		assert.Equal(t, "plane", blend.Descriptor.Geometry)
	}
}

func TestApplyFillet_Rejections(t *testing.T) {
	k := New()
	body, err := k.LoadBaseBody("b")
	require.NoError(t, err)
	infos := k.Explore(body)
	top := infos[1]

	_, err = k.ApplyFillet(ir.FilletParams{Radius: 5}, kernel.Inputs{Face: top.Ref})
	assert.True(t, kernel.IsError(err), "radius must stay below half the edge length")

	_, err = k.ApplyFillet(ir.FilletParams{Radius: -1}, kernel.Inputs{Face: top.Ref})
	assert.True(t, kernel.IsError(err))

	_, err = k.ApplyFillet(ir.FilletParams{Radius: 1}, kernel.Inputs{Face: infos[6].Ref})
	assert.True(t, kernel.IsError(err), "edges are not faces")

	_, err = k.ApplyFillet(ir.FilletParams{Radius: 1}, kernel.Inputs{Face: 9999})
	assert.True(t, kernel.IsError(err))

	assert.True(t, k.Alive(top.Ref), "rejected calls leave the body untouched")
}

func TestApplyShell(t *testing.T) {
	k := New()
	body, err := k.LoadBaseBody("b")
	require.NoError(t, err)
	top := k.Explore(body)[1]

	res, err := k.ApplyShell(ir.ShellParams{Thickness: 1}, kernel.Inputs{Face: top.Ref})
	require.NoError(t, err)

	deleted := relations(res.Changes, kernel.Deleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, top.Ref, deleted[0].Input)
	assert.Len(t, relations(res.Changes, kernel.Modified), 5)
	assert.Len(t, relations(res.Changes, kernel.Generated), 5)
	assert.Equal(t, 10, countKinds(res.Changes.Outputs)[ir.KindFace])

	_, err = k.ApplyShell(ir.ShellParams{Thickness: 6}, kernel.Inputs{Face: res.Changes.Outputs[0].Ref})
	assert.True(t, kernel.IsError(err))
}

func TestApplyBoolean_CutSplitsFaces(t *testing.T) {
	k := New(WithBaseBody("slot", [3]float64{4, -1, 6}, [3]float64{6, 11, 15}))
	target, err := k.LoadBaseBody("block")
	require.NoError(t, err)
	tool, err := k.LoadBaseBody("slot")
	require.NoError(t, err)
	faces := k.Explore(target)
	top, front := faces[1].Ref, faces[2].Ref

	res, err := k.ApplyBoolean(ir.BooleanParams{Mode: ir.BooleanCut, Tool: "slot"}, kernel.Inputs{Body: target, Tool: tool})
	require.NoError(t, err)
	assert.Equal(t, []kernel.ShapeRef{target}, res.Bodies)
	assert.Equal(t, []kernel.ShapeRef{tool}, res.Consumed)
	assert.False(t, k.Alive(tool))

	byInput := make(map[kernel.ShapeRef]kernel.Change)
	for _, c := range relations(res.Changes, kernel.Modified) {
		byInput[c.Input] = c
	}
	assert.Len(t, byInput[top].Outputs, 2, "the slot removes the middle of the top face")
	assert.Len(t, byInput[front].Outputs, 3, "the front face keeps all three pieces")

	// Floor and two walls of the slot.
	assert.Len(t, relations(res.Changes, kernel.Generated), 3)
}

func TestApplyBoolean_UnionMergesCoplanarFaces(t *testing.T) {
	k := New(WithBaseBody("tool", [3]float64{0, 5, 0}, [3]float64{10, 15, 10}))
	target, err := k.LoadBaseBody("block")
	require.NoError(t, err)
	tool, err := k.LoadBaseBody("tool")
	require.NoError(t, err)
	targetBottom := k.Explore(target)[0].Ref
	toolBottom := k.Explore(tool)[0].Ref

	res, err := k.ApplyBoolean(ir.BooleanParams{Mode: ir.BooleanUnion, Tool: "tool"}, kernel.Inputs{Body: target, Tool: tool})
	require.NoError(t, err)

	var merged []kernel.Change
	for _, c := range relations(res.Changes, kernel.Modified) {
		if c.Input == targetBottom || c.Input == toolBottom {
			merged = append(merged, c)
		}
	}
	require.Len(t, merged, 2)
	assert.Equal(t, merged[0].Outputs, merged[1].Outputs, "both bottoms continue as one face")

	info, ok := res.Changes.Info(merged[0].Outputs[0])
	require.True(t, ok)
	assert.InDelta(t, 150, info.Descriptor.Measure, 1e-9)
}

func TestApplyBoolean_Rejections(t *testing.T) {
	k := New(WithBaseBody("far", [3]float64{20, 20, 20}, [3]float64{30, 30, 30}))
	a, err := k.LoadBaseBody("a")
	require.NoError(t, err)
	far, err := k.LoadBaseBody("far")
	require.NoError(t, err)

	_, err = k.ApplyBoolean(ir.BooleanParams{Mode: ir.BooleanIntersect, Tool: "far"}, kernel.Inputs{Body: a, Tool: far})
	assert.True(t, kernel.IsError(err))

	_, err = k.ApplyBoolean(ir.BooleanParams{Mode: ir.BooleanUnion, Tool: "a"}, kernel.Inputs{Body: a, Tool: a})
	assert.True(t, kernel.IsError(err))

	_, err = k.ApplyBoolean(ir.BooleanParams{Mode: "xor", Tool: "far"}, kernel.Inputs{Body: a, Tool: far})
	assert.True(t, kernel.IsError(err))
}

func TestDeterministicReplay(t *testing.T) {
	run := func() []kernel.ShapeInfo {
		k := New(WithBaseBody("slot", [3]float64{4, -1, 6}, [3]float64{6, 11, 15}))
		target, err := k.LoadBaseBody("block")
		require.NoError(t, err)
		tool, err := k.LoadBaseBody("slot")
		require.NoError(t, err)
		res, err := k.ApplyBoolean(ir.BooleanParams{Mode: ir.BooleanCut, Tool: "slot"}, kernel.Inputs{Body: target, Tool: tool})
		require.NoError(t, err)
		return res.Changes.Outputs
	}
	assert.Equal(t, run(), run())
}
