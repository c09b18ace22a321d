package regen

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/kernel/simkernel"
	"github.com/roach88/regen/internal/testutil"
)

// newDoc builds a document with one 10x10 square sketch "s1" at z=0.
func newDoc(t *testing.T, base []string, ops ...ir.OperationRecord) *document.Document {
	return testutil.Document(t, "test", base, ops...)
}

func extrude(id string, dist float64, body string) ir.OperationRecord {
	return testutil.Extrude(id, "s1", 0, dist, body)
}

func fillet(id, body, face string, radius float64) ir.OperationRecord {
	return testutil.Fillet(id, body, face, radius)
}

func boolean(id string, mode ir.BooleanMode, body, tool string) ir.OperationRecord {
	return testutil.Boolean(id, mode, body, tool)
}

func newEngine(opts ...simkernel.Option) *Engine {
	return New(simkernel.New(opts...), WithRunTokens(NewFixedGenerator("run-1", "run-2", "run-3")))
}

func idsWithPrefix(e *Engine, prefix string) []ir.ElementID {
	var out []ir.ElementID
	for _, id := range e.Map().IDs() {
		if strings.HasPrefix(string(id), prefix) {
			out = append(out, id)
		}
	}
	return out
}

func TestRegenerate_Extrude(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, nil, extrude("pad", 5, "body1"))

	res := e.Regenerate(context.Background(), doc)

	assert.Equal(t, Success, res.Status)
	assert.Empty(t, res.Failed)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, []string{"body1"}, res.LiveBodies)
	assert.Equal(t, 26, res.Elements)

	top, ok := e.Map().Find("pad/face-1")
	require.True(t, ok)
	assert.Equal(t, "pad", top.OriginOp)
	assert.InDelta(t, 5, top.Descriptor.Point[2], 1e-9)
	assert.Len(t, idsWithPrefix(e, "pad/edge-"), 12)
	assert.Len(t, idsWithPrefix(e, "pad/vertex-"), 8)
}

func TestRegenerate_BaseBodyNaming(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, []string{"stock"})

	res := e.Regenerate(context.Background(), doc)

	assert.Equal(t, Success, res.Status)
	assert.Equal(t, []string{"stock"}, res.LiveBodies)
	assert.Len(t, idsWithPrefix(e, "stock/face-"), 6)

	entry, ok := e.Map().Find("stock/face-0")
	require.True(t, ok)
	assert.Empty(t, entry.OriginOp)
}

func TestRegenerate_FilletKeepsFaceName(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, nil,
		extrude("pad", 5, "body1"),
		fillet("round", "body1", "pad/face-1", 1),
	)

	res := e.Regenerate(context.Background(), doc)
	require.Equal(t, Success, res.Status, res.Failed)

	top, ok := e.Map().Find("pad/face-1")
	require.True(t, ok, "the filleted face keeps its name")
	assert.Equal(t, "round", top.OriginOp)
	assert.InDelta(t, 100-40, top.Descriptor.Measure, 1e-6)

	var blends int
	for _, entry := range e.Map().Entries() {
		if strings.HasSuffix(string(entry.ID), "/face-gen-0") {
			blends++
			assert.NotEmpty(t, entry.Sources)
			assert.Equal(t, "round", entry.OriginOp)
		}
	}
	assert.Equal(t, 4, blends)
}

func TestRegenerate_CascadingFailure(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, nil,
		extrude("pad", 0, "body1"),
		fillet("round", "body1", "pad/face-1", 1),
	)

	res := e.Regenerate(context.Background(), doc)

	assert.Equal(t, CriticalFailure, res.Status)
	assert.Equal(t, []string{"pad", "round"}, res.FailedOps())

	f, ok := res.FailureOf("pad")
	require.True(t, ok)
	assert.Equal(t, ErrCodeKernelError, f.Code)

	f, ok = res.FailureOf("round")
	require.True(t, ok)
	assert.Equal(t, ErrCodeUpstreamFailed, f.Code)
	assert.Contains(t, f.Message, "pad")
	assert.Empty(t, res.LiveBodies)
}

func TestRegenerate_PartialFailureWithdrawsBody(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, []string{"stock"},
		extrude("pad", 5, "body1"),
		fillet("round", "body1", "pad/face-1", 100),
	)

	res := e.Regenerate(context.Background(), doc)

	assert.Equal(t, PartialFailure, res.Status)
	assert.Equal(t, []string{"round"}, res.FailedOps())
	assert.Equal(t, []string{"stock"}, res.LiveBodies)
	assert.True(t, e.Map().Retired("pad/face-1"))
	assert.Empty(t, idsWithPrefix(e, "pad/"))
	assert.Len(t, idsWithPrefix(e, "stock/"), 26)
}

func TestRegenerate_BodyCountMismatchRetiresChangedBody(t *testing.T) {
	e := newEngine()
	round := fillet("round", "body1", "pad/face-1", 0.5)
	round.ResultBodies = []string{"body1", "body2"}
	doc := newDoc(t, nil, extrude("pad", 5, "body1"), round)

	res := e.Regenerate(context.Background(), doc)

	assert.Equal(t, PartialFailure, res.Status)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, ErrCodeKernelError, res.Failed[0].Code)
	assert.Empty(t, res.LiveBodies)
	assert.Equal(t, 0, res.Elements)
	assert.True(t, e.Map().Retired("pad/face-1"))
	for _, id := range e.Map().IDs() {
		entry, _ := e.Map().Find(id)
		assert.True(t, e.kernel.Alive(entry.Shape), "%s is live on a dead shape", id)
	}
}

func TestRegenerate_IndependentBranchContinues(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, nil,
		extrude("bad", 0, "body1"),
		extrude("good", 3, "body2"),
		fillet("round", "body2", "good/face-1", 1),
	)

	res := e.Regenerate(context.Background(), doc)

	assert.Equal(t, PartialFailure, res.Status)
	assert.Equal(t, []string{"bad"}, res.FailedOps())
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, []string{"body2"}, res.LiveBodies)
}

func TestRegenerate_UnresolvedReferences(t *testing.T) {
	tests := []struct {
		name string
		op   ir.OperationRecord
	}{
		{"unknown element", fillet("round", "body1", "nope/face-9", 1)},
		{"unknown body", fillet("round", "ghost", "pad/face-1", 1)},
		{"edge is not a face", fillet("round", "body1", "pad/edge-0", 1)},
		{"missing sketch region", ir.OperationRecord{
			ID:           "round",
			Input:        ir.SketchRegionRef{Sketch: "s1", Region: 3},
			Params:       ir.ExtrudeParams{Distance: 1},
			ResultBodies: []string{"body9"},
		}},
		{"unknown tool", boolean("round", ir.BooleanUnion, "body1", "ghost")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine()
			doc := newDoc(t, nil, extrude("pad", 5, "body1"), tt.op)

			res := e.Regenerate(context.Background(), doc)

			assert.Equal(t, PartialFailure, res.Status)
			f, ok := res.FailureOf("round")
			require.True(t, ok)
			assert.Equal(t, ErrCodeUnresolvedReference, f.Code)
		})
	}
}

func TestRegenerate_FaceOnOtherBodyIsUnresolved(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, nil,
		extrude("pad", 5, "body1"),
		extrude("pad2", 2, "body2"),
		fillet("round", "body2", "pad/face-1", 1),
	)

	res := e.Regenerate(context.Background(), doc)

	f, ok := res.FailureOf("round")
	require.True(t, ok)
	assert.Equal(t, ErrCodeUnresolvedReference, f.Code)
	assert.Contains(t, f.Message, "not on body")
}

func TestRegenerate_AppliedCountIsIdempotent(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, nil,
		extrude("pad", 5, "body1"),
		fillet("round", "body1", "pad/face-1", 1),
	)
	ctx := context.Background()

	first := e.RegenerateToAppliedCount(ctx, doc, 1)
	require.Equal(t, Success, first.Status)
	snapshot := e.Map().String()

	full := e.RegenerateAll(ctx, doc)
	require.Equal(t, Success, full.Status)
	assert.NotEqual(t, snapshot, e.Map().String())

	again := e.RegenerateToAppliedCount(ctx, doc, 1)
	assert.Equal(t, first.Status, again.Status)
	assert.Equal(t, snapshot, e.Map().String(), "rolling back reproduces the earlier identity map exactly")
}

func TestRegenerate_RespectsDocumentCursor(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, nil,
		extrude("pad", 5, "body1"),
		fillet("round", "body1", "pad/face-1", 1),
	)
	require.NoError(t, doc.SetAppliedCount(1))

	res := e.Regenerate(context.Background(), doc)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Succeeded)

	res = e.RegenerateAll(context.Background(), doc)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, 2, res.Succeeded)
}

func TestRegenerate_ZeroOperations(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, nil, extrude("pad", 5, "body1"))

	res := e.RegenerateToAppliedCount(context.Background(), doc, 0)

	assert.Equal(t, Success, res.Status)
	assert.Empty(t, res.LiveBodies)
	assert.Zero(t, e.Map().Len())
}

func TestRegenerate_Suppression(t *testing.T) {
	ctx := context.Background()
	doc := newDoc(t, nil,
		extrude("pad", 5, "body1"),
		fillet("round", "body1", "pad/face-1", 1),
	)
	require.NoError(t, doc.Suppress("round", true))

	e := newEngine()
	res := e.Regenerate(ctx, doc)
	assert.Equal(t, Success, res.Status)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Succeeded)
	suppressed := e.Map().String()

	e.RegenerateToAppliedCount(ctx, doc, 1)
	assert.Equal(t, e.Map().String(), suppressed, "a suppressed op leaves no trace")
}

func TestRegenerate_CycleDetected(t *testing.T) {
	e := newEngine()
	// a reads x, which only b produces; b reads y, which a produces.
	doc := newDoc(t, []string{"stock"},
		ir.OperationRecord{
			ID:           "a",
			Input:        ir.FaceRef{Body: "x", Element: "x/face-1"},
			Params:       ir.FilletParams{Radius: 1},
			ResultBodies: []string{"y"},
		},
		ir.OperationRecord{
			ID:           "b",
			Input:        ir.FaceRef{Body: "y", Element: "y/face-1"},
			Params:       ir.ChamferParams{Distance: 1},
			ResultBodies: []string{"x"},
		},
	)

	res := e.Regenerate(context.Background(), doc)

	assert.Equal(t, CriticalFailure, res.Status)
	assert.Equal(t, []string{"a", "b"}, res.FailedOps())
	for _, f := range res.Failed {
		assert.Equal(t, ErrCodeCycleDetected, f.Code, f.OpID)
	}
	assert.Equal(t, []string{"stock"}, res.LiveBodies)
}

func TestRegenerate_NilDocument(t *testing.T) {
	e := newEngine()
	require.Equal(t, Success, e.Regenerate(context.Background(), newDoc(t, []string{"stock"})).Status)

	var typed *document.Document
	for name, doc := range map[string]document.History{"untyped": nil, "typed": typed} {
		t.Run(name, func(t *testing.T) {
			res := e.Regenerate(context.Background(), doc)
			assert.Equal(t, CriticalFailure, res.Status)
			require.Len(t, res.Failed, 1)
			assert.Equal(t, ErrCodeInvalidDocument, res.Failed[0].Code)
			assert.Empty(t, e.LiveBodies(), "state is reset")
			assert.Zero(t, e.Map().Len())
		})
	}
}

func TestRegenerate_AppliedCountOutOfRange(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, nil, extrude("pad", 5, "body1"))

	for _, n := range []int{-1, 2} {
		res := e.RegenerateToAppliedCount(context.Background(), doc, n)
		assert.Equal(t, CriticalFailure, res.Status)
		require.Len(t, res.Failed, 1)
		assert.Equal(t, ErrCodeInvalidDocument, res.Failed[0].Code)
	}
}

func TestRegenerate_Cancelled(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, []string{"stock"},
		extrude("pad", 5, "body1"),
		fillet("round", "body1", "pad/face-1", 1),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.Regenerate(ctx, doc)

	assert.Equal(t, CriticalFailure, res.Status)
	assert.Equal(t, []string{"pad", "round"}, res.FailedOps())
	for _, f := range res.Failed {
		assert.Equal(t, ErrCodeCancelled, f.Code)
	}
	assert.Equal(t, []string{"stock"}, res.LiveBodies)
}

func TestRegenerate_UnionGivesOneShapeTwoNames(t *testing.T) {
	e := newEngine(simkernel.WithBaseBody("tool", [3]float64{0, 5, 0}, [3]float64{10, 15, 10}))
	doc := newDoc(t, []string{"block", "tool"}, boolean("merge", ir.BooleanUnion, "block", "tool"))

	res := e.Regenerate(context.Background(), doc)
	require.Equal(t, Success, res.Status, res.Failed)
	assert.Equal(t, []string{"block"}, res.LiveBodies)

	bottom, ok := e.Map().Find("block/face-0")
	require.True(t, ok)
	assert.InDelta(t, 150, bottom.Descriptor.Measure, 1e-9)
	assert.Equal(t,
		[]ir.ElementID{"block/face-0", "tool/face-0"},
		e.Map().FindIDsByShape(bottom.Shape),
	)
}

func TestRegenerate_CutSplitsFaceNames(t *testing.T) {
	e := newEngine(simkernel.WithBaseBody("slot", [3]float64{4, -1, 6}, [3]float64{6, 11, 15}))
	doc := newDoc(t, []string{"block", "slot"}, boolean("pocket", ir.BooleanCut, "block", "slot"))

	res := e.Regenerate(context.Background(), doc)
	require.Equal(t, Success, res.Status, res.Failed)
	assert.Equal(t, []string{"block"}, res.LiveBodies)

	left, ok := e.Map().Find("block/face-1")
	require.True(t, ok)
	right, ok := e.Map().Find("block/face-1/face-split-1")
	require.True(t, ok)
	assert.Less(t, left.Descriptor.Point[0], right.Descriptor.Point[0], "primary piece is the lowest x")
	assert.Equal(t, []ir.ElementID{"block/face-1"}, right.Sources)

	_, ok = e.Map().Find("block/face-2/face-split-2")
	assert.True(t, ok, "the front face splits in three")

	assert.True(t, e.Map().Retired("slot/face-0"))
	floor, ok := e.Map().Find("slot/face-0/face-gen-0")
	require.True(t, ok)
	assert.Equal(t, []ir.ElementID{"slot/face-0"}, floor.Sources)
}

func TestRegenerate_ReboundNameRetiresOldBody(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, nil,
		extrude("pad", 5, "body1"),
		extrude("pad2", 2, "body1"),
	)

	res := e.Regenerate(context.Background(), doc)

	require.Equal(t, Success, res.Status)
	assert.True(t, e.Map().Retired("pad/face-0"))
	assert.Empty(t, idsWithPrefix(e, "pad/"))
	assert.Len(t, idsWithPrefix(e, "pad2/"), 26)
}

func TestRegenerate_ResultIsFreshPerCall(t *testing.T) {
	e := newEngine()
	doc := newDoc(t, nil, extrude("pad", 0, "body1"))

	first := e.Regenerate(context.Background(), doc)
	second := e.Regenerate(context.Background(), doc)

	assert.Len(t, first.Failed, 1)
	assert.Len(t, second.Failed, 1)
	assert.Equal(t, "run-2", second.RunID)
}

func TestVerify_Deterministic(t *testing.T) {
	e := newEngine(simkernel.WithBaseBody("slot", [3]float64{4, -1, 6}, [3]float64{6, 11, 15}))
	doc := newDoc(t, []string{"block", "slot"},
		boolean("pocket", ir.BooleanCut, "block", "slot"),
		fillet("round", "block", "block/face-0", 1),
	)

	v := e.Verify(context.Background(), doc, doc.AppliedCount())

	assert.True(t, v.Equal)
	assert.True(t, v.Drift.Empty())
	assert.Equal(t, v.First.Status, v.Second.Status)
}
