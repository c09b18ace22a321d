package regen

import (
	"context"
	"slices"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/naming"
)

// Verification is the outcome of a determinism check.
type Verification struct {
	// Equal is true when both replays produced the same status, the same
	// failed operations and byte-identical identity maps.
	Equal bool

	First, Second Result

	// Drift lists element-level differences between the two maps.
	Drift naming.Drift
}

// Verify regenerates doc to n twice and compares the outcomes. Regeneration
// is deterministic, so any difference points at a kernel or engine bug.
// The engine is left in the state of the second replay.
func (e *Engine) Verify(ctx context.Context, doc document.History, n int) Verification {
	first := e.RegenerateToAppliedCount(ctx, doc, n)
	firstMap := e.m.Clone()
	firstIDs := firstMap.IDs()

	second := e.RegenerateToAppliedCount(ctx, doc, n)

	v := Verification{
		First:  first,
		Second: second,
		Drift:  naming.Diff(firstMap, e.m, ir.DescriptorTolerance),
	}
	v.Equal = first.Status == second.Status &&
		slices.Equal(first.FailedOps(), second.FailedOps()) &&
		slices.Equal(first.LiveBodies, second.LiveBodies) &&
		slices.Equal(firstIDs, e.m.IDs()) &&
		firstMap.String() == e.m.String()
	return v
}
