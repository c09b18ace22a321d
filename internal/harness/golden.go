package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/regen/internal/ir"
)

// Snapshot renders the outcome of a scenario for golden comparison:
// status, failures and live bodies, then every live element with its
// descriptor, sources and origin op.
func Snapshot(name string, r *Result) ([]byte, error) {
	failed := make(ir.IRArray, 0, len(r.Regen.Failed))
	for _, f := range r.Regen.Failed {
		failed = append(failed, ir.IRObject{
			"op_id": ir.IRString(f.OpID),
			"code":  ir.IRString(f.Code),
		})
	}

	bodies := make(ir.IRArray, 0, len(r.Regen.LiveBodies))
	for _, b := range r.Regen.LiveBodies {
		bodies = append(bodies, ir.IRString(b))
	}

	elements := make(ir.IRArray, 0, r.Map.Len())
	for _, e := range r.Map.Entries() {
		sources := make(ir.IRArray, len(e.Sources))
		for i, s := range e.Sources {
			sources[i] = ir.IRString(s)
		}
		elements = append(elements, ir.IRObject{
			"id":         ir.IRString(e.ID),
			"kind":       ir.IRString(e.Kind.String()),
			"descriptor": ir.EncodeDescriptor(e.Descriptor),
			"sources":    sources,
			"origin_op":  ir.IRString(e.OriginOp),
		})
	}

	return ir.MarshalIndent(ir.IRObject{
		"scenario":    ir.IRString(name),
		"status":      ir.IRString(r.Regen.Status.String()),
		"failed":      failed,
		"live_bodies": bodies,
		"elements":    elements,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
