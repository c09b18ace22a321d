package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestDocument builds a three-operation bracket document with one
// suppressed op and the cursor rolled back to 2.
func createTestDocument(t *testing.T, id string) *document.Document {
	t.Helper()
	d := document.New(id)
	require.NoError(t, d.AddBaseBody("stock"))
	require.NoError(t, d.AddSketch("s1", document.Sketch{
		Z:       0.5,
		Regions: [][][2]float64{{{0, 0}, {10, 0}, {10, 10.25}, {0, 10.25}}},
	}))
	require.NoError(t, d.Append(ir.OperationRecord{
		ID:           "pad",
		Input:        ir.SketchRegionRef{Sketch: "s1"},
		Params:       ir.ExtrudeParams{Distance: 5},
		ResultBodies: []string{"body1"},
	}))
	require.NoError(t, d.Append(ir.OperationRecord{
		ID:           "round",
		Input:        ir.FaceRef{Body: "body1", Element: "pad/face-1"},
		Params:       ir.FilletParams{Radius: 0.75},
		ResultBodies: []string{"body1"},
	}))
	require.NoError(t, d.Append(ir.OperationRecord{
		ID:           "merge",
		Input:        ir.BodyRef{Body: "body1"},
		Params:       ir.BooleanParams{Mode: ir.BooleanUnion, Tool: "stock"},
		ResultBodies: []string{"body1"},
	}))
	require.NoError(t, d.Suppress("round", true))
	require.NoError(t, d.SetAppliedCount(2))
	return d
}
