// Package testutil provides history fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/ir"
)

// Square returns a sketch with one size x size region at the origin.
func Square(size float64) document.Sketch {
	return document.Sketch{
		Regions: [][][2]float64{{{0, 0}, {size, 0}, {size, size}, {0, size}}},
	}
}

// Document builds a document with the 10x10 sketch "s1", the given base
// bodies and ops appended in order.
func Document(t testing.TB, id string, base []string, ops ...ir.OperationRecord) *document.Document {
	t.Helper()
	d := document.New(id)
	for _, b := range base {
		require.NoError(t, d.AddBaseBody(b))
	}
	require.NoError(t, d.AddSketch("s1", Square(10)))
	for _, op := range ops {
		require.NoError(t, d.Append(op))
	}
	return d
}

// Extrude returns an extrude of region of sketch into body.
func Extrude(id, sketch string, region int, dist float64, body string) ir.OperationRecord {
	return ir.OperationRecord{
		ID:           id,
		Input:        ir.SketchRegionRef{Sketch: sketch, Region: region},
		Params:       ir.ExtrudeParams{Distance: dist},
		ResultBodies: []string{body},
	}
}

// Fillet returns a fillet of face on body, modifying body in place.
func Fillet(id, body, face string, radius float64) ir.OperationRecord {
	return ir.OperationRecord{
		ID:           id,
		Input:        ir.FaceRef{Body: body, Element: ir.ElementID(face)},
		Params:       ir.FilletParams{Radius: radius},
		ResultBodies: []string{body},
	}
}

// Shell returns a shell of in opened at its first face, producing out.
func Shell(id, in, out string, thickness float64) ir.OperationRecord {
	return ir.OperationRecord{
		ID:           id,
		Input:        ir.FaceRef{Body: in, Element: ir.ElementID(in + "/face-0")},
		Params:       ir.ShellParams{Thickness: thickness},
		ResultBodies: []string{out},
	}
}

// Boolean returns a boolean of tool into body.
func Boolean(id string, mode ir.BooleanMode, body, tool string) ir.OperationRecord {
	return ir.OperationRecord{
		ID:           id,
		Input:        ir.BodyRef{Body: body},
		Params:       ir.BooleanParams{Mode: mode, Tool: tool},
		ResultBodies: []string{body},
	}
}
