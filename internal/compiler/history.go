package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/regen/internal/document"
)

// CompileHistory parses a CUE value into a Document.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the history struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`history: { id: "bracket", operations: [...] }`)
//	doc, err := CompileHistory(v.LookupPath(cue.ParsePath("history")))
//
// Fields mirror the YAML form (see document.File):
//
//	history: {
//		id:          "bracket"
//		base_bodies: ["stock"]
//		applied:     2
//		sketches: s1: {z: 0, regions: [[[0, 0], [10, 0], [10, 10], [0, 10]]]}
//		operations: [
//			{id: "pad", type: "extrude", input: {sketch: "s1", region: 0}, params: {distance: 5}, result: ["body1"]},
//		]
//	}
func CompileHistory(v cue.Value) (*document.Document, error) {
	f, err := compileFile(v)
	if err != nil {
		return nil, err
	}
	d, err := f.Build()
	if err != nil {
		return nil, &CompileError{Field: "history", Message: err.Error(), Pos: v.Pos()}
	}
	return d, nil
}

func compileFile(v cue.Value) (document.File, error) {
	var f document.File
	if err := v.Err(); err != nil {
		return f, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return f, formatCUEError(err)
	}

	id, err := optionalString(v, "id")
	if err != nil {
		return f, err
	}
	if id == "" {
		// Fall back to the struct label: history: bracket: {...}
		if sels := v.Path().Selectors(); len(sels) > 0 {
			id = strings.Trim(sels[len(sels)-1].String(), `"`)
		}
	}
	if id == "" || id == "history" {
		return f, &CompileError{Field: "id", Message: "id is required", Pos: v.Pos()}
	}
	f.ID = id

	if f.BaseBodies, err = optionalStrings(v, "base_bodies"); err != nil {
		return f, err
	}

	if av := v.LookupPath(cue.ParsePath("applied")); av.Exists() {
		n, err := av.Int64()
		if err != nil {
			return f, formatCUEError(err)
		}
		applied := int(n)
		f.Applied = &applied
	}

	if f.Sketches, err = parseSketches(v); err != nil {
		return f, err
	}
	if f.Operations, err = parseOperations(v); err != nil {
		return f, err
	}
	return f, nil
}

// parseSketches extracts sketch definitions. Sketches are optional.
func parseSketches(v cue.Value) (map[string]document.SketchFile, error) {
	sv := v.LookupPath(cue.ParsePath("sketches"))
	if !sv.Exists() {
		return nil, nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := make(map[string]document.SketchFile)
	for iter.Next() {
		name := iter.Selector().Unquoted()
		sk := iter.Value()

		var s document.SketchFile
		if zv := sk.LookupPath(cue.ParsePath("z")); zv.Exists() {
			if s.Z, err = zv.Float64(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		rv := sk.LookupPath(cue.ParsePath("regions"))
		if !rv.Exists() {
			return nil, &CompileError{
				Field:   "sketches." + name + ".regions",
				Message: "regions are required",
				Pos:     sk.Pos(),
			}
		}
		regions, err := rv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for regions.Next() {
			region, err := parsePoints(regions.Value())
			if err != nil {
				return nil, err
			}
			s.Regions = append(s.Regions, region)
		}
		out[name] = s
	}
	return out, nil
}

// parsePoints reads a list of [x, y] pairs.
func parsePoints(v cue.Value) ([][2]float64, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var pts [][2]float64
	for iter.Next() {
		pv := iter.Value()
		var xy []float64
		if err := pv.Decode(&xy); err != nil {
			return nil, formatCUEError(err)
		}
		if len(xy) != 2 {
			return nil, &CompileError{
				Field:   "regions",
				Message: fmt.Sprintf("point must be [x, y], got %d coordinates", len(xy)),
				Pos:     pv.Pos(),
			}
		}
		pts = append(pts, [2]float64{xy[0], xy[1]})
	}
	return pts, nil
}

// parseOperations extracts the ordered operation list (required, may be
// empty).
func parseOperations(v cue.Value) ([]document.OperationFile, error) {
	ov := v.LookupPath(cue.ParsePath("operations"))
	if !ov.Exists() {
		return nil, &CompileError{Field: "operations", Message: "operations are required", Pos: v.Pos()}
	}
	iter, err := ov.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var ops []document.OperationFile
	for iter.Next() {
		op, err := parseOperation(iter.Value())
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func parseOperation(v cue.Value) (document.OperationFile, error) {
	var op document.OperationFile
	var err error

	if op.ID, err = requiredString(v, "id"); err != nil {
		return op, err
	}
	if op.Type, err = requiredString(v, "type"); err != nil {
		return op, err
	}
	if op.Result, err = optionalStrings(v, "result"); err != nil {
		return op, err
	}
	if sv := v.LookupPath(cue.ParsePath("suppressed")); sv.Exists() {
		if op.Suppressed, err = sv.Bool(); err != nil {
			return op, formatCUEError(err)
		}
	}

	in := v.LookupPath(cue.ParsePath("input"))
	if !in.Exists() {
		return op, &CompileError{Field: "input", Message: fmt.Sprintf("op %s: input is required", op.ID), Pos: v.Pos()}
	}
	if op.Input.Sketch, err = optionalString(in, "sketch"); err != nil {
		return op, err
	}
	if op.Input.Body, err = optionalString(in, "body"); err != nil {
		return op, err
	}
	if op.Input.Face, err = optionalString(in, "face"); err != nil {
		return op, err
	}
	if rv := in.LookupPath(cue.ParsePath("region")); rv.Exists() {
		n, err := rv.Int64()
		if err != nil {
			return op, formatCUEError(err)
		}
		op.Input.Region = int(n)
	}

	params := v.LookupPath(cue.ParsePath("params"))
	if !params.Exists() {
		return op, nil
	}
	for name, dst := range map[string]*float64{
		"distance":  &op.Params.Distance,
		"angle":     &op.Params.Angle,
		"radius":    &op.Params.Radius,
		"thickness": &op.Params.Thickness,
	} {
		if fv := params.LookupPath(cue.ParsePath(name)); fv.Exists() {
			if *dst, err = fv.Float64(); err != nil {
				return op, formatCUEError(err)
			}
		}
	}
	if op.Params.Mode, err = optionalString(params, "mode"); err != nil {
		return op, err
	}
	if op.Params.Tool, err = optionalString(params, "tool"); err != nil {
		return op, err
	}
	return op, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	var out []string
	if err := fv.Decode(&out); err != nil {
		return nil, formatCUEError(err)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
