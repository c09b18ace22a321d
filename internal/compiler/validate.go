package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/regen"
)

// ValidationError represents a semantic validation error.
type ValidationError struct {
	Field   string `json:"field"` // Path to the offending field, e.g. "operations.pad.input"
	Message string `json:"message"`
	Code    string `json:"code"` // Error code like "E101"
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validation error codes.
const (
	ErrUnknownSketch    = "E101"
	ErrRegionOutOfRange = "E102"
	ErrUnproducedBody   = "E103"
	ErrDependencyCycle  = "E104"
	ErrSelfBoolean      = "E105"
)

// Validate performs semantic validation on a compiled document.
// Returns all validation errors found (not just the first).
//
// Structural record rules are enforced while the document is built; the
// checks here span operations. Suppressed operations are still checked.
func Validate(d *document.Document) []ValidationError {
	var errs []ValidationError

	produced := make(map[string]bool)
	for _, b := range d.BaseBodies() {
		produced[b] = true
	}
	for _, op := range d.Operations() {
		for _, b := range op.ResultBodies {
			produced[b] = true
		}
	}

	for _, op := range d.Operations() {
		errs = append(errs, validateOperation(d, op, produced)...)
	}

	for _, cycle := range regen.DependencyCycles(d, d.Len()) {
		errs = append(errs, ValidationError{
			Field:   "operations." + cycle[0],
			Message: fmt.Sprintf("dependency cycle: %s -> %s", strings.Join(cycle, " -> "), cycle[0]),
			Code:    ErrDependencyCycle,
		})
	}
	return errs
}

func validateOperation(d *document.Document, op ir.OperationRecord, produced map[string]bool) []ValidationError {
	var errs []ValidationError
	field := "operations." + op.ID

	if ref, ok := op.Input.(ir.SketchRegionRef); ok {
		sk, found := d.Sketch(ref.Sketch)
		switch {
		case !found:
			errs = append(errs, ValidationError{
				Field:   field + ".input.sketch",
				Message: fmt.Sprintf("unknown sketch %q", ref.Sketch),
				Code:    ErrUnknownSketch,
			})
		case ref.Region < 0 || ref.Region >= len(sk.Regions):
			errs = append(errs, ValidationError{
				Field:   field + ".input.region",
				Message: fmt.Sprintf("sketch %s has %d regions, got region %d", ref.Sketch, len(sk.Regions), ref.Region),
				Code:    ErrRegionOutOfRange,
			})
		}
	}

	seen := make(map[string]bool)
	for _, b := range op.ReferencedBodies() {
		if produced[b] || seen[b] {
			continue
		}
		seen[b] = true
		errs = append(errs, ValidationError{
			Field:   field + ".input",
			Message: fmt.Sprintf("body %q is neither a base body nor produced by any operation", b),
			Code:    ErrUnproducedBody,
		})
	}

	if p, ok := op.Params.(ir.BooleanParams); ok {
		if target, isBody := op.Input.(ir.BodyRef); isBody && target.Body == p.Tool {
			errs = append(errs, ValidationError{
				Field:   field + ".params.tool",
				Message: fmt.Sprintf("boolean tool %q is also the target", p.Tool),
				Code:    ErrSelfBoolean,
			})
		}
	}
	return errs
}

// Codes returns the distinct codes in errs, sorted.
func Codes(errs []ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
