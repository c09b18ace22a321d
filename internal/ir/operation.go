package ir

import (
	"fmt"
	"slices"
)

// OpType names an operation kind. The set is closed.
type OpType string

const (
	OpExtrude OpType = "extrude"
	OpRevolve OpType = "revolve"
	OpFillet  OpType = "fillet"
	OpChamfer OpType = "chamfer"
	OpShell   OpType = "shell"
	OpBoolean OpType = "boolean"
)

// OpTypes lists every operation type in declaration order.
var OpTypes = []OpType{OpExtrude, OpRevolve, OpFillet, OpChamfer, OpShell, OpBoolean}

// OperationRecord is one user-authored step of the history.
// Immutable once appended; owned by the document, read by the engine.
type OperationRecord struct {
	ID           string   `json:"op_id"`
	Input        InputRef `json:"input"`
	Params       Params   `json:"params"`
	ResultBodies []string `json:"result_bodies"`
}

// Type returns the operation type implied by the parameter variant.
func (r OperationRecord) Type() OpType {
	if r.Params == nil {
		return ""
	}
	return r.Params.OpType()
}

// ReferencedBodies returns the body IDs this operation reads, in a fixed
// order: the input body first, then any tool body.
func (r OperationRecord) ReferencedBodies() []string {
	var bodies []string
	switch in := r.Input.(type) {
	case FaceRef:
		bodies = append(bodies, in.Body)
	case BodyRef:
		bodies = append(bodies, in.Body)
	}
	if b, ok := r.Params.(BooleanParams); ok && b.Tool != "" {
		bodies = append(bodies, b.Tool)
	}
	return bodies
}

// Validate checks structural rules that do not need geometry.
func (r OperationRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("op_id is required")
	}
	if r.Input == nil {
		return fmt.Errorf("op %s: input is required", r.ID)
	}
	if r.Params == nil {
		return fmt.Errorf("op %s: params are required", r.ID)
	}
	if len(r.ResultBodies) == 0 {
		return fmt.Errorf("op %s: at least one result body is required", r.ID)
	}
	seen := make(map[string]bool, len(r.ResultBodies))
	for _, b := range r.ResultBodies {
		if b == "" {
			return fmt.Errorf("op %s: empty result body id", r.ID)
		}
		if seen[b] {
			return fmt.Errorf("op %s: duplicate result body %q", r.ID, b)
		}
		seen[b] = true
	}

	switch r.Params.(type) {
	case ExtrudeParams, RevolveParams:
		if _, ok := r.Input.(SketchRegionRef); !ok {
			return fmt.Errorf("op %s: %s requires a sketch region input", r.ID, r.Type())
		}
	case FilletParams, ChamferParams, ShellParams:
		if _, ok := r.Input.(FaceRef); !ok {
			return fmt.Errorf("op %s: %s requires a face input", r.ID, r.Type())
		}
	case BooleanParams:
		if _, ok := r.Input.(BodyRef); !ok {
			return fmt.Errorf("op %s: boolean requires a body input", r.ID)
		}
	}
	if b, ok := r.Params.(BooleanParams); ok {
		if b.Tool == "" {
			return fmt.Errorf("op %s: boolean requires a tool body", r.ID)
		}
		if !slices.Contains(BooleanModes, b.Mode) {
			return fmt.Errorf("op %s: unknown boolean mode %q", r.ID, b.Mode)
		}
	}
	return nil
}

// InputRef is the tagged reference an operation consumes.
// Exactly one of SketchRegionRef, FaceRef, BodyRef.
type InputRef interface {
	inputRef()
	// Tag returns the variant name used in canonical text.
	Tag() string
}

// SketchRegionRef selects a closed region of a sketch.
type SketchRegionRef struct {
	Sketch string `json:"sketch"`
	Region int    `json:"region"`
}

func (SketchRegionRef) inputRef()   {}
func (SketchRegionRef) Tag() string { return "sketch_region" }

// FaceRef selects a face by stable element ID on a live body.
type FaceRef struct {
	Body    string    `json:"body"`
	Element ElementID `json:"element"`
}

func (FaceRef) inputRef()   {}
func (FaceRef) Tag() string { return "face" }

// BodyRef selects a whole body.
type BodyRef struct {
	Body string `json:"body"`
}

func (BodyRef) inputRef()   {}
func (BodyRef) Tag() string { return "body" }

// Params is the closed sum of per-operation parameter structs.
type Params interface {
	params()
	OpType() OpType
}

// ExtrudeParams sweeps a sketch region along its normal.
type ExtrudeParams struct {
	Distance float64 `json:"distance"`
}

// RevolveParams sweeps a sketch region around the sketch Y axis.
type RevolveParams struct {
	AngleDeg float64 `json:"angle_deg"`
}

// FilletParams rounds the boundary edges of a face.
type FilletParams struct {
	Radius float64 `json:"radius"`
}

// ChamferParams bevels the boundary edges of a face.
type ChamferParams struct {
	Distance float64 `json:"distance"`
}

// ShellParams hollows a body, opening the input face.
type ShellParams struct {
	Thickness float64 `json:"thickness"`
}

// BooleanMode selects the boolean combination.
type BooleanMode string

const (
	BooleanUnion     BooleanMode = "union"
	BooleanCut       BooleanMode = "cut"
	BooleanIntersect BooleanMode = "intersect"
)

// BooleanModes lists the valid boolean modes.
var BooleanModes = []BooleanMode{BooleanUnion, BooleanCut, BooleanIntersect}

// BooleanParams combines the input body with a tool body.
// The tool body is consumed.
type BooleanParams struct {
	Mode BooleanMode `json:"mode"`
	Tool string      `json:"tool"`
}

func (ExtrudeParams) params() {}
func (RevolveParams) params() {}
func (FilletParams) params()  {}
func (ChamferParams) params() {}
func (ShellParams) params()   {}
func (BooleanParams) params() {}

func (ExtrudeParams) OpType() OpType { return OpExtrude }
func (RevolveParams) OpType() OpType { return OpRevolve }
func (FilletParams) OpType() OpType  { return OpFillet }
func (ChamferParams) OpType() OpType { return OpChamfer }
func (ShellParams) OpType() OpType   { return OpShell }
func (BooleanParams) OpType() OpType { return OpBoolean }
