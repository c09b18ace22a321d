// Package kernel defines the contract between the regeneration engine and
// a B-Rep geometry kernel.
//
// The kernel owns every shape. Callers only ever hold ShapeRef values,
// which are lookup keys into the kernel's shape table rather than
// pointers: a deleted shape is a representable, checkable state
// (Alive returns false) instead of a dangling reference.
//
// Kernels are NOT safe for concurrent use. The engine drives exactly one
// kernel from one goroutine at a time (see internal/scheduler).
package kernel

import (
	"errors"
	"fmt"

	"github.com/roach88/regen/internal/ir"
)

// ShapeRef is a weak handle to a kernel shape (body or sub-shape).
type ShapeRef uint64

// NoShape is the zero handle. It never names a live shape.
const NoShape ShapeRef = 0

// ShapeInfo describes one sub-shape of a result as reported by the kernel.
type ShapeInfo struct {
	Ref        ShapeRef
	Kind       ir.ElementKind
	Descriptor ir.Descriptor
}

// Relation classifies a change-set entry.
type Relation int

const (
	// Modified: the input shape continues as the output shape(s).
	// More than one output means the input was split.
	Modified Relation = iota + 1

	// Generated: the output shapes were created from the input shape
	// (e.g. a blend face generated from an edge).
	Generated

	// Deleted: the input shape no longer exists.
	Deleted
)

// String returns the relation name.
func (r Relation) String() string {
	switch r {
	case Modified:
		return "modified"
	case Generated:
		return "generated"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("relation(%d)", int(r))
	}
}

// Change relates one input sub-shape to zero or more output sub-shapes.
type Change struct {
	Relation Relation
	Input    ShapeRef
	Outputs  []ShapeRef
}

// ChangeSet is the kernel's report of one topology-changing operation.
//
// Changes are listed in a deterministic enumeration order. Outputs lists
// every sub-shape of the operation's result bodies, again in deterministic
// order, together with its kind and descriptor. Sub-shapes of the result
// that no Change mentions and that carry no existing identity are treated
// as brand-new.
type ChangeSet struct {
	Changes []Change
	Outputs []ShapeInfo
}

// Info returns the ShapeInfo for ref among the change-set outputs.
func (cs ChangeSet) Info(ref ShapeRef) (ShapeInfo, bool) {
	for _, info := range cs.Outputs {
		if info.Ref == ref {
			return info, true
		}
	}
	return ShapeInfo{}, false
}

// Profile is a closed planar polygon taken from a sketch region.
// Points are in sketch coordinates (x, y); the sketch plane sits at
// height Z.
type Profile struct {
	Points [][2]float64
	Z      float64
}

// Inputs carries the resolved inputs of one kernel call. Only the fields
// relevant to the operation type are set.
type Inputs struct {
	Profile *Profile
	Body    ShapeRef
	Face    ShapeRef
	Tool    ShapeRef
}

// Result is a successful kernel call's output.
type Result struct {
	// Bodies are the result bodies, aligned with the operation's
	// ResultBodies list.
	Bodies []ShapeRef

	// Consumed are input bodies that no longer exist (boolean tools).
	Consumed []ShapeRef

	Changes ChangeSet
}

// Kernel is the geometry kernel adapter.
type Kernel interface {
	// Reset discards every shape, returning the kernel to a clean state.
	Reset()

	// LoadBaseBody materializes a body that no operation produces.
	LoadBaseBody(id string) (ShapeRef, error)

	// Explore lists the sub-shapes of a body in enumeration order.
	Explore(body ShapeRef) []ShapeInfo

	// Alive reports whether ref still names a live shape.
	Alive(ref ShapeRef) bool

	// BodyOf returns the body that owns a live sub-shape.
	BodyOf(ref ShapeRef) (ShapeRef, bool)

	ApplyExtrude(p ir.ExtrudeParams, in Inputs) (Result, error)
	ApplyRevolve(p ir.RevolveParams, in Inputs) (Result, error)
	ApplyFillet(p ir.FilletParams, in Inputs) (Result, error)
	ApplyChamfer(p ir.ChamferParams, in Inputs) (Result, error)
	ApplyShell(p ir.ShellParams, in Inputs) (Result, error)
	ApplyBoolean(p ir.BooleanParams, in Inputs) (Result, error)
}

// Error is a kernel rejection: invalid parameters or degenerate output.
type Error struct {
	Op     ir.OpType
	Reason string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return "kernel: " + e.Reason
	}
	return fmt.Sprintf("kernel: %s: %s", e.Op, e.Reason)
}

// Errorf builds a kernel Error for op.
func Errorf(op ir.OpType, format string, args ...any) *Error {
	return &Error{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsError reports whether err is (or wraps) a kernel Error.
func IsError(err error) bool {
	var ke *Error
	return errors.As(err, &ke)
}
