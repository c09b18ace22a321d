package regen

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/kernel"
	"github.com/roach88/regen/internal/naming"
)

// Engine replays operation histories.
type Engine struct {
	kernel kernel.Kernel
	runs   RunTokenGenerator

	m    *naming.Map
	live map[string]kernel.ShapeRef
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunTokens sets the run token generator. Default: UUIDv7Generator.
func WithRunTokens(gen RunTokenGenerator) Option {
	return func(e *Engine) {
		e.runs = gen
	}
}

// New creates an engine that drives k.
func New(k kernel.Kernel, opts ...Option) *Engine {
	e := &Engine{
		kernel: k,
		runs:   UUIDv7Generator{},
		m:      naming.New(),
		live:   make(map[string]kernel.ShapeRef),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Map returns the identity map produced by the last regeneration.
// The map is owned by the engine; use Clone to keep a snapshot across
// regenerations.
func (e *Engine) Map() *naming.Map {
	return e.m
}

// LiveBodies returns the names of the bodies live after the last
// regeneration, sorted.
func (e *Engine) LiveBodies() []string {
	return slices.Sorted(maps.Keys(e.live))
}

// Kernel returns the kernel the engine drives.
func (e *Engine) Kernel() kernel.Kernel {
	return e.kernel
}

// BodyRef returns the kernel handle of a live body.
func (e *Engine) BodyRef(name string) (kernel.ShapeRef, bool) {
	ref, ok := e.live[name]
	return ref, ok
}

// Regenerate replays doc up to its applied cursor.
func (e *Engine) Regenerate(ctx context.Context, doc document.History) Result {
	if isNil(doc) {
		return e.RegenerateToAppliedCount(ctx, nil, 0)
	}
	return e.RegenerateToAppliedCount(ctx, doc, doc.AppliedCount())
}

// RegenerateAll replays every operation of doc, ignoring the cursor.
func (e *Engine) RegenerateAll(ctx context.Context, doc document.History) Result {
	if isNil(doc) {
		return e.RegenerateToAppliedCount(ctx, nil, 0)
	}
	return e.RegenerateToAppliedCount(ctx, doc, len(doc.Operations()))
}

// RegenerateToAppliedCount replays the first n operations of doc.
//
// The kernel is reset and the identity map rebuilt from scratch, so the
// result depends only on doc and n. Per-operation failures are reported
// in the Result; the call itself never fails.
func (e *Engine) RegenerateToAppliedCount(ctx context.Context, doc document.History, n int) Result {
	runID := e.runs.Generate()
	e.reset()

	if isNil(doc) {
		slog.Error("regeneration rejected", "run_id", runID, "reason", "nil document")
		return documentFailure(runID, "", "document is nil")
	}
	ops := doc.Operations()
	if n < 0 || n > len(ops) {
		slog.Error("regeneration rejected", "run_id", runID, "applied", n, "operations", len(ops))
		return documentFailure(runID, "", fmt.Sprintf("applied count %d out of range [0,%d]", n, len(ops)))
	}
	if dup, ok := duplicateOpID(ops); ok {
		slog.Error("regeneration rejected", "run_id", runID, "duplicate_op", dup)
		return documentFailure(runID, dup, fmt.Sprintf("duplicate operation id %q", dup))
	}

	slog.Info("regeneration started", "run_id", runID, "applied", n, "operations", len(ops))

	r := &replay{
		e:            e,
		doc:          doc,
		runID:        runID,
		failed:       make(map[string]bool),
		lastProducer: make(map[string]string),
	}
	res := r.run(ctx, ops[:n])
	res.Applied = n

	slog.Info("regeneration finished",
		"run_id", runID,
		"status", res.Status.String(),
		"succeeded", res.Succeeded,
		"failed", len(res.Failed),
		"skipped", res.Skipped,
		"elements", res.Elements)
	return res
}

func (e *Engine) reset() {
	e.kernel.Reset()
	e.m = naming.New()
	e.live = make(map[string]kernel.ShapeRef)
}

// isNil reports whether doc is nil, including a typed nil *Document.
func isNil(doc document.History) bool {
	if doc == nil {
		return true
	}
	d, ok := doc.(*document.Document)
	return ok && d == nil
}

func duplicateOpID(ops []ir.OperationRecord) (string, bool) {
	seen := make(map[string]bool, len(ops))
	for _, op := range ops {
		if seen[op.ID] {
			return op.ID, true
		}
		seen[op.ID] = true
	}
	return "", false
}

func documentFailure(runID, opID, msg string) Result {
	return Result{
		RunID:      runID,
		Status:     CriticalFailure,
		Failed:     []Failure{{OpID: opID, Code: ErrCodeInvalidDocument, Message: msg}},
		LiveBodies: []string{},
	}
}

// replay holds the per-call state of one regeneration.
type replay struct {
	e     *Engine
	doc   document.History
	runID string

	failed       map[string]bool
	lastProducer map[string]string

	result Result
}

func (r *replay) run(ctx context.Context, ops []ir.OperationRecord) Result {
	r.result = Result{RunID: r.runID, Failed: []Failure{}}

	base := make(map[string]bool)
	for _, b := range r.doc.BaseBodies() {
		base[b] = true
		r.loadBase(b)
	}

	active := make([]bool, len(ops))
	for i, op := range ops {
		active[i] = !r.doc.IsSuppressed(op.ID)
	}
	cyclic := buildDeps(ops, active, base).cyclic()

	for i, op := range ops {
		if !active[i] {
			r.result.Skipped++
			slog.Debug("operation suppressed", "run_id", r.runID, "op_id", op.ID)
			continue
		}
		if err := ctx.Err(); err != nil {
			r.fail(op, &OpError{OpID: op.ID, Code: ErrCodeCancelled, Message: "regeneration cancelled", Err: err})
			continue
		}
		if cyclic[i] {
			r.fail(op, opErrorf(op.ID, ErrCodeCycleDetected, "operation is part of a body dependency cycle"))
			continue
		}
		if err := op.Validate(); err != nil {
			r.fail(op, &OpError{OpID: op.ID, Code: ErrCodeInvalidDocument, Message: err.Error(), Err: err})
			continue
		}
		if oe := r.apply(op); oe != nil {
			r.fail(op, oe)
			continue
		}
		r.result.Succeeded++
	}

	r.result.Status = statusOf(len(r.result.Failed), r.result.Succeeded)
	r.result.LiveBodies = r.e.LiveBodies()
	r.result.Elements = r.e.m.Len()
	return r.result
}

// loadBase materializes a base body and names its elements.
func (r *replay) loadBase(body string) {
	ref, err := r.e.kernel.LoadBaseBody(body)
	if err != nil {
		slog.Warn("base body not loaded", "run_id", r.runID, "body", body, "error", err)
		return
	}
	r.e.live[body] = ref

	counters := make(map[ir.ElementKind]int)
	for _, info := range r.e.kernel.Explore(ref) {
		id := ir.ElementID(fmt.Sprintf("%s/%s-%d", body, info.Kind, counters[info.Kind]))
		counters[info.Kind]++
		if !r.e.m.Register(id, info.Kind, info.Ref, info.Descriptor, "") {
			slog.Warn("base element not registered", "run_id", r.runID, "body", body, "element_id", id)
		}
	}
	slog.Debug("base body loaded", "run_id", r.runID, "body", body, "elements", r.e.m.Len())
}

// apply resolves op's inputs, runs it on the kernel and folds the result
// into the identity map and live body set.
func (r *replay) apply(op ir.OperationRecord) *OpError {
	in, oe := r.resolve(op)
	if oe != nil {
		return oe
	}

	res, err := r.dispatch(op.Params, in)
	if err != nil {
		return kernelError(op.ID, err)
	}
	if len(res.Bodies) != len(op.ResultBodies) {
		// The kernel has already changed its bodies; the map follows them
		// so that the failure retires the names they now carry.
		r.e.m.Update(res.Changes, op.ID)
		for name, ref := range r.e.live {
			if slices.Contains(res.Consumed, ref) {
				delete(r.e.live, name)
			}
		}
		for _, ref := range res.Bodies {
			if !r.bound(ref) {
				r.retireBody(ref, op.ID)
			}
		}
		return opErrorf(op.ID, ErrCodeKernelError,
			"kernel returned %d bodies, operation declares %d", len(res.Bodies), len(op.ResultBodies))
	}

	r.e.m.Update(res.Changes, op.ID)

	prev := slices.Collect(maps.Values(r.e.live))
	for name, ref := range r.e.live {
		if slices.Contains(res.Bodies, ref) || slices.Contains(res.Consumed, ref) {
			delete(r.e.live, name)
		}
	}
	for i, name := range op.ResultBodies {
		r.e.live[name] = res.Bodies[i]
		r.lastProducer[name] = op.ID
	}

	// A body whose last name was rebound elsewhere is unreachable; its
	// elements go with it.
	for _, ref := range prev {
		if slices.Contains(res.Consumed, ref) || r.bound(ref) {
			continue
		}
		r.retireBody(ref, op.ID)
	}

	slog.Debug("operation applied",
		"run_id", r.runID,
		"op_id", op.ID,
		"type", string(op.Type()),
		"changes", len(res.Changes.Changes),
		"elements", r.e.m.Len())
	return nil
}

// resolve maps op's input and tool references to kernel handles.
func (r *replay) resolve(op ir.OperationRecord) (kernel.Inputs, *OpError) {
	var in kernel.Inputs

	switch ref := op.Input.(type) {
	case ir.SketchRegionRef:
		p, ok := r.doc.Profile(ref.Sketch, ref.Region)
		if !ok {
			return in, opErrorf(op.ID, ErrCodeUnresolvedReference,
				"sketch region %s[%d] not found", ref.Sketch, ref.Region)
		}
		in.Profile = p

	case ir.BodyRef:
		body, oe := r.body(op.ID, ref.Body)
		if oe != nil {
			return in, oe
		}
		in.Body = body

	case ir.FaceRef:
		body, oe := r.body(op.ID, ref.Body)
		if oe != nil {
			return in, oe
		}
		entry, ok := r.e.m.Find(ref.Element)
		switch {
		case !ok:
			return in, opErrorf(op.ID, ErrCodeUnresolvedReference, "element %s not found", ref.Element)
		case entry.Kind != ir.KindFace:
			return in, opErrorf(op.ID, ErrCodeUnresolvedReference, "element %s is a %s, not a face", ref.Element, entry.Kind)
		case !r.e.kernel.Alive(entry.Shape):
			return in, opErrorf(op.ID, ErrCodeUnresolvedReference, "element %s has no live shape", ref.Element)
		}
		if owner, ok := r.e.kernel.BodyOf(entry.Shape); !ok || owner != body {
			return in, opErrorf(op.ID, ErrCodeUnresolvedReference, "element %s is not on body %s", ref.Element, ref.Body)
		}
		in.Body = body
		in.Face = entry.Shape
	}

	if b, ok := op.Params.(ir.BooleanParams); ok {
		tool, oe := r.body(op.ID, b.Tool)
		if oe != nil {
			return in, oe
		}
		in.Tool = tool
	}
	return in, nil
}

// body resolves a live body name. A missing body whose last producer
// failed is an upstream failure rather than a dangling reference.
func (r *replay) body(opID, name string) (kernel.ShapeRef, *OpError) {
	if ref, ok := r.e.live[name]; ok {
		return ref, nil
	}
	if producer, ok := r.lastProducer[name]; ok && r.failed[producer] {
		return kernel.NoShape, &OpError{
			OpID:    opID,
			Code:    ErrCodeUpstreamFailed,
			Message: fmt.Sprintf("body %s was not produced: operation %s failed", name, producer),
		}
	}
	return kernel.NoShape, opErrorf(opID, ErrCodeUnresolvedReference, "body %s is not live", name)
}

func (r *replay) dispatch(params ir.Params, in kernel.Inputs) (kernel.Result, error) {
	k := r.e.kernel
	switch p := params.(type) {
	case ir.ExtrudeParams:
		return k.ApplyExtrude(p, in)
	case ir.RevolveParams:
		return k.ApplyRevolve(p, in)
	case ir.FilletParams:
		return k.ApplyFillet(p, in)
	case ir.ChamferParams:
		return k.ApplyChamfer(p, in)
	case ir.ShellParams:
		return k.ApplyShell(p, in)
	case ir.BooleanParams:
		return k.ApplyBoolean(p, in)
	default:
		return kernel.Result{}, fmt.Errorf("unsupported params %T", params)
	}
}

// fail records oe and withdraws op's result bodies from the live set.
func (r *replay) fail(op ir.OperationRecord, oe *OpError) {
	r.failed[op.ID] = true
	r.result.Failed = append(r.result.Failed, oe.Failure())

	for _, name := range op.ResultBodies {
		r.lastProducer[name] = op.ID
		ref, ok := r.e.live[name]
		if !ok {
			continue
		}
		delete(r.e.live, name)
		if !r.bound(ref) {
			r.retireBody(ref, op.ID)
		}
	}

	slog.Warn("operation failed",
		"run_id", r.runID,
		"op_id", op.ID,
		"code", string(oe.Code),
		"error", oe.Message)
}

func (r *replay) bound(ref kernel.ShapeRef) bool {
	for _, v := range r.e.live {
		if v == ref {
			return true
		}
	}
	return false
}

// retireBody retires every element of body through a synthetic Deleted
// change-set, the same path a kernel deletion takes.
func (r *replay) retireBody(body kernel.ShapeRef, opID string) {
	var cs kernel.ChangeSet
	for _, info := range r.e.kernel.Explore(body) {
		cs.Changes = append(cs.Changes, kernel.Change{Relation: kernel.Deleted, Input: info.Ref})
	}
	if len(cs.Changes) == 0 {
		return
	}
	r.e.m.Update(cs, opID)
	slog.Debug("body elements retired", "run_id", r.runID, "op_id", opID, "elements", len(cs.Changes))
}
