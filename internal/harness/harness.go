package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/kernel/simkernel"
	"github.com/roach88/regen/internal/naming"
	"github.com/roach88/regen/internal/regen"
	"github.com/roach88/regen/internal/store"
)

// Harness is the scenario execution engine.
// It regenerates with the reference kernel and fixed run tokens.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Build the history document
// 2. Regenerate to the cursor and persist the outcome
// 3. Apply edits and regenerate again (if any)
// 4. Check expectations and assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	return h.run(ctx, scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	doc, err := scenario.History.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build history: %w", err)
	}

	result := NewResult()
	res, m := h.regenerate(ctx, scenario, doc)
	result.Regen = res
	result.Map = m

	if err := h.persist(ctx, doc, m, res, result); err != nil {
		return nil, err
	}

	if len(scenario.Edits) > 0 {
		f, err := scenario.edited()
		if err != nil {
			return nil, err
		}
		edited, err := f.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build edited history: %w", err)
		}
		res, m := h.regenerate(ctx, scenario, edited)
		result.Edited = &res
		result.EditedMap = m
	}

	for _, msg := range checkExpect(result, scenario.Expect) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"status", result.Regen.Status.String(),
		"pass", result.Pass,
	)
	return result, nil
}

// regenerate runs doc on a fresh reference kernel.
func (h *Harness) regenerate(ctx context.Context, scenario *Scenario, doc *document.Document) (regen.Result, *naming.Map) {
	to := doc.AppliedCount()
	if scenario.To != nil {
		to = *scenario.To
	}
	eng := regen.New(simkernel.New(scenario.kernelOptions()...), regen.WithRunTokens(regen.NewFixedGenerator(scenario.runToken())))
	res := eng.RegenerateToAppliedCount(ctx, doc, to)
	return res, eng.Map()
}

// persist writes the run through the store and reads it back.
// A round-trip mismatch is recorded on result, not returned.
func (h *Harness) persist(ctx context.Context, doc *document.Document, m *naming.Map, res regen.Result, result *Result) error {
	if err := h.store.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	if _, _, err := h.store.SaveIdentityMap(ctx, doc.ID, m); err != nil {
		return fmt.Errorf("failed to save identity map: %w", err)
	}
	if _, err := h.store.RecordRun(ctx, doc.ID, res); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	snap, err := h.store.LatestIdentityMap(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to load identity map: %w", err)
	}
	if snap.Map.String() != m.String() {
		result.AddError("persisted identity map differs from the live map")
	}

	runs, err := h.store.ListRuns(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) != 1 || runs[0].Status != res.Status || !slices.Equal(regen.Result{Failed: runs[0].Failed}.FailedOps(), res.FailedOps()) {
		result.AddError("persisted run log differs from the regeneration result")
	}
	return nil
}

func (s *Scenario) kernelOptions() []simkernel.Option {
	var opts []simkernel.Option
	for _, name := range slices.Sorted(maps.Keys(s.Kernel.BaseBodies)) {
		b := s.Kernel.BaseBodies[name]
		opts = append(opts, simkernel.WithBaseBody(name, b.Min, b.Max))
	}
	return opts
}
