package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/naming"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// checkExpect compares the main run against the expect clause.
func checkExpect(r *Result, e Expect) []string {
	var errs []string
	if got := r.Regen.Status.String(); got != e.Status {
		errs = append(errs, fmt.Sprintf("status: expected %s, got %s", e.Status, got))
	}
	if e.Failed != nil && !slices.Equal(e.Failed, r.Regen.FailedOps()) {
		errs = append(errs, fmt.Sprintf("failed: expected %v, got %v", e.Failed, r.Regen.FailedOps()))
	}
	if e.LiveBodies != nil && !slices.Equal(e.LiveBodies, r.Regen.LiveBodies) {
		errs = append(errs, fmt.Sprintf("live_bodies: expected %v, got %v", e.LiveBodies, r.Regen.LiveBodies))
	}
	for _, id := range e.IDsContain {
		if _, ok := r.Map.Find(ir.ElementID(id)); !ok {
			errs = append(errs, fmt.Sprintf("ids_contain: %s is not live", id))
		}
	}
	return errs
}

// EvaluateAssertions runs every assertion against r and returns the
// messages of those that failed.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(r, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertIDAbsent:
		return assertIDAbsent(r.Map, a)
	case AssertIDRetired:
		return assertIDRetired(r.Map, a)
	case AssertIDKind:
		return assertIDKind(r.Map, a)
	case AssertIDSources:
		return assertIDSources(r.Map, a)
	case AssertFailureCode:
		return assertFailureCode(r, a)
	case AssertElementCount:
		return assertElementCount(r.Map, a)
	case AssertStableIDs:
		return assertStableIDs(r)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertIDAbsent(m *naming.Map, a Assertion) error {
	if _, ok := m.Find(ir.ElementID(a.ID)); ok {
		return &AssertionError{Type: a.Type, Expected: a.ID + " not live", Actual: "live"}
	}
	return nil
}

func assertIDRetired(m *naming.Map, a Assertion) error {
	if !m.Retired(ir.ElementID(a.ID)) {
		return &AssertionError{Type: a.Type, Expected: a.ID + " retired", Actual: "not retired"}
	}
	return nil
}

func assertIDKind(m *naming.Map, a Assertion) error {
	e, ok := m.Find(ir.ElementID(a.ID))
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s live as %s", a.ID, a.Kind), Actual: "not live"}
	}
	if e.Kind.String() != a.Kind {
		return &AssertionError{Type: a.Type, Expected: a.Kind, Actual: e.Kind.String()}
	}
	return nil
}

func assertIDSources(m *naming.Map, a Assertion) error {
	e, ok := m.Find(ir.ElementID(a.ID))
	if !ok {
		return &AssertionError{Type: a.Type, Expected: a.ID + " live", Actual: "not live"}
	}
	got := make([]string, len(e.Sources))
	for i, s := range e.Sources {
		got[i] = string(s)
	}
	want := slices.Sorted(slices.Values(a.Sources))
	if !slices.Equal(got, want) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)}
	}
	return nil
}

func assertFailureCode(r *Result, a Assertion) error {
	f, ok := r.Regen.FailureOf(a.Op)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s failed with %s", a.Op, a.Code), Actual: "op did not fail"}
	}
	if string(f.Code) != a.Code {
		return &AssertionError{Type: a.Type, Expected: a.Code, Actual: fmt.Sprintf("%s (%s)", f.Code, f.Message)}
	}
	return nil
}

func assertElementCount(m *naming.Map, a Assertion) error {
	count := 0
	for _, e := range m.Entries() {
		if !strings.HasPrefix(string(e.ID), a.Prefix) {
			continue
		}
		if a.Kind != "" && e.Kind.String() != a.Kind {
			continue
		}
		count++
	}
	if count != a.Count {
		what := fmt.Sprintf("%d elements with prefix %q", a.Count, a.Prefix)
		if a.Kind != "" {
			what = fmt.Sprintf("%d %s elements with prefix %q", a.Count, a.Kind, a.Prefix)
		}
		return &AssertionError{Type: a.Type, Expected: what, Actual: fmt.Sprint(count)}
	}
	return nil
}

func assertStableIDs(r *Result) error {
	if r.EditedMap == nil {
		return &AssertionError{Type: AssertStableIDs, Expected: "an edited run", Actual: "no edits"}
	}
	d := naming.Diff(r.Map, r.EditedMap, ir.DescriptorTolerance)
	if len(d.Added) > 0 || len(d.Removed) > 0 {
		return &AssertionError{
			Type:     AssertStableIDs,
			Expected: "same live IDs after edits",
			Actual:   fmt.Sprintf("added %v, removed %v", d.Added, d.Removed),
		}
	}
	return nil
}
