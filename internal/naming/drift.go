package naming

import "github.com/roach88/regen/internal/ir"

// Drift lists the differences between two identity maps, all sorted.
type Drift struct {
	// Added are live in b but not in a.
	Added []ir.ElementID `json:"added"`

	// Removed are live in a but not in b.
	Removed []ir.ElementID `json:"removed"`

	// Changed are live in both with a different kind, descriptor (beyond
	// tol) or source set.
	Changed []ir.ElementID `json:"changed"`
}

// Empty reports whether the maps agree.
func (d Drift) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares a stored map a against a freshly regenerated map b.
// Shape handles and origin ops are ignored.
func Diff(a, b *Map, tol float64) Drift {
	var d Drift
	for _, id := range a.IDs() {
		ea := a.entries[id]
		eb, ok := b.entries[id]
		if !ok {
			d.Removed = append(d.Removed, id)
			continue
		}
		if ea.Kind != eb.Kind || !ea.Descriptor.ApproxEqual(eb.Descriptor, tol) || !equalIDs(ea.Sources, eb.Sources) {
			d.Changed = append(d.Changed, id)
		}
	}
	for _, id := range b.IDs() {
		if _, ok := a.entries[id]; !ok {
			d.Added = append(d.Added, id)
		}
	}
	return d
}

func equalIDs(a, b []ir.ElementID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
