package harness

import (
	"github.com/roach88/regen/internal/naming"
	"github.com/roach88/regen/internal/regen"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Errors contains one message per failed check.
	Errors []string `json:"errors,omitempty"`

	// Regen is the outcome of the main run.
	Regen regen.Result `json:"regen"`

	// Edited is the outcome of the run after edits, nil without edits.
	Edited *regen.Result `json:"edited,omitempty"`

	// Map is the identity map of the main run.
	Map *naming.Map `json:"-"`

	// EditedMap is the identity map of the edited run, nil without edits.
	EditedMap *naming.Map `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
