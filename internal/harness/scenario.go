package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/ir"
	"github.com/roach88/regen/internal/regen"
)

// DefaultRunToken is used when a scenario sets no run_token.
const DefaultRunToken = "scenario-run"

// Scenario defines one regeneration scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// History is the document to regenerate.
	History document.File `yaml:"history"`

	// Kernel configures the reference kernel.
	Kernel KernelSetup `yaml:"kernel,omitempty"`

	// To overrides the document's applied cursor.
	To *int `yaml:"to,omitempty"`

	// RunToken is the fixed run ID of every regeneration in the scenario.
	RunToken string `yaml:"run_token,omitempty"`

	// Edits change the history before a second regeneration.
	// The stable_ids assertion compares the two runs.
	Edits []Edit `yaml:"edits,omitempty"`

	// Expect validates the main regeneration result.
	Expect Expect `yaml:"expect"`

	// Assertions validate the identity map.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// KernelSetup configures the reference kernel of a scenario.
type KernelSetup struct {
	// BaseBodies gives base bodies a box other than the default
	// [0,10]^3 cube.
	BaseBodies map[string]Box `yaml:"base_bodies,omitempty"`
}

// Box is an axis-aligned box.
type Box struct {
	Min [3]float64 `yaml:"min"`
	Max [3]float64 `yaml:"max"`
}

// Edit changes one operation of the history.
type Edit struct {
	// Op is the op_id to edit.
	Op string `yaml:"op"`

	// Params replaces the operation's parameters when set.
	Params *document.ParamsFile `yaml:"params,omitempty"`

	// Suppressed sets the suppression flag when set.
	Suppressed *bool `yaml:"suppressed,omitempty"`
}

// Expect specifies the expected regeneration result.
// Nil lists are not checked; an empty list must match exactly.
type Expect struct {
	// Status is "success", "partial_failure" or "critical_failure".
	Status string `yaml:"status"`

	// Failed lists the failed op_ids in document order.
	Failed []string `yaml:"failed,omitempty"`

	// LiveBodies lists the bound body names, sorted.
	LiveBodies []string `yaml:"live_bodies,omitempty"`

	// IDsContain lists element IDs that must be live.
	IDsContain []string `yaml:"ids_contain,omitempty"`
}

// Assertion validates the identity map or the failure list.
type Assertion struct {
	// Type specifies the assertion type:
	// - "id_absent": ID is not live
	// - "id_retired": ID was retired
	// - "id_kind": ID is live with the given kind
	// - "id_sources": ID is live with exactly the given sources
	// - "failure_code": Op failed with the given code
	// - "element_count": Count live IDs with Prefix (and Kind, if set)
	// - "stable_ids": the edited run has the same live IDs as the main run
	Type string `yaml:"type"`

	ID      string   `yaml:"id,omitempty"`
	Kind    string   `yaml:"kind,omitempty"`
	Sources []string `yaml:"sources,omitempty"`
	Op      string   `yaml:"op,omitempty"`
	Code    string   `yaml:"code,omitempty"`
	Prefix  string   `yaml:"prefix,omitempty"`
	Count   int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertIDAbsent     = "id_absent"
	AssertIDRetired    = "id_retired"
	AssertIDKind       = "id_kind"
	AssertIDSources    = "id_sources"
	AssertFailureCode  = "failure_code"
	AssertElementCount = "element_count"
	AssertStableIDs    = "stable_ids"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarioDir loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	var out []*Scenario
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (s *Scenario) runToken() string {
	if s.RunToken == "" {
		return DefaultRunToken
	}
	return s.RunToken
}

// edited returns a copy of the history with every edit applied.
func (s *Scenario) edited() (document.File, error) {
	f := s.History
	f.Operations = slices.Clone(s.History.Operations)
	for i, e := range s.Edits {
		idx := slices.IndexFunc(f.Operations, func(op document.OperationFile) bool { return op.ID == e.Op })
		if idx < 0 {
			return f, fmt.Errorf("edits[%d]: unknown op %q", i, e.Op)
		}
		if e.Params != nil {
			f.Operations[idx].Params = *e.Params
		}
		if e.Suppressed != nil {
			f.Operations[idx].Suppressed = *e.Suppressed
		}
	}
	return f, nil
}

// validateScenario checks required fields and assertion shapes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.History.ID == "" {
		return fmt.Errorf("history.id is required")
	}
	if _, err := regen.ParseStatus(s.Expect.Status); err != nil {
		return fmt.Errorf("expect.status: %w", err)
	}
	for name, b := range s.Kernel.BaseBodies {
		for i := range b.Min {
			if b.Min[i] >= b.Max[i] {
				return fmt.Errorf("kernel.base_bodies.%s: min must be below max on every axis", name)
			}
		}
	}
	for i, e := range s.Edits {
		if e.Op == "" {
			return fmt.Errorf("edits[%d]: op is required", i)
		}
		if e.Params == nil && e.Suppressed == nil {
			return fmt.Errorf("edits[%d]: nothing to edit", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i, len(s.Edits) > 0); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(a Assertion, index int, hasEdits bool) error {
	switch a.Type {
	case AssertIDAbsent, AssertIDRetired, AssertIDSources:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for %s", index, a.Type)
		}
	case AssertIDKind:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for id_kind", index)
		}
		if _, err := ir.ParseElementKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertFailureCode:
		if a.Op == "" || a.Code == "" {
			return fmt.Errorf("assertions[%d]: op and code are required for failure_code", index)
		}
	case AssertElementCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for element_count", index)
		}
		if a.Kind != "" {
			if _, err := ir.ParseElementKind(a.Kind); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertStableIDs:
		if !hasEdits {
			return fmt.Errorf("assertions[%d]: stable_ids needs edits", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
