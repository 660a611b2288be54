package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bindery/internal/model"
	"github.com/roach88/bindery/internal/trace"
)

// Scenario binds one document against one view-model, optionally changes
// the view-model in steps, and checks the document and trace after each.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name string `yaml:"name"`

	// Description says what the scenario demonstrates.
	Description string `yaml:"description"`

	// Document is the HTML to bind.
	Document string `yaml:"document"`

	// Model is the view-model, inline.
	Model map[string]any `yaml:"model,omitempty"`

	// ModelFile is a .cue, .json or .yaml view-model, relative to the
	// scenario file. Mutually exclusive with Model.
	ModelFile string `yaml:"model_file,omitempty"`

	// Interpolation turns on {{ expr }} text interpolation.
	Interpolation bool `yaml:"interpolation,omitempty"`

	// Expect is checked after the initial apply.
	Expect Expect `yaml:"expect,omitempty"`

	// Steps change the view-model after the initial apply.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions are checked against the full trace at the end.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expect describes the document state or failure after a phase.
type Expect struct {
	// HTML is the expected body content, compared with surrounding
	// whitespace trimmed. Not checked when empty.
	HTML string `yaml:"html,omitempty"`

	// Error is a substring the phase's error must contain. When empty the
	// phase must not fail.
	Error string `yaml:"error,omitempty"`
}

// Step sets view-model fields by dotted path.
type Step struct {
	Set    map[string]any `yaml:"set"`
	Expect Expect         `yaml:"expect,omitempty"`
}

// Assertion checks the trace.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count.
	Type string `yaml:"type"`

	// Event matches events for trace_contains and trace_count.
	Event EventMatch `yaml:",inline"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events must match in this order (trace_order).
	Events []EventMatch `yaml:"events,omitempty"`
}

// EventMatch matches trace events on the fields it sets.
type EventMatch struct {
	Kind    string `yaml:"kind,omitempty"`
	Node    string `yaml:"node,omitempty"`
	Binding string `yaml:"binding,omitempty"`
	Detail  string `yaml:"detail,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and validates a scenario file. A model_file is
// resolved against the scenario's directory and loaded into Model.
//
// Unknown fields are rejected so typos do not silently drop checks.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	if scenario.ModelFile != "" {
		modelPath := scenario.ModelFile
		if !filepath.IsAbs(modelPath) {
			modelPath = filepath.Join(filepath.Dir(path), modelPath)
		}
		vm, err := model.Load(modelPath)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario: model_file: %w", err)
		}
		scenario.Model = vm
	}
	scenario.Model, _ = model.Normalize(scenario.Model).(map[string]any)
	for i := range scenario.Steps {
		scenario.Steps[i].Set, _ = model.Normalize(scenario.Steps[i].Set).(map[string]any)
	}

	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir, sorted. A
// non-empty filter is a glob matched against the file name without its
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(filepath.Base(path), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(s.Document) == "" {
		return fmt.Errorf("document is required")
	}
	if s.Model != nil && s.ModelFile != "" {
		return fmt.Errorf("model and model_file are mutually exclusive")
	}

	for i, step := range s.Steps {
		if len(step.Set) == 0 {
			return fmt.Errorf("steps[%d]: set is required and must be non-empty", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == (EventMatch{}) {
			return fmt.Errorf("assertions[%d]: trace_contains needs at least one of kind, node, binding, detail", index)
		}
	case AssertTraceCount:
		if a.Event == (EventMatch{}) {
			return fmt.Errorf("assertions[%d]: trace_count needs at least one of kind, node, binding, detail", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	for _, m := range append([]EventMatch{a.Event}, a.Events...) {
		if m.Kind != "" && !knownKind(m.Kind) {
			return fmt.Errorf("assertions[%d]: unknown event kind %q", index, m.Kind)
		}
	}
	return nil
}

func knownKind(k string) bool {
	switch trace.Kind(k) {
	case trace.KindBind, trace.KindInit, trace.KindUpdate, trace.KindChildrenComplete,
		trace.KindDescendantsComplete, trace.KindDispose, trace.KindError:
		return true
	}
	return false
}
