package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tangle/internal/step"
)

// Scenario is a hand-written step stream with the records and run totals
// the engine must produce for it.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// ConfigFile is a run configuration YAML, relative to the scenario
	// file when loaded with LoadScenarioWithBasePath.
	ConfigFile string `yaml:"config_file,omitempty"`

	// Config holds inline configuration keys. It may not be combined with
	// ConfigFile.
	Config map[string]any `yaml:"config,omitempty"`

	// Workers overrides the configured worker count. Defaults to 1 so
	// record order is deterministic.
	Workers int `yaml:"workers,omitempty"`

	// Tolerance is the absolute tolerance for float observables.
	// Defaults to DefaultTolerance.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	Events []EventSpec `yaml:"events"`

	// Assertions validate the emitted records and the run total.
	// Supported types: record_count, record, no_record, run_total, category
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultTolerance is the float comparison tolerance in degrees, mm or MeV.
const DefaultTolerance = 1e-6

// EventSpec is one event of the scenario.
type EventSpec struct {
	ID    int64      `yaml:"id"`
	Steps []StepSpec `yaml:"steps"`
}

// StepSpec describes one step record. Exactly one of Post or Theta/Phi
// gives the post-step direction; when neither is set the photon keeps its
// pre-step direction.
type StepSpec struct {
	Track    int           `yaml:"track"`
	Step     int           `yaml:"step"`
	Particle step.Particle `yaml:"particle,omitempty"`
	Process  step.Process  `yaml:"process"`

	// Crystal and Collimator select the struck volume. Neither means the
	// world volume.
	Crystal    *int `yaml:"crystal,omitempty"`
	Collimator *int `yaml:"collimator,omitempty"`

	Pre  []float64 `yaml:"pre,omitempty"`
	Post []float64 `yaml:"post,omitempty"`

	// Theta and Phi give the post direction in degrees around Pre.
	Theta *float64 `yaml:"theta,omitempty"`
	Phi   *float64 `yaml:"phi,omitempty"`

	// Pos is the post-step position in mm.
	Pos []float64 `yaml:"pos,omitempty"`

	PrePol  []float64 `yaml:"pre_pol,omitempty"`
	PostPol []float64 `yaml:"post_pol,omitempty"`

	// Edep is the energy deposit in MeV.
	Edep float64 `yaml:"edep,omitempty"`
}

// Assertion validates the run output.
type Assertion struct {
	// Type specifies the assertion type:
	// - "record_count": exactly Count records were emitted
	// - "record": a record exists for Event and matches Expect
	// - "no_record": no record exists for Event
	// - "run_total": the run summary fields in Expect match
	// - "category": the pairing Pair was counted Count times
	Type string `yaml:"type"`

	// Event is the event id (used by record, no_record).
	Event int64 `yaml:"event,omitempty"`

	// Expect maps observable names to expected values (used by record,
	// run_total). Subset match - only listed observables are checked.
	Expect map[string]float64 `yaml:"expect,omitempty"`

	// Count is the expected number (used by record_count, category).
	Count *int64 `yaml:"count,omitempty"`

	// Pair is the 1-based scatter order on side A and side B (used by
	// category).
	Pair []int `yaml:"pair,omitempty"`
}

// Assertion type constants.
const (
	AssertRecordCount = "record_count"
	AssertRecord      = "record"
	AssertNoRecord    = "no_record"
	AssertRunTotal    = "run_total"
	AssertCategory    = "category"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving config_file relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.ConfigFile != "" && !filepath.IsAbs(scenario.ConfigFile) && basePath != "" {
		scenario.ConfigFile = filepath.Join(basePath, scenario.ConfigFile)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML with strict field checking. It does
// not validate the result.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.ConfigFile != "" && len(s.Config) > 0 {
		return fmt.Errorf("config and config_file are mutually exclusive")
	}
	if s.ConfigFile != "" {
		if _, err := os.Stat(s.ConfigFile); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", s.ConfigFile)
		}
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be positive, got %d", s.Workers)
	}
	if s.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[int64]bool, len(s.Events))
	for i, ev := range s.Events {
		if seen[ev.ID] {
			return fmt.Errorf("events[%d]: duplicate event id %d", i, ev.ID)
		}
		seen[ev.ID] = true
		for j, st := range ev.Steps {
			if err := validateStep(st); err != nil {
				return fmt.Errorf("events[%d].steps[%d]: %w", i, j, err)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(st StepSpec) error {
	if st.Track < 1 {
		return fmt.Errorf("track must be at least 1")
	}
	if st.Crystal != nil && st.Collimator != nil {
		return fmt.Errorf("crystal and collimator are mutually exclusive")
	}
	if st.Post != nil && (st.Theta != nil || st.Phi != nil) {
		return fmt.Errorf("post and theta/phi are mutually exclusive")
	}
	if (st.Theta == nil) != (st.Phi == nil) {
		return fmt.Errorf("theta and phi must be given together")
	}
	if st.Theta != nil && st.Pre == nil {
		return fmt.Errorf("theta/phi require pre")
	}
	if (st.PrePol == nil) != (st.PostPol == nil) {
		return fmt.Errorf("pre_pol and post_pol must be given together")
	}
	for name, v := range map[string][]float64{
		"pre": st.Pre, "post": st.Post, "pos": st.Pos,
		"pre_pol": st.PrePol, "post_pol": st.PostPol,
	} {
		if v != nil && len(v) != 3 {
			return fmt.Errorf("%s must have 3 components, got %d", name, len(v))
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertRecordCount:
		if a.Count == nil {
			return fmt.Errorf("record_count requires count")
		}
	case AssertRecord:
		if len(a.Expect) == 0 {
			return fmt.Errorf("record requires expect")
		}
		for key := range a.Expect {
			if _, ok := observables[key]; !ok {
				return fmt.Errorf("unknown record observable %q", key)
			}
		}
	case AssertNoRecord:
	case AssertRunTotal:
		if len(a.Expect) == 0 {
			return fmt.Errorf("run_total requires expect")
		}
		for key := range a.Expect {
			if _, ok := summaryFields[key]; !ok {
				return fmt.Errorf("unknown run_total field %q", key)
			}
		}
	case AssertCategory:
		if a.Count == nil {
			return fmt.Errorf("category requires count")
		}
		if len(a.Pair) != 2 || a.Pair[0] < 1 || a.Pair[0] > 2 || a.Pair[1] < 1 || a.Pair[1] > 2 {
			return fmt.Errorf("category pair must be two orders in 1..2, got %v", a.Pair)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
