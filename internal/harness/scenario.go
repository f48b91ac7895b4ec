package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/irkit/internal/pass"
)

// Scenario defines an end-to-end check of one module: parse, verify,
// lower, compile and invoke.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Module is the path of the module text file, relative to the
	// scenario file. Exactly one of Module and Source is set.
	Module string `yaml:"module,omitempty"`

	// Source is the module text inline.
	Source string `yaml:"source,omitempty"`

	// Pipeline lists registered pass names run on the module in order.
	// Empty means the standard lowering pipeline unless PipelineFile is set.
	Pipeline []string `yaml:"pipeline,omitempty"`

	// PipelineFile is a CUE pipeline file, relative to the scenario file.
	PipelineFile string `yaml:"pipeline_file,omitempty"`

	// Verify states whether the module as parsed is expected to verify.
	// A scenario expecting failure stops after verification.
	Verify *VerifyExpectation `yaml:"verify,omitempty"`

	// OptLevel is passed to the execution engine.
	OptLevel int `yaml:"opt_level,omitempty"`

	// Invocations are run against the compiled module in order.
	Invocations []InvocationStep `yaml:"invocations,omitempty"`

	// Golden names a golden file holding the expected lowered module text.
	Golden string `yaml:"golden,omitempty"`

	// Assertions validate the lowered module and the invocation trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunID is an optional fixed run ID for the run log.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// dir is the directory relative paths resolve against.
	dir string
}

// VerifyExpectation is the expected verification outcome.
type VerifyExpectation struct {
	OK bool `yaml:"ok"`

	// Code, when set, must be the code of one of the reported errors.
	Code string `yaml:"code,omitempty"`
}

// InvocationStep calls one function of the compiled module.
type InvocationStep struct {
	Function string  `yaml:"function"`
	Args     []int64 `yaml:"args"`

	// Expect holds the expected results. Nil skips the comparison.
	Expect []int64 `yaml:"expect,omitempty"`

	// Trap expects the invocation to trap; the value, when non-empty, must
	// occur in the trap message.
	Trap *string `yaml:"trap,omitempty"`
}

// Assertion validates the lowered module or the invocation trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": function invoked with args (prefix match)
	// - "trace_order": functions invoked in order
	// - "trace_count": function invoked exactly Count times
	// - "lowered_contains": Text occurs in the lowered module
	// - "op_count": operation Op occurs exactly Count times after lowering
	// - "dialects": lowered module only uses the listed Dialects
	Type string `yaml:"type"`

	Function  string   `yaml:"function,omitempty"`
	Args      []int64  `yaml:"args,omitempty"`
	Functions []string `yaml:"functions,omitempty"`
	Count     int      `yaml:"count,omitempty"`
	Text      string   `yaml:"text,omitempty"`
	Op        string   `yaml:"op,omitempty"`
	Dialects  []string `yaml:"dialects,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertLoweredContains = "lowered_contains"
	AssertOpCount         = "op_count"
	AssertDialects        = "dialects"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML whose relative paths resolve against
// dir.
func ParseScenario(data []byte, dir string) (*Scenario, error) {
	// Strict field validation catches typos like "invocation:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.dir = dir

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// resolve returns path relative to the scenario's directory.
func (s *Scenario) resolve(path string) string {
	if filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}

// ModulePath returns the resolved module file path, or "" for inline source.
func (s *Scenario) ModulePath() string {
	if s.Module == "" {
		return ""
	}
	return s.resolve(s.Module)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Module == "" && s.Source == "":
		return fmt.Errorf("one of module or source is required")
	case s.Module != "" && s.Source != "":
		return fmt.Errorf("module and source are mutually exclusive")
	}
	if s.Module != "" {
		if _, err := os.Stat(s.ModulePath()); os.IsNotExist(err) {
			return fmt.Errorf("module file not found: %s", s.ModulePath())
		}
	}

	if len(s.Pipeline) > 0 && s.PipelineFile != "" {
		return fmt.Errorf("pipeline and pipeline_file are mutually exclusive")
	}
	for i, name := range s.Pipeline {
		if _, ok := pass.Lookup(name); !ok {
			return fmt.Errorf("pipeline[%d]: unknown pass %q", i, name)
		}
	}
	if s.OptLevel < 0 || s.OptLevel > 3 {
		return fmt.Errorf("opt_level must be between 0 and 3, got %d", s.OptLevel)
	}

	expectFailure := s.Verify != nil && !s.Verify.OK
	if expectFailure && (len(s.Invocations) > 0 || s.Golden != "") {
		return fmt.Errorf("a scenario expecting verification failure cannot invoke or compare golden output")
	}

	for i, step := range s.Invocations {
		if step.Function == "" {
			return fmt.Errorf("invocations[%d]: function is required", i)
		}
		if step.Expect != nil && step.Trap != nil {
			return fmt.Errorf("invocations[%d]: expect and trap are mutually exclusive", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: trace_contains requires function", index)
		}
	case AssertTraceOrder:
		if len(a.Functions) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order requires at least 2 functions", index)
		}
	case AssertTraceCount:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: trace_count requires function", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: trace_count requires count >= 0", index)
		}
	case AssertLoweredContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: lowered_contains requires text", index)
		}
	case AssertOpCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op_count requires op", index)
		}
	case AssertDialects:
		if len(a.Dialects) == 0 {
			return fmt.Errorf("assertions[%d]: dialects requires a non-empty list", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
