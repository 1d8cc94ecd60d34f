package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one invocation test scenario: the specs to load,
// the scripted upstream responses, and a flow of invocations with
// expected results.
type Scenario struct {
	// Name uniquely identifies this scenario (and its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists paths to CUE spec files to compile and register.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs"`

	// GlobalData and MetaData seed the corresponding scope layers for
	// every flow step. When the scenario scripts responses, the mock
	// server's URL is injected as global_data.base_url unless the
	// scenario sets one itself.
	GlobalData map[string]any `yaml:"global_data,omitempty"`
	MetaData   map[string]any `yaml:"meta_data,omitempty"`

	// SessionID fixes the session identifier. Defaults to "session-1".
	SessionID string `yaml:"session_id,omitempty"`

	// Responses are served by the mock upstream in request order,
	// across all attempts and steps. A request past the end of the
	// script receives a 500.
	Responses []MockResponse `yaml:"responses,omitempty"`

	// Flow contains the invocations to run, in order.
	Flow []FlowStep `yaml:"flow"`
}

// MockResponse is one scripted upstream response.
type MockResponse struct {
	// Status is the HTTP status code. Defaults to 200.
	Status int `yaml:"status,omitempty"`

	// Body is the raw response body.
	Body string `yaml:"body"`
}

// FlowStep invokes one function and optionally validates the result.
type FlowStep struct {
	// Invoke is the function name.
	Invoke string `yaml:"invoke"`

	// Args contains the function arguments.
	Args map[string]any `yaml:"args"`

	// RawArgs overrides the text expressions match against.
	RawArgs string `yaml:"raw_args,omitempty"`

	// Expect specifies the expected result. If nil, the step only has
	// to complete without a pre-pipeline rejection.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected invocation results. Unset fields are
// not checked.
type ExpectClause struct {
	// Outcome is the expected pipeline outcome: "expression",
	// "attempt_success", or "all_failed".
	Outcome string `yaml:"outcome,omitempty"`

	// Attempt is the expected successful attempt index (nil skips the
	// check; -1 means no attempt succeeded).
	Attempt *int `yaml:"attempt,omitempty"`

	// Text is the exact expected output text.
	Text *string `yaml:"text,omitempty"`

	// TextContains is a substring the output text must contain.
	TextContains string `yaml:"text_contains,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly instead of silently skipping
// checks.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath parses a scenario file, resolving relative
// spec paths against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if step.Expect != nil {
			switch step.Expect.Outcome {
			case "", "expression", "attempt_success", "all_failed":
			default:
				return fmt.Errorf("flow[%d].expect: unknown outcome %q", i, step.Expect.Outcome)
			}
		}
	}

	for i, resp := range s.Responses {
		if resp.Status != 0 && (resp.Status < 100 || resp.Status > 599) {
			return fmt.Errorf("responses[%d]: invalid status %d", i, resp.Status)
		}
	}

	return nil
}
