// Package workflow defines predefined task plans: an ordered list of
// intent-level steps that guide execution of a known procedure. Plans
// are authored as YAML files and matched against task goals by name.
package workflow

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Step is one intent-level instruction in a plan. Steps describe what
// to accomplish, not which element to click; the model decides the
// concrete actions at run time.
type Step struct {
	// Intent is the short imperative label for the step.
	Intent string `yaml:"intent" json:"intent"`
	// ActionDescription elaborates the intent with enough detail to act.
	ActionDescription string `yaml:"action" json:"action"`
	// NodeIdentificationStrategy hints how to locate the relevant page
	// element, when one is involved.
	NodeIdentificationStrategy string `yaml:"find" json:"find,omitempty"`
	// ValidationStrategy describes how to confirm the step succeeded.
	ValidationStrategy string `yaml:"validate" json:"validate,omitempty"`
	// TimeoutMs bounds the step. Zero means no step-level bound.
	TimeoutMs int `yaml:"timeout_ms" json:"timeout_ms,omitempty"`
}

// Workflow is a named, ordered plan.
type Workflow struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// Validate reports the first structural problem in the plan.
func (w *Workflow) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("workflow: missing name")
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %q: no steps", w.Name)
	}
	for i, step := range w.Steps {
		if strings.TrimSpace(step.Intent) == "" {
			return fmt.Errorf("workflow %q: step %d has no intent", w.Name, i+1)
		}
		if strings.TrimSpace(step.ActionDescription) == "" {
			return fmt.Errorf("workflow %q: step %d (%s) has no action", w.Name, i+1, step.Intent)
		}
		if step.TimeoutMs < 0 {
			return fmt.Errorf("workflow %q: step %d (%s) has negative timeout", w.Name, i+1, step.Intent)
		}
	}
	return nil
}

// Render formats the plan for inclusion in a prompt. Steps are numbered
// so the model can report which step it is on.
func (w *Workflow) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Workflow: %s\n", w.Name)
	if w.Description != "" {
		fmt.Fprintf(&b, "%s\n", w.Description)
	}
	b.WriteString("\nSteps:\n")
	for i, step := range w.Steps {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, step.Intent, step.ActionDescription)
		if step.NodeIdentificationStrategy != "" {
			fmt.Fprintf(&b, "   Find: %s\n", step.NodeIdentificationStrategy)
		}
		if step.ValidationStrategy != "" {
			fmt.Fprintf(&b, "   Verify: %s\n", step.ValidationStrategy)
		}
	}
	return b.String()
}

// Load reads and validates a single plan file.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML plan bytes.
func Parse(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("workflow: parse: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}
