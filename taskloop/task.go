package taskloop

import (
	"time"

	"github.com/webpilot-ai/webpilot/workflow"
)

// ExecutionMode selects how the loop is prompted.
type ExecutionMode string

const (
	// ModeDynamic lets the model decompose the task turn by turn.
	ModeDynamic ExecutionMode = "dynamic"
	// ModePredefined follows a fixed, externally supplied step list.
	ModePredefined ExecutionMode = "predefined"
)

// Task is the immutable goal of one run.
type Task struct {
	Goal      string             `json:"goal"`
	Mode      ExecutionMode      `json:"mode"`
	Source    string             `json:"source,omitempty"`
	Plan      *workflow.Workflow `json:"plan,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewTask creates a Task. Predefined mode without a plan degrades to
// dynamic mode at prompt time.
func NewTask(goal string, mode ExecutionMode) Task {
	if mode == "" {
		mode = ModeDynamic
	}
	return Task{Goal: goal, Mode: mode, CreatedAt: time.Now()}
}
