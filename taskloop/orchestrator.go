package taskloop

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/webpilot-ai/webpilot/llm"
)

// RunStatus is the terminal state of one run.
type RunStatus string

const (
	RunCompleted      RunStatus = "completed"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunIterationLimit RunStatus = "iteration_limit_exceeded"
)

// RunOutcome is the result of one run. Reason is the single user-visible
// message for non-completed outcomes.
type RunOutcome struct {
	Status     RunStatus `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Iterations int       `json:"iterations"`
	Message    string    `json:"message,omitempty"` // done tool's summary
	Success    bool      `json:"success"`
}

// executionState lives for exactly one run and is never reused.
type executionState struct {
	iteration          int
	noToolCallStreak   int
	doneCalled         bool
	doneSuccess        bool
	doneMessage        string
	requiresHumanInput bool
	humanPrompt        string
}

// Orchestrator drives one run: build prompt, invoke model, dispatch tool
// calls, append history, decide continue/stop.
type Orchestrator struct {
	task        Task
	registry    *ToolRegistry
	client      *llm.Client
	budget      *ContextBudget
	snapshotter Snapshotter
	gate        *Gate
	emitter     *EventEmitter
	history     *History
	config      Config
}

func newOrchestrator(task Task, registry *ToolRegistry, client *llm.Client, budget *ContextBudget,
	snap Snapshotter, gate *Gate, emitter *EventEmitter, history *History, cfg Config) *Orchestrator {
	return &Orchestrator{
		task:        task,
		registry:    registry,
		client:      client,
		budget:      budget,
		snapshotter: snap,
		gate:        gate,
		emitter:     emitter,
		history:     history,
		config:      cfg,
	}
}

// Run executes the loop to a terminal outcome. A fresh executionState is
// created here so state never leaks between runs.
func (o *Orchestrator) Run(ctx context.Context) RunOutcome {
	state := &executionState{}

	o.emitter.Emit(EventRunStarted, map[string]interface{}{
		"goal": o.task.Goal,
		"mode": string(o.task.Mode),
	})

	systemPrompt := BuildSystemPrompt(o.task)
	retryPolicy := llm.DefaultRetryPolicy()
	if o.config.ModelRetries > 0 {
		retryPolicy.MaxRetries = o.config.ModelRetries
	}

	for state.iteration < o.config.MaxIterations {
		// Cancellation is observed before any further side-effecting call.
		select {
		case <-ctx.Done():
			return o.cancelled(state)
		default:
		}

		state.iteration++

		outcome, err := o.invokeModel(ctx, state, systemPrompt, retryPolicy)
		if err != nil {
			if ctx.Err() != nil {
				return o.cancelled(state)
			}
			return o.failed(state, fmt.Sprintf("model call failed: %v", err))
		}

		if outcome.Suppressed {
			o.history.AppendNote(state.iteration, correctiveInstruction)
			o.emitter.Emit(EventOutputSuppressed, map[string]interface{}{
				"iteration": state.iteration,
			})
		}

		if len(outcome.ToolCalls) == 0 {
			state.noToolCallStreak++
			if state.noToolCallStreak >= o.config.MaxNoToolCallTurns {
				return o.failed(state, fmt.Sprintf(
					"no progress: model produced no tool calls for %d consecutive turns",
					state.noToolCallStreak))
			}
			continue
		}
		state.noToolCallStreak = 0

		o.dispatchBatch(ctx, state, outcome.ToolCalls)

		if state.doneCalled {
			o.emitter.Emit(EventRunCompleted, map[string]interface{}{
				"iterations": state.iteration,
				"success":    state.doneSuccess,
				"message":    state.doneMessage,
			})
			return RunOutcome{
				Status:     RunCompleted,
				Iterations: state.iteration,
				Message:    state.doneMessage,
				Success:    state.doneSuccess,
			}
		}

		if state.requiresHumanInput {
			if terminal, ok := o.awaitHumanInput(ctx, state); !ok {
				return terminal
			}
		}

		o.checkForLoop(state)
	}

	return o.iterationLimit(state)
}

// invokeModel builds the per-iteration request and calls the model
// through the streaming filter, with bounded retries.
func (o *Orchestrator) invokeModel(ctx context.Context, state *executionState,
	systemPrompt string, policy llm.RetryPolicy) (*StreamOutcome, error) {

	window := llm.ContextWindowFor(o.config.Model)
	overhead := CountTokens(systemPrompt) + CountTokens(o.task.Goal)
	remaining := window - overhead - o.config.OutputReserveTokens
	if remaining < 1024 {
		remaining = 1024
	}
	historyBudget := int(float64(remaining) * o.config.ContextFraction)

	historyText := o.budget.Context(ctx, historyBudget)

	snapshotBudget := remaining - CountTokens(historyText)
	snapshot := renderSnapshot(ctx, o.snapshotter, snapshotBudget)

	toolDefs := o.registry.Definitions()
	llmTools := make([]llm.ToolDefinition, len(toolDefs))
	for i, td := range toolDefs {
		llmTools[i] = llm.ToolDefinition{
			Name:        td.Name,
			Description: td.Description,
			Parameters:  td.Parameters,
		}
	}

	req := llm.Request{
		Model: o.config.Model,
		Messages: []llm.Message{
			llm.SystemMessage(systemPrompt),
			llm.UserMessage(buildTurnPrompt(o.task, historyText, snapshot)),
		},
		Tools:      llmTools,
		ToolChoice: &llm.ToolChoice{Mode: "auto"},
	}

	iteration := state.iteration
	return llm.Retry(ctx, policy, func(ctx context.Context) (*StreamOutcome, error) {
		events, err := o.client.Stream(ctx, req)
		if err != nil {
			return nil, err
		}
		return FilterStream(events, func(delta string) {
			o.emitter.Emit(EventThinkingDelta, map[string]interface{}{
				"iteration": iteration,
				"delta":     delta,
			})
		})
	})
}

// dispatchBatch runs the batch's calls strictly in the order received and
// records a result for every call, even when an earlier one fails. Tools
// may depend on the order (fill a field before submitting), so calls are
// never parallelized within a batch.
func (o *Orchestrator) dispatchBatch(ctx context.Context, state *executionState, calls []llm.ToolCall) {
	for _, call := range calls {
		if call.ID == "" {
			call.ID = "call_" + uuid.New().String()[:8]
		}

		o.emitter.Emit(EventToolCallStart, map[string]interface{}{
			"iteration": state.iteration,
			"call_id":   call.ID,
			"tool":      call.Name,
		})

		result := o.registry.Dispatch(ctx, call.Name, call.Arguments)
		if result.OK && result.Output != "" {
			result.Output = TruncateToolOutput(result.Output, call.Name,
				o.config.ToolOutputLimits, o.config.ToolLineLimits)
		}

		o.history.AppendCall(state.iteration, call.Name, call.Arguments, result)

		data := map[string]interface{}{
			"iteration": state.iteration,
			"call_id":   call.ID,
			"tool":      call.Name,
			"ok":        result.OK,
		}
		if !result.OK {
			data["error"] = result.Error
		}
		o.emitter.Emit(EventToolCallEnd, data)

		if result.Done {
			state.doneCalled = true
			state.doneSuccess = result.Success
			state.doneMessage = result.Output
		}
		if result.NeedsHumanInput {
			state.requiresHumanInput = true
			state.humanPrompt = result.HumanPrompt
		}
	}
}

// awaitHumanInput suspends the run on the gate. It returns ok=true when
// the run should resume; otherwise the returned outcome is terminal.
func (o *Orchestrator) awaitHumanInput(ctx context.Context, state *executionState) (RunOutcome, bool) {
	req := o.gate.Request(state.humanPrompt)
	o.emitter.Emit(EventHumanInputRequested, map[string]interface{}{
		"request_id": req.ID,
		"prompt":     req.Prompt,
	})

	action, err := o.gate.Await(ctx, req.ID)
	o.emitter.Emit(EventHumanInputResolved, map[string]interface{}{
		"request_id": req.ID,
		"action":     string(action),
		"timed_out":  err == ErrInputTimeout,
	})

	if err != nil && ctx.Err() != nil {
		return o.cancelled(state), false
	}
	if err == ErrInputTimeout {
		return o.failed(state, "human input timed out; run aborted"), false
	}
	if action == ActionAbort {
		return o.failed(state, "run aborted by user"), false
	}

	state.requiresHumanInput = false
	state.humanPrompt = ""
	o.history.AppendNote(state.iteration, "user completed the requested action; continue the task")
	return RunOutcome{}, true
}

// checkForLoop warns the model when recent calls repeat verbatim.
func (o *Orchestrator) checkForLoop(state *executionState) {
	if !o.config.EnableLoopDetection {
		return
	}
	if DetectLoop(o.history.Entries(), o.config.LoopDetectionWindow) {
		warning := fmt.Sprintf(
			"The last %d tool calls repeat the same pattern. The current approach is not working; try something different.",
			o.config.LoopDetectionWindow)
		o.history.AppendNote(state.iteration, warning)
		o.emitter.Emit(EventLoopDetected, map[string]interface{}{
			"iteration": state.iteration,
		})
	}
}

func (o *Orchestrator) cancelled(state *executionState) RunOutcome {
	o.emitter.Emit(EventRunCancelled, map[string]interface{}{
		"iterations": state.iteration,
	})
	return RunOutcome{Status: RunCancelled, Reason: "run cancelled", Iterations: state.iteration}
}

func (o *Orchestrator) failed(state *executionState, reason string) RunOutcome {
	o.emitter.Emit(EventRunFailed, map[string]interface{}{
		"iterations": state.iteration,
		"reason":     reason,
	})
	return RunOutcome{Status: RunFailed, Reason: reason, Iterations: state.iteration}
}

func (o *Orchestrator) iterationLimit(state *executionState) RunOutcome {
	reason := fmt.Sprintf("iteration limit of %d reached without completion", o.config.MaxIterations)
	o.emitter.Emit(EventRunFailed, map[string]interface{}{
		"iterations": state.iteration,
		"reason":     reason,
	})
	return RunOutcome{Status: RunIterationLimit, Reason: reason, Iterations: state.iteration}
}
