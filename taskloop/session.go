package taskloop

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/webpilot-ai/webpilot/llm"
	"github.com/webpilot-ai/webpilot/workflow"
)

// Session owns the state shared across runs: the tool registry, the
// conversation history, the event stream, and the human-input gate.
// At most one run is active at a time; starting a new run cancels the
// previous one and waits for it to unwind.
type Session struct {
	id          string
	registry    *ToolRegistry
	client      *llm.Client
	snapshotter Snapshotter
	gate        *Gate
	history     *History
	emitter     *EventEmitter
	config      Config
	plans       *workflow.Library
	clock       Clock

	mu        sync.Mutex
	cancelRun context.CancelFunc
	runDone   chan struct{}
	closed    bool
}

// SessionOption configures a Session at construction time.
type SessionOption func(*Session)

// WithSnapshotter supplies the environment state source consulted each
// iteration.
func WithSnapshotter(s Snapshotter) SessionOption {
	return func(sess *Session) { sess.snapshotter = s }
}

// WithWorkflowLibrary supplies predefined plans matched against goals.
func WithWorkflowLibrary(lib *workflow.Library) SessionOption {
	return func(sess *Session) { sess.plans = lib }
}

// WithClock overrides the time source. Used in tests.
func WithClock(c Clock) SessionOption {
	return func(sess *Session) { sess.clock = c }
}

// NewSession creates a session with the control tools pre-registered.
// Callers register their environment tools on Registry before Execute.
func NewSession(client *llm.Client, cfg Config, opts ...SessionOption) (*Session, error) {
	if client == nil {
		return nil, fmt.Errorf("session: nil llm client")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sess := &Session{
		id:       uuid.New().String(),
		registry: NewToolRegistry(),
		client:   client,
		history:  NewHistory(),
		config:   cfg,
		clock:    SystemClock,
	}
	for _, opt := range opts {
		opt(sess)
	}

	sess.emitter = NewEventEmitter(sess.id, cfg.EventBufferSize)
	sess.gate = NewGate(sess.clock, cfg.HumanInputPollInterval, cfg.HumanInputTimeout)
	RegisterControlTools(sess.registry)

	return sess, nil
}

// ID returns the session's stable identifier.
func (s *Session) ID() string { return s.id }

// Registry exposes the tool registry for caller registration.
func (s *Session) Registry() *ToolRegistry { return s.registry }

// Events returns the session's event stream. Events are dropped, never
// blocked on, when the consumer falls behind.
func (s *Session) Events() <-chan SessionEvent { return s.emitter.Events() }

// Execute runs a task to a terminal outcome. If a run is already in
// flight it is cancelled first and Execute waits for it to finish, so
// two runs never mutate the history concurrently. History accumulates
// across runs until Reset.
func (s *Session) Execute(ctx context.Context, goal string, mode ExecutionMode) (RunOutcome, error) {
	if goal == "" {
		return RunOutcome{}, fmt.Errorf("session: empty goal")
	}

	// Cancel-and-wait until no run is installed. Another Execute may
	// install its own run while this one waits, so the check repeats
	// under the lock before claiming the slot.
	s.mu.Lock()
	for {
		if s.closed {
			s.mu.Unlock()
			return RunOutcome{}, fmt.Errorf("session: closed")
		}
		if s.cancelRun == nil {
			break
		}
		cancel, done := s.cancelRun, s.runDone
		s.mu.Unlock()
		cancel()
		<-done
		s.mu.Lock()
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancelRun = cancel
	s.runDone = done
	s.mu.Unlock()

	defer func() {
		cancel()
		close(done)
		s.mu.Lock()
		if s.runDone == done {
			s.cancelRun = nil
			s.runDone = nil
		}
		s.mu.Unlock()
	}()

	task := s.buildTask(goal, mode)

	summaryModel := s.config.SummaryModel
	if summaryModel == "" {
		summaryModel = llm.FastModelFor("", s.config.Model)
	}
	budget := NewContextBudget(s.history, s.client, summaryModel, s.config.FallbackRecentEntries)
	budget.OnCompact(func(from, to int) {
		s.emitter.Emit(EventHistoryCompacted, map[string]interface{}{
			"from_iteration": from,
			"to_iteration":   to,
		})
	})

	orch := newOrchestrator(task, s.registry, s.client, budget,
		s.snapshotter, s.gate, s.emitter, s.history, s.config)
	return orch.Run(runCtx), nil
}

// buildTask resolves the execution mode. A dynamic goal that matches a
// plan in the library is promoted to predefined execution; lookup happens
// once here, never inside the loop.
func (s *Session) buildTask(goal string, mode ExecutionMode) Task {
	task := NewTask(goal, mode)
	if s.plans == nil {
		return task
	}
	if mode == ModeDynamic {
		if plan := s.plans.Lookup(goal); plan != nil {
			task.Mode = ModePredefined
			task.Plan = plan
			task.Source = plan.Name
		}
	}
	return task
}

// Cancel stops the in-flight run, if any. History is preserved so a
// follow-up run can pick up where the cancelled one stopped.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel, done := s.cancelRun, s.runDone
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Reset cancels any in-flight run and clears the accumulated history.
func (s *Session) Reset() {
	s.Cancel()
	s.history.Clear()
}

// History returns a copy of the accumulated entries.
func (s *Session) History() []HistoryEntry { return s.history.Entries() }

// RespondHumanInput resolves a pending human-input request. It reports
// whether the request was pending and unresolved.
func (s *Session) RespondHumanInput(requestID string, action Action) bool {
	return s.gate.Respond(requestID, action)
}

// Close cancels any run and closes the event stream. The session cannot
// be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Cancel()
	s.emitter.Close()
}
