package taskloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action is a human response to an input request.
type Action string

const (
	ActionDone  Action = "done"
	ActionAbort Action = "abort"
)

// ErrInputTimeout is returned by Await when no response arrives within
// the gate's timeout. The outcome is treated as an abort.
var ErrInputTimeout = errors.New("human input timed out")

// HumanInputRequest is posted by the loop when a tool signals that it
// needs out-of-band user input.
type HumanInputRequest struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}

type pendingInput struct {
	request HumanInputRequest
	action  *Action
}

// Gate is a single-slot rendezvous between the loop and an external
// actor. The loop posts a request and polls for the response; the actor
// responds asynchronously through Respond. The first resolution of a
// request wins; later responses for the same id are ignored.
type Gate struct {
	pending      map[string]*pendingInput
	clock        Clock
	pollInterval time.Duration
	timeout      time.Duration
	mu           sync.Mutex
}

// NewGate creates a Gate. Zero durations get the defaults: 500ms poll
// interval, 10 minute timeout.
func NewGate(clock Clock, pollInterval, timeout time.Duration) *Gate {
	if clock == nil {
		clock = SystemClock
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Gate{
		pending:      make(map[string]*pendingInput),
		clock:        clock,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// Request registers a new input request and returns it.
func (g *Gate) Request(prompt string) HumanInputRequest {
	req := HumanInputRequest{
		ID:        uuid.New().String(),
		Prompt:    prompt,
		CreatedAt: g.clock.Now(),
	}
	g.mu.Lock()
	g.pending[req.ID] = &pendingInput{request: req}
	g.mu.Unlock()
	return req
}

// Respond stores the response for a request. It reports whether the
// response was accepted; responses for unknown or already-resolved
// requests are no-ops.
func (g *Gate) Respond(requestID string, action Action) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[requestID]
	if !ok || p.action != nil {
		return false
	}
	a := action
	p.action = &a
	return true
}

// PendingIDs lists the ids of requests that have not been resolved yet.
func (g *Gate) PendingIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []string
	for id, p := range g.pending {
		if p.action == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// take consumes the stored response for a request, removing the entry so
// the map does not grow with the session's lifetime.
func (g *Gate) take(requestID string) (Action, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[requestID]
	if !ok || p.action == nil {
		return "", false
	}
	delete(g.pending, requestID)
	return *p.action, true
}

// abandon drops a request regardless of its resolution state.
func (g *Gate) abandon(requestID string) {
	g.mu.Lock()
	delete(g.pending, requestID)
	g.mu.Unlock()
}

// Await blocks until the request resolves, the gate timeout elapses, or
// ctx is cancelled. It polls on the gate's interval so the host process
// is never blocked. Timeout counts as a synthetic abort and returns
// ErrInputTimeout; cancellation takes priority over a pending wait and
// returns ctx's error. Whatever the exit path, the request is consumed
// and later responses for its id are rejected.
func (g *Gate) Await(ctx context.Context, requestID string) (Action, error) {
	g.mu.Lock()
	p, ok := g.pending[requestID]
	g.mu.Unlock()
	if !ok {
		return ActionAbort, fmt.Errorf("unknown human input request %q", requestID)
	}

	deadline := p.request.CreatedAt.Add(g.timeout)
	for {
		if action, ok := g.take(requestID); ok {
			return action, nil
		}
		if !g.clock.Now().Before(deadline) {
			g.abandon(requestID)
			return ActionAbort, ErrInputTimeout
		}
		select {
		case <-ctx.Done():
			g.abandon(requestID)
			return ActionAbort, ctx.Err()
		case <-g.clock.After(g.pollInterval):
		}
	}
}
