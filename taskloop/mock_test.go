package taskloop

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/webpilot-ai/webpilot/llm"
)

// modelTurn scripts one model response: optional streamed text followed
// by tool calls. err aborts the stream instead.
type modelTurn struct {
	text  string
	calls []llm.ToolCall
	err   error
}

// scriptedAdapter plays back modelTurn entries in order, one per Stream
// or Complete call. When the script runs out it repeats the last turn.
type scriptedAdapter struct {
	mu            sync.Mutex
	turns         []modelTurn
	streamCalls   int
	completeCalls int
	completeText  string
	completeErr   error
	lastRequest   llm.Request
}

func (a *scriptedAdapter) Name() string { return "mock" }

func (a *scriptedAdapter) next() modelTurn {
	if len(a.turns) == 0 {
		return modelTurn{text: "..."}
	}
	i := a.streamCalls - 1
	if i >= len(a.turns) {
		i = len(a.turns) - 1
	}
	return a.turns[i]
}

func (a *scriptedAdapter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completeCalls++
	a.lastRequest = req
	if a.completeErr != nil {
		return nil, a.completeErr
	}
	return &llm.Response{
		ID:      "resp_mock",
		Model:   req.Model,
		Message: llm.AssistantMessage(a.completeText),
	}, nil
}

func (a *scriptedAdapter) Stream(_ context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	a.mu.Lock()
	a.streamCalls++
	a.lastRequest = req
	turn := a.next()
	a.mu.Unlock()

	if turn.err != nil {
		return nil, turn.err
	}

	ch := make(chan llm.StreamEvent, len(turn.calls)+4)
	ch <- llm.StreamEvent{Type: llm.StreamStart}
	if turn.text != "" {
		ch <- llm.StreamEvent{Type: llm.TextDelta, Delta: turn.text}
	}
	for i := range turn.calls {
		call := turn.calls[i]
		ch <- llm.StreamEvent{Type: llm.ToolCallEnd, ToolCall: &call}
	}
	ch <- llm.StreamEvent{Type: llm.StreamFinish,
		FinishReason: &llm.FinishReason{Reason: "stop"},
		Usage:        &llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		Response:     &llm.Response{Message: llm.AssistantMessage(turn.text)},
	}
	close(ch)
	return ch, nil
}

func newScriptedClient(adapter *scriptedAdapter) *llm.Client {
	return llm.NewClient(llm.WithProvider("mock", adapter))
}

func call(name, args string) llm.ToolCall {
	return llm.ToolCall{Name: name, Arguments: json.RawMessage(args)}
}

func doneCall(success bool) llm.ToolCall {
	if success {
		return call(ToolDone, `{"success": true, "message": "all done"}`)
	}
	return call(ToolDone, `{"success": false, "message": "could not finish"}`)
}

// fakeClock advances only when told to. After channels fire as soon as
// Advance moves the clock past their deadline.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	at := c.now.Add(d)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, fakeWaiter{at: at, ch: ch})
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var remaining []fakeWaiter
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	c.mu.Unlock()
}

// mockSnapshotter returns a fixed page rendering.
type mockSnapshotter struct {
	full    string
	reduced string
	err     error
}

func (s *mockSnapshotter) Snapshot(_ context.Context, _ int, reduced bool) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if reduced {
		return s.reduced, nil
	}
	return s.full, nil
}
