package taskloop

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/webpilot-ai/webpilot/llm"
)

func filledHistory(n int) *History {
	h := NewHistory()
	long := strings.Repeat("result text that occupies budget ", 40)
	for i := 1; i <= n; i++ {
		h.AppendCall(i, "read_page", json.RawMessage(`{"filter": "interactive"}`),
			&Result{OK: true, Output: long})
	}
	return h
}

func TestBudgetWithinLimitPassesThrough(t *testing.T) {
	h := NewHistory()
	h.AppendCall(1, "navigate", json.RawMessage(`{"url": "https://example.com"}`),
		&Result{OK: true, Output: "loaded"})

	adapter := &scriptedAdapter{completeText: "should not be called"}
	b := NewContextBudget(h, newScriptedClient(adapter), "fast-model", 5)

	got := b.Context(context.Background(), 100000)
	if !strings.Contains(got, "navigate") {
		t.Errorf("rendering missing entry:\n%s", got)
	}
	if adapter.completeCalls != 0 {
		t.Errorf("summarizer called %d times on a within-budget history", adapter.completeCalls)
	}
	if h.Len() != 1 {
		t.Errorf("history mutated: len = %d", h.Len())
	}
}

func TestBudgetCompactsOnOverflow(t *testing.T) {
	h := filledHistory(8)
	adapter := &scriptedAdapter{completeText: "Read the results page eight times; listing data captured."}
	b := NewContextBudget(h, newScriptedClient(adapter), "fast-model", 5)

	var from, to int
	b.OnCompact(func(f, tto int) { from, to = f, tto })

	got := b.Context(context.Background(), 200)
	if adapter.completeCalls != 1 {
		t.Fatalf("summarizer calls = %d, want 1", adapter.completeCalls)
	}
	if !strings.Contains(got, "listing data captured") {
		t.Errorf("rendering should carry the summary:\n%s", got)
	}
	if from != 1 || to != 8 {
		t.Errorf("compacted range = %d-%d, want 1-8", from, to)
	}

	entries := h.Entries()
	if len(entries) != 1 || entries[0].Kind != EntrySummary {
		t.Fatalf("history after compaction = %+v", entries)
	}
	if entries[0].FromIteration != 1 || entries[0].ToIteration != 8 {
		t.Errorf("summary range = %d-%d", entries[0].FromIteration, entries[0].ToIteration)
	}

	// The summarizer saw the rendered log, not the raw structs.
	if !strings.Contains(adapter.lastRequest.Messages[1].TextContent(), "read_page") {
		t.Error("summarization request should include the rendered log")
	}
	if adapter.lastRequest.Model != "fast-model" {
		t.Errorf("summary model = %q", adapter.lastRequest.Model)
	}
}

func TestBudgetFallsBackWhenSummarizerFails(t *testing.T) {
	h := filledHistory(8)
	adapter := &scriptedAdapter{
		completeErr: llm.NewAPIError(llm.ErrServer, "mock", "upstream down", nil),
	}
	b := NewContextBudget(h, newScriptedClient(adapter), "fast-model", 3)

	got := b.Context(context.Background(), 200)
	if got == "" {
		t.Fatal("fallback rendering is empty")
	}
	if n := strings.Count(got, "read_page"); n != 3 {
		t.Errorf("fallback rendered %d entries, want 3", n)
	}
	if h.Len() != 8 {
		t.Errorf("history must stay intact on fallback, len = %d", h.Len())
	}
}

func TestBudgetCapsOversizedSummary(t *testing.T) {
	h := filledHistory(8)
	adapter := &scriptedAdapter{completeText: strings.Repeat("an overly chatty summary ", 500)}
	b := NewContextBudget(h, newScriptedClient(adapter), "fast-model", 5)

	const limit = 100
	got := b.Context(context.Background(), limit)
	if n := CountTokens(got); n > limit {
		t.Errorf("after one compaction pass the rendering is %d tokens, limit %d", n, limit)
	}
	// The capped rendering is still the summary entry with its range.
	if !strings.Contains(got, "summarized") || !strings.Contains(got, "chatty") {
		t.Errorf("capped rendering lost its content:\n%s", got)
	}
	if entries := h.Entries(); len(entries) != 1 || entries[0].FromIteration != 1 || entries[0].ToIteration != 8 {
		t.Errorf("summary entry after capping = %+v", entries)
	}
}
