package taskloop

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/webpilot-ai/webpilot/llm"
)

func streamOf(events ...llm.StreamEvent) <-chan llm.StreamEvent {
	ch := make(chan llm.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func finishEvent() llm.StreamEvent {
	return llm.StreamEvent{
		Type:         llm.StreamFinish,
		FinishReason: &llm.FinishReason{Reason: "stop"},
		Usage:        &llm.Usage{InputTokens: 12, OutputTokens: 8, TotalTokens: 20},
	}
}

func TestFilterStreamFoldsCleanOutput(t *testing.T) {
	toolCall := llm.ToolCall{ID: "c1", Name: "click", Arguments: json.RawMessage(`{"node_id": 3}`)}
	var deltas []string
	out, err := FilterStream(streamOf(
		llm.StreamEvent{Type: llm.StreamStart},
		llm.StreamEvent{Type: llm.TextDelta, Delta: "Clicking the "},
		llm.StreamEvent{Type: llm.TextDelta, Delta: "submit button."},
		llm.StreamEvent{Type: llm.ToolCallEnd, ToolCall: &toolCall},
		finishEvent(),
	), func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatal(err)
	}

	if out.Text != "Clicking the submit button." {
		t.Errorf("text = %q", out.Text)
	}
	if out.Suppressed {
		t.Error("clean output marked suppressed")
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Name != "click" {
		t.Errorf("tool calls = %+v", out.ToolCalls)
	}
	if len(deltas) != 2 {
		t.Errorf("deltas = %v", deltas)
	}
	if out.Usage.TotalTokens != 20 {
		t.Errorf("usage = %+v", out.Usage)
	}
}

func TestFilterStreamSuppressesMarkerLeak(t *testing.T) {
	var deltas []string
	out, err := FilterStream(streamOf(
		llm.StreamEvent{Type: llm.TextDelta, Delta: "The page shows <browser"},
		llm.StreamEvent{Type: llm.TextDelta, Delta: "_state>..."},
		llm.StreamEvent{Type: llm.TextDelta, Delta: "more leaked text"},
		finishEvent(),
	), func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatal(err)
	}

	if !out.Suppressed {
		t.Fatal("marker split across deltas was not detected")
	}
	if out.Text != suppressedPlaceholder {
		t.Errorf("text = %q, want placeholder", out.Text)
	}
	// The first delta was forwarded before the marker completed; nothing
	// after detection may reach the consumer.
	for _, d := range deltas {
		if strings.Contains(d, "leaked") {
			t.Errorf("post-detection delta forwarded: %q", d)
		}
	}
}

func TestFilterStreamPreservesToolCallsWhenSuppressed(t *testing.T) {
	toolCall := llm.ToolCall{ID: "c1", Name: "type_text", Arguments: json.RawMessage(`{"text": "hi"}`)}
	out, err := FilterStream(streamOf(
		llm.StreamEvent{Type: llm.TextDelta, Delta: "<internal_reminder> do not show this"},
		llm.StreamEvent{Type: llm.ToolCallEnd, ToolCall: &toolCall},
		finishEvent(),
	), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Suppressed {
		t.Fatal("leak not detected")
	}
	if len(out.ToolCalls) != 1 {
		t.Fatalf("tool calls must survive suppression, got %+v", out.ToolCalls)
	}
}

func TestFilterStreamFallsBackToResponseText(t *testing.T) {
	resp := &llm.Response{Message: llm.AssistantMessage("aggregate only")}
	finish := finishEvent()
	finish.Response = resp
	out, err := FilterStream(streamOf(finish), nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Text != "aggregate only" {
		t.Errorf("text = %q", out.Text)
	}
}

func TestFilterStreamError(t *testing.T) {
	wantErr := errors.New("connection reset")
	_, err := FilterStream(streamOf(
		llm.StreamEvent{Type: llm.TextDelta, Delta: "partial"},
		llm.StreamEvent{Type: llm.StreamFailure, Err: wantErr},
	), nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v", err)
	}
}

func TestFilterStreamRequiresFinish(t *testing.T) {
	_, err := FilterStream(streamOf(
		llm.StreamEvent{Type: llm.TextDelta, Delta: "cut off"},
	), nil)
	if err == nil {
		t.Error("truncated stream should error")
	}
}
