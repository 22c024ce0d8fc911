package taskloop

import (
	"errors"
	"strings"

	"github.com/webpilot-ai/webpilot/llm"
)

// Delimiters for internal-only prompt content. The model must never echo
// these; the filter suppresses any turn that does.
const (
	browserStateBegin     = "<browser_state>"
	browserStateEnd       = "</browser_state>"
	internalReminderBegin = "<internal_reminder>"
	internalReminderEnd   = "</internal_reminder>"
)

var forbiddenMarkers = []string{
	browserStateBegin,
	browserStateEnd,
	internalReminderBegin,
	internalReminderEnd,
}

// suppressedPlaceholder replaces the turn's visible text after a leak.
const suppressedPlaceholder = "[response withheld]"

// correctiveInstruction is injected into history after a leak so the next
// turn self-corrects.
const correctiveInstruction = "Your previous response echoed internal context delimiters and was withheld from the user. Never reproduce browser state or internal reminder markup; describe your reasoning in plain language instead."

// StreamOutcome is the immutable aggregate produced by folding a model
// output stream.
type StreamOutcome struct {
	Text       string
	ToolCalls  []llm.ToolCall
	Usage      llm.Usage
	Response   *llm.Response
	Suppressed bool
}

// FilterStream folds a stream of model events into a StreamOutcome.
// onDelta receives visible text increments for live display until a
// forbidden marker is detected; from that point text is suppressed and
// the final text is the placeholder. Tool calls accumulate independently
// and are always preserved; dropping one would break the one-result-per-
// call contract downstream.
func FilterStream(events <-chan llm.StreamEvent, onDelta func(string)) (*StreamOutcome, error) {
	var acc strings.Builder
	var toolCalls []llm.ToolCall
	out := &StreamOutcome{}
	finished := false

	for ev := range events {
		switch ev.Type {
		case llm.TextDelta:
			acc.WriteString(ev.Delta)
			if !out.Suppressed && containsForbiddenMarker(acc.String()) {
				out.Suppressed = true
			} else if !out.Suppressed && onDelta != nil {
				onDelta(ev.Delta)
			}
		case llm.ToolCallEnd:
			if ev.ToolCall != nil {
				toolCalls = append(toolCalls, *ev.ToolCall)
			}
		case llm.StreamFinish:
			finished = true
			if ev.Usage != nil {
				out.Usage = *ev.Usage
			}
			out.Response = ev.Response
		case llm.StreamFailure:
			if ev.Err != nil {
				return nil, ev.Err
			}
			return nil, errors.New("model stream failed")
		}
	}

	if !finished {
		return nil, errors.New("model stream ended without a finish event")
	}

	// Prefer explicit tool call events; fall back to the final response
	// for adapters that only report calls in the aggregate.
	if len(toolCalls) == 0 && out.Response != nil {
		toolCalls = out.Response.ToolCalls()
	}
	out.ToolCalls = toolCalls

	text := acc.String()
	if text == "" && out.Response != nil {
		text = out.Response.Text()
		if !out.Suppressed && containsForbiddenMarker(text) {
			out.Suppressed = true
		}
	}
	if out.Suppressed {
		text = suppressedPlaceholder
	}
	out.Text = text

	return out, nil
}

func containsForbiddenMarker(text string) bool {
	for _, marker := range forbiddenMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
