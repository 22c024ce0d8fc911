package taskloop

import (
	"context"
	"strings"

	"github.com/webpilot-ai/webpilot/llm"
)

const summarizationSystemPrompt = `You compress execution logs for a browser automation agent.
Given the log of tool invocations and their results, write a compact summary that preserves:
- the overall goal progress so far and what remains to be done
- pages visited and their relevant state
- values entered, elements interacted with, and extracted data
- errors encountered and how they were handled
Write plain prose. Do not invent information that is not in the log.`

// ContextBudget keeps the rendered history inside a token limit. On
// overflow it asks a smaller model for a summary and atomically replaces
// the entry sequence with a single summary record; if that sub-call
// fails, it degrades to the most recent entries rendered verbatim.
type ContextBudget struct {
	history        *History
	client         *llm.Client
	summaryModel   string
	fallbackRecent int
	onCompact      func(from, to int)
}

// NewContextBudget creates a budget manager over history. summaryModel is
// the model used for the summarization sub-call; fallbackRecent is the
// number of entries rendered verbatim when summarization fails.
func NewContextBudget(history *History, client *llm.Client, summaryModel string, fallbackRecent int) *ContextBudget {
	if fallbackRecent <= 0 {
		fallbackRecent = 5
	}
	return &ContextBudget{
		history:        history,
		client:         client,
		summaryModel:   summaryModel,
		fallbackRecent: fallbackRecent,
	}
}

// OnCompact registers a callback invoked after a successful compaction
// with the collapsed iteration range.
func (b *ContextBudget) OnCompact(fn func(from, to int)) {
	b.onCompact = fn
}

// Context renders the history to fit within tokenLimit. Summarization
// failure is never fatal: the run continues on the degraded rendering.
func (b *ContextBudget) Context(ctx context.Context, tokenLimit int) string {
	rendered := b.history.Render()
	if CountTokens(rendered) <= tokenLimit {
		return rendered
	}

	summary, err := b.summarize(ctx, rendered)
	if err != nil {
		return b.history.RenderRecent(b.fallbackRecent)
	}

	from, to := b.history.CoveredRange()
	b.history.CompactTo(summary)
	if b.onCompact != nil {
		b.onCompact(from, to)
	}

	// A chatty summarizer is hard-capped. The bound holds for the full
	// rendered form (range prefix included), so re-measure after each cut.
	result := b.history.Render()
	for CountTokens(result) > tokenLimit && len(summary) > 1 {
		summary = strings.TrimSpace(summary[:len(summary)*4/5])
		b.history.CompactTo(summary)
		result = b.history.Render()
	}
	return result
}

func (b *ContextBudget) summarize(ctx context.Context, rendered string) (string, error) {
	maxTokens := 1024
	resp, err := b.client.Complete(ctx, llm.Request{
		Model: b.summaryModel,
		Messages: []llm.Message{
			llm.SystemMessage(summarizationSystemPrompt),
			llm.UserMessage("Summarize this execution log:\n\n" + rendered),
		},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		summary = "(no summary produced)"
	}
	return summary, nil
}
