package taskloop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// EntryKind discriminates between history entry types.
type EntryKind string

const (
	// EntryCall records one tool invocation and its result.
	EntryCall EntryKind = "call"
	// EntrySummary replaces a collapsed range of prior entries.
	EntrySummary EntryKind = "summary"
	// EntryNote carries corrective or steering text for the next turn.
	EntryNote EntryKind = "note"
)

// CallRecord is the payload of an EntryCall entry.
type CallRecord struct {
	Tool   string          `json:"tool"`
	Args   json.RawMessage `json:"args"`
	Result *Result         `json:"result"`
}

// HistoryEntry is one immutable record in the execution history.
type HistoryEntry struct {
	Kind          EntryKind   `json:"kind"`
	Iteration     int         `json:"iteration,omitempty"`
	FromIteration int         `json:"from_iteration,omitempty"`
	ToIteration   int         `json:"to_iteration,omitempty"`
	Call          *CallRecord `json:"call,omitempty"`
	Text          string      `json:"text,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// History is the append-only execution log. Entries arrive in iteration
// and within-batch call order and are never reordered; compaction
// replaces the whole sequence with a single summary entry.
type History struct {
	entries []HistoryEntry
	mu      sync.Mutex
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{}
}

// AppendCall records a tool invocation and its result.
func (h *History) AppendCall(iteration int, tool string, args json.RawMessage, result *Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, HistoryEntry{
		Kind:      EntryCall,
		Iteration: iteration,
		Call:      &CallRecord{Tool: tool, Args: args, Result: result},
		Timestamp: time.Now(),
	})
}

// AppendNote records corrective or steering text.
func (h *History) AppendNote(iteration int, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, HistoryEntry{
		Kind:      EntryNote,
		Iteration: iteration,
		Text:      text,
		Timestamp: time.Now(),
	})
}

// Entries returns a copy of the entry sequence.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear removes all entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// CoveredRange returns the lowest and highest iteration the entries
// cover, including ranges inside summary entries.
func (h *History) CoveredRange() (from, to int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return coveredRangeLocked(h.entries)
}

func coveredRangeLocked(entries []HistoryEntry) (from, to int) {
	for _, e := range entries {
		lo, hi := e.Iteration, e.Iteration
		if e.Kind == EntrySummary {
			lo, hi = e.FromIteration, e.ToIteration
		}
		if lo == 0 && hi == 0 {
			continue
		}
		if from == 0 || lo < from {
			from = lo
		}
		if hi > to {
			to = hi
		}
	}
	return from, to
}

// CompactTo atomically replaces the whole entry sequence with a single
// summary entry covering the previously-covered iteration range. It
// returns the new entry.
func (h *History) CompactTo(summary string) HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	from, to := coveredRangeLocked(h.entries)
	entry := HistoryEntry{
		Kind:          EntrySummary,
		FromIteration: from,
		ToIteration:   to,
		Text:          summary,
		Timestamp:     time.Now(),
	}
	h.entries = []HistoryEntry{entry}
	return entry
}

// Render returns the textual form of the full entry sequence, as it is
// given to the model.
func (h *History) Render() string {
	return renderEntries(h.Entries())
}

// RenderRecent renders only the most recent n entries verbatim. It is the
// degraded path when summarization fails.
func (h *History) RenderRecent(n int) string {
	entries := h.Entries()
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return renderEntries(entries)
}

func renderEntries(entries []HistoryEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		switch e.Kind {
		case EntryCall:
			fmt.Fprintf(&sb, "[iteration %d] %s(%s) -> %s\n",
				e.Iteration, e.Call.Tool, compactJSON(e.Call.Args), renderResult(e.Call.Result))
		case EntrySummary:
			fmt.Fprintf(&sb, "[iterations %d-%d summarized] %s\n",
				e.FromIteration, e.ToIteration, e.Text)
		case EntryNote:
			fmt.Fprintf(&sb, "[note] %s\n", e.Text)
		}
	}
	return sb.String()
}

func renderResult(r *Result) string {
	if r == nil {
		return "ok"
	}
	if !r.OK {
		return "error: " + r.Error
	}
	if r.Output == "" {
		return "ok"
	}
	return "ok: " + r.Output
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
