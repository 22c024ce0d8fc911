package taskloop

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHistoryAppendAndRenderOrder(t *testing.T) {
	h := NewHistory()
	h.AppendCall(1, "navigate", json.RawMessage(`{"url": "https://example.com"}`),
		&Result{OK: true, Output: "loaded"})
	h.AppendCall(2, "click", json.RawMessage(`{"node_id": 4}`),
		&Result{OK: false, Error: "node not found"})
	h.AppendNote(2, "retry with a fresh snapshot")

	entries := h.Entries()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].Kind != EntryCall || entries[0].Call.Tool != "navigate" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[2].Kind != EntryNote {
		t.Errorf("entry 2 kind = %s", entries[2].Kind)
	}

	rendered := h.Render()
	navIdx := strings.Index(rendered, "navigate")
	clickIdx := strings.Index(rendered, "click")
	if navIdx < 0 || clickIdx < 0 || navIdx > clickIdx {
		t.Errorf("render order wrong:\n%s", rendered)
	}
	if !strings.Contains(rendered, "node not found") {
		t.Errorf("failed call's error missing:\n%s", rendered)
	}
}

func TestHistoryEntriesReturnsCopy(t *testing.T) {
	h := NewHistory()
	h.AppendNote(1, "first")

	entries := h.Entries()
	entries[0].Text = "mutated"
	if h.Entries()[0].Text != "first" {
		t.Error("Entries should return an isolated copy")
	}
}

func TestHistoryCompactTo(t *testing.T) {
	h := NewHistory()
	for i := 1; i <= 4; i++ {
		h.AppendCall(i, "scroll", json.RawMessage(`{"direction": "down"}`),
			&Result{OK: true, Output: "scrolled"})
	}

	summary := h.CompactTo("Scrolled through the results page four times.")
	if summary.Kind != EntrySummary {
		t.Fatalf("kind = %s", summary.Kind)
	}
	if summary.FromIteration != 1 || summary.ToIteration != 4 {
		t.Errorf("range = %d-%d, want 1-4", summary.FromIteration, summary.ToIteration)
	}

	entries := h.Entries()
	if len(entries) != 1 {
		t.Fatalf("after compaction len = %d, want 1", len(entries))
	}
	if entries[0].Kind != EntrySummary {
		t.Errorf("surviving entry kind = %s", entries[0].Kind)
	}

	// New calls append after the summary.
	h.AppendCall(5, "click", nil, &Result{OK: true})
	rendered := h.Render()
	sumIdx := strings.Index(rendered, "summarized")
	clickIdx := strings.Index(rendered, "click")
	if sumIdx < 0 || clickIdx < 0 || sumIdx > clickIdx {
		t.Errorf("summary should precede later calls:\n%s", rendered)
	}
}

func TestHistoryRenderRecent(t *testing.T) {
	h := NewHistory()
	for i := 1; i <= 10; i++ {
		h.AppendCall(i, "click", json.RawMessage(`{"node_id": 1}`), &Result{OK: true})
	}

	recent := h.RenderRecent(3)
	if n := strings.Count(recent, "click"); n != 3 {
		t.Errorf("RenderRecent(3) rendered %d entries:\n%s", n, recent)
	}
	if !strings.Contains(recent, "[iteration 10]") {
		t.Errorf("most recent entry missing:\n%s", recent)
	}
	if strings.Contains(recent, "[iteration 7]") {
		t.Errorf("older entry should be dropped:\n%s", recent)
	}
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory()
	h.AppendNote(1, "x")
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Len after Clear = %d", h.Len())
	}
}
