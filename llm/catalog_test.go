package llm

import "testing"

func TestGetModelInfo(t *testing.T) {
	info := GetModelInfo("claude-opus-4-6")
	if info == nil {
		t.Fatal("expected catalog entry")
	}
	if info.Provider != "anthropic" {
		t.Errorf("expected anthropic, got %s", info.Provider)
	}

	// Alias lookup.
	if alias := GetModelInfo("opus"); alias == nil || alias.ID != "claude-opus-4-6" {
		t.Error("alias lookup failed")
	}

	if GetModelInfo("no-such-model") != nil {
		t.Error("unknown models must return nil")
	}
}

func TestContextWindowFor(t *testing.T) {
	if w := ContextWindowFor("claude-sonnet-4-5"); w != 200000 {
		t.Errorf("expected 200000, got %d", w)
	}
	// Unknown models get a conservative default.
	if w := ContextWindowFor("no-such-model"); w != 128000 {
		t.Errorf("expected default 128000, got %d", w)
	}
}

func TestFastModelFor(t *testing.T) {
	if m := FastModelFor("anthropic", "x"); m != "claude-haiku-4-5" {
		t.Errorf("expected fast anthropic model, got %s", m)
	}
	if m := FastModelFor("unknown-provider", "fallback-model"); m != "fallback-model" {
		t.Errorf("expected fallback, got %s", m)
	}
}

func TestListModels(t *testing.T) {
	all := ListModels("")
	if len(all) != len(Models) {
		t.Errorf("expected %d models, got %d", len(Models), len(all))
	}
	openai := ListModels("openai")
	for _, m := range openai {
		if m.Provider != "openai" {
			t.Errorf("filter leaked provider %s", m.Provider)
		}
	}
}

func TestExtractToolCalls(t *testing.T) {
	calls, rest := extractToolCalls(`I will click it. {"tool_calls": [{"name": "click", "arguments": {"node_id": 5}}]}`)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "click" {
		t.Errorf("expected click, got %s", calls[0].Name)
	}
	if rest != "I will click it." {
		t.Errorf("unexpected remainder %q", rest)
	}

	// Plain text passes through untouched.
	calls, rest = extractToolCalls("just narrating")
	if calls != nil || rest != "just narrating" {
		t.Errorf("plain text must pass through, got %v, %q", calls, rest)
	}
}
