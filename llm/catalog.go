package llm

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	ContextWindow int      `json:"context_window"`
	MaxOutput     int      `json:"max_output"`
	Tier          string   `json:"tier"` // "frontier" or "fast"
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in model catalog.
var Models = []ModelInfo{
	{
		ID: "claude-opus-4-6", Provider: "anthropic",
		ContextWindow: 200000, MaxOutput: 32768, Tier: "frontier",
		Aliases: []string{"opus", "claude-opus"},
	},
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic",
		ContextWindow: 200000, MaxOutput: 16384, Tier: "frontier",
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "claude-haiku-4-5", Provider: "anthropic",
		ContextWindow: 200000, MaxOutput: 8192, Tier: "fast",
		Aliases: []string{"haiku", "claude-haiku"},
	},
	{
		ID: "gpt-5.2", Provider: "openai",
		ContextWindow: 1047576, MaxOutput: 32768, Tier: "frontier",
		Aliases: []string{"gpt5"},
	},
	{
		ID: "gpt-5.2-mini", Provider: "openai",
		ContextWindow: 1047576, MaxOutput: 16384, Tier: "fast",
		Aliases: []string{"gpt5-mini"},
	},
}

// GetModelInfo looks up a model by ID or alias. Returns nil if unknown.
func GetModelInfo(id string) *ModelInfo {
	for i := range Models {
		m := &Models[i]
		if m.ID == id {
			return m
		}
		for _, alias := range m.Aliases {
			if alias == id {
				return m
			}
		}
	}
	return nil
}

// ListModels returns models for a provider, or all models if provider is
// empty.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		return append([]ModelInfo(nil), Models...)
	}
	var out []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}

// ContextWindowFor returns the context window for a model, or a
// conservative default when the model is not in the catalog.
func ContextWindowFor(model string) int {
	if info := GetModelInfo(model); info != nil {
		return info.ContextWindow
	}
	return 128000
}

// FastModelFor returns the provider's "fast" tier model, used for
// secondary calls such as history summarization. Falls back to the given
// model when the provider has no fast tier in the catalog.
func FastModelFor(provider, fallback string) string {
	for _, m := range Models {
		if m.Provider == provider && m.Tier == "fast" {
			return m.ID
		}
	}
	return fallback
}
