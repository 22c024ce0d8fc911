package taskloop

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds loop configuration. YAML tags serve config files, env
// tags serve deployment overrides.
type Config struct {
	// Model is the primary model driving the loop.
	Model string `yaml:"model" env:"WEBPILOT_MODEL"`

	// SummaryModel is used for the history summarization sub-call. Empty
	// selects the provider's fast tier from the catalog.
	SummaryModel string `yaml:"summary_model" env:"WEBPILOT_SUMMARY_MODEL"`

	// MaxIterations caps the number of loop iterations per run.
	MaxIterations int `yaml:"max_iterations" env:"WEBPILOT_MAX_ITERATIONS"`

	// MaxNoToolCallTurns fails the run after this many consecutive turns
	// without a tool call.
	MaxNoToolCallTurns int `yaml:"max_no_tool_call_turns" env:"WEBPILOT_MAX_NO_TOOL_CALL_TURNS"`

	// ModelRetries is the retry count for failed model calls.
	ModelRetries int `yaml:"model_retries" env:"WEBPILOT_MODEL_RETRIES"`

	// ContextFraction is the share of remaining tokens (after prompt
	// overhead) granted to the rendered history.
	ContextFraction float64 `yaml:"context_fraction" env:"WEBPILOT_CONTEXT_FRACTION"`

	// FallbackRecentEntries is how many entries render verbatim when
	// summarization fails.
	FallbackRecentEntries int `yaml:"fallback_recent_entries" env:"WEBPILOT_FALLBACK_RECENT_ENTRIES"`

	// OutputReserveTokens is headroom left for the model's own output.
	OutputReserveTokens int `yaml:"output_reserve_tokens" env:"WEBPILOT_OUTPUT_RESERVE_TOKENS"`

	// HumanInputTimeout bounds a human-input wait; expiry aborts the run.
	HumanInputTimeout time.Duration `yaml:"human_input_timeout" env:"WEBPILOT_HUMAN_INPUT_TIMEOUT"`

	// HumanInputPollInterval is the gate's poll interval.
	HumanInputPollInterval time.Duration `yaml:"human_input_poll_interval" env:"WEBPILOT_HUMAN_INPUT_POLL_INTERVAL"`

	// EventBufferSize sizes the session event channel.
	EventBufferSize int `yaml:"event_buffer_size" env:"WEBPILOT_EVENT_BUFFER_SIZE"`

	// EnableLoopDetection warns the model when recent tool calls repeat.
	EnableLoopDetection bool `yaml:"enable_loop_detection" env:"WEBPILOT_ENABLE_LOOP_DETECTION"`

	// LoopDetectionWindow is the number of recent calls examined.
	LoopDetectionWindow int `yaml:"loop_detection_window" env:"WEBPILOT_LOOP_DETECTION_WINDOW"`

	// ToolOutputLimits overrides per-tool character limits.
	ToolOutputLimits map[string]int `yaml:"tool_output_limits,omitempty"`

	// ToolLineLimits overrides per-tool line limits.
	ToolLineLimits map[string]int `yaml:"tool_line_limits,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Model:                  "claude-sonnet-4-5",
		MaxIterations:          30,
		MaxNoToolCallTurns:     3,
		ModelRetries:           3,
		ContextFraction:        0.70,
		FallbackRecentEntries:  5,
		OutputReserveTokens:    8192,
		HumanInputTimeout:      10 * time.Minute,
		HumanInputPollInterval: 500 * time.Millisecond,
		EventBufferSize:        256,
		EnableLoopDetection:    true,
		LoopDetectionWindow:    10,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// FromEnv applies environment overrides to cfg.
func FromEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config from environment: %w", err)
	}
	return cfg.Validate()
}

// Validate checks ranges that would otherwise break the loop silently.
func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.MaxNoToolCallTurns <= 0 {
		return fmt.Errorf("max_no_tool_call_turns must be positive, got %d", c.MaxNoToolCallTurns)
	}
	if c.ContextFraction <= 0 || c.ContextFraction > 1 {
		return fmt.Errorf("context_fraction must be in (0, 1], got %v", c.ContextFraction)
	}
	return nil
}
