package taskloop

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Result is the structured outcome of one tool invocation. Every call
// issued by the model gets exactly one Result, whatever happens inside
// the handler.
type Result struct {
	OK     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`

	// Control signals, set by the built-in control tools.
	Done            bool   `json:"done,omitempty"`
	Success         bool   `json:"success,omitempty"`
	NeedsHumanInput bool   `json:"needs_human_input,omitempty"`
	HumanPrompt     string `json:"human_prompt,omitempty"`
}

// Text renders the result for history and prompt use.
func (r *Result) Text() string {
	if r.OK {
		return r.Output
	}
	return r.Error
}

// ToolHandler executes one tool call. Returned errors are converted to
// ok:false results at the dispatch boundary.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*Result, error)

// ToolDefinition describes a tool for the model: a name and a JSON Schema
// for its arguments.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// RegisteredTool pairs a tool definition with its handler.
type RegisteredTool struct {
	Definition ToolDefinition
	Handler    ToolHandler
}

// ToolRegistry manages tool registration and dispatch.
type ToolRegistry struct {
	tools map[string]*RegisteredTool
	mu    sync.RWMutex
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*RegisteredTool)}
}

// Register adds or replaces a tool in the registry.
func (r *ToolRegistry) Register(tool RegisteredTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Definition.Name] = &tool
}

// Unregister removes a tool from the registry.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a registered tool by name, or nil if not found.
func (r *ToolRegistry) Get(name string) *RegisteredTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns all tool definitions for the model request.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition)
	}
	return defs
}

// Names returns the names of all registered tools.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Dispatch runs the named tool and always returns a Result. Unknown
// names, handler errors, schema violations, and panics all become
// ok:false results so one bad call never aborts the batch.
func (r *ToolRegistry) Dispatch(ctx context.Context, name string, args json.RawMessage) (result *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = &Result{OK: false, Error: fmt.Sprintf("tool %s panicked: %v", name, rec)}
		}
	}()

	tool := r.Get(name)
	if tool == nil {
		return &Result{OK: false, Error: fmt.Sprintf("unknown tool: %s", name)}
	}

	if err := validateArguments(tool.Definition.Parameters, args); err != nil {
		return &Result{OK: false, Error: fmt.Sprintf("invalid arguments for %s: %v", name, err)}
	}

	res, err := tool.Handler(ctx, args)
	if err != nil {
		return &Result{OK: false, Error: fmt.Sprintf("tool error (%s): %v", name, err)}
	}
	if res == nil {
		return &Result{OK: true}
	}
	return res
}

// validateArguments checks args against the schema's required list and
// the declared property types. It is intentionally shallow; providers
// already enforce the full schema on their side.
func validateArguments(schema map[string]interface{}, args json.RawMessage) error {
	if schema == nil {
		return nil
	}
	parsed, err := ParseToolArguments(args)
	if err != nil {
		return err
	}

	for _, key := range requiredKeys(schema["required"]) {
		if _, present := parsed[key]; !present {
			return fmt.Errorf("missing required argument %q", key)
		}
	}

	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	for key, value := range parsed {
		prop, ok := props[key].(map[string]interface{})
		if !ok {
			continue
		}
		declared, _ := prop["type"].(string)
		if declared == "" {
			continue
		}
		if !matchesSchemaType(declared, value) {
			return fmt.Errorf("argument %q must be of type %s", key, declared)
		}
	}
	return nil
}

// requiredKeys normalizes a schema's required list. Schemas authored in
// Go carry []string; schemas decoded from JSON or YAML carry
// []interface{}.
func requiredKeys(raw interface{}) []string {
	switch required := raw.(type) {
	case []string:
		return required
	case []interface{}:
		keys := make([]string, 0, len(required))
		for _, v := range required {
			if key, ok := v.(string); ok {
				keys = append(keys, key)
			}
		}
		return keys
	}
	return nil
}

func matchesSchemaType(declared string, value interface{}) bool {
	if value == nil {
		return true
	}
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer", "number":
		_, ok := value.(float64)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	default:
		return true
	}
}

// ParseToolArguments unmarshals tool call arguments into a map. Empty
// arguments are treated as an empty object.
func ParseToolArguments(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

// GetStringArg extracts a string argument from parsed tool arguments.
func GetStringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetIntArg extracts an integer argument from parsed tool arguments.
func GetIntArg(args map[string]interface{}, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// GetBoolArg extracts a boolean argument from parsed tool arguments.
func GetBoolArg(args map[string]interface{}, key string) (bool, bool) {
	v, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
