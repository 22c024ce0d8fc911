package taskloop

import (
	"context"
	"encoding/json"
	"fmt"
)

// Control tool names. The orchestrator reacts to the signals their
// results carry; everything else about them is ordinary tool dispatch.
const (
	ToolDone            = "done"
	ToolRequestUserHelp = "request_user_help"
)

// RegisterControlTools registers the loop's built-in control tools on a
// registry. Hosts register their browser tools on the same registry.
func RegisterControlTools(reg *ToolRegistry) {
	registerDone(reg)
	registerRequestUserHelp(reg)
}

func registerDone(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        ToolDone,
			Description: "Signal that the task is finished. Call this exactly once, when the goal is achieved or cannot be achieved.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"success": map[string]interface{}{
						"type":        "boolean",
						"description": "Whether the task goal was achieved.",
					},
					"message": map[string]interface{}{
						"type":        "string",
						"description": "Short summary of what was done, or why the task failed.",
					},
				},
				"required": []string{"success"},
			},
		},
		Handler: func(_ context.Context, arguments json.RawMessage) (*Result, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return nil, err
			}
			success, ok := GetBoolArg(args, "success")
			if !ok {
				return nil, fmt.Errorf("success is required")
			}
			message, _ := GetStringArg(args, "message")
			if message == "" {
				message = "task finished"
			}
			return &Result{OK: true, Output: message, Done: true, Success: success}, nil
		},
	})
}

func registerRequestUserHelp(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        ToolRequestUserHelp,
			Description: "Pause and ask the user for help, for example to solve a captcha or complete a login. The run suspends until the user responds or a timeout elapses.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"prompt": map[string]interface{}{
						"type":        "string",
						"description": "What the user should do before the run can continue.",
					},
				},
				"required": []string{"prompt"},
			},
		},
		Handler: func(_ context.Context, arguments json.RawMessage) (*Result, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return nil, err
			}
			prompt, ok := GetStringArg(args, "prompt")
			if !ok || prompt == "" {
				return nil, fmt.Errorf("prompt is required")
			}
			return &Result{
				OK:              true,
				Output:          "waiting for user input",
				NeedsHumanInput: true,
				HumanPrompt:     prompt,
			}, nil
		},
	})
}
