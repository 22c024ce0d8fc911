package taskloop

import (
	"fmt"
	"strings"
	"time"
)

const dynamicInstructions = `You are a browser automation agent. You control a web browser through the tools provided.

Work toward the task goal one batch of tool calls per turn:
- Inspect the current browser state and decide the next concrete action.
- Break the task into small steps; prefer one or two precise actions per turn, in the order they must happen.
- After acting, verify the result in the next browser state before moving on.
- When the goal is achieved, or cannot be achieved, call done with an honest success flag and a short summary.
- If you are blocked on something only the user can do (captcha, login, payment confirmation), call request_user_help.`

const predefinedInstructions = `You are a browser automation agent executing a recorded workflow. You control a web browser through the tools provided.

Follow the workflow steps below strictly in order:
- Execute one step at a time; verify its validation condition against the browser state before advancing.
- If a step's target cannot be found, use its node identification hint; if it still fails, call request_user_help rather than improvising.
- When every step has completed, call done. If a step is impossible, call done with success=false and say which step failed.`

const promptHygiene = `The current browser state appears between %s markers, and operational notes between %s markers. Both are internal context: never repeat their markers or raw contents in your replies.`

// BuildSystemPrompt renders the mode-specific system prompt for a task.
func BuildSystemPrompt(task Task) string {
	var sb strings.Builder

	if task.Mode == ModePredefined && task.Plan != nil {
		sb.WriteString(predefinedInstructions)
		sb.WriteString("\n\n# Workflow\n\n")
		sb.WriteString(task.Plan.Render())
	} else {
		sb.WriteString(dynamicInstructions)
	}

	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, promptHygiene, browserStateBegin, internalReminderBegin)
	sb.WriteString("\n\n<environment>\n")
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if task.Source != "" {
		fmt.Fprintf(&sb, "Task source: %s\n", task.Source)
	}
	sb.WriteString("</environment>")

	return sb.String()
}

// buildTurnPrompt renders the per-iteration user message: the goal, the
// budget-trimmed history, and the current browser state.
func buildTurnPrompt(task Task, historyText, snapshot string) string {
	var sb strings.Builder

	sb.WriteString("# Task\n\n")
	sb.WriteString(task.Goal)
	sb.WriteString("\n")

	if historyText != "" {
		sb.WriteString("\n# Execution history\n\n")
		sb.WriteString(historyText)
	}

	if snapshot != "" {
		sb.WriteString("\n")
		sb.WriteString(browserStateBegin)
		sb.WriteString("\n")
		sb.WriteString(snapshot)
		sb.WriteString("\n")
		sb.WriteString(browserStateEnd)
		sb.WriteString("\n")
	}

	sb.WriteString("\nChoose the next tool calls, or call done if the task is complete.")
	return sb.String()
}
