// Package taskloop implements the webpilot task-execution engine.
//
// Given a natural-language task, the loop repeatedly asks a language model
// to choose actions from a tool registry, executes those actions against a
// browser environment, and feeds the results back until the model calls
// done, the caller cancels, or a limit trips.
//
// # Architecture
//
//   - Session: owns the persistent history and enforces at most one live
//     run; Execute/Cancel/Reset are its lifecycle operations.
//   - Orchestrator: drives one run; builds prompts, invokes the model,
//     dispatches tool calls, and decides continue/stop.
//   - ContextBudget: keeps the rendered history inside the model's token
//     window by collapsing it into an LLM-written summary on overflow.
//   - Gate: single-slot rendezvous for human-in-the-loop input; the run
//     suspends on a poll loop without blocking the host.
//   - FilterStream: folds the model's incremental output into a final
//     aggregate while suppressing leaked internal markers.
//   - ToolRegistry: name-to-handler dispatch with a structured Result for
//     every call, including unknown tools and panicking handlers.
//
// # Quick Start
//
//	client := llm.NewClientFromEnv()
//	session, err := taskloop.NewSession(client, taskloop.DefaultConfig(),
//		taskloop.WithSnapshotter(taskloop.NewFileSnapshotter("page.txt")))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Close()
//
//	outcome, err := session.Execute(ctx, "Find the cheapest flight to Lisbon", taskloop.ModeDynamic)
//	fmt.Println(outcome.Status, outcome.Reason)
//
// Concrete browser tools (click, type, scroll, tab management) are
// registered by the host through the same ToolRegistry used by the
// built-in control tools; the loop depends only on the Tool contract.
package taskloop
