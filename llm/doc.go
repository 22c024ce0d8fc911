// Package llm is the model client layer for the webpilot task loop.
//
// It wraps the gollm library (github.com/teilomillet/gollm) behind a
// provider-agnostic Client so the task loop never talks to a provider SDK
// directly. The package supplies:
//
//   - Message / ContentPart conversation types with tool call and tool
//     result parts
//   - Client with named provider adapters and routing by request
//   - GollmAdapter translating requests to gollm prompts and classifying
//     provider errors
//   - Retry with exponential backoff for retryable errors
//   - StreamEvent, the incremental output consumed by the task loop's
//     response filter
//   - a small model catalog used for context-window sizing and for
//     picking a cheap summarization model
//
// The task loop holds a *Client handle; there is no package-level default
// client, so hosts construct and own exactly one.
package llm
