// Package llm defines the Provider interface for Large Language Model
// backends.
//
// The companion consumes complete structured replies (it parses a JSON
// document out of every response), so the interface is deliberately
// request/response only: no streaming, no tool calling.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Message is a single entry in a conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text of the message.
	Content string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same
// textual content.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history; the last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected before
	// the history. Providers without a dedicated system field prepend it as a
	// "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero requests the
	// provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means the provider default.
	MaxTokens int
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	// Content is the complete text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// ModelCapabilities describes static limits of the configured model.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens one completion may generate.
	MaxOutputTokens int
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many tokens messages would consume in the
	// model's context window. The estimate need not be exact but should not
	// undercount; callers use it to trim history before sending.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata for the configured model, constant
	// for the lifetime of the Provider.
	Capabilities() ModelCapabilities
}
