package provider

import "context"

// Request is a single generation request issued on behalf of a pipeline
// step.
type Request struct {
	// Operation names the pipeline step or sub-operation issuing the
	// request, used for logging and error reporting.
	Operation string

	// System is the optional system prompt.
	System string

	// Prompt is the user-facing prompt text.
	Prompt string

	// MaxTokens caps the completion length. Zero means the adapter
	// default.
	MaxTokens int
}

// Response is the provider-agnostic result of a generation request.
type Response struct {
	// Text is the generated completion text.
	Text string

	// Provider is the name of the provider that produced the response.
	Provider string

	// InputTokens and OutputTokens report token usage when the backend
	// supplies it.
	InputTokens  int
	OutputTokens int
}

// Invoker is a single generation backend. Implementations classify their
// failures as *Error so the Selector can tell transient from permanent.
type Invoker interface {
	// Name returns the stable provider name used in configuration and
	// logs.
	Name() string

	// Invoke issues one generation request. The context carries the run
	// deadline; adapters must honor cancellation.
	Invoke(ctx context.Context, req *Request) (*Response, error)
}
