package llm

import "context"

// Completer is the part of a chat model the explainer needs. Client,
// FallbackClient and test fakes all satisfy it.
type Completer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

var (
	_ Completer = (*Client)(nil)
	_ Completer = (*FallbackClient)(nil)
)
