package runtime

import "context"

// Message roles understood by chat-completion providers.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type (
	// Message is one chat message sent to a provider.
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	// CompletionRequest is a single, non-streaming chat completion call.
	CompletionRequest struct {
		Model       string    `json:"model"`
		Temperature float64   `json:"temperature"`
		Messages    []Message `json:"messages"`
	}

	// Completion is the provider's answer. Usage is nil when the provider
	// did not report token counts.
	Completion struct {
		Content string
		Usage   *TokenUsage
	}
)

// Provider is the completion service the engine calls on the live path.
// Complete must block until the full completion is available.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// ProviderFactory builds a live provider from the resolved credentials of a
// request. It is only called when an API key is available.
type ProviderFactory func(apiKey, baseURL string) (Provider, error)

// FlowLoader loads flow definitions from files.
type FlowLoader interface {
	Extensions() []string
	Load(filePath string) (Flow, error)
}

// ProviderFunc adapts an ordinary function to the Provider interface.
type ProviderFunc func(ctx context.Context, req CompletionRequest) (Completion, error)

func (f ProviderFunc) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	return f(ctx, req)
}
