package contract

import "context"

// CompletionRequest is one call to the completion oracle.
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int64
	Temperature float64 // < 0 means provider default
}

// Completer is the narrow boundary to the natural-language completion service.
// Every call is fallible and potentially slow; callers own the fallback.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ToolGateway invokes named operations on the tour backend. Backend errors
// propagate as-is; handlers decide how to render them.
type ToolGateway interface {
	Invoke(ctx context.Context, name string, args map[string]any) (ToolResult, error)
}

// Deliverer pushes a rendered reply to a recipient identifier. The core does
// not retry failed sends.
type Deliverer interface {
	Send(ctx context.Context, text, recipient string) error
}
