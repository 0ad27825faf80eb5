package llm

import (
	"context"

	"github.com/loomhq/loom/types"
)

// Request carries one resolved prompt to a backend client. Endpoint selects
// the backend; the engine never inspects it beyond routing and logging.
type Request struct {
	Endpoint     string          `json:"endpoint"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	Prompt       string          `json:"prompt"`
	History      []types.Message `json:"history,omitempty"`
}

// Invoker is the LLM-invocation collaborator. Implementations own retries,
// vendor payloads, and wire formats; the engine owns neither.
type Invoker interface {
	// Complete sends the request and blocks for the full response text.
	Complete(ctx context.Context, req Request) (string, error)

	// Stream sends the request and returns a single-consumer fragment stream.
	// The returned channel is closed when the backend finishes or ctx is
	// cancelled.
	Stream(ctx context.Context, req Request) (types.Stream, error)
}

// CompleteFunc adapts a function to the Invoker interface for callers that
// never stream. Stream falls back to a one-fragment stream of the completion.
type CompleteFunc func(ctx context.Context, req Request) (string, error)

func (f CompleteFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func (f CompleteFunc) Stream(ctx context.Context, req Request) (types.Stream, error) {
	text, err := f(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan types.Fragment, 1)
	ch <- types.Fragment{Text: text, FinishReason: "stop"}
	close(ch)
	return ch, nil
}
