package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/loomhq/loom/llm"
	"github.com/loomhq/loom/types"
)

// StandardHandler sends a resolved prompt to the injected LLM collaborator.
// It streams only when this node is the responder of a streaming request.
type StandardHandler struct {
	logger *zap.Logger
}

// NewStandardHandler creates the handler.
func NewStandardHandler(logger *zap.Logger) *StandardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StandardHandler{logger: logger.With(zap.String("component", "node_standard"))}
}

func (h *StandardHandler) Handle(ctx context.Context, ec *ExecutionContext) (Output, error) {
	node := ec.Node
	if node.Endpoint == "" {
		return Output{}, types.NewErrorf(types.ErrMissingStaticField,
			"Standard node %d has no endpoint", ec.Position)
	}

	req := llm.Request{
		Endpoint:     node.Endpoint,
		SystemPrompt: ec.ResolveContent(node.SystemPrompt),
		Prompt:       ec.ResolveContent(node.Prompt),
		History:      ec.History,
	}

	if ec.Stream && ec.IsResponder {
		stream, err := ec.Invoker.Stream(ctx, req)
		if err != nil {
			return Output{}, types.NewErrorf(types.ErrUpstreamError,
				"stream invocation failed on endpoint %q", node.Endpoint).WithCause(err)
		}
		return Output{Stream: stream}, nil
	}

	text, err := ec.Invoker.Complete(ctx, req)
	if err != nil {
		return Output{}, types.NewErrorf(types.ErrUpstreamError,
			"invocation failed on endpoint %q", node.Endpoint).WithCause(err)
	}
	return Output{Text: text}, nil
}
