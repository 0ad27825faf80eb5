package workflow

import (
	"context"

	"github.com/loomhq/loom/condition"
)

// ConditionalHandler evaluates a boolean expression over resolved operands.
// Its output is always the literal string "TRUE" or "FALSE"; malformed
// expressions resolve to "FALSE" rather than failing the request.
type ConditionalHandler struct {
	eval *condition.Evaluator
}

// NewConditionalHandler creates the handler.
func NewConditionalHandler(eval *condition.Evaluator) *ConditionalHandler {
	return &ConditionalHandler{eval: eval}
}

func (h *ConditionalHandler) Handle(ctx context.Context, ec *ExecutionContext) (Output, error) {
	resolved := ec.ResolveContent(ec.Node.Condition)
	return Output{Text: h.eval.Evaluate(resolved)}, nil
}
