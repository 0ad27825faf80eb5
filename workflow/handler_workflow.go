package workflow

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/loomhq/loom/types"
)

// CustomWorkflowHandler runs another workflow as a child. Scoped variables
// are resolved against the parent's context and become the child's agent
// inputs; the streaming/responder decision is inherited from the parent
// context, never taken from the child's own config. The child's final output
// is returned verbatim as this node's agent output.
type CustomWorkflowHandler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewCustomWorkflowHandler creates the handler.
func NewCustomWorkflowHandler(manager *Manager, logger *zap.Logger) *CustomWorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomWorkflowHandler{
		manager: manager,
		logger:  logger.With(zap.String("component", "node_custom_workflow")),
	}
}

func (h *CustomWorkflowHandler) Handle(ctx context.Context, ec *ExecutionContext) (Output, error) {
	node := ec.Node
	if node.WorkflowName == "" {
		return Output{}, types.NewErrorf(types.ErrMissingStaticField,
			"CustomWorkflow node %d has no workflow_name", ec.Position)
	}
	inputs := resolveScopedInputs(ec, "", node.ScopedVariables)
	return h.manager.runChild(ctx, node.WorkflowName, ec, inputs)
}

// ConditionalCustomWorkflowHandler resolves a key expression and picks the
// child workflow from the route map. Route selection is case-insensitive;
// the per-route prompt override is looked up under the capitalized form of
// the matched key. The asymmetry is long-standing documented behavior and is
// preserved, not unified.
type ConditionalCustomWorkflowHandler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewConditionalCustomWorkflowHandler creates the handler.
func NewConditionalCustomWorkflowHandler(manager *Manager, logger *zap.Logger) *ConditionalCustomWorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConditionalCustomWorkflowHandler{
		manager: manager,
		logger:  logger.With(zap.String("component", "node_conditional_workflow")),
	}
}

func (h *ConditionalCustomWorkflowHandler) Handle(ctx context.Context, ec *ExecutionContext) (Output, error) {
	node := ec.Node
	if len(node.ConditionalWorkflows) == 0 {
		return Output{}, types.NewErrorf(types.ErrMissingStaticField,
			"ConditionalCustomWorkflow node %d has no conditional_workflows", ec.Position)
	}

	key := strings.TrimSpace(ec.ResolveContent(node.ConditionalKey))
	target, matched := routeFor(node.ConditionalWorkflows, key)
	if target == "" {
		if node.FallbackContent != "" {
			h.logger.Debug("no route matched, using fallback content",
				zap.String("key", key),
			)
			return Output{Text: ec.ResolveContent(node.FallbackContent)}, nil
		}
		return Output{}, types.NewErrorf(types.ErrWorkflowNotFound,
			"no route for key %q and no Default entry", key)
	}

	// The override, when present, replaces this node's prompt for the child.
	prompt := node.Prompt
	if ov, ok := node.RouteOverrides[capitalize(matched)]; ok {
		prompt = ov
	}

	h.logger.Debug("conditional route selected",
		zap.String("key", key),
		zap.String("workflow", target),
	)

	inputs := resolveScopedInputs(ec, prompt, node.ScopedVariables)
	return h.manager.runChild(ctx, target, ec, inputs)
}

// routeFor matches key against the route map case-insensitively, falling back
// to the "Default" entry. It returns the target workflow and the key that was
// actually matched (empty for the default route).
func routeFor(routes map[string]string, key string) (target, matched string) {
	for route, wf := range routes {
		if strings.EqualFold(route, key) {
			return wf, key
		}
	}
	for route, wf := range routes {
		if strings.EqualFold(route, "Default") {
			return wf, ""
		}
	}
	return "", ""
}

// resolveScopedInputs builds the child's agent inputs: the resolved prompt
// first when non-empty, then the scoped variable list in order.
func resolveScopedInputs(ec *ExecutionContext, prompt string, scoped []string) map[int]string {
	inputs := make(map[int]string, len(scoped)+1)
	pos := 1
	if prompt != "" {
		inputs[pos] = ec.ResolveContent(prompt)
		pos++
	}
	for _, sv := range scoped {
		inputs[pos] = ec.ResolveContent(sv)
		pos++
	}
	return inputs
}

// capitalize uppercases the first rune and lowercases the rest, matching the
// historical override key form.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
