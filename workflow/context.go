package workflow

import (
	"github.com/loomhq/loom/llm"
	"github.com/loomhq/loom/locks"
	"github.com/loomhq/loom/types"
	"github.com/loomhq/loom/variables"
)

// ExecutionContext is the per-node snapshot of runtime state handed to a
// handler. The processor builds one fresh for every node and discards it when
// the node finishes; handlers must not retain it.
type ExecutionContext struct {
	// Node is this node's own spec; Position is its 1-indexed place in the
	// current workflow.
	Node     *NodeSpec
	Position int

	// History is the full prior conversation.
	History []types.Message

	// AgentOutputs holds the outputs of nodes already executed in the current
	// workflow, keyed by position. AgentInputs holds the values a parent
	// exported into this (child) workflow, keyed by scope-list position; it
	// is empty for a top-level run.
	AgentOutputs map[int]string
	AgentInputs  map[int]string

	// Variables are the workflow's top-level custom variables.
	Variables map[string]string

	// Stream is the caller's streaming request; IsResponder marks the single
	// node whose output is returned to the user. Handlers stream only when
	// both are set.
	Stream      bool
	IsResponder bool

	// User scopes lock ownership; Depth counts sub-workflow nesting.
	User  string
	Depth int

	// Shared services.
	Invoker  llm.Invoker
	Resolver *variables.Resolver
	Locks    locks.Store
	Instance string
}

// Scope builds the substitution scope for this node's content fields.
func (ec *ExecutionContext) Scope() variables.Scope {
	return variables.Scope{
		Custom:  ec.Variables,
		Inputs:  ec.AgentInputs,
		Outputs: ec.AgentOutputs,
		History: ec.History,
	}
}

// ResolveContent substitutes placeholders in a content field.
func (ec *ExecutionContext) ResolveContent(text string) string {
	if ec.Resolver == nil {
		return text
	}
	return ec.Resolver.Resolve(text, ec.Scope())
}
