package workflow

import (
	"github.com/loomhq/loom/streaming"
	"github.com/loomhq/loom/types"
)

// NodeType identifies the handler that executes a node. The set is closed;
// an unknown type fails the request before the node runs.
type NodeType string

const (
	// NodeTypeStandard sends a resolved prompt to an LLM backend.
	NodeTypeStandard NodeType = "Standard"
	// NodeTypeCustomWorkflow runs another workflow as a child with an
	// isolated scope.
	NodeTypeCustomWorkflow NodeType = "CustomWorkflow"
	// NodeTypeConditionalCustomWorkflow picks the child workflow from a route
	// map keyed by a resolved expression.
	NodeTypeConditionalCustomWorkflow NodeType = "ConditionalCustomWorkflow"
	// NodeTypeConditional evaluates a boolean expression to "TRUE"/"FALSE".
	NodeTypeConditional NodeType = "Conditional"
	// NodeTypeWorkflowLock acquires a cross-request mutual-exclusion lock or
	// ends the remaining node list early.
	NodeTypeWorkflowLock NodeType = "WorkflowLock"
)

// NodeSpec is one configured step. Content fields (prompts, conditions,
// scoped variables, fallback content) support {variable} substitution; static
// fields (workflow names, endpoints, route maps, lock ids) must be literal.
// Handlers enforce that split, not the loader.
type NodeSpec struct {
	Type  NodeType `yaml:"type" json:"type"`
	Title string   `yaml:"title,omitempty" json:"title,omitempty"`

	// ReturnToUser marks this node as the explicit responder. At most one
	// node per workflow may set it; with none set, the last node responds.
	ReturnToUser bool `yaml:"return_to_user,omitempty" json:"return_to_user,omitempty"`

	// Content fields.
	SystemPrompt    string   `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	Prompt          string   `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Condition       string   `yaml:"condition,omitempty" json:"condition,omitempty"`
	ConditionalKey  string   `yaml:"conditional_key,omitempty" json:"conditional_key,omitempty"`
	FallbackContent string   `yaml:"fallback_content,omitempty" json:"fallback_content,omitempty"`
	ScopedVariables []string `yaml:"scoped_variables,omitempty" json:"scoped_variables,omitempty"`

	// Static fields.
	Endpoint             string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	WorkflowName         string            `yaml:"workflow_name,omitempty" json:"workflow_name,omitempty"`
	ConditionalWorkflows map[string]string `yaml:"conditional_workflows,omitempty" json:"conditional_workflows,omitempty"`
	RouteOverrides       map[string]string `yaml:"route_overrides,omitempty" json:"route_overrides,omitempty"`
	LockID               string            `yaml:"lock_id,omitempty" json:"lock_id,omitempty"`
}

// Think mode names accepted in workflow definitions.
const (
	ThinkModeStandard    = "standard"
	ThinkModeClosingOnly = "closing_only"
	ThinkModeOff         = "off"
)

// Definition is one loaded workflow: an ordered node list plus optional
// top-level variables visible to every node. Definitions are immutable for
// the duration of a run.
type Definition struct {
	Name      string            `yaml:"name" json:"name"`
	Variables map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`

	// StripPrefixes is the workflow-level prefix list for the delivery
	// pipeline; ThinkMode selects the reasoning-markup filter mode.
	StripPrefixes []string `yaml:"strip_prefixes,omitempty" json:"strip_prefixes,omitempty"`
	ThinkMode     string   `yaml:"think_mode,omitempty" json:"think_mode,omitempty"`

	Nodes []NodeSpec `yaml:"nodes" json:"nodes"`
}

// ThinkConfig maps the definition's think mode name onto filter config.
func (d *Definition) ThinkConfig() streaming.ThinkConfig {
	cfg := streaming.DefaultThinkConfig()
	switch d.ThinkMode {
	case ThinkModeClosingOnly:
		cfg.Mode = streaming.ThinkModeClosingOnly
	case ThinkModeOff:
		cfg.Mode = streaming.ThinkModeOff
	}
	return cfg
}

// ResponderIndex returns the 1-indexed responder position: the node with the
// explicit flag, or the last node when no flag is set. More than one explicit
// flag, or an empty node list, is a configuration error.
func (d *Definition) ResponderIndex() (int, error) {
	if len(d.Nodes) == 0 {
		return 0, types.NewErrorf(types.ErrMissingStaticField, "workflow %q has no nodes", d.Name)
	}
	idx := 0
	for i := range d.Nodes {
		if d.Nodes[i].ReturnToUser {
			if idx != 0 {
				return 0, types.NewErrorf(types.ErrMultipleResponders,
					"workflow %q marks both node %d and node %d as responder", d.Name, idx, i+1)
			}
			idx = i + 1
		}
	}
	if idx == 0 {
		idx = len(d.Nodes)
	}
	return idx, nil
}

// DefinitionSource loads workflow definitions by static name. Implemented by
// the config registry; injected so tests can supply definitions in memory.
type DefinitionSource interface {
	Load(name string) (*Definition, error)
}
