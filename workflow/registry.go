package workflow

import (
	"context"

	"github.com/loomhq/loom/types"
)

// Signal is a non-error control outcome from a handler.
type Signal int

const (
	// SignalNone is the normal outcome.
	SignalNone Signal = iota
	// SignalLockDenied ends the remaining node list early without error;
	// responder output already delivered stands.
	SignalLockDenied
)

// Output is a handler's result: a complete string, a token stream, or a
// control signal. Exactly one of Text/Stream is meaningful per node type.
type Output struct {
	Text   string
	Stream types.Stream
	Signal Signal

	// Processed marks output that a child execution has already run through
	// the delivery pipeline; the parent must not post-process it again.
	Processed bool

	// AcquiredLockID names the lock this node took, so the processor can
	// release it when the whole execution completes.
	AcquiredLockID string
}

// Handler executes one node type.
type Handler interface {
	Handle(ctx context.Context, ec *ExecutionContext) (Output, error)
}

// Registry is the static node-type dispatch table, built once per manager.
type Registry struct {
	handlers map[NodeType]Handler
}

// NewRegistry creates a registry over the given handler map.
func NewRegistry(handlers map[NodeType]Handler) *Registry {
	return &Registry{handlers: handlers}
}

// Get returns the handler for a node type.
func (r *Registry) Get(t NodeType) (Handler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, types.NewErrorf(types.ErrUnknownNodeType, "no handler registered for node type %q", t)
	}
	return h, nil
}
