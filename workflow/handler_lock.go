package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/loomhq/loom/types"
)

// WorkflowLockHandler acquires the node's lock for (lock id, user, instance).
// A denial is a control signal, not an error: the processor ends the
// remaining node list and whatever the responder already delivered stands.
// An acquired lock is released when the whole execution completes, or after
// the store TTL, whichever comes first.
type WorkflowLockHandler struct {
	logger *zap.Logger
}

// NewWorkflowLockHandler creates the handler.
func NewWorkflowLockHandler(logger *zap.Logger) *WorkflowLockHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowLockHandler{logger: logger.With(zap.String("component", "node_lock"))}
}

func (h *WorkflowLockHandler) Handle(ctx context.Context, ec *ExecutionContext) (Output, error) {
	node := ec.Node
	if node.LockID == "" {
		return Output{}, types.NewErrorf(types.ErrMissingStaticField,
			"WorkflowLock node %d has no lock_id", ec.Position)
	}

	acquired, err := ec.Locks.Acquire(ctx, node.LockID, ec.User, ec.Instance)
	if err != nil {
		return Output{}, types.NewErrorf(types.ErrLockStore,
			"acquiring lock %q", node.LockID).WithCause(err)
	}
	if !acquired {
		h.logger.Info("workflow lock held elsewhere, ending remaining nodes",
			zap.String("lock_id", node.LockID),
			zap.String("user", ec.User),
		)
		return Output{Signal: SignalLockDenied}, nil
	}

	h.logger.Debug("workflow lock acquired",
		zap.String("lock_id", node.LockID),
		zap.String("user", ec.User),
	)
	return Output{AcquiredLockID: node.LockID}, nil
}
