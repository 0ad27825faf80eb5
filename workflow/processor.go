package workflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/loomhq/loom/internal/metrics"
	"github.com/loomhq/loom/llm"
	"github.com/loomhq/loom/locks"
	"github.com/loomhq/loom/streaming"
	"github.com/loomhq/loom/types"
	"github.com/loomhq/loom/variables"
)

// ExecOptions carries the per-execution parameters for one workflow run,
// parent or child.
type ExecOptions struct {
	// History is the prior conversation; Inputs are the agent inputs exported
	// by a parent (nil for a top-level run); User scopes lock ownership.
	History []types.Message
	Inputs  map[int]string
	User    string

	// Stream requests token streaming from the responder. Deliver applies
	// the post-processing pipeline to the responder output; it is false for
	// child runs whose parent node is not the responder, so nested output is
	// returned raw and cleaned exactly once at the real delivery point.
	Stream  bool
	Deliver bool

	// Depth counts sub-workflow nesting for the recursion guard.
	Depth int
}

// Result is a finished execution's output: a complete string, or a lazy
// single-consumer stream when the responder streamed.
type Result struct {
	Text   string
	Stream types.Stream
}

// Processor runs one loaded definition's node list. A Processor is built per
// execution and holds no cross-request state; the lock store is the only
// shared collaborator.
type Processor struct {
	def       *Definition
	registry  *Registry
	pipeline  *streaming.Pipeline
	invoker   llm.Invoker
	resolver  *variables.Resolver
	locks     locks.Store
	collector *metrics.Collector
	logger    *zap.Logger
	tracer    trace.Tracer
	instance  string
}

// Execute iterates the node list in order, 1-indexed. The responder's output
// is delivered per ExecOptions; trailing nodes after a non-streaming
// responder still run for their side effects. A streaming responder hands its
// stream to the caller and ends the loop, since iteration cannot meaningfully
// continue once tokens are being consumed.
func (p *Processor) Execute(ctx context.Context, opts ExecOptions) (*Result, error) {
	responderIdx, err := p.def.ResponderIndex()
	if err != nil {
		return nil, err
	}

	outputs := make(map[int]string, len(p.def.Nodes))

	// Locks acquired by this execution are released when it completes. For a
	// streaming result, completion is when the caller finishes consuming the
	// stream, so release duty transfers to the stream's done hook.
	var acquired []string
	releaseLocks := func() {
		for _, id := range acquired {
			// The request context may already be cancelled; release anyway.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.locks.Release(rctx, id, opts.User, p.instance); err != nil {
				p.logger.Warn("failed to release workflow lock",
					zap.String("lock_id", id),
					zap.Error(err),
				)
			}
			cancel()
		}
	}
	handedOff := false
	defer func() {
		if !handedOff {
			releaseLocks()
		}
	}()

	var finalText string
	var finalStream types.Stream

	for i := range p.def.Nodes {
		pos := i + 1

		// Cooperative cancellation: refuse to start further work once the
		// caller is gone. Whatever was already streamed stands.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := &p.def.Nodes[i]
		isResponder := pos == responderIdx

		handler, err := p.registry.Get(node.Type)
		if err != nil {
			return nil, err
		}

		ec := &ExecutionContext{
			Node:         node,
			Position:     pos,
			History:      opts.History,
			AgentOutputs: outputs,
			AgentInputs:  opts.Inputs,
			Variables:    p.def.Variables,
			Stream:       opts.Stream,
			IsResponder:  isResponder,
			User:         opts.User,
			Depth:        opts.Depth,
			Invoker:      p.invoker,
			Resolver:     p.resolver,
			Locks:        p.locks,
			Instance:     p.instance,
		}

		nodeCtx, span := p.tracer.Start(ctx, "workflow.node", trace.WithAttributes(
			attribute.String("node.type", string(node.Type)),
			attribute.Int("node.position", pos),
		))
		start := time.Now()
		out, err := handler.Handle(nodeCtx, ec)
		duration := time.Since(start)
		span.End()

		status := "success"
		if err != nil {
			status = "error"
		}
		if p.collector != nil {
			p.collector.RecordNodeExecution(string(node.Type), status, duration)
		}
		if err != nil {
			p.logger.Error("node execution failed",
				zap.String("workflow", p.def.Name),
				zap.Int("position", pos),
				zap.String("type", string(node.Type)),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
			return nil, err
		}
		p.logger.Debug("node executed",
			zap.String("workflow", p.def.Name),
			zap.Int("position", pos),
			zap.String("type", string(node.Type)),
			zap.Bool("responder", isResponder),
			zap.Duration("duration", duration),
		)

		if out.AcquiredLockID != "" {
			acquired = append(acquired, out.AcquiredLockID)
		}
		if out.Signal == SignalLockDenied {
			if p.collector != nil {
				p.collector.RecordLockDenial(node.LockID)
			}
			break
		}

		// Capture the raw handler output before any delivery processing.
		// Streams are single-consumer and cannot be referenced by later
		// nodes, so a streaming responder leaves its slot empty.
		if out.Stream == nil {
			outputs[pos] = out.Text
		}

		if !isResponder {
			continue
		}

		if opts.Stream && out.Stream != nil {
			if opts.Deliver && !out.Processed {
				finalStream = p.pipeline.Stream(ctx, out.Stream, releaseLocks)
			} else {
				// Already cleaned by a child execution; relay for lock
				// release only.
				finalStream = relayStream(ctx, out.Stream, releaseLocks)
			}
			handedOff = true
			break
		}

		text := out.Text
		if opts.Deliver && !out.Processed {
			text = p.pipeline.Apply(text)
		}
		finalText = text
	}

	if finalStream != nil {
		return &Result{Stream: finalStream}, nil
	}
	return &Result{Text: finalText}, nil
}

// relayStream forwards fragments unchanged, firing onDone exactly once when
// the source closes or ctx is cancelled.
func relayStream(ctx context.Context, in types.Stream, onDone func()) types.Stream {
	out := make(chan types.Fragment, 16)
	go func() {
		defer close(out)
		if onDone != nil {
			defer onDone()
		}
		for {
			select {
			case <-ctx.Done():
				return
			case frag, ok := <-in:
				if !ok {
					return
				}
				select {
				case <-ctx.Done():
					return
				case out <- frag:
				}
			}
		}
	}()
	return out
}
