package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/loomhq/loom/condition"
	"github.com/loomhq/loom/internal/metrics"
	"github.com/loomhq/loom/llm"
	"github.com/loomhq/loom/locks"
	"github.com/loomhq/loom/streaming"
	"github.com/loomhq/loom/types"
	"github.com/loomhq/loom/variables"
)

// DefaultMaxDepth bounds sub-workflow nesting. Definitions are static config,
// so a cycle is a configuration mistake; the guard turns it into a clean error
// instead of a stack blowout.
const DefaultMaxDepth = 8

// ManagerConfig carries the static knobs for a Manager.
type ManagerConfig struct {
	// Instance identifies this process for lock ownership. Empty means the
	// caller did not assign one; the facade normally supplies a UUID.
	Instance string

	// EndpointPrefixes maps endpoint names onto the prefix lists stripped from
	// their output during delivery.
	EndpointPrefixes map[string][]string

	// MaxDepth overrides DefaultMaxDepth when positive.
	MaxDepth int
}

// Manager is the engine entry point: it loads definitions, builds the
// per-request processor and delivery pipeline, and runs child workflows on
// behalf of CustomWorkflow nodes. One Manager serves all requests of a
// process.
type Manager struct {
	source    DefinitionSource
	registry  *Registry
	invoker   llm.Invoker
	resolver  *variables.Resolver
	locks     locks.Store
	collector *metrics.Collector
	logger    *zap.Logger
	tracer    trace.Tracer

	instance         string
	endpointPrefixes map[string][]string
	maxDepth         int
}

// NewManager wires the engine. collector may be nil to run without metrics;
// a nil logger falls back to zap.NewNop.
func NewManager(
	source DefinitionSource,
	invoker llm.Invoker,
	resolver *variables.Resolver,
	lockStore locks.Store,
	collector *metrics.Collector,
	logger *zap.Logger,
	cfg ManagerConfig,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	m := &Manager{
		source:           source,
		invoker:          invoker,
		resolver:         resolver,
		locks:            lockStore,
		collector:        collector,
		logger:           logger.With(zap.String("component", "workflow_manager")),
		tracer:           otel.Tracer("github.com/loomhq/loom/workflow"),
		instance:         cfg.Instance,
		endpointPrefixes: cfg.EndpointPrefixes,
		maxDepth:         maxDepth,
	}
	m.registry = NewRegistry(map[NodeType]Handler{
		NodeTypeStandard:                  NewStandardHandler(logger),
		NodeTypeConditional:               NewConditionalHandler(condition.NewEvaluator(logger)),
		NodeTypeWorkflowLock:              NewWorkflowLockHandler(logger),
		NodeTypeCustomWorkflow:            NewCustomWorkflowHandler(m, logger),
		NodeTypeConditionalCustomWorkflow: NewConditionalCustomWorkflowHandler(m, logger),
	})
	return m
}

// Instance returns the lock-ownership identity of this manager.
func (m *Manager) Instance() string { return m.instance }

// Run executes the named workflow for one user turn. With stream=true the
// result carries a live token stream; otherwise the finished text. The caller
// must consume a returned stream to completion or cancel ctx, or workflow
// locks stay held until their TTL.
func (m *Manager) Run(ctx context.Context, name string, history []types.Message, user string, stream bool) (*Result, error) {
	return m.run(ctx, name, history, nil, user, stream, true, 0)
}

// runChild executes a sub-workflow for a CustomWorkflow-family node. The
// child streams and delivers only when the calling node is the parent's
// responder; its history is shared but its variable scope is only what the
// parent exported as inputs.
func (m *Manager) runChild(ctx context.Context, name string, parent *ExecutionContext, inputs map[int]string) (Output, error) {
	deliver := parent.IsResponder
	res, err := m.run(ctx, name, parent.History, inputs, parent.User,
		parent.Stream && parent.IsResponder, deliver, parent.Depth+1)
	if err != nil {
		return Output{}, err
	}
	if res.Stream != nil {
		return Output{Stream: res.Stream, Processed: true}, nil
	}
	// Text is post-processed iff the child delivered it.
	return Output{Text: res.Text, Processed: deliver}, nil
}

func (m *Manager) run(
	ctx context.Context,
	name string,
	history []types.Message,
	inputs map[int]string,
	user string,
	stream, deliver bool,
	depth int,
) (*Result, error) {
	if depth > m.maxDepth {
		return nil, types.NewErrorf(types.ErrRecursionLimit,
			"workflow %q exceeds nesting depth %d", name, m.maxDepth)
	}

	def, err := m.source.Load(name)
	if err != nil {
		return nil, types.NewErrorf(types.ErrWorkflowNotFound,
			"loading workflow %q", name).WithCause(err)
	}

	runID := uuid.NewString()
	logger := m.logger.With(zap.String("run_id", runID))

	ctx, span := m.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.name", name),
		attribute.String("workflow.run_id", runID),
		attribute.Bool("workflow.stream", stream),
		attribute.Int("workflow.depth", depth),
	))
	defer span.End()

	proc := &Processor{
		def:       def,
		registry:  m.registry,
		pipeline:  m.buildPipeline(def),
		invoker:   m.invoker,
		resolver:  m.resolver,
		locks:     m.locks,
		collector: m.collector,
		logger:    logger,
		tracer:    m.tracer,
		instance:  m.instance,
	}

	start := time.Now()
	res, err := proc.Execute(ctx, ExecOptions{
		History: history,
		Inputs:  inputs,
		User:    user,
		Stream:  stream,
		Deliver: deliver,
		Depth:   depth,
	})
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	if m.collector != nil {
		m.collector.RecordWorkflowExecution(name, status, duration)
	}
	if err != nil {
		logger.Error("workflow execution failed",
			zap.String("workflow", name),
			zap.Int("depth", depth),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}
	logger.Info("workflow executed",
		zap.String("workflow", name),
		zap.Int("depth", depth),
		zap.Bool("stream", res.Stream != nil),
		zap.Duration("duration", duration),
	)

	if res.Stream != nil && m.collector != nil {
		res.Stream = m.countFragments(ctx, name, res.Stream)
	}
	return res, nil
}

// buildPipeline assembles the delivery pipeline for one definition: its think
// mode, its own prefix list, and the prefix list of the responder's endpoint.
func (m *Manager) buildPipeline(def *Definition) *streaming.Pipeline {
	prefix := streaming.DefaultPrefixConfig()
	prefix.WorkflowPrefixes = def.StripPrefixes
	if idx, err := def.ResponderIndex(); err == nil {
		prefix.EndpointPrefixes = m.endpointPrefixes[def.Nodes[idx-1].Endpoint]
	}
	return streaming.NewPipeline(streaming.PipelineConfig{
		Think:  def.ThinkConfig(),
		Prefix: prefix,
	}, m.logger)
}

// countFragments wraps a delivered stream so each emitted fragment is counted.
// Like relayStream, it exits on ctx cancellation so an abandoned consumer
// never strands the goroutine on a full buffer.
func (m *Manager) countFragments(ctx context.Context, workflow string, in types.Stream) types.Stream {
	out := make(chan types.Fragment, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case frag, ok := <-in:
				if !ok {
					return
				}
				m.collector.RecordStreamedFragment(workflow)
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
