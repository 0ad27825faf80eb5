// Package loom provides the top-level entry point for the workflow engine
// with minimal boilerplate.
//
// Usage:
//
//	import "github.com/loomhq/loom"
//
//	engine, err := loom.New(
//	    loom.WithInvoker(myInvoker),
//	    loom.WithWorkflowsDir("./workflows"),
//	)
//	reply, err := engine.Execute(ctx, "support_router", history, userID)
//
// The engine loads workflow definitions by name from the configured
// directory, executes their node lists against the injected LLM invoker, and
// post-processes whatever the responding node returns.
package loom

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/loomhq/loom/config"
	"github.com/loomhq/loom/internal/metrics"
	"github.com/loomhq/loom/llm"
	"github.com/loomhq/loom/locks"
	"github.com/loomhq/loom/types"
	"github.com/loomhq/loom/variables"
	"github.com/loomhq/loom/workflow"
)

// Engine is a configured workflow engine. One Engine serves all requests of
// a process; it is safe for concurrent use.
type Engine struct {
	manager *workflow.Manager
	locks   locks.Store
	watcher *config.Watcher
	logger  *zap.Logger
}

type options struct {
	cfg          *config.Config
	configPath   string
	workflowsDir string
	logger       *zap.Logger
	invoker      llm.Invoker
	lockStore    locks.Store
	source       workflow.DefinitionSource
	registerer   prometheus.Registerer
	instance     string
	hotReload    bool
}

// Option configures the engine created by [New].
type Option func(*options)

// WithInvoker sets the LLM invocation backend. Required.
func WithInvoker(inv llm.Invoker) Option {
	return func(o *options) { o.invoker = inv }
}

// WithConfig supplies a complete configuration, skipping file loading.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithConfigFile loads configuration from the given YAML file.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithWorkflowsDir overrides the workflow definitions directory after the
// rest of the configuration is resolved, so it composes with [WithConfig]
// and [WithConfigFile] in any option order.
func WithWorkflowsDir(dir string) Option {
	return func(o *options) { o.workflowsDir = dir }
}

// WithLogger sets a custom zap logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLockStore overrides the lock store built from configuration.
func WithLockStore(store locks.Store) Option {
	return func(o *options) { o.lockStore = store }
}

// WithDefinitionSource overrides the file-backed definition registry, for
// callers that hold definitions somewhere other than a directory of YAML.
func WithDefinitionSource(source workflow.DefinitionSource) Option {
	return func(o *options) { o.source = source }
}

// WithMetrics enables prometheus metrics on the given registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithInstance sets a stable instance identity for lock ownership. With a
// stable identity, locks left behind by a crashed run of the same instance
// are swept at startup. Default is a random UUID per process.
func WithInstance(id string) Option {
	return func(o *options) { o.instance = id }
}

// WithHotReload starts the definitions watcher so edited workflow files take
// effect without a restart. Only applies to the file-backed registry.
func WithHotReload() Option {
	return func(o *options) { o.hotReload = true }
}

// New builds an Engine. At minimum an invoker must be supplied via
// [WithInvoker].
func New(opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.invoker == nil {
		return nil, fmt.Errorf("loom: an LLM invoker is required, use WithInvoker")
	}

	cfg := o.cfg
	if cfg == nil {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.workflowsDir != "" {
		// Copy before overriding so a caller-held Config is not mutated.
		c := *cfg
		c.WorkflowsDir = o.workflowsDir
		cfg = &c
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	instance := o.instance
	if instance == "" {
		instance = uuid.NewString()
	}

	store := o.lockStore
	if store == nil {
		built, err := buildLockStore(cfg.Locks, logger)
		if err != nil {
			return nil, err
		}
		store = built
	}

	// Shed locks a previous run of this instance left behind. With a random
	// per-process instance this finds nothing and costs one scan.
	sweepCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.ReleaseInstance(sweepCtx, instance); err != nil {
		logger.Warn("startup lock sweep failed", zap.Error(err))
	}

	invoker := o.invoker
	if cfg.RateLimit.RPS > 0 {
		invoker = llm.NewRateLimitedInvoker(invoker, cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)
	}

	var collector *metrics.Collector
	if o.registerer != nil {
		collector = metrics.NewCollector("loom", o.registerer, logger)
	}

	source := o.source
	var watcher *config.Watcher
	if source == nil {
		registry := config.NewRegistry(cfg.WorkflowsDir, logger)
		source = registry
		if o.hotReload {
			watcher = config.NewWatcher(registry, 0, logger)
			watcher.Start(context.Background())
		}
	}

	resolver := variables.NewResolver(
		variables.NewBuiltinProvider(cfg.Variables.RecentHistoryTokens, logger),
		logger,
	)

	manager := workflow.NewManager(source, invoker, resolver, store, collector, logger, workflow.ManagerConfig{
		Instance:         instance,
		EndpointPrefixes: cfg.EndpointPrefixes(),
		MaxDepth:         cfg.MaxDepth,
	})

	return &Engine{
		manager: manager,
		locks:   store,
		watcher: watcher,
		logger:  logger,
	}, nil
}

func buildLockStore(cfg config.LockConfig, logger *zap.Logger) (locks.Store, error) {
	switch cfg.Backend {
	case config.LockBackendMemory, "":
		return locks.NewMemoryStore(cfg.TTL, logger), nil
	case config.LockBackendRedis:
		return locks.NewRedisStore(locks.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.TTL,
		}, logger)
	case config.LockBackendSQLite:
		return locks.NewSQLiteStore(cfg.SQLitePath, cfg.TTL, logger)
	default:
		return nil, fmt.Errorf("loom: unknown lock backend %q", cfg.Backend)
	}
}

// Execute runs the named workflow for one user turn and blocks for the
// finished response text.
func (e *Engine) Execute(ctx context.Context, name string, history []types.Message, user string) (string, error) {
	res, err := e.manager.Run(ctx, name, history, user, false)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// ExecuteStream runs the named workflow and returns a live token stream. The
// caller must consume the stream to completion or cancel ctx, or workflow
// locks stay held until their TTL.
func (e *Engine) ExecuteStream(ctx context.Context, name string, history []types.Message, user string) (types.Stream, error) {
	res, err := e.manager.Run(ctx, name, history, user, true)
	if err != nil {
		return nil, err
	}
	if res.Stream != nil {
		return res.Stream, nil
	}

	// A run can finish without streaming, e.g. a fallback-content route.
	// Wrap the text so callers see one shape.
	ch := make(chan types.Fragment, 1)
	ch <- types.Fragment{Text: res.Text, FinishReason: "stop"}
	close(ch)
	return ch, nil
}

// Instance returns the engine's lock-ownership identity.
func (e *Engine) Instance() string {
	return e.manager.Instance()
}

// Close stops the definitions watcher and releases the lock store.
func (e *Engine) Close() error {
	if e.watcher != nil {
		e.watcher.Stop()
	}
	return e.locks.Close()
}
