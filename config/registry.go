package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/loomhq/loom/types"
	"github.com/loomhq/loom/workflow"
)

// Registry loads workflow definitions by name from a directory and caches
// them. It implements workflow.DefinitionSource. Concurrent first loads of
// the same name are collapsed to one file read.
type Registry struct {
	dir    string
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]*workflow.Definition
	group singleflight.Group
}

// NewRegistry creates a registry over the given definitions directory.
func NewRegistry(dir string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		dir:    dir,
		logger: logger.With(zap.String("component", "workflow_registry")),
		cache:  make(map[string]*workflow.Definition),
	}
}

// Load returns the named definition, reading <dir>/<name>.yaml on first use.
func (r *Registry) Load(name string) (*workflow.Definition, error) {
	r.mu.RLock()
	def, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return def, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		def, err := r.read(name)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[name] = def
		r.mu.Unlock()
		return def, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*workflow.Definition), nil
}

func (r *Registry) read(name string) (*workflow.Definition, error) {
	// Definition names come from configuration, but refuse path traversal
	// anyway: a name is a file name, never a path.
	if name != filepath.Base(name) || name == "." || name == ".." {
		return nil, types.NewErrorf(types.ErrWorkflowNotFound, "invalid workflow name %q", name)
	}

	path := filepath.Join(r.dir, name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewErrorf(types.ErrWorkflowNotFound,
			"workflow %q not found in %s", name, r.dir).WithCause(err)
	}

	var def workflow.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing workflow %s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = name
	}

	// Fail at load time on configuration mistakes the processor would only
	// hit mid-request.
	if len(def.Nodes) == 0 {
		return nil, types.NewErrorf(types.ErrMissingStaticField,
			"workflow %q has no nodes", name)
	}
	if _, err := def.ResponderIndex(); err != nil {
		return nil, err
	}

	r.logger.Debug("workflow definition loaded",
		zap.String("workflow", name),
		zap.Int("nodes", len(def.Nodes)),
	)
	return &def, nil
}

// Invalidate drops one cached definition so the next Load re-reads its file.
func (r *Registry) Invalidate(name string) {
	r.mu.Lock()
	delete(r.cache, name)
	r.mu.Unlock()
}

// InvalidateAll drops the whole cache.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[string]*workflow.Definition)
	r.mu.Unlock()
}
