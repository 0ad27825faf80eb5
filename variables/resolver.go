// Package variables substitutes {name} placeholders in node content fields.
// Static fields (workflow names, endpoint identifiers) are never resolved.
package variables

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loomhq/loom/types"
)

var (
	placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)
	agentInputRe  = regexp.MustCompile(`^agent(\d+)Input$`)
	agentOutputRe = regexp.MustCompile(`^agent(\d+)Output$`)
)

// Provider supplies values for builtin variable names (dates, history views).
// Implemented by BuiltinProvider; injected so tests can pin the clock.
type Provider interface {
	Lookup(name string, history []types.Message, now time.Time) (string, bool)
}

// Scope is the per-node substitution state. Inputs and Outputs are 1-indexed
// by node position; Custom holds the workflow's top-level variables.
type Scope struct {
	Custom  map[string]string
	Inputs  map[int]string
	Outputs map[int]string
	History []types.Message
}

// Resolver substitutes placeholders using, in precedence order: custom
// workflow variables, agent inputs, agent outputs, builtins. Unresolved
// placeholders stay literal.
type Resolver struct {
	builtins Provider
	logger   *zap.Logger
	now      func() time.Time
}

// NewResolver creates a resolver. builtins may be nil, in which case only
// custom variables and agent inputs/outputs resolve.
func NewResolver(builtins Provider, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		builtins: builtins,
		logger:   logger.With(zap.String("component", "variables")),
		now:      time.Now,
	}
}

// Resolve substitutes every known placeholder in text against the scope.
func (r *Resolver) Resolve(text string, sc Scope) string {
	if !strings.Contains(text, "{") {
		return text
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := r.lookup(name, sc, true); ok {
			return v
		}
		return match
	})
}

func (r *Resolver) lookup(name string, sc Scope, expandCustom bool) (string, bool) {
	if v, ok := sc.Custom[name]; ok {
		// Custom variables may be templated; expand one level so they can
		// reference inputs and builtins, but never other custom variables.
		if expandCustom && strings.Contains(v, "{") {
			v = placeholderRe.ReplaceAllStringFunc(v, func(match string) string {
				inner := match[1 : len(match)-1]
				if resolved, ok := r.lookupNonCustom(inner, sc); ok {
					return resolved
				}
				return match
			})
		}
		return v, true
	}
	return r.lookupNonCustom(name, sc)
}

func (r *Resolver) lookupNonCustom(name string, sc Scope) (string, bool) {
	if m := agentInputRe.FindStringSubmatch(name); m != nil {
		idx, err := strconv.Atoi(m[1])
		if err == nil {
			if v, ok := sc.Inputs[idx]; ok {
				return v, true
			}
		}
		return "", false
	}
	if m := agentOutputRe.FindStringSubmatch(name); m != nil {
		idx, err := strconv.Atoi(m[1])
		if err == nil {
			if v, ok := sc.Outputs[idx]; ok {
				return v, true
			}
		}
		return "", false
	}
	if r.builtins != nil {
		if v, ok := r.builtins.Lookup(name, sc.History, r.now()); ok {
			return v, true
		}
	}
	return "", false
}
