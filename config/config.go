package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Lock backend names accepted in configuration.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
	LockBackendSQLite = "sqlite"
)

// Config is the complete engine configuration.
type Config struct {
	// WorkflowsDir holds the workflow definition YAML files, one per
	// workflow, named <workflow>.yaml.
	WorkflowsDir string `yaml:"workflows_dir"`

	// Endpoints maps endpoint names onto their delivery settings.
	Endpoints map[string]EndpointConfig `yaml:"endpoints,omitempty"`

	Locks     LockConfig      `yaml:"locks"`
	Variables VariableConfig  `yaml:"variables"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// MaxDepth bounds sub-workflow nesting; zero means the engine default.
	MaxDepth int `yaml:"max_depth,omitempty"`
}

// EndpointConfig is the per-endpoint delivery configuration.
type EndpointConfig struct {
	// StripPrefixes lists literal prefixes removed from this endpoint's
	// output at delivery, after workflow-level prefixes.
	StripPrefixes []string `yaml:"strip_prefixes,omitempty"`
}

// LockConfig selects and tunes the workflow lock backend.
type LockConfig struct {
	// Backend is memory, redis, or sqlite.
	Backend string `yaml:"backend"`

	// TTL is the safety expiry for held locks; zero means the store default.
	TTL time.Duration `yaml:"ttl,omitempty"`

	Redis      RedisConfig `yaml:"redis,omitempty"`
	SQLitePath string      `yaml:"sqlite_path,omitempty"`
}

// RedisConfig is the redis lock backend connection configuration.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	PoolSize int    `yaml:"pool_size,omitempty"`
}

// VariableConfig tunes built-in variable rendering.
type VariableConfig struct {
	// RecentHistoryTokens is the token budget for the recent_history
	// variable.
	RecentHistoryTokens int `yaml:"recent_history_tokens"`
}

// RateLimitConfig throttles LLM invocations. Zero RPS disables the limiter.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps,omitempty"`
	Burst int     `yaml:"burst,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		WorkflowsDir: "workflows",
		Locks: LockConfig{
			Backend: LockBackendMemory,
		},
		Variables: VariableConfig{
			RecentHistoryTokens: 2048,
		},
	}
}

// Load reads a YAML config file over the defaults and applies environment
// overrides. An empty path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the deployment-specific environment variables. Only
// values that differ per environment are overridable; everything structural
// stays in the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("LOOM_WORKFLOWS_DIR"); v != "" {
		cfg.WorkflowsDir = v
	}
	if v := os.Getenv("LOOM_LOCK_BACKEND"); v != "" {
		cfg.Locks.Backend = v
	}
	if v := os.Getenv("LOOM_REDIS_ADDR"); v != "" {
		cfg.Locks.Redis.Addr = v
	}
	if v := os.Getenv("LOOM_REDIS_PASSWORD"); v != "" {
		cfg.Locks.Redis.Password = v
	}
	if v := os.Getenv("LOOM_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Locks.Redis.DB = db
		}
	}
	if v := os.Getenv("LOOM_SQLITE_PATH"); v != "" {
		cfg.Locks.SQLitePath = v
	}
}

// Validate rejects configurations the engine cannot start with.
func (c *Config) Validate() error {
	if c.WorkflowsDir == "" {
		return fmt.Errorf("workflows_dir must be set")
	}
	switch c.Locks.Backend {
	case LockBackendMemory:
	case LockBackendRedis:
		if c.Locks.Redis.Addr == "" {
			return fmt.Errorf("locks.redis.addr must be set for the redis backend")
		}
	case LockBackendSQLite:
		if c.Locks.SQLitePath == "" {
			return fmt.Errorf("locks.sqlite_path must be set for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", c.Locks.Backend)
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must not be negative")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}
	return nil
}

// EndpointPrefixes flattens the endpoint map into the prefix lookup the
// workflow manager consumes.
func (c *Config) EndpointPrefixes() map[string][]string {
	if len(c.Endpoints) == 0 {
		return nil
	}
	out := make(map[string][]string, len(c.Endpoints))
	for name, ep := range c.Endpoints {
		if len(ep.StripPrefixes) > 0 {
			out[name] = ep.StripPrefixes
		}
	}
	return out
}
