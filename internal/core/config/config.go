package config

import (
	"time"

	"github.com/daybook-dev/daybook/internal/fetch"
	"github.com/daybook-dev/daybook/internal/infra/redis"
	"github.com/daybook-dev/daybook/internal/infra/storage/postgres"
	"github.com/daybook-dev/daybook/internal/source/github"
	"github.com/daybook-dev/daybook/internal/source/gitlab"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig    `yaml:"server"`
	Fetch    FetchConfig     `yaml:"fetch"`
	Sources  SourcesConfig   `yaml:"sources"`
	Redis    redis.Config    `yaml:"redis"`
	Database postgres.Config `yaml:"database"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the health/metrics HTTP server settings.
type ServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// FetchConfig tunes the fetch core: fan-out width, retry policy and
// circuit breaker thresholds.
type FetchConfig struct {
	Concurrency int                 `yaml:"concurrency"`
	Retry       RetryConfig         `yaml:"retry"`
	Breaker     fetch.BreakerConfig `yaml:"breaker"`

	// Conservative switches to the slower retry profile for heavily
	// rate-limited deployments.
	Conservative bool `yaml:"conservative"`
}

// RetryConfig mirrors fetch.RetryConfig with a tri-state jitter flag,
// so an explicit `jitter: false` survives defaulting.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      *bool         `yaml:"jitter"`
}

// Policy resolves the parsed retry settings into the fetch layer's
// configuration. Load has already applied defaults, so a nil Jitter
// only occurs for configs built by hand; it means on.
func (r RetryConfig) Policy() fetch.RetryConfig {
	jitter := true
	if r.Jitter != nil {
		jitter = *r.Jitter
	}
	return fetch.RetryConfig{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		MaxDelay:    r.MaxDelay,
		Multiplier:  r.Multiplier,
		Jitter:      jitter,
	}
}

// SourcesConfig enables and configures each remote service. A nil
// entry disables the source.
type SourcesConfig struct {
	GitLab *gitlab.Config `yaml:"gitlab"`
	GitHub *github.Config `yaml:"github"`
}
