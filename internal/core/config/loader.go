package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/daybook-dev/daybook/internal/fetch"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content, so tokens can
	// stay out of the file.
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Fetch.Concurrency == 0 {
		cfg.Fetch.Concurrency = fetch.DefaultConcurrency
	}

	base := fetch.DefaultRetryConfig
	if cfg.Fetch.Conservative {
		base = fetch.ConservativeRetryConfig
	}
	if cfg.Fetch.Retry.MaxAttempts == 0 {
		cfg.Fetch.Retry.MaxAttempts = base.MaxAttempts
	}
	if cfg.Fetch.Retry.BaseDelay == 0 {
		cfg.Fetch.Retry.BaseDelay = base.BaseDelay
	}
	if cfg.Fetch.Retry.MaxDelay == 0 {
		cfg.Fetch.Retry.MaxDelay = base.MaxDelay
	}
	if cfg.Fetch.Retry.Multiplier == 0 {
		cfg.Fetch.Retry.Multiplier = base.Multiplier
	}
	if cfg.Fetch.Retry.Jitter == nil {
		jitter := base.Jitter
		cfg.Fetch.Retry.Jitter = &jitter
	}

	if cfg.Fetch.Breaker.FailureThreshold == 0 {
		cfg.Fetch.Breaker.FailureThreshold = fetch.DefaultBreakerConfig.FailureThreshold
	}
	if cfg.Fetch.Breaker.RecoveryTimeout == 0 {
		cfg.Fetch.Breaker.RecoveryTimeout = fetch.DefaultBreakerConfig.RecoveryTimeout
	}
	if cfg.Fetch.Breaker.HalfOpenMaxAttempts == 0 {
		cfg.Fetch.Breaker.HalfOpenMaxAttempts = fetch.DefaultBreakerConfig.HalfOpenMaxAttempts
	}
}
