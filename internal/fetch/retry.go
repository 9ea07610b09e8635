package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig defines retry behavior for one logical operation.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      bool          `yaml:"jitter"`
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	Multiplier:  2.0,
	Jitter:      true,
}

// ConservativeRetryConfig suits heavily rate-limited endpoints.
var ConservativeRetryConfig = RetryConfig{
	MaxAttempts: 5,
	BaseDelay:   2 * time.Second,
	MaxDelay:    60 * time.Second,
	Multiplier:  2.0,
	Jitter:      true,
}

// Retryer wraps fallible remote operations with bounded retries,
// exponential backoff and an optional circuit breaker per operation key.
type Retryer struct {
	cfg      RetryConfig
	breakers *BreakerRegistry
	log      *slog.Logger
}

// NewRetryer creates a Retryer. breakers may be nil to disable circuit
// breaking; log may be nil.
func NewRetryer(cfg RetryConfig, breakers *BreakerRegistry, log *slog.Logger) *Retryer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = DefaultRetryConfig.Multiplier
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retryer{cfg: cfg, breakers: breakers, log: log}
}

// WithConfig returns a Retryer sharing this one's breaker registry and
// logger but using a different retry profile.
func (r *Retryer) WithConfig(cfg RetryConfig) *Retryer {
	return NewRetryer(cfg, r.breakers, r.log)
}

// Do runs op under the retry policy for the given operation key.
func (r *Retryer) Do(ctx context.Context, key string, op func(context.Context) error) error {
	_, err := RetryValue(ctx, r, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// RetryValue runs op under r's retry policy and returns its value.
//
// Terminal errors and breaker-open rejections abort immediately;
// retryable errors are re-attempted with capped exponential backoff up
// to MaxAttempts. When a breaker is configured, every attempt updates
// its failure count, so one logical call can trip the breaker with its
// internal retries alone.
func RetryValue[T any](ctx context.Context, r *Retryer, key string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		var result T
		start := time.Now()
		err := r.execute(ctx, key, func(ctx context.Context) error {
			var opErr error
			result, opErr = op(ctx)
			return opErr
		})
		fetchLatency.WithLabelValues(key).Observe(time.Since(start).Seconds())

		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			// No remote attempt was consumed; retrying would just
			// hammer the breaker.
			return zero, err
		}

		lastErr = err
		class := Classify(err)
		fetchFailures.WithLabelValues(key, class.String()).Inc()

		if class == ClassTerminal {
			return zero, err
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.backoff(attempt)
		r.log.Debug("retrying operation",
			"operation", key, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("%s: all %d attempts failed: %w", key, r.cfg.MaxAttempts, lastErr)
}

// execute runs a single attempt, routed through the breaker when one is
// configured so breaker bookkeeping happens exactly once per attempt.
func (r *Retryer) execute(ctx context.Context, key string, op func(context.Context) error) error {
	if r.breakers == nil {
		fetchAttempts.WithLabelValues(key).Inc()
		return op(ctx)
	}
	return r.breakers.Get(key).Execute(ctx, func(ctx context.Context) error {
		fetchAttempts.WithLabelValues(key).Inc()
		return op(ctx)
	})
}

func (r *Retryer) backoff(attempt int) time.Duration {
	delay := float64(r.cfg.BaseDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	if max := float64(r.cfg.MaxDelay); max > 0 && delay > max {
		delay = max
	}
	if r.cfg.Jitter {
		delay += rand.Float64() * delay
	}
	return time.Duration(delay)
}
