package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// BreakerState captures circuit breaker states.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without invoking the operation while the
// breaker is short-circuiting.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerConfig controls thresholds for state transitions.
type BreakerConfig struct {
	FailureThreshold    int           `yaml:"failure_threshold"`
	RecoveryTimeout     time.Duration `yaml:"recovery_timeout"`
	HalfOpenMaxAttempts int           `yaml:"half_open_max_attempts"`
}

// DefaultBreakerConfig provides sensible defaults.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold:    5,
	RecoveryTimeout:     60 * time.Second,
	HalfOpenMaxAttempts: 1,
}

// Breaker guards one logical remote operation. It trips open after
// FailureThreshold consecutive failures and lets a limited number of
// trial calls through once RecoveryTimeout has elapsed.
//
// The OPEN -> HALF_OPEN transition happens lazily inside Execute, never
// on a read: State observed between recovery and the next call
// legitimately still reports OPEN.
type Breaker struct {
	key string
	cfg BreakerConfig

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	lastFailure         time.Time
	halfOpenAttempts    int
	nowFn               func() time.Time
}

// NewBreaker creates a breaker scoped to one operation key.
func NewBreaker(key string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if cfg.HalfOpenMaxAttempts < 1 {
		cfg.HalfOpenMaxAttempts = DefaultBreakerConfig.HalfOpenMaxAttempts
	}
	return &Breaker{key: key, cfg: cfg, nowFn: time.Now}
}

// Execute runs op under breaker protection. While OPEN it fails fast
// with ErrCircuitOpen instead of invoking op.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.allow(); err != nil {
		breakerRejections.WithLabelValues(b.key).Inc()
		return err
	}
	err := op(ctx)
	b.record(err == nil)
	return err
}

// State returns the current state without side effects.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the full breaker state for observability.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		Key:                 b.key,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailure:         b.lastFailure,
	}
}

// BreakerSnapshot is a point-in-time view of a breaker.
type BreakerSnapshot struct {
	Key                 string
	State               BreakerState
	ConsecutiveFailures int
	LastFailure         time.Time
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.nowFn().Sub(b.lastFailure) >= b.cfg.RecoveryTimeout {
			b.transition(StateHalfOpen)
			b.halfOpenAttempts = 1
			return nil
		}
		return fmt.Errorf("%s: %w", b.key, ErrCircuitOpen)
	case StateHalfOpen:
		if b.halfOpenAttempts >= b.cfg.HalfOpenMaxAttempts {
			return fmt.Errorf("%s: %w", b.key, ErrCircuitOpen)
		}
		b.halfOpenAttempts++
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		if b.state != StateClosed {
			b.transition(StateClosed)
		}
		b.consecutiveFailures = 0
		b.halfOpenAttempts = 0
		return
	}

	b.consecutiveFailures++
	b.lastFailure = b.nowFn()

	switch b.state {
	case StateHalfOpen:
		b.transition(StateOpen)
		b.halfOpenAttempts = 0
	case StateClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to BreakerState) {
	b.state = to
	breakerTransitions.WithLabelValues(b.key, to.String()).Inc()
}

// BreakerRegistry owns one breaker per operation key, created lazily on
// first use. It is injected where needed rather than process-global so
// tests can reset state between runs.
type BreakerRegistry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[string]*Breaker
}

// NewBreakerRegistry creates a registry applying cfg to every breaker.
func NewBreakerRegistry(cfg BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for key, creating it on first use.
func (r *BreakerRegistry) Get(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[key]
	if !ok {
		b = NewBreaker(key, r.cfg)
		r.breakers[key] = b
	}
	return b
}

// Reset removes the breaker for key, returning it to its default state
// on next use.
func (r *BreakerRegistry) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, key)
}

// Snapshots returns the current state of every known breaker.
func (r *BreakerRegistry) Snapshots() []BreakerSnapshot {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	snaps := make([]BreakerSnapshot, 0, len(breakers))
	for _, b := range breakers {
		snaps = append(snaps, b.Snapshot())
	}
	return snaps
}
