package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/apperr"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
)

// BreakerConfig holds the knobs for one guarded resource.
type BreakerConfig struct {
	// FailureThreshold is how many consecutive failures trip Closed -> Open.
	FailureThreshold uint32
	// RecoveryTimeout is how long Open lasts before probing resumes.
	RecoveryTimeout time.Duration
	// HalfOpenProbeCount is how many consecutive probe successes close the
	// breaker again; any probe failure reopens it.
	HalfOpenProbeCount uint32
	// Fallback, when HasFallback is set, is returned instead of an error
	// while the breaker is rejecting calls.
	Fallback    any
	HasFallback bool
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:   5,
		RecoveryTimeout:    30 * time.Second,
		HalfOpenProbeCount: 2,
	}
}

// Breaker guards calls to one unreliable resource. While Open it rejects
// immediately without invoking the operation, bounding the blast radius of a
// failing dependency. Safe for concurrent use from many creator pipelines.
type Breaker struct {
	name string
	cfg  BreakerConfig
	cb   *gobreaker.CircuitBreaker
	log  *logger.Logger
}

func NewBreaker(baseLog *logger.Logger, name string, cfg BreakerConfig) *Breaker {
	log := baseLog.With("component", "CircuitBreaker", "resource", name)
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenProbeCount,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state change", "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{name: name, cfg: cfg, cb: gobreaker.NewCircuitBreaker(settings), log: log}
}

// Execute runs the operation through the breaker. A rejected call returns the
// configured fallback, or a CircuitOpenError naming the resource.
func (b *Breaker) Execute(op func() (any, error)) (any, error) {
	result, err := b.cb.Execute(op)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		if b.cfg.HasFallback {
			b.log.Warn("Breaker rejecting calls, serving fallback")
			return b.cfg.Fallback, nil
		}
		return nil, &apperr.CircuitOpenError{Resource: b.name}
	}
	return nil, err
}

// State reports closed / open / half-open for observability and tests.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// BreakerManager hands out one breaker per resource name so all creator
// pipelines hitting the same dependency share failure accounting.
type BreakerManager struct {
	mu       sync.Mutex
	log      *logger.Logger
	breakers map[string]*Breaker
}

func NewBreakerManager(baseLog *logger.Logger) *BreakerManager {
	return &BreakerManager{
		log:      baseLog,
		breakers: map[string]*Breaker{},
	}
}

func (m *BreakerManager) GetOrCreate(name string, cfg BreakerConfig) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[name]; ok {
		return b
	}
	b := NewBreaker(m.log, name, cfg)
	m.breakers[name] = b
	return b
}
