// Package search wraps a storage.SearchService with the resilience layer
// the resolver uses on its only suspension points: a circuit breaker that
// sheds load when the index misbehaves, and a rate limiter that keeps batch
// workers from saturating it.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/kbatlas/linker/internal/storage"
	"github.com/kbatlas/linker/pkg/types"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejects
// requests to prevent cascading failures.
var ErrCircuitOpen = errors.New("search circuit breaker is open")

var _ storage.SearchService = (*GuardedService)(nil)

// Config holds the resilience settings for a GuardedService.
type Config struct {
	// MaxFailures is the number of consecutive failures required to trip
	// the circuit. Default: 3.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before transitioning to
	// half-open. Default: 30 seconds.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of consecutive successes required
	// in half-open state to close the circuit again. Default: 2.
	HalfOpenMaxSuccesses uint32

	// QueriesPerSecond caps the sustained query rate across all callers.
	// Zero disables rate limiting.
	QueriesPerSecond float64

	// Burst is the rate limiter's burst size. Default: 1 when rate
	// limiting is enabled.
	Burst int
}

func (c *Config) applyDefaults() {
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HalfOpenMaxSuccesses == 0 {
		c.HalfOpenMaxSuccesses = 2
	}
	if c.QueriesPerSecond > 0 && c.Burst == 0 {
		c.Burst = 1
	}
}

// GuardedService decorates a SearchService with a circuit breaker and an
// optional rate limiter. It is safe for concurrent use.
type GuardedService struct {
	inner   storage.SearchService
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewGuardedService wraps inner with the given resilience configuration.
func NewGuardedService(inner storage.SearchService, cfg Config) *GuardedService {
	cfg.applyDefaults()

	g := &GuardedService{inner: inner}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "KBSearch",
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	})
	if cfg.QueriesPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), cfg.Burst)
	}
	return g
}

// FindByName delegates to the wrapped service through the breaker.
func (g *GuardedService) FindByName(ctx context.Context, query string, fuzzyDistance uint) ([]types.EntityRecord, error) {
	return g.execute(ctx, func() ([]types.EntityRecord, error) {
		return g.inner.FindByName(ctx, query, fuzzyDistance)
	})
}

// FindByID delegates to the wrapped service through the breaker.
func (g *GuardedService) FindByID(ctx context.Context, id string) ([]types.EntityRecord, error) {
	return g.execute(ctx, func() ([]types.EntityRecord, error) {
		return g.inner.FindByID(ctx, id)
	})
}

func (g *GuardedService) execute(ctx context.Context, fn func() ([]types.EntityRecord, error)) ([]types.EntityRecord, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}

	records, _ := result.([]types.EntityRecord)
	return records, nil
}
