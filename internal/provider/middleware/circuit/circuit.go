// Package circuit provides a closed/open/half-open circuit breaker middleware for
// provider clients.
package circuit

import (
	"context"
	"sync"
	"time"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/provider"
)

// State is the breaker's current posture.
type State int

// Breaker states.
const (
	Closed State = iota
	Open
	HalfOpen
)

// Config controls when a breaker trips and how long it stays open.
type Config struct {
	Timeout time.Duration
	FailureThreshold int
	SuccessThreshold int
}

// DefaultConfig mirrors circuit breaker defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, SuccessThreshold: 2, Timeout: 30 * time.Second}
}

// Breaker is a single provider's circuit breaker state machine.
type Breaker struct {
	cfg Config
	mu sync.Mutex
	state State
	failures int
	successes int
	openedAt time.Time
}

// New builds a Breaker in the Closed state.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: Closed}
}

// Allow reports whether a call may proceed, transitioning Open -> HalfOpen once the
// configured timeout has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.cfg.Timeout {
			b.state = HalfOpen
			b.successes = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess registers a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.failures = 0
		}
	case Closed:
		b.failures = 0
	case Open:
	}
}

// RecordFailure registers a failed call, tripping the breaker when the threshold is hit.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.state = Open
		b.openedAt = time.Now()
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = Open
			b.openedAt = time.Now()
		}
	case Open:
	}
}

// currentState returns the breaker's current state.
func (b *Breaker) currentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

type client struct {
	provider.Client
	breaker *Breaker
}

// Middleware wraps next, refusing calls while the breaker is open.
func Middleware(breaker *Breaker) provider.Middleware {
	return func(next provider.Client) provider.Client {
		return &client{Client: next, breaker: breaker}
	}
}

func (c *client) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	if !c.breaker.Allow() {
		return provider.ChatResponse{}, errkind.New(errkind.ServiceUnavailable, "circuit open for "+c.Client.Name())
	}
	resp, err := c.Client.Chat(ctx, req)
	if err != nil {
		c.breaker.RecordFailure()
		return provider.ChatResponse{}, err
	}
	c.breaker.RecordSuccess()
	return resp, nil
}

func (c *client) ChatStream(ctx context.Context, req provider.ChatRequest) (<-chan provider.Chunk, error) {
	if !c.breaker.Allow() {
		return nil, errkind.New(errkind.ServiceUnavailable, "circuit open for "+c.Client.Name())
	}
	ch, err := c.Client.ChatStream(ctx, req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}
	c.breaker.RecordSuccess()
	return ch, nil
}
