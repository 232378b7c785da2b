// Package ratelimit provides a per-provider token-bucket + concurrency-cap middleware.
// A hand-rolled bucket is used rather than golang.org/x/time/rate: a refill ticker plus
// a buffered-channel semaphore for concurrency gives exactly this shape without pulling
// in another dependency for it.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/provider"
)

// Config bounds a provider's throughput and concurrency.
type Config struct {
	RefillInterval time.Duration
	TokensPerMin int
	MaxConcurrency int
}

// DefaultConfig is a permissive default suitable for a single local provider.
func DefaultConfig() Config {
	return Config{TokensPerMin: 6000, MaxConcurrency: 4, RefillInterval: time.Second}
}

// Limiter is a stoppable token bucket plus a concurrency semaphore for one provider.
type Limiter struct {
	cfg Config
	tokens chan struct{}
	sem chan struct{}
	stopCh chan struct{}
	stopped sync.Once
}

// New builds and starts a Limiter's refill goroutine.
func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg: cfg,
		tokens: make(chan struct{}, cfg.TokensPerMin),
		sem: make(chan struct{}, cfg.MaxConcurrency),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < cfg.TokensPerMin; i++ {
		l.tokens <- struct{}{}
	}
	go l.refillLoop()
	return l
}

func (l *Limiter) refillLoop() {
	perTick := l.cfg.TokensPerMin
	if l.cfg.RefillInterval < time.Minute && l.cfg.RefillInterval > 0 {
		ticksPerMinute := int(time.Minute / l.cfg.RefillInterval)
		if ticksPerMinute > 0 {
			perTick = l.cfg.TokensPerMin / ticksPerMinute
			if perTick < 1 {
				perTick = 1
			}
		}
	}
	ticker := time.NewTicker(l.cfg.RefillInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			for i := 0; i < perTick; i++ {
				select {
				case l.tokens <- struct{}{}:
				default:
				}
			}
		}
	}
}

// Acquire blocks until a token and a concurrency slot are available, or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-ctx.Done():
		return nil, errkind.Wrap(errkind.Cancelled, ctx.Err(), "rate limit wait cancelled")
	case l.sem <- struct{}{}:
	}
	select {
	case <-ctx.Done():
		<-l.sem
		return nil, errkind.Wrap(errkind.Cancelled, ctx.Err(), "rate limit wait cancelled")
	case <-l.tokens:
	}
	return func() { <-l.sem }, nil
}

// Stop ends the refill goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopped.Do(func() { close(l.stopCh) })
}

type client struct {
	provider.Client
	limiter *Limiter
}

// Middleware wraps next, gating calls through limiter.
func Middleware(limiter *Limiter) provider.Middleware {
	return func(next provider.Client) provider.Client {
		return &client{Client: next, limiter: limiter}
	}
}

func (c *client) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return provider.ChatResponse{}, err
	}
	defer release()
	return c.Client.Chat(ctx, req)
}

func (c *client) ChatStream(ctx context.Context, req provider.ChatRequest) (<-chan provider.Chunk, error) {
	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return c.Client.ChatStream(ctx, req)
}
