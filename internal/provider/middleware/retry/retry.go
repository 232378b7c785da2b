// Package retry provides exponential-backoff retry middleware for provider clients.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/logx"
	"github.com/infer-no-dev/devkit/internal/provider"
)

// Config controls backoff timing and attempt count.
type Config struct {
	InitialDelay time.Duration
	MaxDelay time.Duration
	BackoffFactor float64
	MaxAttempts int
	Jitter bool
}

// DefaultConfig mirrors default retry timing (0 -> ~1s -> ~2s -> ~4s).
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 4,
		InitialDelay: 1 * time.Second,
		MaxDelay: 30 * time.Second,
		BackoffFactor: 2.0,
		Jitter: true,
	}
}

func (c Config) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter {
		d *= 0.9 + 0.2*rand.Float64() //nolint:gosec // jitter does not need crypto-strength randomness
	}
	return time.Duration(d)
}

// shouldRetry reports whether the error kind backing err is worth retrying. Only
// transport-ish errors are retried; auth/validation/not-found are not.
func shouldRetry(err error) bool {
	kind, ok := errkind.KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case errkind.Network, errkind.RateLimited, errkind.ServiceUnavailable, errkind.Timeout:
		return true
	default:
		return false
	}
}

type client struct {
	provider.Client
	cfg Config
	logger *logx.Logger
}

// Middleware wraps next with retry behaviour per Config.
func Middleware(cfg Config) provider.Middleware {
	return func(next provider.Client) provider.Client {
		return &client{Client: next, cfg: cfg, logger: logx.New("retry").Named(next.Name())}
	}
}

func (c *client) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			d := c.cfg.delay(attempt - 1)
			c.logger.Warn("retry %d/%d in %v after: %v", attempt, c.cfg.MaxAttempts, d, lastErr)
			select {
			case <-ctx.Done():
				return provider.ChatResponse{}, errkind.Wrap(errkind.Cancelled, ctx.Err(), "retry cancelled")
			case <-time.After(d):
			}
		}
		resp, err := c.Client.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !shouldRetry(err) {
			return provider.ChatResponse{}, err
		}
	}
	return provider.ChatResponse{}, lastErr
}

func (c *client) ChatStream(ctx context.Context, req provider.ChatRequest) (<-chan provider.Chunk, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			d := c.cfg.delay(attempt - 1)
			c.logger.Warn("stream retry %d/%d in %v after: %v", attempt, c.cfg.MaxAttempts, d, lastErr)
			select {
			case <-ctx.Done():
				return nil, errkind.Wrap(errkind.Cancelled, ctx.Err(), "retry cancelled")
			case <-time.After(d):
			}
		}
		ch, err := c.Client.ChatStream(ctx, req)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		if !shouldRetry(err) {
			return nil, err
		}
	}
	return nil, lastErr
}
