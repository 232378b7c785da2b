// Package timeout provides a per-call deadline middleware for provider clients.
package timeout

import (
	"context"
	"time"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/provider"
)

type client struct {
	provider.Client
	d time.Duration
}

// Middleware wraps next, cancelling the call's context after d elapses.
func Middleware(d time.Duration) provider.Middleware {
	return func(next provider.Client) provider.Client {
		return &client{Client: next, d: d}
	}
}

func (c *client) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	if c.d <= 0 {
		return c.Client.Chat(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	resp, err := c.Client.Chat(ctx, req)
	if err != nil && ctx.Err() != nil {
		return provider.ChatResponse{}, errkind.Wrap(errkind.Timeout, err, "chat exceeded deadline")
	}
	return resp, err
}

func (c *client) ChatStream(ctx context.Context, req provider.ChatRequest) (<-chan provider.Chunk, error) {
	if c.d <= 0 {
		return c.Client.ChatStream(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, c.d)
	ch, err := c.Client.ChatStream(ctx, req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, errkind.Wrap(errkind.Timeout, err, "chat_stream exceeded deadline")
		}
		return nil, err
	}
	out := make(chan provider.Chunk)
	go func() {
		defer cancel()
		defer close(out)
		for chunk := range ch {
			out <- chunk
		}
	}()
	return out, nil
}
