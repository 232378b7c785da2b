package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/provider"
	"github.com/infer-no-dev/devkit/internal/provider/middleware/ratelimit"
)

func TestLimiterCapsConcurrency(t *testing.T) {
	cfg := ratelimit.DefaultConfig()
	cfg.MaxConcurrency = 1
	limiter := ratelimit.New(cfg)
	defer limiter.Stop()

	release1, err := limiter.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limiter.Acquire(ctx)
	require.Error(t, err, "second acquire should block until the first slot is released")

	release1()
}

func TestMiddlewarePassesThroughOnSuccess(t *testing.T) {
	limiter := ratelimit.New(ratelimit.DefaultConfig())
	defer limiter.Stop()

	wrapped := ratelimit.Middleware(limiter)(provider.NewEchoProvider("hi"))
	resp, err := wrapped.Chat(context.Background(), provider.ChatRequest{})
	require.NoError(t, err)
	require.Equal(t, "hi", resp.Content)
}
