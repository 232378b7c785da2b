package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/provider"
	"github.com/infer-no-dev/devkit/internal/provider/middleware/retry"
)

type countingFailThenSucceed struct {
	*provider.EchoProvider
	failsLeft int
	calls int
}

func (c *countingFailThenSucceed) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	c.calls++
	if c.failsLeft > 0 {
		c.failsLeft--
		return provider.ChatResponse{}, errkind.New(errkind.ServiceUnavailable, "503")
	}
	return c.EchoProvider.Chat(ctx, req)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	base := &countingFailThenSucceed{EchoProvider: provider.NewEchoProvider("ok"), failsLeft: 2}
	cfg := retry.DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	cfg.Jitter = false

	wrapped := retry.Middleware(cfg)(base)
	resp, err := wrapped.Chat(context.Background(), provider.ChatRequest{})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
	require.Equal(t, 3, base.calls)
}

func TestRetryDoesNotRetryAuthErrors(t *testing.T) {
	base := &provider.EchoProvider{FailChat: errkind.New(errkind.Authentication, "bad key")}
	wrapped := retry.Middleware(retry.DefaultConfig())(base)
	_, err := wrapped.Chat(context.Background(), provider.ChatRequest{})
	require.Error(t, err)
	kind, ok := errkind.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errkind.Authentication, kind)
}
