package timeout_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/provider"
	"github.com/infer-no-dev/devkit/internal/provider/middleware/timeout"
)

type slowProvider struct {
	*provider.EchoProvider
	delay time.Duration
}

func (s *slowProvider) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	select {
	case <-time.After(s.delay):
		return s.EchoProvider.Chat(ctx, req)
	case <-ctx.Done():
		return provider.ChatResponse{}, ctx.Err()
	}
}

func TestTimeoutMiddlewareConvertsDeadlineExceeded(t *testing.T) {
	slow := &slowProvider{EchoProvider: provider.NewEchoProvider("late"), delay: 50 * time.Millisecond}
	wrapped := timeout.Middleware(5 * time.Millisecond)(slow)

	_, err := wrapped.Chat(context.Background(), provider.ChatRequest{})
	require.Error(t, err)
	kind, ok := errkind.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errkind.Timeout, kind)
}

func TestTimeoutMiddlewarePassesThroughFastCalls(t *testing.T) {
	wrapped := timeout.Middleware(50 * time.Millisecond)(provider.NewEchoProvider("fast"))
	resp, err := wrapped.Chat(context.Background(), provider.ChatRequest{})
	require.NoError(t, err)
	require.Equal(t, "fast", resp.Content)
}
