package circuit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/provider"
	"github.com/infer-no-dev/devkit/internal/provider/middleware/circuit"
)

func TestBreakerTripsAfterThresholdAndRecovers(t *testing.T) {
	cfg := circuit.DefaultConfig()
	cfg.FailureThreshold = 2
	cfg.SuccessThreshold = 1
	cfg.Timeout = 10 * time.Millisecond
	breaker := circuit.New(cfg)

	failing := &provider.EchoProvider{FailChat: errkind.New(errkind.ServiceUnavailable, "down")}
	wrapped := circuit.Middleware(breaker)(failing)

	for i := 0; i < 2; i++ {
		_, err := wrapped.Chat(context.Background(), provider.ChatRequest{})
		require.Error(t, err)
	}

	// Third call should be refused by the now-open breaker, not even reach the provider.
	_, err := wrapped.Chat(context.Background(), provider.ChatRequest{})
	require.Error(t, err)

	time.Sleep(15 * time.Millisecond)

	recovered := provider.NewEchoProvider("back up")
	recoveredWrapped := circuit.Middleware(breaker)(recovered)
	resp, err := recoveredWrapped.Chat(context.Background(), provider.ChatRequest{})
	require.NoError(t, err)
	require.Equal(t, "back up", resp.Content)
}
