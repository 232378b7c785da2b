package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/provider"
	"github.com/infer-no-dev/devkit/internal/provider/middleware/metrics"
)

func TestPrometheusRecorderCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	wrapped := metrics.Middleware(recorder)(provider.NewEchoProvider("hi"))
	_, err := wrapped.Chat(context.Background(), provider.ChatRequest{Model: "echo-1"})
	require.NoError(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}

func TestNopRecorderDoesNotPanic(t *testing.T) {
	wrapped := metrics.Middleware(metrics.NopRecorder{})(provider.NewEchoProvider("hi"))
	_, err := wrapped.Chat(context.Background(), provider.ChatRequest{})
	require.NoError(t, err)
}
