package provider_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/provider"
)

func TestListModelsSkipsFailingProvider(t *testing.T) {
	reg := provider.New("echo")
	reg.Register(provider.NewEchoProvider("hello"))
	reg.Register(provider.NewFlakyProvider())

	models := reg.ListModels(context.Background())
	require.Len(t, models, 1, "flaky provider's error should be skipped, not propagated")
	require.Equal(t, "echo-1", models[0].Name)
}

func TestChatStreamConcatenationMatchesChat(t *testing.T) {
	reg := provider.New("echo")
	reg.Register(provider.NewEchoProvider("hel", "lo wo", "rld"))

	resp, err := reg.Chat(context.Background(), "echo", provider.ChatRequest{})
	require.NoError(t, err)
	require.Equal(t, "hello world", resp.Content)

	stream, err := reg.ChatStream(context.Background(), "echo", provider.ChatRequest{})
	require.NoError(t, err)

	var sb strings.Builder
	var gotFinish bool
	for chunk := range stream {
		sb.WriteString(chunk.Delta)
		if chunk.FinishReason != nil {
			require.Equal(t, "stop", *chunk.FinishReason)
			gotFinish = true
		}
	}
	require.Equal(t, resp.Content, sb.String())
	require.True(t, gotFinish)
}

func TestGetUnknownProviderIsNotFound(t *testing.T) {
	reg := provider.New("echo")
	_, err := reg.Get("nonexistent")
	require.Error(t, err)
}
