package ollamaprovider_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/provider"
	"github.com/infer-no-dev/devkit/internal/provider/ollamaprovider"
)

func ndjsonServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
}

func TestChatStreamConcatenatesDeltasAndTerminates(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"model":"llama3","message":{"content":"hel"},"done":false}`,
		`{"model":"llama3","message":{"content":"lo wo"},"done":false}`,
		`{"model":"llama3","message":{"content":"rld"},"done":false}`,
		`{"model":"llama3","message":{"content":""},"done":true}`,
	})
	defer srv.Close()

	c := ollamaprovider.New(srv.URL, "llama3")
	stream, err := c.ChatStream(context.Background(), provider.ChatRequest{})
	require.NoError(t, err)

	var got string
	var finished bool
	for chunk := range stream {
		got += chunk.Delta
		if chunk.FinishReason != nil {
			require.Equal(t, "stop", *chunk.FinishReason)
			finished = true
		}
	}
	require.Equal(t, "hello world", got)
	require.True(t, finished)
}

func TestChatStreamEndsOnMalformedLineWithoutPanicking(t *testing.T) {
	srv := ndjsonServer(t, []string{
		`{"model":"llama3","message":{"content":"ok"},"done":false}`,
		`not json at all`,
	})
	defer srv.Close()

	c := ollamaprovider.New(srv.URL, "llama3")
	stream, err := c.ChatStream(context.Background(), provider.ChatRequest{})
	require.NoError(t, err)

	var got string
	var finishReason string
	for chunk := range stream {
		got += chunk.Delta
		if chunk.FinishReason != nil {
			finishReason = *chunk.FinishReason
		}
	}
	require.Equal(t, "ok", got, "chunks delivered before the malformed line must still arrive")
	require.Equal(t, "error", finishReason, "a decode failure must still terminate the stream with a chunk")
}
