package provider

import (
	"context"
	"strings"

	"github.com/infer-no-dev/devkit/internal/errkind"
)

// EchoProvider is a deterministic test double whose reply is its configured Chunks: Chat
// returns them joined, ChatStream delivers them one by one. The request's messages are
// ignored. It is used to verify the streaming/non-streaming parity property.
type EchoProvider struct {
	Chunks []string
	Unhealthy bool
	FailChat error
	FailStream error
	ModelsError error
}

// NewEchoProvider builds an EchoProvider that streams the given chunks in order.
func NewEchoProvider(chunks ...string) *EchoProvider {
	return &EchoProvider{Chunks: chunks}
}

// Name implements Client.
func (e *EchoProvider) Name() string { return "echo" }

// ListModels implements Client.
func (e *EchoProvider) ListModels(context.Context) ([]ModelInfo, error) {
	if e.ModelsError != nil {
		return nil, e.ModelsError
	}
	return []ModelInfo{{Name: "echo-1", Provider: "echo", ContextSz: 4096}}, nil
}

// GetModel implements Client.
func (e *EchoProvider) GetModel(_ context.Context, name string) (ModelInfo, error) {
	if name == "" {
		name = "echo-1"
	}
	return ModelInfo{Name: name, Provider: "echo", ContextSz: 4096}, nil
}

// Chat implements Client, returning the full echoed content in one shot.
func (e *EchoProvider) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	if e.FailChat != nil {
		return ChatResponse{}, e.FailChat
	}
	return ChatResponse{Content: strings.Join(e.Chunks, ""), Model: req.Model}, nil
}

// ChatStream implements Client, delivering one chunk per configured Chunks entry and a
// terminal chunk with FinishReason set.
func (e *EchoProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan Chunk, error) {
	if e.FailStream != nil {
		return nil, e.FailStream
	}
	out := make(chan Chunk, len(e.Chunks)+1)
	go func() {
		defer close(out)
		stop := "stop"
		for _, c := range e.Chunks {
			select {
			case <-ctx.Done():
				return
			case out <- Chunk{Delta: c, Model: req.Model}:
			}
		}
		out <- Chunk{Model: req.Model, FinishReason: &stop}
	}()
	return out, nil
}

// HealthCheck implements Client.
func (e *EchoProvider) HealthCheck(context.Context) bool { return !e.Unhealthy }

// FlakyProvider always fails ListModels to exercise the registry's skip-on-error policy
// while still answering Chat/HealthCheck.
type FlakyProvider struct {
	*EchoProvider
}

// NewFlakyProvider builds a provider whose ListModels always errors.
func NewFlakyProvider() *FlakyProvider {
	return &FlakyProvider{EchoProvider: &EchoProvider{
		ModelsError: errkind.New(errkind.Timeout, "list_models timed out"),
	}}
}

// Name implements Client.
func (f *FlakyProvider) Name() string { return "flaky" }
