// Package geminiprovider wraps google.golang.org/genai to satisfy the neutral
// provider.Client interface, grounded on
// pkg/agent/internal/llmimpl/google client (lazy client construction, Models.GenerateContent).
package geminiprovider

import (
	"context"
	"sync"

	"google.golang.org/genai"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/provider"
)

// Client adapts the Gemini GenerateContent API to provider.Client. The genai.Client is
// constructed lazily on first use because its constructor takes a context.
type Client struct {
	sdk *genai.Client
	apiKey string
	defaultModel string
	mu sync.Mutex
}

var _ provider.Client = (*Client)(nil)

// New builds a Client; the underlying genai.Client is created on first call.
func New(apiKey, defaultModel string) *Client {
	return &Client{apiKey: apiKey, defaultModel: defaultModel}
}

func (c *Client) ensureSDK(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sdk != nil {
		return c.sdk, nil
	}
	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, errkind.Wrap(errkind.Network, err, "failed to construct gemini client")
	}
	c.sdk = sdk
	return sdk, nil
}

// Name implements provider.Client.
func (c *Client) Name() string { return "google" }

// ListModels implements provider.Client.
func (c *Client) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	if c.defaultModel == "" {
		return nil, errkind.New(errkind.ModelNotFound, "no default model configured for google")
	}
	return []provider.ModelInfo{{Name: c.defaultModel, Provider: c.Name(), ContextSz: 1000000}}, nil
}

// GetModel implements provider.Client.
func (c *Client) GetModel(_ context.Context, name string) (provider.ModelInfo, error) {
	if name == "" {
		name = c.defaultModel
	}
	return provider.ModelInfo{Name: name, Provider: c.Name(), ContextSz: 1000000}, nil
}

func toContents(msgs []provider.Message) (contents []*genai.Content, systemInstruction string) {
	for _, m := range msgs {
		switch m.Role {
		case provider.RoleSystem:
			if systemInstruction != "" {
				systemInstruction += "\n\n"
			}
			systemInstruction += m.Content
		case provider.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role: "model",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default: // user and tool both map onto user turns
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	return contents, systemInstruction
}

func (c *Client) buildConfig(req provider.ChatRequest) (*genai.Content, *genai.GenerateContentConfig, []*genai.Content) {
	contents, systemInstruction := toContents(req.Messages)

	temperature := req.Parameters.Temperature
	maxTokens := int32(req.Parameters.MaxTokens) //nolint:gosec // bounded by config validation upstream
	cfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
		MaxOutputTokens: maxTokens,
	}
	var sysContent *genai.Content
	if systemInstruction != "" {
		sysContent = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
		cfg.SystemInstruction = sysContent
	}
	return sysContent, cfg, contents
}

// Chat implements provider.Client.
func (c *Client) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	sdk, err := c.ensureSDK(ctx)
	if err != nil {
		return provider.ChatResponse{}, err
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	_, cfg, contents := c.buildConfig(req)

	result, err := sdk.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return provider.ChatResponse{}, errkind.Wrap(errkind.Network, err, "gemini request failed")
	}
	if result == nil || len(result.Candidates) == 0 {
		return provider.ChatResponse{}, errkind.New(errkind.Parse, "empty response from gemini")
	}

	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		text += part.Text
	}
	usage := provider.Usage{}
	if result.UsageMetadata != nil {
		usage.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return provider.ChatResponse{Content: text, Model: model, Usage: usage}, nil
}

// ChatStream implements provider.Client using the SDK's streaming iterator, grounded on
// the same buffering-across-chunks requirement as the other providers.
func (c *Client) ChatStream(ctx context.Context, req provider.ChatRequest) (<-chan provider.Chunk, error) {
	sdk, err := c.ensureSDK(ctx)
	if err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	_, cfg, contents := c.buildConfig(req)

	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		for chunk, err := range sdk.Models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				reason := "error"
				out <- provider.Chunk{FinishReason: &reason}
				return
			}
			if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
				continue
			}
			var text string
			for _, part := range chunk.Candidates[0].Content.Parts {
				text += part.Text
			}
			if text != "" {
				out <- provider.Chunk{Delta: text, Model: model}
			}
		}
		reason := "stop"
		out <- provider.Chunk{Model: model, FinishReason: &reason}
	}()
	return out, nil
}

// HealthCheck implements provider.Client with a minimal, cheap request.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.Chat(ctx, provider.ChatRequest{
		Model: c.defaultModel,
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "ping"}},
		Parameters: provider.Parameters{MaxTokens: 1},
	})
	return err == nil
}
