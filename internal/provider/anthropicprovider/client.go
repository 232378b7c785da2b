// Package anthropicprovider wraps github.com/anthropics/anthropic-sdk-go to satisfy the
// neutral provider.Client interface, grounded on
// pkg/agent/internal/llmimpl/anthropic client (message role handling, error classification).
package anthropicprovider

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/provider"
)

// Client adapts the Anthropic Messages API to provider.Client.
type Client struct {
	sdk anthropic.Client
	defaultModel string
}

var _ provider.Client = (*Client)(nil)

// New builds a Client. apiKey and defaultModel come from config.ProviderConfig.
func New(apiKey, defaultModel string) *Client {
	return &Client{
		sdk: anthropic.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0)),
		defaultModel: defaultModel,
	}
}

// Name implements provider.Client.
func (c *Client) Name() string { return "anthropic" }

// ListModels implements provider.Client. The Anthropic API models endpoint is not wired
// here; a small static catalogue of the configured default is returned instead.
func (c *Client) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	if c.defaultModel == "" {
		return nil, errkind.New(errkind.ModelNotFound, "no default model configured for anthropic")
	}
	return []provider.ModelInfo{{Name: c.defaultModel, Provider: c.Name(), ContextSz: 200000}}, nil
}

// GetModel implements provider.Client.
func (c *Client) GetModel(_ context.Context, name string) (provider.ModelInfo, error) {
	if name == "" {
		name = c.defaultModel
	}
	return provider.ModelInfo{Name: name, Provider: c.Name(), ContextSz: 200000}, nil
}

// buildParams translates the neutral request into anthropic.MessageNewParams, pulling
// system messages out to the top-level System field the way
// ensureAlternation helper does.
func (c *Client) buildParams(req provider.ChatRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	var systemPrompt string
	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case provider.RoleSystem:
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += m.Content
		case provider.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default: // user and tool both map onto user turns
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := int64(req.Parameters.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	params := anthropic.MessageNewParams{
		Model: anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: messages,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if req.Parameters.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Parameters.Temperature))
	}
	if req.Parameters.TopP > 0 {
		params.TopP = anthropic.Float(float64(req.Parameters.TopP))
	}
	return params
}

// Chat implements provider.Client.
func (c *Client) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	params := c.buildParams(req)
	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return provider.ChatResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return provider.ChatResponse{}, errkind.New(errkind.Parse, "empty response from anthropic")
	}

	var text string
	for _, block := range resp.Content {
		if tb := block.AsText(); tb.Text != "" {
			text += tb.Text
		}
	}

	return provider.ChatResponse{
		Content: text,
		Model: string(params.Model),
		Usage: provider.Usage{
			PromptTokens: int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// ChatStream implements provider.Client by reading the SDK's server-sent-events stream
// and translating each content-delta event into a Chunk, buffering partial
// events the same way requires of the local HTTP provider's line reader.
func (c *Client) ChatStream(ctx context.Context, req provider.ChatRequest) (<-chan provider.Chunk, error) {
	params := c.buildParams(req)
	stream := c.sdk.Messages.NewStreaming(ctx, params)

	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		for stream.Next() {
			event := stream.Current()
			if delta := event.Delta.Text; delta != "" {
				out <- provider.Chunk{Delta: delta, Model: string(params.Model)}
			}
			if event.Type == "message_stop" {
				reason := "stop"
				out <- provider.Chunk{Model: string(params.Model), FinishReason: &reason}
			}
		}
		if err := stream.Err(); err != nil {
			reason := "error"
			out <- provider.Chunk{FinishReason: &reason}
		}
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

func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return errkind.Wrap(errkind.Authentication, err, "anthropic rejected credentials")
		case 404:
			return errkind.Wrap(errkind.ModelNotFound, err, "anthropic model not found")
		case 429:
			return errkind.Wrap(errkind.RateLimited, err, "anthropic rate limited")
		default:
			if apiErr.StatusCode >= 500 {
				return errkind.Wrap(errkind.ServiceUnavailable, err, "anthropic service unavailable")
			}
		}
	}
	return errkind.Wrap(errkind.Network, err, "anthropic request failed")
}
