// Package openaiprovider wraps github.com/openai/openai-go to satisfy the neutral
// provider.Client interface. A caller-supplied base URL lets this same client serve any
// OpenAI-compatible "custom" provider via the SDK's option.WithBaseURL override.
package openaiprovider

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/provider"
)

// Client adapts the OpenAI Chat Completions API to provider.Client.
type Client struct {
	sdk openai.Client
	defaultModel string
}

var _ provider.Client = (*Client)(nil)

// New builds a Client. An empty baseURL uses the SDK's default OpenAI endpoint.
func New(apiKey, baseURL, defaultModel string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{sdk: openai.NewClient(opts...), defaultModel: defaultModel}
}

// Name implements provider.Client.
func (c *Client) Name() string { return "openai" }

// ListModels implements provider.Client.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	page, err := c.sdk.Models.List(ctx)
	if err != nil {
		return nil, classifyError(err)
	}
	var out []provider.ModelInfo
	for _, m := range page.Data {
		out = append(out, provider.ModelInfo{Name: m.ID, Provider: c.Name()})
	}
	return out, nil
}

// GetModel implements provider.Client.
func (c *Client) GetModel(ctx context.Context, name string) (provider.ModelInfo, error) {
	if name == "" {
		if c.defaultModel == "" {
			return provider.ModelInfo{}, errkind.New(errkind.ModelNotFound, "no default model configured for openai")
		}
		return provider.ModelInfo{Name: c.defaultModel, Provider: c.Name()}, nil
	}
	m, err := c.sdk.Models.Get(ctx, name)
	if err != nil {
		return provider.ModelInfo{}, classifyError(err)
	}
	return provider.ModelInfo{Name: m.ID, Provider: c.Name()}, nil
}

func toChatMessages(msgs []provider.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case provider.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case provider.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default: // user and tool both map onto user turns
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (c *Client) buildParams(req provider.ChatRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: toChatMessages(req.Messages),
	}
	if req.Parameters.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.Parameters.MaxTokens))
	}
	if req.Parameters.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Parameters.Temperature))
	}
	if req.Parameters.TopP > 0 {
		params.TopP = openai.Float(float64(req.Parameters.TopP))
	}
	if len(req.Parameters.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Parameters.Stop}
	}
	return params
}

// Chat implements provider.Client.
func (c *Client) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	params := c.buildParams(req)
	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return provider.ChatResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return provider.ChatResponse{}, errkind.New(errkind.Parse, "empty response from openai")
	}
	return provider.ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: provider.Usage{
			PromptTokens: int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

// ChatStream implements provider.Client, reading the SDK's server-sent-events stream and
// buffering partial chunks the way the wrapped stream's Next()/Current() pair does.
func (c *Client) ChatStream(ctx context.Context, req provider.ChatRequest) (<-chan provider.Chunk, error) {
	params := c.buildParams(req)
	stream := c.sdk.Chat.Completions.NewStreaming(ctx, params)

	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				out <- provider.Chunk{Delta: choice.Delta.Content, Model: chunk.Model}
			}
			if choice.FinishReason != "" {
				reason := choice.FinishReason
				out <- provider.Chunk{Model: chunk.Model, FinishReason: &reason}
			}
		}
		if err := stream.Err(); err != nil {
			reason := "error"
			out <- provider.Chunk{FinishReason: &reason}
		}
	}()
	return out, nil
}

// HealthCheck implements provider.Client.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.sdk.Models.List(ctx)
	return err == nil
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return errkind.Wrap(errkind.Authentication, err, "openai rejected credentials")
		case 404:
			return errkind.Wrap(errkind.ModelNotFound, err, "openai model not found")
		case 429:
			return errkind.Wrap(errkind.RateLimited, err, "openai rate limited")
		default:
			if apiErr.StatusCode >= 500 {
				return errkind.Wrap(errkind.ServiceUnavailable, err, "openai service unavailable")
			}
		}
	}
	return errkind.Wrap(errkind.Network, err, "openai request failed")
}
