// Package ollamaprovider implements the local HTTP (Ollama-style) provider. It uses
// github.com/ollama/ollama/api for the typed List/Show calls but sends chat requests with
// its own wire types and reads chat_stream responses with its own line-delimited JSON
// reader, which buffers partial lines across reads and ends the stream on a line that
// fails to decode; the vendored client's single-callback Chat() does not expose that.
package ollamaprovider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollamaapi "github.com/ollama/ollama/api"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/provider"
)

// Client talks to a local Ollama server over its documented HTTP wire format.
type Client struct {
	base *url.URL
	http *http.Client
	sdk *ollamaapi.Client
	defaultModel string
}

var _ provider.Client = (*Client)(nil)

// New builds a Client against baseURL (default "http://localhost:11434" when empty).
func New(baseURL, defaultModel string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		parsed, _ = url.Parse("http://localhost:11434") //nolint:errcheck // fixed literal always parses
	}
	httpClient := &http.Client{Timeout: 2 * time.Minute}
	return &Client{
		base: parsed,
		http: httpClient,
		sdk: ollamaapi.NewClient(parsed, httpClient),
		defaultModel: defaultModel,
	}
}

// Name implements provider.Client.
func (c *Client) Name() string { return "ollama" }

// ListModels implements provider.Client via GET /api/tags.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	resp, err := c.sdk.List(ctx)
	if err != nil {
		return nil, errkind.Wrap(errkind.Network, err, "ollama /api/tags failed")
	}
	out := make([]provider.ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		out = append(out, provider.ModelInfo{Name: m.Name, Provider: c.Name()})
	}
	return out, nil
}

// GetModel implements provider.Client via POST /api/show.
func (c *Client) GetModel(ctx context.Context, name string) (provider.ModelInfo, error) {
	if name == "" {
		name = c.defaultModel
	}
	if name == "" {
		return provider.ModelInfo{}, errkind.New(errkind.ModelNotFound, "no default model configured for ollama")
	}
	if _, err := c.sdk.Show(ctx, &ollamaapi.ShowRequest{Name: name}); err != nil {
		return provider.ModelInfo{}, errkind.Wrap(errkind.ModelNotFound, err, "ollama /api/show failed for "+name)
	}
	return provider.ModelInfo{Name: name, Provider: c.Name()}, nil
}

// wireMessage mirrors the Ollama API's {role, content} shape; tool is mapped to user.
type wireMessage struct {
	Role string `json:"role"`
	Content string `json:"content"`
}

// wireChatRequest mirrors POST /api/chat's body.
type wireChatRequest struct {
	Options map[string]any `json:"options,omitempty"`
	Model string `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream bool `json:"stream"`
}

// wireChatResponse mirrors one line of /api/chat's streamed or single-shot response.
type wireChatResponse struct {
	Model string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func toWireMessages(msgs []provider.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		role := string(m.Role)
		if m.Role == provider.RoleTool {
			role = string(provider.RoleUser)
		}
		out = append(out, wireMessage{Role: role, Content: m.Content})
	}
	return out
}

func (c *Client) buildRequest(req provider.ChatRequest, stream bool) wireChatRequest {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	return wireChatRequest{
		Model: model,
		Messages: toWireMessages(req.Messages),
		Stream: stream,
		Options: map[string]any{
			"temperature": req.Parameters.Temperature,
			"num_predict": req.Parameters.MaxTokens,
		},
	}
}

func (c *Client) doChat(ctx context.Context, body wireChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errkind.Wrap(errkind.Parse, err, "failed to encode ollama chat request")
	}
	u := *c.base
	u.Path = "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, errkind.Wrap(errkind.Network, err, "failed to build ollama request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errkind.Wrap(errkind.Network, err, "ollama /api/chat unreachable")
	}
	if resp.StatusCode >= 500 {
		resp.Body.Close() //nolint:errcheck // best-effort close on error path
		return nil, errkind.New(errkind.ServiceUnavailable, fmt.Sprintf("ollama returned %d", resp.StatusCode))
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close() //nolint:errcheck // best-effort close on error path
		return nil, errkind.New(errkind.ModelNotFound, "ollama model not found")
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close() //nolint:errcheck // best-effort close on error path
		return nil, errkind.New(errkind.Network, fmt.Sprintf("ollama returned %d", resp.StatusCode))
	}
	return resp, nil
}

// Chat implements provider.Client via POST /api/chat with stream=false.
func (c *Client) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	resp, err := c.doChat(ctx, c.buildRequest(req, false))
	if err != nil {
		return provider.ChatResponse{}, err
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close, nothing actionable on failure

	var line wireChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&line); err != nil {
		return provider.ChatResponse{}, errkind.Wrap(errkind.Parse, err, "failed to parse ollama chat response")
	}
	return provider.ChatResponse{Content: line.Message.Content, Model: line.Model}, nil
}

// ChatStream implements provider.Client by reading POST /api/chat's newline-delimited
// JSON response body, buffering a partial trailing line across reads. If a line fails to
// decode, the chunks before it are still delivered and the stream ends with a chunk whose
// FinishReason is "error"; no typed Parse error is returned to the caller.
func (c *Client) ChatStream(ctx context.Context, req provider.ChatRequest) (<-chan provider.Chunk, error) {
	resp, err := c.doChat(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close() //nolint:errcheck // read-side close, nothing actionable on failure

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var parsed wireChatResponse
			if err := json.Unmarshal(line, &parsed); err != nil {
				reason := "error"
				select {
				case out <- provider.Chunk{FinishReason: &reason}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			if parsed.Message.Content != "" {
				select {
				case out <- provider.Chunk{Delta: parsed.Message.Content, Model: parsed.Model}:
				case <-ctx.Done():
					return
				}
			}
			if parsed.Done {
				reason := "stop"
				out <- provider.Chunk{Model: parsed.Model, FinishReason: &reason}
				return
			}
		}
	}()
	return out, nil
}

// HealthCheck implements provider.Client as a cheap GET /api/tags probe.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.sdk.List(ctx)
	return err == nil
}
