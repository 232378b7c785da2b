// Package provider defines the neutral model-provider abstraction and
// the Registry that fans out across configured backends.
package provider

import "context"

// Role is a chat message role. "tool" is mapped onto "user" by providers that have no
// native tool-result role.
type Role string

// Recognised roles.
const (
	RoleSystem Role = "system"
	RoleUser Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool Role = "tool"
)

// Message is one turn of a chat request.
type Message struct {
	Role Role
	Content string
}

// Parameters is the neutral parameter set mapped onto each provider's named options.
// Unknown fields are simply omitted by the translation layer.
type Parameters struct {
	Stop []string
	Temperature float32
	TopP float32
	TopK int
	MaxTokens int
	FrequencyPenalty float32
	PresencePenalty float32
}

// DefaultParameters returns a moderate, provider-agnostic sampling configuration.
func DefaultParameters() Parameters {
	return Parameters{Temperature: 0.7, TopP: 0.9, MaxTokens: 1000}
}

// ChatRequest is the neutral request shape passed to a provider.
type ChatRequest struct {
	Model string
	Messages []Message
	Parameters Parameters
}

// Usage reports provider-side token accounting, when available.
type Usage struct {
	PromptTokens int
	CompletionTokens int
}

// ChatResponse is the neutral response shape returned by a provider.
type ChatResponse struct {
	Content string
	Model string
	Usage Usage
}

// Chunk is one piece of a streamed chat response.
type Chunk struct {
	Delta string
	Model string
	FinishReason *string
}

// ModelInfo describes one model a provider exposes.
type ModelInfo struct {
	Name string
	Provider string
	ContextSz int
}

// Client is the uniform interface every concrete provider implements.
type Client interface {
	Name() string
	ListModels(ctx context.Context) ([]ModelInfo, error)
	GetModel(ctx context.Context, name string) (ModelInfo, error)
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest) (<-chan Chunk, error)
	HealthCheck(ctx context.Context) bool
}
