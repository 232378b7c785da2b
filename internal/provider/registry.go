package provider

import (
	"context"
	"sync"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/logx"
)

// Registry maintains typed handles to configured model backends and exposes a uniform set
// of operations over them: list_models, chat, chat_stream, health_check.
type Registry struct {
	clients map[string]Client
	logger *logx.Logger
	mu sync.RWMutex
	defaultP string
}

// New builds an empty Registry. Use Register to add providers; a registry is usable with
// any non-empty subset of configured providers.
func New(defaultProvider string) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		logger: logx.New("provider"),
		defaultP: defaultProvider,
	}
}

// Register adds a provider client under its own Name(). A constructor failure upstream of
// Register (e.g. building an SDK client) is the caller's concern and must be logged and
// skipped there, not here — the registry only ever holds working clients.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Name()] = c
}

// Get returns the named provider, or the configured default when name is empty.
func (r *Registry) Get(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultP
	}
	c, ok := r.clients[name]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "no such provider: "+name)
	}
	return c, nil
}

// ListModels unions list_models() over every configured provider. A per-provider failure
// is logged and skipped, never propagated.
func (r *Registry) ListModels(ctx context.Context) []ModelInfo {
	r.mu.RLock()
	clients := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	var out []ModelInfo
	for _, c := range clients {
		models, err := c.ListModels(ctx)
		if err != nil {
			r.logger.Warn("list_models failed for provider %s: %v", c.Name(), err)
			continue
		}
		out = append(out, models...)
	}
	return out
}

// Chat dispatches a chat-completion request to the named provider (or the default),
// filling req.Model with the provider's configured default when empty. Provider errors
// propagate with their typed Kind.
func (r *Registry) Chat(ctx context.Context, providerName string, req ChatRequest) (ChatResponse, error) {
	c, err := r.Get(providerName)
	if err != nil {
		return ChatResponse{}, err
	}
	if req.Model == "" {
		req.Model = defaultModelFor(ctx, c)
	}
	return c.Chat(ctx, req)
}

// ChatStream dispatches a streaming chat-completion request. See Chat for model default
// filling and error propagation.
func (r *Registry) ChatStream(ctx context.Context, providerName string, req ChatRequest) (<-chan Chunk, error) {
	c, err := r.Get(providerName)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = defaultModelFor(ctx, c)
	}
	return c.ChatStream(ctx, req)
}

// HealthCheck probes the named provider (or the default) for liveness.
func (r *Registry) HealthCheck(ctx context.Context, providerName string) bool {
	c, err := r.Get(providerName)
	if err != nil {
		return false
	}
	return c.HealthCheck(ctx)
}

// defaultModelFor asks the provider for a reasonable default model by listing its models
// and taking the first; providers with a fixed single model (most remote APIs) return it
// directly via GetModel("").
func defaultModelFor(ctx context.Context, c Client) string {
	if m, err := c.GetModel(ctx, ""); err == nil && m.Name != "" {
		return m.Name
	}
	models, err := c.ListModels(ctx)
	if err != nil || len(models) == 0 {
		return ""
	}
	return models[0].Name
}
