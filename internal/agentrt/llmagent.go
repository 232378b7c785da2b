package agentrt

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/provider"
	"github.com/infer-no-dev/devkit/internal/task"
)

// llmAgent is the shared implementation behind the CodeGeneration, Analysis, and
// Debugging agent variants: each differs only in its name, capability tag, and system
// prompt, sharing one LLM-call plumbing layer while differing in prompt construction.
type llmAgent struct {
	registry *provider.Registry
	providerName string
	status atomic.Value
	name string
	capability string
	systemPrompt string
}

func newLLMAgent(name, capability, systemPrompt string, registry *provider.Registry, providerName string) *llmAgent {
	a := &llmAgent{
		name: name,
		capability: capability,
		systemPrompt: systemPrompt,
		registry: registry,
		providerName: providerName,
	}
	a.status.Store(Status{Kind: StatusIdle})
	return a
}

// Name implements Agent.
func (a *llmAgent) Name() string { return a.name }

// Capabilities implements Agent.
func (a *llmAgent) Capabilities() []string { return []string{a.capability} }

// CanHandle implements Agent.
func (a *llmAgent) CanHandle(t task.Task) bool { return t.Kind.Name == a.capability }

// Status implements Agent.
func (a *llmAgent) Status() Status {
	return a.status.Load().(Status) //nolint:forcetypeassert // only this type is ever stored
}

// Cancel implements Agent as a no-op: cancellation for LLM-backed agents is carried by
// the ctx passed to Process, which the registry's chat call already honours.
func (a *llmAgent) Cancel(string) {}

// Process implements Agent by issuing one chat request and wrapping the result.
func (a *llmAgent) Process(ctx context.Context, t task.Task) (task.Result, error) {
	a.status.Store(Status{Kind: StatusBusy, TaskID: t.ID})
	defer a.status.Store(Status{Kind: StatusIdle})

	start := time.Now()
	resp, err := a.registry.Chat(ctx, a.providerName, provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: a.systemPrompt},
			{Role: provider.RoleUser, Content: t.Description},
		},
		Parameters: provider.DefaultParameters(),
	})
	duration := time.Since(start)

	if err != nil {
		a.status.Store(Status{Kind: StatusError, Message: err.Error()})
		kind, ok := errkind.KindOf(err)
		if !ok {
			kind = errkind.Network
		}
		ek := errkind.New(kind, err.Error())
		return task.Result{
			TaskID: t.ID,
			AgentName: a.name,
			Success: false,
			Error: ek,
			Metrics: task.Metrics{Duration: duration},
		}, err
	}

	return task.Result{
		TaskID: t.ID,
		AgentName: a.name,
		Success: true,
		Output: resp.Content,
		Metrics: task.Metrics{
			Duration: duration,
			TokensUsed: resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
		},
	}, nil
}

// CodeGenerationAgent generates source code from a natural-language description.
type CodeGenerationAgent struct{ *llmAgent }

// NewCodeGenerationAgent builds a CodeGenerationAgent.
func NewCodeGenerationAgent(name string, registry *provider.Registry, providerName string) *CodeGenerationAgent {
	return &CodeGenerationAgent{newLLMAgent(name, task.KindCodeGeneration.Name,
		"You write correct, idiomatic code for the user's request. Respond with code only.",
		registry, providerName)}
}

// AnalysisAgent analyses a codebase or description and reports findings.
type AnalysisAgent struct{ *llmAgent }

// NewAnalysisAgent builds an AnalysisAgent.
func NewAnalysisAgent(name string, registry *provider.Registry, providerName string) *AnalysisAgent {
	return &AnalysisAgent{newLLMAgent(name, task.KindAnalysis.Name,
		"You analyse the described code or system and report structured findings.",
		registry, providerName)}
}

// DebuggingAgent investigates a described failure and proposes a fix.
type DebuggingAgent struct{ *llmAgent }

// NewDebuggingAgent builds a DebuggingAgent.
func NewDebuggingAgent(name string, registry *provider.Registry, providerName string) *DebuggingAgent {
	return &DebuggingAgent{newLLMAgent(name, task.KindDebugging.Name,
		"You diagnose the described failure and propose a minimal fix.",
		registry, providerName)}
}
