package agentrt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/agentrt"
	"github.com/infer-no-dev/devkit/internal/errkind"
	"github.com/infer-no-dev/devkit/internal/provider"
	"github.com/infer-no-dev/devkit/internal/task"
)

func registryWithEcho(chunks ...string) *provider.Registry {
	reg := provider.New("echo")
	reg.Register(provider.NewEchoProvider(chunks...))
	return reg
}

func TestCodeGenerationAgentProcessReturnsProviderOutput(t *testing.T) {
	reg := registryWithEcho("func main", "() {}")
	agent := agentrt.NewCodeGenerationAgent("coder", reg, "echo")
	require.True(t, agent.CanHandle(task.New("write a function", task.KindCodeGeneration, task.Normal)))
	require.False(t, agent.CanHandle(task.New("diagnose a panic", task.KindDebugging, task.Normal)))

	result, err := agent.Process(context.Background(), task.New("write a function", task.KindCodeGeneration, task.Normal))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "func main() {}", result.Output)
	require.Equal(t, "coder", result.AgentName)
}

func TestAnalysisAgentProcessWrapsProviderFailure(t *testing.T) {
	reg := provider.New("echo")
	reg.Register(&provider.EchoProvider{FailChat: errkind.New(errkind.RateLimited, "too many requests")})
	agent := agentrt.NewAnalysisAgent("analyst", reg, "echo")

	result, err := agent.Process(context.Background(), task.New("look for issues", task.KindAnalysis, task.Normal))
	require.Error(t, err)
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	require.Equal(t, errkind.RateLimited, result.Error.Kind)
}

func TestDebuggingAgentCapabilityTag(t *testing.T) {
	reg := registryWithEcho("try X")
	agent := agentrt.NewDebuggingAgent("debugger", reg, "echo")
	require.Equal(t, []string{task.KindDebugging.Name}, agent.Capabilities())
}
