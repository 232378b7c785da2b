package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	c := config.Default()
	require.NoError(t, c.Validate())
}

func TestValidateRejectsOutOfRangeConcurrency(t *testing.T) {
	c := config.Default()
	c.Agents.MaxConcurrentAgents = 0
	require.Error(t, c.Validate())

	c = config.Default()
	c.Agents.MaxConcurrentAgents = 101
	require.Error(t, c.Validate())
}

func TestValidateRequiresCredentialsForRemoteDefault(t *testing.T) {
	c := config.Default()
	c.AI.DefaultProvider = config.ProviderAnthropic
	require.Error(t, c.Validate())

	c.AI.Providers[config.ProviderAnthropic] = config.ProviderConfig{APIKey: "sk-ant-test"}
	require.NoError(t, c.Validate())
}

func TestValidateRejectsMismatchedDefaultModel(t *testing.T) {
	c := config.Default()
	c.AI.DefaultProvider = config.ProviderOpenAI
	c.AI.DefaultModel = "gpt-4o"
	c.AI.Providers[config.ProviderOpenAI] = config.ProviderConfig{APIKey: "sk-test", DefaultModel: "gpt-4o-mini"}
	require.Error(t, c.Validate())
}
