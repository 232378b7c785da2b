// Package config defines the Go struct surface the core consumes. Parsing a
// TOML/JSON file into this struct is left to the caller; tags use yaml.v3
// (on-disk format) so an external loader can decode straight into it.
package config

import (
	"fmt"
	"time"

	"github.com/infer-no-dev/devkit/internal/errkind"
)

// ProviderName identifies a configured model provider.
type ProviderName string

const (
	// ProviderOllama is the local HTTP (Ollama-style) provider.
	ProviderOllama ProviderName = "ollama"
	// ProviderOpenAI is the OpenAI-family remote API provider.
	ProviderOpenAI ProviderName = "openai"
	// ProviderAnthropic is the Anthropic-family remote API provider.
	ProviderAnthropic ProviderName = "anthropic"
	// ProviderGoogle is the Gemini remote API provider.
	ProviderGoogle ProviderName = "google"
)

// ProviderConfig holds the per-provider options.
type ProviderConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
	Organization string `yaml:"organization,omitempty"`
	DefaultModel string `yaml:"default_model,omitempty"`
	TimeoutSecs int `yaml:"timeout_seconds"`
	MaxRetries int `yaml:"max_retries"`
	Timeout time.Duration `yaml:"-"`
}

// AIConfig is the `ai.*` section.
type AIConfig struct {
	Providers map[ProviderName]ProviderConfig `yaml:"providers"`
	DefaultProvider ProviderName `yaml:"default_provider"`
	DefaultModel string `yaml:"default_model"`
	ContextWindowSize int `yaml:"context_window_size"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens int `yaml:"max_tokens"`
}

// AgentsConfig is the `agents.*` section.
type AgentsConfig struct {
	DefaultPriority string `yaml:"default_priority"`
	MaxConcurrentAgents int `yaml:"max_concurrent_agents"`
	AgentTimeoutSeconds int `yaml:"agent_timeout_seconds"`
}

// SessionConfig is the `session.*` section.
type SessionConfig struct {
	MaxActiveSessions int `yaml:"max_active_sessions"`
	AutoSaveIntervalMinutes int `yaml:"auto_save_interval_minutes"`
	CheckpointIntervalMin int `yaml:"checkpoint_interval_minutes"`
	MaxSnapshotsPerSession int `yaml:"max_snapshots_per_session"`
	MaxBackups int `yaml:"max_backups"`
}

// QualityGatesConfig is the `codegen.quality_gates.*` section.
type QualityGatesConfig struct {
	CustomCommands map[string]string `yaml:"custom_commands"`
	Enabled []string `yaml:"enabled"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
	RequireAll bool `yaml:"require_all"`
	Parallel bool `yaml:"parallel"`
}

// CodegenConfig is the `codegen.*` section.
type CodegenConfig struct {
	QualityGates QualityGatesConfig `yaml:"quality_gates"`
}

// Config is the full pre-parsed configuration value the core accepts.
type Config struct {
	AI AIConfig `yaml:"ai"`
	Agents AgentsConfig `yaml:"agents"`
	Session SessionConfig `yaml:"session"`
	Codegen CodegenConfig `yaml:"codegen"`
}

// Default returns a Config populated with sensible out-of-the-box values for every
// section.
func Default() Config {
	return Config{
		AI: AIConfig{
			DefaultProvider: ProviderOllama,
			Temperature: 0.7,
			MaxTokens: 1000,
			ContextWindowSize: 8192,
			Providers: map[ProviderName]ProviderConfig{},
		},
		Agents: AgentsConfig{
			MaxConcurrentAgents: 10,
			AgentTimeoutSeconds: 300,
			DefaultPriority: "normal",
		},
		Session: SessionConfig{
			MaxActiveSessions: 100,
			AutoSaveIntervalMinutes: 5,
			CheckpointIntervalMin: 15,
			MaxSnapshotsPerSession: 50,
			MaxBackups: 20,
		},
		Codegen: CodegenConfig{
			QualityGates: QualityGatesConfig{
				Enabled: []string{"format", "lint", "compile", "test"},
				RequireAll: true,
				TimeoutSeconds: 120,
			},
		},
	}
}

// Validate enforces the configuration's range and cross-field rules: agent concurrency
// and timeout bounds, and that a remote default provider carries credentials.
func (c *Config) Validate() error {
	if c.Agents.MaxConcurrentAgents < 1 || c.Agents.MaxConcurrentAgents > 100 {
		return errkind.New(errkind.Config, "agents.max_concurrent_agents must be in [1,100]")
	}
	if c.Agents.AgentTimeoutSeconds < 1 || c.Agents.AgentTimeoutSeconds > 3600 {
		return errkind.New(errkind.Config, "agents.agent_timeout_seconds must be in [1,3600]")
	}

	remote := map[ProviderName]bool{ProviderOpenAI: true, ProviderAnthropic: true, ProviderGoogle: true}
	if remote[c.AI.DefaultProvider] {
		pc, ok := c.AI.Providers[c.AI.DefaultProvider]
		if !ok || pc.APIKey == "" {
			return errkind.New(errkind.Config,
				fmt.Sprintf("default provider %s requires credentials", c.AI.DefaultProvider))
		}
		if c.AI.DefaultModel != "" && pc.DefaultModel != "" && c.AI.DefaultModel != pc.DefaultModel {
			return errkind.New(errkind.Config, "ai.default_model must match the selected provider's default_model")
		}
	}
	return nil
}
