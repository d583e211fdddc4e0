package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kestrelrun/agentkernel/kernel/agent"
	"github.com/kestrelrun/agentkernel/kernel/mcp"
	"github.com/kestrelrun/agentkernel/kernel/permission"
	"github.com/kestrelrun/agentkernel/kernel/provider"
)

// fileConfig is the on-disk shape of the demo CLI's YAML config: provider
// aliases, MCP servers, the default agent policy, and where to persist
// sessions.
type fileConfig struct {
	WorkingDir   string                 `yaml:"working_dir"`
	DefaultModel string                 `yaml:"default_model"`
	SessionStore string                 `yaml:"session_store"` // "memory", "file", or "sqlite"
	SessionPath  string                 `yaml:"session_path"`
	Agent        fileAgentConfig        `yaml:"agent"`
	Providers    []fileProviderConfig   `yaml:"providers"`
	MCPServers   []fileMCPServerConfig  `yaml:"mcp_servers"`
}

type fileAgentConfig struct {
	Type              string            `yaml:"type"`
	MaxTokens         int               `yaml:"max_tokens"`
	DefaultPermission string            `yaml:"default_permission"`
	AllowedTools      []string          `yaml:"allowed_tools"`
	DeniedTools       []string          `yaml:"denied_tools"`
	Permissions       map[string]string `yaml:"permissions"`
	SystemPrompt      string            `yaml:"system_prompt"`
}

type fileProviderConfig struct {
	Alias         string `yaml:"alias"`
	Family        string `yaml:"family"` // "anthropic" or "openai"
	BaseURL       string `yaml:"base_url"`
	APIKeyEnv     string `yaml:"api_key_env"`
	Model         string `yaml:"model"`
	ContextWindow int    `yaml:"context_window_tokens"`
	MaxOutput     int    `yaml:"max_output_tokens"`
}

type fileMCPServerConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

func loadFileConfig(path string) (fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("agentcli: read config %q: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("agentcli: parse config %q: %w", path, err)
	}
	if len(cfg.Providers) == 0 {
		return fileConfig{}, fmt.Errorf("agentcli: config %q declares no providers", path)
	}
	return cfg, nil
}

func (c fileConfig) providerFactory() (*provider.Factory, error) {
	f := provider.NewFactory()
	for _, p := range c.Providers {
		alias := strings.TrimSpace(strings.ToLower(p.Alias))
		if alias == "" {
			continue
		}
		apiKey := ""
		if p.APIKeyEnv != "" {
			apiKey = os.Getenv(p.APIKeyEnv)
		}
		models := []provider.ModelInfo{}
		if p.Model != "" {
			models = append(models, provider.ModelInfo{
				ID:                  p.Model,
				DisplayName:         p.Model,
				ContextWindowTokens: p.ContextWindow,
			})
		}
		err := f.Register(provider.Config{
			Alias:   alias,
			Family:  provider.Family(strings.ToLower(p.Family)),
			BaseURL: p.BaseURL,
			Auth:    provider.Auth{Type: provider.AuthAPIKey, APIKey: apiKey},
			Models:  models,
		})
		if err != nil {
			return nil, fmt.Errorf("agentcli: register provider %q: %w", alias, err)
		}
	}
	return f, nil
}

func (c fileConfig) agentConfig() agent.Config {
	cfg := agent.DefaultConfig()
	if c.Agent.Type != "" {
		cfg.Type = agent.Type(c.Agent.Type)
	}
	if c.Agent.MaxTokens > 0 {
		cfg.MaxTokens = c.Agent.MaxTokens
	}
	if c.Agent.DefaultPermission != "" {
		cfg.DefaultPermission = permission.Permission(c.Agent.DefaultPermission)
	}
	cfg.AllowedTools = c.Agent.AllowedTools
	cfg.DeniedTools = c.Agent.DeniedTools
	if len(c.Agent.Permissions) > 0 {
		cfg.Permissions = make(map[string]permission.Permission, len(c.Agent.Permissions))
		for id, perm := range c.Agent.Permissions {
			cfg.Permissions[id] = permission.Permission(perm)
		}
	}
	cfg.SystemPrompt = c.Agent.SystemPrompt
	return cfg
}

func (c fileConfig) mcpServerSpecs() []mcp.ServerSpec {
	specs := make([]mcp.ServerSpec, 0, len(c.MCPServers))
	for _, s := range c.MCPServers {
		specs = append(specs, mcp.ServerSpec{
			Name:    s.Name,
			Command: s.Command,
			Args:    s.Args,
			Env:     s.Env,
			URL:     s.URL,
			Headers: s.Headers,
		})
	}
	return specs
}

// defaultModelFor resolves which registered alias the session should use
// absent an explicit selection: the config's default_model, or the first
// declared provider alias.
func (c fileConfig) defaultModelFor() string {
	if strings.TrimSpace(c.DefaultModel) != "" {
		return strings.ToLower(strings.TrimSpace(c.DefaultModel))
	}
	for _, p := range c.Providers {
		alias := strings.TrimSpace(strings.ToLower(p.Alias))
		if alias != "" {
			return alias
		}
	}
	return ""
}

func (c fileConfig) requestTimeout() time.Duration {
	return 120 * time.Second
}
