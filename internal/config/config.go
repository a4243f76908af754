package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI  = "openai"
	ProviderLiteLLM = "litellm"
	ProviderMock    = "mock"

	DefaultBaseURL      = "http://localhost:11434/v1"
	DefaultModel        = "qwen2.5:3b"
	DefaultTemperature  = 0.5
	DefaultMaxRounds    = 5
	DefaultModelTimeout = "2m"
)

// Config represents the complete callbroker configuration
type Config struct {
	Model  ModelConfig  `yaml:"model"`
	Broker BrokerConfig `yaml:"broker"`
	MCP    MCPConfig    `yaml:"mcp"`
	Hooks  HooksConfig  `yaml:"hooks"`
}

// ModelConfig selects and tunes the chat model
type ModelConfig struct {
	Provider    string   `yaml:"provider"` // "openai", "litellm" or "mock"
	BaseURL     string   `yaml:"base_url"` // OpenAI-compatible endpoint, ${VAR} supported
	APIKey      string   `yaml:"api_key"`  // ${VAR} supported
	Name        string   `yaml:"name"`
	Temperature *float64 `yaml:"temperature"` // nil means default; 0 is a valid setting
	MaxTokens   int      `yaml:"max_tokens"`
}

// BrokerConfig bounds the conversation loop
type BrokerConfig struct {
	MaxRounds     int    `yaml:"max_rounds"`
	ModelTimeout  string `yaml:"model_timeout"`  // Go duration, e.g. "90s"
	ExecutionMode string `yaml:"execution_mode"` // "parallel" or "sequential"
	SystemPrompt  string `yaml:"system_prompt"`
}

// HooksConfig contains hook-related settings
type HooksConfig struct {
	// ToolConfirm enables user confirmation before specified tools
	ToolConfirm []string `yaml:"tool_confirm"`
}

// MCPConfig contains MCP-specific settings
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig defines a single MCP server
type MCPServerConfig struct {
	Name      string            `yaml:"name"`      // Unique server identifier, prefixes its tool names
	Transport string            `yaml:"transport"` // "stdio" only
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"` // ${VAR} supported
	Disabled  bool              `yaml:"disabled"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads and parses the YAML config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.ApplyDefaults()
	cfg.expandEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Locations lists the files LoadWithDefaults tries, in order.
func Locations() []string {
	locations := []string{
		"./callbroker.yaml",
		"./configs/callbroker.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "callbroker", "callbroker.yaml"))
	}

	return append(locations, "/etc/callbroker/callbroker.yaml")
}

// LoadWithDefaults loads the first config file found in Locations.
// No file at all yields Default().
func LoadWithDefaults() (*Config, error) {
	for _, loc := range Locations() {
		if _, err := os.Stat(loc); err == nil {
			return Load(loc)
		}
	}

	return Default(), nil
}

// ApplyDefaults fills every unset field. It is safe to call again after
// fields change, e.g. once command line overrides are applied.
func (c *Config) ApplyDefaults() {
	if c.Model.Provider == "" {
		c.Model.Provider = ProviderOpenAI
	}
	if c.Model.BaseURL == "" && c.Model.Provider == ProviderOpenAI {
		c.Model.BaseURL = DefaultBaseURL
	}
	if c.Model.Name == "" {
		c.Model.Name = DefaultModel
	}
	if c.Model.Temperature == nil {
		t := DefaultTemperature
		c.Model.Temperature = &t
	}
	if c.Broker.MaxRounds == 0 {
		c.Broker.MaxRounds = DefaultMaxRounds
	}
	if c.Broker.ModelTimeout == "" {
		c.Broker.ModelTimeout = DefaultModelTimeout
	}
	if c.Broker.ExecutionMode == "" {
		c.Broker.ExecutionMode = "parallel"
	}
	for i := range c.MCP.Servers {
		if c.MCP.Servers[i].Transport == "" {
			c.MCP.Servers[i].Transport = "stdio"
		}
	}
}

func (c *Config) expandEnv() {
	c.Model.APIKey = ExpandEnv(c.Model.APIKey)
	c.Model.BaseURL = ExpandEnv(c.Model.BaseURL)
	for i := range c.MCP.Servers {
		c.MCP.Servers[i].Env = ExpandEnvMap(c.MCP.Servers[i].Env)
	}
}

// Timeout parses the model timeout.
func (b BrokerConfig) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(b.ModelTimeout)
	if err != nil {
		return 0, fmt.Errorf("model_timeout: %w", err)
	}
	return d, nil
}

// Validate checks config correctness
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderOpenAI, ProviderLiteLLM, ProviderMock:
	default:
		return fmt.Errorf("unsupported model provider: %s", c.Model.Provider)
	}

	if c.Model.Temperature != nil && (*c.Model.Temperature < 0 || *c.Model.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", *c.Model.Temperature)
	}
	if c.Model.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative")
	}

	if c.Broker.MaxRounds < 1 {
		return fmt.Errorf("max_rounds must be at least 1, got %d", c.Broker.MaxRounds)
	}
	if d, err := c.Broker.Timeout(); err != nil {
		return err
	} else if d <= 0 {
		return fmt.Errorf("model_timeout must be positive")
	}
	if m := c.Broker.ExecutionMode; m != "parallel" && m != "sequential" {
		return fmt.Errorf("unsupported execution mode: %s", m)
	}

	// Check for duplicate server names
	names := make(map[string]bool)
	for i, server := range c.MCP.Servers {
		if server.Name == "" {
			return fmt.Errorf("server #%d: name cannot be empty", i+1)
		}

		if names[server.Name] {
			return fmt.Errorf("duplicate server name: %s", server.Name)
		}
		names[server.Name] = true

		if err := server.Validate(); err != nil {
			return fmt.Errorf("server %s: %w", server.Name, err)
		}
	}

	return nil
}

// Validate checks a single server config
func (s *MCPServerConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	// Tool names are prefixed with the server name and must stay within ^[a-zA-Z0-9_-]+$
	for _, ch := range s.Name {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-') {
			return fmt.Errorf("server name '%s' contains invalid character '%c' (only alphanumeric, underscore, and hyphen allowed)", s.Name, ch)
		}
	}

	if s.Transport == "" {
		return fmt.Errorf("transport is required")
	}
	if s.Transport != "stdio" {
		return fmt.Errorf("unsupported transport: %s (only 'stdio' is supported)", s.Transport)
	}

	if s.Command == "" {
		return fmt.Errorf("command is required")
	}

	return nil
}
