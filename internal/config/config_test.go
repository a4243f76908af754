package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "callbroker.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Model.Provider != ProviderOpenAI {
		t.Errorf("Expected openai provider, got %s", cfg.Model.Provider)
	}
	if cfg.Model.BaseURL != DefaultBaseURL || cfg.Model.Name != "qwen2.5:3b" {
		t.Errorf("Unexpected model defaults: %+v", cfg.Model)
	}
	if cfg.Model.Temperature == nil || *cfg.Model.Temperature != 0.5 {
		t.Errorf("Expected temperature 0.5, got %v", cfg.Model.Temperature)
	}
	if cfg.Broker.MaxRounds != 5 {
		t.Errorf("Expected 5 rounds, got %d", cfg.Broker.MaxRounds)
	}
	if d, err := cfg.Broker.Timeout(); err != nil || d != 2*time.Minute {
		t.Errorf("Expected 2m timeout, got %v (%v)", d, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("CALLBROKER_TEST_KEY", "sk-test")
	path := writeConfig(t, `
model:
  provider: litellm
  name: claude-3-5-haiku-latest
  api_key: ${CALLBROKER_TEST_KEY}
  temperature: 0
broker:
  max_rounds: 3
  model_timeout: 30s
  execution_mode: sequential
  system_prompt: Answer briefly.
mcp:
  servers:
    - name: files
      command: mcp-files
      env:
        TOKEN: ${CALLBROKER_TEST_KEY}
hooks:
  tool_confirm: [weatherInfo]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Model.APIKey != "sk-test" {
		t.Errorf("Expected expanded api key, got %q", cfg.Model.APIKey)
	}
	if cfg.Model.BaseURL != "" {
		t.Errorf("litellm should not get the Ollama base URL, got %q", cfg.Model.BaseURL)
	}
	if cfg.Model.Temperature == nil || *cfg.Model.Temperature != 0 {
		t.Errorf("Expected explicit zero temperature to be kept, got %v", cfg.Model.Temperature)
	}
	if d, _ := cfg.Broker.Timeout(); d != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %v", d)
	}
	if cfg.Broker.MaxRounds != 3 || cfg.Broker.ExecutionMode != "sequential" {
		t.Errorf("Unexpected broker config: %+v", cfg.Broker)
	}
	if len(cfg.MCP.Servers) != 1 || cfg.MCP.Servers[0].Transport != "stdio" {
		t.Fatalf("Expected one stdio server, got %+v", cfg.MCP.Servers)
	}
	if cfg.MCP.Servers[0].Env["TOKEN"] != "sk-test" {
		t.Errorf("Expected expanded server env, got %v", cfg.MCP.Servers[0].Env)
	}
	if len(cfg.Hooks.ToolConfirm) != 1 || cfg.Hooks.ToolConfirm[0] != "weatherInfo" {
		t.Errorf("Unexpected hooks: %+v", cfg.Hooks)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"provider":       "model:\n  provider: bard\n",
		"temperature":    "model:\n  temperature: 3\n",
		"timeout":        "broker:\n  model_timeout: soon\n",
		"rounds":         "broker:\n  max_rounds: -1\n",
		"execution mode": "broker:\n  execution_mode: random\n",
		"duplicate":      "mcp:\n  servers:\n    - {name: a, command: x}\n    - {name: a, command: y}\n",
		"server name":    "mcp:\n  servers:\n    - {name: 'a b', command: x}\n",
		"transport":      "mcp:\n  servers:\n    - {name: a, transport: http, command: x}\n",
		"command":        "mcp:\n  servers:\n    - {name: a}\n",
		"yaml":           "model: [\n",
	}

	for name, content := range tests {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected read error, got %v", err)
	}
}

func TestLocations(t *testing.T) {
	locations := Locations()
	if locations[0] != "./callbroker.yaml" {
		t.Errorf("Expected working directory first, got %s", locations[0])
	}
	if last := locations[len(locations)-1]; last != "/etc/callbroker/callbroker.yaml" {
		t.Errorf("Expected system config last, got %s", last)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CB_SET", "value")
	t.Setenv("CB_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{"${CB_SET}", "value"},
		{"$CB_SET/path", "value/path"},
		{"Bearer ${CB_SET}", "Bearer value"},
		{"${CB_UNSET_VAR}", ""},
		{"${CB_UNSET_VAR:-ollama}", "ollama"},
		{"${CB_EMPTY:-fallback}", "fallback"},
		{"${CB_SET:-fallback}", "value"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := ExpandEnv(tt.in); got != tt.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if ExpandEnvMap(nil) != nil {
		t.Error("Expected nil map to stay nil")
	}
}
