package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"callbroker/internal/broker"
	"callbroker/internal/config"
	"callbroker/internal/hook"
	"callbroker/internal/hook/handlers"
	"callbroker/internal/llm"
	"callbroker/internal/llm/litellm"
	"callbroker/internal/llm/mock"
	"callbroker/internal/llm/openai"
	"callbroker/internal/logger"
	"callbroker/internal/mcp"
	"callbroker/internal/tool"
	"callbroker/internal/tool/builtin"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configPath string
	toolNames  []string
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "callbroker",
		Short:         "Broker tool calls between a chat model and registered tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default: first of ./callbroker.yaml, ./configs, ~/.config/callbroker, /etc/callbroker)")
	flags.String("provider", "", "Model provider: openai, litellm or mock")
	flags.String("base-url", "", "OpenAI-compatible API base URL")
	flags.String("api-key", "", "API key")
	flags.String("model", "", "Model name")
	flags.Float64("temperature", config.DefaultTemperature, "Sampling temperature")
	flags.Int("max-tokens", 0, "Maximum tokens per answer (0 = provider default)")
	flags.Int("max-rounds", config.DefaultMaxRounds, "Maximum tool call rounds")
	flags.String("model-timeout", config.DefaultModelTimeout, "Timeout of a single model call")
	flags.String("log-level", "info", "Log level: debug, info, tool, answer or error")
	flags.Bool("verbose", false, "Enable verbose output (same as --log-level debug)")
	flags.Bool("no-time", false, "Hide timestamps in log output")
	flags.Bool("no-color", false, "Disable colored output")

	// Flags win over CALLBROKER_* variables, which win over the file.
	v.SetEnvPrefix("CALLBROKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)

	chatCmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the model a question with tools available",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), v, strings.Join(args, " "))
		},
	}
	chatCmd.Flags().StringSliceVar(&toolNames, "tool", nil, "Restrict the conversation to these tools (repeatable)")

	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "List registered tools with their schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTools(cmd.Context(), v, cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(chatCmd, toolsCmd)
	return rootCmd
}

func loadConfig(v *viper.Viper) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadWithDefaults()
	}
	if err != nil {
		return nil, err
	}

	applyOverrides(cfg, v)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyOverrides copies every flag or environment value that was actually
// set onto cfg.
func applyOverrides(cfg *config.Config, v *viper.Viper) {
	if v.IsSet("provider") {
		cfg.Model.Provider = v.GetString("provider")
	}
	if v.IsSet("base-url") {
		cfg.Model.BaseURL = v.GetString("base-url")
	}
	if v.IsSet("api-key") {
		cfg.Model.APIKey = v.GetString("api-key")
	}
	if v.IsSet("model") {
		cfg.Model.Name = v.GetString("model")
	}
	if v.IsSet("temperature") {
		t := v.GetFloat64("temperature")
		cfg.Model.Temperature = &t
	}
	if v.IsSet("max-tokens") {
		cfg.Model.MaxTokens = v.GetInt("max-tokens")
	}
	if v.IsSet("max-rounds") {
		cfg.Broker.MaxRounds = v.GetInt("max-rounds")
	}
	if v.IsSet("model-timeout") {
		cfg.Broker.ModelTimeout = v.GetString("model-timeout")
	}
}

func newLogger(v *viper.Viper) *logger.Logger {
	level := logger.ParseLevel(v.GetString("log-level"))
	if v.GetBool("verbose") {
		level = logger.LevelDebug
	}
	log := logger.NewLogger(os.Stdout, level)
	if v.GetBool("no-color") {
		log.SetColorMode(false)
	}
	if v.GetBool("no-time") {
		log.SetShowTime(false)
	}
	return log
}

func newClient(cfg config.ModelConfig) (llm.Client, error) {
	temperature := config.DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Name,
		}), nil
	case config.ProviderLiteLLM:
		if cfg.APIKey == "" {
			return nil, errors.New("litellm provider requires an API key (model.api_key or CALLBROKER_API_KEY)")
		}
		return litellm.NewClient(litellm.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Name,
			Temperature: temperature,
			MaxTokens:   cfg.MaxTokens,
		}), nil
	case config.ProviderMock:
		return mock.NewClient(demoResponder), nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
}

// setupTools registers the built-in tools and every configured MCP server's
// tools. The returned manager must be closed.
func setupTools(ctx context.Context, cfg *config.Config, log *logger.Logger) (*tool.Registry, *mcp.Manager, error) {
	registry := tool.NewRegistry()
	if err := registry.Register(builtin.NewWeatherTool()); err != nil {
		return nil, nil, err
	}

	manager := mcp.NewManager(registry)
	if len(cfg.MCP.Servers) > 0 {
		log.Debug("Starting %d MCP server(s)", len(cfg.MCP.Servers))
		if err := manager.Initialize(ctx, cfg.MCP); err != nil {
			if !errors.Is(err, mcp.ErrPartialStart) {
				return nil, nil, err
			}
			log.Error("%v", err)
		}
		log.Info("MCP servers running: %v", manager.ListServers())
	}

	return registry, manager, nil
}

func newHookManager(cfg config.HooksConfig) *hook.Manager {
	if len(cfg.ToolConfirm) == 0 {
		return nil
	}
	manager := hook.NewManager()
	manager.Register(handlers.NewToolConfirmHandler(cfg.ToolConfirm...))
	return manager
}

func runChat(ctx context.Context, v *viper.Viper, message string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	log := newLogger(v)

	client, err := newClient(cfg.Model)
	if err != nil {
		return err
	}
	log.Debug("Using %s model %s", client.Provider(), client.Model())

	registry, manager, err := setupTools(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer manager.Close()

	timeout, err := cfg.Broker.Timeout()
	if err != nil {
		return err
	}

	var temperature *float32
	if cfg.Model.Temperature != nil {
		t := float32(*cfg.Model.Temperature)
		temperature = &t
	}

	b := broker.New(client, registry, &broker.Config{
		MaxRounds:    cfg.Broker.MaxRounds,
		ModelTimeout: timeout,
		Temperature:  temperature,
		MaxTokens:    cfg.Model.MaxTokens,
		SystemPrompt: cfg.Broker.SystemPrompt,
	})
	b.SetLogger(log)
	b.SetExecutionMode(tool.ExecutionMode(cfg.Broker.ExecutionMode))
	if hooks := newHookManager(cfg.Hooks); hooks != nil {
		b.SetHookManager(hooks)
	}

	result, err := b.Ask(ctx, message, toolNames...)
	if err != nil {
		return err
	}

	log.Debug("Usage: %d prompt + %d completion tokens", result.Usage.PromptTokens, result.Usage.CompletionTokens)
	if result.Truncated {
		log.Error("Answer was cut off by the token limit")
	}
	return nil
}

func runTools(ctx context.Context, v *viper.Viper, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	registry, manager, err := setupTools(ctx, cfg, newLogger(v))
	if err != nil {
		return err
	}
	defer manager.Close()

	return printDescriptors(w, registry.Descriptors())
}

func printDescriptors(w io.Writer, descriptors []tool.Descriptor) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(descriptors)
}
