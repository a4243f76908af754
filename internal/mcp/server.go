package mcp

import (
	"context"
	"fmt"

	"callbroker/internal/config"
	"callbroker/internal/tool"
)

// Server is a running MCP server together with the tools it exposes.
type Server struct {
	config config.MCPServerConfig
	client *Client
	tools  []*RemoteTool
}

// NewServer starts the configured server and wraps its tools.
func NewServer(ctx context.Context, cfg config.MCPServerConfig) (*Server, error) {
	client, err := NewClient(ctx, cfg.Name, cfg.Command, cfg.Args, cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	return newServer(cfg, client), nil
}

func newServer(cfg config.MCPServerConfig, client *Client) *Server {
	s := &Server{config: cfg, client: client}
	for _, t := range client.Tools() {
		s.tools = append(s.tools, NewRemoteTool(client, t))
	}
	return s
}

func (s *Server) Name() string {
	return s.config.Name
}

func (s *Server) Tools() []*RemoteTool {
	return s.tools
}

// register adds every tool of the server to registry, or none of them
// when any name is already taken.
func (s *Server) register(registry *tool.Registry) error {
	tools := make([]tool.Tool, len(s.tools))
	for i, t := range s.tools {
		tools[i] = t
	}
	if err := registry.RegisterAll(tools...); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	return nil
}

func (s *Server) Close() error {
	return s.client.Close()
}
