package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"callbroker/internal/config"
	"callbroker/internal/tool"
)

// ErrPartialStart is returned by Initialize when some servers started and
// others did not. Tools of the started servers are registered.
var ErrPartialStart = errors.New("some MCP servers failed to start")

// Manager coordinates multiple MCP servers
type Manager struct {
	servers  map[string]*Server
	registry *tool.Registry
	mu       sync.RWMutex
}

// NewManager creates a manager that registers MCP tools into registry.
func NewManager(registry *tool.Registry) *Manager {
	return &Manager{
		servers:  make(map[string]*Server),
		registry: registry,
	}
}

// Initialize starts all enabled servers from cfg concurrently. It fails
// when every server fails; a partial failure returns ErrPartialStart.
func (m *Manager) Initialize(ctx context.Context, cfg config.MCPConfig) error {
	var enabled []config.MCPServerConfig
	names := make(map[string]bool)
	for _, serverCfg := range cfg.Servers {
		if serverCfg.Disabled {
			continue
		}
		if names[serverCfg.Name] {
			return fmt.Errorf("duplicate server name: %s", serverCfg.Name)
		}
		names[serverCfg.Name] = true
		enabled = append(enabled, serverCfg)
	}
	if len(enabled) == 0 {
		return nil
	}

	started := make([]*Server, len(enabled))
	errs := make([]error, len(enabled))

	var wg sync.WaitGroup
	for i, serverCfg := range enabled {
		wg.Add(1)
		go func(i int, cfg config.MCPServerConfig) {
			defer wg.Done()
			server, err := NewServer(ctx, cfg)
			if err != nil {
				errs[i] = fmt.Errorf("server %s: %w", cfg.Name, err)
				return
			}
			started[i] = server
		}(i, serverCfg)
	}
	wg.Wait()

	// Register in config order so tool order does not depend on start timing.
	var failed []error
	loaded := 0
	for i, server := range started {
		if server == nil {
			failed = append(failed, errs[i])
			continue
		}
		if err := m.add(server); err != nil {
			server.Close()
			failed = append(failed, fmt.Errorf("server %s: %w", server.Name(), err))
			continue
		}
		loaded++
	}

	if len(failed) == 0 {
		return nil
	}
	if loaded == 0 {
		return fmt.Errorf("all MCP servers failed to initialize: %w", errors.Join(failed...))
	}
	return fmt.Errorf("%w (loaded %d/%d): %w", ErrPartialStart, loaded, len(enabled), errors.Join(failed...))
}

func (m *Manager) add(server *Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := server.register(m.registry); err != nil {
		return err
	}
	m.servers[server.Name()] = server
	return nil
}

// Close shuts down all MCP servers
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(m.servers))

	for name, server := range m.servers {
		wg.Add(1)
		go func(name string, s *Server) {
			defer wg.Done()
			if err := s.Close(); err != nil {
				errChan <- fmt.Errorf("server %s: %w", name, err)
			}
		}(name, server)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	m.servers = make(map[string]*Server)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing servers: %w", errors.Join(errs...))
	}
	return nil
}

// GetServer returns a server by name
func (m *Manager) GetServer(name string) (*Server, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	server, ok := m.servers[name]
	return server, ok
}

// ListServers returns the running server names, sorted.
func (m *Manager) ListServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) ServerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.servers)
}
