package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/martinemde/grokagent/tools"
	"github.com/martinemde/grokagent/unifiedllm"
)

// ClientName and ClientVersion identify this client to MCP servers.
const (
	ClientName    = "grokagent"
	ClientVersion = "1.0.0"
)

const nameSeparator = "__"

// ToolName returns the name a remote tool is exposed under:
// "mcp__<server>__<tool>".
func ToolName(server, tool string) string {
	return tools.RemotePrefix + server + nameSeparator + tool
}

// ParseToolName splits a name produced by ToolName.
func ParseToolName(name string) (server, tool string, ok bool) {
	rest, ok := strings.CutPrefix(name, tools.RemotePrefix)
	if !ok {
		return "", "", false
	}
	server, tool, ok = strings.Cut(rest, nameSeparator)
	if !ok || server == "" || tool == "" {
		return "", "", false
	}
	return server, tool, true
}

var _ tools.RemoteToolServer = (*Manager)(nil)

type remoteTool struct {
	server string
	name   string
	def    unifiedllm.ToolDefinition
}

// Manager keeps one session per configured MCP server and exposes their
// tools through the tools.RemoteToolServer contract.
type Manager struct {
	client *mcpsdk.Client
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*mcpsdk.ClientSession
	tools    map[string]remoteTool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for connection events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager with no servers.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		client:   mcpsdk.NewClient(&mcpsdk.Implementation{Name: ClientName, Version: ClientVersion}, nil),
		logger:   slog.Default(),
		sessions: make(map[string]*mcpsdk.ClientSession),
		tools:    make(map[string]remoteTool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConnectAll connects every configured server. A server that fails is
// logged and skipped; the joined errors are returned after all attempts.
func (m *Manager) ConnectAll(ctx context.Context, servers map[string]ServerConfig) error {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := m.ConnectServer(ctx, name, servers[name]); err != nil {
			m.logger.Warn("mcp server unavailable", "server", name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConnectServer builds the transport described by cfg and connects it.
func (m *Manager) ConnectServer(ctx context.Context, name string, cfg ServerConfig) error {
	transport, err := transportFor(cfg)
	if err != nil {
		return fmt.Errorf("mcp server %s: %w", name, err)
	}
	return m.Connect(ctx, name, transport)
}

// Connect opens a session over transport, lists its tools and registers
// them under name. An existing session with the same name is replaced.
func (m *Manager) Connect(ctx context.Context, name string, transport mcpsdk.Transport) error {
	if name == "" || strings.Contains(name, nameSeparator) {
		return fmt.Errorf("mcp server name %q is invalid", name)
	}
	session, err := m.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcp server %s: connect: %w", name, err)
	}

	var discovered []remoteTool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("mcp server %s: list tools: %w", name, err)
		}
		discovered = append(discovered, remoteTool{
			server: name,
			name:   tool.Name,
			def: unifiedllm.ToolDefinition{
				Name:        ToolName(name, tool.Name),
				Description: tool.Description,
				Parameters:  schemaMap(tool.InputSchema),
			},
		})
	}

	_ = m.Disconnect(name)

	m.mu.Lock()
	m.sessions[name] = session
	for _, t := range discovered {
		m.tools[t.def.Name] = t
	}
	m.mu.Unlock()

	m.logger.Info("mcp server connected", "server", name, "tools", len(discovered))
	return nil
}

// Disconnect closes the named session and forgets its tools.
func (m *Manager) Disconnect(name string) error {
	m.mu.Lock()
	session := m.sessions[name]
	delete(m.sessions, name)
	for key, t := range m.tools {
		if t.server == name {
			delete(m.tools, key)
		}
	}
	m.mu.Unlock()

	if session == nil {
		return nil
	}
	return session.Close()
}

// Servers returns the connected server names, sorted.
func (m *Manager) Servers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToolDefinitions returns every remote tool, sorted by exposed name.
func (m *Manager) ToolDefinitions() []unifiedllm.ToolDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	defs := make([]unifiedllm.ToolDefinition, 0, len(m.tools))
	for _, t := range m.tools {
		defs = append(defs, t.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// CallTool invokes a remote tool by its exposed name.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (*tools.RemoteResult, error) {
	m.mu.RLock()
	t, ok := m.tools[name]
	var session *mcpsdk.ClientSession
	if ok {
		session = m.sessions[t.server]
	}
	m.mu.RUnlock()

	if !ok || session == nil {
		if server, _, parsed := ParseToolName(name); parsed {
			return nil, fmt.Errorf("tool %s not found on server %s", name, server)
		}
		return nil, fmt.Errorf("tool %s not found", name)
	}

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: t.name, Arguments: args})
	if err != nil {
		return nil, err
	}
	return convertResult(res), nil
}

// Close disconnects every server.
func (m *Manager) Close() error {
	var errs []error
	for _, name := range m.Servers() {
		if err := m.Disconnect(name); err != nil {
			errs = append(errs, fmt.Errorf("mcp server %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func convertResult(res *mcpsdk.CallToolResult) *tools.RemoteResult {
	out := &tools.RemoteResult{}
	if res == nil {
		return out
	}
	out.IsError = res.IsError
	for _, c := range res.Content {
		switch c := c.(type) {
		case *mcpsdk.TextContent:
			out.Content = append(out.Content, tools.RemoteContent{Type: tools.RemoteText, Text: c.Text})
		case *mcpsdk.EmbeddedResource:
			var uri string
			if c.Resource != nil {
				uri = c.Resource.URI
			}
			out.Content = append(out.Content, tools.RemoteContent{Type: tools.RemoteResource, URI: uri})
		case *mcpsdk.ResourceLink:
			out.Content = append(out.Content, tools.RemoteContent{Type: tools.RemoteResource, URI: c.URI})
		case *mcpsdk.ImageContent:
			out.Content = append(out.Content, tools.RemoteContent{Type: tools.RemoteText, Text: "[Image: " + c.MIMEType + "]"})
		case *mcpsdk.AudioContent:
			out.Content = append(out.Content, tools.RemoteContent{Type: tools.RemoteText, Text: "[Audio: " + c.MIMEType + "]"})
		}
	}
	return out
}

// schemaMap converts a tool input schema of any shape into a JSON object.
func schemaMap(schema any) map[string]any {
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return map[string]any{"type": "object"}
	}
	return m
}
