package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/martinemde/grokagent/unifiedllm"
)

// RemotePrefix marks tool names served by a remote tool server.
const RemotePrefix = "mcp__"

// Handler executes one tool call. Handlers report failure through the
// returned Result; they do not return errors.
type Handler interface {
	Execute(ctx context.Context, args json.RawMessage) Result
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, args json.RawMessage) Result

func (f HandlerFunc) Execute(ctx context.Context, args json.RawMessage) Result {
	return f(ctx, args)
}

// DirectoryAware is implemented by collaborators that resolve paths against
// a working directory they track themselves.
type DirectoryAware interface {
	SetWorkingDirectory(dir string)
}

// DirectorySource reports the current working directory of a collaborator
// that can change it, such as a shell.
type DirectorySource interface {
	WorkingDirectory() string
}

type registeredTool struct {
	def     unifiedllm.ToolDefinition
	handler Handler
}

type dirSync struct {
	source  DirectorySource
	targets []DirectoryAware
}

// Dispatcher routes tool calls by name to registered handlers, or to a
// remote tool server for names carrying RemotePrefix. Execute never panics
// and never returns an error: every failure becomes a failed Result.
type Dispatcher struct {
	mu     sync.RWMutex
	tools  map[string]*registeredTool
	order  []string
	remote RemoteToolServer
	syncs  map[string]dirSync
	logger *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRemote routes RemotePrefix names to server.
func WithRemote(server RemoteToolServer) DispatcherOption {
	return func(d *Dispatcher) {
		d.remote = server
	}
}

// WithDispatcherLogger sets the logger used for tool failures.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		tools:  make(map[string]*registeredTool),
		syncs:  make(map[string]dirSync),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds or replaces a tool.
func (d *Dispatcher) Register(def unifiedllm.ToolDefinition, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tools[def.Name]; !ok {
		d.order = append(d.order, def.Name)
	}
	d.tools[def.Name] = &registeredTool{def: def, handler: handler}
}

// Unregister removes a tool.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tools[name]; !ok {
		return
	}
	delete(d.tools, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// SyncDirectoryAfter makes every completed call to tool broadcast the
// source's working directory to targets.
func (d *Dispatcher) SyncDirectoryAfter(tool string, source DirectorySource, targets ...DirectoryAware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncs[tool] = dirSync{source: source, targets: targets}
}

// Has reports whether name is a registered local tool.
func (d *Dispatcher) Has(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.tools[name]
	return ok
}

// Names returns the registered local tool names in registration order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.order))
	copy(names, d.order)
	return names
}

// Definitions returns the declarations of every local tool in registration
// order, followed by the remote server's tools.
func (d *Dispatcher) Definitions() []unifiedllm.ToolDefinition {
	d.mu.RLock()
	defs := make([]unifiedllm.ToolDefinition, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.tools[name].def)
	}
	remote := d.remote
	d.mu.RUnlock()

	if remote != nil {
		defs = append(defs, remote.ToolDefinitions()...)
	}
	return defs
}

// Execute runs call and returns its result.
func (d *Dispatcher) Execute(ctx context.Context, call unifiedllm.ToolCall) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Fail("Tool execution error: %v", r)
		}
		if !result.Success {
			d.logger.Debug("tool failed", "tool", call.Name, "id", call.ID, "error", result.Error)
		}
	}()

	if strings.HasPrefix(call.Name, RemotePrefix) {
		return d.executeRemote(ctx, call)
	}

	d.mu.RLock()
	tool := d.tools[call.Name]
	ds, hasSync := d.syncs[call.Name]
	d.mu.RUnlock()

	if tool == nil {
		return Fail("Unknown tool: %s", call.Name)
	}

	args, err := parseArguments(call.Arguments)
	if err != nil {
		return Fail("Tool execution error: invalid arguments for %s: %v", call.Name, err)
	}

	result = tool.handler.Execute(ctx, args)

	if hasSync {
		dir := ds.source.WorkingDirectory()
		for _, target := range ds.targets {
			target.SetWorkingDirectory(dir)
		}
	}
	return result
}

func (d *Dispatcher) executeRemote(ctx context.Context, call unifiedllm.ToolCall) Result {
	d.mu.RLock()
	remote := d.remote
	d.mu.RUnlock()
	if remote == nil {
		return Fail("Unknown tool: %s", call.Name)
	}

	raw, err := parseArguments(call.Arguments)
	if err != nil {
		return Fail("Tool execution error: invalid arguments for %s: %v", call.Name, err)
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return Fail("Tool execution error: arguments for %s must be an object", call.Name)
	}

	res, err := remote.CallTool(ctx, call.Name, args)
	if err != nil {
		return Fail("MCP tool execution error: %v", err)
	}
	return res.Result()
}

// parseArguments checks that raw is a JSON document. Empty input is
// treated as an empty object.
func parseArguments(raw string) (json.RawMessage, error) {
	if strings.TrimSpace(raw) == "" {
		return json.RawMessage("{}"), nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// decodeArgs unmarshals tool arguments into a typed struct.
func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var args T
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}
