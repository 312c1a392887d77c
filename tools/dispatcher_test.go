package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/grokagent/unifiedllm"
)

func echoHandler() Handler {
	return HandlerFunc(func(ctx context.Context, args json.RawMessage) Result {
		return OK(string(args))
	})
}

func call(name, args string) unifiedllm.ToolCall {
	return unifiedllm.ToolCall{ID: "call_1", Name: name, Arguments: args}
}

func TestDispatcherRoutesByName(t *testing.T) {
	d := NewDispatcher()
	d.Register(unifiedllm.ToolDefinition{Name: "echo"}, echoHandler())

	res := d.Execute(context.Background(), call("echo", `{"a":1}`))
	assert.True(t, res.Success)
	assert.Equal(t, `{"a":1}`, res.Output)
}

func TestDispatcherUnknownTool(t *testing.T) {
	d := NewDispatcher()
	res := d.Execute(context.Background(), call("nope", "{}"))
	assert.False(t, res.Success)
	assert.Equal(t, "Unknown tool: nope", res.Error)
}

func TestDispatcherMalformedArguments(t *testing.T) {
	d := NewDispatcher()
	d.Register(unifiedllm.ToolDefinition{Name: "echo"}, echoHandler())

	res := d.Execute(context.Background(), call("echo", `{"a":`))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid arguments for echo")
}

func TestDispatcherEmptyArgumentsAreEmptyObject(t *testing.T) {
	d := NewDispatcher()
	d.Register(unifiedllm.ToolDefinition{Name: "echo"}, echoHandler())

	res := d.Execute(context.Background(), call("echo", ""))
	assert.Equal(t, "{}", res.Output)
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := NewDispatcher()
	d.Register(unifiedllm.ToolDefinition{Name: "boom"}, HandlerFunc(func(ctx context.Context, args json.RawMessage) Result {
		panic("kaboom")
	}))

	res := d.Execute(context.Background(), call("boom", "{}"))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "kaboom")
}

func TestDispatcherDefinitionsKeepRegistrationOrder(t *testing.T) {
	d := NewDispatcher(WithRemote(&fakeRemote{defs: []unifiedllm.ToolDefinition{{Name: "mcp__fs__read"}}}))
	d.Register(unifiedllm.ToolDefinition{Name: "b"}, echoHandler())
	d.Register(unifiedllm.ToolDefinition{Name: "a"}, echoHandler())
	d.Register(unifiedllm.ToolDefinition{Name: "b", Description: "replaced"}, echoHandler())

	defs := d.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "b", defs[0].Name)
	assert.Equal(t, "replaced", defs[0].Description)
	assert.Equal(t, "a", defs[1].Name)
	assert.Equal(t, "mcp__fs__read", defs[2].Name)

	d.Unregister("b")
	assert.Equal(t, []string{"a"}, d.Names())
	assert.False(t, d.Has("b"))
}

type fakeRemote struct {
	defs   []unifiedllm.ToolDefinition
	result *RemoteResult
	err    error
	name   string
	args   map[string]any
}

func (f *fakeRemote) ToolDefinitions() []unifiedllm.ToolDefinition { return f.defs }

func (f *fakeRemote) CallTool(ctx context.Context, name string, args map[string]any) (*RemoteResult, error) {
	f.name = name
	f.args = args
	return f.result, f.err
}

func TestDispatcherRemotePassthrough(t *testing.T) {
	remote := &fakeRemote{result: &RemoteResult{Content: []RemoteContent{
		{Type: RemoteText, Text: "line one"},
		{Type: RemoteResource, URI: "file:///tmp/a.txt"},
		{Type: RemoteResource},
	}}}
	d := NewDispatcher(WithRemote(remote))

	res := d.Execute(context.Background(), call("mcp__fs__read", `{"path":"/tmp/a.txt"}`))
	require.True(t, res.Success)
	assert.Equal(t, "line one\n[Resource: file:///tmp/a.txt]\n[Resource: Unknown URI]", res.Output)
	assert.Equal(t, "mcp__fs__read", remote.name)
	assert.Equal(t, map[string]any{"path": "/tmp/a.txt"}, remote.args)
}

func TestDispatcherRemoteErrors(t *testing.T) {
	remote := &fakeRemote{result: &RemoteResult{IsError: true, Content: []RemoteContent{
		{Type: RemoteResource, URI: "x"},
		{Type: RemoteText, Text: "permission denied"},
		{Type: RemoteText, Text: "ignored"},
	}}}
	d := NewDispatcher(WithRemote(remote))

	res := d.Execute(context.Background(), call("mcp__fs__write", "{}"))
	assert.False(t, res.Success)
	assert.Equal(t, "permission denied", res.Error)

	remote.result = &RemoteResult{IsError: true}
	assert.Equal(t, "MCP tool error", d.Execute(context.Background(), call("mcp__fs__write", "{}")).Error)

	remote.result, remote.err = nil, errors.New("server gone")
	res = d.Execute(context.Background(), call("mcp__fs__write", "{}"))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "server gone")
}

func TestDispatcherRemoteEmptyContentIsSuccess(t *testing.T) {
	d := NewDispatcher(WithRemote(&fakeRemote{result: &RemoteResult{}}))
	res := d.Execute(context.Background(), call("mcp__x__y", "{}"))
	assert.True(t, res.Success)
	assert.Equal(t, "Success", res.Output)
}

func TestDispatcherRemoteWithoutServer(t *testing.T) {
	d := NewDispatcher()
	res := d.Execute(context.Background(), call("mcp__x__y", "{}"))
	assert.Equal(t, "Unknown tool: mcp__x__y", res.Error)
}

func TestResultMessageRoundTrip(t *testing.T) {
	c := unifiedllm.ToolCall{ID: "call_7", Name: "bash"}

	tests := []struct {
		name   string
		result Result
		want   unifiedllm.ToolOutput
	}{
		{"output", Result{Success: true, Output: "X"}, unifiedllm.ToolOutput{Type: unifiedllm.OutputText, Value: "X"}},
		{"empty success", Result{Success: true}, unifiedllm.ToolOutput{Type: unifiedllm.OutputText, Value: "Success"}},
		{"empty failure", Result{}, unifiedllm.ToolOutput{Type: unifiedllm.OutputErrorText, Value: "Error"}},
		{"failure", Result{Error: "nope"}, unifiedllm.ToolOutput{Type: unifiedllm.OutputErrorText, Value: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ResultMessage(c, tt.result)
			assert.Equal(t, unifiedllm.RoleTool, msg.Role)
			results := msg.ToolResults()
			require.Len(t, results, 1)
			assert.Equal(t, "call_7", results[0].ToolCallID)
			assert.Equal(t, "bash", results[0].ToolName)
			assert.Equal(t, tt.want, results[0].Output)
		})
	}
}
