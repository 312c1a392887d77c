package mcp

import (
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportFor(t *testing.T) {
	tests := []struct {
		name     string
		cfg      ServerConfig
		endpoint string
		sse      bool
		stream   bool
		command  []string
	}{
		{name: "plain url", cfg: ServerConfig{URL: "https://mcp.example.com/sse"}, sse: true, endpoint: "https://mcp.example.com/sse"},
		{name: "sse scheme", cfg: ServerConfig{Transport: "sse://mcp.example.com/events"}, sse: true, endpoint: "https://mcp.example.com/events"},
		{name: "http+sse", cfg: ServerConfig{Transport: "http+sse://localhost:8080/sse"}, sse: true, endpoint: "http://localhost:8080/sse"},
		{name: "https+stream", cfg: ServerConfig{Transport: "https+stream://api.example.com/mcp"}, stream: true, endpoint: "https://api.example.com/mcp"},
		{name: "stdio scheme", cfg: ServerConfig{Transport: "stdio://npx -y server-fs /tmp"}, command: []string{"npx", "-y", "server-fs", "/tmp"}},
		{name: "bare command spec", cfg: ServerConfig{Transport: "mcp-server --flag"}, command: []string{"mcp-server", "--flag"}},
		{name: "command and args", cfg: ServerConfig{Command: "node", Args: []string{"server.js"}}, command: []string{"node", "server.js"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := transportFor(tt.cfg)
			require.NoError(t, err)
			switch v := tr.(type) {
			case *mcpsdk.SSEClientTransport:
				assert.True(t, tt.sse)
				assert.Equal(t, tt.endpoint, v.Endpoint)
			case *mcpsdk.StreamableClientTransport:
				assert.True(t, tt.stream)
				assert.Equal(t, tt.endpoint, v.Endpoint)
			case *mcpsdk.CommandTransport:
				require.NotNil(t, tt.command)
				assert.Equal(t, tt.command, v.Command.Args)
			default:
				t.Fatalf("unexpected transport %T", tr)
			}
		})
	}
}

func TestTransportForCommandEnv(t *testing.T) {
	tr, err := transportFor(ServerConfig{Command: "server", Env: map[string]string{"TOKEN": "abc"}})
	require.NoError(t, err)
	assert.Contains(t, tr.(*mcpsdk.CommandTransport).Command.Env, "TOKEN=abc")
}

func TestCommandTransportWithholdsCredentials(t *testing.T) {
	t.Setenv("GROK_API_KEY", "xai-secret")
	t.Setenv("MORPH_API_KEY", "morph-secret")
	t.Setenv("GROKAGENT_TEST_VISIBLE", "shown")

	for name, cfg := range map[string]ServerConfig{
		"command":      {Command: "server"},
		"stdio scheme": {Transport: "stdio://server --flag"},
		"with env":     {Command: "server", Env: map[string]string{"SERVER_API_KEY": "granted"}},
	} {
		t.Run(name, func(t *testing.T) {
			tr, err := transportFor(cfg)
			require.NoError(t, err)
			env := tr.(*mcpsdk.CommandTransport).Command.Env
			for _, kv := range env {
				assert.NotContains(t, kv, "xai-secret")
				assert.NotContains(t, kv, "morph-secret")
			}
			assert.Contains(t, env, "GROKAGENT_TEST_VISIBLE=shown")
			for k, v := range cfg.Env {
				assert.Contains(t, env, k+"="+v)
			}
		})
	}
}

func TestTransportForErrors(t *testing.T) {
	for name, cfg := range map[string]ServerConfig{
		"empty":       {},
		"bad hint":    {Transport: "http+carrier://host/x"},
		"empty stdio": {Transport: "stdio://"},
		"no host":     {Transport: "sse://"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := transportFor(cfg)
			assert.Error(t, err)
		})
	}
}
