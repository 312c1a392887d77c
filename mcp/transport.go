package mcp

import (
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/martinemde/grokagent/tools"
)

// ServerConfig describes how to reach one MCP server. Transport, when set,
// is a spec string such as "stdio://cmd args", "sse://host/path",
// "http+stream://host/mcp" or a plain URL. Otherwise URL selects an SSE
// endpoint and Command starts a stdio server.
type ServerConfig struct {
	Transport string            `json:"transport,omitempty" yaml:"transport,omitempty"`
	Command   string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
}

const (
	stdioSchemePrefix = "stdio://"
	sseSchemePrefix   = "sse://"
)

// transportFor builds the client transport for cfg.
func transportFor(cfg ServerConfig) (mcpsdk.Transport, error) {
	switch {
	case strings.TrimSpace(cfg.Transport) != "":
		return parseTransport(cfg.Transport, cfg.Env)
	case cfg.URL != "":
		return parseTransport(cfg.URL, nil)
	case cfg.Command != "":
		return commandTransport(cfg.Command, cfg.Args, cfg.Env), nil
	}
	return nil, fmt.Errorf("server config needs a transport, url or command")
}

func parseTransport(spec string, env map[string]string) (mcpsdk.Transport, error) {
	spec = strings.TrimSpace(spec)
	lowered := strings.ToLower(spec)

	switch {
	case strings.HasPrefix(lowered, stdioSchemePrefix):
		parts := strings.Fields(spec[len(stdioSchemePrefix):])
		if len(parts) == 0 {
			return nil, fmt.Errorf("stdio command is empty")
		}
		return commandTransport(parts[0], parts[1:], env), nil
	case strings.HasPrefix(lowered, sseSchemePrefix):
		endpoint, err := normalizeHTTPURL(spec[len(sseSchemePrefix):], true)
		if err != nil {
			return nil, fmt.Errorf("invalid SSE endpoint: %w", err)
		}
		return &mcpsdk.SSEClientTransport{Endpoint: endpoint}, nil
	}

	if streamable, endpoint, ok, err := parseHTTPHint(spec); err != nil {
		return nil, err
	} else if ok {
		if streamable {
			return &mcpsdk.StreamableClientTransport{Endpoint: endpoint}, nil
		}
		return &mcpsdk.SSEClientTransport{Endpoint: endpoint}, nil
	}

	if strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://") {
		endpoint, err := normalizeHTTPURL(spec, false)
		if err != nil {
			return nil, fmt.Errorf("invalid SSE endpoint: %w", err)
		}
		return &mcpsdk.SSEClientTransport{Endpoint: endpoint}, nil
	}

	parts := strings.Fields(spec)
	if len(parts) == 0 {
		return nil, fmt.Errorf("transport spec is empty")
	}
	return commandTransport(parts[0], parts[1:], env), nil
}

// parseHTTPHint recognises "http+sse://" and "http+stream://" style schemes.
func parseHTTPHint(spec string) (streamable bool, endpoint string, matched bool, err error) {
	u, parseErr := url.Parse(spec)
	if parseErr != nil || u.Scheme == "" {
		return false, "", false, nil
	}
	base, hint, ok := strings.Cut(strings.ToLower(u.Scheme), "+")
	if !ok || (base != "http" && base != "https") {
		return false, "", false, nil
	}
	switch hint {
	case "sse":
	case "stream", "streamable", "http":
		streamable = true
	default:
		return false, "", true, fmt.Errorf("unsupported HTTP transport hint %q", hint)
	}
	normalized := *u
	normalized.Scheme = base
	endpoint, err = normalizeHTTPURL(normalized.String(), false)
	if err != nil {
		return false, "", true, fmt.Errorf("invalid endpoint: %w", err)
	}
	return streamable, endpoint, true, nil
}

func normalizeHTTPURL(raw string, guessScheme bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("endpoint is empty")
	}
	if guessScheme && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	parsed.Scheme = scheme
	return parsed.String(), nil
}

// commandTransport starts a stdio server. The process lives until the
// session is closed. It sees the agent's environment without credentials;
// a server that needs a key gets it through env.
func commandTransport(command string, args []string, env map[string]string) *mcpsdk.CommandTransport {
	cmd := exec.Command(command, args...)
	cmd.Env = tools.SafeEnviron(env)
	return &mcpsdk.CommandTransport{Command: cmd}
}
