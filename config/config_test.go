package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/grokagent/mcp"
	"github.com/martinemde/grokagent/unifiedllm"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "user-settings.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Options{
		Flags: Flags{WorkingDir: dir},
		Environment: map[string]string{
			"GROK_API_KEY":       "xai-key",
			"GROK_SETTINGS_FILE": filepath.Join(dir, "missing.json"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "xai-key", cfg.APIKey)
	assert.Equal(t, unifiedllm.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, unifiedllm.DefaultModel, cfg.Model)
	assert.Equal(t, DefaultProvider, cfg.Provider)
	assert.Equal(t, 400, cfg.MaxToolRounds)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, dir, cfg.WorkingDir)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Zero(t, cfg.MaxTokens)
	assert.Equal(t, 360*time.Second, cfg.RequestTimeout)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeSettings(t, `{
  "apiKey": "file-key",
  "baseURL": "https://file.example/v1",
  "defaultModel": "grok-3",
  "models": ["grok-3", "grok-4"]
}`)
	env := map[string]string{
		"GROK_SETTINGS_FILE": path,
		"GROK_BASE_URL":      "https://env.example/v1",
		"GROK_MODEL":         "grok-4",
	}

	cfg, err := Load(Options{Flags: Flags{WorkingDir: t.TempDir()}, Environment: env})
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, "https://env.example/v1", cfg.BaseURL)
	assert.Equal(t, "grok-4", cfg.Model)
	assert.Equal(t, []string{"grok-3", "grok-4"}, cfg.Models)

	cfg, err = Load(Options{
		Flags:       Flags{APIKey: "flag-key", Model: "grok-code-fast-1", WorkingDir: t.TempDir()},
		Environment: env,
	})
	require.NoError(t, err)
	assert.Equal(t, "flag-key", cfg.APIKey)
	assert.Equal(t, "grok-code-fast-1", cfg.Model)
}

func TestLoadMissingAPIKeyNamesRemediation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user-settings.json")
	_, err := Load(Options{
		Flags:       Flags{WorkingDir: t.TempDir()},
		Environment: map[string]string{"GROK_SETTINGS_FILE": path},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GROK_API_KEY")
	assert.Contains(t, err.Error(), path)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{
			"GROK_API_KEY":       "k",
			"GROK_SETTINGS_FILE": filepath.Join(t.TempDir(), "none.json"),
		}
	}
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"base url", "GROK_BASE_URL", "not a url", "invalid base URL"},
		{"rounds", "GROK_MAX_TOOL_ROUNDS", "-3", "at least 1"},
		{"rounds type", "GROK_MAX_TOOL_ROUNDS", "many", "parse environment"},
		{"log format", "GROK_LOG_FORMAT", "xml", "text or json"},
		{"log level", "GROK_LOG_LEVEL", "loud", "GROK_LOG_LEVEL"},
		{"temperature", "GROK_TEMPERATURE", "3.5", "between 0 and 2"},
		{"max tokens", "GROK_MAX_TOKENS", "-1", "must not be negative"},
		{"timeout", "GROK_REQUEST_TIMEOUT", "0s", "must be positive"},
		{"timeout type", "GROK_REQUEST_TIMEOUT", "soon", "parse environment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := base()
			env[tt.key] = tt.val
			_, err := Load(Options{Flags: Flags{WorkingDir: t.TempDir()}, Environment: env})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadVerboseAndMorph(t *testing.T) {
	cfg, err := Load(Options{
		Flags: Flags{WorkingDir: t.TempDir()},
		Environment: map[string]string{
			"GROK_API_KEY":       "k",
			"GROK_VERBOSE":       "true",
			"GROK_LOG_FORMAT":    "JSON",
			"GROK_PROVIDER":      "anthropic",
			"MORPH_API_KEY":      "morph",
			"GROK_SETTINGS_FILE": filepath.Join(t.TempDir(), "none.json"),
		},
	})
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "morph", cfg.MorphAPIKey)
}

func TestLoadModelSettings(t *testing.T) {
	cfg, err := Load(Options{
		Flags: Flags{WorkingDir: t.TempDir()},
		Environment: map[string]string{
			"GROK_API_KEY":         "k",
			"GROK_TEMPERATURE":     "0.2",
			"GROK_MAX_TOKENS":      "2048",
			"GROK_REQUEST_TIMEOUT": "90s",
			"GROK_SETTINGS_FILE":   filepath.Join(t.TempDir(), "none.json"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
}

func TestLoadAPIKeyOptionalForOtherProviders(t *testing.T) {
	cfg, err := Load(Options{
		Flags: Flags{WorkingDir: t.TempDir()},
		Environment: map[string]string{
			"GROK_PROVIDER":      "ollama",
			"GROK_SETTINGS_FILE": filepath.Join(t.TempDir(), "none.json"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Provider)
	assert.Empty(t, cfg.APIKey)

	_, err = Load(Options{
		Flags: Flags{WorkingDir: t.TempDir()},
		Environment: map[string]string{
			"GROK_PROVIDER":      DefaultProvider,
			"GROK_SETTINGS_FILE": filepath.Join(t.TempDir(), "none.json"),
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key found")
}

func TestLoadSettingsMCPServers(t *testing.T) {
	path := writeSettings(t, `{
  "mcpServers": {
    "fs": {"command": "mcp-fs", "args": ["--root", "/tmp"], "env": {"DEBUG": "1"}},
    "remote": {"transport": "sse", "url": "https://mcp.example/sse"}
  }
}`)
	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]mcp.ServerConfig{
		"fs":     {Command: "mcp-fs", Args: []string{"--root", "/tmp"}, Env: map[string]string{"DEBUG": "1"}},
		"remote": {Transport: "sse", URL: "https://mcp.example/sse"},
	}, s.MCPServers)
}

func TestLoadSettingsAcceptsYAML(t *testing.T) {
	path := writeSettings(t, "apiKey: yaml-key\nmodels:\n  - grok-4\n")
	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "yaml-key", s.APIKey)
	assert.Equal(t, []string{"grok-4"}, s.Models)
}

func TestLoadSettingsErrors(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = LoadSettings(writeSettings(t, "{not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse settings")
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".grok", "user-settings.json")
	want := Settings{APIKey: "k", DefaultModel: "grok-4"}
	require.NoError(t, SaveSettings(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandHome("~/.grok/user-settings.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".grok", "user-settings.json"), got)

	got, err = ExpandHome("/etc/grok.json")
	require.NoError(t, err)
	assert.Equal(t, "/etc/grok.json", got)
}
