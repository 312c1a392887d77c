package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/martinemde/grokagent/mcp"
)

// Settings is the user settings file. It is written as JSON, which the
// YAML decoder also reads, so hand-edited YAML works too.
type Settings struct {
	APIKey       string                      `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	BaseURL      string                      `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	DefaultModel string                      `json:"defaultModel,omitempty" yaml:"defaultModel,omitempty"`
	Models       []string                    `json:"models,omitempty" yaml:"models,omitempty"`
	MCPServers   map[string]mcp.ServerConfig `json:"mcpServers,omitempty" yaml:"mcpServers,omitempty"`
}

// LoadSettings reads the settings file at path. A missing file yields empty
// settings.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes s to path as indented JSON, creating the directory
// with owner-only permissions.
func SaveSettings(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write settings %s: %w", path, err)
	}
	return nil
}
