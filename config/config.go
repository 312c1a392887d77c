// Package config resolves the agent's settings from command-line flags,
// environment variables and the user settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/martinemde/grokagent/mcp"
	"github.com/martinemde/grokagent/unifiedllm"
)

// Defaults applied when no layer sets a value.
const (
	DefaultProvider     = "xai"
	DefaultLogFormat    = "text"
	DefaultLogLevel     = "warn"
	DefaultSettingsFile = "~/.grok/user-settings.json"
)

// Env holds the environment-variable layer.
type Env struct {
	APIKey         string        `env:"GROK_API_KEY"`
	BaseURL        string        `env:"GROK_BASE_URL"`
	Model          string        `env:"GROK_MODEL"`
	Provider       string        `env:"GROK_PROVIDER"`
	MaxToolRounds  int           `env:"GROK_MAX_TOOL_ROUNDS"`
	Temperature    float64       `env:"GROK_TEMPERATURE" envDefault:"0.7"`
	MaxTokens      int           `env:"GROK_MAX_TOKENS"`
	RequestTimeout time.Duration `env:"GROK_REQUEST_TIMEOUT" envDefault:"360s"`
	Verbose        bool          `env:"GROK_VERBOSE"`
	LogFormat      string        `env:"GROK_LOG_FORMAT"`
	LogLevel       string        `env:"GROK_LOG_LEVEL"`
	SettingsFile   string        `env:"GROK_SETTINGS_FILE" envDefault:"~/.grok/user-settings.json"`
	MorphAPIKey    string        `env:"MORPH_API_KEY"`
}

// Flags holds values given on the command line. Zero values are unset.
type Flags struct {
	APIKey     string
	BaseURL    string
	Model      string
	WorkingDir string
	Verbose    bool
}

// Config is the resolved configuration. Only the xAI provider needs an
// API key; the others may read their own credentials or need none.
type Config struct {
	APIKey         string        `validate:"required_if=Provider xai"`
	BaseURL        string        `validate:"required,url"`
	Model          string        `validate:"required"`
	Provider       string        `validate:"required"`
	MaxToolRounds  int           `validate:"min=1"`
	Temperature    float64       `validate:"min=0,max=2"`
	MaxTokens      int           `validate:"min=0"`
	RequestTimeout time.Duration `validate:"gt=0"`
	Verbose        bool
	LogFormat      string `validate:"oneof=text json"`
	LogLevel       string `validate:"oneof=debug info warn error"`
	WorkingDir     string `validate:"required"`
	MorphAPIKey    string
	SettingsFile   string
	Models         []string
	MCPServers     map[string]mcp.ServerConfig
}

// Options controls Load. A nil Environment reads the process environment.
type Options struct {
	Flags       Flags
	Environment map[string]string
}

// LoadEnv parses the environment layer.
func LoadEnv(environment map[string]string) (Env, error) {
	e, err := env.ParseAsWithOptions[Env](env.Options{Environment: environment})
	if err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}

// Load merges the layers with precedence flag, environment, settings file,
// default, and validates the result.
func Load(opts Options) (*Config, error) {
	e, err := LoadEnv(opts.Environment)
	if err != nil {
		return nil, err
	}

	path, err := ExpandHome(e.SettingsFile)
	if err != nil {
		return nil, err
	}
	settings, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}

	f := opts.Flags
	cfg := &Config{
		APIKey:         first(f.APIKey, e.APIKey, settings.APIKey),
		BaseURL:        first(f.BaseURL, e.BaseURL, settings.BaseURL, unifiedllm.DefaultBaseURL),
		Model:          first(f.Model, e.Model, settings.DefaultModel, unifiedllm.DefaultModel),
		Provider:       first(e.Provider, DefaultProvider),
		MaxToolRounds:  e.MaxToolRounds,
		Temperature:    e.Temperature,
		MaxTokens:      e.MaxTokens,
		RequestTimeout: e.RequestTimeout,
		Verbose:        f.Verbose || e.Verbose,
		LogFormat:      strings.ToLower(first(e.LogFormat, DefaultLogFormat)),
		LogLevel:       strings.ToLower(first(e.LogLevel, DefaultLogLevel)),
		WorkingDir:     f.WorkingDir,
		MorphAPIKey:    e.MorphAPIKey,
		SettingsFile:   path,
		Models:         settings.Models,
		MCPServers:     settings.MCPServers,
	}
	if cfg.MaxToolRounds == 0 {
		cfg.MaxToolRounds = 400
	}
	if cfg.WorkingDir == "" {
		if cfg.WorkingDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
	}
	if cfg.WorkingDir, err = ExpandHome(cfg.WorkingDir); err != nil {
		return nil, err
	}
	if cfg.WorkingDir, err = filepath.Abs(cfg.WorkingDir); err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the resolved configuration and names a remediation for
// the first failure.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "APIKey":
		return fmt.Errorf("no API key found: set GROK_API_KEY, pass -k, or add \"apiKey\" to %s", c.SettingsFile)
	case "BaseURL":
		return fmt.Errorf("invalid base URL %q: set GROK_BASE_URL, pass -u, or fix \"baseURL\" in %s", c.BaseURL, c.SettingsFile)
	case "MaxToolRounds":
		return fmt.Errorf("GROK_MAX_TOOL_ROUNDS must be at least 1, got %d", c.MaxToolRounds)
	case "LogFormat":
		return fmt.Errorf("GROK_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	case "Temperature":
		return fmt.Errorf("GROK_TEMPERATURE must be between 0 and 2, got %g", c.Temperature)
	case "MaxTokens":
		return fmt.Errorf("GROK_MAX_TOKENS must not be negative, got %d", c.MaxTokens)
	case "RequestTimeout":
		return fmt.Errorf("GROK_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	case "LogLevel":
		return fmt.Errorf("GROK_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	default:
		return fmt.Errorf("invalid config: %s failed %q", fe.Field(), fe.Tag())
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
