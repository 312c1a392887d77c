package unifiedllm

import "strings"

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID                   string   `json:"id"`
	Provider             string   `json:"provider"`
	DisplayName          string   `json:"display_name"`
	ContextWindow        int      `json:"context_window"`
	SupportsTools        bool     `json:"supports_tools"`
	SupportsSearch       bool     `json:"supports_search"`
	InputCostPerMillion  *float64 `json:"input_cost_per_million,omitempty"`
	OutputCostPerMillion *float64 `json:"output_cost_per_million,omitempty"`
	Aliases              []string `json:"aliases,omitempty"`
}

func floatPtr(v float64) *float64 { return &v }

// DefaultModel is used when neither the settings file nor the environment
// names a model.
const DefaultModel = "grok-code-fast-1"

// searchCapablePrefixes lists model-name prefixes whose backend honors the
// search directive.
var searchCapablePrefixes = []string{"grok"}

// Models is the built-in model catalog.
var Models = []ModelInfo{
	{
		ID: "grok-code-fast-1", Provider: "xai", DisplayName: "Grok Code Fast 1",
		ContextWindow: 256000, SupportsTools: true, SupportsSearch: true,
		InputCostPerMillion: floatPtr(0.20), OutputCostPerMillion: floatPtr(1.50),
		Aliases: []string{"grok-code"},
	},
	{
		ID: "grok-4-latest", Provider: "xai", DisplayName: "Grok 4",
		ContextWindow: 256000, SupportsTools: true, SupportsSearch: true,
		InputCostPerMillion: floatPtr(3.0), OutputCostPerMillion: floatPtr(15.0),
		Aliases: []string{"grok-4"},
	},
	{
		ID: "grok-3-latest", Provider: "xai", DisplayName: "Grok 3",
		ContextWindow: 131072, SupportsTools: true, SupportsSearch: true,
		InputCostPerMillion: floatPtr(3.0), OutputCostPerMillion: floatPtr(15.0),
		Aliases: []string{"grok-3"},
	},
	{
		ID: "grok-3-fast", Provider: "xai", DisplayName: "Grok 3 Fast",
		ContextWindow: 131072, SupportsTools: true, SupportsSearch: true,
	},
	{
		ID: "grok-3-mini-fast", Provider: "xai", DisplayName: "Grok 3 Mini Fast",
		ContextWindow: 131072, SupportsTools: true, SupportsSearch: true,
		Aliases: []string{"grok-3-mini"},
	},
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, SupportsTools: true,
		InputCostPerMillion: floatPtr(3.0), OutputCostPerMillion: floatPtr(15.0),
		Aliases: []string{"sonnet"},
	},
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow: 128000, SupportsTools: true,
		InputCostPerMillion: floatPtr(0.15), OutputCostPerMillion: floatPtr(0.60),
	},
}

// GetModelInfo returns the catalog entry for a model, or nil if unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// GetLatestModel returns the first (newest) model for a provider.
func GetLatestModel(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider {
			return &Models[i]
		}
	}
	return nil
}

// IsSearchCapable reports whether the model name starts with a prefix whose
// backend accepts the search directive. Unknown models are matched by
// prefix so new releases work without a catalog update.
func IsSearchCapable(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range searchCapablePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// ContextWindow returns the model's context window, or a conservative
// default for unknown models.
func ContextWindow(model string) int {
	if info := GetModelInfo(model); info != nil {
		return info.ContextWindow
	}
	return 128000
}
