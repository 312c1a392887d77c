package unifiedllm

import "strings"

// Search modes understood by the backend.
const (
	SearchAuto = "auto"
	SearchOn   = "on"
	SearchOff  = "off"
)

// SearchParameters is the real-time search directive. It is sent to the
// backend as a side-channel option, never as a message.
type SearchParameters struct {
	Mode             string `json:"mode"`
	ReturnCitations  *bool  `json:"return_citations,omitempty"`
	FromDate         string `json:"from_date,omitempty"`
	ToDate           string `json:"to_date,omitempty"`
	MaxSearchResults *int   `json:"max_search_results,omitempty"`
}

var searchKeywords = []string{
	"latest news",
	"current",
	"latest",
	"recent",
	"today",
	"news",
	"weather",
	"stock",
	"price",
	"what's happening",
	"update",
}

// WantsSearch reports whether a user message asks for real-time information.
func WantsSearch(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range searchKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// SearchDirectiveFor returns the search directive to attach for a user
// message sent to model, or nil when the model does not support search.
func SearchDirectiveFor(model, message string) *SearchParameters {
	if !IsSearchCapable(model) {
		return nil
	}
	if WantsSearch(message) {
		return &SearchParameters{Mode: SearchAuto}
	}
	return &SearchParameters{Mode: SearchOff}
}
