package tools

import (
	"context"
	"strings"

	"github.com/martinemde/grokagent/unifiedllm"
)

// RemoteToolServer is a remote capability provider reached through a
// uniform call/response protocol.
type RemoteToolServer interface {
	// ToolDefinitions lists the remote tools under their RemotePrefix names.
	ToolDefinitions() []unifiedllm.ToolDefinition

	// CallTool invokes a remote tool by its prefixed name.
	CallTool(ctx context.Context, name string, args map[string]any) (*RemoteResult, error)
}

// RemoteContentType distinguishes remote content items.
type RemoteContentType string

const (
	RemoteText     RemoteContentType = "text"
	RemoteResource RemoteContentType = "resource"
)

// RemoteContent is one item of a remote tool's reply.
type RemoteContent struct {
	Type RemoteContentType `json:"type"`
	Text string            `json:"text,omitempty"`
	URI  string            `json:"uri,omitempty"`
}

// RemoteResult is a remote tool's reply.
type RemoteResult struct {
	IsError bool            `json:"isError"`
	Content []RemoteContent `json:"content"`
}

// Result normalizes the reply. A server-reported error uses the first text
// item as its message; otherwise every item is joined with newlines and
// resource items are rendered as a placeholder.
func (r *RemoteResult) Result() Result {
	if r == nil {
		return OK(DefaultSuccessText)
	}
	if r.IsError {
		for _, c := range r.Content {
			if c.Type == RemoteText && c.Text != "" {
				return Fail("%s", c.Text)
			}
		}
		return Fail("MCP tool error")
	}

	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		switch c.Type {
		case RemoteResource:
			uri := c.URI
			if uri == "" {
				uri = "Unknown URI"
			}
			parts = append(parts, "[Resource: "+uri+"]")
		default:
			parts = append(parts, c.Text)
		}
	}
	output := strings.Join(parts, "\n")
	if output == "" {
		output = DefaultSuccessText
	}
	return OK(output)
}
