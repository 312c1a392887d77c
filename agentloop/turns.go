package agentloop

import (
	"time"

	"github.com/martinemde/grokagent/tools"
	"github.com/martinemde/grokagent/unifiedllm"
)

// EntryType discriminates chat log entries.
type EntryType string

const (
	EntryUser       EntryType = "user"
	EntryAssistant  EntryType = "assistant"
	EntryToolCall   EntryType = "tool_call"
	EntryToolResult EntryType = "tool_result"
)

// ChatEntry is one line of the session's display and audit log. Tool
// results are stored untruncated.
type ChatEntry struct {
	Type       EntryType             `json:"type"`
	Content    string                `json:"content"`
	Timestamp  time.Time             `json:"timestamp"`
	ToolCalls  []unifiedllm.ToolCall `json:"tool_calls,omitempty"`
	ToolCall   *unifiedllm.ToolCall  `json:"tool_call,omitempty"`
	ToolResult *tools.Result         `json:"tool_result,omitempty"`
}

// NewUserEntry records user input.
func NewUserEntry(content string) ChatEntry {
	return ChatEntry{Type: EntryUser, Content: content, Timestamp: time.Now()}
}

// NewAssistantEntry records a model reply and the tool calls it requested.
func NewAssistantEntry(content string, calls []unifiedllm.ToolCall) ChatEntry {
	return ChatEntry{Type: EntryAssistant, Content: content, Timestamp: time.Now(), ToolCalls: calls}
}

// NewToolCallEntry records that a tool is about to run.
func NewToolCallEntry(call unifiedllm.ToolCall) ChatEntry {
	return ChatEntry{
		Type:      EntryToolCall,
		Content:   "Executing " + call.Name,
		Timestamp: time.Now(),
		ToolCall:  &call,
	}
}

// NewToolResultEntry records a finished tool call.
func NewToolResultEntry(call unifiedllm.ToolCall, result tools.Result) ChatEntry {
	return ChatEntry{
		Type:       EntryToolResult,
		Content:    result.Text(),
		Timestamp:  time.Now(),
		ToolCall:   &call,
		ToolResult: &result,
	}
}
