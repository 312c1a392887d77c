package agentloop

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/martinemde/grokagent/unifiedllm"
)

func historyOf(calls ...unifiedllm.ToolCall) []unifiedllm.Message {
	var msgs []unifiedllm.Message
	for i, c := range calls {
		c.ID = fmt.Sprintf("call_%d", i)
		msgs = append(msgs,
			unifiedllm.AssistantMessage("", c),
			unifiedllm.ToolResultMessage(c.ID, c.Name, unifiedllm.ToolOutput{Type: unifiedllm.OutputText, Value: "ok"}),
		)
	}
	return msgs
}

func TestDetectLoop(t *testing.T) {
	view := toolCall("", "view_file", `{"path":"a.go"}`)
	other := toolCall("", "view_file", `{"path":"b.go"}`)
	bash := toolCall("", "bash", `{"command":"go test"}`)

	tests := []struct {
		name    string
		history []unifiedllm.Message
		window  int
		want    bool
	}{
		{"too short", historyOf(view, view), 4, false},
		{"same call", historyOf(bash, view, view, view, view), 4, true},
		{"alternating", historyOf(view, bash, view, bash), 4, true},
		{"period three", historyOf(view, other, bash, view, other, bash), 6, true},
		{"varied", historyOf(view, other, bash, view), 4, false},
		{"different arguments", historyOf(view, other, view, other, view, view), 6, false},
		{"disabled", historyOf(view, view, view), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLoop(tt.history, tt.window))
		})
	}
}

func TestDetectLoopReadsParallelCalls(t *testing.T) {
	a := toolCall("1", "glob", `{"pattern":"*.go"}`)
	b := toolCall("2", "glob", `{"pattern":"*.go"}`)
	msgs := []unifiedllm.Message{
		unifiedllm.AssistantMessage("", a, b),
		unifiedllm.AssistantMessage("", a, b),
	}
	assert.True(t, DetectLoop(msgs, 4))
}
