package unifiedllm

import (
	"strings"

	"github.com/google/uuid"
)

// StreamAccumulator collects stream events into a complete Response.
//
// Tool-call events are keyed by call ID: an event for an ID already seen
// appends its arguments to that call, which supports backends that stream
// tool arguments in fragments.
type StreamAccumulator struct {
	text         strings.Builder
	toolCalls    []ToolCall
	index        map[string]int
	finishReason *FinishReason
	usage        *Usage
}

// NewStreamAccumulator creates a new StreamAccumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{index: make(map[string]int)}
}

// Process ingests a single stream event.
func (sa *StreamAccumulator) Process(event StreamEvent) {
	switch event.Type {
	case TextDelta:
		sa.text.WriteString(event.Delta)
	case ToolCallDelta:
		if event.ToolCall != nil {
			sa.addToolCall(*event.ToolCall)
		}
	case StreamFinish:
		sa.finishReason = event.FinishReason
		sa.usage = event.Usage
	case StreamRestart:
		sa.Reset()
	}
}

func (sa *StreamAccumulator) addToolCall(call ToolCall) {
	if call.ID == "" {
		call.ID = "call_" + uuid.New().String()[:8]
	}
	if i, ok := sa.index[call.ID]; ok {
		existing := &sa.toolCalls[i]
		existing.Arguments += call.Arguments
		if existing.Name == "" {
			existing.Name = call.Name
		}
		return
	}
	sa.index[call.ID] = len(sa.toolCalls)
	sa.toolCalls = append(sa.toolCalls, call)
}

// Reset discards everything accumulated so far.
func (sa *StreamAccumulator) Reset() {
	sa.text.Reset()
	sa.toolCalls = nil
	sa.index = make(map[string]int)
	sa.finishReason = nil
	sa.usage = nil
}

// Text returns the accumulated text.
func (sa *StreamAccumulator) Text() string {
	return sa.text.String()
}

// ToolCalls returns the accumulated tool calls in first-seen order.
func (sa *StreamAccumulator) ToolCalls() []ToolCall {
	calls := make([]ToolCall, len(sa.toolCalls))
	copy(calls, sa.toolCalls)
	return calls
}

// Response returns the accumulated response.
func (sa *StreamAccumulator) Response() *Response {
	fr := FinishReason{Reason: "stop"}
	if len(sa.toolCalls) > 0 {
		fr = FinishReason{Reason: "tool_calls"}
	}
	if sa.finishReason != nil {
		fr = *sa.finishReason
	}

	usage := Usage{}
	if sa.usage != nil {
		usage = *sa.usage
	}

	return &Response{
		Message:      AssistantMessage(sa.Text(), sa.ToolCalls()...),
		FinishReason: fr,
		Usage:        usage,
	}
}
