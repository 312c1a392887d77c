package tools

import (
	"fmt"

	"github.com/martinemde/grokagent/unifiedllm"
)

// Placeholders used when a result carries no text of its own.
const (
	DefaultSuccessText = "Success"
	DefaultErrorText   = "Error"
)

// Result is the uniform envelope every tool execution produces. Output is
// meaningful when Success is true, Error otherwise.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK returns a successful result.
func OK(output string) Result {
	return Result{Success: true, Output: output}
}

// Fail returns a failed result with a formatted message.
func Fail(format string, args ...any) Result {
	if len(args) == 0 {
		return Result{Error: format}
	}
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Text returns the user-facing text of the result, falling back to
// "Success" or "Error" when the relevant field is empty.
func (r Result) Text() string {
	if r.Success {
		if r.Output == "" {
			return DefaultSuccessText
		}
		return r.Output
	}
	if r.Error == "" {
		return DefaultErrorText
	}
	return r.Error
}

// ToolOutput converts the result into a tool-result payload.
func (r Result) ToolOutput() unifiedllm.ToolOutput {
	kind := unifiedllm.OutputText
	if !r.Success {
		kind = unifiedllm.OutputErrorText
	}
	return unifiedllm.ToolOutput{Type: kind, Value: r.Text()}
}

// ResultMessage builds the tool message answering call.
func ResultMessage(call unifiedllm.ToolCall, r Result) unifiedllm.Message {
	return unifiedllm.ToolResultMessage(call.ID, call.Name, r.ToolOutput())
}
