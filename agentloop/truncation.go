package agentloop

import (
	"fmt"
	"strings"

	"github.com/martinemde/grokagent/tools"
)

// TruncationMode selects which part of an oversized output is dropped.
type TruncationMode string

const (
	// TruncateHeadTail keeps the beginning and end and drops the middle.
	TruncateHeadTail TruncationMode = "head_tail"
	// TruncateTail keeps the end.
	TruncateTail TruncationMode = "tail"
)

// OutputLimit is the truncation policy for one tool's output. Lines is
// applied after Chars; zero means no line limit.
type OutputLimit struct {
	Chars int
	Mode  TruncationMode
	Lines int
}

// DefaultOutputLimit applies to tools without an entry in
// DefaultOutputLimits, including remote tools.
var DefaultOutputLimit = OutputLimit{Chars: 30000, Mode: TruncateHeadTail}

// DefaultOutputLimits holds the per-tool policies.
var DefaultOutputLimits = map[string]OutputLimit{
	tools.ToolViewFile:   {Chars: 50000, Mode: TruncateHeadTail},
	tools.ToolBash:       {Chars: 30000, Mode: TruncateHeadTail, Lines: 256},
	tools.ToolGrep:       {Chars: 20000, Mode: TruncateTail, Lines: 200},
	tools.ToolSearch:     {Chars: 20000, Mode: TruncateTail, Lines: 200},
	tools.ToolGlob:       {Chars: 20000, Mode: TruncateTail, Lines: 500},
	tools.ToolStrReplace: {Chars: 10000, Mode: TruncateHeadTail},
	tools.ToolEditFile:   {Chars: 10000, Mode: TruncateHeadTail},
	tools.ToolCreateFile: {Chars: 1000, Mode: TruncateHeadTail},
}

// limitFor resolves the policy for toolName, letting entries in the
// override maps replace the default character or line limit.
func limitFor(toolName string, charLimits, lineLimits map[string]int) OutputLimit {
	limit, ok := DefaultOutputLimits[toolName]
	if !ok {
		limit = DefaultOutputLimit
	}
	if n, ok := charLimits[toolName]; ok {
		limit.Chars = n
	}
	if n, ok := lineLimits[toolName]; ok {
		limit.Lines = n
	}
	return limit
}

// TruncateOutput cuts output to at most maxChars characters plus a notice
// telling the model how much was removed.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	removed := len(output) - maxChars

	if mode == TruncateTail {
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed.]\n\n", removed) +
			output[removed:]
	}

	half := maxChars / 2
	notice := fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
		"If you need to see specific parts, re-run the tool with more targeted parameters.]\n\n", removed)
	return output[:half] + notice + output[len(output)-half:]
}

// TruncateLines keeps the first and last lines of output, maxLines in
// total.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return output
	}
	head := maxLines / 2
	tail := maxLines - head
	omitted := len(lines) - maxLines

	var sb strings.Builder
	sb.WriteString(strings.Join(lines[:head], "\n"))
	fmt.Fprintf(&sb, "\n[... %d lines omitted ...]\n", omitted)
	sb.WriteString(strings.Join(lines[len(lines)-tail:], "\n"))
	return sb.String()
}

// TruncateToolOutput limits a tool's output by characters, then by lines.
// Entries in charLimits and lineLimits override the defaults.
func TruncateToolOutput(output string, toolName string, charLimits, lineLimits map[string]int) string {
	limit := limitFor(toolName, charLimits, lineLimits)
	return TruncateLines(TruncateOutput(output, limit.Chars, limit.Mode), limit.Lines)
}
