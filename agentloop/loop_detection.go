package agentloop

import (
	"crypto/sha256"
	"fmt"

	"github.com/martinemde/grokagent/unifiedllm"
)

// toolCallSignature identifies a call by name and a hash of its arguments.
func toolCallSignature(call unifiedllm.ToolCall) string {
	h := sha256.Sum256([]byte(call.Arguments))
	return fmt.Sprintf("%s:%x", call.Name, h[:8])
}

// recentSignatures returns the signatures of the last count tool calls in
// the history, oldest first.
func recentSignatures(history []unifiedllm.Message, count int) []string {
	var sigs []string
	for i := len(history) - 1; i >= 0 && len(sigs) < count; i-- {
		if history[i].Role != unifiedllm.RoleAssistant {
			continue
		}
		calls := history[i].ToolCalls()
		for j := len(calls) - 1; j >= 0 && len(sigs) < count; j-- {
			sigs = append(sigs, toolCallSignature(calls[j]))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop reports whether the last window tool calls repeat a pattern of
// length 1, 2 or 3.
func DetectLoop(history []unifiedllm.Message, window int) bool {
	if window <= 0 {
		return false
	}
	sigs := recentSignatures(history, window)
	if len(sigs) < window {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if window%patternLen != 0 || window == patternLen {
			continue
		}
		pattern := sigs[:patternLen]
		match := true
		for i := patternLen; i < window && match; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					match = false
					break
				}
			}
		}
		if match {
			return true
		}
	}
	return false
}
