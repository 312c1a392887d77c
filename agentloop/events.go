package agentloop

import (
	"github.com/martinemde/grokagent/tools"
	"github.com/martinemde/grokagent/unifiedllm"
)

// ChunkType identifies the kind of streamed chunk.
type ChunkType string

const (
	ChunkContent    ChunkType = "content"
	ChunkToolCalls  ChunkType = "tool_calls"
	ChunkToolResult ChunkType = "tool_result"
	ChunkTokenCount ChunkType = "token_count"
	ChunkDone       ChunkType = "done"
)

// StreamChunk is one event of a streaming call. Every stream ends with
// exactly one ChunkDone, whose Err is nil when the turn completed and
// otherwise ErrCancelled, ErrBusy or the transport's *unifiedllm.APIError.
type StreamChunk struct {
	Type       ChunkType             `json:"type"`
	Content    string                `json:"content,omitempty"`
	ToolCalls  []unifiedllm.ToolCall `json:"tool_calls,omitempty"`
	ToolCall   *unifiedllm.ToolCall  `json:"tool_call,omitempty"`
	ToolResult *tools.Result         `json:"tool_result,omitempty"`
	TokenCount int                   `json:"token_count,omitempty"`
	Err        error                 `json:"-"`
}

// chunkEmitter delivers chunks to the consumer in order. Sends block, so
// the consumer must drain the channel until it is closed.
type chunkEmitter struct {
	ch   chan StreamChunk
	done bool
}

func newChunkEmitter() *chunkEmitter {
	return &chunkEmitter{ch: make(chan StreamChunk)}
}

func (e *chunkEmitter) emit(chunk StreamChunk) {
	if e.done {
		return
	}
	if chunk.Type == ChunkDone {
		e.done = true
	}
	e.ch <- chunk
}

func (e *chunkEmitter) content(text string) {
	e.emit(StreamChunk{Type: ChunkContent, Content: text})
}

func (e *chunkEmitter) toolCalls(calls []unifiedllm.ToolCall) {
	e.emit(StreamChunk{Type: ChunkToolCalls, ToolCalls: calls})
}

func (e *chunkEmitter) toolResult(call unifiedllm.ToolCall, result tools.Result) {
	e.emit(StreamChunk{Type: ChunkToolResult, ToolCall: &call, ToolResult: &result})
}

func (e *chunkEmitter) tokenCount(n int) {
	e.emit(StreamChunk{Type: ChunkTokenCount, TokenCount: n})
}

func (e *chunkEmitter) finish() {
	e.emit(StreamChunk{Type: ChunkDone})
}

// close ends the stream, emitting done with err first if nothing did.
func (e *chunkEmitter) close(err error) {
	e.emit(StreamChunk{Type: ChunkDone, Err: err})
	close(e.ch)
}
