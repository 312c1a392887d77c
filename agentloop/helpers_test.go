package agentloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/martinemde/grokagent/tools"
	"github.com/martinemde/grokagent/unifiedllm"
)

type reply struct {
	resp *unifiedllm.Response
	err  error
}

func textReply(text string, calls ...unifiedllm.ToolCall) reply {
	return reply{resp: &unifiedllm.Response{Message: unifiedllm.AssistantMessage(text, calls...)}}
}

// fakeClient replays scripted replies and streams in order. Once the script
// runs out it answers "done".
type fakeClient struct {
	mu       sync.Mutex
	replies  []reply
	streams  [][]unifiedllm.StreamEvent
	requests []unifiedllm.Request

	// gate, when set, holds every stream until it is closed.
	gate chan struct{}
	// afterEvent runs in the stream goroutine once an event is delivered.
	afterEvent func(stream, event int)
}

func (f *fakeClient) Complete(ctx context.Context, req unifiedllm.Request) (*unifiedllm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		return textReply("done").resp, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.resp, r.err
}

func (f *fakeClient) CompleteStream(ctx context.Context, req unifiedllm.Request) <-chan unifiedllm.StreamEvent {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests) - 1
	events := []unifiedllm.StreamEvent{{Type: unifiedllm.TextDelta, Delta: "done"}}
	if len(f.streams) > 0 {
		events = f.streams[0]
		f.streams = f.streams[1:]
	}
	gate, after := f.gate, f.afterEvent
	f.mu.Unlock()

	ch := make(chan unifiedllm.StreamEvent)
	go func() {
		defer close(ch)
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return
			}
		}
		for i, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
			if after != nil {
				after(n, i)
			}
		}
	}()
	return ch
}

func (f *fakeClient) requestsMade() []unifiedllm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]unifiedllm.Request(nil), f.requests...)
}

// fakeExecutor records calls and answers with canned results, or echoes the
// call name.
type fakeExecutor struct {
	mu        sync.Mutex
	defs      []unifiedllm.ToolDefinition
	results   map[string]tools.Result
	calls     []unifiedllm.ToolCall
	onExecute func(ctx context.Context, call unifiedllm.ToolCall)
}

func (f *fakeExecutor) Definitions() []unifiedllm.ToolDefinition { return f.defs }

func (f *fakeExecutor) Execute(ctx context.Context, call unifiedllm.ToolCall) tools.Result {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	hook := f.onExecute
	f.mu.Unlock()
	if hook != nil {
		hook(ctx, call)
	}
	if r, ok := f.results[call.Name]; ok {
		return r
	}
	return tools.OK("ran " + call.Name)
}

func (f *fakeExecutor) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, c := range f.calls {
		names = append(names, c.Name)
	}
	return names
}

func toolCall(id, name, args string) unifiedllm.ToolCall {
	return unifiedllm.ToolCall{ID: id, Name: name, Arguments: args}
}

func textDelta(s string) unifiedllm.StreamEvent {
	return unifiedllm.StreamEvent{Type: unifiedllm.TextDelta, Delta: s}
}

func callDelta(id, name, args string) unifiedllm.StreamEvent {
	c := toolCall(id, name, args)
	return unifiedllm.StreamEvent{Type: unifiedllm.ToolCallDelta, ToolCall: &c}
}

func collect(t *testing.T, ch <-chan StreamChunk) []StreamChunk {
	t.Helper()
	var chunks []StreamChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, c)
		case <-timeout:
			t.Fatalf("stream did not close; got %d chunks", len(chunks))
			return nil
		}
	}
}

func chunkTypes(chunks []StreamChunk) []ChunkType {
	types := make([]ChunkType, len(chunks))
	for i, c := range chunks {
		types[i] = c.Type
	}
	return types
}

func countDone(chunks []StreamChunk) int {
	n := 0
	for _, c := range chunks {
		if c.Type == ChunkDone {
			n++
		}
	}
	return n
}

func entryTypes(entries []ChatEntry) []EntryType {
	types := make([]EntryType, len(entries))
	for i, e := range entries {
		types[i] = e.Type
	}
	return types
}
