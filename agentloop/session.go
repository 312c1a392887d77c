package agentloop

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/martinemde/grokagent/unifiedllm"
)

// Session holds the state of one conversation: the message history replayed
// to the model, the chat log, the round counter of the current user message,
// and the cancellation handle of an in-flight streaming call. A session must
// not be shared between concurrent conversations.
type Session struct {
	id string

	mu        sync.Mutex
	model     string
	messages  []unifiedllm.Message
	entries   []ChatEntry
	rounds    int
	cancel    context.CancelFunc
	streaming bool
}

func newSession(model, systemPrompt string) *Session {
	s := &Session{
		id:    uuid.New().String(),
		model: model,
	}
	if systemPrompt != "" {
		s.messages = append(s.messages, unifiedllm.SystemMessage(systemPrompt))
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Model returns the model used for subsequent calls.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel changes the model used for subsequent calls.
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// Messages returns a copy of the message history.
func (s *Session) Messages() []unifiedllm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]unifiedllm.Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

// Entries returns a copy of the chat log.
func (s *Session) Entries() []ChatEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]ChatEntry, len(s.entries))
	copy(entries, s.entries)
	return entries
}

// Rounds returns the number of tool rounds run for the latest user message.
func (s *Session) Rounds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rounds
}

// Cancel stops the in-flight streaming call, if any, at its next
// cancellation point. It reports whether a call was in flight. Buffered
// calls are not affected.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Streaming reports whether a streaming call is in flight.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

func (s *Session) beginStream(cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming {
		return false
	}
	s.streaming = true
	s.cancel = cancel
	return true
}

func (s *Session) endStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = false
	s.cancel = nil
}

func (s *Session) appendMessage(msg unifiedllm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *Session) appendEntry(entry ChatEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *Session) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Session) entriesSince(n int) []ChatEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]ChatEntry, len(s.entries)-n)
	copy(entries, s.entries[n:])
	return entries
}

func (s *Session) resetRounds() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds = 0
}

func (s *Session) nextRound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds++
	return s.rounds
}
