package agentloop

import (
	"context"
	"errors"

	"github.com/martinemde/grokagent/unifiedllm"
)

var (
	// ErrCancelled ends a stream stopped by s.Cancel or its context.
	ErrCancelled = errors.New("cancelled by user")
	// ErrBusy rejects a stream started while another runs on the session.
	ErrBusy = errors.New("a request is already in progress for this session")
)

// ProcessUserMessageStream runs the loop for one user message and streams
// its progress. The returned channel yields content, tool_calls,
// tool_result and token_count chunks and ends with exactly one done chunk;
// the caller must drain it until it is closed.
//
// Cancelling ctx or calling s.Cancel stops the call before the next model
// request, stream event or tool execution. A tool that has started runs to
// completion.
func (a *Agent) ProcessUserMessageStream(ctx context.Context, s *Session, text string) <-chan StreamChunk {
	em := newChunkEmitter()
	runCtx, cancel := context.WithCancel(ctx)

	if !s.beginStream(cancel) {
		cancel()
		go func() {
			defer em.close(ErrBusy)
			em.content(errorText(ErrBusy))
		}()
		return em.ch
	}

	go func() {
		var failure error
		defer func() { em.close(failure) }()
		defer s.endStream()
		defer cancel()

		err := a.streamTurn(runCtx, s, em, text)
		switch {
		case err == nil:
		case runCtx.Err() != nil || errors.Is(err, ErrCancelled):
			failure = ErrCancelled
			s.appendEntry(NewAssistantEntry(CancelledNotice, nil))
			em.content(CancelledNotice)
		default:
			failure = err
			msg := errorText(err)
			s.appendEntry(NewAssistantEntry(msg, nil))
			em.content(msg)
		}
	}()
	return em.ch
}

func (a *Agent) streamTurn(ctx context.Context, s *Session, em *chunkEmitter, text string) error {
	search := a.beginTurn(s, text)
	em.tokenCount(a.countTokens(s, s.Messages()))

	for s.Rounds() < a.maxRounds {
		if ctx.Err() != nil {
			return ErrCancelled
		}

		content, calls, err := a.streamRound(ctx, s, em, search)
		if err != nil {
			return err
		}

		if len(calls) == 0 {
			a.recordAssistant(s, content, nil)
			em.finish()
			return nil
		}

		em.toolCalls(calls)
		a.recordAssistant(s, content, calls)
		round := s.nextRound()
		a.logger.Debug("tool round", "session", s.ID(), "round", round, "tool_calls", len(calls), "stream", true)

		for i, call := range calls {
			if ctx.Err() != nil {
				a.cancelCalls(s, calls[i:])
				return ErrCancelled
			}
			result := a.runTool(ctx, s, call)
			em.toolResult(call, result)
		}
		a.afterRound(s)
		em.tokenCount(a.countTokens(s, s.Messages()))
	}

	s.appendEntry(NewAssistantEntry(MaxRoundsNotice, nil))
	em.content("\n\n" + MaxRoundsNotice)
	return nil
}

// streamRound consumes one model stream, forwarding text as it arrives and
// accumulating tool calls by id. Nothing is persisted here.
func (a *Agent) streamRound(ctx context.Context, s *Session, em *chunkEmitter, search *unifiedllm.SearchParameters) (string, []unifiedllm.ToolCall, error) {
	events := a.client.CompleteStream(ctx, a.request(s, search))
	defer drain(events)

	acc := unifiedllm.NewStreamAccumulator()
	for {
		if ctx.Err() != nil {
			return "", nil, ErrCancelled
		}
		ev, ok := <-events
		if !ok {
			break
		}
		switch ev.Type {
		case unifiedllm.TextDelta:
			acc.Process(ev)
			if ev.Delta != "" {
				em.content(ev.Delta)
			}
		case unifiedllm.StreamError:
			if ev.Err == nil {
				return "", nil, errors.New("stream failed")
			}
			return "", nil, ev.Err
		case unifiedllm.StreamRestart:
			a.logger.Debug("model stream restarted", "session", s.ID(), "attempt", ev.Attempt)
			acc.Process(ev)
		default:
			acc.Process(ev)
		}
	}
	if ctx.Err() != nil {
		return "", nil, ErrCancelled
	}
	return acc.Text(), acc.ToolCalls(), nil
}

func drain(events <-chan unifiedllm.StreamEvent) {
	go func() {
		for range events {
		}
	}()
}
