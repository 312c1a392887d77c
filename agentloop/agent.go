package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/martinemde/grokagent/tools"
	"github.com/martinemde/grokagent/unifiedllm"
)

// DefaultMaxToolRounds bounds the tool rounds run for one user message.
const DefaultMaxToolRounds = 400

// User-visible notices added to the chat log.
const (
	MaxRoundsNotice = "Maximum tool execution rounds reached. Stopping to prevent infinite loops."
	CancelledNotice = "\n\n[Operation cancelled by user]"
	CancelledResult = "Cancelled by user"
	errorPrefix     = "Sorry, I encountered an error: "
)

// ModelClient is the model transport the agent talks to. *unifiedllm.Client
// implements it.
type ModelClient interface {
	Complete(ctx context.Context, req unifiedllm.Request) (*unifiedllm.Response, error)
	CompleteStream(ctx context.Context, req unifiedllm.Request) <-chan unifiedllm.StreamEvent
}

// ToolExecutor declares and runs tools. *tools.Dispatcher implements it.
type ToolExecutor interface {
	Definitions() []unifiedllm.ToolDefinition
	Execute(ctx context.Context, call unifiedllm.ToolCall) tools.Result
}

// Agent runs the tool-calling loop. It holds no conversation state: every
// operation takes the Session it acts on.
type Agent struct {
	client       ModelClient
	tools        ToolExecutor
	model        string
	maxRounds    int
	systemPrompt string
	newCounter   func(model string) TokenCounter
	counterMu    sync.Mutex
	counters     map[string]TokenCounter
	logger       *slog.Logger
	loopWindow   int
	charLimits   map[string]int
	lineLimits   map[string]int
}

// Option configures an Agent.
type Option func(*Agent)

// WithModel sets the model new sessions start with.
func WithModel(model string) Option {
	return func(a *Agent) {
		a.model = model
	}
}

// WithMaxToolRounds overrides DefaultMaxToolRounds.
func WithMaxToolRounds(n int) Option {
	return func(a *Agent) {
		a.maxRounds = n
	}
}

// WithSystemPrompt sets the system message new sessions start with.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// WithTokenCounter sets the counter behind token_count chunks for every
// model.
func WithTokenCounter(counter TokenCounter) Option {
	return WithTokenCounterFactory(func(string) TokenCounter { return counter })
}

// WithTokenCounterFactory builds a counter the first time a session uses a
// model, so switching models switches encodings.
func WithTokenCounterFactory(newCounter func(model string) TokenCounter) Option {
	return func(a *Agent) {
		a.newCounter = newCounter
	}
}

// WithLogger sets the agent's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithLoopDetection sets the number of recent tool calls inspected for
// repetition. Zero disables detection.
func WithLoopDetection(window int) Option {
	return func(a *Agent) {
		a.loopWindow = window
	}
}

// WithToolOutputLimits overrides the per-tool character and line limits
// applied to results before they enter the history.
func WithToolOutputLimits(charLimits, lineLimits map[string]int) Option {
	return func(a *Agent) {
		a.charLimits = charLimits
		a.lineLimits = lineLimits
	}
}

// NewAgent creates an agent that asks client and runs tools through executor.
func NewAgent(client ModelClient, executor ToolExecutor, opts ...Option) *Agent {
	a := &Agent{
		client:     client,
		tools:      executor,
		model:      unifiedllm.DefaultModel,
		maxRounds:  DefaultMaxToolRounds,
		newCounter: func(string) TokenCounter { return HeuristicCounter{} },
		counters:   make(map[string]TokenCounter),
		logger:     slog.Default(),
		loopWindow: 10,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxRounds < 1 {
		a.maxRounds = 1
	}
	return a
}

// NewSession starts an empty conversation.
func (a *Agent) NewSession() *Session {
	return newSession(a.model, a.systemPrompt)
}

// countTokens counts msgs with the counter for the session's model.
func (a *Agent) countTokens(s *Session, msgs []unifiedllm.Message) int {
	model := s.Model()
	a.counterMu.Lock()
	c, ok := a.counters[model]
	if !ok {
		c = a.newCounter(model)
		a.counters[model] = c
	}
	a.counterMu.Unlock()
	return c.CountMessages(msgs)
}

// ProcessUserMessage runs the loop for one user message without streaming
// and returns the chat entries it added. A transport failure ends the loop
// with an *unifiedllm.APIError; reaching the round limit is not an error.
func (a *Agent) ProcessUserMessage(ctx context.Context, s *Session, text string) ([]ChatEntry, error) {
	start := s.entryCount()
	search := a.beginTurn(s, text)

	for s.Rounds() < a.maxRounds {
		resp, err := a.client.Complete(ctx, a.request(s, search))
		if err != nil {
			apiErr := unifiedllm.AsAPIError(err)
			s.appendEntry(NewAssistantEntry(errorPrefix+apiErr.Info.Message, nil))
			return s.entriesSince(start), apiErr
		}

		calls := resp.ToolCalls()
		a.recordAssistant(s, resp.Text(), calls)
		if len(calls) == 0 {
			return s.entriesSince(start), nil
		}

		round := s.nextRound()
		a.logger.Debug("tool round", "session", s.ID(), "round", round, "tool_calls", len(calls))
		for _, call := range calls {
			a.runTool(ctx, s, call)
		}
		a.afterRound(s)
	}

	s.appendEntry(NewAssistantEntry(MaxRoundsNotice, nil))
	return s.entriesSince(start), nil
}

// beginTurn records the user message and returns the search directive that
// applies to every round it triggers.
func (a *Agent) beginTurn(s *Session, text string) *unifiedllm.SearchParameters {
	s.resetRounds()
	s.appendMessage(unifiedllm.UserMessage(text))
	s.appendEntry(NewUserEntry(text))
	return unifiedllm.SearchDirectiveFor(s.Model(), text)
}

func (a *Agent) request(s *Session, search *unifiedllm.SearchParameters) unifiedllm.Request {
	req := unifiedllm.Request{
		Model:    s.Model(),
		Messages: s.Messages(),
		Search:   search,
	}
	if a.tools != nil {
		req.Tools = a.tools.Definitions()
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}
	return req
}

func (a *Agent) recordAssistant(s *Session, text string, calls []unifiedllm.ToolCall) {
	s.appendMessage(unifiedllm.AssistantMessage(text, calls...))
	s.appendEntry(NewAssistantEntry(text, calls))
}

// runTool executes one call to completion and records its result. The call
// is not interrupted by cancellation once started.
func (a *Agent) runTool(ctx context.Context, s *Session, call unifiedllm.ToolCall) tools.Result {
	s.appendEntry(NewToolCallEntry(call))

	var result tools.Result
	if a.tools == nil {
		result = tools.Fail("Unknown tool: %s", call.Name)
	} else {
		result = a.tools.Execute(context.WithoutCancel(ctx), call)
	}

	a.recordResult(s, call, result)
	return result
}

// recordResult appends the truncated result to the history and the full
// result to the chat log.
func (a *Agent) recordResult(s *Session, call unifiedllm.ToolCall, result tools.Result) {
	output := result.ToolOutput()
	output.Value = TruncateToolOutput(output.Value, call.Name, a.charLimits, a.lineLimits)
	s.appendMessage(unifiedllm.ToolResultMessage(call.ID, call.Name, output))
	s.appendEntry(NewToolResultEntry(call, result))
}

// cancelCalls answers calls that will not run so every tool call in the
// history keeps a matching result.
func (a *Agent) cancelCalls(s *Session, calls []unifiedllm.ToolCall) {
	for _, call := range calls {
		a.recordResult(s, call, tools.Fail(CancelledResult))
	}
}

// afterRound runs the checks that follow each tool round.
func (a *Agent) afterRound(s *Session) {
	msgs := s.Messages()
	if a.loopWindow > 0 && DetectLoop(msgs, a.loopWindow) {
		a.logger.Warn("tool calls are repeating", "session", s.ID(), "window", a.loopWindow)
	}

	window := unifiedllm.ContextWindow(s.Model())
	if used := a.countTokens(s, msgs); used > window*8/10 {
		a.logger.Warn("context window nearly full", "session", s.ID(), "tokens", used, "window", window)
	}
}

// errorText returns the user-facing text of a loop failure.
func errorText(err error) string {
	var apiErr *unifiedllm.APIError
	if errors.As(err, &apiErr) {
		return errorPrefix + apiErr.Info.Message
	}
	return fmt.Sprintf("%s%v", errorPrefix, err)
}
