package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/martinemde/grokagent/agentloop"
	"github.com/martinemde/grokagent/config"
	"github.com/martinemde/grokagent/tools"
	"github.com/martinemde/grokagent/unifiedllm"
)

const helpText = `Commands:
  /help            show this help
  /clear           start a new conversation
  /model [name]    show or switch the model (the choice is saved)
  /models          list configured models
  /search <query>  ask with live search enabled
  /exit            quit
Press Ctrl-C to cancel a running answer, or at the prompt to quit.`

// headless answers one prompt. Bash commands run without confirmation.
func (a *app) headless(ctx context.Context, prompt string, stream bool, stdout, stderr io.Writer) int {
	if stream {
		var failure error
		for chunk := range a.agent.ProcessUserMessageStream(ctx, a.session, prompt) {
			if chunk.Type == agentloop.ChunkDone {
				failure = chunk.Err
			}
			renderChunk(stdout, chunk)
		}
		if failure != nil {
			fmt.Fprintf(stderr, "grokagent: %v\n", failure)
			return 1
		}
		return 0
	}

	entries, err := a.agent.ProcessUserMessage(ctx, a.session, prompt)
	for _, e := range entries {
		renderEntry(stdout, e)
	}
	if err != nil {
		fmt.Fprintf(stderr, "grokagent: %v\n", err)
		return 1
	}
	return 0
}

// repl reads prompts until EOF, /exit or Ctrl-C at the prompt. Ctrl-C
// while an answer streams cancels that answer only.
func (a *app) repl(ctx context.Context, in *bufio.Reader, out io.Writer, interrupts <-chan os.Signal) int {
	fmt.Fprintf(out, "grokagent (%s) in %s. Type /help for commands.\n", a.session.Model(), a.cfg.WorkingDir)
	tokens := 0
	for {
		fmt.Fprintf(out, "\n%s> ", promptLabel(tokens))
		if interrupted(interrupts) {
			fmt.Fprintln(out)
			return 0
		}
		var line string
		var err error
		select {
		case r := <-readLine(in):
			line, err = r.line, r.err
		case <-interrupts:
			fmt.Fprintln(out)
			return 0
		}
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			fmt.Fprintln(out)
			return 0
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := a.command(ctx, line, out); quit {
				return 0
			}
			continue
		}

		// Drop an interrupt that raced the line.
		interrupted(interrupts)
		stream := a.agent.ProcessUserMessageStream(ctx, a.session, line)
		for done := false; !done; {
			select {
			case chunk, ok := <-stream:
				if !ok {
					done = true
					break
				}
				if chunk.Type == agentloop.ChunkTokenCount {
					tokens = chunk.TokenCount
				}
				renderChunk(out, chunk)
			case <-interrupts:
				a.session.Cancel()
			}
		}
		// A second Ctrl-C during the answer must not quit at the prompt.
		interrupted(interrupts)
	}
}

// interrupted consumes a pending interrupt, if any.
func interrupted(interrupts <-chan os.Signal) bool {
	select {
	case <-interrupts:
		return true
	default:
		return false
	}
}

type lineResult struct {
	line string
	err  error
}

// readLine reads one line in the background so the caller can wait for an
// interrupt at the same time. The caller must receive the result before
// anything else reads from in.
func readLine(in *bufio.Reader) <-chan lineResult {
	ch := make(chan lineResult, 1)
	go func() {
		line, err := in.ReadString('\n')
		ch <- lineResult{line: line, err: err}
	}()
	return ch
}

// command runs a slash command and reports whether the REPL should exit.
func (a *app) command(ctx context.Context, line string, out io.Writer) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/exit", "/quit":
		return true
	case "/help":
		fmt.Fprintln(out, helpText)
	case "/clear":
		a.session = a.agent.NewSession()
		a.session.SetModel(a.model)
		fmt.Fprintln(out, "Started a new conversation.")
	case "/models":
		for _, m := range a.modelChoices() {
			marker := " "
			if m == a.session.Model() {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, m)
		}
	case "/model":
		if arg == "" {
			fmt.Fprintln(out, a.session.Model())
			return false
		}
		a.model = arg
		a.session.SetModel(arg)
		if err := a.saveModel(arg); err != nil {
			a.logger.Warn("saving model choice", "error", err)
		}
		fmt.Fprintf(out, "Switched to %s.\n", arg)
	case "/search":
		if arg == "" {
			fmt.Fprintln(out, "usage: /search <query>")
			return false
		}
		resp, err := a.client.Search(ctx, arg, nil)
		if err != nil {
			fmt.Fprintf(out, "Search failed: %v\n", err)
			return false
		}
		fmt.Fprintln(out, resp.Text())
	default:
		fmt.Fprintf(out, "Unknown command %s. Type /help for commands.\n", name)
	}
	return false
}

func (a *app) modelChoices() []string {
	if len(a.cfg.Models) > 0 {
		return a.cfg.Models
	}
	var ids []string
	for _, m := range unifiedllm.Models {
		ids = append(ids, m.ID)
	}
	return ids
}

func (a *app) saveModel(model string) error {
	settings, err := config.LoadSettings(a.cfg.SettingsFile)
	if err != nil {
		return err
	}
	settings.DefaultModel = model
	return config.SaveSettings(a.cfg.SettingsFile, settings)
}

func promptLabel(tokens int) string {
	if tokens == 0 {
		return "grok"
	}
	return fmt.Sprintf("grok [%d tokens]", tokens)
}

func renderChunk(out io.Writer, chunk agentloop.StreamChunk) {
	switch chunk.Type {
	case agentloop.ChunkContent:
		fmt.Fprint(out, chunk.Content)
	case agentloop.ChunkToolCalls:
		for _, call := range chunk.ToolCalls {
			fmt.Fprintf(out, "\n> %s %s\n", call.Name, call.Arguments)
		}
	case agentloop.ChunkToolResult:
		if chunk.ToolResult != nil {
			fmt.Fprintf(out, "  %s\n", summarize(chunk.ToolResult.Text()))
		}
	case agentloop.ChunkDone:
		fmt.Fprintln(out)
	}
}

func renderEntry(out io.Writer, e agentloop.ChatEntry) {
	switch e.Type {
	case agentloop.EntryAssistant:
		if e.Content != "" {
			fmt.Fprintln(out, e.Content)
		}
	case agentloop.EntryToolCall:
		if e.ToolCall != nil {
			fmt.Fprintf(out, "> %s %s\n", e.ToolCall.Name, e.ToolCall.Arguments)
		}
	case agentloop.EntryToolResult:
		fmt.Fprintf(out, "  %s\n", summarize(e.Content))
	}
}

// summarize shortens tool output to its first line.
func summarize(text string) string {
	first, rest, multi := strings.Cut(strings.TrimSpace(text), "\n")
	if len(first) > 160 {
		first = first[:160] + "..."
	}
	if multi {
		first += fmt.Sprintf(" (+%d lines)", strings.Count(rest, "\n")+1)
	}
	return first
}

// linePrompter asks for bash approval on the terminal.
type linePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *linePrompter) Confirm(ctx context.Context, req tools.ConfirmationRequest) (tools.ConfirmationResponse, error) {
	fmt.Fprintf(p.out, "\n%s: %s\n[y]es / [n]o / [a]lways for this session: ", req.Operation, req.Detail)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return tools.ConfirmationResponse{}, err
	}
	return parseAnswer(line), nil
}

// parseAnswer maps y, n or a to a response. Text after a rejection is
// passed back to the model as feedback.
func parseAnswer(line string) tools.ConfirmationResponse {
	answer := strings.TrimSpace(line)
	lower := strings.ToLower(answer)
	switch {
	case lower == "y" || lower == "yes":
		return tools.ConfirmationResponse{Confirmed: true}
	case lower == "a" || lower == "always":
		return tools.ConfirmationResponse{Confirmed: true, AlwaysAllow: true}
	case lower == "n" || lower == "no" || lower == "":
		return tools.ConfirmationResponse{}
	default:
		return tools.ConfirmationResponse{Feedback: answer}
	}
}
