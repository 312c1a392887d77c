// Command grokagent is a terminal coding agent backed by Grok.
//
// With -p it answers one prompt and exits; otherwise it reads prompts from
// stdin and streams each answer.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/martinemde/grokagent/agentloop"
	"github.com/martinemde/grokagent/config"
	"github.com/martinemde/grokagent/logging"
	"github.com/martinemde/grokagent/mcp"
	"github.com/martinemde/grokagent/tools"
	"github.com/martinemde/grokagent/tools/local"
	"github.com/martinemde/grokagent/unifiedllm"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type cliFlags struct {
	prompt  string
	stream  bool
	verbose bool
	config  config.Flags
}

func parseFlags(args []string, stderr io.Writer) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("grokagent", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.prompt, "p", "", "answer a single prompt and exit")
	fs.BoolVar(&f.stream, "stream", false, "stream the answer to -p as it arrives")
	fs.StringVar(&f.config.WorkingDir, "d", "", "working directory")
	fs.StringVar(&f.config.Model, "m", "", "model to use")
	fs.StringVar(&f.config.BaseURL, "u", "", "API base URL")
	fs.StringVar(&f.config.APIKey, "k", "", "API key")
	fs.BoolVar(&f.verbose, "v", false, "log debug output and response bodies")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	f.config.Verbose = f.verbose
	return f, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	cfg, err := config.Load(config.Options{Flags: f.config})
	if err != nil {
		fmt.Fprintf(stderr, "grokagent: %v\n", err)
		return 1
	}
	if err := os.Chdir(cfg.WorkingDir); err != nil {
		fmt.Fprintf(stderr, "grokagent: %v\n", err)
		return 1
	}

	logger := logging.New(logging.Options{
		Writer:  stderr,
		Level:   logging.ParseLevel(cfg.LogLevel),
		Format:  cfg.LogFormat,
		Verbose: cfg.Verbose,
	})
	slog.SetDefault(logger)

	ctx := context.Background()
	input := bufio.NewReader(stdin)

	var prompter tools.Prompter
	if f.prompt == "" {
		prompter = &linePrompter{in: input, out: stdout}
	}
	app, err := newApp(ctx, cfg, logger, prompter)
	if err != nil {
		fmt.Fprintf(stderr, "grokagent: %v\n", err)
		return 1
	}
	defer app.close()

	if f.prompt != "" {
		return app.headless(ctx, f.prompt, f.stream, stdout, stderr)
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	return app.repl(ctx, input, stdout, interrupts)
}

// app holds the wired components of one run. model is the model chosen
// with /model; it outlives /clear.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *unifiedllm.Client
	mcp     *mcp.Manager
	agent   *agentloop.Agent
	session *agentloop.Session
	model   string
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, prompter tools.Prompter) (*app, error) {
	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	manager := mcp.NewManager(mcp.WithLogger(logger))
	if len(cfg.MCPServers) > 0 {
		if err := manager.ConnectAll(ctx, cfg.MCPServers); err != nil {
			logger.Warn("some MCP servers failed to connect", "error", err)
		}
	}

	dispatcher := tools.NewDispatcher(tools.WithRemote(manager), tools.WithDispatcherLogger(logger))
	collab := tools.Collaborators{
		Editor:  local.NewEditor(cfg.WorkingDir),
		Shell:   local.NewShell(cfg.WorkingDir),
		Search:  local.NewSearcher(cfg.WorkingDir),
		Todos:   local.NewTodoList(),
		Confirm: tools.NewConfirmationService(prompter),
	}
	if cfg.MorphAPIKey != "" {
		collab.FastApply = local.NewMorphEditor(cfg.MorphAPIKey, cfg.WorkingDir)
	}
	tools.RegisterBuiltins(dispatcher, collab)

	counterFor := func(model string) agentloop.TokenCounter {
		counter, err := agentloop.NewTiktokenCounter(model)
		if err != nil {
			logger.Debug("token encoding unavailable, estimating", "model", model, "error", err)
		}
		return counter
	}

	prompt := agentloop.BuildSystemPrompt(agentloop.PromptContext{
		WorkingDir:         cfg.WorkingDir,
		Model:              cfg.Model,
		Tools:              dispatcher.Definitions(),
		CustomInstructions: agentloop.LoadCustomInstructions(cfg.WorkingDir),
	})

	agent := agentloop.NewAgent(client, dispatcher,
		agentloop.WithModel(cfg.Model),
		agentloop.WithMaxToolRounds(cfg.MaxToolRounds),
		agentloop.WithSystemPrompt(prompt),
		agentloop.WithTokenCounterFactory(counterFor),
		agentloop.WithLogger(logger),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		mcp:     manager,
		agent:   agent,
		session: agent.NewSession(),
		model:   cfg.Model,
	}, nil
}

// newClient builds the transport. The xai provider talks to the
// OpenAI-compatible endpoint directly; any other provider goes through
// gollm.
func newClient(cfg *config.Config, logger *slog.Logger) (*unifiedllm.Client, error) {
	opts := []unifiedllm.ClientOption{
		unifiedllm.WithDefaultProvider(cfg.Provider),
		unifiedllm.WithDefaultModel(cfg.Model),
		unifiedllm.WithLogger(logger),
		unifiedllm.WithVerbose(cfg.Verbose),
	}

	if cfg.Provider == config.DefaultProvider {
		adapter := unifiedllm.NewOpenAIAdapter(cfg.Provider, cfg.APIKey,
			unifiedllm.WithBaseURL(cfg.BaseURL),
			unifiedllm.WithRequestTimeout(cfg.RequestTimeout),
			unifiedllm.WithDefaultTemperature(cfg.Temperature),
			unifiedllm.WithDefaultMaxTokens(cfg.MaxTokens),
		)
		return unifiedllm.NewClient(append(opts, unifiedllm.WithProvider(cfg.Provider, adapter))...), nil
	}

	gollmOpts := []unifiedllm.GollmAdapterOption{
		unifiedllm.WithModel(cfg.Model),
		unifiedllm.WithTemperature(cfg.Temperature),
	}
	if cfg.MaxTokens > 0 {
		gollmOpts = append(gollmOpts, unifiedllm.WithMaxTokens(cfg.MaxTokens))
	}
	adapter, err := unifiedllm.NewGollmAdapter(cfg.Provider, cfg.APIKey, gollmOpts...)
	if err != nil {
		return nil, err
	}
	// gollm has no per-request timeout, so the client enforces one.
	complete, stream := unifiedllm.AttemptTimeout(cfg.RequestTimeout)
	return unifiedllm.NewClient(append(opts,
		unifiedllm.WithProvider(cfg.Provider, adapter),
		unifiedllm.WithMiddleware(complete),
		unifiedllm.WithStreamMiddleware(stream),
	)...), nil
}

func (a *app) close() {
	if err := a.mcp.Close(); err != nil {
		a.logger.Warn("closing MCP servers", "error", err)
	}
	if err := a.client.Close(); err != nil {
		a.logger.Warn("closing model client", "error", err)
	}
}
