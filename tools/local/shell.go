package local

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/martinemde/grokagent/tools"
)

// DefaultCommandTimeout bounds a single bash command.
const DefaultCommandTimeout = 30 * time.Second

// Shell runs bash commands. A bare "cd" command changes the directory used
// by later commands instead of spawning a process.
type Shell struct {
	wd      workdir
	timeout time.Duration
	env     map[string]string
}

// ShellOption configures a Shell.
type ShellOption func(*Shell)

// WithCommandTimeout overrides DefaultCommandTimeout.
func WithCommandTimeout(d time.Duration) ShellOption {
	return func(s *Shell) {
		s.timeout = d
	}
}

// WithEnv adds variables to every command's environment.
func WithEnv(env map[string]string) ShellOption {
	return func(s *Shell) {
		s.env = env
	}
}

// NewShell creates a shell rooted at dir, or the process directory when dir
// is empty.
func NewShell(dir string, opts ...ShellOption) *Shell {
	s := &Shell{
		wd:      newWorkdir(dir),
		timeout: DefaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WorkingDirectory returns the directory commands run in.
func (s *Shell) WorkingDirectory() string {
	return s.wd.get()
}

// Run executes command.
func (s *Shell) Run(ctx context.Context, command string) tools.Result {
	command = strings.TrimSpace(command)
	if target, ok := parseCd(command); ok {
		return s.changeDirectory(target)
	}

	res, err := runBash(ctx, command, s.wd.get(), s.timeout, s.env)
	if err != nil {
		if ctx.Err() != nil {
			return tools.Fail("Command cancelled")
		}
		return tools.Fail("Command execution error: %v", err)
	}

	output := strings.TrimRight(res.output(), "\n")
	switch {
	case res.timedOut:
		if output == "" {
			return tools.Fail("Command timed out after %s", s.timeout)
		}
		return tools.Fail("Command timed out after %s. Partial output:\n%s", s.timeout, output)
	case res.exitCode != 0:
		return tools.Fail("Command failed (exit code %d): %s", res.exitCode, output)
	case output == "":
		return tools.OK("Command executed successfully (no output)")
	}
	return tools.OK(output)
}

func (s *Shell) changeDirectory(target string) tools.Result {
	if target == "" {
		target = "~"
	}
	dir := s.wd.resolve(target)
	info, err := os.Stat(dir)
	if err != nil {
		return tools.Fail("Cannot change directory: %v", err)
	}
	if !info.IsDir() {
		return tools.Fail("Cannot change directory: %s is not a directory", dir)
	}
	s.wd.set(dir)
	return tools.OK(fmt.Sprintf("Changed directory to: %s", dir))
}

// parseCd recognises a lone "cd [dir]" command. Compound commands such as
// "cd x && make" run in a subshell and leave the directory unchanged.
func parseCd(command string) (string, bool) {
	if command == "cd" {
		return "", true
	}
	rest, ok := strings.CutPrefix(command, "cd ")
	if !ok || strings.ContainsAny(rest, ";&|") {
		return "", false
	}
	return strings.Trim(strings.TrimSpace(rest), `"'`), true
}
