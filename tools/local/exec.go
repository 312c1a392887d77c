package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/martinemde/grokagent/tools"
)

// commandResult is what a finished bash process left behind.
type commandResult struct {
	stdout   string
	stderr   string
	exitCode int
	timedOut bool
}

// output joins stdout and stderr, separated by a newline when both are set.
func (r commandResult) output() string {
	switch {
	case r.stderr == "":
		return r.stdout
	case r.stdout == "":
		return r.stderr
	}
	return r.stdout + "\n" + r.stderr
}

// runBash runs command with bash -c in dir. The command gets its own
// process group so a timeout or cancellation kills everything it spawned.
// A cancelled ctx is returned as an error; a timeout is reported in the
// result.
func runBash(ctx context.Context, command, dir string, timeout time.Duration, env map[string]string) (commandResult, error) {
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, "/bin/bash", "-c", command)
	cmd.Dir = dir
	cmd.Env = tools.SafeEnviron(env)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL) }
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	res := commandResult{stdout: stdout.String(), stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.timedOut, res.exitCode = true, -1
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.exitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("exec: %w", err)
}
