package agentloop

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/martinemde/grokagent/unifiedllm"
)

// maxInstructionBytes caps custom instructions loaded into the prompt.
const maxInstructionBytes = 32 * 1024

// InstructionsFile is the per-project instruction file, relative to a
// directory on the path from the working directory up to the root.
var InstructionsFile = filepath.Join(".grok", "GROK.md")

// PromptContext is the input to BuildSystemPrompt.
type PromptContext struct {
	WorkingDir         string
	Model              string
	Tools              []unifiedllm.ToolDefinition
	CustomInstructions string
}

// BuildSystemPrompt assembles the system message: base instructions, the
// environment and git state, the tool list, then custom instructions.
func BuildSystemPrompt(pc PromptContext) string {
	var sb strings.Builder

	if pc.CustomInstructions != "" {
		sb.WriteString("# Custom Instructions\n\n")
		sb.WriteString(pc.CustomInstructions)
		sb.WriteString("\n\nThe above custom instructions should be followed alongside the standard instructions below.\n\n")
	}

	sb.WriteString(basePrompt)
	sb.WriteString("\n\n")

	sb.WriteString(BuildEnvironmentContext(pc.WorkingDir, pc.Model))
	sb.WriteString("\n\n")

	if gitCtx := GetGitContext(pc.WorkingDir); gitCtx != "" {
		sb.WriteString(gitCtx)
		sb.WriteString("\n\n")
	}

	if len(pc.Tools) > 0 {
		sb.WriteString("# Available Tools\n\n")
		for _, def := range pc.Tools {
			fmt.Fprintf(&sb, "## %s\n%s\n\n", def.Name, def.Description)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// LoadCustomInstructions returns the nearest InstructionsFile found walking
// up from workingDir, truncated at 32KB. It returns "" when none exists.
func LoadCustomInstructions(workingDir string) string {
	dir, err := filepath.Abs(workingDir)
	if err != nil {
		return ""
	}
	for {
		content, err := os.ReadFile(filepath.Join(dir, InstructionsFile))
		if err == nil {
			text := strings.TrimSpace(string(content))
			if len(text) > maxInstructionBytes {
				text = text[:maxInstructionBytes] + "\n[Custom instructions truncated at 32KB]"
			}
			return text
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// BuildEnvironmentContext describes where the agent is running.
func BuildEnvironmentContext(workingDir, model string) string {
	inRepo := git(workingDir, "rev-parse", "--is-inside-work-tree") == "true"

	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", workingDir)
	fmt.Fprintf(&sb, "Is git repository: %v\n", inRepo)
	if inRepo {
		if branch := git(workingDir, "rev-parse", "--abbrev-ref", "HEAD"); branch != "" {
			fmt.Fprintf(&sb, "Git branch: %s\n", branch)
		}
	}
	fmt.Fprintf(&sb, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	sb.WriteString("</environment>")
	return sb.String()
}

// GetGitContext summarizes the repository containing workingDir, or
// returns "" outside a repository.
func GetGitContext(workingDir string) string {
	root := git(workingDir, "rev-parse", "--show-toplevel")
	if root == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("<git_context>\n")
	if branch := git(root, "rev-parse", "--abbrev-ref", "HEAD"); branch != "" {
		fmt.Fprintf(&sb, "Branch: %s\n", branch)
	}
	if status := git(root, "status", "--short"); status != "" {
		fmt.Fprintf(&sb, "Modified/untracked files: %d\n", strings.Count(status, "\n")+1)
	}
	if log := git(root, "log", "--oneline", "-5"); log != "" {
		fmt.Fprintf(&sb, "Recent commits:\n%s\n", log)
	}
	sb.WriteString("</git_context>")
	return sb.String()
}

// git runs a git subcommand in dir and returns its trimmed output, or ""
// on any failure.
func git(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

const basePrompt = `You are Grok CLI, an AI assistant that helps with file editing, coding tasks, and system operations.

# Core Principles

- Use view_file to read a file before editing it.
- Use str_replace_editor to change existing files. old_str must match the file exactly and be unique unless replace_all is set.
- Use create_file only for files that do not exist yet. Never use it to overwrite an existing file.
- Use edit_file, when available, for larger edits described as an instruction plus a sketch of the updated code.
- Use bash for commands, builds and tests. cd changes the working directory for every later tool call.
- Use search, grep and glob to locate code before reading it.
- For multi-step work, keep a todo list with create_todo_list and update it with update_todo_list as you go.

# Error Handling

- If a tool call fails, read the error and try a different approach.
- If str_replace_editor cannot find old_str, view the file again to get its current content.
- Commands may require user confirmation. If one is rejected, do not retry it unchanged.

Keep responses concise and focused on the task.`
