package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/martinemde/grokagent/tools"
)

// Editor views, creates and edits text files relative to a working
// directory.
type Editor struct {
	wd workdir
}

// NewEditor creates an editor rooted at dir.
func NewEditor(dir string) *Editor {
	return &Editor{wd: newWorkdir(dir)}
}

// SetWorkingDirectory changes the directory relative paths resolve against.
func (e *Editor) SetWorkingDirectory(dir string) {
	e.wd.set(dir)
}

// WorkingDirectory returns the directory relative paths resolve against.
func (e *Editor) WorkingDirectory() string {
	return e.wd.get()
}

// View shows a file with line numbers, or lists a directory. startLine and
// endLine are 1-based and inclusive; zero means unbounded.
func (e *Editor) View(ctx context.Context, path string, startLine, endLine int) tools.Result {
	resolved := e.wd.resolve(path)
	info, err := os.Stat(resolved)
	if err != nil {
		return tools.Fail("File or directory not found: %s", path)
	}
	if info.IsDir() {
		return listDirectory(resolved, path)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return tools.Fail("Error reading %s: %v", path, err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")

	start := 1
	if startLine > 0 {
		start = startLine
	}
	end := len(lines)
	if endLine > 0 && endLine < end {
		end = endLine
	}
	if start > len(lines) {
		return tools.Fail("Start line %d is beyond the end of %s (%d lines)", start, path, len(lines))
	}
	if start > end {
		return tools.Fail("Invalid line range %d-%d", startLine, endLine)
	}

	var sb strings.Builder
	if startLine > 0 || endLine > 0 {
		fmt.Fprintf(&sb, "Lines %d-%d of %s:\n", start, end, path)
	} else {
		fmt.Fprintf(&sb, "Contents of %s:\n", path)
	}
	for i := start - 1; i < end; i++ {
		fmt.Fprintf(&sb, "%d | %s\n", i+1, lines[i])
	}
	return tools.OK(strings.TrimSuffix(sb.String(), "\n"))
}

func listDirectory(resolved, display string) tools.Result {
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return tools.Fail("Error listing %s: %v", display, err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Directory contents of %s:", display)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		sb.WriteString("\n" + name)
	}
	return tools.OK(sb.String())
}

// Create writes a new file, creating parent directories.
func (e *Editor) Create(ctx context.Context, path, content string) tools.Result {
	resolved := e.wd.resolve(path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return tools.Fail("Error creating directory for %s: %v", path, err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return tools.Fail("Error writing %s: %v", path, err)
	}
	return tools.OK(fmt.Sprintf("Created %s (%d lines)", path, countLines(content)))
}

// Replace substitutes oldText with newText. oldText must occur exactly once
// unless replaceAll is set.
func (e *Editor) Replace(ctx context.Context, path, oldText, newText string, replaceAll bool) tools.Result {
	resolved := e.wd.resolve(path)
	data, err := os.ReadFile(resolved)
	if err != nil {
		return tools.Fail("File not found: %s", path)
	}
	content := string(data)

	count := strings.Count(content, oldText)
	if count == 0 {
		return tools.Fail("String not found in %s", path)
	}
	if count > 1 && !replaceAll {
		return tools.Fail("String found %d times in %s. Include more context to make it unique, or set replace_all", count, path)
	}

	replacements := 1
	if replaceAll {
		content = strings.ReplaceAll(content, oldText, newText)
		replacements = count
	} else {
		content = strings.Replace(content, oldText, newText, 1)
	}

	info, _ := os.Stat(resolved)
	mode := os.FileMode(0o644)
	if info != nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(resolved, []byte(content), mode); err != nil {
		return tools.Fail("Error writing %s: %v", path, err)
	}
	return tools.OK(fmt.Sprintf("Replaced %d occurrence(s) in %s", replacements, path))
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}
