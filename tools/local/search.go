package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/martinemde/grokagent/tools"
)

const (
	defaultGrepLimit   = 100
	defaultSearchLimit = 50
	maxGlobResults     = 500
)

// skippedDirs are never descended into by file walks.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

// Searcher finds files by name or pattern and searches file contents. Content
// search uses ripgrep when it is installed and grep otherwise.
type Searcher struct {
	wd     workdir
	rgPath string
}

// NewSearcher creates a searcher rooted at dir.
func NewSearcher(dir string) *Searcher {
	rg, _ := exec.LookPath("rg")
	return &Searcher{wd: newWorkdir(dir), rgPath: rg}
}

// SetWorkingDirectory changes the default search root.
func (s *Searcher) SetWorkingDirectory(dir string) {
	s.wd.set(dir)
}

// WorkingDirectory returns the default search root.
func (s *Searcher) WorkingDirectory() string {
	return s.wd.get()
}

// Glob returns files under dir matching pattern. "**" matches any number of
// directories.
func (s *Searcher) Glob(ctx context.Context, pattern, dir string) tools.Result {
	root := s.root(dir)
	if _, err := matchSegments(splitPattern(pattern), nil); err != nil {
		return tools.Fail("Invalid glob pattern %q: %v", pattern, err)
	}

	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() && path != root && skippedDirs[d.Name()] {
			return filepath.SkipDir
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		ok, _ := matchSegments(splitPattern(pattern), strings.Split(filepath.ToSlash(rel), "/"))
		if ok {
			matches = append(matches, s.wd.rel(path))
		}
		return nil
	})
	if err != nil {
		return tools.Fail("Glob error: %v", err)
	}
	if len(matches) == 0 {
		return tools.OK(fmt.Sprintf("No files matching %s", pattern))
	}

	sort.Strings(matches)
	truncated := len(matches) > maxGlobResults
	if truncated {
		matches = matches[:maxGlobResults]
	}
	out := strings.Join(matches, "\n")
	if truncated {
		out += fmt.Sprintf("\n[showing first %d matches]", maxGlobResults)
	}
	return tools.OK(out)
}

func splitPattern(pattern string) []string {
	return strings.Split(strings.Trim(filepath.ToSlash(pattern), "/"), "/")
}

// matchSegments matches path segments against pattern segments, letting a
// "**" segment absorb zero or more path segments.
func matchSegments(pattern, path []string) (bool, error) {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(path); i++ {
				if ok, err := matchSegments(rest, path[i:]); ok || err != nil {
					return ok, err
				}
			}
			return false, nil
		}
		if len(path) == 0 {
			// Validate the remaining pattern even without a path to match.
			_, err := filepath.Match(pattern[0], "")
			return false, err
		}
		ok, err := filepath.Match(pattern[0], path[0])
		if err != nil || !ok {
			return false, err
		}
		pattern, path = pattern[1:], path[1:]
	}
	return len(path) == 0, nil
}

// Grep searches file contents for a regular expression.
func (s *Searcher) Grep(ctx context.Context, q tools.GrepQuery) tools.Result {
	tq := textQuery{
		pattern:    q.Pattern,
		ignoreCase: q.IgnoreCase,
		limit:      q.Limit,
	}
	if q.Include != "" {
		tq.includes = []string{q.Include}
	}
	if tq.limit <= 0 {
		tq.limit = defaultGrepLimit
	}

	lines, err := s.searchText(ctx, s.root(q.Dir), tq)
	if err != nil {
		return tools.Fail("Search error: %v", err)
	}
	if len(lines) == 0 {
		return tools.OK(fmt.Sprintf("No matches found for %s", q.Pattern))
	}
	return tools.OK(strings.Join(lines, "\n"))
}

// Search runs a text search, a file-name search, or both.
func (s *Searcher) Search(ctx context.Context, q tools.SearchQuery) tools.Result {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	kind := q.Type
	if kind == "" {
		kind = "both"
	}
	root := s.wd.get()

	var files, text []string
	if kind == "files" || kind == "both" {
		var err error
		files, err = s.searchFiles(ctx, root, q, limit)
		if err != nil {
			return tools.Fail("Search error: %v", err)
		}
	}
	if kind == "text" || kind == "both" {
		tq := textQuery{
			pattern:    q.Query,
			fixed:      !q.Regex,
			ignoreCase: !q.CaseSensitive,
			wholeWord:  q.WholeWord,
			hidden:     q.IncludeHidden,
			limit:      limit,
		}
		if q.Include != "" {
			tq.includes = append(tq.includes, q.Include)
		}
		for _, ext := range q.FileTypes {
			tq.includes = append(tq.includes, "*."+strings.TrimPrefix(ext, "."))
		}
		if q.Exclude != "" {
			tq.excludes = []string{q.Exclude}
		}
		var err error
		text, err = s.searchText(ctx, root, tq)
		if err != nil {
			return tools.Fail("Search error: %v", err)
		}
	}

	if len(files) == 0 && len(text) == 0 {
		return tools.OK(fmt.Sprintf("No results found for %q", q.Query))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for %q", len(files)+len(text), q.Query)
	if len(files) > 0 {
		sb.WriteString("\n\nFiles:")
		for _, f := range files {
			sb.WriteString("\n  " + f)
		}
	}
	if len(text) > 0 {
		sb.WriteString("\n\nText matches:")
		for _, line := range text {
			sb.WriteString("\n  " + line)
		}
	}
	return tools.OK(sb.String())
}

// searchFiles walks root for files whose name contains the query.
func (s *Searcher) searchFiles(ctx context.Context, root string, q tools.SearchQuery, limit int) ([]string, error) {
	needle := q.Query
	if !q.CaseSensitive {
		needle = strings.ToLower(needle)
	}
	exts := make(map[string]bool, len(q.FileTypes))
	for _, ext := range q.FileTypes {
		exts["."+strings.TrimPrefix(ext, ".")] = true
	}

	var found []string
	errLimit := errors.New("limit reached")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if path != root && (skippedDirs[name] || (!q.IncludeHidden && strings.HasPrefix(name, "."))) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if len(exts) > 0 && !exts[filepath.Ext(name)] {
			return nil
		}
		if q.Include != "" {
			if ok, _ := filepath.Match(q.Include, name); !ok {
				return nil
			}
		}
		if q.Exclude != "" {
			if ok, _ := filepath.Match(q.Exclude, name); ok {
				return nil
			}
		}
		candidate := name
		if !q.CaseSensitive {
			candidate = strings.ToLower(candidate)
		}
		if strings.Contains(candidate, needle) {
			found = append(found, s.wd.rel(path))
			if len(found) >= limit {
				return errLimit
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

// textQuery is a content search shared by Grep and Search.
type textQuery struct {
	pattern    string
	fixed      bool
	ignoreCase bool
	wholeWord  bool
	hidden     bool
	includes   []string
	excludes   []string
	limit      int
}

func (q textQuery) rgArgs() []string {
	args := []string{"--line-number", "--no-heading", "--color", "never"}
	if q.fixed {
		args = append(args, "--fixed-strings")
	}
	if q.ignoreCase {
		args = append(args, "-i")
	}
	if q.wholeWord {
		args = append(args, "-w")
	}
	if q.hidden {
		args = append(args, "--hidden")
	}
	for _, g := range q.includes {
		args = append(args, "--glob", g)
	}
	for _, g := range q.excludes {
		args = append(args, "--glob", "!"+g)
	}
	return append(args, "--", q.pattern)
}

func (q textQuery) grepArgs() []string {
	args := []string{"-rn", "--exclude-dir=.git", "--exclude-dir=node_modules"}
	if q.fixed {
		args = append(args, "-F")
	} else {
		args = append(args, "-E")
	}
	if q.ignoreCase {
		args = append(args, "-i")
	}
	if q.wholeWord {
		args = append(args, "-w")
	}
	for _, g := range q.includes {
		args = append(args, "--include="+g)
	}
	for _, g := range q.excludes {
		args = append(args, "--exclude="+g)
	}
	return append(args, "-e", q.pattern)
}

// searchText runs ripgrep, or grep as a fallback, and returns at most
// q.limit matching lines.
func (s *Searcher) searchText(ctx context.Context, target string, q textQuery) ([]string, error) {
	dir, pathArg := target, "."
	if info, err := os.Stat(target); err != nil {
		return nil, fmt.Errorf("path not found: %s", target)
	} else if !info.IsDir() {
		dir, pathArg = s.wd.get(), target
	}

	var cmd *exec.Cmd
	if s.rgPath != "" {
		cmd = exec.CommandContext(ctx, s.rgPath, append(q.rgArgs(), pathArg)...)
	} else {
		cmd = exec.CommandContext(ctx, "grep", append(q.grepArgs(), pathArg)...)
	}
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Exit status 1 means no matches.
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() > 1 {
			if msg := strings.TrimSpace(stderr.String()); msg != "" && stdout.Len() == 0 {
				return nil, errors.New(msg)
			}
			if !errors.As(err, &exitErr) {
				return nil, err
			}
		}
	}

	var lines []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, strings.TrimPrefix(line, "./"))
		if len(lines) >= q.limit {
			break
		}
	}
	return lines, nil
}

func (s *Searcher) root(dir string) string {
	if dir == "" {
		return s.wd.get()
	}
	return s.wd.resolve(dir)
}
