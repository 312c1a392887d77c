package tools

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/martinemde/grokagent/unifiedllm"
)

// Built-in tool names.
const (
	ToolViewFile       = "view_file"
	ToolCreateFile     = "create_file"
	ToolStrReplace     = "str_replace_editor"
	ToolEditFile       = "edit_file"
	ToolBash           = "bash"
	ToolGlob           = "glob"
	ToolGrep           = "grep"
	ToolSearch         = "search"
	ToolCreateTodoList = "create_todo_list"
	ToolUpdateTodoList = "update_todo_list"
)

// Editor views and edits text files.
type Editor interface {
	View(ctx context.Context, path string, startLine, endLine int) Result
	Create(ctx context.Context, path, content string) Result
	Replace(ctx context.Context, path, oldText, newText string, replaceAll bool) Result
}

// FastApplier merges an abbreviated edit into a file using a fast-apply
// model.
type FastApplier interface {
	Apply(ctx context.Context, targetFile, instructions, codeEdit string) Result
}

// Shell runs commands and tracks its own working directory.
type Shell interface {
	DirectorySource
	Run(ctx context.Context, command string) Result
}

// GrepQuery is a content search request.
type GrepQuery struct {
	Pattern    string
	Dir        string
	Include    string
	IgnoreCase bool
	Limit      int
}

// SearchQuery is a unified text/file search request.
type SearchQuery struct {
	Query         string
	Type          string // "text", "files" or "both"
	Include       string
	Exclude       string
	CaseSensitive bool
	WholeWord     bool
	Regex         bool
	Limit         int
	FileTypes     []string
	IncludeHidden bool
}

// Searcher finds files and file contents relative to a working directory.
type Searcher interface {
	DirectoryAware
	Glob(ctx context.Context, pattern, dir string) Result
	Grep(ctx context.Context, q GrepQuery) Result
	Search(ctx context.Context, q SearchQuery) Result
}

// TodoItem is one entry of the agent's todo list.
type TodoItem struct {
	ID       string `json:"id" jsonschema_description:"Unique identifier for the item"`
	Content  string `json:"content" jsonschema_description:"Description of the task"`
	Status   string `json:"status" jsonschema:"enum=pending,enum=in_progress,enum=completed"`
	Priority string `json:"priority" jsonschema:"enum=high,enum=medium,enum=low"`
}

// TodoUpdate changes fields of an existing todo item. Empty fields are
// left unchanged.
type TodoUpdate struct {
	ID       string `json:"id" jsonschema_description:"Identifier of the item to update"`
	Status   string `json:"status,omitempty" jsonschema:"enum=pending,enum=in_progress,enum=completed"`
	Content  string `json:"content,omitempty"`
	Priority string `json:"priority,omitempty" jsonschema:"enum=high,enum=medium,enum=low"`
}

// TodoList keeps the agent's plan.
type TodoList interface {
	Create(ctx context.Context, items []TodoItem) Result
	Update(ctx context.Context, updates []TodoUpdate) Result
}

// Collaborators are the concrete implementations behind the built-in tools.
// FastApply and Confirm are optional.
type Collaborators struct {
	Editor    Editor
	FastApply FastApplier
	Shell     Shell
	Search    Searcher
	Todos     TodoList
	Confirm   *ConfirmationService
}

type viewFileArgs struct {
	Path      string `json:"path" jsonschema_description:"Path to the file or directory to view"`
	StartLine int    `json:"start_line,omitempty" jsonschema_description:"First line to show (1-based, optional)"`
	EndLine   int    `json:"end_line,omitempty" jsonschema_description:"Last line to show (inclusive, optional)"`
}

type createFileArgs struct {
	Path    string `json:"path" jsonschema_description:"Path of the file to create"`
	Content string `json:"content" jsonschema_description:"Full content of the new file"`
}

type strReplaceArgs struct {
	Path       string `json:"path" jsonschema_description:"Path of the file to edit"`
	OldStr     string `json:"old_str" jsonschema_description:"Exact text to replace"`
	NewStr     string `json:"new_str" jsonschema_description:"Replacement text"`
	ReplaceAll bool   `json:"replace_all,omitempty" jsonschema_description:"Replace every occurrence instead of only the first"`
}

type editFileArgs struct {
	TargetFile   string `json:"target_file" jsonschema_description:"Path of the file to edit"`
	Instructions string `json:"instructions" jsonschema_description:"One sentence describing the edit"`
	CodeEdit     string `json:"code_edit" jsonschema_description:"The edited lines with '// ... existing code ...' marking unchanged regions"`
}

type bashArgs struct {
	Command string `json:"command" jsonschema_description:"The bash command to execute"`
}

type globArgs struct {
	Pattern string `json:"pattern" jsonschema_description:"Glob pattern such as **/*.go"`
	Path    string `json:"path,omitempty" jsonschema_description:"Directory to search from; defaults to the working directory"`
}

type grepArgs struct {
	Pattern         string `json:"pattern" jsonschema_description:"Regular expression to search for"`
	Path            string `json:"path,omitempty" jsonschema_description:"Directory or file to search; defaults to the working directory"`
	Include         string `json:"include,omitempty" jsonschema_description:"Only search files matching this glob"`
	CaseInsensitive bool   `json:"case_insensitive,omitempty"`
	MaxResults      int    `json:"max_results,omitempty" jsonschema_description:"Maximum matches to return (default 100)"`
}

type searchArgs struct {
	Query          string   `json:"query" jsonschema_description:"Text or file name to search for"`
	SearchType     string   `json:"search_type,omitempty" jsonschema:"enum=text,enum=files,enum=both" jsonschema_description:"What to search (default both)"`
	IncludePattern string   `json:"include_pattern,omitempty" jsonschema_description:"Glob of files to include"`
	ExcludePattern string   `json:"exclude_pattern,omitempty" jsonschema_description:"Glob of files to exclude"`
	CaseSensitive  bool     `json:"case_sensitive,omitempty"`
	WholeWord      bool     `json:"whole_word,omitempty"`
	Regex          bool     `json:"regex,omitempty" jsonschema_description:"Treat query as a regular expression"`
	MaxResults     int      `json:"max_results,omitempty"`
	FileTypes      []string `json:"file_types,omitempty" jsonschema_description:"File extensions to search such as go or ts"`
	IncludeHidden  bool     `json:"include_hidden,omitempty"`
}

type createTodoArgs struct {
	Todos []TodoItem `json:"todos" jsonschema_description:"The full todo list"`
}

type updateTodoArgs struct {
	Updates []TodoUpdate `json:"updates" jsonschema_description:"Changes to apply to existing items"`
}

// RegisterBuiltins registers every built-in tool whose collaborator is
// present. A bash call resyncs the working directory of every collaborator
// that tracks one.
func RegisterBuiltins(d *Dispatcher, c Collaborators) {
	if c.Editor != nil {
		registerTyped(d, ToolViewFile,
			"View the contents of a file, or list a directory.",
			func(ctx context.Context, a viewFileArgs) Result {
				if a.Path == "" {
					return Fail("path is required")
				}
				return c.Editor.View(ctx, a.Path, a.StartLine, a.EndLine)
			})
		registerTyped(d, ToolCreateFile,
			"Create a new file with the given content.",
			func(ctx context.Context, a createFileArgs) Result {
				if a.Path == "" {
					return Fail("path is required")
				}
				return c.Editor.Create(ctx, a.Path, a.Content)
			})
		registerTyped(d, ToolStrReplace,
			"Replace specific text in an existing file.",
			func(ctx context.Context, a strReplaceArgs) Result {
				if a.Path == "" || a.OldStr == "" {
					return Fail("path and old_str are required")
				}
				return c.Editor.Replace(ctx, a.Path, a.OldStr, a.NewStr, a.ReplaceAll)
			})
	}

	if c.FastApply != nil {
		registerTyped(d, ToolEditFile,
			"Apply an abbreviated edit to a file with a fast-apply model. Prefer this for large or scattered edits.",
			func(ctx context.Context, a editFileArgs) Result {
				if a.TargetFile == "" || a.CodeEdit == "" {
					return Fail("target_file and code_edit are required")
				}
				return c.FastApply.Apply(ctx, a.TargetFile, a.Instructions, a.CodeEdit)
			})
	}

	if c.Shell != nil {
		registerTyped(d, ToolBash,
			"Execute a bash command. Use cd to change directory for later commands.",
			func(ctx context.Context, a bashArgs) Result {
				if a.Command == "" {
					return Fail("command is required")
				}
				if c.Confirm != nil {
					resp := c.Confirm.RequestConfirmation(ctx, ConfirmationRequest{
						Operation: "Run bash command",
						Target:    c.Shell.WorkingDirectory(),
						Detail:    a.Command,
					})
					if !resp.Confirmed {
						if resp.Feedback != "" {
							return Fail("Command execution cancelled by user: %s", resp.Feedback)
						}
						return Fail("Command execution cancelled by user")
					}
				}
				return c.Shell.Run(ctx, a.Command)
			})
		var targets []DirectoryAware
		for _, collab := range []any{c.Editor, c.FastApply, c.Search} {
			if da, ok := collab.(DirectoryAware); ok && da != nil {
				targets = append(targets, da)
			}
		}
		if len(targets) > 0 {
			d.SyncDirectoryAfter(ToolBash, c.Shell, targets...)
		}
	}

	if c.Search != nil {
		registerTyped(d, ToolGlob,
			"Find files by glob pattern.",
			func(ctx context.Context, a globArgs) Result {
				if a.Pattern == "" {
					return Fail("pattern is required")
				}
				return c.Search.Glob(ctx, a.Pattern, a.Path)
			})
		registerTyped(d, ToolGrep,
			"Search file contents with a regular expression.",
			func(ctx context.Context, a grepArgs) Result {
				if a.Pattern == "" {
					return Fail("pattern is required")
				}
				return c.Search.Grep(ctx, GrepQuery{
					Pattern:    a.Pattern,
					Dir:        a.Path,
					Include:    a.Include,
					IgnoreCase: a.CaseInsensitive,
					Limit:      a.MaxResults,
				})
			})
		registerTyped(d, ToolSearch,
			"Unified search for text content and file names.",
			func(ctx context.Context, a searchArgs) Result {
				if a.Query == "" {
					return Fail("query is required")
				}
				return c.Search.Search(ctx, SearchQuery{
					Query:         a.Query,
					Type:          a.SearchType,
					Include:       a.IncludePattern,
					Exclude:       a.ExcludePattern,
					CaseSensitive: a.CaseSensitive,
					WholeWord:     a.WholeWord,
					Regex:         a.Regex,
					Limit:         a.MaxResults,
					FileTypes:     a.FileTypes,
					IncludeHidden: a.IncludeHidden,
				})
			})
	}

	if c.Todos != nil {
		registerTyped(d, ToolCreateTodoList,
			"Create a todo list to plan and track multi-step work.",
			func(ctx context.Context, a createTodoArgs) Result {
				return c.Todos.Create(ctx, a.Todos)
			})
		registerTyped(d, ToolUpdateTodoList,
			"Update the status, content or priority of existing todo items.",
			func(ctx context.Context, a updateTodoArgs) Result {
				return c.Todos.Update(ctx, a.Updates)
			})
	}
}

// registerTyped registers a handler whose arguments decode into T. The
// parameter schema is reflected from T.
func registerTyped[T any](d *Dispatcher, name, description string, fn func(context.Context, T) Result) {
	d.Register(unifiedllm.ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  SchemaFor[T](),
	}, HandlerFunc(func(ctx context.Context, raw json.RawMessage) Result {
		args, err := decodeArgs[T](raw)
		if err != nil {
			return Fail("Tool execution error: %v", err)
		}
		return fn(ctx, args)
	}))
}

// SchemaFor reflects T into a JSON-schema object suitable for a tool
// declaration.
func SchemaFor[T any]() map[string]any {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	data, err := json.Marshal(r.Reflect(new(T)))
	if err != nil {
		panic(err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		panic(err)
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	return schema
}
