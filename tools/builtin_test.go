package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/grokagent/unifiedllm"
)

type fakeShell struct {
	dir      string
	commands []string
}

func (s *fakeShell) WorkingDirectory() string { return s.dir }

func (s *fakeShell) Run(ctx context.Context, command string) Result {
	s.commands = append(s.commands, command)
	if command == "cd sub" {
		s.dir += "/sub"
		return OK("")
	}
	return OK("ran " + command)
}

type fakeSearch struct {
	dir  string
	grep GrepQuery
	srch SearchQuery
}

func (f *fakeSearch) SetWorkingDirectory(dir string) { f.dir = dir }

func (f *fakeSearch) Glob(ctx context.Context, pattern, dir string) Result {
	return OK(pattern + "@" + dir)
}

func (f *fakeSearch) Grep(ctx context.Context, q GrepQuery) Result {
	f.grep = q
	return OK("grep")
}

func (f *fakeSearch) Search(ctx context.Context, q SearchQuery) Result {
	f.srch = q
	return OK("search")
}

type fakeEditor struct {
	path, oldText, newText string
	all                    bool
}

func (e *fakeEditor) View(ctx context.Context, path string, start, end int) Result {
	e.path = path
	return OK("viewed")
}

func (e *fakeEditor) Create(ctx context.Context, path, content string) Result {
	e.path = path
	return OK("created")
}

func (e *fakeEditor) Replace(ctx context.Context, path, oldText, newText string, all bool) Result {
	e.path, e.oldText, e.newText, e.all = path, oldText, newText, all
	return OK("replaced")
}

type fakeTodos struct{ items []TodoItem }

func (f *fakeTodos) Create(ctx context.Context, items []TodoItem) Result {
	f.items = items
	return OK("created")
}

func (f *fakeTodos) Update(ctx context.Context, updates []TodoUpdate) Result {
	return OK("updated")
}

func newBuiltinDispatcher(shell *fakeShell, search *fakeSearch, confirm *ConfirmationService) (*Dispatcher, *fakeEditor, *fakeTodos) {
	editor := &fakeEditor{}
	todos := &fakeTodos{}
	d := NewDispatcher()
	RegisterBuiltins(d, Collaborators{
		Editor:  editor,
		Shell:   shell,
		Search:  search,
		Todos:   todos,
		Confirm: confirm,
	})
	return d, editor, todos
}

func TestRegisterBuiltinsNames(t *testing.T) {
	d, _, _ := newBuiltinDispatcher(&fakeShell{}, &fakeSearch{}, nil)
	assert.Equal(t, []string{
		ToolViewFile, ToolCreateFile, ToolStrReplace,
		ToolBash, ToolGlob, ToolGrep, ToolSearch,
		ToolCreateTodoList, ToolUpdateTodoList,
	}, d.Names())
	// edit_file needs a fast-apply collaborator.
	assert.False(t, d.Has(ToolEditFile))
}

func TestBashResyncsSearchDirectory(t *testing.T) {
	shell := &fakeShell{dir: "/work"}
	search := &fakeSearch{dir: "/work"}
	d, _, _ := newBuiltinDispatcher(shell, search, nil)

	res := d.Execute(context.Background(), unifiedllm.ToolCall{ID: "1", Name: ToolBash, Arguments: `{"command":"cd sub"}`})
	require.True(t, res.Success)
	assert.Equal(t, "/work/sub", search.dir)

	res = d.Execute(context.Background(), unifiedllm.ToolCall{ID: "2", Name: ToolGlob, Arguments: `{"pattern":"*.go"}`})
	assert.Equal(t, "*.go@", res.Output)
}

func TestBashConfirmationRejected(t *testing.T) {
	shell := &fakeShell{dir: "/work"}
	confirm := NewConfirmationService(PrompterFunc(func(ctx context.Context, req ConfirmationRequest) (ConfirmationResponse, error) {
		assert.Equal(t, "rm -rf build", req.Detail)
		return ConfirmationResponse{Feedback: "too risky"}, nil
	}))
	d, _, _ := newBuiltinDispatcher(shell, &fakeSearch{}, confirm)

	res := d.Execute(context.Background(), unifiedllm.ToolCall{ID: "1", Name: ToolBash, Arguments: `{"command":"rm -rf build"}`})
	assert.False(t, res.Success)
	assert.Equal(t, "Command execution cancelled by user: too risky", res.Error)
	assert.Empty(t, shell.commands)
}

func TestBashConfirmationAlwaysAllow(t *testing.T) {
	asked := 0
	confirm := NewConfirmationService(PrompterFunc(func(ctx context.Context, req ConfirmationRequest) (ConfirmationResponse, error) {
		asked++
		return ConfirmationResponse{Confirmed: true, AlwaysAllow: true}, nil
	}))
	shell := &fakeShell{}
	d, _, _ := newBuiltinDispatcher(shell, &fakeSearch{}, confirm)

	for i := 0; i < 3; i++ {
		res := d.Execute(context.Background(), unifiedllm.ToolCall{ID: "1", Name: ToolBash, Arguments: `{"command":"ls"}`})
		require.True(t, res.Success)
	}
	assert.Equal(t, 1, asked)
	assert.Len(t, shell.commands, 3)
}

func TestConfirmationPrompterErrorRejects(t *testing.T) {
	confirm := NewConfirmationService(PrompterFunc(func(ctx context.Context, req ConfirmationRequest) (ConfirmationResponse, error) {
		return ConfirmationResponse{}, errors.New("stdin closed")
	}))
	resp := confirm.RequestConfirmation(context.Background(), ConfirmationRequest{})
	assert.False(t, resp.Confirmed)
	assert.Equal(t, "stdin closed", resp.Feedback)

	assert.True(t, NewConfirmationService(nil).RequestConfirmation(context.Background(), ConfirmationRequest{}).Confirmed)
}

func TestBuiltinArgumentRenaming(t *testing.T) {
	search := &fakeSearch{}
	d, editor, todos := newBuiltinDispatcher(&fakeShell{}, search, nil)
	ctx := context.Background()

	d.Execute(ctx, unifiedllm.ToolCall{Name: ToolStrReplace, Arguments: `{"path":"a.go","old_str":"x","new_str":"y","replace_all":true}`})
	assert.Equal(t, fakeEditor{path: "a.go", oldText: "x", newText: "y", all: true}, *editor)

	d.Execute(ctx, unifiedllm.ToolCall{Name: ToolGrep, Arguments: `{"pattern":"func","include":"*.go","case_insensitive":true,"max_results":5}`})
	assert.Equal(t, GrepQuery{Pattern: "func", Include: "*.go", IgnoreCase: true, Limit: 5}, search.grep)

	d.Execute(ctx, unifiedllm.ToolCall{Name: ToolSearch, Arguments: `{"query":"Dispatcher","search_type":"text","file_types":["go"]}`})
	assert.Equal(t, "Dispatcher", search.srch.Query)
	assert.Equal(t, "text", search.srch.Type)
	assert.Equal(t, []string{"go"}, search.srch.FileTypes)

	d.Execute(ctx, unifiedllm.ToolCall{Name: ToolCreateTodoList, Arguments: `{"todos":[{"id":"1","content":"write tests","status":"pending","priority":"high"}]}`})
	require.Len(t, todos.items, 1)
	assert.Equal(t, "write tests", todos.items[0].Content)
}

func TestBuiltinRequiredArguments(t *testing.T) {
	d, _, _ := newBuiltinDispatcher(&fakeShell{}, &fakeSearch{}, nil)
	res := d.Execute(context.Background(), unifiedllm.ToolCall{Name: ToolViewFile, Arguments: `{}`})
	assert.False(t, res.Success)
	assert.Equal(t, "path is required", res.Error)

	res = d.Execute(context.Background(), unifiedllm.ToolCall{Name: ToolBash, Arguments: `{"command": 5}`})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid arguments")
}

func TestSchemaFor(t *testing.T) {
	schema := SchemaFor[strReplaceArgs]()
	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")
	assert.ElementsMatch(t, []any{"path", "old_str", "new_str"}, schema["required"])

	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "replace_all")
	assert.Equal(t, "Exact text to replace", props["old_str"].(map[string]any)["description"])

	todo := SchemaFor[createTodoArgs]()
	items := todo["properties"].(map[string]any)["todos"].(map[string]any)["items"].(map[string]any)
	status := items["properties"].(map[string]any)["status"].(map[string]any)
	assert.Equal(t, []any{"pending", "in_progress", "completed"}, status["enum"])
}
