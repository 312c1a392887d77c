// Package local provides the on-disk collaborators behind the built-in
// tools: a text editor, a bash shell that tracks "cd", glob and content
// search, an in-memory todo list, and a fast-apply editor backed by Morph.
//
// Each collaborator keeps its own working directory. Wire them with
// tools.RegisterBuiltins so a bash "cd" propagates to the others:
//
//	shell := local.NewShell(dir)
//	tools.RegisterBuiltins(d, tools.Collaborators{
//		Editor: local.NewEditor(dir),
//		Shell:  shell,
//		Search: local.NewSearcher(dir),
//		Todos:  local.NewTodoList(),
//	})
package local
