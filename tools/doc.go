// Package tools dispatches model-issued tool calls.
//
// A Dispatcher maps tool names to Handlers. Built-in tools are declared
// with typed argument structs whose JSON schema is reflected at
// registration, and delegate to collaborators (editor, shell, searcher,
// todo list) supplied by the host. Names starting with RemotePrefix are
// forwarded to a RemoteToolServer.
//
// Every call produces a Result; failures are data, never errors:
//
//	d := tools.NewDispatcher()
//	tools.RegisterBuiltins(d, tools.Collaborators{Shell: shell, Search: search})
//	res := d.Execute(ctx, unifiedllm.ToolCall{ID: "1", Name: "bash", Arguments: `{"command":"ls"}`})
//	msg := tools.ResultMessage(call, res)
package tools
