// Package mcp connects to Model Context Protocol servers and exposes their
// tools to the agent.
//
// Each server's tools are published as "mcp__<server>__<tool>". A Manager
// implements tools.RemoteToolServer, so a tools.Dispatcher configured with
// tools.WithRemote routes every call carrying that prefix here:
//
//	m := mcp.NewManager()
//	_ = m.ConnectAll(ctx, cfg.MCPServers)
//	defer m.Close()
//	d := tools.NewDispatcher(tools.WithRemote(m))
//
// Servers are reached over stdio (a command), SSE, or streamable HTTP.
package mcp
