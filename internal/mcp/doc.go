// Package mcp implements the Model Context Protocol server spoken over stdio.
//
// # Overview
//
// MCP (Model Context Protocol) lets an AI client discover and invoke tools.
// This package provides the protocol engine: JSON-RPC 2.0 framing, method
// dispatch, a tool registry with schema derivation, and the stdio loop.
//
// # Protocol
//
// Messages are JSON-RPC 2.0 objects, one per line. Supported methods:
//
//   - initialize - handshake, returns protocol version and capabilities
//   - notifications/initialized - marks the session initialized, no response
//   - ping - liveness check, returns {}
//   - tools/list - returns every registered tool with its input schema
//   - tools/call - invokes a tool by name
//
// A message without an id is a notification and never produces output.
//
// # Tool Definitions
//
// Tools declare their arguments as a struct. The input schema is derived
// from the struct's tags when the tool is registered:
//
//	type agentParams struct {
//	    AgentID string `json:"agent_id" desc:"Agent ID"`
//	    Limit   *int   `json:"limit" desc:"Maximum results"`
//	    Status  string `json:"status" default:"active"`
//	}
//
//	mcp.AddTool(registry, "get_agent", "Fetch an agent", handler)
//
// Fields with a default tag, and pointer fields, are optional. Everything
// else is required.
//
// # Error Handling
//
// Malformed messages, unknown methods and invalid arguments are reported as
// JSON-RPC errors (*RPCError). A tool that fails or panics still produces a
// successful response whose result has isError set, so the client sees the
// failure as tool output.
//
// # Usage
//
//	registry := mcp.NewRegistry(logger)
//	server, err := mcp.NewServer(mcp.Config{
//	    Registry:    registry,
//	    Logger:      logger,
//	    ToolTimeout: time.Minute,
//	})
//	err = server.ServeStdio(ctx)
package mcp
