// ABOUTME: JSON-RPC 2.0 envelope types and MCP result types for the stdio server.
// ABOUTME: RPCError is the structural failure type; tool failures travel inside results.

package mcp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the MCP protocol revision advertised in initialize responses.
const ProtocolVersion = "2024-11-05"

const jsonRPCVersion = "2.0"

// MaxMessageSize is the largest single message the server will dispatch (1MB).
const MaxMessageSize = 1 << 20

// Standard JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is a decoded JSON-RPC 2.0 request. A request without an id is a
// notification and never receives a response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carried no id at all.
// An explicit "id": null is still a request.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result or Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object. Returning one from a tool's
// argument decoding turns the call into a protocol-level error; every other
// error from a tool becomes an isError result.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewRPCError builds an RPCError with a formatted message.
func NewRPCError(code int, format string, args ...any) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// MarshalJSON emits exactly one of result or error. A result response with
// a nil Result still carries "result": null.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *RPCError       `json:"error"`
		}{r.JSONRPC, echoID(r.ID), r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{r.JSONRPC, echoID(r.ID), r.Result})
}

func newResultResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: jsonRPCVersion, ID: echoID(id), Result: result}
}

func newErrorResponse(id json.RawMessage, rpcErr *RPCError) *Response {
	return &Response{JSONRPC: jsonRPCVersion, ID: echoID(id), Error: rpcErr}
}

// echoID returns the id to put on a response; a missing id is echoed as null.
func echoID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// Implementation names the server in initialize responses.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result for initialize.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}

// ToolInfo is one entry of a tools/list result.
type ToolInfo struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	InputSchema *InputSchema `json:"inputSchema"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Content is a single item in a tool result. Only "text" is produced here.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextContent wraps a string as a text content item.
func TextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// CallToolResult is the result for tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// TextResult builds a successful result with one text item per argument.
func TextResult(texts ...string) *CallToolResult {
	content := make([]Content, 0, len(texts))
	for _, text := range texts {
		content = append(content, TextContent(text))
	}
	return &CallToolResult{Content: content}
}

// ErrorResult builds a failed result carrying a single text item.
func ErrorResult(message string) *CallToolResult {
	return &CallToolResult{Content: []Content{TextContent(message)}, IsError: true}
}
