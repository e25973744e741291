// ABOUTME: JSON-RPC 2.0 dispatcher for the MCP methods served over stdio.
// ABOUTME: Tool failures are contained as isError results; only framing and usage errors become RPC errors.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// CallRecord describes one completed tools/call for auditing.
type CallRecord struct {
	RequestID string
	ToolName  string
	Arguments json.RawMessage
	IsError   bool
	Duration  time.Duration
}

// CallRecorder receives a record of every tools/call the server completes.
type CallRecorder interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

// Config holds configuration for the MCP server.
type Config struct {
	Registry        *Registry
	Logger          *slog.Logger
	Info            Implementation
	Instructions    string
	EnablePrompts   bool
	EnableResources bool
	ToolTimeout     time.Duration // 0 disables the per-call deadline
	Recorder        CallRecorder  // optional
}

// Server dispatches MCP requests to the tools in its registry.
type Server struct {
	registry        *Registry
	logger          *slog.Logger
	info            Implementation
	instructions    string
	enablePrompts   bool
	enableResources bool
	toolTimeout     time.Duration
	recorder        CallRecorder
	initialized     atomic.Bool
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.ToolTimeout < 0 {
		return nil, errors.New("tool timeout must not be negative")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info := cfg.Info
	if info.Name == "" {
		info.Name = "wazuh-mcp"
	}
	if info.Version == "" {
		info.Version = "dev"
	}

	return &Server{
		registry:        cfg.Registry,
		logger:          logger,
		info:            info,
		instructions:    cfg.Instructions,
		enablePrompts:   cfg.EnablePrompts,
		enableResources: cfg.EnableResources,
		toolTimeout:     cfg.ToolTimeout,
		recorder:        cfg.Recorder,
	}, nil
}

// Initialized reports whether the client has sent notifications/initialized.
// Requests are served either way.
func (s *Server) Initialized() bool {
	return s.initialized.Load()
}

// HandleMessage processes one framed message and returns the encoded
// response, or nil when nothing must be written (notifications).
func (s *Server) HandleMessage(ctx context.Context, message []byte) []byte {
	resp := s.handle(ctx, message)
	if resp == nil {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to encode JSON-RPC response", "error", err)
		data, _ = json.Marshal(newErrorResponse(resp.ID, &RPCError{
			Code:    CodeInternalError,
			Message: "Internal error",
			Data:    err.Error(),
		}))
	}
	return data
}

func errTooLarge() *RPCError {
	return NewRPCError(CodeInvalidRequest, "message too large")
}

// tooLargeResponse encodes the reply to a message dropped for its size.
func (s *Server) tooLargeResponse() []byte {
	data, _ := json.Marshal(newErrorResponse(nil, errTooLarge()))
	return data
}

// handle parses, validates and routes a single message.
func (s *Server) handle(ctx context.Context, message []byte) (resp *Response) {
	var id json.RawMessage
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while handling MCP message", "panic", r)
			resp = newErrorResponse(id, &RPCError{
				Code:    CodeInternalError,
				Message: "Internal error",
				Data:    fmt.Sprint(r),
			})
		}
	}()

	if len(message) > MaxMessageSize {
		return newErrorResponse(nil, errTooLarge())
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(message, &fields); err != nil {
		if !json.Valid(message) {
			return newErrorResponse(nil, NewRPCError(CodeParseError, "Parse error"))
		}
		return newErrorResponse(nil, NewRPCError(CodeInvalidRequest, "Invalid JSON-RPC request"))
	}
	if fields == nil {
		return newErrorResponse(nil, NewRPCError(CodeInvalidRequest, "Invalid JSON-RPC request"))
	}

	req, rpcErr := parseRequest(fields)
	id = req.ID
	if rpcErr != nil {
		return newErrorResponse(id, rpcErr)
	}

	s.logger.Debug("MCP request",
		"method", req.Method,
		"is_notification", req.IsNotification(),
	)

	// The initialized notification stays silent even when a client sends it with an id.
	if req.IsNotification() || req.Method == "notifications/initialized" {
		s.handleNotification(req)
		return nil
	}

	result, rpcErr := s.dispatch(ctx, req)
	if rpcErr != nil {
		return newErrorResponse(id, rpcErr)
	}
	return newResultResponse(id, result)
}

// parseRequest validates the envelope fields of an already-decoded object.
func parseRequest(fields map[string]json.RawMessage) (*Request, *RPCError) {
	req := &Request{ID: fields["id"], Params: fields["params"]}

	version, ok := fields["jsonrpc"]
	if !ok {
		return req, NewRPCError(CodeInvalidRequest, "Invalid JSON-RPC request")
	}
	if err := json.Unmarshal(version, &req.JSONRPC); err != nil || req.JSONRPC != jsonRPCVersion {
		return req, NewRPCError(CodeInvalidRequest, "Unsupported JSON-RPC version")
	}

	method, ok := fields["method"]
	if !ok {
		return req, NewRPCError(CodeInvalidRequest, "Missing method field")
	}
	if err := json.Unmarshal(method, &req.Method); err != nil || req.Method == "" {
		return req, NewRPCError(CodeInvalidRequest, "Missing method field")
	}

	return req, nil
}

// handleNotification consumes a notification. No response is ever produced,
// whatever the method.
func (s *Server) handleNotification(req *Request) {
	switch req.Method {
	case "notifications/initialized":
		s.initialized.Store(true)
		s.logger.Info("MCP client initialized")
	default:
		s.logger.Debug("ignoring notification", "method", req.Method)
	}
}

// dispatch routes a request by method.
func (s *Server) dispatch(ctx context.Context, req *Request) (any, *RPCError) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(), nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return s.handleToolsList(), nil
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params)
	default:
		return nil, NewRPCError(CodeMethodNotFound, "Method not found: %s", req.Method)
	}
}

// handleInitialize answers the initialize handshake.
func (s *Server) handleInitialize() *InitializeResult {
	capabilities := map[string]any{
		"tools": map[string]any{},
	}
	if s.enablePrompts {
		capabilities["prompts"] = map[string]any{}
	}
	if s.enableResources {
		capabilities["resources"] = map[string]any{}
	}

	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    capabilities,
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}
}

// handleToolsList returns every registered tool with its schema inlined.
func (s *Server) handleToolsList() *ListToolsResult {
	tools := s.registry.List()
	result := &ListToolsResult{Tools: make([]ToolInfo, len(tools))}
	for i, tool := range tools {
		result.Tools[i] = tool.Info()
	}

	s.logger.Debug("tools/list", "count", len(tools))
	return result
}

// handleToolsCall resolves and invokes a tool.
func (s *Server) handleToolsCall(ctx context.Context, rawParams json.RawMessage) (*CallToolResult, *RPCError) {
	var params CallToolParams
	if trimmed := bytes.TrimSpace(rawParams); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &params); err != nil {
			return nil, NewRPCError(CodeInvalidParams, "Invalid params")
		}
	}

	if params.Name == "" {
		return nil, NewRPCError(CodeInvalidParams, "Missing tool name")
	}

	tool, err := s.registry.Resolve(params.Name)
	if err != nil {
		return nil, NewRPCError(CodeMethodNotFound, "Tool not found: %s", params.Name)
	}

	// Generate request ID for correlation
	requestID := uuid.New().String()
	s.logger.Debug("tools/call",
		"tool_name", params.Name,
		"request_id", requestID,
	)

	start := time.Now()
	result, err := s.invoke(ctx, tool, params.Arguments)

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		s.logger.Warn("tool call rejected",
			"tool_name", params.Name,
			"request_id", requestID,
			"code", rpcErr.Code,
			"error", rpcErr.Message,
		)
		return nil, rpcErr
	}
	if err != nil {
		s.logger.Warn("tool execution failed",
			"tool_name", params.Name,
			"request_id", requestID,
			"error", err,
		)
		result = ErrorResult("Error calling tool: " + s.describeToolError(err))
	}
	if result == nil {
		result = &CallToolResult{Content: []Content{}}
	}
	if result.Content == nil {
		result.Content = []Content{}
	}

	duration := time.Since(start)
	s.logger.Debug("tools/call complete",
		"tool_name", params.Name,
		"request_id", requestID,
		"is_error", result.IsError,
		"duration_ms", duration.Milliseconds(),
	)

	s.record(ctx, CallRecord{
		RequestID: requestID,
		ToolName:  params.Name,
		Arguments: params.Arguments,
		IsError:   result.IsError,
		Duration:  duration,
	})

	return result, nil
}

// invoke runs a tool handler under the configured deadline, converting
// panics into errors so they surface as tool failures.
func (s *Server) invoke(ctx context.Context, tool *Tool, arguments json.RawMessage) (result *CallToolResult, err error) {
	if s.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.toolTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic in tool %s: %v", tool.Name, r)
		}
	}()

	return tool.Handler(ctx, arguments)
}

// describeToolError renders a tool failure for the client.
func (s *Server) describeToolError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		if s.toolTimeout > 0 {
			return fmt.Sprintf("tool execution timed out after %s", s.toolTimeout)
		}
		return "tool execution timed out"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	default:
		return err.Error()
	}
}

// record hands a completed call to the recorder. Recording failures are
// logged and never reach the client.
func (s *Server) record(ctx context.Context, rec CallRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordCall(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("failed to record tool call",
			"tool_name", rec.ToolName,
			"request_id", rec.RequestID,
			"error", err,
		)
	}
}
