// Package mcp serves the dashboard queries as Model Context Protocol tools
// over line-delimited JSON-RPC 2.0 on stdio.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
)

const protocolVersion = "2024-11-05"

// maxLineBytes bounds a single request line.
const maxLineBytes = 4 << 20

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Server reads JSON-RPC requests and answers them from the registered
// tools. Tools are listed in registration order.
type Server struct {
	tools   []toolDef
	byName  map[string]int
	svc     *dashboard.Service
	version string
}

type toolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     toolHandler
}

type toolHandler func(ctx context.Context, args json.RawMessage) (any, error)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// isNotification reports whether the request carries no id and so expects
// no response.
func (r rpcRequest) isNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// toolsCallResult is the MCP content envelope around a tool result.
type toolsCallResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolListEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// NewServer returns a Server with the dashboard tools registered. An empty
// version is reported as "dev".
func NewServer(svc *dashboard.Service, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{svc: svc, version: version, byName: make(map[string]int)}
	addTools(s)
	return s
}

// registerTool adds def, replacing any tool already registered under the
// same name.
func (s *Server) registerTool(def toolDef) {
	if i, ok := s.byName[def.Name]; ok {
		s.tools[i] = def
		return
	}
	s.byName[def.Name] = len(s.tools)
	s.tools = append(s.tools, def)
}

func (s *Server) lookup(name string) *toolDef {
	i, ok := s.byName[name]
	if !ok {
		return nil
	}
	return &s.tools[i]
}

// Run answers requests read from r until r reaches EOF or ctx is cancelled,
// both of which return nil. Only read and write failures are errors.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
		for sc.Scan() {
			select {
			case lines <- bytes.Clone(sc.Bytes()):
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	out := bufio.NewWriter(w)
	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			resp := s.handle(ctx, line)
			if resp == nil {
				continue
			}
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
			if err := out.Flush(); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}
}

// handle dispatches one request line. Notifications yield nil.
func (s *Server) handle(ctx context.Context, line []byte) *rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return &rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "Parse error"}}
	}
	if req.isNotification() {
		return nil
	}

	resp := &rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "pluginwatch", "version": s.version},
		}
	case "ping":
		resp.Result = struct{}{}
	case "tools/list":
		entries := make([]toolListEntry, len(s.tools))
		for i, t := range s.tools {
			entries[i] = toolListEntry{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
		}
		resp.Result = map[string]any{"tools": entries}
	case "tools/call":
		var p toolsCallParams
		if err := json.Unmarshal(req.Params, &p); err != nil || p.Name == "" {
			resp.Error = &rpcError{Code: codeInvalidParams, Message: "Invalid params"}
			break
		}
		resp.Result = s.call(ctx, p)
	default:
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: "Method not found"}
	}
	return resp
}

// call runs a tool. Tool failures are reported inside the result, not as
// JSON-RPC errors, so the client can show them to the model.
func (s *Server) call(ctx context.Context, p toolsCallParams) toolsCallResult {
	tool := s.lookup(p.Name)
	if tool == nil {
		return textResult(fmt.Sprintf("unknown tool: %s", p.Name), true)
	}
	out, err := tool.Handler(ctx, p.Arguments)
	if err != nil {
		return textResult(err.Error(), true)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return textResult(err.Error(), true)
	}
	return textResult(string(data), false)
}

func textResult(text string, isError bool) toolsCallResult {
	return toolsCallResult{Content: []mcpContent{{Type: "text", Text: text}}, IsError: isError}
}
