package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/store"
)

func newEmptyServer() *Server {
	return NewServer(dashboard.New(store.NewProvider(store.OpenInMemory)), "test")
}

type wireResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// exchange feeds lines to a fresh Run and returns every response written
// before EOF.
func exchange(t *testing.T, s *Server, lines ...string) []wireResponse {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	if err := s.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var resps []wireResponse
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r wireResponse
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("decoding response: %v\noutput: %s", err, out.String())
		}
		resps = append(resps, r)
	}
	return resps
}

func TestRun_Initialize(t *testing.T) {
	resps := exchange(t, newEmptyServer(), `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if len(resps) != 1 {
		t.Fatalf("got %d responses, want 1", len(resps))
	}
	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(resps[0].Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.ProtocolVersion != protocolVersion {
		t.Errorf("protocolVersion = %q, want %q", result.ProtocolVersion, protocolVersion)
	}
	if result.ServerInfo.Name != "pluginwatch" || result.ServerInfo.Version != "test" {
		t.Errorf("serverInfo = %+v", result.ServerInfo)
	}
	if string(resps[0].ID) != "1" {
		t.Errorf("id = %s, want 1", resps[0].ID)
	}
}

func TestRun_ToolsList(t *testing.T) {
	s := newEmptyServer()
	s.registerTool(toolDef{
		Name:        "test_tool",
		Description: "A test tool",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return map[string]string{"ok": "true"}, nil
		},
	})

	resps := exchange(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	var result struct {
		Tools []toolListEntry `json:"tools"`
	}
	if err := json.Unmarshal(resps[0].Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Tools) != 8 {
		t.Fatalf("got %d tools, want 8", len(result.Tools))
	}
	if result.Tools[0].Name != "get_summary" || result.Tools[7].Name != "test_tool" {
		t.Errorf("tools out of registration order: first %q, last %q", result.Tools[0].Name, result.Tools[7].Name)
	}
}

func TestRegisterTool_Replaces(t *testing.T) {
	s := newEmptyServer()
	before := len(s.tools)
	s.registerTool(toolDef{Name: "get_summary", Description: "replaced"})
	if len(s.tools) != before {
		t.Errorf("tool count = %d, want %d", len(s.tools), before)
	}
	if got := s.lookup("get_summary").Description; got != "replaced" {
		t.Errorf("Description = %q, want replaced", got)
	}
}

func TestRun_ToolsCall(t *testing.T) {
	resps := exchange(t, newEmptyServer(),
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"classify_action","arguments":{"action":"click:custom-widget-42"}}}`,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"nope"}}`,
		`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{}}`,
	)
	if len(resps) != 3 {
		t.Fatalf("got %d responses, want 3", len(resps))
	}

	var ok toolsCallResult
	if err := json.Unmarshal(resps[0].Result, &ok); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if ok.IsError || len(ok.Content) != 1 {
		t.Fatalf("unexpected result: %+v", ok)
	}
	if !strings.Contains(ok.Content[0].Text, "Click: Custom Widget 42") {
		t.Errorf("expected classified label in %s", ok.Content[0].Text)
	}

	var unknown toolsCallResult
	if err := json.Unmarshal(resps[1].Result, &unknown); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !unknown.IsError {
		t.Errorf("expected isError for unknown tool, got %+v", unknown)
	}

	if resps[2].Error == nil || resps[2].Error.Code != codeInvalidParams {
		t.Errorf("missing tool name: error = %+v, want code %d", resps[2].Error, codeInvalidParams)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
		code int
	}{
		{"unknown method", `{"jsonrpc":"2.0","id":3,"method":"nonexistent/method"}`, codeMethodNotFound},
		{"malformed json", `{"jsonrpc":"2.0","id":`, codeParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resps := exchange(t, newEmptyServer(), tt.line)
			if len(resps) != 1 || resps[0].Error == nil {
				t.Fatalf("expected one error response, got %+v", resps)
			}
			if resps[0].Error.Code != tt.code {
				t.Errorf("code = %d, want %d", resps[0].Error.Code, tt.code)
			}
		})
	}
}

func TestRun_NotificationsAndBlankLines(t *testing.T) {
	resps := exchange(t, newEmptyServer(),
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":null,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":"p","method":"ping"}`,
	)
	if len(resps) != 1 {
		t.Fatalf("got %d responses, want only the ping with an id", len(resps))
	}
	if string(resps[0].ID) != `"p"` {
		t.Errorf("id = %s, want \"p\"", resps[0].ID)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	s := newEmptyServer()
	ctx, cancel := context.WithCancel(context.Background())

	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, pr, io.Discard) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v after cancel, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Run did not return after context cancel")
	}
}
