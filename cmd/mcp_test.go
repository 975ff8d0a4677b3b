package cmd

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"cadprobe/internal/tools"
)

func TestBuildMCPToolSchema(t *testing.T) {
	def, ok := tools.Lookup(tools.ToolUpdatePlacement)
	if !ok {
		t.Fatalf("%s not registered", tools.ToolUpdatePlacement)
	}
	tool := buildMCPTool(def)

	if tool.Name != tools.ToolUpdatePlacement {
		t.Fatalf("name = %q", tool.Name)
	}
	for _, p := range []string{"id", "position", "rotation"} {
		if _, ok := tool.InputSchema.Properties[p]; !ok {
			t.Errorf("schema missing property %q", p)
		}
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "position" {
		t.Fatalf("required = %v", tool.InputSchema.Required)
	}
	pos, _ := tool.InputSchema.Properties["position"].(map[string]any)
	if pos["type"] != "array" || pos["minItems"] != 3 || pos["maxItems"] != 3 {
		t.Fatalf("position schema = %v", pos)
	}
	rot, _ := tool.InputSchema.Properties["rotation"].(map[string]any)
	if rot["minItems"] != 4 || rot["maxItems"] != 4 {
		t.Fatalf("rotation schema = %v", rot)
	}
	id, _ := tool.InputSchema.Properties["id"].(map[string]any)
	if id["type"] != "number" {
		t.Fatalf("id schema = %v", id)
	}
}

func TestBuildParamOptionUnknownTypeIsString(t *testing.T) {
	tool := mcp.NewTool("t", buildParamOption(tools.Parameter{Name: "x", Type: "object"}))
	x, _ := tool.InputSchema.Properties["x"].(map[string]any)
	if x["type"] != "string" {
		t.Fatalf("x schema = %v", x)
	}
}

func TestToolHandlerReportsErrors(t *testing.T) {
	tools.ResetHandlersForTest()
	t.Cleanup(tools.ResetHandlersForTest)

	req := mcp.CallToolRequest{}
	req.Params.Name = "missing"
	res, err := toolHandler("missing")(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError result")
	}
	text := res.Content[0].(mcp.TextContent).Text
	if !strings.Contains(text, "missing failed") || !strings.Contains(text, "unknown tool") {
		t.Fatalf("text = %q", text)
	}
}

func TestToolHandlerPassesArguments(t *testing.T) {
	tools.ResetHandlersForTest()
	t.Cleanup(tools.ResetHandlersForTest)

	var got map[string]interface{}
	tools.RegisterHandler("echo", func(_ context.Context, args map[string]interface{}) (tools.Result, error) {
		got = args
		return tools.Result{Text: "done"}, nil
	})

	req := mcp.CallToolRequest{}
	req.Params.Name = "echo"
	req.Params.Arguments = map[string]any{"label": "Add Box"}
	res, err := toolHandler("echo")(context.Background(), req)
	if err != nil || res.IsError {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
	if got["label"] != "Add Box" {
		t.Fatalf("args = %v", got)
	}
	if text := res.Content[0].(mcp.TextContent).Text; text != "done" {
		t.Fatalf("text = %q", text)
	}
}

func TestToolResultContent(t *testing.T) {
	res := toolResult(tools.Result{Text: "shot", Binary: []byte("png"), ContentType: "image/png"})
	if len(res.Content) != 2 {
		t.Fatalf("content = %+v", res.Content)
	}
	img := res.Content[1].(mcp.ImageContent)
	if img.MIMEType != "image/png" || img.Data != base64.StdEncoding.EncodeToString([]byte("png")) {
		t.Fatalf("image = %+v", img)
	}

	empty := toolResult(tools.Result{})
	if text := empty.Content[0].(mcp.TextContent).Text; text != "ok" {
		t.Fatalf("empty result text = %q", text)
	}
}

func TestWithSessionTimesOut(t *testing.T) {
	orig := sessionLockTimeout
	sessionLockTimeout = 20 * time.Millisecond
	t.Cleanup(func() { sessionLockTimeout = orig })

	sessionMu.Lock()
	_, err := withSession(func() (int, error) { return 1, nil })
	sessionMu.Unlock()
	if err == nil || !strings.Contains(err.Error(), "session busy") {
		t.Fatalf("err = %v", err)
	}

	// The abandoned waiter must release the lock again.
	deadline := time.Now().Add(time.Second)
	for !sessionMu.TryLock() {
		if time.Now().After(deadline) {
			t.Fatal("lock never released")
		}
		time.Sleep(time.Millisecond)
	}
	sessionMu.Unlock()

	v, err := withSession(func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("v = %d, err = %v", v, err)
	}
}

func TestMCPCommandServesTools(t *testing.T) {
	useFakeSession(t, &fakeSession{})
	tools.ResetHandlersForTest()
	t.Cleanup(tools.ResetHandlersForTest)
	logPath := filepath.Join(t.TempDir(), "mcp.log")

	var served *server.MCPServer
	orig := serveStdioFunc
	serveStdioFunc = func(s *server.MCPServer) error {
		served = s
		return nil
	}
	t.Cleanup(func() { serveStdioFunc = orig })

	if _, err := execute(t, "mcp", "--log", logPath); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if served == nil {
		t.Fatal("server not started")
	}

	// Handlers stay registered after the command returns.
	res, err := tools.Call(context.Background(), tools.ToolConsoleLog, nil)
	if err != nil || res.Text != "(no console messages)" {
		t.Fatalf("console_log = %+v, %v", res, err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "serving MCP over stdio") {
		t.Fatalf("log = %s", data)
	}
}
