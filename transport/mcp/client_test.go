package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/stitch-turtle/api"
	"github.com/wricardo/stitch-turtle/turtle/config"
	"github.com/wricardo/stitch-turtle/turtle/script"
	"github.com/wricardo/stitch-turtle/turtle/service"
	"github.com/wricardo/stitch-turtle/turtle/session"
)

// newStack serves the real REST API backed by in-memory sessions
func newStack(t *testing.T) *Client {
	t.Helper()

	dir := t.TempDir()
	preset := "name: Line\ndescription: A single line\nscript: |\n  forward(10);\n"
	if err := os.WriteFile(filepath.Join(dir, "line.yaml"), []byte(preset), 0644); err != nil {
		t.Fatal(err)
	}
	presets, err := config.NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	runnerOpts := script.Options{Timeout: 2 * time.Second, MaxSegments: 10000}
	svc := service.NewRenderService(session.NewManager(runnerOpts), presets, service.Options{
		MaxConcurrentRuns: 2,
		HistoryLimit:      10,
		Runner:            runnerOpts,
	})

	server := httptest.NewServer(api.NewServer(svc, nil))
	t.Cleanup(server.Close)

	return NewClient(server.URL)
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected result content")
	}
	content, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return content.Text
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"id": "abcd"})
		case "/svg":
			w.Header().Set("Content-Type", "image/svg+xml")
			w.Write([]byte("<svg/>"))
		case "/script":
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"error": "script failed: boom", "kind": "script"})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var decoded map[string]string
	if err := client.apiCall("GET", "/json", nil, &decoded); err != nil || decoded["id"] != "abcd" {
		t.Errorf("Unexpected JSON result: %v %v", decoded, err)
	}

	var raw string
	if err := client.apiCall("GET", "/svg", nil, &raw); err != nil || raw != "<svg/>" {
		t.Errorf("Unexpected raw result: %q %v", raw, err)
	}

	err := client.apiCall("POST", "/script", map[string]string{}, nil)
	if err == nil || err.Error() != "script failed: boom (script)" {
		t.Errorf("Unexpected error: %v", err)
	}

	err = client.apiCall("GET", "/other", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("Expected status code in error, got %v", err)
	}
}

func TestHandleRender(t *testing.T) {
	client := newStack(t)
	ctx := context.Background()

	result, err := client.handleRender(ctx, call(map[string]interface{}{
		"script": "forward(10); forward(10);",
	}))
	if err != nil {
		t.Fatal(err)
	}
	out := text(t, result)
	if result.IsError {
		t.Fatalf("Unexpected error: %s", out)
	}
	for _, want := range []string{"--- combined ---", "--- front ---", "--- back ---", `d="M 250 250 m 0 10 l 0 10"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}

	result, _ = client.handleRender(ctx, call(map[string]interface{}{
		"script":  "forward(10);",
		"variant": "front",
	}))
	out = text(t, result)
	if strings.Contains(out, "--- back ---") || !strings.Contains(out, "--- front ---") {
		t.Errorf("Expected only the front variant:\n%s", out)
	}

	result, _ = client.handleRender(ctx, call(map[string]interface{}{"script": "nope();"}))
	if !result.IsError {
		t.Error("Expected a tool error for a failing script")
	}
	if out := text(t, result); !strings.Contains(out, "(script)") {
		t.Errorf("Expected script kind in error, got %s", out)
	}
}

func TestSessionWorkflow(t *testing.T) {
	client := newStack(t)
	ctx := context.Background()

	result, err := client.handleCreateSession(ctx, call(map[string]interface{}{"preset_id": "line"}))
	if err != nil {
		t.Fatal(err)
	}
	out := text(t, result)
	if !strings.Contains(out, "Preset: line") || !strings.Contains(out, "forward(10);") {
		t.Fatalf("Unexpected create output:\n%s", out)
	}
	id := strings.TrimSpace(strings.TrimPrefix(strings.Split(out, "\n")[0], "Created session:"))

	// No run yet
	result, _ = client.handleSessionSVG(ctx, call(map[string]interface{}{"session_id": id}))
	if !result.IsError {
		t.Error("Expected an error before the first run")
	}

	// Empty script reruns the preset
	result, _ = client.handleRun(ctx, call(map[string]interface{}{"session_id": id}))
	if result.IsError {
		t.Fatalf("Run failed: %s", text(t, result))
	}

	result, _ = client.handleSessionSVG(ctx, call(map[string]interface{}{
		"session_id":   id,
		"variant":      "front",
		"embed_source": true,
	}))
	out = text(t, result)
	if !strings.Contains(out, `d="M 250 250 l 0 10"`) || !strings.Contains(out, "forward(10);") {
		t.Errorf("Unexpected SVG:\n%s", out)
	}

	result, _ = client.handleRun(ctx, call(map[string]interface{}{"session_id": id, "script": "oops("}))
	if !result.IsError {
		t.Error("Expected a syntax error")
	}

	result, _ = client.handleRunHistory(ctx, call(map[string]interface{}{"session_id": id}))
	out = text(t, result)
	if !strings.Contains(out, "Total: 2") || !strings.Contains(out, "✗ script") {
		t.Errorf("Unexpected history:\n%s", out)
	}

	result, _ = client.handleGetSession(ctx, call(map[string]interface{}{"session_id": id}))
	out = text(t, result)
	if !strings.Contains(out, "Runs: 2") || !strings.Contains(out, "Tracks: 1") {
		t.Errorf("Unexpected session:\n%s", out)
	}

	result, _ = client.handleListSessions(ctx, call(nil))
	if out := text(t, result); !strings.Contains(out, "Active Sessions (1)") || !strings.Contains(out, id) {
		t.Errorf("Unexpected list:\n%s", out)
	}

	result, _ = client.handleCancel(ctx, call(map[string]interface{}{"session_id": id}))
	if out := text(t, result); out != "No run in flight" {
		t.Errorf("Unexpected cancel output: %s", out)
	}

	result, _ = client.handleRestart(ctx, call(map[string]interface{}{"session_id": id}))
	if result.IsError {
		t.Errorf("Restart failed: %s", text(t, result))
	}
}

func TestUnknownSessionAndPreset(t *testing.T) {
	client := newStack(t)
	ctx := context.Background()

	result, _ := client.handleGetSession(ctx, call(map[string]interface{}{"session_id": "zzzz"}))
	if !result.IsError {
		t.Error("Expected an error for an unknown session")
	}

	result, _ = client.handleCreateSession(ctx, call(map[string]interface{}{"preset_id": "missing"}))
	if !result.IsError || !strings.Contains(text(t, result), "line") {
		t.Error("Expected the error to list available presets")
	}
}

func TestHandleListPresetsAndInstructions(t *testing.T) {
	client := newStack(t)
	ctx := context.Background()

	result, _ := client.handleListPresets(ctx, call(nil))
	if out := text(t, result); !strings.Contains(out, "Line (line)") {
		t.Errorf("Unexpected presets:\n%s", out)
	}

	result, _ = client.handleInstructions(ctx, call(nil))
	out := text(t, result)
	for _, name := range []string{"forward", "turnLeft", "penUp", "color", "goTo", "lineBy", "seedrandom"} {
		if !strings.Contains(out, name) {
			t.Errorf("Instructions should mention %s", name)
		}
	}
}

func TestFormatHistory(t *testing.T) {
	history := &service.HistoryResponse{
		Runs: []service.RunRecord{
			{Outcome: service.OutcomeOK, Segments: 3, DurationMS: 2},
			{Outcome: service.OutcomeCancelled, Error: "run cancelled: superseded"},
		},
		TotalRuns:  12,
		Page:       2,
		PageSize:   10,
		TotalPages: 2,
	}

	out := formatHistory(history)
	for _, want := range []string{"Page 2/2", "Total: 12", "11. ", "✓ [3 segments, 2ms]", "12. ", "✗ cancelled", "superseded"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
}
