package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/wricardo/stitch-turtle/transport/mcp"
	"github.com/wricardo/stitch-turtle/turtle/config"
	"github.com/wricardo/stitch-turtle/turtle/script"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "Stitch Turtle Server" {
		t.Errorf("Unexpected app name %s", AppName)
	}
}

func TestNewAppCommands(t *testing.T) {
	cmd := newApp()

	if cmd.Action == nil {
		t.Error("Root command should default to serving")
	}

	names := map[string]bool{}
	for _, sub := range cmd.Commands {
		names[sub.Name] = true
	}
	for _, want := range []string{"serve", "mcp", "render", "version"} {
		if !names[want] {
			t.Errorf("Missing command %s", want)
		}
	}
}

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	settings := config.DefaultSettings()
	settings.SessionsDir = filepath.Join(t.TempDir(), "sessions")
	settings.DBPath = filepath.Join(t.TempDir(), "sessions.db")
	return settings
}

func TestInitializeServices(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			settings := testSettings(t)
			settings.Persistence = backend

			a, err := initializeServices(settings, t.TempDir(), log.Default())
			if err != nil {
				t.Fatalf("Failed to initialize services: %v", err)
			}

			ctx := context.Background()
			info, err := a.render.CreateSession(ctx, "")
			if err != nil {
				t.Fatalf("Failed to create session: %v", err)
			}
			if !a.persistence.Exists(info.ID) {
				t.Error("Session should be persisted on creation")
			}

			if err := a.Close(); err != nil {
				t.Errorf("Close failed: %v", err)
			}
		})
	}
}

func TestInitializeServices_Errors(t *testing.T) {
	if _, err := initializeServices(testSettings(t), "/non/existent/path", log.Default()); err == nil {
		t.Error("Expected error for non-existent preset directory")
	}

	settings := testSettings(t)
	settings.Persistence = "tape"
	if _, err := initializeServices(settings, t.TempDir(), log.Default()); err == nil {
		t.Error("Expected error for unknown persistence backend")
	}
}

func TestPruneOrphans(t *testing.T) {
	a, err := initializeServices(testSettings(t), t.TempDir(), log.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	ctx := context.Background()
	keep, _ := a.render.CreateSession(ctx, "")
	gone, _ := a.render.CreateSession(ctx, "")

	if err := a.persistence.Delete(gone.ID); err != nil {
		t.Fatal(err)
	}

	if pruned := a.pruneOrphans(); pruned != 1 {
		t.Errorf("Expected 1 pruned session, got %d", pruned)
	}
	if _, err := a.render.GetSession(ctx, keep.ID); err != nil {
		t.Errorf("Kept session should remain: %v", err)
	}
	if _, err := a.render.GetSession(ctx, gone.ID); err == nil {
		t.Error("Pruned session should be gone")
	}
}

func TestHTTPHandler(t *testing.T) {
	a, err := initializeServices(testSettings(t), t.TempDir(), log.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	handler := a.newHTTPHandler(nil, "http://127.0.0.1:0")

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 from health, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/mcp", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET /mcp, got %d", w.Code)
	}
}

func TestMCPHandler(t *testing.T) {
	handler := mcpHandler(mcp.NewClient("http://127.0.0.1:0"))

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`
	req := httptest.NewRequest("POST", "/mcp", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}
	if !strings.Contains(w.Body.String(), "Stitch Turtle") {
		t.Errorf("Expected server info in response: %s", w.Body.String())
	}
}

func TestRenderFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zigzag.js")
	if err := os.WriteFile(path, []byte("forward(10); forward(10); // --"), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out")
	files, err := renderFile(context.Background(), path, out, true, script.Options{})
	if err != nil {
		t.Fatalf("renderFile failed: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("Expected 3 files, got %v", files)
	}
	for i, variant := range []string{"combined", "front", "back"} {
		if filepath.Base(files[i]) != "zigzag-"+variant+".svg" {
			t.Errorf("Unexpected file name %s", files[i])
		}
	}

	front, err := os.ReadFile(filepath.Join(out, "zigzag-front.svg"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(front), `d="M 250 250 l 0 10 m 0 10"`) {
		t.Errorf("Unexpected front document:\n%s", front)
	}
	if !strings.HasPrefix(string(front), "<!--") || strings.Contains(strings.SplitN(string(front), "-->", 2)[0][4:], "--") {
		t.Errorf("Source comment should be embedded without a raw double dash:\n%s", front)
	}
}

func TestRenderFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := renderFile(context.Background(), filepath.Join(dir, "missing.js"), dir, false, script.Options{}); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(dir, "bad.js")
	os.WriteFile(path, []byte("forward("), 0644)
	if _, err := renderFile(context.Background(), path, dir, false, script.Options{}); err == nil {
		t.Error("Expected error for a syntax error")
	}
	if _, err := os.Stat(filepath.Join(dir, "bad-front.svg")); !os.IsNotExist(err) {
		t.Error("No files should be written for a failed run")
	}
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dot.js")
	os.WriteFile(path, []byte("forward(1);"), 0644)

	cmd := newApp()
	err := cmd.Run(context.Background(), []string{"stitch-turtle", "render", "--out", dir, path})
	if err != nil {
		t.Fatalf("render command failed: %v", err)
	}

	for _, variant := range []string{"combined", "front", "back"} {
		if _, err := os.Stat(filepath.Join(dir, "dot-"+variant+".svg")); err != nil {
			t.Errorf("Missing %s output: %v", variant, err)
		}
	}
}
