package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/stitch-turtle/turtle/script"
	"github.com/wricardo/stitch-turtle/turtle/service"
)

// MockRunner implements ScriptRunner for testing
type MockRunner struct {
	mu        sync.Mutex
	scripts   []string
	RunFunc   func(ctx context.Context, sessionID, code string) (*service.RunResult, error)
	cancelled int
}

func (m *MockRunner) Run(ctx context.Context, sessionID, code string) (*service.RunResult, error) {
	m.mu.Lock()
	m.scripts = append(m.scripts, code)
	m.mu.Unlock()
	if m.RunFunc != nil {
		return m.RunFunc(ctx, sessionID, code)
	}
	return &service.RunResult{RunID: "run-1", SessionID: sessionID, Result: &script.Result{Code: code}}, nil
}

func (m *MockRunner) Cancel(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled++
	return true, nil
}

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
}

func receive(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case data := <-client.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		return message
	case <-time.After(time.Second):
		t.Fatal("No message received within timeout")
	}
	return Message{}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil, nil)

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels not initialized")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub(nil, nil)
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if hub.ClientCount("test-session") != 1 {
		t.Errorf("Expected 1 client in session, got %d", hub.ClientCount("test-session"))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub(nil, nil)
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}

	// Unregistering twice must not panic on a closed channel
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub(nil, nil)
	client1 := newTestClient(hub, "multi")
	client2 := newTestClient(hub, "multi")

	hub.registerClient(client1)
	hub.registerClient(client2)
	if hub.ClientCount("multi") != 2 {
		t.Errorf("Expected 2 clients in session, got %d", hub.ClientCount("multi"))
	}

	hub.unregisterClient(client1)
	if hub.ClientCount("multi") != 1 || !hub.sessions["multi"][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubPublishRun(t *testing.T) {
	hub := NewHub(nil, nil)
	client := newTestClient(hub, "abcd")
	other := newTestClient(hub, "ffff")
	hub.registerClient(client)
	hub.registerClient(other)

	t.Run("result", func(t *testing.T) {
		hub.PublishRun("abcd", &service.RunResult{RunID: "r1", SessionID: "abcd"}, nil)

		message := receive(t, client)
		if message.Event != EventRunResult || message.SessionID != "abcd" {
			t.Errorf("Unexpected message: %+v", message)
		}
		data, _ := message.Data.(map[string]interface{})
		if data["run_id"] != "r1" {
			t.Errorf("Expected run_id r1, got %v", data["run_id"])
		}
	})

	t.Run("failure", func(t *testing.T) {
		hub.PublishRun("abcd", nil, fmt.Errorf("%w: ReferenceError: x is not defined", script.ErrScriptFailed))

		message := receive(t, client)
		if message.Event != EventRunFailed {
			t.Errorf("Expected run_failed, got %s", message.Event)
		}
		data, _ := message.Data.(map[string]interface{})
		if data["kind"] != "script" {
			t.Errorf("Expected kind script, got %v", data["kind"])
		}
	})

	if len(other.send) != 0 {
		t.Error("Clients of other sessions must not receive events")
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub(nil, nil)
	go hub.Run()

	client := newTestClient(hub, "event-test")
	hub.register <- client

	hub.BroadcastEvent("event-test", "custom-event", "test-data")

	message := receive(t, client)
	if message.Event != "custom-event" || message.Data != "test-data" {
		t.Errorf("Unexpected message: %+v", message)
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(nil, nil)
	client := &Client{hub: hub, sessionID: "slow", send: make(chan []byte)}
	hub.registerClient(client)

	hub.PublishRun("slow", &service.RunResult{RunID: "r"}, nil)

	if hub.ClientCount("slow") != 0 {
		t.Error("Client with a full send buffer should be dropped")
	}
}

func startServer(t *testing.T, hub *Hub) (*httptest.Server, func(session string) *websocket.Conn) {
	t.Helper()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	t.Cleanup(server.Close)

	dial := func(session string) *websocket.Conn {
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=" + session
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Failed to connect to WebSocket: %v", err)
		}
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	return server, dial
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return message
}

func waitForClients(t *testing.T, hub *Hub, session string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount(session) != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients in %s, got %d", n, session, hub.ClientCount(session))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketLifecycle(t *testing.T) {
	hub := NewHub(nil, nil)
	_, dial := startServer(t, hub)

	conn := dial("ws-test")
	waitForClients(t, hub, "ws-test", 1)

	conn.Close()
	waitForClients(t, hub, "ws-test", 0)
}

func TestWebSocketRunScript(t *testing.T) {
	runner := &MockRunner{}
	hub := NewHub(runner, nil)
	_, dial := startServer(t, hub)

	submitter := dial("abcd")
	watcher := dial("abcd")
	waitForClients(t, hub, "abcd", 2)

	if err := submitter.WriteJSON(Request{Type: "run", Script: "forward(10);"}); err != nil {
		t.Fatal(err)
	}

	for _, conn := range []*websocket.Conn{submitter, watcher} {
		message := readMessage(t, conn)
		if message.Event != EventRunResult {
			t.Errorf("Expected run_result, got %s", message.Event)
		}
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.scripts) != 1 || runner.scripts[0] != "forward(10);" {
		t.Errorf("Unexpected scripts: %v", runner.scripts)
	}
}

func TestWebSocketRunFailure(t *testing.T) {
	runner := &MockRunner{
		RunFunc: func(ctx context.Context, sessionID, code string) (*service.RunResult, error) {
			return nil, fmt.Errorf("%w: boom", script.ErrRunnerCrashed)
		},
	}
	hub := NewHub(runner, nil)
	_, dial := startServer(t, hub)

	conn := dial("abcd")
	waitForClients(t, hub, "abcd", 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"script":"forward(1);"}`)); err != nil {
		t.Fatal(err)
	}

	message := readMessage(t, conn)
	if message.Event != EventRunFailed {
		t.Fatalf("Expected run_failed, got %s", message.Event)
	}
	data, _ := message.Data.(map[string]interface{})
	if data["kind"] != "runner" {
		t.Errorf("Expected kind runner, got %v", data["kind"])
	}
}

func TestWebSocketCancelAndErrors(t *testing.T) {
	runner := &MockRunner{}
	hub := NewHub(runner, nil)
	_, dial := startServer(t, hub)

	conn := dial("abcd")
	waitForClients(t, hub, "abcd", 1)

	if err := conn.WriteJSON(Request{Type: "cancel"}); err != nil {
		t.Fatal(err)
	}
	if message := readMessage(t, conn); message.Event != EventCancelled {
		t.Errorf("Expected run_cancel, got %s", message.Event)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatal(err)
	}
	if message := readMessage(t, conn); message.Event != EventError {
		t.Errorf("Expected error event, got %s", message.Event)
	}

	if err := conn.WriteJSON(Request{Type: "explode"}); err != nil {
		t.Fatal(err)
	}
	if message := readMessage(t, conn); message.Event != EventError {
		t.Errorf("Expected error event, got %s", message.Event)
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.cancelled != 1 {
		t.Errorf("Expected 1 cancel, got %d", runner.cancelled)
	}
}

func TestFailureKinds(t *testing.T) {
	err := errors.New("plain")
	hub := NewHub(nil, nil)
	client := newTestClient(hub, "k")
	hub.registerClient(client)

	hub.PublishRun("k", nil, err)
	message := receive(t, client)
	data, _ := message.Data.(map[string]interface{})
	if data["kind"] != "internal" {
		t.Errorf("Expected kind internal, got %v", data["kind"])
	}
}
