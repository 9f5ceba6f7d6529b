package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/wricardo/stitch-turtle/turtle/script"
	"github.com/wricardo/stitch-turtle/turtle/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Scripts travel in messages.
	maxMessageSize = 128 * 1024
)

// Events sent to clients
const (
	EventRunResult = "run_result"
	EventRunFailed = "run_failed"
	EventCancelled = "run_cancel"
	EventError     = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ScriptRunner executes scripts submitted by clients
type ScriptRunner interface {
	Run(ctx context.Context, sessionID, code string) (*service.RunResult, error)
	Cancel(ctx context.Context, sessionID string) (bool, error)
}

// Request is a message sent by a client
type Request struct {
	Type   string `json:"type"` // "run" (default) or "cancel"
	Script string `json:"script,omitempty"`
}

// Message represents an outgoing WebSocket message
type Message struct {
	SessionID string      `json:"session_id"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
}

// Failure is the payload of a run_failed event
type Failure struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by session ID
	sessions map[string]map[*Client]bool
	mu       sync.RWMutex

	// Outbound events queued by BroadcastEvent
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	runner ScriptRunner
	log    *log.Logger
}

// NewHub creates a new WebSocket hub. runner may be nil, in which case
// client messages are ignored.
func NewHub(runner ScriptRunner, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		runner:     runner,
		log:        logger.WithPrefix("hub"),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// PublishRun tells every client of a session how a run ended
func (h *Hub) PublishRun(sessionID string, result *service.RunResult, err error) {
	message := &Message{SessionID: sessionID, Event: EventRunResult, Data: result}
	if err != nil {
		message.Event = EventRunFailed
		message.Data = Failure{Error: err.Error(), Kind: script.Kind(err)}
	}
	h.broadcastMessage(message)
}

// BroadcastEvent queues a custom event for all clients in a session
func (h *Hub) BroadcastEvent(sessionID string, event string, data interface{}) {
	h.broadcast <- &Message{
		SessionID: sessionID,
		Event:     event,
		Data:      data,
	}
}

// ClientCount returns the number of clients watching a session
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// registerClient adds a client to a session
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	h.log.Debug("client registered", "session", client.sessionID, "clients", len(h.sessions[client.sessionID]))
}

// unregisterClient removes a client from a session
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.sessions[client.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.send)

	// Clean up empty sessions
	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}

	h.log.Debug("client unregistered", "session", client.sessionID, "clients", len(clients))
}

// broadcastMessage sends a message to all clients in a session
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.sessions[message.SessionID] {
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, drop it
			h.removeLocked(client)
		}
	}
}

// reply sends a message to a single client
func (c *Client) reply(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.sessions[c.sessionID][c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// handle dispatches one client request
func (c *Client) handle(raw []byte) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		c.reply(&Message{SessionID: c.sessionID, Event: EventError, Data: Failure{Error: "invalid message: " + err.Error(), Kind: "request"}})
		return
	}
	if c.hub.runner == nil {
		return
	}

	ctx := context.Background()
	switch req.Type {
	case "cancel":
		cancelled, err := c.hub.runner.Cancel(ctx, c.sessionID)
		if err != nil {
			c.reply(&Message{SessionID: c.sessionID, Event: EventError, Data: Failure{Error: err.Error(), Kind: "request"}})
			return
		}
		c.reply(&Message{SessionID: c.sessionID, Event: EventCancelled, Data: map[string]bool{"cancelled": cancelled}})

	case "", "run":
		// Runs are asynchronous so a later message can supersede this one
		go func() {
			result, err := c.hub.runner.Run(ctx, c.sessionID, req.Script)
			c.hub.PublishRun(c.sessionID, result, err)
		}()

	default:
		c.reply(&Message{SessionID: c.sessionID, Event: EventError, Data: Failure{Error: "unknown message type " + req.Type, Kind: "request"}})
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket error", "error", err)
			}
			break
		}
		c.handle(raw)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
