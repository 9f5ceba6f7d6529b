package main

import (
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

const (
	headerHeight = 60
	screenWidth  = 800
	screenHeight = 860
	padding      = 10
)

// ScreenType represents different screens in the app
type ScreenType int

const (
	ScreenWelcome ScreenType = iota
	ScreenViewer
)

// Faces in the order Tab cycles through them
var faces = []string{"combined", "front", "back"}

var (
	paperColor  = color.RGBA{250, 246, 235, 255}
	headerColor = color.RGBA{20, 20, 30, 255}
	inkColor    = color.RGBA{0, 0, 0, 255}
)

// RunOutput mirrors the result of a successful run
type RunOutput struct {
	Code     string            `json:"code"`
	SVG      map[string]string `json:"svg"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Tracks   int               `json:"tracks"`
	Segments int               `json:"segments"`
	Drawn    int               `json:"drawn"`
}

// WSMessage is an event pushed by the server
type WSMessage struct {
	SessionID string          `json:"session_id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
}

type SessionListItem struct {
	ID         string     `json:"id"`
	PresetID   string     `json:"preset_id"`
	Runs       int        `json:"runs"`
	Crashed    bool       `json:"crashed"`
	LastResult *RunOutput `json:"last_result"`
}

type PresetListItem struct {
	PresetID string `json:"preset_id"`
	Name     string `json:"name"`
	Lines    int    `json:"lines"`
}

// Viewer holds the drawing of the open session
type Viewer struct {
	sessionID string
	wsConn    *websocket.Conn
	result    *RunOutput
	strokes   map[string][]Stroke // parsed per face
	face      int
	status    string
	mu        sync.RWMutex
}

// WelcomeScreen manages the session and preset picker
type WelcomeScreen struct {
	sessions  []SessionListItem
	presets   []PresetListItem
	cursorPos int
	errorMsg  string
}

type App struct {
	baseURL       string
	currentScreen ScreenType
	welcomeScreen *WelcomeScreen
	viewer        *Viewer
}

// NewApp opens sessionID directly, or the picker when it is empty
func NewApp(baseURL, sessionID string) *App {
	a := &App{
		baseURL:       baseURL,
		currentScreen: ScreenWelcome,
		welcomeScreen: &WelcomeScreen{},
	}

	if sessionID != "" {
		a.openSession(sessionID)
	} else {
		a.loadWelcomeData()
	}
	return a
}

// openSession switches to the viewer and subscribes to run events
func (a *App) openSession(sessionID string) {
	if a.viewer != nil && a.viewer.wsConn != nil {
		a.viewer.wsConn.Close()
	}

	v := &Viewer{sessionID: sessionID, status: "loading"}
	a.viewer = v
	a.currentScreen = ScreenViewer

	if err := a.fetchSession(v); err != nil {
		log.Printf("Failed to fetch session %s: %v", sessionID, err)
		v.setStatus(err.Error())
	}

	if err := a.connectWebSocket(v); err != nil {
		log.Printf("Failed to connect WebSocket for %s: %v", sessionID, err)
		return
	}
	go a.listenWebSocket(v)
}

// fetchSession loads the last result of a session
func (a *App) fetchSession(v *Viewer) error {
	var session SessionListItem
	if err := a.getJSON(fmt.Sprintf("/api/sessions/%s", v.sessionID), &session); err != nil {
		return err
	}
	if session.LastResult == nil {
		v.setStatus("no run yet, press R")
		return nil
	}
	v.setResult(session.LastResult)
	return nil
}

// connectWebSocket establishes the event connection for a session
func (a *App) connectWebSocket(v *Viewer) error {
	base, err := url.Parse(a.baseURL)
	if err != nil {
		return err
	}

	wsURL := url.URL{Scheme: "ws", Host: base.Host, Path: "/ws"}
	if base.Scheme == "https" {
		wsURL.Scheme = "wss"
	}
	q := wsURL.Query()
	q.Set("session", v.sessionID)
	wsURL.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return err
	}

	v.wsConn = conn
	log.Printf("WebSocket connected for session %s", v.sessionID)
	return nil
}

// listenWebSocket applies run events as they arrive
func (a *App) listenWebSocket(v *Viewer) {
	defer v.wsConn.Close()

	for {
		_, message, err := v.wsConn.ReadMessage()
		if err != nil {
			log.Printf("WebSocket read error for %s: %v", v.sessionID, err)
			return
		}

		var wsMsg WSMessage
		if err := json.Unmarshal(message, &wsMsg); err != nil {
			log.Printf("WebSocket JSON parse error: %v", err)
			continue
		}

		switch wsMsg.Event {
		case "run_result":
			var run struct {
				Result *RunOutput `json:"result"`
			}
			if err := json.Unmarshal(wsMsg.Data, &run); err != nil || run.Result == nil {
				log.Printf("WebSocket run_result without result: %v", err)
				continue
			}
			v.setResult(run.Result)

		case "run_failed":
			var failure struct {
				Error string `json:"error"`
				Kind  string `json:"kind"`
			}
			json.Unmarshal(wsMsg.Data, &failure)
			v.setStatus(fmt.Sprintf("%s: %s", failure.Kind, failure.Error))
		}
	}
}

func (v *Viewer) setResult(result *RunOutput) {
	strokes := make(map[string][]Stroke, len(faces))
	for _, face := range faces {
		parsed, err := ParseDocument(result.SVG[face], inkColor)
		if err != nil {
			log.Printf("Failed to parse %s document: %v", face, err)
			continue
		}
		strokes[face] = parsed
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.result = result
	v.strokes = strokes
	v.status = fmt.Sprintf("%d tracks, %d segments, %d drawn", result.Tracks, result.Segments, result.Drawn)
}

func (v *Viewer) setStatus(status string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = status
}

// loadWelcomeData fetches sessions and presets for the picker
func (a *App) loadWelcomeData() {
	ws := a.welcomeScreen
	ws.errorMsg = ""

	var sessions struct {
		Sessions []SessionListItem `json:"sessions"`
	}
	if err := a.getJSON("/api/sessions", &sessions); err != nil {
		ws.errorMsg = fmt.Sprintf("Failed to load sessions: %v", err)
	}
	ws.sessions = sessions.Sessions

	var presets []PresetListItem
	if err := a.getJSON("/api/presets", &presets); err != nil {
		ws.errorMsg = fmt.Sprintf("Failed to load presets: %v", err)
	}
	ws.presets = presets

	if ws.cursorPos >= len(ws.sessions)+len(ws.presets) {
		ws.cursorPos = 0
	}
}

// createSession starts a session from a preset and returns its ID
func (a *App) createSession(presetID string) (string, error) {
	payload := fmt.Sprintf(`{"preset_id":%q}`, presetID)
	resp, err := http.Post(a.baseURL+"/api/sessions", "application/json", strings.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create session: %s (body: %s)", resp.Status, string(body))
	}

	var session SessionListItem
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("failed to parse session response: %v (body: %s)", err, string(body))
	}
	log.Printf("Created new session: %s (preset: %s)", session.ID, presetID)
	return session.ID, nil
}

// sendAction posts to a session endpoint; results arrive over the WebSocket
func (a *App) sendAction(action string) {
	v := a.viewer
	go func() {
		endpoint := fmt.Sprintf("%s/api/sessions/%s/%s", a.baseURL, v.sessionID, action)
		resp, err := http.Post(endpoint, "application/json", nil)
		if err != nil {
			v.setStatus(err.Error())
			return
		}
		defer resp.Body.Close()

		if action == "restart" && resp.StatusCode == http.StatusOK {
			v.setStatus("runner restarted")
		}
	}()
	if action == "run" {
		v.setStatus("running...")
	}
}

func (a *App) getJSON(path string, out interface{}) error {
	resp, err := http.Get(a.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *App) Update() error {
	switch a.currentScreen {
	case ScreenWelcome:
		return a.updateWelcomeScreen()
	case ScreenViewer:
		return a.updateViewer()
	}
	return nil
}

// updateWelcomeScreen handles picker input. Sessions are listed first,
// then presets; Enter opens a session or creates one from a preset.
func (a *App) updateWelcomeScreen() error {
	ws := a.welcomeScreen

	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		a.loadWelcomeData()
	}

	totalItems := len(ws.sessions) + len(ws.presets)
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && ws.cursorPos < totalItems-1 {
		ws.cursorPos++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && ws.cursorPos > 0 {
		ws.cursorPos--
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) && totalItems > 0 {
		if ws.cursorPos < len(ws.sessions) {
			a.openSession(ws.sessions[ws.cursorPos].ID)
			return nil
		}
		preset := ws.presets[ws.cursorPos-len(ws.sessions)]
		id, err := a.createSession(preset.PresetID)
		if err != nil {
			ws.errorMsg = fmt.Sprintf("Failed to create session: %v", err)
			return nil
		}
		a.openSession(id)
		a.sendAction("run")
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) && a.viewer != nil {
		a.currentScreen = ScreenViewer
	}
	return nil
}

// updateViewer handles face switching and run control
func (a *App) updateViewer() error {
	v := a.viewer

	for i := ebiten.Key1; i <= ebiten.Key3; i++ {
		if inpututil.IsKeyJustPressed(i) {
			v.mu.Lock()
			v.face = int(i - ebiten.Key1)
			v.mu.Unlock()
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		v.mu.Lock()
		v.face = (v.face + 1) % len(faces)
		v.mu.Unlock()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		a.sendAction("run")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		a.sendAction("cancel")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyX) {
		a.sendAction("restart")
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		a.currentScreen = ScreenWelcome
		a.loadWelcomeData()
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	switch a.currentScreen {
	case ScreenWelcome:
		a.drawWelcomeScreen(screen)
	case ScreenViewer:
		a.drawViewer(screen)
	}
}

// drawWelcomeScreen renders the session and preset picker
func (a *App) drawWelcomeScreen(screen *ebiten.Image) {
	ws := a.welcomeScreen
	screen.Fill(headerColor)

	y := 20
	ebitenutil.DebugPrintAt(screen, "=== STITCH TURTLE - SESSION SELECT ===", 250, y)
	y += 30
	ebitenutil.DebugPrintAt(screen, "Up/Down: move  Enter: open  F5: refresh  Esc: back to viewer", 20, y)
	y += 30

	ebitenutil.DebugPrintAt(screen, "Sessions:", 20, y)
	y += 20
	if len(ws.sessions) == 0 {
		ebitenutil.DebugPrintAt(screen, "  (none)", 20, y)
		y += 20
	}
	for i, s := range ws.sessions {
		line := fmt.Sprintf("  %s  preset=%-10s runs=%d", s.ID, s.PresetID, s.Runs)
		if s.Crashed {
			line += "  CRASHED"
		}
		ebitenutil.DebugPrintAt(screen, cursor(i == ws.cursorPos)+line, 20, y)
		y += 18
	}

	y += 20
	ebitenutil.DebugPrintAt(screen, "New session from preset:", 20, y)
	y += 20
	for i, p := range ws.presets {
		line := fmt.Sprintf("  %-12s %s (%d lines)", p.PresetID, p.Name, p.Lines)
		ebitenutil.DebugPrintAt(screen, cursor(len(ws.sessions)+i == ws.cursorPos)+line, 20, y)
		y += 18
	}

	if ws.errorMsg != "" {
		ebitenutil.DebugPrintAt(screen, ws.errorMsg, 20, screenHeight-30)
	}
}

func cursor(selected bool) string {
	if selected {
		return ">"
	}
	return " "
}

// drawViewer renders the selected face scaled to fit below the header
func (a *App) drawViewer(screen *ebiten.Image) {
	v := a.viewer
	v.mu.RLock()
	defer v.mu.RUnlock()

	screen.Fill(paperColor)
	vector.DrawFilledRect(screen, 0, 0, screenWidth, headerHeight, headerColor, false)

	face := faces[v.face]
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Session %s  face: %s", v.sessionID, strings.ToUpper(face)), padding, 8)
	ebitenutil.DebugPrintAt(screen, v.status, padding, 24)
	ebitenutil.DebugPrintAt(screen, "1/2/3/Tab: face  R: run  C: cancel  X: restart  Esc: sessions", padding, 40)

	if v.result == nil {
		return
	}

	areaW := float64(screenWidth - 2*padding)
	areaH := float64(screenHeight - headerHeight - 2*padding)
	scale := math.Min(areaW/float64(v.result.Width), areaH/float64(v.result.Height))
	offX, offY := float64(padding), float64(headerHeight+padding)

	for _, stroke := range v.strokes[face] {
		for _, l := range stroke.Lines {
			vector.StrokeLine(screen,
				float32(offX+l.X0*scale), float32(offY+l.Y0*scale),
				float32(offX+l.X1*scale), float32(offY+l.Y1*scale),
				1.5, stroke.Color, true)
		}
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	baseURL := os.Getenv("TURTLE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// An optional session ID skips the picker
	sessionID := ""
	if len(os.Args) > 1 {
		sessionID = os.Args[1]
	}

	app := NewApp(strings.TrimRight(baseURL, "/"), sessionID)

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Stitch Turtle - Live Viewer")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(app); err != nil {
		log.Fatal(err)
	}
}
